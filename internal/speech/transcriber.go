// Package speech provides the optional spoken-language surfaces: speech-to-
// text for pronunciation practice and text-to-speech playback of a phrase.
// Both are environment-dependent; when the required API key is missing the
// client is simply nil and the bot shows an "unavailable" notice.
package speech

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Transcriber converts a single recorded utterance to text using the OpenAI
// transcription API
type Transcriber struct {
	apiKey     string
	apiURL     string
	model      string
	language   string
	httpClient *http.Client
}

// NewTranscriber creates a transcription client. apiKey must be non-empty.
func NewTranscriber(apiKey, language string) *Transcriber {
	if language == "" {
		language = "en"
	}
	return &Transcriber{
		apiKey:   apiKey,
		apiURL:   "https://api.openai.com/v1/audio/transcriptions",
		model:    "whisper-1",
		language: language,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// transcriptionResponse is the relevant part of the API response
type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Transcribe sends the audio file content and returns the recognized text
func (t *Transcriber) Transcribe(audio []byte, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio data: %v", err)
	}
	writer.WriteField("model", t.model)
	writer.WriteField("language", t.language)
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize request body: %v", err)
	}

	req, err := http.NewRequest("POST", t.apiURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %v", err)
	}

	var response transcriptionResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return "", fmt.Errorf("failed to decode response: %v", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("API error: %s", response.Error.Message)
	}

	return strings.TrimSpace(response.Text), nil
}
