package speech

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// TTSClient synthesizes spoken audio for a phrase via the Google Cloud
// text-to-speech API, caching the resulting MP3 files on disk so each phrase
// is only synthesized once.
type TTSClient struct {
	apiKey     string
	apiURL     string
	lang       string
	cacheDir   string
	httpClient *http.Client
}

// NewTTSClient creates a TTS client. apiKey must be non-empty.
func NewTTSClient(apiKey, lang, cacheDir string) *TTSClient {
	if lang == "" {
		lang = "en-US"
	}
	os.MkdirAll(cacheDir, 0755)
	return &TTSClient{
		apiKey:   apiKey,
		apiURL:   "https://texttospeech.googleapis.com/v1/text:synthesize",
		lang:     lang,
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// cacheKey derives a stable filename for a phrase
func (c *TTSClient) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.lang + ":" + text))
	return hex.EncodeToString(h[:16])
}

// Synthesize returns MP3 audio for the given text, preferring the cache
func (c *TTSClient) Synthesize(text string) ([]byte, error) {
	cachePath := filepath.Join(c.cacheDir, c.cacheKey(text)+".mp3")
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	data, err := c.callAPI(text)
	if err != nil {
		return nil, err
	}

	// Failures are never cached, only successful synthesis
	os.WriteFile(cachePath, data, 0644)
	return data, nil
}

func (c *TTSClient) callAPI(text string) ([]byte, error) {
	reqBody := map[string]interface{}{
		"input": map[string]string{
			"text": text,
		},
		"voice": map[string]interface{}{
			"languageCode": c.lang,
			"ssmlGender":   "FEMALE",
		},
		"audioConfig": map[string]string{
			"audioEncoding": "MP3",
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	resp, err := c.httpClient.Post(c.apiURL+"?key="+c.apiKey, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TTS API error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %v", err)
	}
	return audio, nil
}
