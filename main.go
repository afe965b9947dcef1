package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/linguaquest/internal/auth"
	"github.com/example/linguaquest/internal/bot"
	"github.com/example/linguaquest/internal/content"
	"github.com/example/linguaquest/internal/mirror"
	"github.com/example/linguaquest/internal/progress"
	"github.com/example/linguaquest/internal/speech"
	"github.com/example/linguaquest/internal/storage"
)

func main() {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	local, err := storage.OpenSQLite(dataDir)
	if err != nil {
		log.Fatalf("Failed to open local storage: %v", err)
	}
	defer local.Close()

	// A reachable Postgres turns on the metrics mirror and real accounts;
	// without one the app runs fully offline
	var remote *mirror.PostgresMirror
	var provider auth.Provider
	if url := os.Getenv("REMOTE_DATABASE_URL"); url != "" && !strings.Contains(url, "YOUR_") {
		remote, err = mirror.ConnectPostgres(url)
		if err != nil {
			log.Fatalf("Failed to connect to remote database: %v", err)
		}
		defer remote.Close()

		provider, err = auth.NewRemoteProvider(remote.DB())
		if err != nil {
			log.Fatalf("Failed to initialize remote identity provider: %v", err)
		}
		log.Println("Remote mirror enabled")
	} else {
		provider = auth.NewLocalProvider(local)
		log.Println("Running in local mode: progress stays on this device")
	}

	contentPath := os.Getenv("CONTENT_PATH")
	if contentPath == "" {
		contentPath = "data/lessons.json"
	}
	levels := content.LoadLevels(contentPath)
	log.Printf("Loaded %d levels from %s", len(levels), contentPath)

	var transcriber *speech.Transcriber
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		transcriber = speech.NewTranscriber(key, os.Getenv("SPEECH_LANGUAGE"))
	}

	var tts *speech.TTSClient
	if key := os.Getenv("TTS_API_KEY"); key != "" {
		tts = speech.NewTTSClient(key, os.Getenv("TTS_LANGUAGE"), dataDir+"/tts-cache")
	}

	var store *progress.Store
	if remote != nil {
		store = progress.New(local, remote, nil)
	} else {
		store = progress.New(local, nil, nil)
	}
	log.Printf("Total XP on record: %d", store.AggregateStartupXP())

	b, err := bot.New(bot.Dependencies{
		Levels:      levels,
		Progress:    store,
		Auth:        provider,
		Remote:      remoteOrNil(remote),
		Transcriber: transcriber,
		TTS:         tts,
		ContentPath: contentPath,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		b.Stop()
		store.Flush()
		os.Exit(0)
	}()

	log.Println("Bot started. Press Ctrl+C to stop.")
	if err := b.Start(); err != nil {
		log.Fatalf("Bot error: %v", err)
	}
}

// remoteOrNil keeps a typed-nil Postgres mirror out of the interface value
func remoteOrNil(m *mirror.PostgresMirror) mirror.Mirror {
	if m == nil {
		return nil
	}
	return m
}
