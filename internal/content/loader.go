// Package content loads the static lesson catalog. Levels are read once at
// startup and are read-only for the rest of the session.
package content

import (
	"encoding/json"
	"log"
	"os"

	"github.com/example/linguaquest/pkg/models"
)

// LoadLevels reads the ordered level list from a JSON file. Missing or
// malformed content degrades to an empty catalog with a logged warning; the
// app keeps running without lessons rather than crashing.
func LoadLevels(path string) []models.Level {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: failed to read lessons file %s: %v", path, err)
		return nil
	}

	var levels []models.Level
	if err := json.Unmarshal(data, &levels); err != nil {
		log.Printf("Warning: failed to parse lessons file %s: %v", path, err)
		return nil
	}

	return levels
}

// FindLevel returns the level with the given id, or nil
func FindLevel(levels []models.Level, levelID string) *models.Level {
	for i := range levels {
		if levels[i].ID == levelID {
			return &levels[i]
		}
	}
	return nil
}
