package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Drafter configures the terminal draft editor.
type Drafter struct {
	APIURL        string
	AutosaveDelay time.Duration
	// SaveTimeout bounds each autosave request.
	SaveTimeout time.Duration
	HistoryFile string
	// Token resumes an earlier session when set.
	Token string
}

func LoadDrafter(envFiles ...string) (*Drafter, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Drafter{
		APIURL:      getenv("FORUM_API_URL", "http://localhost:8080"),
		HistoryFile: getenv("FORUM_HISTORY_FILE", ".drafter_history"),
		Token:       os.Getenv("FORUM_TOKEN"),
	}
	var err error
	if cfg.AutosaveDelay, err = time.ParseDuration(getenv("FORUM_AUTOSAVE_DELAY", "500ms")); err != nil {
		return nil, fmt.Errorf("FORUM_AUTOSAVE_DELAY: %w", err)
	}
	if cfg.AutosaveDelay <= 0 {
		return nil, errors.New("FORUM_AUTOSAVE_DELAY must be positive")
	}
	if cfg.SaveTimeout, err = time.ParseDuration(getenv("FORUM_SAVE_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("FORUM_SAVE_TIMEOUT: %w", err)
	}
	if cfg.SaveTimeout <= 0 {
		return nil, errors.New("FORUM_SAVE_TIMEOUT must be positive")
	}
	return cfg, nil
}
