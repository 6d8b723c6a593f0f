package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	NotePath string // markdown note to evaluate

	// Write rewrites the note file in place with computed insertion values
	// instead of printing the annotated note.
	Write bool
	// ForceAll processes every frontmatter property even without a calc
	// control property.
	ForceAll bool
	// CachePath, when set, backs the note-globals cache with a bbolt
	// database at this path instead of process memory.
	CachePath string
	// Rules are "from=to" substitution pairs applied before evaluation.
	Rules []string

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.NotePath == "" {
		return nil, errors.New("NotePath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
