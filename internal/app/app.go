// Package app wires the evaluation pipeline into a runnable host: it loads a
// note, renders its calc blocks, and either prints the annotated result or
// writes computed values back into the source file.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/calcnote/internal/ctxlog"
	"github.com/vk/calcnote/internal/engine"
	"github.com/vk/calcnote/internal/fsutil"
	"github.com/vk/calcnote/internal/globals"
	"github.com/vk/calcnote/internal/note"
	"github.com/vk/calcnote/internal/preprocess"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	eng    *engine.Engine
	cache  globals.Cache
	rules  []preprocess.Rule
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App with its own isolated logger and globals cache.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	var cache globals.Cache = globals.NewMemory()
	if cfg.CachePath != "" {
		bolt, err := globals.OpenBolt(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open globals cache: %w", err)
		}
		cache = bolt
	}

	rules, err := parseRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		eng:    engine.New(),
		cache:  cache,
		rules:  rules,
	}, nil
}

// Run evaluates the configured note path: one markdown file, or every
// markdown file under a directory.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	defer a.cache.Close()

	paths, err := fsutil.FindNotes(a.config.NotePath)
	if err != nil {
		return fmt.Errorf("locate notes: %w", err)
	}
	a.logger.Debug("Notes located.", "count", len(paths))

	for _, path := range paths {
		if len(paths) > 1 {
			fmt.Fprintf(a.outW, "%s:\n", path)
		}
		if err := a.runNote(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// runNote evaluates a single note file.
func (a *App) runNote(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read note: %w", err)
	}

	doc, err := note.Parse(string(raw))
	if err != nil {
		return err
	}
	a.logger.Debug("Note parsed.", "path", path, "blocks", len(doc.Blocks))

	ev := &note.Evaluator{
		Engine:   a.eng,
		Cache:    a.cache,
		Rules:    a.rules,
		ForceAll: a.config.ForceAll,
	}
	rendered, reports, warnings, err := ev.Render(ctx, path, doc)
	if err != nil {
		return err
	}

	for _, w := range warnings {
		a.logger.Warn("Frontmatter property skipped.", "key", w.Key, "value", w.RawValue, "reason", w.Message)
	}

	if a.config.Write {
		if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("write note: %w", err)
		}
		a.logger.Info("Note updated.", "path", path, "blocks", len(reports))
		return nil
	}

	for i, rep := range reports {
		fmt.Fprintf(a.outW, "block %d:\n", i+1)
		for _, line := range note.FormatReport(a.eng, rep) {
			fmt.Fprintf(a.outW, "  %s\n", line)
		}
	}
	return nil
}

// parseRules converts "from=to" pairs into substitution rules.
func parseRules(raw []string) ([]preprocess.Rule, error) {
	rules := make([]preprocess.Rule, 0, len(raw))
	for _, pair := range raw {
		from, to, ok := strings.Cut(pair, "=")
		if !ok || from == "" {
			return nil, fmt.Errorf("invalid substitution rule %q: want from=to", pair)
		}
		rules = append(rules, preprocess.Rule{From: from, To: to})
	}
	return rules, nil
}
