// Package cli turns command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/calcnote/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// rulesFlag collects repeated -rule from=to pairs.
type rulesFlag []string

func (r *rulesFlag) String() string {
	return strings.Join(*r, ",")
}

func (r *rulesFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("calcnote", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
calcnote - evaluate the calc blocks of a markdown note.

Usage:
  calcnote [options] [NOTE_PATH]

Arguments:
  NOTE_PATH
    Path to a markdown note containing fenced calc blocks, or a directory
    of notes.

Options:
`)
		flagSet.PrintDefaults()
	}

	noteFlag := flagSet.String("note", "", "Path to the note file or directory.")
	writeFlag := flagSet.Bool("write", false, "Write computed insertion values back into the note file.")
	forceAllFlag := flagSet.Bool("all", false, "Process every frontmatter property even without a calc control property.")
	cacheFlag := flagSet.String("cache", "", "Path to a bbolt database for durable note-globals. Empty keeps them in memory.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	var rules rulesFlag
	flagSet.Var(&rules, "rule", "Substitution rule from=to, applied before evaluation. Repeatable.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := *noteFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		NotePath:  path,
		Write:     *writeFlag,
		ForceAll:  *forceAllFlag,
		CachePath: *cacheFlag,
		Rules:     rules,
		LogFormat: logFormat,
		LogLevel:  logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
