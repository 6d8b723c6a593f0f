// Package fsutil provides filesystem helpers for locating notes.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// markdownExts are the note filename extensions the walker accepts.
var markdownExts = map[string]bool{
	".md":       true,
	".markdown": true,
}

// FindNotes resolves a path to the markdown notes it names: a file path
// yields itself, a directory is walked recursively for markdown files. The
// result is sorted for deterministic processing order.
func FindNotes(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var notes []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && markdownExts[strings.ToLower(filepath.Ext(d.Name()))] {
			notes = append(notes, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(notes)
	return notes, nil
}
