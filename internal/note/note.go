// Package note splits a markdown note into its frontmatter property bag and
// fenced calc blocks, and composes the evaluation pipeline over them:
// preprocess → frontmatter scope → globals merge → block evaluation →
// insertion write-back.
package note

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	frontmatterFence = "---"
	calcFenceOpen    = "```calc"
	fenceClose       = "```"
)

// Block is one fenced calc block of a note. Start and End are the document
// line indices of the fence lines; the block content is the lines between.
type Block struct {
	Start int
	End   int
	Lines []string
}

// Raw returns the block content as authored.
func (b Block) Raw() string {
	return strings.Join(b.Lines, "\n")
}

// Document is a parsed note.
type Document struct {
	// Frontmatter is the merged external property bag, nil when the note has
	// no frontmatter fence.
	Frontmatter map[string]any
	// Lines are all lines of the note.
	Lines []string
	// Blocks are the fenced calc blocks, in document order.
	Blocks []Block
}

// Parse splits a note into frontmatter and calc blocks. Only the frontmatter
// YAML itself can fail; block fences are purely positional.
func Parse(text string) (*Document, error) {
	lines := strings.Split(text, "\n")
	doc := &Document{Lines: lines}

	body := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == frontmatterFence {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == frontmatterFence {
				raw := strings.Join(lines[1:i], "\n")
				if err := yaml.Unmarshal([]byte(raw), &doc.Frontmatter); err != nil {
					return nil, fmt.Errorf("parse frontmatter: %w", err)
				}
				body = i + 1
				break
			}
		}
	}

	for i := body; i < len(lines); i++ {
		if !strings.EqualFold(strings.TrimSpace(lines[i]), calcFenceOpen) {
			continue
		}
		open := i
		end := -1
		for j := open + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == fenceClose {
				end = j
				break
			}
		}
		if end < 0 {
			// Unterminated fence: treat the rest of the note as prose.
			break
		}
		doc.Blocks = append(doc.Blocks, Block{
			Start: open,
			End:   end,
			Lines: append([]string(nil), lines[open+1:end]...),
		})
		i = end
	}

	return doc, nil
}
