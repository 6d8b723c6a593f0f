// Package preprocess rewrites an authored calc block into engine-ready source
// while extracting line-classification metadata. It is a pure text transform:
// a function of (text, rules) with no hidden state, and it never fails —
// malformed directive text is left as literal and surfaces later as a generic
// engine error.
package preprocess

import "strings"

// Reserved identifiers maintained by the evaluator, substituted in place of
// the author-facing @prev and @sum/@total references.
const (
	PrevIdent  = "__prev"
	TotalIdent = "__total"
)

// Rule is an ordered, opaque lexical substitution supplied by the caller,
// e.g. mapping a currency symbol onto an engine function. Rules are applied
// last, after all directive rewrites.
type Rule struct {
	From string
	To   string
}

// BlockInfo classifies the lines of one block. Indices are zero-based row
// numbers into RawRows.
type BlockInfo struct {
	// EmitterLines are rows carrying the trailing emitter marker.
	EmitterLines []int
	// InsertionLines are rows carrying a result-insertion annotation.
	InsertionLines []int
	// HiddenLines are rows blanked from display (directive-only rows).
	HiddenLines []int
	// HideRows suppresses all non-emitter rows when displaying the block.
	HideRows bool
}

// Result is the output of Process.
type Result struct {
	// RawRows are the source lines exactly as authored.
	RawRows []string
	// Source is the directive-free, magic-substituted text, one evaluable
	// expression per line.
	Source string
	// Info is the derived line classification.
	Info BlockInfo
}

// Process rewrites raw block text into engine-ready source. Deterministic and
// idempotent for a fixed (text, rules) pair.
func Process(raw string, rules []Rule) Result {
	rows := strings.Split(raw, "\n")
	processed := make([]string, len(rows))
	var info BlockInfo

	for i, row := range rows {
		switch {
		case isHideDirective(row):
			info.HiddenLines = append(info.HiddenLines, i)
			info.HideRows = true
			processed[i] = ""
			continue
		case isUnitDirective(row):
			info.HiddenLines = append(info.HiddenLines, i)
			processed[i] = ""
			continue
		}

		line, emitter := stripEmitterMarker(row)
		if emitter {
			info.EmitterLines = append(info.EmitterLines, i)
		}
		line, _, insertion := rewriteInsertion(line)
		if insertion {
			info.InsertionLines = append(info.InsertionLines, i)
		}
		line = rewriteTotal(line)
		line = rewritePrev(line)

		for _, rule := range rules {
			line = strings.ReplaceAll(line, rule.From, rule.To)
		}
		processed[i] = line
	}

	return Result{
		RawRows: rows,
		Source:  strings.Join(processed, "\n"),
		Info:    info,
	}
}
