package preprocess

import (
	"regexp"
	"strings"
)

// Each directive recognizer is its own named function so it can be tested in
// isolation, instead of ad hoc patterns inside the rewrite loop.

const emitterMarker = "=>"

var (
	insertionRe = regexp.MustCompile(`\[\s*(\$?[A-Za-z_]\w*)\s*(::[^\]]*)?\]`)
	totalRe     = regexp.MustCompile(`(?i)@(sum|total)\b`)
	prevRe      = regexp.MustCompile(`(?i)@prev\b`)
)

// isHideDirective reports whether the row consists only of the hide token.
func isHideDirective(row string) bool {
	return strings.EqualFold(strings.TrimSpace(row), "@hiderows")
}

// isUnitDirective reports whether the row consists only of the
// unit-declaration token. Lexicon setup happens elsewhere; here the row is
// merely recorded as hidden.
func isUnitDirective(row string) bool {
	return strings.EqualFold(strings.TrimSpace(row), "@units")
}

// stripEmitterMarker removes a trailing emitter marker outside any comment.
// The marker is always stripped from evaluable source; whether it is also
// stripped from displayed text is a caller policy.
func stripEmitterMarker(row string) (string, bool) {
	code, comment := splitComment(row)
	trimmed := strings.TrimRight(code, " \t")
	if !strings.HasSuffix(trimmed, emitterMarker) {
		return row, false
	}
	code = strings.TrimRight(strings.TrimSuffix(trimmed, emitterMarker), " \t")
	if comment != "" {
		code += " " + comment
	}
	return code, true
}

// rewriteInsertion replaces the first result-insertion annotation — [name] or
// [name::literal] — with the bare name, turning the row into a normal
// assignment target. Returns the rewritten row, the annotation name, and
// whether an annotation was present.
func rewriteInsertion(row string) (string, string, bool) {
	loc := insertionRe.FindStringSubmatchIndex(row)
	if loc == nil {
		return row, "", false
	}
	name := row[loc[2]:loc[3]]
	return row[:loc[0]] + name + row[loc[1]:], name, true
}

// rewriteTotal substitutes every rolling-total reference with the reserved
// identifier.
func rewriteTotal(row string) string {
	return totalRe.ReplaceAllString(row, TotalIdent)
}

// rewritePrev substitutes every previous-value reference with the reserved
// identifier.
func rewritePrev(row string) string {
	return prevRe.ReplaceAllString(row, PrevIdent)
}

// WriteInsertion rewrites the first result-insertion annotation of a row to
// carry formatted as its recorded literal. Rows without an annotation pass
// through unchanged.
func WriteInsertion(row, formatted string) string {
	loc := insertionRe.FindStringSubmatchIndex(row)
	if loc == nil {
		return row
	}
	name := row[loc[2]:loc[3]]
	return row[:loc[0]] + "[" + name + "::" + formatted + "]" + row[loc[1]:]
}

// splitComment splits a row at the first # outside a double-quoted string.
// The comment part keeps its leading #.
func splitComment(row string) (string, string) {
	inString := false
	for i := 0; i < len(row); i++ {
		switch row[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '#':
			if !inString {
				return row[:i], row[i:]
			}
		}
	}
	return row, ""
}
