// Package inline evaluates a single expression embedded outside block form.
// The base scope is cloned, never mutated in place, so inline evaluation can
// only affect shared state through its explicit NewGlobals return channel.
package inline

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/calcnote/internal/ctxlog"
	"github.com/vk/calcnote/internal/engine"
	"github.com/vk/calcnote/internal/preprocess"
	"github.com/vk/calcnote/internal/scope"
)

// Inline chaining errors are thrown to the caller, which renders an error
// state; inline usage has no concept of "display nothing".
var (
	// ErrNoPriorResult reports a previous-result reference with no prior
	// inline result supplied.
	ErrNoPriorResult = errors.New("no previous inline result")
	// ErrNoResult reports an expression that produced no value, e.g. a pure
	// comment.
	ErrNoResult = errors.New("expression produced no result")
)

// prevRefRe matches the author-facing previous-result reference.
var prevRefRe = regexp.MustCompile(`(?i)@prev\b`)

// Result is a successful inline evaluation. NewGlobals holds every new or
// changed persistent binding the expression created; the caller merges it
// into the shared per-note cache so later inline expressions can chain off
// this one.
type Result struct {
	Formatted  string
	Raw        cty.Value
	NewGlobals map[string]cty.Value
}

// Evaluate evaluates one expression against a clone of base. prior, when
// non-nil, is bound behind the previous-result reference.
func Evaluate(ctx context.Context, text string, base *scope.Scope, prior *cty.Value, rules []preprocess.Rule, eng *engine.Engine) (Result, error) {
	logger := ctxlog.FromContext(ctx)
	sc := base.Clone()

	if prevRefRe.MatchString(text) {
		if prior == nil {
			return Result{}, ErrNoPriorResult
		}
		sc.Set(preprocess.PrevIdent, *prior)
		text = prevRefRe.ReplaceAllString(text, preprocess.PrevIdent)
	}

	for _, rule := range rules {
		text = strings.ReplaceAll(text, rule.From, rule.To)
	}

	val, err := eng.Evaluate(ctx, text, sc)
	if err != nil {
		return Result{}, err
	}
	if val == cty.NilVal {
		return Result{}, ErrNoResult
	}

	newGlobals := sc.DiffGlobals(base)
	logger.Debug("Inline expression evaluated.", "new_globals", len(newGlobals))

	return Result{
		Formatted:  eng.Format(val, engine.DefaultFormat),
		Raw:        val,
		NewGlobals: newGlobals,
	}, nil
}
