// Package blockeval evaluates the rows of a preprocessed calc block in file
// order against a single mutable scope. Bindings created on row i are visible
// from row i+1 onward; this read-after-write dependency through the shared
// scope is the defining property of the evaluator, so rows are never
// reordered or evaluated in parallel.
//
// The evaluator also maintains the two reserved magic aggregates: the
// previous defined result and the rolling total of the current contributing
// run.
package blockeval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/calcnote/internal/ctxlog"
	"github.com/vk/calcnote/internal/engine"
	"github.com/vk/calcnote/internal/preprocess"
	"github.com/vk/calcnote/internal/scope"
)

// Magic-variable misuse is detected before delegating to the engine so the
// failure message is precise rather than a generic undefined-symbol error.
var (
	// ErrNoPrevious reports a previous-value reference with no prior
	// successful row.
	ErrNoPrevious = errors.New("no previous result for this row")
	// ErrNotSummable reports a rolling-total reference whose contributing
	// rows cannot be added together.
	ErrNotSummable = errors.New("rows cannot be summed")
)

// Result holds the outcome of evaluating one block. Results and Inputs are
// parallel and cover rows up to, but excluding, the first failing row; the
// failure itself is captured in Err and OffendingRow. Undefined results
// (blank or comment rows) appear as cty.NilVal entries.
type Result struct {
	Results      []cty.Value
	Inputs       []string
	Err          error
	OffendingRow string
}

// Evaluate runs every row of source, in order, against sc. Evaluation stops
// at the first failure; later rows are neither evaluated nor computed.
func Evaluate(ctx context.Context, source string, sc *scope.Scope, eng *engine.Engine) *Result {
	logger := ctxlog.FromContext(ctx)
	rows := strings.Split(source, "\n")
	if n := len(rows); n > 0 && rows[n-1] == "" {
		rows = rows[:n-1]
	}

	res := &Result{}
	for i, row := range rows {
		refs := eng.References(row)

		// Previous-value guard.
		if prev, ok := lastDefined(res.Results); ok {
			sc.Set(preprocess.PrevIdent, prev)
		} else {
			sc.Delete(preprocess.PrevIdent)
			if refs[preprocess.PrevIdent] {
				res.Err = fmt.Errorf("row %d: %w", i, ErrNoPrevious)
				res.OffendingRow = row
				return res
			}
		}

		// Rolling total over the contributing run.
		if err := bindTotal(res.Results, sc, eng); err != nil {
			if refs[preprocess.TotalIdent] {
				res.Err = fmt.Errorf("row %d: %w: %v", i, ErrNotSummable, err)
				res.OffendingRow = row
				return res
			}
			// A summation failure must not block a row that never asks
			// for the total.
			sc.Delete(preprocess.TotalIdent)
		}

		val, err := eng.Evaluate(ctx, row, sc)
		if err != nil {
			logger.Debug("Row evaluation failed.", "row", i, "error", err)
			res.Err = err
			res.OffendingRow = row
			return res
		}
		res.Results = append(res.Results, val)
		res.Inputs = append(res.Inputs, row)
	}
	return res
}

// lastDefined returns the most recent defined result, if any.
func lastDefined(results []cty.Value) (cty.Value, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i] != cty.NilVal {
			return results[i], true
		}
	}
	return cty.NilVal, false
}

// contributingRun returns the maximal suffix of defined results since the
// last undefined (blank/comment) result. An undefined result resets the run.
func contributingRun(results []cty.Value) []cty.Value {
	start := len(results)
	for start > 0 && results[start-1] != cty.NilVal {
		start--
	}
	return results[start:]
}

// bindTotal binds the rolling-total identifier for the next row: unbound for
// zero contributors, the single value for one, the engine sum otherwise. A
// failed sum is returned to the caller to decide whether it matters.
func bindTotal(results []cty.Value, sc *scope.Scope, eng *engine.Engine) error {
	run := contributingRun(results)
	switch len(run) {
	case 0:
		sc.Delete(preprocess.TotalIdent)
		return nil
	case 1:
		sc.Set(preprocess.TotalIdent, run[0])
		return nil
	}
	sum, err := eng.Add(run...)
	if err != nil {
		return err
	}
	sc.Set(preprocess.TotalIdent, sum)
	return nil
}
