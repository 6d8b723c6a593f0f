package note

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/calcnote/internal/blockeval"
	"github.com/vk/calcnote/internal/ctxlog"
	"github.com/vk/calcnote/internal/engine"
	"github.com/vk/calcnote/internal/frontmatter"
	"github.com/vk/calcnote/internal/globals"
	"github.com/vk/calcnote/internal/preprocess"
)

// Evaluator renders the calc blocks of parsed notes. One Evaluator may serve
// many notes; per-note state lives in the globals cache behind its handle.
type Evaluator struct {
	Engine *engine.Engine
	Cache  globals.Cache
	Rules  []preprocess.Rule
	// ForceAll processes every frontmatter property even without a control
	// property.
	ForceAll bool
}

// BlockReport pairs a block's preprocessing output with its evaluation
// outcome, for the host's display layer.
type BlockReport struct {
	Block Block
	Pre   preprocess.Result
	Eval  *blockeval.Result
}

// Render evaluates every calc block of doc in document order and returns the
// note text with computed values written back into insertion annotations,
// along with per-block reports and the frontmatter warnings.
func (ev *Evaluator) Render(ctx context.Context, noteID string, doc *Document) (string, []BlockReport, []frontmatter.Warning, error) {
	logger := ctxlog.FromContext(ctx)

	// One resolution of the property bag; each block gets its own clone so
	// row bindings never leak between blocks.
	base, warnings := frontmatter.Resolve(ctx, doc.Frontmatter, ev.Engine, frontmatter.Options{
		ForceAll: ev.ForceAll,
		Rules:    ev.Rules,
	})

	out := append([]string(nil), doc.Lines...)
	reports := make([]BlockReport, 0, len(doc.Blocks))

	for _, block := range doc.Blocks {
		sc := base.Clone()
		cached, err := ev.Cache.Get(noteID)
		if err != nil {
			return "", nil, warnings, fmt.Errorf("load note globals: %w", err)
		}
		sc.Merge(cached)

		pre := preprocess.Process(block.Raw(), ev.Rules)
		res := blockeval.Evaluate(ctx, pre.Source, sc, ev.Engine)
		if res.Err != nil {
			logger.Debug("Block stopped at failing row.", "note", noteID, "row", res.OffendingRow)
		}

		if err := globals.Merge(noteID, sc.Globals(), ev.Cache); err != nil {
			return "", nil, warnings, fmt.Errorf("persist note globals: %w", err)
		}

		for _, idx := range pre.Info.InsertionLines {
			if idx >= len(res.Results) {
				continue
			}
			line := block.Start + 1 + idx
			out[line] = preprocess.WriteInsertion(out[line], ev.Engine.Format(res.Results[idx], engine.DefaultFormat))
		}

		reports = append(reports, BlockReport{Block: block, Pre: pre, Eval: res})
	}

	return strings.Join(out, "\n"), reports, warnings, nil
}

// FormatReport renders one block's outcome as display lines, honoring hidden
// rows, the hide-non-emitters flag, and the emitter selection.
func FormatReport(eng *engine.Engine, rep BlockReport) []string {
	hidden := make(map[int]bool, len(rep.Pre.Info.HiddenLines))
	for _, idx := range rep.Pre.Info.HiddenLines {
		hidden[idx] = true
	}
	emitters := make(map[int]bool, len(rep.Pre.Info.EmitterLines))
	for _, idx := range rep.Pre.Info.EmitterLines {
		emitters[idx] = true
	}

	var lines []string
	for i, input := range rep.Eval.Inputs {
		if hidden[i] {
			continue
		}
		if rep.Pre.Info.HideRows && !emitters[i] {
			continue
		}
		formatted := eng.Format(rep.Eval.Results[i], engine.DefaultFormat)
		if formatted == "" {
			lines = append(lines, input)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s => %s", strings.TrimRight(input, " \t"), formatted))
	}
	if rep.Eval.Err != nil {
		lines = append(lines, fmt.Sprintf("error in %q: %v", strings.TrimSpace(rep.Eval.OffendingRow), rep.Eval.Err))
	}
	return lines
}
