// Package engine wraps the HCL expression syntax and cty value system into
// the small algebra surface the evaluators consume: evaluate a line of text
// against a scope, add values, format a value for display, and report which
// identifiers a line references.
//
// HCL expressions are pure, so the statement forms a calc row needs —
// "name = expr" assignment and "name(params) = expr" function definition —
// are recognized here and the right-hand side delegated to hclsyntax.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/calcnote/internal/ctxlog"
	"github.com/vk/calcnote/internal/scope"
)

// exprFilename is the synthetic filename reported in engine diagnostics.
const exprFilename = "calc"

var (
	// assignRe matches "name = expr". The [^=] guard keeps comparison
	// operators like == from being read as assignments.
	assignRe = regexp.MustCompile(`^\s*(\$?[A-Za-z_]\w*)\s*=\s*([^=].*|)$`)

	// funcDefRe matches "name(a, b) = expr".
	funcDefRe = regexp.MustCompile(`^\s*(\$?[A-Za-z_]\w*)\s*\(([^()]*)\)\s*=\s*([^=].*|)$`)

	identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

	// globalRefRe finds persistent-prefix identifiers for mangling.
	globalRefRe = regexp.MustCompile(`\$([A-Za-z_]\w*)`)

	lexicalIdentRe = regexp.MustCompile(`\$?[A-Za-z_]\w*`)
)

// Engine evaluates single expressions. It is stateless apart from its builtin
// function table and safe to share across scopes and notes.
type Engine struct {
	funcs map[string]function.Function
}

// New returns an Engine with the builtin function table.
func New() *Engine {
	return &Engine{funcs: builtins()}
}

// Evaluate evaluates one line of text against sc. Assignments and function
// definitions bind into sc as a side effect; an assignment yields the
// assigned value, a function definition yields no value. Blank and
// comment-only lines yield cty.NilVal, the undefined result.
func (e *Engine) Evaluate(ctx context.Context, text string, sc *scope.Scope) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	code := strings.TrimSpace(stripComment(text))
	if code == "" {
		return cty.NilVal, nil
	}

	if m := funcDefRe.FindStringSubmatch(code); m != nil {
		if params, ok := splitParams(m[2]); ok {
			logger.Debug("Defining function.", "name", m[1], "params", params)
			if err := e.defineFunction(m[1], params, m[3], sc); err != nil {
				return cty.NilVal, err
			}
			return cty.NilVal, nil
		}
	}

	if m := assignRe.FindStringSubmatch(code); m != nil {
		val, err := e.evalExpr(m[2], sc)
		if err != nil {
			return cty.NilVal, err
		}
		logger.Debug("Binding assignment.", "name", m[1])
		sc.Set(m[1], val)
		return val, nil
	}

	return e.evalExpr(code, sc)
}

// evalExpr parses and evaluates a bare expression against sc.
func (e *Engine) evalExpr(text string, sc *scope.Scope) (cty.Value, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(mangleText(text)), exprFilename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("parse %q: %w", strings.TrimSpace(text), diags)
	}
	val, diags := expr.Value(sc.EvalContext(e.funcs))
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluate %q: %w", strings.TrimSpace(text), diags)
	}
	return val, nil
}

// defineFunction parses body once and binds a late-binding closure under name.
// The captured scope pointer stays live, so the body may reference bindings
// created after the definition; missing ones surface at call time.
func (e *Engine) defineFunction(name string, params []string, body string, sc *scope.Scope) error {
	expr, diags := hclsyntax.ParseExpression([]byte(mangleText(body)), exprFilename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return fmt.Errorf("parse body of %s: %w", name, diags)
	}

	fnParams := make([]function.Parameter, len(params))
	for i, p := range params {
		fnParams[i] = function.Parameter{
			Name:             p,
			Type:             cty.DynamicPseudoType,
			AllowDynamicType: true,
		}
	}

	fn := function.New(&function.Spec{
		Params: fnParams,
		Type: func([]cty.Value) (cty.Type, error) {
			return cty.DynamicPseudoType, nil
		},
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			child := sc.EvalContext(e.funcs).NewChild()
			child.Variables = make(map[string]cty.Value, len(args))
			for i, p := range params {
				child.Variables[p] = args[i]
			}
			val, diags := expr.Value(child)
			if diags.HasErrors() {
				return cty.NilVal, diags
			}
			return val, nil
		},
	})

	sc.SetFunc(name, fn)
	return nil
}

// Add sums values numerically. Any undefined, unknown, or non-convertible
// contributor is an error, never a panic.
func (e *Engine) Add(vals ...cty.Value) (cty.Value, error) {
	if len(vals) == 0 {
		return cty.NilVal, nil
	}
	sum := new(big.Float)
	for _, v := range vals {
		if v == cty.NilVal || v.IsNull() {
			return cty.NilVal, fmt.Errorf("cannot add an undefined value")
		}
		if !v.IsKnown() {
			return cty.NilVal, fmt.Errorf("cannot add an unknown value")
		}
		n, err := convert.Convert(v, cty.Number)
		if err != nil {
			return cty.NilVal, fmt.Errorf("cannot add %s value: %w", v.Type().FriendlyName(), err)
		}
		sum.Add(sum, n.AsBigFloat())
	}
	return cty.NumberVal(sum), nil
}

// References reports the set of identifiers a line of text references, keyed
// by their author-facing spelling (persistent-prefix names demangled back to
// their $ form). Assignment targets are not references. Text that does not
// parse falls back to a lexical scan so the magic-variable guards still work
// on malformed rows.
func (e *Engine) References(text string) map[string]bool {
	code := strings.TrimSpace(stripComment(text))
	if m := funcDefRe.FindStringSubmatch(code); m != nil {
		if _, ok := splitParams(m[2]); ok {
			code = m[3]
		}
	} else if m := assignRe.FindStringSubmatch(code); m != nil {
		code = m[2]
	}

	refs := make(map[string]bool)
	expr, diags := hclsyntax.ParseExpression([]byte(mangleText(code)), exprFilename, hcl.Pos{Line: 1, Column: 1})
	if !diags.HasErrors() {
		for _, traversal := range expr.Variables() {
			refs[demangle(traversal.RootName())] = true
		}
		return refs
	}
	for _, m := range lexicalIdentRe.FindAllString(code, -1) {
		refs[m] = true
	}
	return refs
}

// Magnitude unwraps a unit-bearing engine value (an object carrying a
// "magnitude" attribute) to its plain magnitude. Other values are returned
// unchanged with ok=false.
func Magnitude(v cty.Value) (cty.Value, bool) {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return v, false
	}
	t := v.Type()
	if t.IsObjectType() && t.HasAttribute("magnitude") {
		return v.GetAttr("magnitude"), true
	}
	return v, false
}

// mangleText rewrites $-prefixed identifiers to engine-safe names before
// parsing. The rewrite matches scope.Mangle so references resolve against the
// projected EvalContext.
func mangleText(text string) string {
	return globalRefRe.ReplaceAllString(text, "__g_$1")
}

// demangle maps an engine-safe identifier back to its author-facing spelling.
func demangle(name string) string {
	if rest, ok := strings.CutPrefix(name, "__g_"); ok {
		return scope.GlobalPrefix + rest
	}
	return name
}

// stripComment removes a trailing # comment, honoring double-quoted strings.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '#':
			if !inString {
				return line[:i]
			}
		}
	}
	return line
}

// splitParams parses a parameter list; ok is false if any entry is not a
// plain identifier.
func splitParams(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	params := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !identRe.MatchString(p) {
			return nil, false
		}
		params[i] = p
	}
	return params, true
}
