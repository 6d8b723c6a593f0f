package frontmatter

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/calcnote/internal/ctxlog"
	"github.com/vk/calcnote/internal/engine"
	"github.com/vk/calcnote/internal/preprocess"
	"github.com/vk/calcnote/internal/scope"
)

// ControlKey is the reserved property selecting what the resolver processes:
// "all", "none", one property name, or a list of names.
const ControlKey = "calc"

// Warning reports a property that could not be coerced. Warnings accumulate;
// one bad property never blocks the others.
type Warning struct {
	Key      string
	RawValue string
	Message  string
}

// Options configures Resolve.
type Options struct {
	// Base, when non-nil, seeds the produced scope. It is cloned, never
	// mutated.
	Base *scope.Scope
	// ForceAll selects every property when no control property is present.
	ForceAll bool
	// Rules are the substitution rules applied to string values before
	// evaluation, same as in preprocessing.
	Rules []preprocess.Rule
	// KeysOnly binds every selected key to an undefined placeholder without
	// evaluating, for callers that need name visibility only.
	KeysOnly bool
}

// funcHeaderRe matches a property key shaped like a function header.
var funcHeaderRe = regexp.MustCompile(`^\s*\$?[A-Za-z_]\w*\s*\([^()]*\)\s*$`)

// pendingProp is a string-valued property awaiting fixed-point evaluation.
type pendingProp struct {
	key  string
	text string
}

// Resolve converts bag into scope bindings. Per-property coercion problems
// become warnings, never errors.
func Resolve(ctx context.Context, bag map[string]any, eng *engine.Engine, opts Options) (*scope.Scope, []Warning) {
	logger := ctxlog.FromContext(ctx)

	sc := scope.New()
	if opts.Base != nil {
		sc = opts.Base.Clone()
	}

	selected := selectKeys(bag, opts.ForceAll)
	logger.Debug("Selected frontmatter properties.", "count", len(selected))

	if opts.KeysOnly {
		for _, key := range selected {
			sc.Set(key, cty.DynamicVal)
		}
		return sc, nil
	}

	var warnings []Warning
	var pending []pendingProp

	for _, key := range selected {
		p, ok := reduceList(classify(key, bag[key]))
		if !ok {
			continue
		}
		switch p.Kind {
		case KindNumber:
			sc.Set(key, p.Number)
		case KindEngineValue:
			if mag, ok := engine.Magnitude(p.Value); ok {
				sc.Set(key, mag)
			} else {
				sc.Set(key, p.Value)
			}
		case KindFunction:
			sc.SetFunc(key, p.Fn)
		case KindText:
			pending = append(pending, pendingProp{key: key, text: p.Text})
		case KindStructured:
			warnings = append(warnings, Warning{
				Key:      key,
				RawValue: rawString(p.Raw),
				Message:  "structured value cannot be evaluated",
			})
		}
	}

	// Fixed point: attempt every still-pending expression against the
	// current scope, repeating until a full pass makes zero progress. Each
	// pass resolves at least one link of the worst dependency chain, so the
	// loop is bounded by the worklist size.
	for len(pending) > 0 {
		progress := false
		var remaining []pendingProp
		for _, p := range pending {
			if err := evalProperty(ctx, p, sc, eng, opts.Rules); err != nil {
				remaining = append(remaining, p)
				continue
			}
			progress = true
		}
		pending = remaining
		if !progress {
			break
		}
	}

	// Final pass: anything still unresolvable becomes a warning.
	for _, p := range pending {
		if err := evalProperty(ctx, p, sc, eng, opts.Rules); err != nil {
			logger.Debug("Frontmatter property unresolvable.", "key", p.key, "error", err)
			warnings = append(warnings, Warning{
				Key:      p.key,
				RawValue: p.text,
				Message:  err.Error(),
			})
		}
	}

	return sc, warnings
}

// evalProperty evaluates one string-valued property against sc. A key shaped
// like a function header synthesizes a definition bound under the bare name;
// any other key binds its evaluated value directly.
func evalProperty(ctx context.Context, p pendingProp, sc *scope.Scope, eng *engine.Engine, rules []preprocess.Rule) error {
	text := p.text
	for _, rule := range rules {
		text = strings.ReplaceAll(text, rule.From, rule.To)
	}

	if funcHeaderRe.MatchString(p.key) {
		_, err := eng.Evaluate(ctx, p.key+" = "+text, sc)
		return err
	}

	val, err := eng.Evaluate(ctx, text, sc)
	if err != nil {
		return err
	}
	if val != cty.NilVal {
		sc.Set(p.key, val)
	}
	return nil
}

// reduceList coerces a list-like property to its last element, walking
// through nested lists. ok is false for an empty list, which binds nothing.
func reduceList(p Property) (Property, bool) {
	for p.Kind == KindList {
		if len(p.List) == 0 {
			return p, false
		}
		p = classify(p.Key, p.List[len(p.List)-1])
	}
	return p, true
}

// selectKeys decides which properties the resolver processes. By default
// nothing is selected; the control property or forceAll widen that, and
// persistent-prefix properties are always selected.
func selectKeys(bag map[string]any, forceAll bool) []string {
	selected := make(map[string]bool)

	control, hasControl := bag[ControlKey]
	switch {
	case hasControl:
		switch v := control.(type) {
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "all":
				for key := range bag {
					selected[key] = true
				}
			case "none":
				// explicit nothing
			default:
				if _, ok := bag[v]; ok {
					selected[v] = true
				}
			}
		case []any:
			for _, item := range v {
				if name, ok := item.(string); ok {
					if _, ok := bag[name]; ok {
						selected[name] = true
					}
				}
			}
		}
	case forceAll:
		for key := range bag {
			selected[key] = true
		}
	}

	// Persistent-prefix properties are always in, regardless of the control
	// property.
	for key := range bag {
		if strings.HasPrefix(key, scope.GlobalPrefix) {
			selected[key] = true
		}
	}
	delete(selected, ControlKey)

	keys := make([]string, 0, len(selected))
	for key := range selected {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
