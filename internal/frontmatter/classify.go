// Package frontmatter converts an external property bag into scope bindings.
// Values are classified at the boundary into a closed sum of kinds so the
// coercion switch in the resolver is exhaustive, and string-valued properties
// are resolved with a fixed-point worklist that tolerates forward references.
package frontmatter

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Kind is the closed classification of a property value.
type Kind int

const (
	// KindNumber is a native numeric value.
	KindNumber Kind = iota
	// KindText is a string, treated as an expression to evaluate.
	KindText
	// KindList is a list-like value, reduced to its last element (the bag
	// models append-only metadata histories).
	KindList
	// KindFunction is an engine function already present in the bag.
	KindFunction
	// KindEngineValue is an engine value already present in the bag.
	KindEngineValue
	// KindStructured is any nested object shape; it warns and is skipped.
	KindStructured
)

// Property is a classified bag entry.
type Property struct {
	Key  string
	Kind Kind

	Number cty.Value
	Text   string
	List   []any
	Value  cty.Value
	Fn     function.Function
	Raw    any
}

// classify maps one raw bag value onto the closed sum. It never fails; shapes
// it does not recognize are Structured.
func classify(key string, raw any) Property {
	p := Property{Key: key, Raw: raw}
	switch v := raw.(type) {
	case int:
		p.Kind, p.Number = KindNumber, cty.NumberIntVal(int64(v))
	case int64:
		p.Kind, p.Number = KindNumber, cty.NumberIntVal(v)
	case uint64:
		p.Kind, p.Number = KindNumber, cty.NumberUIntVal(v)
	case float32:
		p.Kind, p.Number = KindNumber, cty.NumberFloatVal(float64(v))
	case float64:
		p.Kind, p.Number = KindNumber, cty.NumberFloatVal(v)
	case bool:
		p.Kind, p.Value = KindEngineValue, cty.BoolVal(v)
	case string:
		p.Kind, p.Text = KindText, v
	case []any:
		p.Kind, p.List = KindList, v
	case cty.Value:
		p.Kind, p.Value = KindEngineValue, v
	case function.Function:
		p.Kind, p.Fn = KindFunction, v
	default:
		p.Kind = KindStructured
	}
	return p
}

// rawString renders the raw value for warning reports.
func rawString(raw any) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}
