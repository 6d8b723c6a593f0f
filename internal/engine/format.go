package engine

import (
	"strconv"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// FormatSpec controls display formatting of a value.
type FormatSpec struct {
	// Precision is the number of fraction digits for numbers; negative means
	// automatic (integers print bare, other numbers print shortest).
	Precision int
}

// DefaultFormat is the automatic formatting used by the host renderer.
var DefaultFormat = FormatSpec{Precision: -1}

// Format renders a value for display. Undefined and null values render as the
// empty string; values of structural types fall back to their JSON form.
func (e *Engine) Format(v cty.Value, spec FormatSpec) string {
	if v == cty.NilVal || v.IsNull() {
		return ""
	}
	if !v.IsKnown() {
		return "?"
	}
	switch v.Type() {
	case cty.Number:
		bf := v.AsBigFloat()
		if spec.Precision >= 0 {
			return bf.Text('f', spec.Precision)
		}
		if bf.IsInt() {
			return bf.Text('f', 0)
		}
		f, _ := bf.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case cty.String:
		return v.AsString()
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(b)
}
