package frontmatter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/calcnote/internal/engine"
	"github.com/vk/calcnote/internal/frontmatter"
	"github.com/vk/calcnote/internal/scope"
)

func resolve(t *testing.T, bag map[string]any, opts frontmatter.Options) (*scope.Scope, []frontmatter.Warning) {
	t.Helper()
	return frontmatter.Resolve(context.Background(), bag, engine.New(), opts)
}

func requireBoundNumber(t *testing.T, sc *scope.Scope, key string, want int64) {
	t.Helper()
	v, ok := sc.Get(key)
	require.True(t, ok, "expected %q to be bound", key)
	got, _ := v.AsBigFloat().Int64()
	require.Equal(t, want, got)
}

func TestResolve_NothingSelectedByDefault(t *testing.T) {
	sc, warnings := resolve(t, map[string]any{"a": 1, "b": "2"}, frontmatter.Options{})
	require.Empty(t, warnings)
	require.Zero(t, sc.Len())
}

func TestResolve_ControlPropertyAll(t *testing.T) {
	sc, warnings := resolve(t, map[string]any{"calc": "all", "a": 1, "b": "a + 1"}, frontmatter.Options{})
	require.Empty(t, warnings)
	requireBoundNumber(t, sc, "a", 1)
	requireBoundNumber(t, sc, "b", 2)
	_, bound := sc.Get("calc")
	require.False(t, bound, "control property itself is never bound")
}

func TestResolve_ControlPropertyNone(t *testing.T) {
	sc, _ := resolve(t, map[string]any{"calc": "none", "a": 1}, frontmatter.Options{})
	require.Zero(t, sc.Len())
}

func TestResolve_ControlPropertySingleName(t *testing.T) {
	sc, _ := resolve(t, map[string]any{"calc": "a", "a": 1, "b": 2}, frontmatter.Options{})
	requireBoundNumber(t, sc, "a", 1)
	_, bound := sc.Get("b")
	require.False(t, bound)
}

func TestResolve_ControlPropertyList(t *testing.T) {
	sc, _ := resolve(t, map[string]any{"calc": []any{"a", "c"}, "a": 1, "b": 2, "c": 3}, frontmatter.Options{})
	requireBoundNumber(t, sc, "a", 1)
	requireBoundNumber(t, sc, "c", 3)
	_, bound := sc.Get("b")
	require.False(t, bound)
}

func TestResolve_ForceAllWithoutControl(t *testing.T) {
	sc, _ := resolve(t, map[string]any{"a": 1}, frontmatter.Options{ForceAll: true})
	requireBoundNumber(t, sc, "a", 1)
}

func TestResolve_GlobalPrefixAlwaysSelected(t *testing.T) {
	sc, _ := resolve(t, map[string]any{"calc": "none", "$rate": 7, "plain": 1}, frontmatter.Options{})
	requireBoundNumber(t, sc, "$rate", 7)
	_, bound := sc.Get("plain")
	require.False(t, bound)
}

func TestResolve_FixedPointOrderIndependence(t *testing.T) {
	// b is defined after a references it; the worklist resolves both.
	sc, warnings := resolve(t, map[string]any{"calc": "all", "a": "b + 1", "b": "5"}, frontmatter.Options{})
	require.Empty(t, warnings)
	requireBoundNumber(t, sc, "a", 6)
	requireBoundNumber(t, sc, "b", 5)
}

func TestResolve_FixedPointChain(t *testing.T) {
	bag := map[string]any{"calc": "all", "a": "b + 1", "b": "c + 1", "c": "d + 1", "d": "1"}
	sc, warnings := resolve(t, bag, frontmatter.Options{})
	require.Empty(t, warnings)
	requireBoundNumber(t, sc, "a", 4)
}

func TestResolve_NeverThrows(t *testing.T) {
	sc, warnings := resolve(t, map[string]any{"calc": "all", "bad": "@@@", "ok": "1+1"}, frontmatter.Options{})
	requireBoundNumber(t, sc, "ok", 2)
	require.Len(t, warnings, 1)
	require.Equal(t, "bad", warnings[0].Key)
	require.Equal(t, "@@@", warnings[0].RawValue)
	require.NotEmpty(t, warnings[0].Message)
}

func TestResolve_StructuredValueWarns(t *testing.T) {
	bag := map[string]any{"calc": "all", "nested": map[string]any{"x": 1}, "ok": 1}
	sc, warnings := resolve(t, bag, frontmatter.Options{})
	requireBoundNumber(t, sc, "ok", 1)
	require.Len(t, warnings, 1)
	require.Equal(t, "nested", warnings[0].Key)
}

func TestResolve_ListTakesLastElement(t *testing.T) {
	bag := map[string]any{"calc": "all", "weights": []any{70, 71, 72}, "expr": []any{"1", "2 + 2"}}
	sc, warnings := resolve(t, bag, frontmatter.Options{})
	require.Empty(t, warnings)
	requireBoundNumber(t, sc, "weights", 72)
	requireBoundNumber(t, sc, "expr", 4)
}

func TestResolve_EmptyListBindsNothing(t *testing.T) {
	sc, warnings := resolve(t, map[string]any{"calc": "all", "empty": []any{}}, frontmatter.Options{})
	require.Empty(t, warnings)
	_, bound := sc.Get("empty")
	require.False(t, bound)
}

func TestResolve_EngineValueUnwrapsMagnitude(t *testing.T) {
	unitVal := cty.ObjectVal(map[string]cty.Value{
		"magnitude": cty.NumberIntVal(30),
		"unit":      cty.StringVal("km"),
	})
	sc, _ := resolve(t, map[string]any{"calc": "all", "dist": unitVal}, frontmatter.Options{})
	requireBoundNumber(t, sc, "dist", 30)
}

func TestResolve_FunctionHeaderKey(t *testing.T) {
	bag := map[string]any{"calc": "all", "double(n)": "n * 2"}
	sc, warnings := resolve(t, bag, frontmatter.Options{})
	require.Empty(t, warnings)
	_, ok := sc.Func("double")
	require.True(t, ok, "function bound under its bare name")

	eng := engine.New()
	v, err := eng.Evaluate(context.Background(), "double(4)", sc)
	require.NoError(t, err)
	got, _ := v.AsBigFloat().Int64()
	require.Equal(t, int64(8), got)
}

func TestResolve_KeysOnly(t *testing.T) {
	bag := map[string]any{"calc": "all", "a": "1 + 1", "b": 2}
	sc, warnings := resolve(t, bag, frontmatter.Options{KeysOnly: true})
	require.Empty(t, warnings)
	a, ok := sc.Get("a")
	require.True(t, ok)
	require.False(t, a.IsKnown(), "keys-only binds placeholders, not values")
	_, ok = sc.Get("b")
	require.True(t, ok)
}

func TestResolve_BaseScopeIsClonedNotMutated(t *testing.T) {
	base := scope.New()
	sc, _ := resolve(t, map[string]any{"calc": "all", "a": 1}, frontmatter.Options{Base: base})
	requireBoundNumber(t, sc, "a", 1)
	require.Zero(t, base.Len())
}

func TestResolve_BaseBindingsVisibleToExpressions(t *testing.T) {
	base := scope.New()
	base.Set("tax", cty.NumberIntVal(2))
	sc, warnings := resolve(t, map[string]any{"calc": "all", "total": "10 * tax"}, frontmatter.Options{Base: base})
	require.Empty(t, warnings)
	requireBoundNumber(t, sc, "total", 20)
}
