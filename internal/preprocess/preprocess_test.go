package preprocess_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/calcnote/internal/preprocess"
)

func TestProcess_NoDirectivesIsIdentity(t *testing.T) {
	raw := "a = 1\nb = a + 1\nb * 3"
	res := preprocess.Process(raw, nil)

	require.Equal(t, strings.Split(raw, "\n"), res.RawRows)
	require.Equal(t, raw, res.Source)
	require.Empty(t, res.Info.EmitterLines)
	require.Empty(t, res.Info.InsertionLines)
	require.Empty(t, res.Info.HiddenLines)
	require.False(t, res.Info.HideRows)
}

func TestProcess_Deterministic(t *testing.T) {
	raw := "x = 1 =>\n[y::3] = x\n@sum"
	rules := []preprocess.Rule{{From: "€", To: "eur "}}
	first := preprocess.Process(raw, rules)
	second := preprocess.Process(raw, rules)
	require.Equal(t, first, second)
}

func TestProcess_EmitterMarker(t *testing.T) {
	res := preprocess.Process("apples = 2\n2 + 3 =>\n", nil)

	require.Equal(t, []int{1}, res.Info.EmitterLines)
	require.Equal(t, "apples = 2\n2 + 3\n", res.Source)
	require.Equal(t, []string{"apples = 2", "2 + 3 =>", ""}, res.RawRows)
}

func TestProcess_EmitterMarkerInsideCommentIgnored(t *testing.T) {
	res := preprocess.Process("1 + 1 # not an emitter =>", nil)
	require.Empty(t, res.Info.EmitterLines)
	require.Equal(t, "1 + 1 # not an emitter =>", res.Source)
}

func TestProcess_EmitterMarkerBeforeComment(t *testing.T) {
	res := preprocess.Process("1 + 1 => # emits", nil)
	require.Equal(t, []int{0}, res.Info.EmitterLines)
	require.Equal(t, "1 + 1 # emits", res.Source)
}

func TestProcess_InsertionAnnotation(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"bare name", "[total] = a + b", "total = a + b"},
		{"with previous literal", "[total::12] = a + b", "total = a + b"},
		{"global name", "[$t::5] = 1", "$t = 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := preprocess.Process(tc.row, nil)
			require.Equal(t, tc.want, res.Source)
			require.Equal(t, []int{0}, res.Info.InsertionLines)
		})
	}
}

func TestProcess_MagicReferences(t *testing.T) {
	res := preprocess.Process("@Sum + @total\n@PREV + 1", nil)
	require.Equal(t, "__total + __total\n__prev + 1", res.Source)
}

func TestProcess_HideRowsDirective(t *testing.T) {
	res := preprocess.Process("1 + 1\n@hiderows\n2 + 2 =>", nil)
	require.True(t, res.Info.HideRows)
	require.Equal(t, []int{1}, res.Info.HiddenLines)
	require.Equal(t, []int{2}, res.Info.EmitterLines)
	require.Equal(t, "1 + 1\n\n2 + 2", res.Source)
}

func TestProcess_UnitDirectiveOnlyHides(t *testing.T) {
	res := preprocess.Process("@units\n1 + 1", nil)
	require.Equal(t, []int{0}, res.Info.HiddenLines)
	require.False(t, res.Info.HideRows)
	require.Equal(t, "\n1 + 1", res.Source)
}

func TestProcess_MalformedDirectiveIsLiteral(t *testing.T) {
	// A broken annotation never fails preprocessing; it stays literal and
	// surfaces later as an engine error.
	raw := "[unclosed::3 = 1"
	res := preprocess.Process(raw, nil)
	require.Equal(t, raw, res.Source)
	require.Empty(t, res.Info.InsertionLines)
}

func TestProcess_RulesApplyLast(t *testing.T) {
	rules := []preprocess.Rule{{From: "€", To: "eur"}}
	res := preprocess.Process("price = 5€ =>", rules)
	require.Equal(t, "price = 5eur", res.Source)
	require.Equal(t, []int{0}, res.Info.EmitterLines)
}

func TestWriteInsertion(t *testing.T) {
	require.Equal(t, "[total::42] = a", preprocess.WriteInsertion("[total::12] = a", "42"))
	require.Equal(t, "[total::42] = a", preprocess.WriteInsertion("[total] = a", "42"))
	require.Equal(t, "no annotation", preprocess.WriteInsertion("no annotation", "42"))
}
