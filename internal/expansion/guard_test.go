package expansion_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlayer/langbridge/internal/expansion"
)

func TestGuard_PushPopDepth(t *testing.T) {
	t.Parallel()

	g := expansion.New(20, nil, nil)
	g.Push("A")
	g.Push("B")
	assert.Equal(t, 2, g.Depth())

	g.Pop()
	assert.Equal(t, 1, g.Depth())

	g.Pop()
	g.Pop() // no-op on empty stack
	assert.Equal(t, 0, g.Depth())
}

func TestMatchPattern_SelfReferentialGeneric(t *testing.T) {
	t.Parallel()

	name, maxDepth, ok := expansion.MatchPattern("Box<Box<int>>")
	require.True(t, ok)
	assert.Equal(t, "self-referential generic", name)
	assert.Equal(t, 15, maxDepth)
}

func TestMatchPattern_NoMatch(t *testing.T) {
	t.Parallel()

	_, _, ok := expansion.MatchPattern("PlainStruct")
	assert.False(t, ok)
}

func TestCheck_TruncatesAtEffectiveMax(t *testing.T) {
	t.Parallel()

	g := expansion.New(100, nil, nil)

	info := g.Check("Box<Box<int>>", 15)
	assert.True(t, info.Truncated)
	assert.Equal(t, 15, info.MaxDepth, "pattern max (15) should win over the higher configured max")
}

func TestCheck_NotTruncatedBelowMax(t *testing.T) {
	t.Parallel()

	g := expansion.New(100, nil, nil)

	info := g.Check("PlainStruct", 5)
	assert.False(t, info.Truncated)
	assert.Equal(t, 100, info.MaxDepth)
}

func TestCheck_ConfiguredMaxWinsWhenLower(t *testing.T) {
	t.Parallel()

	g := expansion.New(3, nil, nil)

	info := g.Check("List<Node<int>>", 3) // linked container pattern, max 40
	assert.True(t, info.Truncated)
	assert.Equal(t, 3, info.MaxDepth)
}

func TestCheck_IncrementsTruncationCounterAndFiresObserver(t *testing.T) {
	t.Parallel()

	var observed expansion.TypeExpansionInfo

	g := expansion.New(1, func(info expansion.TypeExpansionInfo) error {
		observed = info
		return errors.New("boom") // observer errors must never propagate
	}, nil)

	g.Push("Outer")
	info := g.Check("Inner", 1)

	require.True(t, info.Truncated)
	assert.Equal(t, 1, g.TruncationCount())
	assert.Equal(t, "Inner", observed.TypeName)
	assert.Equal(t, []string{"Outer"}, observed.Path)
}

func TestDetectCycle_FindsRepeatedNameWithinWindow(t *testing.T) {
	t.Parallel()

	g := expansion.New(50, nil, nil)
	for _, n := range []string{"A", "B", "C", "B"} {
		g.Push(n)
	}

	name, ok := g.DetectCycle(10)
	require.True(t, ok)
	assert.Equal(t, "B", name)
}

func TestDetectCycle_NoneFound(t *testing.T) {
	t.Parallel()

	g := expansion.New(50, nil, nil)
	for _, n := range []string{"A", "B", "C"} {
		g.Push(n)
	}

	_, ok := g.DetectCycle(10)
	assert.False(t, ok)
}

func TestDetectCycle_OnlyConsidersLastWindowEntries(t *testing.T) {
	t.Parallel()

	g := expansion.New(50, nil, nil)
	for _, n := range []string{"A", "X", "Y", "Z", "A"} {
		g.Push(n)
	}

	// "A" repeats only if we look past the window; within window=3 it should not be found.
	_, ok := g.DetectCycle(3)
	assert.False(t, ok)
}

func TestFormatReport_IncludesPathAndHint(t *testing.T) {
	t.Parallel()

	report := expansion.FormatReport(expansion.TypeExpansionInfo{
		TypeName:  "Box<Box<int>>",
		Depth:     15,
		MaxDepth:  15,
		Truncated: true,
		Path:      []string{"Outer", "Box"},
		Pattern:   "self-referential generic",
	})

	assert.Contains(t, report, "Box<Box<int>>")
	assert.Contains(t, report, "Outer -> Box")
	assert.Contains(t, report, "self-referential generic")
	assert.Contains(t, report, "hint")
}
