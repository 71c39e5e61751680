package value

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAeq(t *testing.T) {
	assert.True(t, Aeq(Of(5), Of("5")))
	assert.True(t, Aeq(Of(5.0), Of("5")))
	assert.True(t, Aeq(UndefinedValue, NullValue))
	assert.False(t, Aeq(Of([]any{1, 2, 3}), Of([]any{1, 2})))
	assert.True(t, Aeq(Of([]any{1, 2, 3}), Of([]any{1, "2", 3.0})))
	assert.True(t, Aeq(Of(map[string]any{"a": 1}), Of(map[string]any{"z": 4})))
	assert.False(t, Aeq(Of(1), Of(11)))
	assert.True(t, Aeq(Of(math.NaN()), Of(math.NaN())))
	assert.False(t, Aeq(Of(true), Of(1)))
	assert.False(t, Aeq(Of(""), Of(0)))

	d1 := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.In(time.FixedZone("x", 3600))
	assert.True(t, Aeq(Of(d1), Of(d2)))
	assert.False(t, Aeq(Of(d1), Of(d1.Add(time.Second))))
}

func TestCompareClasses(t *testing.T) {
	now := time.Now()
	ordered := []any{
		nil,
		false,
		true,
		-3,
		"2",
		7.2,
		"11",
		math.Inf(1),
		math.NaN(),
		"",
		"abc",
		"b",
		now,
		now.Add(time.Hour),
		[]any{1},
		[]any{1, 2},
		[]any{"a"},
		map[string]any{"k": 1},
	}
	for i := 0; i < len(ordered)-1; i++ {
		a, b := Of(ordered[i]), Of(ordered[i+1])
		assert.Equal(t, -1, Compare(a, b), "%v < %v", ordered[i], ordered[i+1])
		assert.Equal(t, 1, Compare(b, a), "%v > %v", ordered[i+1], ordered[i])
	}
}

func TestCompareIsConsistentForSorting(t *testing.T) {
	vals := []any{nil, "asdf", "11", 2, "1", "4", 7.2, "5", 4, "18.1", math.NaN(), math.NaN(), true}
	sorted := slices.Clone(vals)
	slices.SortStableFunc(sorted, func(a, b any) int { return CompareAny(a, b) })

	for i := 0; i < len(sorted)-1; i++ {
		require.LessOrEqual(t, CompareAny(sorted[i], sorted[i+1]), 0)
	}
	// NaN sorts after every real number but before strings.
	assert.True(t, Of(sorted[len(sorted)-2]).IsNaN())
	assert.Equal(t, "asdf", sorted[len(sorted)-1])
}

func TestNumericStrings(t *testing.T) {
	cases := map[string]bool{
		"5":         true,
		" 5 ":       true,
		"-1.5e3":    true,
		"Infinity":  true,
		"-Infinity": true,
		"":          false,
		"   ":       false,
		"NaN":       false,
		"inf":       false,
		"5px":       false,
		"asdf":      false,
	}
	for s, want := range cases {
		assert.Equal(t, want, FromString(s).IsNumeric(), s)
	}
}

func TestLessGreaterInclusive(t *testing.T) {
	assert.True(t, Less(Of(4), Of("4"), true))
	assert.False(t, Less(Of(4), Of("4"), false))
	assert.True(t, Greater(Of("asdf"), Of(100), false))
	assert.True(t, Less(NullValue, Of(false), false))
}

func TestStrictEqual(t *testing.T) {
	assert.True(t, StrictEqual(Of(4), Of(4.0)))
	assert.False(t, StrictEqual(Of(4), Of("4")))
	assert.False(t, StrictEqual(Of(math.NaN()), Of(math.NaN())))
	assert.True(t, StrictEqual(Of([]string{"a", "b"}), Of([]any{"a", "b"})))
	assert.False(t, StrictEqual(Of(map[string]any{"a": 1}), Of(map[string]any{"a": 2})))
	assert.True(t, StrictEqual(Of(map[string]any{"a": []any{1}}), Of(map[string]any{"a": []int{1}})))
	assert.False(t, StrictEqual(UndefinedValue, NullValue))
}

func TestKeys(t *testing.T) {
	k, ok := Of(5).UniqueKey()
	require.True(t, ok)
	k2, _ := Of("5").UniqueKey()
	assert.Equal(t, k, k2)

	_, ok = NullValue.UniqueKey()
	assert.False(t, ok)
	_, ok = Of([]any{1}).UniqueKey()
	assert.False(t, ok)

	s, ok := Of(1.5).KeyString()
	require.True(t, ok)
	assert.Equal(t, "1.5", s)
}
