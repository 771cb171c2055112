package shardroute

import (
	"cmp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var intCmp = cmp.Compare[int64]

func closedRange(t *testing.T, lower, upper int64) Range[int64] {
	t.Helper()
	r, ok := ClosedRange(lower, upper, intCmp)
	require.True(t, ok)
	return r
}

func TestRangeContains(t *testing.T) {
	tests := []struct {
		name  string
		r     Range[int64]
		in    []int64
		notIn []int64
	}{
		{"less than", LessThan(int64(5), intCmp), []int64{-100, 4}, []int64{5, 6}},
		{"at most", AtMost(int64(5), intCmp), []int64{4, 5}, []int64{6}},
		{"greater than", GreaterThan(int64(5), intCmp), []int64{6, 100}, []int64{4, 5}},
		{"at least", AtLeast(int64(5), intCmp), []int64{5, 6}, []int64{4}},
		{"closed", closedRange(t, 1, 3), []int64{1, 2, 3}, []int64{0, 4}},
		{"all", AllValues(intCmp), []int64{-1 << 62, 0, 1 << 62}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.in {
				assert.True(t, tt.r.Contains(v), "%s should contain %d", tt.r, v)
			}
			for _, v := range tt.notIn {
				assert.False(t, tt.r.Contains(v), "%s should not contain %d", tt.r, v)
			}
		})
	}
}

func TestRangeConstructorsRejectInvertedBounds(t *testing.T) {
	_, ok := ClosedRange(int64(3), int64(1), intCmp)
	assert.False(t, ok)

	r, ok := ClosedRange(int64(2), int64(2), intCmp)
	assert.True(t, ok)
	assert.True(t, r.Contains(2))
	assert.False(t, r.IsEmpty())

	_, ok = ClosedOpenRange(int64(2), int64(2), intCmp)
	assert.False(t, ok)

	_, ok = OpenRange(int64(2), int64(2), intCmp)
	assert.False(t, ok)

	r, ok = OpenClosedRange(int64(1), int64(2), intCmp)
	assert.True(t, ok)
	assert.False(t, r.Contains(1))
	assert.True(t, r.Contains(2))
}

func TestRangeEndpoints(t *testing.T) {
	r := closedRange(t, 10, 20)
	lower, ok := r.LowerEndpoint()
	assert.True(t, ok)
	assert.Equal(t, int64(10), lower)
	upper, ok := r.UpperEndpoint()
	assert.True(t, ok)
	assert.Equal(t, int64(20), upper)
	assert.Equal(t, BoundClosed, r.LowerBoundType())
	assert.Equal(t, BoundClosed, r.UpperBoundType())

	less := LessThan(int64(1), intCmp)
	assert.False(t, less.HasLowerBound())
	assert.True(t, less.HasUpperBound())
	assert.Equal(t, BoundOpen, less.UpperBoundType())
	_, ok = less.LowerEndpoint()
	assert.False(t, ok)
}

func TestRangeIntersection(t *testing.T) {
	r, ok := AtLeast(int64(5), intCmp).Intersection(LessThan(int64(10), intCmp))
	require.True(t, ok)
	expected, _ := ClosedOpenRange(int64(5), int64(10), intCmp)
	assert.True(t, r.Equal(expected), "got %s", r)

	_, ok = LessThan(int64(1), intCmp).Intersection(GreaterThan(int64(5), intCmp))
	assert.False(t, ok)

	// touching open and closed bounds share no value
	_, ok = LessThan(int64(5), intCmp).Intersection(AtLeast(int64(5), intCmp))
	assert.False(t, ok)

	r, ok = AtMost(int64(5), intCmp).Intersection(AtLeast(int64(5), intCmp))
	require.True(t, ok)
	assert.True(t, r.Contains(5))
	assert.False(t, r.Contains(4))
}

func TestRangeEnclosesAndConnected(t *testing.T) {
	outer := closedRange(t, 1, 10)
	inner := closedRange(t, 3, 4)
	assert.True(t, outer.Encloses(inner))
	assert.False(t, inner.Encloses(outer))
	assert.True(t, AllValues(intCmp).Encloses(outer))

	assert.True(t, closedRange(t, 1, 5).IsConnected(closedRange(t, 5, 9)))
	assert.False(t, closedRange(t, 1, 4).IsConnected(closedRange(t, 5, 9)))
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "(-∞..1)", LessThan(int64(1), intCmp).String())
	assert.Equal(t, "[1..+∞)", AtLeast(int64(1), intCmp).String())
	assert.Equal(t, "[1..3]", closedRange(t, 1, 3).String())
}

func TestRangeOfTimestamps(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := GreaterThan(base, time.Time.Compare)
	assert.True(t, r.Contains(base.Add(time.Nanosecond)))
	assert.False(t, r.Contains(base))

	// equal instants in different locations compare equal
	assert.True(t, AtLeast(base, time.Time.Compare).Contains(base.In(time.FixedZone("x", 3600))))
}
