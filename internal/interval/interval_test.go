package interval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsDegenerate(t *testing.T) {
	_, err := New(10, 10)
	require.ErrorIs(t, err, ErrDegenerate)

	_, err = New(20, 10)
	require.ErrorIs(t, err, ErrDegenerate)

	iv, err := New(10, 20)
	require.NoError(t, err)
	assert.Equal(t, Interval{Start: 10, End: 20}, iv)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", Interval{0, 10}, Interval{20, 30}, false},
		{"touching is not overlap", Interval{0, 10}, Interval{10, 20}, false},
		{"partial", Interval{0, 10}, Interval{5, 15}, true},
		{"contained", Interval{0, 30}, Interval{10, 20}, true},
		{"identical", Interval{0, 10}, Interval{0, 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestSubtract(t *testing.T) {
	base := Interval{Start: 100, End: 200}

	tests := []struct {
		name string
		cut  Interval
		want []Interval
	}{
		{"cut before", Interval{0, 50}, []Interval{base}},
		{"cut touching start", Interval{50, 100}, []Interval{base}},
		{"cut after", Interval{200, 300}, []Interval{base}},
		{"cut head", Interval{50, 150}, []Interval{{150, 200}}},
		{"cut tail", Interval{150, 250}, []Interval{{100, 150}}},
		{"cut middle", Interval{120, 180}, []Interval{{100, 120}, {180, 200}}},
		{"cut covers all", Interval{0, 300}, []Interval{}},
		{"cut identical", Interval{100, 200}, []Interval{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtract(base, tt.cut)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestSubtract_ReconstructsOriginal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a := randomInterval(rng)
		b := randomInterval(rng)

		pieces := Subtract(a, b)
		for _, p := range pieces {
			require.True(t, p.Valid())
			require.False(t, p.Overlaps(b), "piece %v overlaps cut %v", p, b)
		}

		covered := int64(0)
		for _, p := range pieces {
			covered += p.End - p.Start
		}
		if common, ok := a.Intersect(b); ok {
			covered += common.End - common.Start
		}
		require.Equal(t, a.End-a.Start, covered, "a=%v b=%v", a, b)
	}
}

func TestSubtractAll_OrderIndependent(t *testing.T) {
	open := []Interval{{0, 100}, {200, 300}}
	cuts := []Interval{{250, 260}, {10, 20}, {90, 210}}

	got := SubtractAll(open, cuts)
	reversed := SubtractAll(open, []Interval{cuts[2], cuts[1], cuts[0]})

	want := []Interval{{0, 10}, {20, 90}, {210, 250}, {260, 300}}
	assert.Equal(t, want, Sorted(got))
	assert.Equal(t, Sorted(got), Sorted(reversed))
}

func TestSubtractAll_EmptyInputs(t *testing.T) {
	assert.Empty(t, SubtractAll(nil, []Interval{{0, 10}}))
	assert.Equal(t, []Interval{{0, 10}}, SubtractAll([]Interval{{0, 10}}, nil))
}

func TestHasOverlap_UnsortedInput(t *testing.T) {
	intervals := []Interval{{500, 600}, {0, 10}, {100, 200}}
	assert.True(t, HasOverlap(intervals, 150, 160))
	assert.True(t, HasOverlap(intervals, 5, 6))
	assert.False(t, HasOverlap(intervals, 10, 100))
}

func TestFirstOverlap_SortedEarlyExit(t *testing.T) {
	intervals := []Interval{{0, 10}, {20, 30}, {40, 50}}
	hit, ok := FirstOverlap(intervals, Interval{25, 45})
	require.True(t, ok)
	assert.Equal(t, Interval{20, 30}, hit)

	_, ok = FirstOverlap(intervals, Interval{10, 20})
	assert.False(t, ok)
}

func TestAlignUp(t *testing.T) {
	const step = 15 * 60_000
	assert.Equal(t, int64(0), AlignUp(0, step))
	assert.Equal(t, int64(step), AlignUp(1, step))
	assert.Equal(t, int64(step), AlignUp(step, step))
	assert.Equal(t, int64(2*step), AlignUp(step+1, step))
	assert.Equal(t, int64(-step), AlignUp(-step-1+1, step))
	assert.True(t, IsAligned(3*step, step))
	assert.False(t, IsAligned(3*step+1, step))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		literal string
		want    Interval
		ok      bool
	}{
		{"[100,200)", Interval{100, 200}, true},
		{"(100,200)", Interval{101, 200}, true},
		{"[100,200]", Interval{100, 201}, true},
		{`["100","200")`, Interval{100, 200}, true},
		{"empty", Interval{}, false},
		{"[100,)", Interval{}, false},
		{"100,200", Interval{}, false},
		{"[200,100)", Interval{}, false},
		{"", Interval{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			got, ok := ParseRange(tt.literal)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	round, ok := ParseRange(FormatRange(Interval{5, 9}))
	require.True(t, ok)
	assert.Equal(t, Interval{5, 9}, round)
}

func randomInterval(rng *rand.Rand) Interval {
	start := rng.Int63n(1000)
	return Interval{Start: start, End: start + 1 + rng.Int63n(500)}
}
