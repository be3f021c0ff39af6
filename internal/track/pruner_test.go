package track

import (
	"math/rand/v2"
	"testing"

	"github.com/MeKo-Tech/goklt/internal/klt"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func feat(id int64, x, y float64) *klt.PyramidFeature {
	return &klt.PyramidFeature{ID: id, X: x, Y: y}
}

func ids(fs []*klt.PyramidFeature) []int64 {
	out := make([]int64, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ID)
	}
	return out
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name   string
		radius int
		tracks []*klt.PyramidFeature
		want   []int64
	}{
		{
			name:   "close pair drops newer",
			radius: 3,
			tracks: []*klt.PyramidFeature{feat(4, 10, 10), feat(2, 11, 12)},
			want:   []int64{4},
		},
		{
			name:   "distance equal to radius is no conflict",
			radius: 3,
			tracks: []*klt.PyramidFeature{feat(0, 10, 10), feat(1, 13, 10)},
			want:   []int64{},
		},
		{
			name:   "close in x only",
			radius: 3,
			tracks: []*klt.PyramidFeature{feat(0, 10, 10), feat(1, 11, 15)},
			want:   []int64{},
		},
		{
			name:   "across cell boundary",
			radius: 3,
			tracks: []*klt.PyramidFeature{feat(0, 5.9, 8.9), feat(1, 6.1, 9.1)},
			want:   []int64{1},
		},
		{
			name:   "dropped tracks still compete",
			radius: 3,
			tracks: []*klt.PyramidFeature{feat(0, 10, 10), feat(1, 12, 10), feat(2, 14, 10)},
			want:   []int64{1, 2},
		},
		{
			name:   "loser reported once",
			radius: 3,
			tracks: []*klt.PyramidFeature{feat(5, 20, 20), feat(1, 21, 20), feat(2, 19, 20)},
			want:   []int64{2, 5},
		},
		{
			name:   "disabled",
			radius: 0,
			tracks: []*klt.PyramidFeature{feat(0, 1, 1), feat(1, 1, 1)},
			want:   []int64{},
		},
		{
			name:   "outside grid is clamped",
			radius: 3,
			tracks: []*klt.PyramidFeature{feat(0, 150, -4), feat(1, 151, -5)},
			want:   []int64{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(tt.radius, nil)
			p.Init(100, 80)
			assert.Equal(t, tt.want, ids(p.Prune(tt.tracks)))
		})
	}
}

func TestPruneCustomResolver(t *testing.T) {
	dropOlder := func(a, b *klt.PyramidFeature) *klt.PyramidFeature {
		if a.ID < b.ID {
			return a
		}
		return b
	}
	p := NewPruner(3, dropOlder)
	p.Init(50, 50)
	got := p.Prune([]*klt.PyramidFeature{feat(0, 10, 10), feat(1, 11, 10)})
	assert.Equal(t, []int64{0}, ids(got))
	assert.Equal(t, 3, p.Radius())
}

func TestPruneWithoutInit(t *testing.T) {
	p := NewPruner(3, nil)
	got := p.Prune([]*klt.PyramidFeature{feat(0, 40, 40), feat(1, 41, 41), feat(2, 5, 5)})
	assert.Equal(t, []int64{1}, ids(got))
}

func TestPruneReusesGrid(t *testing.T) {
	p := NewPruner(3, nil)
	p.Init(60, 60)
	first := []*klt.PyramidFeature{feat(0, 10, 10), feat(1, 11, 10)}
	assert.Equal(t, []int64{1}, ids(p.Prune(first)))
	second := []*klt.PyramidFeature{feat(7, 30, 30), feat(8, 50, 50)}
	assert.Empty(t, p.Prune(second), "no stale entries from the previous call")
}

// TestPrune_OrderIndependent verifies the dropped set does not depend on
// the order tracks are visited.
func TestPrune_OrderIndependent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same losers for any permutation", prop.ForAll(
		func(xs, ys []float64, seed uint64) bool {
			tracks := make([]*klt.PyramidFeature, len(xs))
			for i := range xs {
				tracks[i] = feat(int64(i), xs[i], ys[i])
			}
			p := NewPruner(3, nil)
			p.Init(40, 40)
			want := ids(p.Prune(tracks))

			shuffled := append([]*klt.PyramidFeature(nil), tracks...)
			rng := rand.New(rand.NewPCG(seed, seed+1)) //nolint:gosec // test shuffle
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			got := ids(p.Prune(shuffled))

			if diff := cmp.Diff(want, got); diff != "" {
				t.Logf("losers differ (-sorted +shuffled):\n%s", diff)
				return false
			}
			return true
		},
		gen.SliceOfN(25, gen.Float64Range(0, 40)),
		gen.SliceOfN(25, gen.Float64Range(0, 40)),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

// TestPrune_NoConflictsRemain verifies survivors are pairwise separated.
func TestPrune_NoConflictsRemain(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("survivors do not conflict", prop.ForAll(
		func(xs, ys []float64) bool {
			tracks := make([]*klt.PyramidFeature, len(xs))
			for i := range xs {
				tracks[i] = feat(int64(i), xs[i], ys[i])
			}
			p := NewPruner(3, nil)
			p.Init(40, 40)
			dropped := map[int64]bool{}
			for _, id := range ids(p.Prune(tracks)) {
				dropped[id] = true
			}
			for i, a := range tracks {
				for _, b := range tracks[i+1:] {
					if dropped[a.ID] || dropped[b.ID] {
						continue
					}
					if abs(a.X-b.X) < 3 && abs(a.Y-b.Y) < 3 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(30, gen.Float64Range(0, 40)),
		gen.SliceOfN(30, gen.Float64Range(0, 40)),
	))

	properties.TestingRun(t)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
