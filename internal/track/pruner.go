package track

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/goklt/internal/klt"
)

// Resolver decides which of two conflicting tracks is dropped and returns it.
type Resolver func(a, b *klt.PyramidFeature) *klt.PyramidFeature

// DropNewer keeps the older track, the one with the smaller ID.
func DropNewer(a, b *klt.PyramidFeature) *klt.PyramidFeature {
	if a.ID > b.ID {
		return a
	}
	return b
}

// Pruner removes tracks that sit on top of each other. Two tracks conflict
// when both |dx| and |dy| are below the radius.
type Pruner struct {
	radius   int
	resolver Resolver

	width, height  int
	cellsX, cellsY int
	grid           [][]*klt.PyramidFeature
	dropped        map[*klt.PyramidFeature]struct{}
}

// NewPruner returns a pruner with the given radius. A nil resolver selects DropNewer.
func NewPruner(radius int, resolver Resolver) *Pruner {
	if resolver == nil {
		resolver = DropNewer
	}
	return &Pruner{
		radius:   radius,
		resolver: resolver,
		dropped:  make(map[*klt.PyramidFeature]struct{}),
	}
}

// Radius returns the conflict radius.
func (p *Pruner) Radius() int { return p.radius }

// Init sizes the grid for images of the given dimensions. Cells are radius
// pixels wide so every conflict lies within the 3x3 cell neighbourhood.
func (p *Pruner) Init(width, height int) {
	if p.radius <= 0 {
		return
	}
	p.width, p.height = width, height
	p.cellsX = max(1, (width+p.radius-1)/p.radius)
	p.cellsY = max(1, (height+p.radius-1)/p.radius)
	n := p.cellsX * p.cellsY
	if cap(p.grid) < n {
		p.grid = make([][]*klt.PyramidFeature, n)
	}
	p.grid = p.grid[:n]
}

func (p *Pruner) cell(v float64, cells int) int {
	c := int(math.Floor(v / float64(p.radius)))
	if c < 0 {
		return 0
	}
	if c >= cells {
		return cells - 1
	}
	return c
}

// Prune returns the tracks that lose a conflict, ordered by ID. Every pair
// of conflicting tracks is judged once, and dropped tracks still take part
// in later comparisons, so the result does not depend on input order when
// the resolver is symmetric.
func (p *Pruner) Prune(tracks []*klt.PyramidFeature) []*klt.PyramidFeature {
	if p.radius <= 0 || len(tracks) < 2 {
		return nil
	}
	if p.grid == nil {
		p.initFromTracks(tracks)
	}
	for i := range p.grid {
		p.grid[i] = p.grid[i][:0]
	}
	clear(p.dropped)

	r := float64(p.radius)
	var losers []*klt.PyramidFeature
	for _, t := range tracks {
		cx := p.cell(t.X, p.cellsX)
		cy := p.cell(t.Y, p.cellsY)
		for y := max(0, cy-1); y <= min(p.cellsY-1, cy+1); y++ {
			for x := max(0, cx-1); x <= min(p.cellsX-1, cx+1); x++ {
				for _, o := range p.grid[y*p.cellsX+x] {
					if math.Abs(o.X-t.X) >= r || math.Abs(o.Y-t.Y) >= r {
						continue
					}
					loser := p.resolver(t, o)
					if _, seen := p.dropped[loser]; !seen {
						p.dropped[loser] = struct{}{}
						losers = append(losers, loser)
					}
				}
			}
		}
		p.grid[cy*p.cellsX+cx] = append(p.grid[cy*p.cellsX+cx], t)
	}

	sort.Slice(losers, func(i, j int) bool { return losers[i].ID < losers[j].ID })
	return losers
}

func (p *Pruner) initFromTracks(tracks []*klt.PyramidFeature) {
	w, h := 1.0, 1.0
	for _, t := range tracks {
		w = math.Max(w, t.X+1)
		h = math.Max(h, t.Y+1)
	}
	p.Init(int(math.Ceil(w)), int(math.Ceil(h)))
}
