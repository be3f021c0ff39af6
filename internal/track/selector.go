package track

import (
	"github.com/MeKo-Tech/goklt/internal/detect"
	"github.com/MeKo-Tech/goklt/internal/klt"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
)

// Detector proposes corner candidates from the finest pyramid level,
// strongest first, avoiding the excluded points.
type Detector interface {
	Detect(in detect.Input, exclude []detect.Point, limit int) []detect.Corner
}

// Selector spawns new features to fill the track budget.
type Selector struct {
	maxFeatures int
	slack       int
	detector    Detector
	tracker     *klt.PyramidTracker

	exclude []detect.Point
}

// NewSelector returns a selector that describes features with tracker.
func NewSelector(maxFeatures, slack int, detector Detector, tracker *klt.PyramidTracker) *Selector {
	return &Selector{
		maxFeatures: maxFeatures,
		slack:       slack,
		detector:    detector,
		tracker:     tracker,
	}
}

// Spawn detects candidates away from the active features and describes up
// to MaxFeatures-len(active) of them using slots from pool. Candidates that
// cannot be tracked from their position are skipped. Running out of
// candidates is not an error.
func (s *Selector) Spawn(active []*klt.PyramidFeature, pool *Pool, p *pyramid.Pyramid, nextID func() int64) []*klt.PyramidFeature {
	need := min(s.maxFeatures-len(active), pool.Available())
	if need <= 0 {
		return nil
	}

	s.exclude = s.exclude[:0]
	for _, f := range active {
		s.exclude = append(s.exclude, detect.Point{X: f.X, Y: f.Y})
	}

	level := p.Level(0)
	in := detect.Input{Image: level.Image, DerivX: level.DerivX, DerivY: level.DerivY}
	candidates := s.detector.Detect(in, s.exclude, need+s.slack)

	tr := s.tracker.Tracker()
	var spawned []*klt.PyramidFeature
	for _, c := range candidates {
		if len(spawned) == need {
			break
		}
		x, y := float64(c.X), float64(c.Y)
		if !tr.CanDescribe(x, y, p.Width(), p.Height()) || !tr.InBounds(x, y, p.Width(), p.Height()) {
			continue
		}
		f, ok := pool.Acquire()
		if !ok {
			break
		}
		if err := s.tracker.Describe(f, x, y, p); err != nil {
			pool.Release(f)
			continue
		}
		f.ID = nextID()
		spawned = append(spawned, f)
	}
	return spawned
}
