package track

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/goklt/internal/common"
	"github.com/MeKo-Tech/goklt/internal/klt"
	"github.com/MeKo-Tech/goklt/internal/metrics"
	"github.com/MeKo-Tech/goklt/internal/pyramid"
)

const (
	// ReasonPruned is the drop reason of tracks removed by the pruner.
	ReasonPruned = "PRUNED"
	// ReasonFBRejected is the drop reason of tracks that tracked forward
	// but did not return to their last position when tracked back.
	ReasonFBRejected = "FB_REJECTED"
)

var (
	// ErrNoCapacity is returned by AddTrack when every slot is in use.
	ErrNoCapacity = errors.New("no free feature slots")
	// ErrNoDetector is returned by NewManager without a detector.
	ErrNoDetector = errors.New("detector is required")
)

// Track is a snapshot of one track's identity and full resolution position.
type Track struct {
	ID int64   `json:"id" yaml:"id"`
	X  float64 `json:"x" yaml:"x"`
	Y  float64 `json:"y" yaml:"y"`
}

// DroppedTrack is a track removed during the last cycle and why.
type DroppedTrack struct {
	Track  `yaml:",inline"`
	Reason string `json:"reason" yaml:"reason"`
}

func snapshot(f *klt.PyramidFeature) Track {
	return Track{ID: f.ID, X: f.X, Y: f.Y}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records per frame metrics on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithResolver replaces the pruning resolver. The default is DropNewer.
func WithResolver(r Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// Manager owns the active tracks and runs the per frame cycle: track every
// active feature, drop failures, prune duplicates and spawn replacements.
// It is not safe for concurrent use.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	resolver Resolver

	pool     *Pool
	trackers []*klt.PyramidTracker
	scratch  []*klt.PyramidFeature
	selector *Selector
	pruner   *Pruner

	active   []*klt.PyramidFeature
	spawned  []Track
	dropped  []DroppedTrack
	faults   []klt.Fault
	errs     []error
	rejected []bool

	// prev is a private copy of the last frame seen, kept for the
	// backward pass. prevSource is the pyramid it was copied from.
	prev       *pyramid.Pyramid
	prevSource *pyramid.Pyramid

	nextID        int64
	width, height int
}

// NewManager validates cfg and allocates every slot and tracker up front.
func NewManager(cfg Config, detector Detector, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if detector == nil {
		return nil, ErrNoDetector
	}
	m := &Manager{
		cfg:    cfg,
		logger: slog.Default(),
		pool:   NewPool(cfg.MaxFeatures),
		active: make([]*klt.PyramidFeature, 0, cfg.MaxFeatures),
	}
	for _, opt := range opts {
		opt(m)
	}

	for range cfg.Workers {
		t, err := klt.NewPyramidTracker(cfg.Tracker)
		if err != nil {
			return nil, fmt.Errorf("create tracker: %w", err)
		}
		m.trackers = append(m.trackers, t)
		m.scratch = append(m.scratch, klt.NewPyramidFeature(0, cfg.Tracker.TemplateRadius))
	}
	m.selector = NewSelector(cfg.MaxFeatures, cfg.CandidateSlack, detector, m.trackers[0])
	m.pruner = NewPruner(cfg.PruneRadius, m.resolver)
	return m, nil
}

// Config returns the manager configuration.
func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) nextTrackID() int64 {
	id := m.nextID
	m.nextID++
	return id
}

// Process runs one full cycle on p.
func (m *Manager) Process(p *pyramid.Pyramid) error {
	timer := common.NewTimer()
	tracked := len(m.active)

	if err := m.Track(p); err != nil {
		return err
	}
	failed := len(m.dropped)
	pruned := m.Prune()
	spawned := m.Spawn(p)

	elapsed := timer.Stop()
	m.metrics.ObserveFrame(elapsed)
	m.metrics.SetActive(len(m.active))
	m.logger.Debug("frame processed",
		"tracked", tracked,
		"failed", failed,
		"pruned", pruned,
		"spawned", spawned,
		"active", len(m.active),
		"available", m.pool.Available(),
		"duration", elapsed)
	return nil
}

// Track starts a cycle: it clears the spawned and dropped lists, tracks
// every active feature into p and drops the ones that fault. With the
// forward-backward check enabled, survivors are tracked back into the
// previous frame and dropped when they miss their last position. On error
// no track is changed.
func (m *Manager) Track(p *pyramid.Pyramid) error {
	m.spawned = m.spawned[:0]
	m.dropped = m.dropped[:0]
	if p == nil || p.NumLevels() == 0 {
		return fmt.Errorf("%w: empty pyramid", klt.ErrInvalidArgument)
	}
	m.bindSize(p)

	n := len(m.active)
	if n == 0 {
		m.remember(p)
		return nil
	}
	m.faults = append(m.faults[:0], make([]klt.Fault, n)...)
	m.errs = append(m.errs[:0], make([]error, n)...)
	m.rejected = append(m.rejected[:0], make([]bool, n)...)

	// Positions are written in place, so keep a copy to roll back on error.
	before := make([]Track, n)
	for i, f := range m.active {
		before[i] = snapshot(f)
	}

	m.forEach(func(w, i int, f *klt.PyramidFeature) {
		m.faults[i], m.errs[i] = m.trackers[w].Track(f, p)
	})
	if m.backwardReady(p) {
		m.forEach(func(w, i int, f *klt.PyramidFeature) {
			if m.errs[i] != nil || m.faults[i] != klt.FaultSuccess {
				return
			}
			m.rejected[i], m.errs[i] = m.trackBack(w, f, before[i], p)
		})
	}

	if err := errors.Join(m.errs...); err != nil {
		for i, f := range m.active {
			f.X, f.Y = before[i].X, before[i].Y
		}
		return fmt.Errorf("track frame: %w", err)
	}

	kept := m.active[:0]
	rejected := 0
	for i, f := range m.active {
		fault := m.faults[i]
		m.metrics.RecordFault(fault)
		switch {
		case fault != klt.FaultSuccess:
			m.dropped = append(m.dropped, DroppedTrack{Track: before[i], Reason: fault.String()})
		case m.rejected[i]:
			m.dropped = append(m.dropped, DroppedTrack{Track: snapshot(f), Reason: ReasonFBRejected})
			rejected++
		default:
			kept = append(kept, f)
			continue
		}
		m.pool.Release(f)
	}
	clear(m.active[len(kept):])
	m.active = kept
	m.metrics.RecordRejected(rejected)
	m.remember(p)
	return nil
}

// backwardReady reports whether survivors can be tracked back into the
// previous frame.
func (m *Manager) backwardReady(p *pyramid.Pyramid) bool {
	if !m.cfg.CheckFB() || m.prev == nil {
		return false
	}
	if m.prev.NumLevels() != p.NumLevels() || m.prev.Width() != p.Width() || m.prev.Height() != p.Height() {
		m.logger.Debug("skipping forward-backward check: previous frame has a different shape",
			"levels", m.prev.NumLevels(), "width", m.prev.Width(), "height", m.prev.Height())
		return false
	}
	return true
}

// trackBack describes the patch at f's new position in p, tracks it back
// into the previous frame and reports whether it missed from by more than
// the tolerance. f itself is not modified.
func (m *Manager) trackBack(w int, f *klt.PyramidFeature, from Track, p *pyramid.Pyramid) (bool, error) {
	t, back := m.trackers[w], m.scratch[w]
	if !t.CanDescribe(f.X, f.Y, p) {
		return true, nil
	}
	if err := t.Describe(back, f.X, f.Y, p); err != nil {
		return false, fmt.Errorf("describe track %d for the backward pass: %w", f.ID, err)
	}
	fault, err := t.Track(back, m.prev)
	if err != nil {
		return false, fmt.Errorf("track %d backward: %w", f.ID, err)
	}
	dx, dy := back.X-from.X, back.Y-from.Y
	return fault != klt.FaultSuccess || dx*dx+dy*dy > m.cfg.ToleranceFB*m.cfg.ToleranceFB, nil
}

// remember keeps a copy of p for the next backward pass.
func (m *Manager) remember(p *pyramid.Pyramid) {
	if !m.cfg.CheckFB() || p == m.prevSource {
		return
	}
	m.forget()
	m.prev = p.Clone()
	m.prevSource = p
}

func (m *Manager) forget() {
	if m.prev != nil {
		m.prev.Release()
	}
	m.prev, m.prevSource = nil, nil
}

type trackJob struct {
	index   int
	feature *klt.PyramidFeature
}

// forEach calls fn for every active feature i. w is the worker, which
// owns m.trackers[w] and m.scratch[w]. With more than one worker the
// features are fanned out to one goroutine per tracker, so fn must only
// write to state indexed by i or w.
func (m *Manager) forEach(fn func(w, i int, f *klt.PyramidFeature)) {
	if m.cfg.Workers == 1 || len(m.active) == 1 {
		for i, f := range m.active {
			fn(0, i, f)
		}
		return
	}

	jobs := make(chan trackJob, len(m.active))
	var wg sync.WaitGroup
	for w := range m.trackers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for job := range jobs {
				fn(w, job.index, job.feature)
			}
		}(w)
	}
	for i, f := range m.active {
		jobs <- trackJob{index: i, feature: f}
	}
	close(jobs)
	wg.Wait()
}

// Prune drops active tracks that conflict with an older neighbour and
// returns how many were dropped.
func (m *Manager) Prune() int {
	losers := m.pruner.Prune(m.active)
	if len(losers) == 0 {
		return 0
	}
	drop := make(map[*klt.PyramidFeature]struct{}, len(losers))
	for _, f := range losers {
		drop[f] = struct{}{}
	}
	kept := m.active[:0]
	for _, f := range m.active {
		if _, ok := drop[f]; ok {
			m.dropped = append(m.dropped, DroppedTrack{Track: snapshot(f), Reason: ReasonPruned})
			m.pool.Release(f)
			continue
		}
		kept = append(kept, f)
	}
	clear(m.active[len(kept):])
	m.active = kept
	m.metrics.RecordPruned(len(losers))
	return len(losers)
}

// Spawn fills the budget with new features detected in p and returns how
// many were added.
func (m *Manager) Spawn(p *pyramid.Pyramid) int {
	if p == nil || p.NumLevels() == 0 {
		return 0
	}
	m.bindSize(p)
	m.remember(p)
	added := m.selector.Spawn(m.active, m.pool, p, m.nextTrackID)
	for _, f := range added {
		m.active = append(m.active, f)
		m.spawned = append(m.spawned, snapshot(f))
	}
	m.metrics.RecordSpawned(len(added))
	return len(added)
}

// AddTrack spawns a feature at the full resolution position (x, y). The
// position must lie inside the region tracks may occupy.
func (m *Manager) AddTrack(x, y float64, p *pyramid.Pyramid) (Track, error) {
	if p == nil || p.NumLevels() == 0 {
		return Track{}, fmt.Errorf("%w: empty pyramid", klt.ErrInvalidArgument)
	}
	if !m.trackers[0].Tracker().InBounds(x, y, p.Width(), p.Height()) {
		return Track{}, fmt.Errorf("%w: (%.2f, %.2f) is outside the trackable region of a %dx%d frame",
			klt.ErrInvalidArgument, x, y, p.Width(), p.Height())
	}
	f, ok := m.pool.Acquire()
	if !ok {
		return Track{}, ErrNoCapacity
	}
	if err := m.trackers[0].Describe(f, x, y, p); err != nil {
		m.pool.Release(f)
		return Track{}, fmt.Errorf("add track at (%.2f, %.2f): %w", x, y, err)
	}
	m.bindSize(p)
	m.remember(p)
	f.ID = m.nextTrackID()
	m.active = append(m.active, f)
	t := snapshot(f)
	m.spawned = append(m.spawned, t)
	m.metrics.RecordSpawned(1)
	return t, nil
}

// DropTrack removes the active track with the given ID.
func (m *Manager) DropTrack(id int64) bool {
	for i, f := range m.active {
		if f.ID != id {
			continue
		}
		m.pool.Release(f)
		copy(m.active[i:], m.active[i+1:])
		m.active[len(m.active)-1] = nil
		m.active = m.active[:len(m.active)-1]
		return true
	}
	return false
}

// DropAll removes every active track.
func (m *Manager) DropAll() {
	for i, f := range m.active {
		m.pool.Release(f)
		m.active[i] = nil
	}
	m.active = m.active[:0]
}

// Reset drops every track, clears the cycle lists and restarts IDs at zero.
func (m *Manager) Reset() {
	m.DropAll()
	m.pool.Reset()
	m.spawned = m.spawned[:0]
	m.dropped = m.dropped[:0]
	m.nextID = 0
	m.width, m.height = 0, 0
	m.forget()
}

// Close releases the copy of the previous frame. The manager stays usable.
func (m *Manager) Close() {
	m.forget()
}

func (m *Manager) bindSize(p *pyramid.Pyramid) {
	w, h := p.Width(), p.Height()
	if w == m.width && h == m.height {
		return
	}
	if m.width != 0 {
		m.logger.Info("frame size changed", "from_width", m.width, "from_height", m.height, "width", w, "height", h)
	}
	m.width, m.height = w, h
	m.pruner.Init(w, h)
}

// Active returns the active tracks ordered by ID.
func (m *Manager) Active() []Track {
	out := make([]Track, len(m.active))
	for i, f := range m.active {
		out[i] = snapshot(f)
	}
	return out
}

// Spawned returns the tracks added since the current cycle began.
func (m *Manager) Spawned() []Track {
	return append([]Track(nil), m.spawned...)
}

// Dropped returns the tracks removed during the current cycle in the
// order they were dropped: tracking faults and forward-backward rejections
// first, then pruned tracks.
func (m *Manager) Dropped() []DroppedTrack {
	return append([]DroppedTrack(nil), m.dropped...)
}

// NumActive returns the number of active tracks.
func (m *Manager) NumActive() int { return len(m.active) }

// Available returns the number of free slots.
func (m *Manager) Available() int { return m.pool.Available() }

// Capacity returns the track budget.
func (m *Manager) Capacity() int { return m.pool.Capacity() }
