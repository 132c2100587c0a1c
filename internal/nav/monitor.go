// Package nav watches a navigation run: speaking steps, warning about
// hazards and wrong-way walking, advancing steps, and catching off-route
// drift.
package nav

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "log/slog"

	"github.com/google/uuid"

	"cosmo/internal/directions"
	"cosmo/internal/hazards"
	"cosmo/internal/locate"
	"cosmo/pkg/geo"
)

const (
	// TickInterval is the position sampling period.
	TickInterval = 2 * time.Second

	hazardRadius    = 50.0
	hazardWindowMin = 15.0
	hazardWindowMax = 30.0
	hazardTTL       = 60 * time.Second

	wrongWayAngle    = 90.0
	wrongWayMinDist  = 20.0
	wrongWaySustain  = 10.0
	wrongWayCooldown = 10 * time.Second

	advanceDist  = 10.0
	offRouteDist = 30.0
)

// Deps are the monitor's collaborators. Announce, Arrived and OffRoute are
// invoked from the monitor's goroutine; the owner decides where to run them.
type Deps struct {
	Position locate.Source
	Hazards  hazards.Source
	Announce func(text string)
	Arrived  func()
	OffRoute func(dest geo.Point)
}

type run struct {
	id     string
	route  *directions.Route
	cancel context.CancelFunc

	stepIdx     int
	stepSpoken  bool
	hazardSeen  map[int64]time.Time
	anchor      *geo.Point
	lastWrong   time.Time
	offReported bool
}

// Monitor drives one navigation run at a time on its own ticker goroutine.
type Monitor struct {
	deps     Deps
	interval time.Duration
	now      func() time.Time

	mu  sync.Mutex
	cur *run
}

func NewMonitor(deps Deps) *Monitor {
	return &Monitor{deps: deps, interval: TickInterval, now: time.Now}
}

// Running reports whether a run is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil
}

// CurrentStep returns the active step index and instruction.
func (m *Monitor) CurrentStep() (int, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return 0, "", false
	}
	r := m.cur
	if r.stepIdx >= len(r.route.Steps) {
		return r.stepIdx, "", false
	}
	return r.stepIdx, r.route.Steps[r.stepIdx].Instruction, true
}

// Start begins a run over route. Any previous run is stopped first.
func (m *Monitor) Start(route *directions.Route) {
	m.mu.Lock()
	m.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:         uuid.NewString(),
		route:      route,
		cancel:     cancel,
		hazardSeen: map[int64]time.Time{},
	}
	m.cur = r
	m.mu.Unlock()

	log.Info("navigation run started", "run", r.id, "steps", len(route.Steps))
	go m.loop(ctx, r)
}

// Stop ends the current run. Safe to call when no run is active and safe
// to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if m.cur == nil {
		return
	}
	log.Info("navigation run stopped", "run", m.cur.id)
	m.cur.cancel()
	m.cur = nil
}

func (m *Monitor) loop(ctx context.Context, r *run) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.tick(ctx, r)
		}
	}
}

// tick runs one monitoring pass. Order matters: arrival, step speech,
// hazards, wrong-way, advancement, off-route.
func (m *Monitor) tick(ctx context.Context, r *run) {
	pos, err := m.deps.Position.Current()
	if err != nil {
		if !errors.Is(err, locate.ErrNoFix) {
			log.Warn("position sample failed", "run", r.id, "err", err)
		}
		return
	}

	m.mu.Lock()
	if m.cur != r {
		m.mu.Unlock()
		return
	}

	if r.stepIdx >= len(r.route.Steps) {
		m.stopLocked()
		m.mu.Unlock()
		m.deps.Arrived()
		return
	}
	step := r.route.Steps[r.stepIdx]

	speak := ""
	if !r.stepSpoken {
		r.stepSpoken = true
		speak = step.Instruction
	}
	m.mu.Unlock()
	if speak != "" {
		m.deps.Announce(speak)
	}

	m.checkHazards(ctx, r, pos.Point)
	m.checkWrongWay(r, pos, step)

	m.mu.Lock()
	if m.cur != r {
		m.mu.Unlock()
		return
	}
	remaining := geo.MetersBetween(pos.Point, step.End)
	if remaining <= advanceDist {
		r.stepIdx++
		r.stepSpoken = false
		r.anchor = nil
		log.Debug("advanced to step", "run", r.id, "step", r.stepIdx)
	}

	offRoute := len(r.route.Path) > 0 && !r.offReported &&
		geo.MinDistanceToPath(pos.Point, r.route.Path) > offRouteDist
	if offRoute {
		r.offReported = true
		m.stopLocked()
	}
	m.mu.Unlock()

	if offRoute {
		m.deps.Announce("You seem to be off route. Recalculating.")
		m.deps.OffRoute(r.route.Destination)
	}
}

// checkHazards announces at most one hazard in the 15 to 30 meter forward
// window, deduplicated for a minute so crossings are not repeated on every
// tick.
func (m *Monitor) checkHazards(ctx context.Context, r *run, pt geo.Point) {
	hctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	found, err := m.deps.Hazards.Near(hctx, pt, hazardRadius)
	if err != nil {
		log.Debug("hazard query failed", "run", r.id, "err", err)
		return
	}

	now := m.now()
	m.mu.Lock()
	for id, seen := range r.hazardSeen {
		if now.Sub(seen) > hazardTTL {
			delete(r.hazardSeen, id)
		}
	}
	speak := ""
	for _, h := range found {
		if h.DistanceMeters < hazardWindowMin || h.DistanceMeters > hazardWindowMax {
			continue
		}
		if _, ok := r.hazardSeen[h.ID]; ok {
			continue
		}
		r.hazardSeen[h.ID] = now
		speak = fmt.Sprintf("Caution: %s ahead.", h.Description)
		break
	}
	m.mu.Unlock()

	if speak != "" {
		m.deps.Announce(speak)
	}
}

// checkWrongWay tracks sustained movement away from the step endpoint. A
// single corrected heading sample clears the anchor, so sensor noise does
// not accumulate toward a false alert.
func (m *Monitor) checkWrongWay(r *run, pos locate.Position, step directions.Step) {
	if pos.Heading < 0 {
		return
	}
	remaining := geo.MetersBetween(pos.Point, step.End)
	want := geo.Bearing(pos.Point, step.End)
	diff := geo.HeadingDiff(pos.Heading, want)

	m.mu.Lock()
	if diff <= wrongWayAngle || remaining <= wrongWayMinDist {
		r.anchor = nil
		m.mu.Unlock()
		return
	}

	if r.anchor == nil {
		a := pos.Point
		r.anchor = &a
		m.mu.Unlock()
		return
	}

	now := m.now()
	alert := geo.MetersBetween(*r.anchor, pos.Point) >= wrongWaySustain &&
		now.Sub(r.lastWrong) >= wrongWayCooldown
	if alert {
		r.lastWrong = now
		r.anchor = nil
	}
	m.mu.Unlock()

	if alert {
		m.deps.Announce("You may be heading the wrong way. Please turn around.")
	}
}
