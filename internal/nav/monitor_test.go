package nav

import (
	"context"
	"testing"
	"time"

	"cosmo/internal/directions"
	"cosmo/internal/hazards"
	"cosmo/internal/locate"
	"cosmo/pkg/geo"
)

// ptNorth places a point the given number of meters north of the origin.
func ptNorth(meters float64) geo.Point {
	return geo.Point{Lon: 0, Lat: meters / 111320}
}

// ptEast places a point the given number of meters east of the origin.
func ptEast(meters float64) geo.Point {
	return geo.Point{Lon: meters / 111320, Lat: 0}
}

type fakePosition struct {
	pos locate.Position
	err error
}

func (f *fakePosition) Current() (locate.Position, error) { return f.pos, f.err }

type fakeHazards struct {
	list []hazards.Hazard
}

func (f *fakeHazards) Near(ctx context.Context, pt geo.Point, radius float64) ([]hazards.Hazard, error) {
	return f.list, nil
}

type harness struct {
	m        *Monitor
	r        *run
	pos      *fakePosition
	haz      *fakeHazards
	now      time.Time
	spoken   []string
	arrived  int
	offRoute int
}

func newHarness(t *testing.T, route *directions.Route) *harness {
	t.Helper()
	h := &harness{
		pos: &fakePosition{err: locate.ErrNoFix},
		haz: &fakeHazards{},
		now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	h.m = NewMonitor(Deps{
		Position: h.pos,
		Hazards:  h.haz,
		Announce: func(text string) { h.spoken = append(h.spoken, text) },
		Arrived:  func() { h.arrived++ },
		OffRoute: func(geo.Point) { h.offRoute++ },
	})
	h.m.now = func() time.Time { return h.now }

	h.r = &run{
		id:         "test-run",
		route:      route,
		cancel:     func() {},
		hazardSeen: map[int64]time.Time{},
	}
	h.m.cur = h.r
	return h
}

func (h *harness) tick() { h.m.tick(context.Background(), h.r) }

func northRoute() *directions.Route {
	// One step heading 100 m due north, path along the same line.
	return &directions.Route{
		Steps: []directions.Step{
			{Instruction: "Head north", Start: ptNorth(0), End: ptNorth(100)},
		},
		Path:        []geo.Point{ptNorth(0), ptNorth(100)},
		Destination: ptNorth(100),
	}
}

func TestTickSkipsWithoutFix(t *testing.T) {
	h := newHarness(t, northRoute())
	h.tick()
	if len(h.spoken) != 0 || h.arrived != 0 {
		t.Fatalf("tick without fix should do nothing: %v", h.spoken)
	}
}

func TestStepSpokenOnce(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: -1}
	h.pos.err = nil

	h.tick()
	h.tick()
	h.tick()

	count := 0
	for _, s := range h.spoken {
		if s == "Head north" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("step instruction spoken %d times: %v", count, h.spoken)
	}
}

func TestArrival(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.pos = locate.Position{Point: ptNorth(100), Heading: -1}
	h.pos.err = nil
	h.r.stepIdx = 1 // past the last step

	h.tick()
	if h.arrived != 1 {
		t.Fatalf("arrived = %d", h.arrived)
	}
	if h.m.Running() {
		t.Fatalf("run should be stopped after arrival")
	}
}

func TestStepAdvancesMonotonically(t *testing.T) {
	route := &directions.Route{
		Steps: []directions.Step{
			{Instruction: "Head north", End: ptNorth(50)},
			{Instruction: "Continue north", End: ptNorth(100)},
		},
		Path:        []geo.Point{ptNorth(0), ptNorth(100)},
		Destination: ptNorth(100),
	}
	h := newHarness(t, route)
	h.pos.err = nil

	h.pos.pos = locate.Position{Point: ptNorth(45), Heading: -1}
	h.tick()
	if h.r.stepIdx != 1 {
		t.Fatalf("within 10 m of endpoint should advance, stepIdx = %d", h.r.stepIdx)
	}

	// Walking backwards never decreases the index.
	h.pos.pos = locate.Position{Point: ptNorth(20), Heading: -1}
	h.tick()
	if h.r.stepIdx != 1 {
		t.Fatalf("stepIdx decreased to %d", h.r.stepIdx)
	}
}

func TestHazardDedupWindow(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: -1}
	h.pos.err = nil
	h.haz.list = []hazards.Hazard{
		{ID: 7, Description: "a marked crosswalk", DistanceMeters: 20},
	}

	countCaution := func() int {
		n := 0
		for _, s := range h.spoken {
			if s == "Caution: a marked crosswalk ahead." {
				n++
			}
		}
		return n
	}

	h.tick()
	if countCaution() != 1 {
		t.Fatalf("hazard not announced: %v", h.spoken)
	}

	h.now = h.now.Add(30 * time.Second)
	h.tick()
	if countCaution() != 1 {
		t.Fatalf("hazard re-announced inside the dedup window: %v", h.spoken)
	}

	h.now = h.now.Add(31 * time.Second) // 61 s since first announcement
	h.tick()
	if countCaution() != 2 {
		t.Fatalf("hazard should re-announce after expiry: %v", h.spoken)
	}
}

func TestOneHazardPerTick(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: -1}
	h.pos.err = nil
	h.haz.list = []hazards.Hazard{
		{ID: 1, Description: "a traffic light", DistanceMeters: 18},
		{ID: 2, Description: "a kerb", DistanceMeters: 25},
	}

	h.tick()
	cautions := 0
	for _, s := range h.spoken {
		if s != "Head north" {
			cautions++
		}
	}
	if cautions != 1 {
		t.Fatalf("expected one hazard announcement per tick, got %d: %v", cautions, h.spoken)
	}
}

func TestHazardOutsideWindowIgnored(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: -1}
	h.pos.err = nil
	h.haz.list = []hazards.Hazard{
		{ID: 1, Description: "a kerb", DistanceMeters: 10},
		{ID: 2, Description: "a traffic light", DistanceMeters: 40},
	}

	h.tick()
	for _, s := range h.spoken {
		if s != "Head north" {
			t.Fatalf("out-of-window hazard announced: %q", s)
		}
	}
}

const wrongWayMsg = "You may be heading the wrong way. Please turn around."

func countWrongWay(spoken []string) int {
	n := 0
	for _, s := range spoken {
		if s == wrongWayMsg {
			n++
		}
	}
	return n
}

func TestWrongWayNeedsSustainedDivergence(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.err = nil

	// Heading south while the step endpoint is 100 m north.
	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: 180}
	h.tick()
	if countWrongWay(h.spoken) != 0 {
		t.Fatalf("alert on a single sample: %v", h.spoken)
	}

	// Only 5 m from the anchor, still no alert.
	h.pos.pos = locate.Position{Point: ptNorth(-5), Heading: 180}
	h.tick()
	if countWrongWay(h.spoken) != 0 {
		t.Fatalf("alert before 10 m of divergence: %v", h.spoken)
	}

	// 12 m from the anchor fires the alert.
	h.pos.pos = locate.Position{Point: ptNorth(-12), Heading: 180}
	h.tick()
	if countWrongWay(h.spoken) != 1 {
		t.Fatalf("sustained divergence should alert: %v", h.spoken)
	}
}

func TestWrongWayCooldown(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.err = nil

	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: 180}
	h.tick()
	h.pos.pos = locate.Position{Point: ptNorth(-12), Heading: 180}
	h.tick()
	if countWrongWay(h.spoken) != 1 {
		t.Fatalf("first alert missing: %v", h.spoken)
	}

	// Keep diverging: new anchor, enough distance, but inside the cooldown.
	h.pos.pos = locate.Position{Point: ptNorth(-24), Heading: 180}
	h.tick()
	h.pos.pos = locate.Position{Point: ptNorth(-36), Heading: 180}
	h.tick()
	if countWrongWay(h.spoken) != 1 {
		t.Fatalf("alert inside cooldown: %v", h.spoken)
	}

	h.now = h.now.Add(11 * time.Second)
	h.pos.pos = locate.Position{Point: ptNorth(-48), Heading: 180}
	h.tick()
	if countWrongWay(h.spoken) != 2 {
		t.Fatalf("alert after cooldown missing: %v", h.spoken)
	}
}

func TestWrongWayAnchorClearsOnCorrectHeading(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.err = nil

	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: 180}
	h.tick()
	if h.r.anchor == nil {
		t.Fatalf("anchor not set")
	}

	// One in-tolerance sample resets the anchor.
	h.pos.pos = locate.Position{Point: ptNorth(0), Heading: 10}
	h.tick()
	if h.r.anchor != nil {
		t.Fatalf("anchor survived a corrected heading")
	}
}

func TestOffRouteTriggersOnce(t *testing.T) {
	h := newHarness(t, northRoute())
	h.pos.err = nil
	h.pos.pos = locate.Position{Point: ptEast(35), Heading: -1}

	h.tick()
	if h.offRoute != 1 {
		t.Fatalf("offRoute = %d", h.offRoute)
	}
	if h.m.Running() {
		t.Fatalf("run should stop on off-route")
	}

	// The run is stopped, so further samples cannot retrigger.
	h.tick()
	if h.offRoute != 1 {
		t.Fatalf("off-route retriggered: %d", h.offRoute)
	}
}
