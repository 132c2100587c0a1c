package assist

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"cosmo/internal/directions"
	"cosmo/internal/hazards"
	"cosmo/internal/listen"
	"cosmo/internal/locate"
	"cosmo/internal/nlu"
	"cosmo/internal/places"
	"cosmo/internal/speech"
	"cosmo/pkg/geo"
)

type fakeEngine struct {
	mu    sync.Mutex
	texts []string
}

func (e *fakeEngine) Speak(text string, done func(error)) {
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()
	done(nil)
}

func (e *fakeEngine) spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

type noopCapture struct{}

func (noopCapture) Start() {}
func (noopCapture) Stop()  {}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results []places.Candidate
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, near geo.Point) ([]places.Candidate, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.results, f.err
}

func (f *fakeSearcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeRouter struct {
	route *directions.Route
	err   error
}

func (f *fakeRouter) Route(ctx context.Context, origin, dest geo.Point, mode directions.Mode) (*directions.Route, error) {
	return f.route, f.err
}

type noHazards struct{}

func (noHazards) Near(ctx context.Context, pt geo.Point, radius float64) ([]hazards.Hazard, error) {
	return nil, nil
}

type fixedPosition struct{}

func (fixedPosition) Current() (locate.Position, error) {
	return locate.Position{Point: geo.Point{Lon: 0, Lat: 0}, Heading: -1, At: time.Now()}, nil
}

type fakeResolver struct {
	mu      sync.Mutex
	queries []string
	result  nlu.Decision
}

func (f *fakeResolver) Resolve(ctx context.Context, text string) nlu.Decision {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	return f.result
}

func (f *fakeResolver) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type env struct {
	core     *Core
	engine   *fakeEngine
	searcher *fakeSearcher
	router   *fakeRouter
	resolver *fakeResolver
	cancel   context.CancelFunc
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		engine:   &fakeEngine{},
		searcher: &fakeSearcher{},
		router:   &fakeRouter{},
		resolver: &fakeResolver{},
	}
	listener := listen.NewController(noopCapture{}, listen.DefaultActiveWindow)

	core := NewCore(Deps{
		Listener:   listener,
		Resolver:   e.resolver,
		Places:     e.searcher,
		Directions: e.router,
		Hazards:    noHazards{},
		Position:   fixedPosition{},
	})
	core.SetSpeech(speech.NewCoordinator(e.engine, listener, core.Post))
	e.core = core

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go core.Run(ctx)
	t.Cleanup(cancel)
	return e
}

// sync waits for everything already posted to run.
func (e *env) sync() { e.core.Status() }

func (e *env) waitSpoken(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		for _, s := range e.engine.spoken() {
			if strings.Contains(s, substr) {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("%q never spoken; spoken: %v", substr, e.engine.spoken())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (e *env) countSpoken(substr string) int {
	n := 0
	for _, s := range e.engine.spoken() {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

func threeCandidates() []places.Candidate {
	return []places.Candidate{
		{Label: "Blue Bottle Coffee", Point: geo.Point{Lon: 0.001, Lat: 0}, DistanceMeters: 111},
		{Label: "Ritual Coffee", Point: geo.Point{Lon: 0.002, Lat: 0}, DistanceMeters: 222},
		{Label: "Sightglass Coffee", Point: geo.Point{Lon: 0.003, Lat: 0}, DistanceMeters: 333},
	}
}

func walkRoute() *directions.Route {
	return &directions.Route{
		Steps: []directions.Step{
			{Instruction: "Head north", End: geo.Point{Lon: 0, Lat: 0.001}},
		},
		Path:         []geo.Point{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.001}},
		Destination:  geo.Point{Lon: 0, Lat: 0.001},
		DistanceText: "110 m",
		DurationText: "2 mins",
	}
}

func TestSelectOutOfRangeLeavesStateUnchanged(t *testing.T) {
	e := newEnv(t)
	e.core.Post(func() { e.core.candidates = threeCandidates() })
	e.core.Post(func() { e.core.selectCandidate(5) })
	e.sync()

	e.waitSpoken(t, "between 1 and 3")
	s := e.core.Status()
	if s.Candidates != 3 || s.Destination != "" {
		t.Fatalf("state changed on out-of-range select: %+v", s)
	}
}

func TestSelectWithNoCandidates(t *testing.T) {
	e := newEnv(t)
	e.core.Post(func() { e.core.selectCandidate(0) })
	e.sync()
	e.waitSpoken(t, "no options to choose from")
}

func TestSelectRequestsRoute(t *testing.T) {
	e := newEnv(t)
	e.router.route = walkRoute()
	e.core.Post(func() { e.core.candidates = threeCandidates() })
	e.core.Post(func() { e.core.selectCandidate(1) })

	e.waitSpoken(t, "Getting directions to Ritual Coffee")
	e.waitSpoken(t, "Say start to begin navigation")

	s := e.core.Status()
	if s.Destination != "Ritual Coffee" {
		t.Fatalf("destination = %q", s.Destination)
	}
}

func TestStopNavigationIdempotent(t *testing.T) {
	e := newEnv(t)
	e.core.Post(func() {
		e.core.route = walkRoute()
		e.core.startNavigation()
	})
	e.sync()
	if !e.core.Status().Navigating {
		t.Fatalf("navigation did not start")
	}

	e.core.Post(func() { e.core.stopNavigation(false) })
	e.core.Post(func() { e.core.stopNavigation(false) })
	e.sync()

	if got := e.countSpoken("Navigation stopped"); got != 1 {
		t.Fatalf("stop announced %d times", got)
	}
	s := e.core.Status()
	if s.Navigating || s.Destination != "" || s.Candidates != 0 {
		t.Fatalf("state not cleared: %+v", s)
	}
}

func TestStartNavigationIdempotent(t *testing.T) {
	e := newEnv(t)
	e.core.Post(func() {
		e.core.route = walkRoute()
		e.core.startNavigation()
		e.core.startNavigation()
	})
	e.sync()
	if got := e.countSpoken("Starting navigation"); got != 1 {
		t.Fatalf("start announced %d times", got)
	}
}

func TestStopWordWorksWhilePassive(t *testing.T) {
	e := newEnv(t)
	e.core.Post(func() {
		e.core.route = walkRoute()
		e.core.startNavigation()
	})
	e.sync()

	// No wake phrase, passive mode: the stop override still fires.
	e.core.Post(func() { e.core.handleTranscript("please stop") })
	e.sync()

	e.waitSpoken(t, "Navigation stopped")
	if e.core.Status().Navigating {
		t.Fatalf("still navigating after stop")
	}
}

func TestSpokenNumberSelectsWhileActive(t *testing.T) {
	e := newEnv(t)
	e.router.route = walkRoute()
	e.core.Post(func() {
		e.core.candidates = threeCandidates()
		e.core.deps.Listener.EnterActive()
	})
	e.core.Post(func() { e.core.handleTranscript("three") })

	e.waitSpoken(t, "Getting directions to Sightglass Coffee")
}

func TestWakePhraseCommandGoesToResolver(t *testing.T) {
	e := newEnv(t)
	e.resolver.result = nlu.Decision{Action: "navigate", Location: "coffee shop"}
	e.searcher.err = places.ErrNoResults

	e.core.Post(func() { e.core.handleTranscript("hey cosmo coffee shop") })

	e.waitSpoken(t, "Searching for coffee shop")
	deadline := time.Now().Add(2 * time.Second)
	for len(e.resolver.seen()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("resolver never called")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := e.resolver.seen()[0]; got != "coffee shop" {
		t.Fatalf("resolver query = %q", got)
	}
}

func TestBareWakePhrasePrompts(t *testing.T) {
	e := newEnv(t)
	e.core.Post(func() { e.core.handleTranscript("hey cosmo") })
	e.sync()

	e.waitSpoken(t, "How can I help")
}

func TestHandleCommandSearch(t *testing.T) {
	e := newEnv(t)
	e.searcher.results = threeCandidates()

	msg, ok := e.core.HandleCommand("search", "coffee")
	if !ok || msg != "searching" {
		t.Fatalf("HandleCommand = %q, %v", msg, ok)
	}
	e.waitSpoken(t, "I found 3 results for coffee")

	deadline := time.Now().Add(2 * time.Second)
	for e.core.Status().Candidates != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("candidates never stored")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleCommandStatusMatchesState(t *testing.T) {
	e := newEnv(t)
	e.core.Post(func() { e.core.candidates = threeCandidates() })
	e.sync()

	msg, ok := e.core.HandleCommand("status", "")
	if !ok {
		t.Fatalf("status rejected: %q", msg)
	}
	if want := e.core.Status().String(); msg != want {
		t.Fatalf("status message = %q, want %q", msg, want)
	}
	if !strings.Contains(msg, "candidates=3") {
		t.Fatalf("status message missing candidate count: %q", msg)
	}
}

func TestHandleCommandUnknown(t *testing.T) {
	e := newEnv(t)
	if _, ok := e.core.HandleCommand("dance", ""); ok {
		t.Fatalf("unknown command accepted")
	}
}
