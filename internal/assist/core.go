// Package assist is the session core: a single loop that owns all
// conversational and navigation state and runs every mutation posted to it.
package assist

import (
	"context"
	"fmt"

	log "log/slog"

	"cosmo/internal/audio"
	"cosmo/internal/directions"
	"cosmo/internal/hazards"
	"cosmo/internal/intent"
	"cosmo/internal/listen"
	"cosmo/internal/locate"
	"cosmo/internal/nav"
	"cosmo/internal/nlu"
	"cosmo/internal/places"
	"cosmo/internal/speech"
	"cosmo/internal/transcribe"
	"cosmo/pkg/geo"
)

// Resolver is the free-form fallback chain surface.
type Resolver interface {
	Resolve(ctx context.Context, text string) nlu.Decision
}

// Chime plays the attention earcon.
type Chime interface {
	Play()
}

// Deps are the core's collaborators. Chime and Publish may be nil.
type Deps struct {
	Listener    *listen.Controller
	Speech      *speech.Coordinator
	Transcriber transcribe.Transcriber
	Resolver    Resolver
	Places      places.Searcher
	Directions  directions.Router
	Hazards     hazards.Source
	Position    locate.Source
	Chime       Chime
	Publish     func(kind string, payload any)
}

// State is the read-only view exposed over IPC and the bus.
type State struct {
	Mode        string `json:"mode"`
	Navigating  bool   `json:"navigating"`
	Candidates  int    `json:"candidates"`
	StepIndex   int    `json:"step_index"`
	StepText    string `json:"step_text,omitempty"`
	TravelMode  string `json:"travel_mode"`
	Destination string `json:"destination,omitempty"`
}

// String renders the one-line form the control surfaces print.
func (s State) String() string {
	return fmt.Sprintf("mode=%s navigating=%v candidates=%d step=%d travel=%s dest=%s",
		s.Mode, s.Navigating, s.Candidates, s.StepIndex, s.TravelMode, s.Destination)
}

// Core owns the session. All state below deps is touched only from the ops
// loop; external surfaces post closures via Post.
type Core struct {
	deps    Deps
	ops     chan func()
	monitor *nav.Monitor

	candidates []places.Candidate
	lastQuery  string
	route      *directions.Route
	destLabel  string
	travelMode directions.Mode
}

func NewCore(deps Deps) *Core {
	c := &Core{
		deps:       deps,
		ops:        make(chan func(), 64),
		travelMode: directions.ModeWalking,
	}
	c.monitor = nav.NewMonitor(nav.Deps{
		Position: deps.Position,
		Hazards:  deps.Hazards,
		Announce: func(text string) { c.Post(func() { c.announce(text) }) },
		Arrived:  func() { c.Post(func() { c.stopNavigation(true) }) },
		OffRoute: func(dest geo.Point) { c.Post(func() { c.recalculate(dest) }) },
	})
	return c
}

// SetSpeech installs the output coordinator. The coordinator posts its
// completions through Core.Post, so it is built after the core and wired
// in here, before Run.
func (c *Core) SetSpeech(s *speech.Coordinator) { c.deps.Speech = s }

// Post queues fn onto the session loop.
func (c *Core) Post(fn func()) { c.ops <- fn }

// Run drains the session loop until ctx is cancelled. It starts listening
// passively first.
func (c *Core) Run(ctx context.Context) {
	c.Post(func() { c.deps.Listener.EnterPassive() })
	for {
		select {
		case <-ctx.Done():
			c.monitor.Stop()
			c.deps.Listener.Stop()
			return
		case fn := <-c.ops:
			fn()
		}
	}
}

// HandleClip is the capture loop sink. Transcription runs off-loop; the
// resulting text is posted back.
func (c *Core) HandleClip(clip audio.Clip) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*nav.TickInterval)
	defer cancel()

	text, err := c.deps.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		log.Debug("transcription failed", "err", err)
		return
	}
	if text == "" {
		return
	}
	log.Debug("transcript", "text", text)
	c.Post(func() { c.handleTranscript(text) })
}

func (c *Core) snapshot() intent.Snapshot {
	return intent.Snapshot{
		Navigating: c.monitor.Running(),
		HasRoute:   c.route != nil,
		Candidates: len(c.candidates),
		Active:     c.deps.Listener.Mode() == listen.Active,
	}
}

func (c *Core) handleTranscript(text string) {
	in := intent.Resolve(text, c.snapshot())
	if in.Kind == intent.None {
		return
	}
	log.Info("intent", "kind", in.Kind.String(), "text", text)

	switch in.Kind {
	case intent.Prompt:
		c.prompt()
	case intent.StopNavigation:
		c.stopNavigation(false)
	case intent.Repeat:
		c.repeatInstruction()
	case intent.StartNavigation:
		c.startNavigation()
	case intent.Select:
		c.selectCandidate(in.Index)
	case intent.TravelMode:
		c.setTravelMode(in.Mode)
	case intent.Help:
		c.help()
	case intent.RepeatOptions:
		c.repeatOptions()
	case intent.Freeform:
		c.freeform(in.Query)
	}
}

// announce speaks text and mirrors it onto the bus.
func (c *Core) announce(text string) {
	c.deps.Speech.SpeakBrief(text)
	c.publish("announcement", map[string]string{"text": text})
}

func (c *Core) publish(kind string, payload any) {
	if c.deps.Publish != nil {
		c.deps.Publish(kind, payload)
	}
}

func (c *Core) state() State {
	idx, text, _ := c.monitor.CurrentStep()
	return State{
		Mode:        c.deps.Listener.Mode().String(),
		Navigating:  c.monitor.Running(),
		Candidates:  len(c.candidates),
		StepIndex:   idx,
		StepText:    text,
		TravelMode:  string(c.travelMode),
		Destination: c.destLabel,
	}
}

func (c *Core) publishState() {
	c.publish("state", c.state())
}

// Status returns the current session state, synchronized through the loop.
func (c *Core) Status() State {
	resp := make(chan State, 1)
	c.Post(func() { resp <- c.state() })
	return <-resp
}
