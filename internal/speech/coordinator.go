package speech

import (
	"context"
	"time"

	log "log/slog"
)

// Engine produces audible speech. Implementations must call done exactly
// once, from any goroutine.
type Engine interface {
	Speak(text string, done func(error))
}

// Listener is the listening controller surface the coordinator drives.
// Suspend stops capture before playback; Resume restores the prior mode.
type Listener interface {
	Suspend()
	Resume()
}

// Options for Coordinator.Speak.
type Options struct {
	// OnDone runs after playback finishes (or fails), before any resume.
	OnDone func()
	// KeepSuspended leaves the listener suspended after playback instead
	// of resuming it. Used when the caller will restart listening itself,
	// e.g. to hand the microphone straight to a command recording.
	KeepSuspended bool
}

const duckFade = 150 * time.Millisecond

// Coordinator serializes spoken output against listening. It is the only
// component allowed to stop and start capture as a side effect of playback,
// which is what keeps the microphone and the speaker from ever being hot at
// the same time.
type Coordinator struct {
	engine   Engine
	listener Listener
	ducker   *Ducker      // optional
	post     func(func()) // delivers completions back onto the session loop
}

func NewCoordinator(engine Engine, listener Listener, post func(func())) *Coordinator {
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Coordinator{engine: engine, listener: listener, post: post}
}

// SetDucker enables fading down other audio streams during playback.
func (c *Coordinator) SetDucker(d *Ducker) { c.ducker = d }

// Speak suspends listening, plays text, and on completion or error resumes
// listening unless opts.KeepSuspended is set. Playback errors are logged
// and treated as completion: audio output failure must never leave the
// assistant deaf.
func (c *Coordinator) Speak(text string, opts Options) {
	c.listener.Suspend()
	c.duck()
	c.engine.Speak(text, func(err error) {
		c.post(func() {
			if err != nil {
				log.Warn("speech playback failed", "err", err)
			}
			c.unduck()
			if opts.OnDone != nil {
				opts.OnDone()
			}
			if !opts.KeepSuspended {
				c.listener.Resume()
			}
		})
	})
}

// SpeakBrief is the mid-navigation variant: suspend, speak, and resume no
// matter what, so alerts never leave listening stopped.
func (c *Coordinator) SpeakBrief(text string) {
	c.Speak(text, Options{})
}

func (c *Coordinator) duck() {
	if c.ducker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.ducker.DuckOthers(ctx, duckFade); err != nil {
		log.Debug("duck failed", "err", err)
	}
}

func (c *Coordinator) unduck() {
	if c.ducker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.ducker.UnduckOthers(ctx, duckFade); err != nil {
		log.Debug("unduck failed", "err", err)
	}
}
