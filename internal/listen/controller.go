package listen

import (
	"time"

	log "log/slog"
)

// Mode is the listening state.
type Mode int

const (
	// Idle: never listened, or torn down.
	Idle Mode = iota
	// Passive: capture running, wake phrase required.
	Passive
	// Active: capture running, next transcript is a command. Time-boxed.
	Active
	// Suspended: capture stopped, e.g. while the assistant speaks.
	Suspended
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Passive:
		return "passive"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	}
	return "unknown"
}

// DefaultActiveWindow bounds how long a prompt keeps the assistant in
// active mode.
const DefaultActiveWindow = 30 * time.Second

// CaptureControl starts and stops the microphone capture loop.
type CaptureControl interface {
	Start()
	Stop()
}

// Controller owns the ListeningSession. It must only be touched from the
// session loop; the expiry callback is delivered through the schedule
// function so the owner can post it back onto that loop.
type Controller struct {
	capture CaptureControl
	window  time.Duration

	mode   Mode
	prev   Mode // mode held before suspension
	expiry time.Time

	now      func() time.Time
	schedule func(d time.Duration, fn func()) func()
	cancelEx func()
}

func NewController(capture CaptureControl, window time.Duration) *Controller {
	if window <= 0 {
		window = DefaultActiveWindow
	}
	return &Controller{
		capture: capture,
		window:  window,
		now:     time.Now,
		schedule: func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		},
	}
}

// Mode reports the current mode, demoting a stale Active session to
// Passive so the "Active only while expiry is in the future" invariant
// holds even between timer fires.
func (c *Controller) Mode() Mode {
	if c.mode == Active && !c.now().Before(c.expiry) {
		c.mode = Passive
	}
	return c.mode
}

// SetSchedule replaces the expiry timer factory. The owner must install a
// schedule that delivers fn back on its own loop before the first
// EnterActive; the default fires fn straight from the timer goroutine and
// is only safe for single-goroutine use.
func (c *Controller) SetSchedule(fn func(d time.Duration, fn func()) func()) {
	c.schedule = fn
}

// EnterPassive starts (or keeps) the capture loop with the wake phrase
// required.
func (c *Controller) EnterPassive() {
	c.dropExpiry()
	c.mode = Passive
	c.capture.Start()
	log.Debug("listening mode", "mode", c.mode)
}

// EnterActive opens the no-wake-word window. A timer reverts to Passive if
// nothing qualifying arrives before expiry.
func (c *Controller) EnterActive() {
	c.dropExpiry()
	c.mode = Active
	c.expiry = c.now().Add(c.window)
	c.capture.Start()
	c.cancelEx = c.schedule(c.window, c.expire)
	log.Debug("listening mode", "mode", c.mode, "window", c.window)
}

func (c *Controller) expire() {
	if c.mode != Active || c.now().Before(c.expiry) {
		return
	}
	c.mode = Passive
	log.Debug("active window expired")
}

// Deactivate drops an Active session back to Passive after a command
// resolved.
func (c *Controller) Deactivate() {
	if c.mode == Active {
		c.dropExpiry()
		c.mode = Passive
	}
}

// Suspend stops capture and remembers the mode so Resume can restore it.
// Called by the speech coordinator around playback.
func (c *Controller) Suspend() {
	if c.mode == Suspended {
		return
	}
	c.prev = c.Mode()
	c.mode = Suspended
	c.capture.Stop()
}

// Resume restores the mode held before suspension. A stale Active window
// resumes as Passive.
func (c *Controller) Resume() {
	if c.mode != Suspended {
		return
	}
	mode := c.prev
	if mode == Active && !c.now().Before(c.expiry) {
		mode = Passive
	}
	c.mode = mode
	if mode == Passive || mode == Active {
		c.capture.Start()
	}
}

// Stop tears the session down.
func (c *Controller) Stop() {
	c.dropExpiry()
	c.mode = Idle
	c.capture.Stop()
}

func (c *Controller) dropExpiry() {
	if c.cancelEx != nil {
		c.cancelEx()
		c.cancelEx = nil
	}
}
