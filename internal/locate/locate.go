// Package locate tracks the walker's most recent position fix.
package locate

import (
	"errors"
	"sync"
	"time"

	"cosmo/pkg/geo"
)

// ErrNoFix reports that no usable position is available.
var ErrNoFix = errors.New("no position fix")

// MaxFixAge is how old a fix may be before it stops counting.
const MaxFixAge = 30 * time.Second

// Position is one location sample.
type Position struct {
	Point   geo.Point
	Heading float64 // degrees from north, negative when unknown
	Speed   float64 // meters per second
	At      time.Time
}

// Source provides the current position.
type Source interface {
	Current() (Position, error)
}

// Feed holds the latest sample pushed from any transport. Safe for
// concurrent use.
type Feed struct {
	mu   sync.Mutex
	last Position
	set  bool

	now func() time.Time
}

func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

// Update records a new sample. A zero timestamp is stamped on arrival.
func (f *Feed) Update(p Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.At.IsZero() {
		p.At = f.now()
	}
	f.last = p
	f.set = true
}

// Current returns the latest sample, or ErrNoFix when none has arrived or
// the last one has gone stale.
func (f *Feed) Current() (Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		return Position{}, ErrNoFix
	}
	if f.now().Sub(f.last.At) > MaxFixAge {
		return Position{}, ErrNoFix
	}
	return f.last, nil
}
