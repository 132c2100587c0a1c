package listen

import (
	"context"
	"errors"
	"sync"
	"time"

	log "log/slog"

	"cosmo/internal/audio"
)

const (
	// DefaultClipLen is the capture cycle length. Short clips keep the
	// wake phrase latency low.
	DefaultClipLen = 1500 * time.Millisecond

	// silenceRMS gates transcription: clips quieter than this never leave
	// the device.
	silenceRMS = 0.01

	busyRetry  = 100 * time.Millisecond
	errorRetry = 200 * time.Millisecond
)

// Recorder is the clip source. *audio.Recorder satisfies it.
type Recorder interface {
	RecordClip(ctx context.Context, d time.Duration) (audio.Clip, error)
}

// Loop is the audio capture loop: while running, it records short clips and
// hands each one to the transcription handler without waiting for it.
type Loop struct {
	rec     Recorder
	clipLen time.Duration
	handle  func(audio.Clip)

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewLoop builds a capture loop. handle is fire-and-forget: it runs on its
// own goroutine per clip and its errors must stay its own problem.
func NewLoop(rec Recorder, clipLen time.Duration, handle func(audio.Clip)) *Loop {
	if clipLen <= 0 {
		clipLen = DefaultClipLen
	}
	return &Loop{rec: rec, clipLen: clipLen, handle: handle}
}

// Start launches the loop. Starting a running loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running = true
	go l.run(ctx)
}

// Stop cancels the loop. The in-flight recording unblocks at its next
// checkpoint and its result is discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.cancel()
	l.running = false
}

// Running reports whether the loop is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context) {
	log.Debug("capture loop started", "clip", l.clipLen)
	for ctx.Err() == nil {
		clip, err := l.rec.RecordClip(ctx, l.clipLen)
		switch {
		case errors.Is(err, context.Canceled):
			// Told to stop mid-clip.
		case errors.Is(err, audio.ErrBusy):
			// Another recording holds the device; skip this cycle.
			sleepCtx(ctx, busyRetry)
			continue
		case err != nil:
			log.Debug("capture cycle failed", "err", err)
			sleepCtx(ctx, errorRetry)
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if clip.RMS() < silenceRMS {
			continue
		}
		go l.handle(clip)
	}
	log.Debug("capture loop stopped")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
