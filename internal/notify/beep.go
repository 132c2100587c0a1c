// Package notify plays short earcons: a chime when the assistant starts
// listening actively, a lower one when it stops.
package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Chime plays a preloaded notification sound.
type Chime struct {
	buffer *beep.Buffer

	mu sync.Mutex
}

var speakerOnce sync.Once

// Load reads an mp3 earcon from path and primes the speaker.
func Load(path string) (*Chime, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chime: %w", err)
	}
	defer f.Close()

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	var initErr error
	speakerOnce.Do(func() {
		initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if initErr != nil {
		return nil, fmt.Errorf("init speaker: %w", initErr)
	}

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	return &Chime{buffer: buf}, nil
}

// Play blocks until the chime finishes. Safe to call from any goroutine.
func (c *Chime) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	done := make(chan struct{})
	s := c.buffer.Streamer(0, c.buffer.Len())
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))
	<-done
}
