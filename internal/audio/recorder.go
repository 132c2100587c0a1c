package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrBusy reports that a clip is already being recorded. The capture loop
// treats it as a skip, not a failure.
var ErrBusy = errors.New("recording already in progress")

const (
	// SampleRate for all captured audio. Whisper and the upload service
	// both take mono 16 kHz.
	SampleRate = 16000
	frameSize  = 320 // 20ms
)

// Clip is one recorded chunk: raw samples for local transcription plus a
// wav file on disk for the upload path.
type Clip struct {
	Path string
	PCM  []float32
	Rate int
}

// RMS is the clip's root mean square level, used to skip silent clips.
func (c Clip) RMS() float64 {
	return rms(c.PCM)
}

func rms(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

// Recorder captures fixed-length clips from the default input device. At
// most one clip can be open at a time; concurrent calls get ErrBusy.
type Recorder struct {
	mu   sync.Mutex
	open bool
	dir  string
}

// NewRecorder writes clip files under dir ("" means the OS temp dir).
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordClip captures up to d of audio, returning early when ctx is
// cancelled. The stream is always released before returning.
func (r *Recorder) RecordClip(ctx context.Context, d time.Duration) (Clip, error) {
	r.mu.Lock()
	if r.open {
		r.mu.Unlock()
		return Clip{}, ErrBusy
	}
	r.open = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.open = false
		r.mu.Unlock()
	}()

	buf := make([]float32, frameSize)
	out := make([]float32, 0, int(float64(SampleRate)*d.Seconds()))

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return Clip{}, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return Clip{}, err
	}
	defer stream.Stop()

	frames := int(d.Seconds() * SampleRate / frameSize)
	for i := 0; i < frames; i++ {
		select {
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		default:
		}
		if err := stream.Read(); err != nil {
			return Clip{}, err
		}
		out = append(out, buf...)
	}

	path, err := writeClipWAV(r.dir, out)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Path: path, PCM: out, Rate: SampleRate}, nil
}
