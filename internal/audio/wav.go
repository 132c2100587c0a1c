package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeClipWAV stores mono float32 samples as a 16-bit PCM wav file and
// returns its path.
func writeClipWAV(dir string, pcm []float32) (string, error) {
	f, err := os.CreateTemp(dir, "clip-*.wav")
	if err != nil {
		return "", err
	}

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)

	data := make([]int, len(pcm))
	for i, s := range pcm {
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("close wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}
