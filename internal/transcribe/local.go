package transcribe

import (
	"context"
	"fmt"

	"cosmo/internal/audio"
	"cosmo/pkg/audioconv"
	"cosmo/pkg/stt"
)

// wakePrompt biases whisper toward the vocabulary short clips carry.
const wakePrompt = "Cosmo, navigate, take me to, stop navigation, walking, transit."

// Local recognizes clips with an on-device whisper model. It needs no
// network and no API key.
type Local struct {
	engine *stt.Engine
}

func NewLocal(modelPath string) (*Local, error) {
	engine, err := stt.NewEngine(modelPath)
	if err != nil {
		return nil, err
	}
	return &Local{engine: engine}, nil
}

func (l *Local) Close() error { return l.engine.Close() }

func (l *Local) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	pcm := clip.PCM
	if len(pcm) == 0 {
		var err error
		pcm, err = audioconv.DecodeFile(clip.Path)
		if err != nil {
			return "", fmt.Errorf("decode clip: %w", err)
		}
	}

	res, err := l.engine.Transcribe(ctx, pcm, stt.Options{
		Language:      "en",
		InitialPrompt: wakePrompt,
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
