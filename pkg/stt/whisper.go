// Package stt wraps whisper.cpp for on-device speech recognition.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Options tunes a single recognition pass.
type Options struct {
	Language      string // "auto" when empty
	Threads       int    // <=0 uses NumCPU
	InitialPrompt string // biases decoding toward expected vocabulary
	BeamSize      int    // >0 enables beam search
}

// Result is the recognized text with the language whisper settled on.
type Result struct {
	Text     string
	Language string
}

// Engine owns a loaded whisper model. One Engine serves many calls; the
// model load is the expensive part.
type Engine struct {
	model whisper.Model
}

func NewEngine(modelPath string) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	return &Engine{model: m}, nil
}

func (e *Engine) Close() error {
	if e.model == nil {
		return nil
	}
	return e.model.Close()
}

// Transcribe recognizes mono 16 kHz float32 samples in [-1, 1].
func (e *Engine) Transcribe(ctx context.Context, pcm16k []float32, opt Options) (Result, error) {
	if e.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, errors.New("no audio samples")
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new whisper context: %w", err)
	}

	lang := opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}
	if opt.BeamSize > 0 {
		wctx.SetBeamSize(opt.BeamSize)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper process: %w", err)
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		parts = append(parts, strings.TrimSpace(s.Text))
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = wctx.Language()
	}
	return Result{
		Text:     strings.Join(parts, " "),
		Language: detected,
	}, nil
}
