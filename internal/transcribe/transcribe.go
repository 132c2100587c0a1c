// Package transcribe turns captured clips into text, either through a
// hosted speech API or a local whisper model.
package transcribe

import (
	"context"

	"cosmo/internal/audio"
)

// Transcriber converts one captured clip to text. An empty string with a
// nil error means the clip held no recognizable speech.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}
