package speech

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

int
espeak_say(const char *text)
{
	if (!text)
	{ return -1; }

	espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0);
	espeak_VOICE specs = { .languages = "en" };
	espeak_SetVoiceByProperties(&specs);

	espeak_Synth(text, 500, 0, 0, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Espeak plays text through espeak-ng. Synthesis is synchronous in the
// library, so each utterance runs on its own goroutine and playback is
// serialized with a mutex.
type Espeak struct {
	mu sync.Mutex
}

func NewEspeak() *Espeak { return &Espeak{} }

func (e *Espeak) Speak(text string, done func(error)) {
	go func() {
		e.mu.Lock()
		err := e.say(text)
		e.mu.Unlock()
		done(err)
	}()
}

func (e *Espeak) say(text string) error {
	if text == "" {
		return nil
	}

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	rc := C.espeak_say(ctext)
	if rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}

	return nil
}
