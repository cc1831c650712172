// Package espeak speaks through the local espeak-ng library. It needs no
// network and serves as the last speaker in the fallback chain.
package espeak

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

static int
jarvis_espeak_init(const char *voice)
{
	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_VOICE specs = { .languages = voice };
	if (espeak_SetVoiceByProperties(&specs) != EE_OK)
	{ return -2; }

	return 0;
}

static int
jarvis_espeak_say(const char *text)
{
	if (!text)
	{ return -1; }

	if (espeak_Synth(text, 0, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL) != EE_OK)
	{ return -2; }

	return espeak_Synchronize() == EE_OK ? 0 : -3;
}

static void
jarvis_espeak_cancel(void)
{
	espeak_Cancel();
}
*/
import "C"

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unsafe"
)

var (
	initOnce sync.Once
	initErr  error
)

// Speaker plays one utterance at a time.
type Speaker struct {
	mu sync.Mutex
}

func New(voice string) (*Speaker, error) {
	if voice == "" {
		voice = "en"
	}
	initOnce.Do(func() {
		cvoice := C.CString(voice)
		defer C.free(unsafe.Pointer(cvoice))
		if rc := C.jarvis_espeak_init(cvoice); rc != 0 {
			initErr = fmt.Errorf("espeak init failed: %d", int(rc))
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	return &Speaker{}, nil
}

func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	done := make(chan C.int, 1)
	go func() { done <- C.jarvis_espeak_say(ctext) }()

	select {
	case rc := <-done:
		if rc != 0 {
			return fmt.Errorf("espeak_say failed: %d", int(rc))
		}
		return nil
	case <-ctx.Done():
		C.jarvis_espeak_cancel()
		<-done
		return ctx.Err()
	}
}
