package ports

import "context"

type SpeechEvent string

const (
	SpeechStarted SpeechEvent = "start"
	SpeechDone    SpeechEvent = "done"
	SpeechStopped SpeechEvent = "stopped"
	SpeechError   SpeechEvent = "error"
)

// A single piece of text to be spoken with its voice parameters.
type Utterance struct {
	Text     string
	Language string
	Pitch    float64
	Rate     float64
	// OnEvent receives lifecycle callbacks. It may be invoked from any goroutine.
	OnEvent func(SpeechEvent, error)
}

// Contract for platform text-to-speech. There is a single exclusive channel:
// speaking implicitly supersedes whatever was playing.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, u Utterance) error
	Stop() error
}
