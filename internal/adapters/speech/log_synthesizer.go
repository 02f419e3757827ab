package speech

import (
	"charge-station-locator/internal/ports"
	"context"
	"log"
	"sync"
)

var _ ports.SpeechSynthesizer = (*LogSynthesizer)(nil)

// LogSynthesizer "speaks" by writing utterances to the log. It stands in for
// a platform voice when the client has no speech engine or SERVER_SPEECH is set.
type LogSynthesizer struct {
	mu      sync.Mutex
	spoken  []ports.Utterance
	stopped int
}

func NewLogSynthesizer() *LogSynthesizer {
	return &LogSynthesizer{}
}

func (s *LogSynthesizer) Speak(ctx context.Context, u ports.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	s.mu.Unlock()

	log.Printf("speech=speak lang=%s pitch=%.2f rate=%.2f text=%q", u.Language, u.Pitch, u.Rate, u.Text)

	if u.OnEvent != nil {
		u.OnEvent(ports.SpeechStarted, nil)
		u.OnEvent(ports.SpeechDone, nil)
	}
	return nil
}

func (s *LogSynthesizer) Stop() error {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
	return nil
}

// Spoken returns every utterance received so far.
func (s *LogSynthesizer) Spoken() []ports.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ports.Utterance, len(s.spoken))
	copy(out, s.spoken)
	return out
}

func (s *LogSynthesizer) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
