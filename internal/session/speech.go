package session

import (
	"charge-station-locator/internal/ports"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var _ ports.SpeechSynthesizer = (*socketSynthesizer)(nil)

var errSpeechUnavailable = errors.New("speech channel unavailable")

// socketSynthesizer speaks through the connected client: Speak sends a
// speak frame and lifecycle events come back as speech_event frames.
// Only the latest utterance receives events.
type socketSynthesizer struct {
	send func(Envelope) bool

	mu      sync.Mutex
	current string
	onEvent func(ports.SpeechEvent, error)
}

func newSocketSynthesizer(send func(Envelope) bool) *socketSynthesizer {
	return &socketSynthesizer{send: send}
}

func (s *socketSynthesizer) Speak(ctx context.Context, u ports.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := uuid.NewString()
	env, err := newEnvelope(TypeSpeak, speakMessage{
		ID:       id,
		Text:     u.Text,
		Language: u.Language,
		Pitch:    u.Pitch,
		Rate:     u.Rate,
	})
	if err != nil {
		return fmt.Errorf("speak: encode: %w", err)
	}

	s.mu.Lock()
	s.current, s.onEvent = id, u.OnEvent
	s.mu.Unlock()

	if !s.send(env) {
		s.mu.Lock()
		if s.current == id {
			s.current, s.onEvent = "", nil
		}
		s.mu.Unlock()
		return fmt.Errorf("speak: %w", errSpeechUnavailable)
	}
	return nil
}

// Stop tells the client to stop and reports the interrupted utterance as stopped.
func (s *socketSynthesizer) Stop() error {
	s.mu.Lock()
	id, fn := s.current, s.onEvent
	s.current, s.onEvent = "", nil
	s.mu.Unlock()

	if id == "" {
		return nil
	}

	env, err := newEnvelope(TypeSpeechStop, speechStopMessage{ID: id})
	if err != nil {
		return fmt.Errorf("stop speech: encode: %w", err)
	}
	if fn != nil {
		fn(ports.SpeechStopped, nil)
	}
	if !s.send(env) {
		return fmt.Errorf("stop speech: %w", errSpeechUnavailable)
	}
	return nil
}

// dispatch forwards a client-reported event to the utterance it belongs to.
// Events for superseded utterances are dropped.
func (s *socketSynthesizer) dispatch(msg speechEventMessage) error {
	ev := ports.SpeechEvent(msg.Event)
	switch ev {
	case ports.SpeechStarted, ports.SpeechDone, ports.SpeechStopped, ports.SpeechError:
	default:
		return fmt.Errorf("speech event: unknown event %q", msg.Event)
	}

	s.mu.Lock()
	if msg.ID == "" || msg.ID != s.current {
		s.mu.Unlock()
		return nil
	}
	fn := s.onEvent
	if ev != ports.SpeechStarted {
		s.current, s.onEvent = "", nil
	}
	s.mu.Unlock()

	if fn == nil {
		return nil
	}
	var err error
	if ev == ports.SpeechError {
		reason := msg.Error
		if reason == "" {
			reason = "client speech error"
		}
		err = errors.New(reason)
	}
	fn(ev, err)
	return nil
}
