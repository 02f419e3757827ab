package services

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
)

// Voice is the language and prosody used for one platform.
type Voice struct {
	Language string  `json:"language"`
	Pitch    float64 `json:"pitch"`
	Rate     float64 `json:"rate"`
}

// VoiceTable maps a platform name to its voice.
type VoiceTable map[string]Voice

// DefaultVoices slows speech down where the platform's Turkish voice is fast.
var DefaultVoices = VoiceTable{
	"android": {Language: "tr-TR", Pitch: 1.0, Rate: 0.70},
	"ios":     {Language: "tr-TR", Pitch: 1.0, Rate: 0.50},
	"web":     {Language: "tr-TR", Pitch: 1.0, Rate: 0.70},
}

// EnglishVoice is used for the one-time retry after a synthesis failure.
var EnglishVoice = Voice{Language: "en-US", Pitch: 1.0, Rate: 0.80}

// For returns the voice for platform, falling back to the web voice.
func (t VoiceTable) For(platform string) Voice {
	if v, ok := t[strings.ToLower(platform)]; ok {
		return v
	}
	if v, ok := t["web"]; ok {
		return v
	}
	return Voice{Language: "tr-TR", Pitch: 1.0, Rate: 0.70}
}

// TurkishNarration renders a selection in ASCII-only Turkish, which the
// platform voices pronounce more reliably than the accented spelling.
func TurkishNarration(sel domain.Selection) string {
	availability := "mesgul"
	if sel.Station.Available {
		availability = "musait"
	}
	return fmt.Sprintf(
		"%s secildi. Mesafe %.1f kilometre. Sarj tipi %s, guc %s kilovat. Bu istasyon su anda %s. Yaklasik varis suresi %d dakika.",
		sel.Station.Name, sel.DistanceKm, sel.Station.ChargingType, formatPower(sel.Station.PowerKW), availability, sel.ETAMinutes,
	)
}

func EnglishNarration(sel domain.Selection) string {
	availability := "busy"
	if sel.Station.Available {
		availability = "available"
	}
	return fmt.Sprintf(
		"Selected %s. Distance %.1f kilometers. Charging type %s, power %s kilowatts. This station is currently %s. Estimated arrival time %d minutes.",
		sel.Station.Name, sel.DistanceKm, sel.Station.ChargingType, formatPower(sel.Station.PowerKW), availability, sel.ETAMinutes,
	)
}

func formatPower(kw float64) string {
	return strconv.FormatFloat(kw, 'f', -1, 64)
}

// Narrator speaks selections over the exclusive speech channel. Each
// narration stops whatever was playing first. When the Turkish utterance
// fails, synchronously or through an error event, the English rendering is
// spoken once; a second failure is only logged.
type Narrator struct {
	synth    ports.SpeechSynthesizer
	voices   VoiceTable
	notifier ports.Notifier

	mu       sync.Mutex
	platform string
	gen      uint64
	fellBack bool
}

func NewNarrator(synth ports.SpeechSynthesizer, voices VoiceTable, platform string, notifier ports.Notifier) *Narrator {
	if voices == nil {
		voices = DefaultVoices
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Narrator{synth: synth, voices: voices, platform: platform, notifier: notifier}
}

func (n *Narrator) SetPlatform(platform string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.platform = platform
}

func (n *Narrator) Voice() Voice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.voices.For(n.platform)
}

// Narrate speaks sel. It returns an error wrapping ErrSpeechSynthesis only
// when both the primary and the English utterance failed synchronously.
func (n *Narrator) Narrate(ctx context.Context, sel domain.Selection) error {
	if n.synth == nil {
		return nil
	}

	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.fellBack = false
	voice := n.voices.For(n.platform)
	n.mu.Unlock()

	if err := n.synth.Stop(); err != nil {
		log.Printf("op=narrator.stop err=%v", err)
	}

	u := ports.Utterance{
		Text:     TurkishNarration(sel),
		Language: voice.Language,
		Pitch:    voice.Pitch,
		Rate:     voice.Rate,
		OnEvent: func(ev ports.SpeechEvent, err error) {
			if ev == ports.SpeechError {
				_ = n.fallback(ctx, gen, sel, err)
			}
		},
	}

	if err := n.synth.Speak(ctx, u); err != nil {
		return n.fallback(ctx, gen, sel, err)
	}
	return nil
}

func (n *Narrator) fallback(ctx context.Context, gen uint64, sel domain.Selection, cause error) error {
	n.mu.Lock()
	if gen != n.gen || n.fellBack {
		n.mu.Unlock()
		log.Printf("op=narrator.fallback skipped=true cause=%v", cause)
		return nil
	}
	n.fellBack = true
	n.mu.Unlock()

	log.Printf("op=narrator.fallback lang=%s cause=%v", EnglishVoice.Language, cause)
	n.notifier.Notify(noticeLanguageFallback)

	u := ports.Utterance{
		Text:     EnglishNarration(sel),
		Language: EnglishVoice.Language,
		Pitch:    EnglishVoice.Pitch,
		Rate:     EnglishVoice.Rate,
		OnEvent: func(ev ports.SpeechEvent, err error) {
			if ev == ports.SpeechError {
				log.Printf("op=narrator.fallback gave_up=true err=%v", err)
			}
		},
	}
	if err := n.synth.Speak(ctx, u); err != nil {
		log.Printf("op=narrator.fallback gave_up=true err=%v", err)
		return fmt.Errorf("%w: %w", domain.ErrSpeechSynthesis, err)
	}
	return nil
}

// Stop silences the channel. Late error events of the stopped utterance no
// longer trigger the English retry.
func (n *Narrator) Stop() {
	if n.synth == nil {
		return
	}

	n.mu.Lock()
	n.gen++
	n.mu.Unlock()

	if err := n.synth.Stop(); err != nil {
		log.Printf("op=narrator.stop err=%v", err)
	}
}
