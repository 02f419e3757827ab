package services

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/geo"
	"charge-station-locator/internal/platform/obs"
	"charge-station-locator/internal/ports"
	"charge-station-locator/internal/sheet"
	"context"
	"errors"
	"log"
	"math"
	"sync"
)

// PositionReader exposes the tracker's coordinate read-only.
type PositionReader interface {
	Current() domain.Coordinate
}

// SheetMover is the part of the sheet controller selection drives.
type SheetMover interface {
	SnapTo(s sheet.Snap)
}

// ETAMinutes estimates driving time at two minutes per kilometre.
func ETAMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm * 2))
}

// SelectionController owns the selected station, its straight route line and
// the voice guidance toggle.
type SelectionController struct {
	position PositionReader
	sheet    SheetMover
	narrator *Narrator
	notifier ports.Notifier

	mu       sync.Mutex
	sel      domain.Selection
	selected bool
	route    []domain.Coordinate
	voice    bool
}

func NewSelectionController(position PositionReader, mover SheetMover, narrator *Narrator, notifier ports.Notifier) *SelectionController {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SelectionController{
		position: position,
		sheet:    mover,
		narrator: narrator,
		notifier: notifier,
		voice:    true,
	}
}

// Select makes station the selection, measured from the current coordinate.
// The sheet opens to Peek and, with voice guidance on, the station is narrated.
func (c *SelectionController) Select(ctx context.Context, station domain.Station) domain.Selection {
	from := c.position.Current()
	d := geo.DistanceKm(from, station.Coordinate)
	sel := domain.Selection{Station: station, DistanceKm: d, ETAMinutes: ETAMinutes(d)}

	c.mu.Lock()
	c.sel, c.selected = sel, true
	c.route = []domain.Coordinate{from, station.Coordinate}
	voice := c.voice
	c.mu.Unlock()

	if c.sheet != nil {
		c.sheet.SnapTo(sheet.Peek)
	}
	if voice && c.narrator != nil {
		if err := c.narrator.Narrate(ctx, sel); err != nil {
			log.Printf("req_id=%s op=selection.narrate station=%s err=%v", obs.RequestID(ctx), station.ID, err)
		}
	}
	return sel
}

// Clear drops the selection and route line, collapses the sheet and stops speech.
func (c *SelectionController) Clear() {
	c.mu.Lock()
	c.sel, c.selected = domain.Selection{}, false
	c.route = nil
	c.mu.Unlock()

	if c.sheet != nil {
		c.sheet.SnapTo(sheet.Collapsed)
	}
	if c.narrator != nil {
		c.narrator.Stop()
	}
}

// SetVoiceGuidance toggles narration; disabling it stops current speech.
func (c *SelectionController) SetVoiceGuidance(enabled bool) {
	c.mu.Lock()
	c.voice = enabled
	c.mu.Unlock()

	if !enabled && c.narrator != nil {
		c.narrator.Stop()
	}
	c.notifier.Notify(noticeVoiceGuidance(enabled))
}

func (c *SelectionController) VoiceGuidance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

var ErrNothingSelected = errors.New("no station selected")

// Speak replays the narration of the current selection.
func (c *SelectionController) Speak(ctx context.Context) error {
	c.mu.Lock()
	sel, ok, voice := c.sel, c.selected, c.voice
	c.mu.Unlock()

	if !ok {
		return ErrNothingSelected
	}
	if !voice || c.narrator == nil {
		return nil
	}
	return c.narrator.Narrate(ctx, sel)
}

func (c *SelectionController) StopSpeech() {
	if c.narrator != nil {
		c.narrator.Stop()
	}
}

func (c *SelectionController) Current() (domain.Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel, c.selected
}

// RouteLine returns [current, station] while a station is selected, nil otherwise.
func (c *SelectionController) RouteLine() []domain.Coordinate {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.route == nil {
		return nil
	}
	out := make([]domain.Coordinate, len(c.route))
	copy(out, c.route)
	return out
}
