package session

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/sheet"
	"encoding/json"
)

// Client to server message types.
const (
	TypeHello       = "hello"
	TypePosition    = "position"
	TypePermission  = "permission"
	TypeTapMarker   = "tap_marker"
	TypeTapMap      = "tap_map"
	TypeLongPress   = "long_press"
	TypeTogglePin   = "toggle_pin"
	TypeSetRadius   = "set_radius"
	TypeDragStart   = "drag_start"
	TypeDragMove    = "drag_move"
	TypeDragEnd     = "drag_end"
	TypeToggleVoice = "toggle_voice"
	TypeSpeak       = "speak"
	TypeStopSpeech  = "stop_speech"
	TypeSpeechEvent = "speech_event"
)

// Server to client message types. Speak is shared with the client side.
const (
	TypeRender     = "render"
	TypeNotice     = "notice"
	TypeSpeechStop = "speech_stop"
	TypeError      = "error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newEnvelope(kind string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: kind}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: kind, Data: b}, nil
}

type helloMessage struct {
	Platform   string `json:"platform"`
	Permission string `json:"permission"`
	// Device selects an MQTT-published location instead of client fixes.
	Device string `json:"device,omitempty"`
	// NoSpeech is set by clients without a speech engine.
	NoSpeech bool `json:"no_speech,omitempty"`
}

type positionMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type permissionMessage struct {
	Status string `json:"status"`
}

type tapMarkerMessage struct {
	StationID string `json:"station_id"`
}

type setRadiusMessage struct {
	RadiusKm float64 `json:"radius_km"`
}

type dragMessage struct {
	Translation float64 `json:"translation"`
}

type speechEventMessage struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Error string `json:"error,omitempty"`
}

type speakMessage struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Pitch    float64 `json:"pitch"`
	Rate     float64 `json:"rate"`
}

type speechStopMessage struct {
	ID string `json:"id,omitempty"`
}

type errorMessage struct {
	Message string `json:"message"`
}

// Marker is one station pin on the map.
type Marker struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Coordinate   domain.Coordinate `json:"coordinate"`
	ChargingType string            `json:"charging_type"`
	PowerKW      float64           `json:"power_kw"`
	Address      string            `json:"address"`
	Available    bool              `json:"available"`
	Selected     bool              `json:"selected"`
}

// Circle is the pinned search radius drawn around the user.
type Circle struct {
	Center  domain.Coordinate `json:"center"`
	RadiusM float64           `json:"radius_m"`
}

type SheetFrame struct {
	sheet.State
	Visibility sheet.Visibility `json:"visibility"`
}

type SelectionFrame struct {
	Station    domain.Station `json:"station"`
	DistanceKm float64        `json:"distance_km"`
	ETAMinutes int            `json:"eta_minutes"`
}

// Render is a full view of the session; the client replaces its state with it.
type Render struct {
	Location      domain.Coordinate   `json:"location"`
	Pinned        bool                `json:"pinned"`
	RadiusKm      float64             `json:"radius_km"`
	RadiusPresets []float64           `json:"radius_presets"`
	Loading       bool                `json:"loading"`
	Source        string              `json:"source,omitempty"`
	Message       string              `json:"message,omitempty"`
	Summary       string              `json:"summary,omitempty"`
	Markers       []Marker            `json:"markers"`
	Route         []domain.Coordinate `json:"route,omitempty"`
	Circle        *Circle             `json:"circle,omitempty"`
	Sheet         SheetFrame          `json:"sheet"`
	Selection     *SelectionFrame     `json:"selection,omitempty"`
	VoiceGuidance bool                `json:"voice_guidance"`
}
