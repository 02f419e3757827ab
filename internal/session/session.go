package session

import (
	"charge-station-locator/internal/adapters/location"
	"charge-station-locator/internal/adapters/speech"
	"charge-station-locator/internal/config"
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"charge-station-locator/internal/services"
	"charge-station-locator/internal/sheet"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Animation frame period of the sheet.
const frameInterval = time.Second / 60

var (
	ErrHelloRequired = errors.New("session: hello required")
	ErrClosed        = errors.New("session: closed")
)

// StationSource is what a session needs from the station provider.
type StationSource interface {
	services.Fetcher
	AllStations(ctx context.Context) ([]domain.Station, error)
}

type Config struct {
	DefaultLocation   domain.Coordinate
	DefaultRadiusKm   float64
	MinRadiusKm       float64
	MaxRadiusKm       float64
	RadiusPresets     []float64
	WatchInterval     time.Duration
	WatchMinDistanceM float64
	QueryDebounce     time.Duration
	ScreenHeight      float64
	LocateTimeout     time.Duration
	MQTTTopicPrefix   string
	Voices            services.VoiceTable
	// ServerSpeech logs narration on the server; no speak frames are sent.
	ServerSpeech bool
}

// FromConfig maps the process configuration onto session settings.
func FromConfig(cfg *config.Config) Config {
	return Config{
		DefaultLocation:   domain.Coordinate{Latitude: cfg.DefaultLat, Longitude: cfg.DefaultLon},
		DefaultRadiusKm:   cfg.DefaultRadiusKm,
		MinRadiusKm:       cfg.MinRadiusKm,
		MaxRadiusKm:       cfg.MaxRadiusKm,
		RadiusPresets:     presetsWithin([]float64{1, 2, 5, 10}, cfg.MinRadiusKm, cfg.MaxRadiusKm),
		WatchInterval:     cfg.WatchInterval,
		WatchMinDistanceM: cfg.WatchMinDistanceM,
		QueryDebounce:     cfg.QueryDebounce,
		ScreenHeight:      cfg.ScreenHeight,
		LocateTimeout:     10 * time.Second,
		MQTTTopicPrefix:   cfg.MQTTTopicPrefix,
		Voices:            services.DefaultVoices,
		ServerSpeech:      cfg.ServerSpeech,
	}
}

func presetsWithin(presets []float64, lo, hi float64) []float64 {
	out := make([]float64, 0, len(presets))
	for _, p := range presets {
		if p >= lo && p <= hi {
			out = append(out, p)
		}
	}
	return out
}

// ClampRadius bounds km to the configured radius range.
func (c Config) ClampRadius(km float64) float64 {
	return math.Min(math.Max(km, c.MinRadiusKm), c.MaxRadiusKm)
}

type Option func(*Session)

// WithMQTT lets sessions that name a device in hello follow its MQTT feed.
func WithMQTT(client mqtt.Client) Option {
	return func(s *Session) { s.mqttClient = client }
}

// Session is one connected map client. Every state transition runs on the
// goroutine executing Run; fetches, fixes and speech complete elsewhere and
// post back onto it.
type Session struct {
	id         string
	cfg        Config
	source     StationSource
	mqttClient mqtt.Client

	events    chan func()
	out       chan Envelope
	snapReady chan struct{}
	done      chan struct{}
	runOnce   sync.Once

	synth *socketSynthesizer

	feedMu sync.Mutex
	feed   *location.Feed

	// Loop-owned state.
	ctx         context.Context
	mqttSvc     *location.MQTTService
	coordinator *services.RadiusQueryCoordinator
	tracker     *services.LocationTracker
	sheet       *sheet.Controller
	selection   *services.SelectionController
	narrator    *services.Narrator
	all         []domain.Station
}

func New(id string, source StationSource, cfg Config, opts ...Option) *Session {
	s := &Session{
		id:        id,
		cfg:       cfg,
		source:    source,
		events:    make(chan func(), 64),
		out:       make(chan Envelope, 256),
		snapReady: make(chan struct{}, 1),
		done:      make(chan struct{}),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.synth = newSocketSynthesizer(s.send)
	return s
}

func (s *Session) ID() string { return s.id }

// Frames delivers outbound frames. It is never closed; stop reading once
// Done is closed.
func (s *Session) Frames() <-chan Envelope { return s.out }

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run executes the session loop until ctx ends. It may be called once.
func (s *Session) Run(ctx context.Context) error {
	err := errors.New("session: already running")
	s.runOnce.Do(func() {
		err = s.run(ctx)
	})
	return err
}

func (s *Session) run(ctx context.Context) error {
	defer close(s.done)
	defer s.shutdown()

	s.ctx = ctx
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	log.Printf("session=%s op=session.run started=true", s.id)
	for {
		select {
		case <-ctx.Done():
			log.Printf("session=%s op=session.run stopped=true", s.id)
			return ctx.Err()
		case fn := <-s.events:
			fn()
		case <-s.snapReady:
			s.render()
		case <-ticker.C:
			s.animate()
		}
	}
}

func (s *Session) shutdown() {
	if s.tracker != nil {
		s.tracker.StopWatching()
	}
	if s.narrator != nil {
		s.narrator.Stop()
	}
	if s.mqttSvc != nil {
		if err := s.mqttSvc.Stop(); err != nil {
			log.Printf("session=%s op=session.shutdown err=%v", s.id, err)
		}
	}
	if s.coordinator != nil {
		s.coordinator.Clear()
		s.coordinator.Wait()
	}
}

// post queues fn on the loop. It reports false once the session has ended.
func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) postAndRender(fn func()) bool {
	return s.post(func() {
		fn()
		s.render()
	})
}

// send queues a frame without blocking; a full buffer drops it.
func (s *Session) send(env Envelope) bool {
	select {
	case s.out <- env:
		return true
	default:
		log.Printf("session=%s op=session.send type=%s dropped=true", s.id, env.Type)
		return false
	}
}

func (s *Session) sendPayload(kind string, payload any) bool {
	env, err := newEnvelope(kind, payload)
	if err != nil {
		log.Printf("session=%s op=session.send type=%s err=%v", s.id, kind, err)
		return false
	}
	return s.send(env)
}

// Notify forwards a notice to the client.
func (s *Session) Notify(n domain.Notice) {
	s.sendPayload(TypeNotice, n)
}

// SendError reports a rejected client message.
func (s *Session) SendError(err error) {
	s.sendPayload(TypeError, errorMessage{Message: err.Error()})
}

// onSnapshot only wakes the loop, which reads the coordinator's current
// snapshot when it renders.
func (s *Session) onSnapshot(services.QuerySnapshot) {
	select {
	case s.snapReady <- struct{}{}:
	default:
	}
}

func (s *Session) currentFeed() *location.Feed {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	return s.feed
}

// Deliver handles one raw client frame. Position fixes go straight to the
// feed; everything else runs on the loop and Deliver waits for it.
func (s *Session) Deliver(raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("deliver: decode envelope: %w", err)
	}

	switch env.Type {
	case TypePosition:
		var m positionMessage
		if err := decode(env, &m); err != nil {
			return err
		}
		feed := s.currentFeed()
		if feed == nil {
			return fmt.Errorf("deliver %s: %w", env.Type, ErrHelloRequired)
		}
		return feed.Push(domain.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude})
	}

	errc := make(chan error, 1)
	if !s.post(func() { errc <- s.handle(env) }) {
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrClosed
	}
}

func decode(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("deliver %s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("deliver %s: decode: %w", env.Type, err)
	}
	return nil
}

func (s *Session) handle(env Envelope) error {
	if env.Type == TypeHello {
		var m helloMessage
		if err := decode(env, &m); err != nil {
			return err
		}
		return s.hello(m)
	}
	if s.tracker == nil {
		return fmt.Errorf("deliver %s: %w", env.Type, ErrHelloRequired)
	}
	if env.Type == TypeSpeechEvent {
		var m speechEventMessage
		if err := decode(env, &m); err != nil {
			return err
		}
		return s.synth.dispatch(m)
	}

	var err error
	switch env.Type {
	case TypePermission:
		var m permissionMessage
		if err = decode(env, &m); err == nil {
			s.setPermission(parsePermission(m.Status))
		}
	case TypeTapMarker:
		var m tapMarkerMessage
		if err = decode(env, &m); err == nil {
			err = s.tapMarker(m.StationID)
		}
	case TypeTapMap:
		if _, ok := s.selection.Current(); ok {
			s.selection.Clear()
		}
	case TypeLongPress:
		var m positionMessage
		if err = decode(env, &m); err == nil {
			err = s.tracker.SetManualLocation(domain.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude})
		}
	case TypeTogglePin:
		_, err = s.tracker.TogglePin()
	case TypeSetRadius:
		var m setRadiusMessage
		if err = decode(env, &m); err == nil {
			err = s.setRadius(m.RadiusKm)
		}
	case TypeDragStart:
		s.sheet.BeginDrag()
	case TypeDragMove:
		var m dragMessage
		if err = decode(env, &m); err == nil {
			s.sheet.Drag(m.Translation)
		}
	case TypeDragEnd:
		var m dragMessage
		if err = decode(env, &m); err == nil {
			s.sheet.EndDrag(m.Translation)
		}
	case TypeToggleVoice:
		s.selection.SetVoiceGuidance(!s.selection.VoiceGuidance())
	case TypeSpeak:
		err = s.selection.Speak(s.ctx)
	case TypeStopSpeech:
		s.selection.StopSpeech()
	default:
		return fmt.Errorf("deliver: unknown message type %q", env.Type)
	}

	s.render()
	return err
}

func parsePermission(status string) ports.PermissionStatus {
	switch ports.PermissionStatus(status) {
	case ports.PermissionGranted:
		return ports.PermissionGranted
	case ports.PermissionDenied:
		return ports.PermissionDenied
	default:
		return ports.PermissionUndetermined
	}
}

// hello assembles the session's components and starts locating the user.
func (s *Session) hello(m helloMessage) error {
	if s.tracker != nil {
		return errors.New("hello: already received")
	}

	svc, feed, err := s.openLocation(m)
	if err != nil {
		return err
	}

	coordinator := services.NewRadiusQueryCoordinator(s.source,
		services.WithDebounce(s.cfg.QueryDebounce),
		services.WithNotifier(s),
		services.WithBaseContext(s.ctx),
	)
	coordinator.OnChange(s.onSnapshot)

	tracker, err := services.NewLocationTracker(
		loopLocation{LocationService: svc, post: s.postAndRender},
		coordinator,
		s,
		s.cfg.DefaultLocation,
		s.cfg.DefaultRadiusKm,
	)
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	sh, err := sheet.NewController(sheet.ForScreenHeight(s.cfg.ScreenHeight))
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	var synth ports.SpeechSynthesizer = s.synth
	if s.cfg.ServerSpeech || m.NoSpeech {
		synth = speech.NewLogSynthesizer()
	}
	narrator := services.NewNarrator(synth, s.cfg.Voices, m.Platform, s)
	selection := services.NewSelectionController(tracker, sh, narrator, s)
	tracker.SetSelection(selection)

	s.feedMu.Lock()
	s.feed = feed
	s.feedMu.Unlock()

	s.coordinator = coordinator
	s.tracker = tracker
	s.sheet = sh
	s.narrator = narrator
	s.selection = selection

	log.Printf("session=%s op=session.hello platform=%s device=%q", s.id, m.Platform, m.Device)

	s.loadAll()
	s.locate()
	s.render()
	return nil
}

// openLocation picks the device's MQTT feed when one is named and a broker
// is attached, the client-pushed feed otherwise.
func (s *Session) openLocation(m helloMessage) (ports.LocationService, *location.Feed, error) {
	if m.Device != "" && s.mqttClient != nil {
		svc, err := location.NewMQTTService(s.mqttClient, s.cfg.MQTTTopicPrefix, m.Device)
		if err != nil {
			return nil, nil, fmt.Errorf("hello: %w", err)
		}
		if err := svc.Start(); err != nil {
			return nil, nil, fmt.Errorf("hello: %w", err)
		}
		s.mqttSvc = svc
		return svc, svc.Feed, nil
	}
	if m.Device != "" {
		log.Printf("session=%s op=session.hello device=%q mqtt=disabled", s.id, m.Device)
	}

	feed := location.NewFeed(parsePermission(m.Permission))
	return feed, feed, nil
}

func (s *Session) setPermission(p ports.PermissionStatus) {
	if s.mqttSvc != nil {
		return
	}
	s.currentFeed().SetPermission(p)
	if p == ports.PermissionGranted {
		s.locate()
		return
	}
	s.tracker.StopWatching()
}

// locate takes a one-shot fix off the loop; the fix is applied and watching
// starts back on the loop.
func (s *Session) locate() {
	ctx, tracker := s.ctx, s.tracker
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.LocateTimeout)
		defer cancel()

		fix, ok := tracker.Locate(ctx)
		s.post(func() {
			if ok {
				tracker.ApplyFix(fix)
			}
			s.afterLocate()
		})
	}()
}

func (s *Session) afterLocate() {
	if !s.tracker.Watching() {
		err := s.tracker.StartWatching(s.ctx, s.cfg.WatchInterval, s.cfg.WatchMinDistanceM)
		if err != nil {
			log.Printf("session=%s op=session.watch err=%v", s.id, err)
		}
	}
	s.render()
}

// loadAll fetches the full dataset shown while free-roaming.
func (s *Session) loadAll() {
	ctx := s.ctx
	go func() {
		stations, err := s.source.AllStations(ctx)
		if err != nil {
			log.Printf("session=%s op=session.load_all err=%v", s.id, err)
			return
		}
		s.post(func() {
			s.all = stations
			s.render()
		})
	}()
}

func (s *Session) tapMarker(id string) error {
	st, ok := s.station(id)
	if !ok {
		return fmt.Errorf("tap marker: unknown station %q", id)
	}
	s.selection.Select(s.ctx, st)
	return nil
}

// station looks id up among the markers currently shown.
func (s *Session) station(id string) (domain.Station, bool) {
	for _, st := range s.displayed() {
		if st.ID == id {
			return st, true
		}
	}
	return domain.Station{}, false
}

func (s *Session) displayed() []domain.Station {
	if s.tracker.Pinned() {
		return s.coordinator.Snapshot().Result.Stations
	}
	return s.all
}

func (s *Session) setRadius(km float64) error {
	if math.IsNaN(km) || km <= 0 {
		return fmt.Errorf("set radius: %w: %v", domain.ErrInvalidRadius, km)
	}
	return s.tracker.SetRadius(s.cfg.ClampRadius(km))
}

func (s *Session) animate() {
	if s.sheet == nil || s.sheet.Settled() || s.sheet.Dragging() {
		return
	}
	s.sheet.Step(frameInterval.Seconds())
	s.render()
}

func (s *Session) render() {
	if s.tracker == nil {
		return
	}
	s.sendPayload(TypeRender, s.view())
}

func (s *Session) view() Render {
	loc := s.tracker.Current()
	pinned := s.tracker.Pinned()
	radius := s.tracker.RadiusKm()
	sel, selected := s.selection.Current()

	r := Render{
		Location:      loc,
		Pinned:        pinned,
		RadiusKm:      radius,
		RadiusPresets: s.cfg.RadiusPresets,
		VoiceGuidance: s.selection.VoiceGuidance(),
		Sheet: SheetFrame{
			State:      s.sheet.State(),
			Visibility: s.sheet.Visibility(selected),
		},
	}

	if pinned {
		snap := s.coordinator.Snapshot()
		r.Loading = snap.State == services.QueryLoading
		r.Message = snap.Message
		r.Circle = &Circle{Center: loc, RadiusM: radius * 1000}
		if snap.State == services.QueryReady {
			r.Source = snap.Result.Source.String()
			r.Summary = services.ResultSummary(len(snap.Result.Stations))
		}
	}

	stations := s.displayed()
	r.Markers = make([]Marker, 0, len(stations))
	for _, st := range stations {
		r.Markers = append(r.Markers, Marker{
			ID:           st.ID,
			Name:         st.Name,
			Coordinate:   st.Coordinate,
			ChargingType: st.ChargingType,
			PowerKW:      st.PowerKW,
			Address:      st.Address,
			Available:    st.Available,
			Selected:     selected && st.ID == sel.Station.ID,
		})
	}

	if selected {
		r.Route = s.selection.RouteLine()
		r.Selection = &SelectionFrame{
			Station:    sel.Station,
			DistanceKm: sel.DistanceKm,
			ETAMinutes: sel.ETAMinutes,
		}
	}
	return r
}
