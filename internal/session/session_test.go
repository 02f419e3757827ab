package session

import (
	"charge-station-locator/internal/adapters/dataset"
	"charge-station-locator/internal/adapters/poi"
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/services"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	home     = domain.Coordinate{Latitude: 41.0947, Longitude: 29.2146}
	nearHome = domain.Station{ID: "near", Name: "Near", Coordinate: domain.Coordinate{Latitude: 41.0962, Longitude: 29.2131}, ChargingType: "DC", PowerKW: 50, Available: true}
	alsoNear = domain.Station{ID: "also", Name: "Also", Coordinate: domain.Coordinate{Latitude: 41.0931, Longitude: 29.2178}, ChargingType: "AC", PowerKW: 22}
	farAway  = domain.Station{ID: "far", Name: "Far", Coordinate: domain.Coordinate{Latitude: 41.0086, Longitude: 28.9802}, ChargingType: "AC", PowerKW: 11}
)

func testConfig() Config {
	return Config{
		DefaultLocation: home,
		DefaultRadiusKm: 1,
		MinRadiusKm:     1,
		MaxRadiusKm:     10,
		RadiusPresets:   []float64{1, 2, 5, 10},
		ScreenHeight:    800,
		LocateTimeout:   time.Second,
		Voices:          services.DefaultVoices,
	}
}

// recorder drains a session's frames so tests can look for consequences of
// an action in any order. Frames are only taken off the session while mu is
// held, so mark sees every frame sent before it was called.
type recorder struct {
	src    <-chan Envelope
	mu     sync.Mutex
	frames []Envelope
	from   int
}

func (r *recorder) drainLocked() {
	for {
		select {
		case env := <-r.src:
			r.frames = append(r.frames, env)
		default:
			return
		}
	}
}

func startSession(t *testing.T, remote *poi.MockPOIProvider) (*Session, *recorder) {
	t.Helper()

	provider := services.NewStationProvider(remote, dataset.NewStatic([]domain.Station{farAway, nearHome, alsoNear}))
	s := New("test", provider, testConfig())
	rec := &recorder{src: s.Frames()}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rec.mu.Lock()
				rec.drainLocked()
				rec.mu.Unlock()
			case <-s.Done():
				return
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s, rec
}

// mark makes later waits ignore every frame recorded so far.
func (r *recorder) mark() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drainLocked()
	r.from = len(r.frames)
}

func (r *recorder) find(kind string, match func(Envelope) bool) (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drainLocked()
	for _, env := range r.frames[r.from:] {
		if env.Type == kind && (match == nil || match(env)) {
			return env, true
		}
	}
	return Envelope{}, false
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drainLocked()
	n := 0
	for _, env := range r.frames[r.from:] {
		if env.Type == kind {
			n++
		}
	}
	return n
}

func (r *recorder) wait(t *testing.T, kind string, match func(Envelope) bool) Envelope {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if env, ok := r.find(kind, match); ok {
			return env
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no matching %s frame", kind)
	return Envelope{}
}

func asRender(env Envelope) Render {
	var r Render
	_ = json.Unmarshal(env.Data, &r)
	return r
}

func (r *recorder) render(t *testing.T, match func(Render) bool) Render {
	t.Helper()
	env := r.wait(t, TypeRender, func(env Envelope) bool { return match(asRender(env)) })
	return asRender(env)
}

func (r *recorder) speak(t *testing.T) speakMessage {
	t.Helper()
	env := r.wait(t, TypeSpeak, nil)
	var m speakMessage
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func (r *recorder) notice(t *testing.T, kind domain.NoticeKind) domain.Notice {
	t.Helper()
	decodeNotice := func(env Envelope) domain.Notice {
		var n domain.Notice
		_ = json.Unmarshal(env.Data, &n)
		return n
	}
	env := r.wait(t, TypeNotice, func(env Envelope) bool { return decodeNotice(env).Kind == kind })
	return decodeNotice(env)
}

func deliver(t *testing.T, s *Session, kind string, payload any) error {
	t.Helper()
	env, err := newEnvelope(kind, payload)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return s.Deliver(raw)
}

func hello(t *testing.T, s *Session, permission string) {
	t.Helper()
	require.NoError(t, deliver(t, s, TypeHello, helloMessage{Platform: "web", Permission: permission}))
}

func markerIDs(r Render) []string {
	ids := make([]string, 0, len(r.Markers))
	for _, m := range r.Markers {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestMessagesBeforeHelloAreRejected(t *testing.T) {
	s, _ := startSession(t, nil)

	err := deliver(t, s, TypeTogglePin, nil)
	assert.ErrorIs(t, err, ErrHelloRequired)

	err = deliver(t, s, TypePosition, positionMessage{Latitude: 41, Longitude: 29})
	assert.ErrorIs(t, err, ErrHelloRequired)

	err = deliver(t, s, TypeSpeechEvent, speechEventMessage{ID: "x", Event: "done"})
	assert.ErrorIs(t, err, ErrHelloRequired)
}

func TestDeliverRejectsMalformedFrames(t *testing.T) {
	s, _ := startSession(t, nil)
	hello(t, s, "denied")

	assert.Error(t, s.Deliver([]byte("{not json")))
	assert.Error(t, deliver(t, s, "teleport", nil))
	assert.Error(t, deliver(t, s, TypeSetRadius, nil))
	assert.Error(t, deliver(t, s, TypeHello, helloMessage{Platform: "web"}))
	assert.Error(t, deliver(t, s, TypeSpeechEvent, speechEventMessage{ID: "x", Event: "paused"}))
}

func TestHelloDeniedKeepsDefaultLocation(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "denied")

	n := rec.notice(t, domain.NoticePermissionDenied)
	assert.Equal(t, "Konum İzni Gerekli", n.Title)

	r := rec.render(t, func(r Render) bool { return len(r.Markers) == 3 })
	assert.Equal(t, home, r.Location)
	assert.False(t, r.Pinned)
	assert.Nil(t, r.Circle)
	assert.Equal(t, 1.0, r.RadiusKm)
	assert.Equal(t, []float64{1, 2, 5, 10}, r.RadiusPresets)
	assert.True(t, r.VoiceGuidance)
	assert.Equal(t, "collapsed", r.Sheet.Target)
	assert.Equal(t, 700.0, r.Sheet.Position)
	assert.Equal(t, 1.0, r.Sheet.Visibility.Radius)
}

func TestHelloGrantedFollowsClientFixes(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "granted")

	first := domain.Coordinate{Latitude: 41.01, Longitude: 29.01}
	require.NoError(t, deliver(t, s, TypePosition, positionMessage{Latitude: first.Latitude, Longitude: first.Longitude}))
	rec.render(t, func(r Render) bool { return r.Location == first })

	// The watch starts after the one-shot fix; later fixes arrive through it.
	second := domain.Coordinate{Latitude: 41.02, Longitude: 29.02}
	assert.Eventually(t, func() bool {
		if err := deliver(t, s, TypePosition, positionMessage{Latitude: second.Latitude, Longitude: second.Longitude}); err != nil {
			return false
		}
		_, ok := rec.find(TypeRender, func(env Envelope) bool { return asRender(env).Location == second })
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	assert.Error(t, deliver(t, s, TypePosition, positionMessage{Latitude: 95, Longitude: 29}))
}

func TestPermissionRevokedStopsFollowing(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "undetermined")
	rec.notice(t, domain.NoticePermissionDenied)

	require.NoError(t, deliver(t, s, TypePermission, permissionMessage{Status: "granted"}))
	fix := domain.Coordinate{Latitude: 41.03, Longitude: 29.03}
	require.NoError(t, deliver(t, s, TypePosition, positionMessage{Latitude: fix.Latitude, Longitude: fix.Longitude}))
	rec.render(t, func(r Render) bool { return r.Location == fix })

	require.NoError(t, deliver(t, s, TypePermission, permissionMessage{Status: "denied"}))
	rec.mark()
	require.NoError(t, deliver(t, s, TypePosition, positionMessage{Latitude: 41.05, Longitude: 29.05}))
	time.Sleep(100 * time.Millisecond)
	_, moved := rec.find(TypeRender, func(env Envelope) bool { return asRender(env).Location != fix })
	assert.False(t, moved)
}

func TestPinQueriesAndShowsResults(t *testing.T) {
	remote := poi.NewMockPOIProvider([]domain.Station{nearHome, alsoNear}, nil)
	s, rec := startSession(t, remote)
	hello(t, s, "denied")

	require.NoError(t, deliver(t, s, TypeTogglePin, nil))

	r := rec.render(t, func(r Render) bool { return r.Pinned && r.Source != "" })
	assert.False(t, r.Loading)
	assert.Equal(t, "remote", r.Source)
	assert.Equal(t, "2 şarj istasyonu bulundu", r.Summary)
	assert.Equal(t, []string{"near", "also"}, markerIDs(r))
	require.NotNil(t, r.Circle)
	assert.Equal(t, home, r.Circle.Center)
	assert.Equal(t, 1000.0, r.Circle.RadiusM)

	require.Len(t, remote.Calls(), 1)
	assert.Equal(t, home, remote.Calls()[0].Center)

	// Unpinning goes back to the full dataset.
	rec.mark()
	require.NoError(t, deliver(t, s, TypeTogglePin, nil))
	r = rec.render(t, func(r Render) bool { return !r.Pinned })
	assert.Len(t, r.Markers, 3)
	assert.Nil(t, r.Circle)
	assert.Empty(t, r.Summary)
}

func TestPinFallsBackWithNotice(t *testing.T) {
	remote := poi.NewMockPOIProvider(nil, errors.New("connection refused"))
	s, rec := startSession(t, remote)
	hello(t, s, "denied")

	require.NoError(t, deliver(t, s, TypeTogglePin, nil))

	rec.notice(t, domain.NoticeFallbackData)
	r := rec.render(t, func(r Render) bool { return r.Pinned && r.Source != "" })
	assert.Equal(t, "local_fallback", r.Source)
	assert.ElementsMatch(t, []string{"near", "also"}, markerIDs(r))
}

func TestPinnedLongPressRequeries(t *testing.T) {
	remote := poi.NewMockPOIProvider(nil, nil)
	s, rec := startSession(t, remote)
	hello(t, s, "denied")
	require.NoError(t, deliver(t, s, TypeTogglePin, nil))

	r := rec.render(t, func(r Render) bool { return r.Pinned && r.Source != "" })
	assert.Equal(t, "local_fallback", r.Source)
	assert.ElementsMatch(t, []string{"near", "also"}, markerIDs(r))

	far := farAway.Coordinate
	rec.mark()
	require.NoError(t, deliver(t, s, TypeLongPress, positionMessage{Latitude: far.Latitude, Longitude: far.Longitude}))
	r = rec.render(t, func(r Render) bool { return r.Location == far && r.Source != "" && len(r.Markers) == 1 })
	assert.Equal(t, []string{"far"}, markerIDs(r))

	nowhere := domain.Coordinate{Latitude: 40.5, Longitude: 30.5}
	release := remote.Hold()
	defer release()
	rec.mark()
	require.NoError(t, deliver(t, s, TypeLongPress, positionMessage{Latitude: nowhere.Latitude, Longitude: nowhere.Longitude}))

	// Until the new query completes, frames at the new center are loading
	// and carry no source or summary from the previous result.
	first := rec.render(t, func(r Render) bool { return r.Location == nowhere })
	assert.True(t, first.Loading)
	assert.Empty(t, first.Source)
	assert.Empty(t, first.Summary)
	assert.Equal(t, []string{"far"}, markerIDs(first))
	release()

	r = rec.render(t, func(r Render) bool { return r.Location == nowhere && r.Source != "" })
	assert.False(t, r.Loading)
	assert.Empty(t, r.Markers)
	assert.Equal(t, "Bu alanda şarj istasyonu bulunamadı", r.Message)
	assert.Equal(t, "Bu alanda şarj istasyonu bulunamadı", r.Summary)

	assert.Len(t, remote.Calls(), 3)
}

func TestSetRadiusClampsToBounds(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "denied")

	require.NoError(t, deliver(t, s, TypeSetRadius, setRadiusMessage{RadiusKm: 50}))
	rec.render(t, func(r Render) bool { return r.RadiusKm == 10 })

	rec.mark()
	require.NoError(t, deliver(t, s, TypeSetRadius, setRadiusMessage{RadiusKm: 0.2}))
	rec.render(t, func(r Render) bool { return r.RadiusKm == 1 })

	err := deliver(t, s, TypeSetRadius, setRadiusMessage{RadiusKm: -3})
	assert.ErrorIs(t, err, domain.ErrInvalidRadius)
}

func TestTapMarkerSelectsAndNarrates(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "denied")
	rec.render(t, func(r Render) bool { return len(r.Markers) == 3 })

	rec.mark()
	require.NoError(t, deliver(t, s, TypeTapMarker, tapMarkerMessage{StationID: "near"}))

	speak := rec.speak(t)
	assert.Equal(t, "tr-TR", speak.Language)
	assert.Equal(t, 0.70, speak.Rate)
	assert.True(t, strings.HasPrefix(speak.Text, "Near secildi."), speak.Text)
	assert.NotEmpty(t, speak.ID)

	r := rec.render(t, func(r Render) bool { return r.Selection != nil })
	assert.Equal(t, "near", r.Selection.Station.ID)
	assert.Equal(t, services.ETAMinutes(r.Selection.DistanceKm), r.Selection.ETAMinutes)
	assert.Equal(t, "peek", r.Sheet.Target)
	require.Len(t, r.Route, 2)
	assert.Equal(t, home, r.Route[0])
	assert.Equal(t, nearHome.Coordinate, r.Route[1])
	for _, m := range r.Markers {
		assert.Equal(t, m.ID == "near", m.Selected, m.ID)
	}

	// The sheet animates to Peek and settles there.
	r = rec.render(t, func(r Render) bool { return r.Sheet.Settled && r.Sheet.Target == "peek" })
	assert.InDelta(t, 480, r.Sheet.Position, 0.01)
	assert.Equal(t, 1.0, r.Sheet.Visibility.Detail)
	assert.InDelta(t, 0.3, r.Sheet.Visibility.Radius, 1e-9)

	rec.mark()
	require.NoError(t, deliver(t, s, TypeTapMap, nil))
	rec.wait(t, TypeSpeechStop, nil)
	r = rec.render(t, func(r Render) bool { return r.Selection == nil })
	assert.Nil(t, r.Route)
	assert.Equal(t, "collapsed", r.Sheet.Target)
}

func TestNoSpeechClientNarratesServerSide(t *testing.T) {
	s, rec := startSession(t, nil)
	require.NoError(t, deliver(t, s, TypeHello, helloMessage{Platform: "android", Permission: "denied", NoSpeech: true}))
	rec.render(t, func(r Render) bool { return len(r.Markers) == 3 })

	rec.mark()
	require.NoError(t, deliver(t, s, TypeTapMarker, tapMarkerMessage{StationID: "near"}))
	rec.render(t, func(r Render) bool { return r.Selection != nil })
	assert.Zero(t, rec.count(TypeSpeak))
}

func TestTapUnknownMarkerIsRejected(t *testing.T) {
	s, _ := startSession(t, nil)
	hello(t, s, "denied")

	err := deliver(t, s, TypeTapMarker, tapMarkerMessage{StationID: "nope"})
	assert.Error(t, err)
}

func TestSpeechErrorFallsBackToEnglishOnce(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "denied")
	rec.render(t, func(r Render) bool { return len(r.Markers) == 3 })

	rec.mark()
	require.NoError(t, deliver(t, s, TypeTapMarker, tapMarkerMessage{StationID: "also"}))
	tr := rec.speak(t)

	rec.mark()
	require.NoError(t, deliver(t, s, TypeSpeechEvent, speechEventMessage{ID: tr.ID, Event: "error", Error: "voice missing"}))
	rec.notice(t, domain.NoticeLanguageFallback)
	en := rec.speak(t)
	assert.Equal(t, "en-US", en.Language)
	assert.True(t, strings.HasPrefix(en.Text, "Selected Also."), en.Text)

	// A second failure is not retried.
	rec.mark()
	require.NoError(t, deliver(t, s, TypeSpeechEvent, speechEventMessage{ID: en.ID, Event: "error"}))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rec.count(TypeSpeak))
}

func TestVoiceToggleAndReplay(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "denied")

	err := deliver(t, s, TypeSpeak, nil)
	assert.ErrorIs(t, err, services.ErrNothingSelected)

	rec.render(t, func(r Render) bool { return len(r.Markers) == 3 })
	rec.mark()
	require.NoError(t, deliver(t, s, TypeTapMarker, tapMarkerMessage{StationID: "near"}))
	first := rec.speak(t)

	rec.mark()
	require.NoError(t, deliver(t, s, TypeSpeak, nil))
	again := rec.speak(t)
	assert.Equal(t, first.Text, again.Text)
	assert.NotEqual(t, first.ID, again.ID)

	rec.mark()
	require.NoError(t, deliver(t, s, TypeToggleVoice, nil))
	n := rec.notice(t, domain.NoticeVoiceGuidance)
	assert.Equal(t, "Sesli yönlendirme kapatıldı.", n.Message)
	rec.render(t, func(r Render) bool { return !r.VoiceGuidance })

	// Replay is silent while guidance is off.
	rec.mark()
	require.NoError(t, deliver(t, s, TypeSpeak, nil))
	assert.Zero(t, rec.count(TypeSpeak))
}

func TestDragFollowsTranslationAndSnaps(t *testing.T) {
	s, rec := startSession(t, nil)
	hello(t, s, "denied")

	require.NoError(t, deliver(t, s, TypeDragStart, nil))
	rec.mark()
	require.NoError(t, deliver(t, s, TypeDragMove, dragMessage{Translation: -300}))
	r := rec.render(t, func(r Render) bool { return r.Sheet.Dragging })
	assert.Equal(t, 400.0, r.Sheet.Position)

	rec.mark()
	require.NoError(t, deliver(t, s, TypeDragEnd, dragMessage{Translation: -300}))
	r = rec.render(t, func(r Render) bool { return r.Sheet.Settled })
	assert.Equal(t, "half", r.Sheet.Target)
	assert.InDelta(t, 400, r.Sheet.Position, 0.01)
}

func TestDeliverAfterShutdown(t *testing.T) {
	provider := services.NewStationProvider(nil, dataset.NewStatic(nil))
	s := New("closed", provider, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	err := deliver(t, s, TypeTogglePin, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Error(t, s.Run(context.Background()))
}

func TestClampRadiusAndPresets(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 1.0, cfg.ClampRadius(0.5))
	assert.Equal(t, 5.0, cfg.ClampRadius(5))
	assert.Equal(t, 10.0, cfg.ClampRadius(12))

	assert.Equal(t, []float64{2, 5}, presetsWithin([]float64{1, 2, 5, 10}, 2, 5))
}
