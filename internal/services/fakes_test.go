package services

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"context"
	"sync"
)

// fetchCall is one blocked FetchNearby invocation released by the test.
type fetchCall struct {
	ctx     context.Context
	center  domain.Coordinate
	radius  float64
	release chan domain.QueryResult
}

// blockingFetcher hands every call to the test and returns whatever the test
// releases, ignoring cancellation so late completions can be simulated.
type blockingFetcher struct {
	calls chan *fetchCall
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{calls: make(chan *fetchCall, 16)}
}

func (f *blockingFetcher) FetchNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) domain.QueryResult {
	c := &fetchCall{ctx: ctx, center: center, radius: radiusKm, release: make(chan domain.QueryResult, 1)}
	f.calls <- c
	return <-c.release
}

type recordingIssuer struct {
	mu      sync.Mutex
	queries []domain.RadiusQuery
	clears  int
}

func (r *recordingIssuer) OnRadiusQueryChanged(q domain.RadiusQuery) error {
	if err := q.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	return nil
}

func (r *recordingIssuer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recordingIssuer) Queries() []domain.RadiusQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RadiusQuery(nil), r.queries...)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (n *recordingNotifier) Notify(notice domain.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) Kinds() []domain.NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NoticeKind, 0, len(n.notices))
	for _, x := range n.notices {
		out = append(out, x.Kind)
	}
	return out
}

// fakeLocation is a scriptable LocationService.
type fakeLocation struct {
	mu         sync.Mutex
	permission ports.PermissionStatus
	permErr    error
	fix        domain.Coordinate
	fixErr     error
	watchers   []func(domain.Coordinate)
	removed    int
}

func (f *fakeLocation) RequestPermission(context.Context) (ports.PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission, f.permErr
}

func (f *fakeLocation) CurrentPosition(context.Context) (domain.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fix, f.fixErr
}

func (f *fakeLocation) Watch(_ context.Context, _ ports.WatchOptions, fn func(domain.Coordinate)) (ports.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permission != ports.PermissionGranted {
		return nil, domain.ErrPermissionDenied
	}
	f.watchers = append(f.watchers, fn)
	return subscriptionFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.removed++
	}), nil
}

// emit delivers c to every watcher ever registered, live or not.
func (f *fakeLocation) emit(c domain.Coordinate) {
	f.mu.Lock()
	watchers := append([]func(domain.Coordinate){}, f.watchers...)
	f.mu.Unlock()
	for _, fn := range watchers {
		fn(c)
	}
}

type subscriptionFunc func()

func (s subscriptionFunc) Remove() { s() }

// fakeSynth records utterances; speakErrs are returned by successive Speak calls.
type fakeSynth struct {
	mu        sync.Mutex
	spoken    []ports.Utterance
	stops     int
	speakErrs []error
}

func (s *fakeSynth) Speak(_ context.Context, u ports.Utterance) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	var err error
	if len(s.speakErrs) > 0 {
		err, s.speakErrs = s.speakErrs[0], s.speakErrs[1:]
	}
	s.mu.Unlock()
	return err
}

func (s *fakeSynth) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSynth) Spoken() []ports.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Utterance(nil), s.spoken...)
}
