package session

import (
	"charge-station-locator/internal/platform/obs"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from client.
	maxMessageSize = 4096
)

// Hub upgrades map clients to websocket sessions and tracks live ones.
type Hub struct {
	source   StationSource
	cfg      Config
	mqtt     mqtt.Client
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session

	// Ended by Close; every stream runs under it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub accepts websocket origins from allowedOrigins; "*" allows any.
// mqttClient may be nil.
func NewHub(source StationSource, cfg Config, mqttClient mqtt.Client, allowedOrigins []string) *Hub {
	h := &Hub{
		source:   source,
		cfg:      cfg,
		mqtt:     mqttClient,
		sessions: make(map[string]*Session),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Active reports the number of connected sessions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends every live session and refuses new ones. It waits for the
// streams to finish until ctx is done. Hijacked connections are outside
// http.Server.Shutdown, so call Close first.
func (h *Hub) Close(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close hub: %d sessions still open: %w", h.Active(), ctx.Err())
	}
}

func (h *Hub) newSession() *Session {
	var opts []Option
	if h.mqtt != nil {
		opts = append(opts, WithMQTT(h.mqtt))
	}
	s := New(uuid.NewString(), h.source, h.cfg, opts...)

	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and runs a session until either side quits.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Printf("req_id=%s op=ws.upgrade err=%v", obs.RequestID(r.Context()), err)
		return
	}

	s := h.newSession()
	defer h.remove(s)

	log.Printf("req_id=%s op=ws.open session=%s", obs.RequestID(r.Context()), s.ID())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	st := stream{conn: conn, session: s}
	st.run(ctx)

	log.Printf("req_id=%s op=ws.close session=%s", obs.RequestID(r.Context()), s.ID())
}

type stream struct {
	// the websocket connection.
	conn *websocket.Conn
	// the session fed by this connection.
	session *Session
}

func (s *stream) run(ctx context.Context) {
	defer s.conn.Close()

	// to cancel everything
	stopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := sync.WaitGroup{}
	wg.Add(3)

	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()
		s.session.Run(stopCtx)
	}()
	go s.sessionToClientLoop(cancel, &wg, stopCtx)
	go s.clientToSessionLoop(cancel, &wg, stopCtx)
	wg.Wait()
}

func (s *stream) clientToSessionLoop(cancel context.CancelFunc, wg *sync.WaitGroup, stopCtx context.Context) {
	defer func() {
		cancel()
		wg.Done()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		select {
		case <-stopCtx.Done():
			return
		default:
		}

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("session=%s op=ws.read err=%v", s.session.ID(), err)
			}
			return
		}

		if err := s.session.Deliver(msg); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			log.Printf("session=%s op=ws.deliver err=%v", s.session.ID(), err)
			s.session.SendError(err)
		}
	}
}

func (s *stream) sessionToClientLoop(cancel context.CancelFunc, wg *sync.WaitGroup, stopCtx context.Context) {
	defer func() {
		// unblocks the reader
		s.conn.Close()
		cancel()
		wg.Done()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stopCtx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case env := <-s.session.Frames():
			b, err := json.Marshal(env)
			if err != nil {
				log.Printf("session=%s op=ws.write type=%s err=%v", s.session.ID(), env.Type, err)
				continue
			}

			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(b); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		}
	}
}
