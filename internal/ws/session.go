package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// SessionState is the protocol state of a socket session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig bounds the resources of one session.
type SessionConfig struct {
	SendBuffer    int
	RatePerSecond float64
	RateBurst     int
	WriteTimeout  time.Duration
}

// DefaultSessionConfig matches the service defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendBuffer:    64,
		RatePerSecond: 5,
		RateBurst:     10,
		WriteTimeout:  10 * time.Second,
	}
}

// sessionHandler supplies the protocol of a session kind.
type sessionHandler interface {
	// HandleFrame runs on the read goroutine for every accepted inbound frame.
	HandleFrame(ctx context.Context, s *Session, data []byte)
	// HandleDelivery runs on the write goroutine before the event is written.
	HandleDelivery(ctx context.Context, s *Session, d Delivery)
}

// Session is one live websocket connection. Inbound frames are read on the
// caller's goroutine; outbound events are queued in a bounded buffer and
// written by a dedicated goroutine, so the connection has a single writer.
type Session struct {
	info     ConnInfo
	identity models.Identity
	conn     *websocket.Conn
	hub      *Hub
	handler  sessionHandler
	cfg      SessionConfig
	limiter  *rate.Limiter
	logger   *zap.Logger

	send chan Delivery
	done chan struct{}

	state     atomic.Int32
	mu        sync.Mutex
	channels  []string
	closeOnce sync.Once
	onClose   func(reason string)
}

func newSession(conn *websocket.Conn, hub *Hub, handler sessionHandler, identity models.Identity, info ConnInfo, cfg SessionConfig, logger *zap.Logger) *Session {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSessionConfig().SendBuffer
	}
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	info.UserID = identity.UserID
	info.Username = identity.Username
	return &Session{
		info:     info,
		identity: identity,
		conn:     conn,
		hub:      hub,
		handler:  handler,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.RateBurst),
		logger:   logger.With(zap.String("conn_id", info.ConnID), zap.Int64("user_id", identity.UserID), zap.String("kind", info.Kind)),
		send:     make(chan Delivery, cfg.SendBuffer),
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string                { return s.info.ConnID }
func (s *Session) Identity() models.Identity { return s.identity }
func (s *Session) Info() ConnInfo            { return s.info }
func (s *Session) State() SessionState       { return SessionState(s.state.Load()) }

// Join registers the session under channel. It is a no-op once closed.
func (s *Session) Join(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return
	}
	s.hub.Join(channel, s)
	s.channels = append(s.channels, channel)
}

// Channels returns the channels the session has joined.
func (s *Session) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.channels))
	copy(out, s.channels)
	return out
}

func (s *Session) markJoined() {
	s.state.CompareAndSwap(int32(StateConnecting), int32(StateJoined))
}

// Deliver queues the event for writing. A closed session or a full queue
// drops the event for this session only.
func (s *Session) Deliver(d Delivery) bool {
	if s.State() == StateClosed {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- d:
		return true
	default:
		return false
	}
}

// Reply sends an event to this session only.
func (s *Session) Reply(event models.Event) {
	payload, err := models.EncodeEvent(event)
	if err != nil {
		s.logger.Error("encode reply failed", zap.Error(err))
		return
	}
	if !s.Deliver(Delivery{Event: event, Payload: payload}) {
		observability.IncFanout(event.EventType(), "dropped")
	}
}

// Close leaves every joined channel and closes the connection. Only the
// first call has any effect.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state.Store(int32(StateClosed))
		channels := s.channels
		s.channels = nil
		s.mu.Unlock()

		close(s.done)
		for _, channel := range channels {
			s.hub.Leave(channel, s)
		}
		_ = s.conn.Close()
		s.logger.Debug("session closed", zap.String("reason", reason))
		if s.onClose != nil {
			s.onClose(reason)
		}
	})
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// run starts the write goroutine and reads until the connection fails or
// the session is closed.
func (s *Session) run(ctx context.Context) {
	s.markJoined()
	go s.writePump(ctx)
	s.readPump(ctx)
}

func (s *Session) readPump(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			reason := err.Error()
			if s.State() != StateClosed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", zap.Error(err))
				s.Close("error: " + reason)
				return
			}
			s.Close(reason)
			return
		}
		if !s.limiter.Allow() {
			observability.IncWSEvent(s.info.Kind, "rate_limited")
			continue
		}
		s.handler.HandleFrame(ctx, s, data)
	}
}

func (s *Session) writePump(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case d := <-s.send:
			s.handler.HandleDelivery(ctx, s, d)
			if s.cfg.WriteTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, d.Payload); err != nil {
				s.Close("error: write failed: " + err.Error())
				return
			}
		}
	}
}
