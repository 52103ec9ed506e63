// Package stream drives one token-streamed chat turn over a bidirectional
// channel to the language-model proxy.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cv-assistant/internal/chat/frame"
	"cv-assistant/internal/shared/telemetry"
)

const DefaultDeadline = 45 * time.Second

var (
	// ErrTransport covers channel open, write, and read failures.
	ErrTransport = errors.New("stream transport error")
	// ErrDeadline means the deadline fired before the stream resolved.
	ErrDeadline = errors.New("stream deadline exceeded")
)

// Conn is the channel a session reads frames from. ReadMessage must return
// io.EOF once the peer closes the channel cleanly and must unblock when
// Close is called.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a Conn to a streaming endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// TokenFunc receives each token increment, never the accumulated text.
type TokenFunc func(token string)

// StartMessage is the single control frame sent once the channel is open.
type StartMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// State tracks where a session is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateOpening
	StateStreaming
	StateResolvedSuccess
	StateResolvedFailure
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateResolvedSuccess:
		return "resolved_success"
	case StateResolvedFailure:
		return "resolved_failure"
	default:
		return "idle"
	}
}

type result struct {
	text string
	err  error
}

// Session owns one logical chat turn. It resolves exactly once, whichever
// of terminate, close, error, or deadline happens first.
type Session struct {
	dialer   Dialer
	endpoint string
	onToken  TokenFunc
	deadline time.Duration

	state    atomic.Int32
	resolved atomic.Bool
	done     chan result

	mu   sync.Mutex
	buf  strings.Builder
	conn Conn

	// deliverMu orders token delivery against resolution so that no
	// callback runs after Run has returned.
	deliverMu sync.Mutex
}

// NewSession prepares a session without opening the channel.
func NewSession(dialer Dialer, endpoint string, onToken TokenFunc, deadline time.Duration) *Session {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Session{
		dialer:   dialer,
		endpoint: endpoint,
		onToken:  onToken,
		deadline: deadline,
		done:     make(chan result, 1),
	}
}

// Open runs a full streaming turn and returns the accumulated answer.
// A clean close with no tokens is a success with empty text. Deadline expiry
// is always a failure, even when partial text has arrived.
func Open(ctx context.Context, dialer Dialer, endpoint string, startPayload any, onToken TokenFunc, deadline time.Duration) (string, error) {
	return NewSession(dialer, endpoint, onToken, deadline).Run(ctx, startPayload)
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Partial returns the text accumulated so far.
func (s *Session) Partial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Run opens the channel, sends the start frame, and blocks until resolution.
func (s *Session) Run(ctx context.Context, startPayload any) (string, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateOpening)) {
		return "", fmt.Errorf("%w: session already used", ErrTransport)
	}

	dialCtx, cancelDial := context.WithCancel(ctx)
	defer cancelDial()

	timer := time.AfterFunc(s.deadline, func() {
		cancelDial()
		s.finish(result{err: ErrDeadline})
	})
	defer timer.Stop()

	stopCtxWatch := context.AfterFunc(ctx, func() {
		s.finish(result{err: fmt.Errorf("%w: %v", ErrTransport, ctx.Err())})
	})
	defer stopCtxWatch()

	if s.dialer == nil {
		s.finish(result{err: fmt.Errorf("%w: no dialer configured", ErrTransport)})
		return s.wait()
	}

	conn, err := s.dialer.Dial(dialCtx, s.endpoint)
	if err != nil {
		s.finish(result{err: fmt.Errorf("%w: dial %s: %v", ErrTransport, s.endpoint, err)})
		return s.wait()
	}
	if !s.attach(conn) {
		return s.wait()
	}

	if err := conn.WriteJSON(StartMessage{Type: "start", Payload: startPayload}); err != nil {
		s.finish(result{err: fmt.Errorf("%w: send start: %v", ErrTransport, err)})
		return s.wait()
	}
	s.state.CompareAndSwap(int32(StateOpening), int32(StateStreaming))

	go s.readLoop(conn)
	return s.wait()
}

func (s *Session) wait() (string, error) {
	res := <-s.done
	return res.text, res.err
}

// attach records the live connection. It closes conn and returns false when
// the session resolved while the dial was in flight.
func (s *Session) attach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved.Load() {
		_ = conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *Session) readLoop(conn Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.finish(result{text: s.Partial()})
				return
			}
			s.finish(result{err: fmt.Errorf("%w: read: %v", ErrTransport, err)})
			return
		}
		if s.resolved.Load() {
			return
		}

		f := frame.Classify(payload)
		if f.Kind == frame.KindToken {
			s.appendToken(f.Text)
		}
		if f.Terminates() {
			s.finish(result{text: s.Partial()})
			return
		}
	}
}

func (s *Session) appendToken(token string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.resolved.Load() {
		return
	}
	s.mu.Lock()
	s.buf.WriteString(token)
	s.mu.Unlock()
	s.deliver(token)
}

func (s *Session) deliver(token string) {
	if s.onToken == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("chat.stream.on_token_panic", map[string]any{
				"endpoint": s.endpoint,
				"error":    fmt.Sprint(rec),
			})
		}
	}()
	s.onToken(token)
}

// finish resolves the session. Only the first call has any effect.
func (s *Session) finish(res result) {
	if !s.resolved.CompareAndSwap(false, true) {
		return
	}
	if res.err != nil {
		s.state.Store(int32(StateResolvedFailure))
	} else {
		s.state.Store(int32(StateResolvedSuccess))
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

	// Wait out a callback already in flight.
	s.deliverMu.Lock()
	s.deliverMu.Unlock()

	s.done <- res
}
