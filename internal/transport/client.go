// Package transport owns the WebSocket connection lifetime for one chart
// session: dialing, the single reader loop, heartbeat echo, idle timeout,
// and fan-out of dispatched events to subscribers. Grounded on the
// teacher's MarketStream/connectAndListen loop, adapted for this
// protocol's framing and state machine.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvkrylov/tvchart-session/internal/domain"
	"github.com/nvkrylov/tvchart-session/internal/protocol"
	"github.com/nvkrylov/tvchart-session/internal/session"
)

const (
	originHeader       = "https://www.tradingview.com"
	defaultIdleTimeout = 30 * time.Second
	defaultBufferSize  = 64
)

// Recorder receives lifecycle observations for external metrics export. A
// nil Recorder passed to New is replaced with a no-op implementation.
type Recorder interface {
	IncDrop()
	SetConnected(bool)
	ObserveHeartbeat()
}

type noopRecorder struct{}

func (noopRecorder) IncDrop()          {}
func (noopRecorder) SetConnected(bool) {}
func (noopRecorder) ObserveHeartbeat() {}

// Config configures one Client connection.
type Config struct {
	URL         string
	IdleTimeout time.Duration
	BufferSize  int // per-subscriber channel capacity
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// frameSender implements session.Sender by encoding a method call into a
// length-framed message and writing it to the socket. Also used directly
// for raw heartbeat echoes, which bypass the method/params envelope.
type frameSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *frameSender) Send(method string, params []interface{}) error {
	frame, err := protocol.Encode(method, params)
	if err != nil {
		return err
	}
	return s.write(frame)
}

func (s *frameSender) echo(heartbeat string) error {
	return s.write(protocol.EncodeHeartbeat(heartbeat))
}

func (s *frameSender) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return fmt.Errorf("%w: write: %v", domain.ErrTransport, err)
	}
	return nil
}

// Client owns one WebSocket connection end to end. Exactly one goroutine —
// the one running Run — may read frames, mutate session/interpreter state,
// or build events; every other method is safe to call concurrently with
// Run from any goroutine.
//
// Unlike the teacher's MarketStream, Client does not auto-reconnect: a
// chart session is scoped to one connection, and losing the socket
// terminates the session rather than silently resuming a new one
// underneath callers holding stale session/series ids.
type Client struct {
	cfg    Config
	logger *slog.Logger
	conn   *websocket.Conn
	sender *frameSender

	Controller  *session.Controller
	interpreter *session.Interpreter
	dispatcher  *session.Dispatcher
	store       *session.Store

	recorder Recorder

	mu          sync.Mutex
	subscribers []chan domain.UpdateEvent
	studyErrs   chan domain.StudyErrorEvent
	dropped     uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// New dials cfg.URL with the required Origin header and brings the
// Controller to CONNECTED. The caller still must drive Authenticate,
// OpenChart, Resolve, CreateSeries and AddStudy before calling Run.
func New(ctx context.Context, cfg Config, logger *slog.Logger, recorder Recorder) (*Client, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}

	header := http.Header{"Origin": []string{originHeader}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrTransport, cfg.URL, err)
	}

	sender := &frameSender{conn: conn}
	controller, err := session.NewController(sender)
	if err != nil {
		conn.Close()
		return nil, err
	}

	store := session.NewStore()
	c := &Client{
		cfg:         cfg,
		logger:      logger.With("component", "transport"),
		conn:        conn,
		sender:      sender,
		Controller:  controller,
		interpreter: session.NewInterpreter(store),
		dispatcher:  session.NewDispatcher(controller),
		store:       store,
		recorder:    recorder,
		studyErrs:   make(chan domain.StudyErrorEvent, cfg.BufferSize),
		closed:      make(chan struct{}),
	}

	if err := controller.MarkConnected(); err != nil {
		conn.Close()
		return nil, err
	}
	recorder.SetConnected(true)
	return c, nil
}

// Subscribe registers a new bounded event channel. Slow consumers never
// block the reader: a full channel has its oldest pending event dropped to
// make room, and the drop is counted (§5).
func (c *Client) Subscribe() <-chan domain.UpdateEvent {
	ch := make(chan domain.UpdateEvent, c.cfg.BufferSize)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

// StudyErrors delivers per-study errors surfaced by the server without
// terminating the session.
func (c *Client) StudyErrors() <-chan domain.StudyErrorEvent {
	return c.studyErrs
}

// DropCount returns the monotonically increasing count of events dropped
// to backpressure.
func (c *Client) DropCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Snapshot exposes the current materialized OHLC/indicator/graphics state
// for synchronized reads outside the reader goroutine.
func (c *Client) Snapshot() session.Snapshot {
	return c.store.Snapshot()
}

// Run is the single reader loop: it blocks on socket recv until the
// connection errors, the idle timeout elapses, or ctx is cancelled. It
// returns the terminal error. Only one goroutine may call Run for a given
// Client.
func (c *Client) Run(ctx context.Context) error {
	defer c.shutdown()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-stop:
		}
	}()

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout)); err != nil {
			c.Controller.Terminate()
			return fmt.Errorf("%w: set read deadline: %v", domain.ErrTransport, err)
		}
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.Controller.Terminate()
			return fmt.Errorf("%w: read: %v", domain.ErrTransport, err)
		}
		c.recorder.ObserveHeartbeat()
		c.handleFrame(string(message))
	}
}

func (c *Client) handleFrame(buf string) {
	for _, chunk := range protocol.Decode(buf) {
		switch chunk.Kind {
		case protocol.KindHeartbeat:
			if err := c.sender.echo(chunk.Heartbeat); err != nil {
				c.logger.Error("heartbeat echo failed", "err", err)
			}
		case protocol.KindMessage:
			c.handleEnvelope(chunk.Envelope)
		}
	}
}

func (c *Client) handleEnvelope(env protocol.Envelope) {
	route := protocol.Classify(env)
	switch route.Class {
	case protocol.ClassDataUpdate:
		if route.Data == nil {
			return
		}
		delta := c.interpreter.Apply(route.Data)
		event, ok := c.dispatcher.BuildEvent(delta, c.store.Snapshot())
		if !ok {
			return
		}
		c.fanOut(event)
	case protocol.ClassCriticalError:
		c.logger.Error("critical_error received, terminating session")
		c.Controller.Terminate()
	case protocol.ClassStudyError:
		c.logger.Warn("study_error", "study_id", route.StudyID, "reason", route.Reason)
		ev := domain.StudyErrorEvent{StudyID: route.StudyID, Reason: route.Reason}
		select {
		case c.studyErrs <- ev:
		default:
			c.recordDrop()
		}
	}
}

// fanOut delivers event to every subscriber, dropping the oldest queued
// event for any subscriber whose channel is full rather than blocking.
func (c *Client) fanOut(event domain.UpdateEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
			continue
		default:
		}
		select {
		case <-ch:
			c.dropped++
			c.recorder.IncDrop()
		default:
		}
		select {
		case ch <- event:
		default:
			c.dropped++
			c.recorder.IncDrop()
		}
	}
}

func (c *Client) recordDrop() {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
	c.recorder.IncDrop()
}

// Close shuts down the socket, which causes the in-flight ReadMessage in
// Run to error out and Run to return. Safe to call from any goroutine.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		for _, ch := range c.subscribers {
			close(ch)
		}
		close(c.studyErrs)
		c.mu.Unlock()
		close(c.closed)
		c.recorder.SetConnected(false)
	})
}
