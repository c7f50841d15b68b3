package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartcity/mobility/internal/telemetry"
)

// DefaultTimeout bounds every request independently
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotReady is returned for requests sent before WORKER_READY arrived
	ErrNotReady = errors.New("worker: not ready")

	// ErrTimeout is returned when no reply arrives within the request timeout
	ErrTimeout = errors.New("worker: request timed out")

	// ErrRemote wraps an ERROR reply sent by the worker
	ErrRemote = errors.New("worker: request failed")

	// ErrUnexpectedReply is returned when a reply type does not match the request
	ErrUnexpectedReply = errors.New("worker: unexpected reply type")
)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIDFunc replaces the correlation id generator
func WithIDFunc(fn func() string) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClientLogger sets the client logger
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client sends requests to a worker and matches replies by correlation id.
// A reply whose id is no longer pending is dropped.
type Client struct {
	conn    Conn
	timeout time.Duration
	newID   func() string
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.Instruments

	mu        sync.Mutex
	ready     bool
	readyCh   chan struct{}
	pending   map[string]chan Message
	closeOnce sync.Once
}

// NewClient starts reading replies from conn
func NewClient(conn Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:    conn,
		timeout: DefaultTimeout,
		newID:   uuid.NewString,
		logger:  slog.Default(),
		tracer:  telemetry.Tracer("github.com/smartcity/mobility/internal/worker"),
		metrics: telemetry.Metrics(),
		readyCh: make(chan struct{}),
		pending: make(map[string]chan Message),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	return c
}

// Start runs a worker on its own goroutine and returns a client connected to it.
// The worker stops when ctx is done or the client is closed.
func Start(ctx context.Context, logger *slog.Logger, opts ...ClientOption) *Client {
	callerSide, workerSide := Pipe()
	w := New(logger)
	go func() {
		if err := w.Serve(ctx, workerSide); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("Worker stopped", "error", err)
		}
		_ = workerSide.Close()
	}()
	return NewClient(callerSide, append([]ClientOption{WithClientLogger(logger)}, opts...)...)
}

func (c *Client) readLoop() {
	for {
		select {
		case <-c.conn.Done():
			return
		case msg := <-c.conn.Receive():
			c.deliver(msg)
		}
	}
}

func (c *Client) deliver(msg Message) {
	if msg.Type == TypeReady {
		c.mu.Lock()
		if !c.ready {
			c.ready = true
			close(c.readyCh)
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Dropping reply for unknown request", "type", msg.Type, "id", msg.ID)
		return
	}
	ch <- msg
}

// Ready reports whether the worker announced readiness
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// WaitReady blocks until the worker is ready or ctx is done
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	case <-c.conn.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of requests awaiting a reply
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close shuts the connection; in-flight requests fail with ErrClosed
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}

// Request sends payload as a typ request and decodes the reply payload into out
func (c *Client) Request(ctx context.Context, typ MessageType, payload, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "worker."+string(typ),
		trace.WithAttributes(attribute.String("worker.request_type", string(typ))))
	start := time.Now()
	defer func() {
		outcome := outcomeOf(err)
		attrs := metric.WithAttributes(
			attribute.String("type", string(typ)),
			attribute.String("outcome", outcome),
		)
		c.metrics.WorkerRequests.Add(ctx, 1, attrs)
		c.metrics.WorkerDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	want, ok := ReplyType(typ)
	if !ok {
		return fmt.Errorf("worker: unsupported request type %s", typ)
	}
	if !c.Ready() {
		return ErrNotReady
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("worker: failed to encode %s: %w", typ, err)
	}

	id := c.newID()
	span.SetAttributes(attribute.String("worker.request_id", id))
	replyCh := make(chan Message, 1)

	c.mu.Lock()
	c.pending[id] = replyCh
	c.mu.Unlock()

	if err := c.conn.Send(Message{Type: typ, ID: id, Payload: body}); err != nil {
		c.forget(id)
		return fmt.Errorf("worker: failed to send %s: %w", typ, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		switch reply.Type {
		case TypeError:
			return fmt.Errorf("%w: %s", ErrRemote, reply.Error)
		case want:
		default:
			return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedReply, reply.Type, want)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(reply.Payload, out); err != nil {
			return fmt.Errorf("worker: failed to decode %s: %w", reply.Type, err)
		}
		return nil
	case <-timer.C:
		c.forget(id)
		return fmt.Errorf("%w: %s %s after %s", ErrTimeout, typ, id, c.timeout)
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-c.conn.Done():
		c.forget(id)
		return ErrClosed
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRemote):
		return "remote_error"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "error"
	}
}
