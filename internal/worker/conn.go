package worker

import (
	"errors"
	"sync"
)

// ErrClosed is returned when sending on, or waiting for, a closed connection
var ErrClosed = errors.New("worker: connection closed")

// Conn is one side of the message channel between a caller and a worker
type Conn interface {
	// Send posts a message to the other side
	Send(msg Message) error
	// Receive delivers messages from the other side
	Receive() <-chan Message
	// Done is closed when either side closes the connection
	Done() <-chan struct{}
	Close() error
}

const pipeBuffer = 64

type pipe struct {
	toWorker   chan Message
	fromWorker chan Message
	done       chan struct{}
	once       sync.Once
}

type pipeEnd struct {
	p   *pipe
	in  chan Message
	out chan Message
}

// Pipe returns two connected in-memory endpoints: the caller side and the worker side
func Pipe() (caller Conn, worker Conn) {
	p := &pipe{
		toWorker:   make(chan Message, pipeBuffer),
		fromWorker: make(chan Message, pipeBuffer),
		done:       make(chan struct{}),
	}
	return &pipeEnd{p: p, in: p.fromWorker, out: p.toWorker},
		&pipeEnd{p: p, in: p.toWorker, out: p.fromWorker}
}

func (e *pipeEnd) Send(msg Message) error {
	select {
	case <-e.p.done:
		return ErrClosed
	default:
	}

	select {
	case e.out <- msg:
		return nil
	case <-e.p.done:
		return ErrClosed
	}
}

func (e *pipeEnd) Receive() <-chan Message {
	return e.in
}

func (e *pipeEnd) Done() <-chan struct{} {
	return e.p.done
}

func (e *pipeEnd) Close() error {
	e.p.once.Do(func() { close(e.p.done) })
	return nil
}
