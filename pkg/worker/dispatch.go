package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wirecache/wirecache/pkg/strategy"
)

// ErrNoHandler is returned when an event kind has no registered handler.
var ErrNoHandler = errors.New("worker: no handler registered for event kind")

// EventKind identifies an entry point into the worker.
type EventKind string

const (
	// EventInstall pre-caches the manifest for a new worker version.
	EventInstall EventKind = "install"

	// EventActivate applies a waiting version.
	EventActivate EventKind = "activate"

	// EventFetch is an intercepted outbound request.
	EventFetch EventKind = "fetch"

	// EventReplay triggers an outbox replay pass. The event tag selects the
	// queue.
	EventReplay EventKind = "replay"

	// EventMessage is a typed command from a page context.
	EventMessage EventKind = "message"
)

// Event is one unit of work dispatched into the worker. The payload fields
// are populated per kind; handlers write their outcome back into the event.
type Event struct {
	Kind EventKind

	// Request is the intercepted request (EventFetch).
	Request *strategy.Request

	// ReplayTag selects the outbox queue to replay (EventReplay).
	ReplayTag string

	// Message is the page command (EventMessage).
	Message *Message

	// Response is set by the fetch handler.
	Response *strategy.Response

	// Reply is set by the message handler.
	Reply *MessageResult

	wg sync.WaitGroup
}

// Extend runs fn in the background while keeping the event alive until fn
// returns. This is how a handler outlives its own return: the event is not
// settled until every extension has finished.
func (e *Event) Extend(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// Wait blocks until every lifetime extension has settled.
func (e *Event) Wait() {
	e.wg.Wait()
}

// Handler processes one event kind.
type Handler interface {
	Handle(ctx context.Context, evt *Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt *Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt *Event) error {
	return f(ctx, evt)
}

// Dispatcher maps event kinds to handlers. The table is built once at
// construction; there is no hidden global listener state.
type Dispatcher struct {
	handlers map[EventKind]Handler
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind]Handler)}
}

// Register binds a handler to an event kind, replacing any previous binding.
func (d *Dispatcher) Register(kind EventKind, h Handler) {
	d.handlers[kind] = h
}

// Dispatch routes the event to its handler. Fetch events may run
// concurrently; replay serialization is the queue's concern, not the
// dispatcher's.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *Event) error {
	h, ok := d.handlers[evt.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, evt.Kind)
	}
	return h.Handle(ctx, evt)
}
