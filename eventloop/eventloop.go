// Package eventloop provides the single-threaded task that owns a node's consensus state.
//
// Events are queued by any goroutine and handed, one at a time and in order, to a single Handler.
// The handler therefore never needs locks. Scheduled events are posted back into the same queue.
package eventloop

import (
	"context"
	"sync"
	"time"

	"github.com/relab/bft"
	"github.com/relab/bft/logging"
)

// Handler processes events on the event loop.
type Handler interface {
	HandleEvent(event bft.Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event bft.Event)

// HandleEvent calls f(event).
func (f HandlerFunc) HandleEvent(event bft.Event) {
	f(event)
}

// EventLoop accepts events and passes them to its handler in the order they were added.
type EventLoop struct {
	eventQ queue
	logger logging.Logger

	mut     sync.Mutex // protects the following:
	ctx     context.Context
	handler Handler
}

// New returns a new event loop with the requested buffer size.
func New(bufferSize uint, logger logging.Logger) *EventLoop {
	return &EventLoop{
		ctx:    context.Background(),
		eventQ: newQueue(bufferSize),
		logger: logger,
	}
}

// SetHandler sets the handler that processes events. It must be called before Run or Tick.
func (el *EventLoop) SetHandler(handler Handler) {
	el.mut.Lock()
	defer el.mut.Unlock()
	el.handler = handler
}

// AddEvent adds an event to the queue. It is safe to call from any goroutine.
// If the queue is full, the oldest event other than an EpochChange is dropped.
func (el *EventLoop) AddEvent(event bft.Event) {
	if event == nil {
		return
	}
	if evicted := el.eventQ.push(event); evicted != nil {
		el.logger.Warnf("event queue is full; dropped %T", evicted)
	}
}

// Schedule adds the event to the queue after the delay has passed.
// It never blocks; the returned token prevents the delivery if the delay has not yet passed.
func (el *EventLoop) Schedule(event bft.Event, delay time.Duration) bft.Cancellable {
	return timerToken{time.AfterFunc(delay, func() {
		el.AddEvent(event)
	})}
}

type timerToken struct {
	timer *time.Timer
}

func (t timerToken) Cancel() {
	t.timer.Stop()
}

// Context returns the context associated with the event loop.
// Usually, this context will be the one passed to Run.
// However, if Tick is used instead of Run, Context will return
// the last context that was passed to Tick.
// If neither Run nor Tick have been called,
// Context returns context.Background.
func (el *EventLoop) Context() context.Context {
	el.mut.Lock()
	defer el.mut.Unlock()

	return el.ctx
}

func (el *EventLoop) setContext(ctx context.Context) Handler {
	el.mut.Lock()
	defer el.mut.Unlock()

	el.ctx = ctx
	if el.handler == nil {
		panic("eventloop: no handler set")
	}
	return el.handler
}

// Run runs the event loop. A context object can be provided to stop the event loop.
// Events still queued when the context is cancelled are processed before Run returns.
func (el *EventLoop) Run(ctx context.Context) {
	handler := el.setContext(ctx)

loop:
	for {
		event, ok := el.eventQ.pop()
		if !ok {
			select {
			case <-el.eventQ.ready():
				continue loop
			case <-ctx.Done():
				break loop
			}
		}
		handler.HandleEvent(event)
	}

	l := el.eventQ.len()
	for i := 0; i < l; i++ {
		event, _ := el.eventQ.pop()
		handler.HandleEvent(event)
	}
}

// Tick processes a single event. Returns true if an event was handled.
func (el *EventLoop) Tick(ctx context.Context) bool {
	handler := el.setContext(ctx)

	event, ok := el.eventQ.pop()
	if !ok {
		return false
	}
	handler.HandleEvent(event)
	return true
}

// Pending returns the number of queued events.
func (el *EventLoop) Pending() int {
	return el.eventQ.len()
}

var _ bft.Scheduler = (*EventLoop)(nil)
