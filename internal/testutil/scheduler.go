package testutil

import (
	"sync"
	"time"

	"github.com/relab/bft"
)

// ScheduledEvent is an event recorded by a ManualScheduler.
type ScheduledEvent struct {
	Event     bft.Event
	Delay     time.Duration
	Cancelled bool
	Fired     bool
}

// Cancel marks the event as cancelled.
func (e *ScheduledEvent) Cancel() {
	e.Cancelled = true
}

// ManualScheduler records scheduled events instead of starting timers.
// Tests decide when, and whether, an event fires.
type ManualScheduler struct {
	mut    sync.Mutex
	events []*ScheduledEvent
}

// NewManualScheduler returns an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule records the event.
func (s *ManualScheduler) Schedule(event bft.Event, delay time.Duration) bft.Cancellable {
	s.mut.Lock()
	defer s.mut.Unlock()
	e := &ScheduledEvent{Event: event, Delay: delay}
	s.events = append(s.events, e)
	return e
}

// All returns every event scheduled so far, in order.
func (s *ManualScheduler) All() []*ScheduledEvent {
	s.mut.Lock()
	defer s.mut.Unlock()
	return append([]*ScheduledEvent(nil), s.events...)
}

// Pending returns the events that have been neither cancelled nor fired.
func (s *ManualScheduler) Pending() []*ScheduledEvent {
	s.mut.Lock()
	defer s.mut.Unlock()
	var pending []*ScheduledEvent
	for _, e := range s.events {
		if !e.Cancelled && !e.Fired {
			pending = append(pending, e)
		}
	}
	return pending
}

// Last returns the most recently scheduled event, or nil.
func (s *ManualScheduler) Last() *ScheduledEvent {
	s.mut.Lock()
	defer s.mut.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

// FireNext marks the oldest pending event as fired and returns it.
func (s *ManualScheduler) FireNext() (bft.Event, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	for _, e := range s.events {
		if !e.Cancelled && !e.Fired {
			e.Fired = true
			return e.Event, true
		}
	}
	return nil, false
}

var _ bft.Scheduler = (*ManualScheduler)(nil)
