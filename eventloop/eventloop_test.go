package eventloop_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/relab/bft"
	"github.com/relab/bft/eventloop"
	"github.com/relab/bft/logging"
)

func newLoop(handler eventloop.Handler) *eventloop.EventLoop {
	el := eventloop.New(10, logging.NewWithDest(io.Discard, "eventloop"))
	el.SetHandler(handler)
	return el
}

func TestHandler(t *testing.T) {
	c := make(chan bft.Event)
	el := newLoop(eventloop.HandlerFunc(func(event bft.Event) {
		c <- event
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go el.Run(ctx)

	want := bft.ViewQuorumReached{Epoch: 42}
	el.AddEvent(want)

	var event bft.Event
	select {
	case <-ctx.Done():
		t.Fatal("timed out")
	case event = <-c:
	}

	e, ok := event.(bft.ViewQuorumReached)
	if !ok {
		t.Fatalf("wrong type for event: got: %T, want: %T", event, want)
	}

	if e != want {
		t.Fatalf("wrong value for event: got: %v, want: %v", e, want)
	}
}

func TestEventsAreHandledInOrder(t *testing.T) {
	var got []bft.Epoch
	el := newLoop(eventloop.HandlerFunc(func(event bft.Event) {
		got = append(got, event.(bft.ViewQuorumReached).Epoch)
	}))

	for i := 1; i <= 5; i++ {
		el.AddEvent(bft.ViewQuorumReached{Epoch: bft.Epoch(i)})
	}
	for el.Tick(context.Background()) {
	}

	for i, epoch := range got {
		if epoch != bft.Epoch(i+1) {
			t.Errorf("event %d: got epoch %d, want %d", i, epoch, i+1)
		}
	}
	if len(got) != 5 {
		t.Errorf("handled %d events, want 5", len(got))
	}
}

func TestSchedule(t *testing.T) {
	c := make(chan bft.Event, 1)
	el := newLoop(eventloop.HandlerFunc(func(event bft.Event) {
		c <- event
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go el.Run(ctx)

	want := bft.ScheduledLocalTimeout{EpochView: bft.EpochView{Epoch: 1, View: 3}}
	el.Schedule(want, 10*time.Millisecond)

	select {
	case <-ctx.Done():
		t.Fatal("timed out")
	case event := <-c:
		if event != want {
			t.Fatalf("got %v, want %v", event, want)
		}
	}
}

func TestScheduleCancel(t *testing.T) {
	el := newLoop(eventloop.HandlerFunc(func(bft.Event) {}))

	token := el.Schedule(bft.ScheduledLocalTimeout{}, 20*time.Millisecond)
	token.Cancel()
	time.Sleep(50 * time.Millisecond)

	if n := el.Pending(); n != 0 {
		t.Errorf("cancelled event was delivered: %d pending events", n)
	}
}

func TestRunDrainsQueueOnCancel(t *testing.T) {
	handled := 0
	el := newLoop(eventloop.HandlerFunc(func(bft.Event) {
		handled++
	}))
	el.AddEvent(bft.ViewQuorumReached{})
	el.AddEvent(bft.ViewQuorumReached{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	el.Run(ctx)

	if handled != 2 {
		t.Errorf("handled %d events, want 2", handled)
	}
}

func TestEpochChangeSurvivesFullQueue(t *testing.T) {
	var (
		epochChanges int
		votes        int
	)
	el := eventloop.New(4, logging.NewWithDest(io.Discard, "eventloop"))
	el.SetHandler(eventloop.HandlerFunc(func(event bft.Event) {
		switch event.(type) {
		case bft.EpochChange:
			epochChanges++
		case bft.VoteReceived:
			votes++
		}
	}))

	el.AddEvent(bft.EpochChange{Epoch: 2})
	for i := 0; i < 4; i++ {
		el.AddEvent(bft.VoteReceived{Vote: bft.Vote{View: bft.View(i + 1)}})
	}
	for el.Tick(context.Background()) {
	}

	if epochChanges != 1 {
		t.Errorf("handled %d epoch changes, want 1", epochChanges)
	}
	if votes != 3 {
		t.Errorf("handled %d votes, want 3", votes)
	}
}
