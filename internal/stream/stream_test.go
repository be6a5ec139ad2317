package stream

import (
	"context"
	"testing"
	"time"

	"coachscope.org/internal/audit"
)

func TestSubscribeReceivesPublished(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.Publish(audit.Record{ID: "rec-1", Event: audit.EventSearch})

	select {
	case rec := <-ch:
		if rec.ID != "rec-1" {
			t.Fatalf("rec = %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("record not delivered")
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)
	s.Publish(audit.Record{ID: "rec-1"})

	for _, ch := range []<-chan audit.Record{a, b} {
		select {
		case rec := <-ch:
			if rec.ID != "rec-1" {
				t.Fatalf("rec = %+v", rec)
			}
		case <-time.After(time.Second):
			t.Fatal("record not delivered")
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		// Exceeds the subscriber buffer; extra records are dropped.
		for i := 0; i < 100; i++ {
			s.Publish(audit.Record{ID: "rec"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
