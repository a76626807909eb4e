package hub

import (
	"sync"
	"testing"
	"time"

	"bindery/internal/jobs"
	"bindery/internal/logging"
)

func makeJob(id string, status jobs.Status) *jobs.Job {
	now := time.Now().UTC()
	return &jobs.Job{ID: id, Status: status, CreatedAt: now, UpdatedAt: now}
}

func drain(t *testing.T, sub *Subscriber, want int) []Event {
	t.Helper()
	events := make([]Event, 0, want)
	timeout := time.After(time.Second)
	for len(events) < want {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				t.Fatalf("channel closed after %d events, want %d", len(events), want)
			}
			events = append(events, evt)
		case <-timeout:
			t.Fatalf("timed out after %d events, want %d", len(events), want)
		}
	}
	return events
}

func TestSubscribeReceivesInitialSnapshot(t *testing.T) {
	active := []*jobs.Job{
		makeJob("a1", jobs.StatusQueued),
		makeJob("a2", jobs.StatusProcessing),
	}
	h := New(func() []*jobs.Job { return active }, 8, logging.NewNop())

	sub := h.Subscribe()
	defer sub.Close()

	events := drain(t, sub, 2)
	if events[0].Job.ID != "a1" || events[1].Job.ID != "a2" {
		t.Fatalf("snapshot order: %s, %s", events[0].Job.ID, events[1].Job.ID)
	}
	if events[0].Sequence >= events[1].Sequence {
		t.Fatal("sequences must increase")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	h := New(nil, 8, logging.NewNop())
	first := h.Subscribe()
	second := h.Subscribe()
	defer first.Close()
	defer second.Close()

	h.Publish(makeJob("a1", jobs.StatusProcessing))

	for _, sub := range []*Subscriber{first, second} {
		events := drain(t, sub, 1)
		if events[0].Job.ID != "a1" {
			t.Fatalf("unexpected event: %+v", events[0])
		}
	}
}

func TestPublishedSnapshotsAreIsolated(t *testing.T) {
	h := New(nil, 8, logging.NewNop())
	sub := h.Subscribe()
	defer sub.Close()

	job := makeJob("a1", jobs.StatusProcessing)
	h.Publish(job)
	job.Status = jobs.StatusError

	events := drain(t, sub, 1)
	if events[0].Job.Status != jobs.StatusProcessing {
		t.Fatal("event shares memory with the publisher's job")
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	h := New(nil, 2, logging.NewNop())
	sub := h.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		h.Publish(makeJob("a1", jobs.StatusProcessing))
	}

	events := drain(t, sub, 2)
	// Oldest events were evicted; the buffer holds the newest two.
	if events[0].Sequence != 4 || events[1].Sequence != 5 {
		t.Fatalf("expected sequences 4,5; got %d,%d", events[0].Sequence, events[1].Sequence)
	}
	if sub.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", sub.Dropped())
	}
}

func TestLateSubscriberConvergesViaSnapshot(t *testing.T) {
	// Mutate a job through many states without any subscriber attached, then
	// subscribe: the initial snapshot alone must equal the current state.
	job := makeJob("a1", jobs.StatusUploading)
	h := New(func() []*jobs.Job { return []*jobs.Job{job} }, 8, logging.NewNop())

	for _, status := range []jobs.Status{jobs.StatusQueued, jobs.StatusProcessing} {
		job.Status = status
		h.Publish(job)
	}
	job.Status = jobs.StatusComplete
	h.Publish(job)

	sub := h.Subscribe()
	defer sub.Close()
	events := drain(t, sub, 1)
	if events[0].Job.Status != jobs.StatusComplete {
		t.Fatalf("late subscriber sees %s, want COMPLETE", events[0].Job.Status)
	}
}

func TestSubscribeDuringPublishNeverLosesTheTransition(t *testing.T) {
	// A terminal transition racing a subscription must reach the subscriber
	// either inside the initial snapshot or as a live event; the window
	// between snapshot read and registration must not swallow it.
	for i := 0; i < 50; i++ {
		var mu sync.Mutex
		job := makeJob("a1", jobs.StatusProcessing)
		h := New(func() []*jobs.Job {
			mu.Lock()
			defer mu.Unlock()
			return []*jobs.Job{job.Clone()}
		}, 8, logging.NewNop())

		done := make(chan struct{})
		go func() {
			defer close(done)
			mu.Lock()
			job.Status = jobs.StatusComplete
			snapshot := job.Clone()
			mu.Unlock()
			h.Publish(snapshot)
		}()

		sub := h.Subscribe()
		<-done

		converged := false
		timeout := time.After(time.Second)
	loop:
		for {
			select {
			case evt := <-sub.Events():
				if evt.Job.Status == jobs.StatusComplete {
					converged = true
					break loop
				}
			case <-timeout:
				break loop
			}
		}
		sub.Close()
		if !converged {
			t.Fatal("subscriber never observed the COMPLETE transition")
		}
	}
}

func TestCloseUnregisters(t *testing.T) {
	h := New(nil, 8, logging.NewNop())
	sub := h.Subscribe()
	if h.SubscriberCount() != 1 {
		t.Fatalf("count = %d", h.SubscriberCount())
	}
	sub.Close()
	sub.Close() // idempotent
	if h.SubscriberCount() != 0 {
		t.Fatalf("count after close = %d", h.SubscriberCount())
	}
	// Publishing after close must not panic.
	h.Publish(makeJob("a1", jobs.StatusQueued))
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel")
	}
}
