package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestScheduleCronValidation(t *testing.T) {
	s := New(nil)

	if _, err := s.ScheduleCron("not a cron expr", func(ctx context.Context) {}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}

	id, err := s.ScheduleCron("0 2 * * *", func(ctx context.Context) {})
	if err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}
	if id == 0 {
		t.Fatal("entry id not assigned")
	}
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(nil)
	ran := make(chan struct{}, 1)

	// Every-second schedule keeps the test fast.
	if _, err := s.ScheduleCron("@every 1s", func(ctx context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(nil)
	cancelled := make(chan struct{})

	if _, err := s.ScheduleCron("@every 1s", func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}); err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}

	s.Start()
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("job context not cancelled on Stop")
	}
}
