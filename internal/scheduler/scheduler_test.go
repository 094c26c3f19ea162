package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestScheduler_NoFunctions(t *testing.T) {
	s := New(30*time.Second, "0 21 * * *")
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("scheduler without jobs must not report running")
	}
	s.Stop()
}

func TestScheduler_RegistersJobs(t *testing.T) {
	s := New(30*time.Second, "0 21 * * *")
	s.SetReminderFunction(func(context.Context) error { return nil })
	s.SetReportFunction(func(context.Context) error { return nil })
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if got := len(s.cron.Entries()); got != 2 {
		t.Fatalf("want 2 entries, got %d", got)
	}
	if !s.IsRunning() {
		t.Fatalf("expected running")
	}
}

func TestScheduler_RejectsBadInput(t *testing.T) {
	s := New(100*time.Millisecond, "")
	s.SetReminderFunction(func(context.Context) error { return nil })
	if err := s.Start(); err == nil {
		t.Fatalf("sub-second interval must be rejected")
	}

	s = New(time.Minute, "not a cron")
	s.SetReportFunction(func(context.Context) error { return nil })
	if err := s.Start(); err == nil {
		t.Fatalf("bad cron expression must be rejected")
	}
}
