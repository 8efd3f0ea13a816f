package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestCronParse(t *testing.T) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse("@daily")
	if err != nil {
		t.Fatalf("failed to parse cron expression: %v", err)
	}

	now := time.Now()
	next1 := schedule.Next(now)
	next2 := schedule.Next(next1)

	if next1.Sub(now) > 25*time.Hour {
		t.Fatalf("expected next run within a day, got %v", next1)
	}
	if !next2.After(next1) {
		t.Fatalf("expected next2 to be after next1, got next1=%v next2=%v", next1, next2)
	}
}

func TestSchedulerScheduleStatus(t *testing.T) {
	s := NewScheduler(func() error { return nil }, nil, nil)

	if err := s.Schedule("@every 1m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	next, running := s.Status()
	if running {
		t.Fatalf("scheduler should not be running")
	}
	if next.IsZero() {
		t.Fatalf("next run should be set after scheduling")
	}

	if err := s.Schedule(""); err != nil {
		t.Fatalf("clearing schedule returned error: %v", err)
	}
	if next, _ := s.Status(); !next.IsZero() {
		t.Fatalf("next run should be cleared, got %v", next)
	}
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	s := NewScheduler(func() error { return nil }, nil, nil)
	if err := s.Schedule("every tuesday"); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestSchedulerSkip(t *testing.T) {
	s := NewScheduler(func() error { return nil }, nil, nil)
	if err := s.Skip(); err == nil {
		t.Fatalf("expected error when skipping without a schedule")
	}

	if err := s.Schedule("@every 10m"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	orig, _ := s.Status()

	s.Start()
	defer s.Stop()

	if err := s.Skip(); err != nil {
		t.Fatalf("Skip returned error: %v", err)
	}
	skipped, _ := s.Status()
	if !skipped.After(orig) {
		t.Fatalf("expected skip to move schedule forward, got %v <= %v", skipped, orig)
	}
}

func TestSchedulerRunCycle(t *testing.T) {
	taskCh := make(chan struct{}, 1)
	runCh := make(chan time.Time, 1)
	errCh := make(chan error, 1)

	task := func() error {
		taskCh <- struct{}{}
		return nil
	}
	onRun := func(data any) {
		if at, ok := data.(time.Time); ok {
			runCh <- at
		}
	}
	onError := func(data any) {
		if err, ok := data.(error); ok {
			errCh <- err
		}
	}

	s := NewScheduler(task, onRun, onError)
	if err := s.Schedule("@every 1h"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	forced := time.Now().Add(50 * time.Millisecond)
	s.mu.Lock()
	s.nextRun = forced
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case <-taskCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not execute in time")
	}

	select {
	case at := <-runCh:
		if !at.Equal(forced) {
			t.Errorf("OnRun got %v, want %v", at, forced)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive run notification in time")
	}

	select {
	case err := <-errCh:
		t.Fatalf("unexpected error callback: %v", err)
	default:
	}

	// Give the loop a moment to advance past the forced run.
	time.Sleep(50 * time.Millisecond)
	next, _ := s.Status()
	if !next.After(forced) {
		t.Fatalf("next run should advance after running, got %v", next)
	}
}

func TestSchedulerTaskFailure(t *testing.T) {
	errCh := make(chan error, 1)

	s := NewScheduler(func() error { return errors.New("boom") }, nil, func(data any) {
		if err, ok := data.(error); ok {
			errCh <- err
		}
	})
	if err := s.Schedule("@every 1h"); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}

	s.mu.Lock()
	s.nextRun = time.Now().Add(50 * time.Millisecond)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected error callback from failed task")
	}
}
