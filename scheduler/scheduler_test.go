package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRefresher struct {
	fail func(model string) bool
}

func (f *fakeRefresher) RefreshModel(ctx context.Context, model string) error {
	if f.fail != nil && f.fail(model) {
		return errors.New("boom")
	}
	return nil
}

func TestScheduleSucceedResetsRetries(t *testing.T) {
	now := time.Now()
	s, err := NewSchedule("s1", "m1", "* * * * *", 3, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.fail(now)
	s.fail(now)
	if s.RetryCount() != 2 {
		t.Fatalf("retry count = %d, want 2", s.RetryCount())
	}
	s.succeed(now)
	if s.RetryCount() != 0 {
		t.Errorf("retry count after success = %d, want 0", s.RetryCount())
	}
	if s.State() != StateArmed {
		t.Errorf("state after success = %v, want armed", s.State())
	}
}

func TestScheduleFailExceedsMaxRetries(t *testing.T) {
	now := time.Now()
	s, err := NewSchedule("s2", "m2", "* * * * *", 1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state := s.fail(now); state != StateArmedBackoff {
		t.Errorf("first failure state = %v, want armed-with-backoff", state)
	}
	if state := s.fail(now); state != StateFailed {
		t.Errorf("second failure state = %v, want failed", state)
	}
}

func TestInvalidCronExpression(t *testing.T) {
	if _, err := NewSchedule("s3", "m3", "not a cron", 1, time.Now()); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestDropTombstonesSchedule(t *testing.T) {
	sc := New(&fakeRefresher{}, nil, 50*time.Millisecond)
	s, err := sc.Add("s4", "m4", "* * * * *", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sc.Drop(s.ID)
	if s.State() != StateTombstoned {
		t.Errorf("state after drop = %v, want tombstoned", s.State())
	}
	if len(sc.List()) != 0 {
		t.Errorf("tombstoned schedule should be excluded from List()")
	}
}
