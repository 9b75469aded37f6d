package scheduler

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var quiet = zerolog.New(io.Discard)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(time.Second, quiet)
	var n atomic.Int32
	if err := s.Register(&Job{
		Name:     "tick",
		Schedule: Every(10 * time.Millisecond),
		Handler: func(context.Context) error {
			n.Add(1)
			return nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	s.Start(context.Background())
	waitFor(t, func() bool { return n.Load() >= 3 })
	s.Stop()

	st := s.Jobs()
	if len(st) != 1 || st[0].Name != "tick" || st[0].Runs < 3 {
		t.Errorf("status = %+v", st)
	}
	if st[0].Failures != 0 || st[0].LastError != "" {
		t.Errorf("unexpected failure: %+v", st[0])
	}
}

func TestSchedulerRunOnStart(t *testing.T) {
	s := New(time.Second, quiet)
	var n atomic.Int32
	_ = s.Register(&Job{
		Name:       "boot",
		Schedule:   Every(time.Hour),
		RunOnStart: true,
		Handler: func(context.Context) error {
			n.Add(1)
			return nil
		},
	})

	s.Start(context.Background())
	waitFor(t, func() bool { return n.Load() == 1 })
	s.Stop()
}

func TestSchedulerFailureBoundary(t *testing.T) {
	s := New(time.Second, quiet)
	var failing, panicking atomic.Int32

	_ = s.Register(&Job{
		Name:     "failing",
		Schedule: Every(10 * time.Millisecond),
		Handler: func(context.Context) error {
			failing.Add(1)
			return errors.New("upstream unavailable")
		},
	})
	_ = s.Register(&Job{
		Name:     "panicking",
		Schedule: Every(10 * time.Millisecond),
		Handler: func(context.Context) error {
			panicking.Add(1)
			panic("boom")
		},
	})

	s.Start(context.Background())
	waitFor(t, func() bool { return failing.Load() >= 2 && panicking.Load() >= 2 })
	s.Stop()

	for _, st := range s.Jobs() {
		if st.Failures < 2 || st.Failures != st.Runs {
			t.Errorf("%s: runs=%d failures=%d", st.Name, st.Runs, st.Failures)
		}
		if st.Name == "panicking" && !strings.Contains(st.LastError, "panic: boom") {
			t.Errorf("last error = %q", st.LastError)
		}
	}
}

func TestSchedulerJobTimeout(t *testing.T) {
	s := New(20*time.Millisecond, quiet)
	errs := make(chan error, 10)
	_ = s.Register(&Job{
		Name:       "slow",
		Schedule:   Every(time.Hour),
		RunOnStart: true,
		Handler: func(ctx context.Context) error {
			<-ctx.Done()
			errs <- ctx.Err()
			return ctx.Err()
		},
	})

	s.Start(context.Background())
	select {
	case err := <-errs:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled by timeout")
	}
	s.Stop()
}

func TestSchedulerStopCancelsJobs(t *testing.T) {
	s := New(time.Minute, quiet)
	started := make(chan struct{})
	_ = s.Register(&Job{
		Name:       "blocking",
		Schedule:   Every(time.Hour),
		RunOnStart: true,
		Handler: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	})

	s.Start(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestRegisterValidation(t *testing.T) {
	s := New(0, quiet)
	tests := []struct {
		name string
		job  *Job
	}{
		{"no handler", &Job{Name: "a", Schedule: Every(time.Second)}},
		{"zero interval", &Job{Name: "b", Handler: func(context.Context) error { return nil }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Register(tt.job); err == nil {
				t.Error("expected error")
			}
		})
	}

	s.Start(context.Background())
	defer s.Stop()
	if err := s.Register(&Job{Name: "late", Schedule: Every(time.Second), Handler: func(context.Context) error { return nil }}); err == nil {
		t.Error("expected error registering after start")
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	s := New(time.Second, quiet)
	var running, peak, runs atomic.Int32
	_ = s.Register(&Job{
		Name:       "slow",
		Schedule:   Every(5 * time.Millisecond),
		RunOnStart: true,
		Handler: func(context.Context) error {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			runs.Add(1)
			time.Sleep(40 * time.Millisecond)
			return nil
		},
	})

	s.Start(context.Background())
	waitFor(t, func() bool { return runs.Load() >= 3 })
	s.Stop()

	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrent runs = %d, want 1", p)
	}
}

func TestScheduleNext(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		every time.Duration
		want  time.Time
	}{
		{time.Minute, now.Add(time.Minute)},
		{10 * time.Minute, now.Add(10 * time.Minute)},
		{250 * time.Millisecond, now.Add(250 * time.Millisecond)},
	}
	for _, tt := range tests {
		if got := Every(tt.every).Next(now); !got.Equal(tt.want) {
			t.Errorf("Every(%s).Next = %v, want %v", tt.every, got, tt.want)
		}
	}
}
