package scheduler

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"RSIPipeline/internal/model"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	ran   chan struct{}
	block chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, symbols []string) (*model.RunSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbols)
	f.mu.Unlock()
	if f.ran != nil {
		select {
		case f.ran <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.RunSummary{RunID: "run-1", Succeeded: symbols}, nil
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, nil)

	if err := s.Register(""); err != nil {
		t.Errorf("Register(default) error: %v", err)
	}
	if err := s.Register("0 0 22 * * 1-5"); err != nil {
		t.Errorf("Register() error: %v", err)
	}
	if err := s.Register("not a cron spec"); err == nil {
		t.Error("Register() expected error for invalid spec")
	}
	if got := len(s.Cron.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(context.Background(), runner, []string{"AAPL", "MSFT"})

	summary, err := s.RunNow()
	if err != nil {
		t.Fatalf("RunNow() error: %v", err)
	}
	if !reflect.DeepEqual(runner.calls, [][]string{{"AAPL", "MSFT"}}) {
		t.Errorf("runner calls = %v", runner.calls)
	}
	if s.LastSummary() != summary {
		t.Error("LastSummary() should return the latest summary")
	}

	runner.err = errors.New("store unavailable")
	if _, err := s.RunNow(); err == nil {
		t.Error("RunNow() expected error")
	}
	if s.LastSummary() != summary {
		t.Error("a failed run should not replace the last summary")
	}
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{ran: make(chan struct{}, 1), block: make(chan struct{})}
	s := NewScheduler(context.Background(), runner, []string{"AAPL"})

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow()
		done <- err
	}()
	<-runner.ran

	if _, err := s.RunNow(); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("RunNow() during a run error = %v, want ErrRunInProgress", err)
	}
	s.runTask()

	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("first RunNow() error: %v", err)
	}
	runner.mu.Lock()
	calls := len(runner.calls)
	runner.mu.Unlock()
	if calls != 1 {
		t.Errorf("runner calls = %d, want 1", calls)
	}

	runner.block = nil
	if _, err := s.RunNow(); err != nil {
		t.Errorf("RunNow() after the run finished error: %v", err)
	}
}

func TestScheduler_TriggersOnSchedule(t *testing.T) {
	runner := &fakeRunner{ran: make(chan struct{}, 1)}
	s := NewScheduler(context.Background(), runner, nil)
	if err := s.Register("@every 1s"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-runner.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled run did not fire")
	}
}
