package concurrent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/galaxy/metrics"
)

type greetArgs struct {
	Name  string
	Shout bool
}

func greet(ctx context.Context, in greetArgs) (string, error) {
	msg := "hello " + in.Name
	if in.Shout {
		msg = strings.ToUpper(msg)
	}
	return msg, nil
}

func TestDispatch_PreservesInputOrder(t *testing.T) {
	inputs := make([]int, 50)
	for i := range inputs {
		inputs[i] = i
	}

	// Random sleeps scramble completion order
	square := func(ctx context.Context, n int) (int, error) {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
		return n * n, nil
	}

	for _, workers := range []int{1, 4, 16, 100} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			outcomes, err := Dispatch(context.Background(), square, inputs, Options{MaxWorkers: workers, Logger: zerolog.Nop()})
			if err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if len(outcomes) != len(inputs) {
				t.Fatalf("Expected %d outcomes, got %d", len(inputs), len(outcomes))
			}
			for i, o := range outcomes {
				if o.Err != nil {
					t.Errorf("Outcome %d: unexpected error %v", i, o.Err)
				}
				if o.Value != i*i {
					t.Errorf("Outcome %d: expected %d, got %d", i, i*i, o.Value)
				}
			}
		})
	}
}

func TestDispatch_StructArgs(t *testing.T) {
	inputs := []greetArgs{{Name: "ada"}, {Name: "bob", Shout: true}}
	got, err := Map(context.Background(), greet, inputs, Options{Mode: ModeCPU})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	want := []string{"hello ada", "HELLO BOB"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Result %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDispatch_EmptyInput(t *testing.T) {
	var called atomic.Bool
	fn := func(ctx context.Context, n int) (int, error) {
		called.Store(true)
		return n, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		outcomes, err := Dispatch(context.Background(), fn, nil, Options{})
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if len(outcomes) != 0 {
			t.Errorf("Expected no outcomes, got %d", len(outcomes))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch on empty input did not return")
	}
	if called.Load() {
		t.Error("Expected fn not to be called")
	}
}

var errBadInput = errors.New("bad input")

func failOnTwo(ctx context.Context, n int) (int, error) {
	if n == 2 {
		return 0, errBadInput
	}
	return n * 10, nil
}

func TestDispatch_AbortPolicy(t *testing.T) {
	inputs := []int{0, 1, 2, 3, 4}
	_, err := Dispatch(context.Background(), failOnTwo, inputs, Options{MaxWorkers: 2, Policy: PolicyAbort})
	if err == nil {
		t.Fatal("Expected error")
	}

	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("Expected *TaskError, got %T", err)
	}
	if taskErr.Index != 2 {
		t.Errorf("Expected failing index 2, got %d", taskErr.Index)
	}
	if !errors.Is(err, errBadInput) {
		t.Errorf("Expected error to wrap the original cause, got %v", err)
	}
	if FailedIndex(err) != 2 {
		t.Errorf("Expected FailedIndex 2, got %d", FailedIndex(err))
	}
	if !strings.Contains(err.Error(), "bad input") {
		t.Errorf("Expected original message in error, got %q", err.Error())
	}
}

func TestDispatch_CollectPolicy(t *testing.T) {
	inputs := []int{0, 1, 2, 3, 4}
	outcomes, err := Dispatch(context.Background(), failOnTwo, inputs, Options{MaxWorkers: 3, Policy: PolicyCollect})
	if err != nil {
		t.Fatalf("Expected nil error in collect mode, got %v", err)
	}
	if len(outcomes) != 5 {
		t.Fatalf("Expected 5 outcomes, got %d", len(outcomes))
	}

	for i, o := range outcomes {
		if i == 2 {
			if !errors.Is(o.Err, errBadInput) {
				t.Errorf("Expected slot 2 to hold the captured error, got %v", o.Err)
			}
			if FailedIndex(o.Err) != 2 {
				t.Errorf("Expected slot error index 2, got %d", FailedIndex(o.Err))
			}
			continue
		}
		if o.Err != nil || o.Value != i*10 {
			t.Errorf("Slot %d: unexpected outcome %+v", i, o)
		}
	}

	if errs := Errors(outcomes); len(errs) != 1 {
		t.Errorf("Expected 1 error, got %d", len(errs))
	}
}

func TestDispatch_AbortCancelsSiblings(t *testing.T) {
	var cancelled atomic.Int32
	fn := func(ctx context.Context, n int) (int, error) {
		if n == 0 {
			return 0, errBadInput
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return 0, ctx.Err()
		case <-time.After(5 * time.Second):
			return n, nil
		}
	}

	start := time.Now()
	_, err := Dispatch(context.Background(), fn, []int{0, 1, 2}, Options{MaxWorkers: 3})
	if FailedIndex(err) != 0 {
		t.Fatalf("Expected failure at index 0, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected abort to return without waiting for siblings")
	}
}

func TestDispatch_Timeout(t *testing.T) {
	fn := func(ctx context.Context, n int) (int, error) {
		if n%2 == 0 {
			return n, nil
		}
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return 0, ctx.Err()
	}

	inputs := []int{0, 1, 2, 3}
	outcomes, err := Dispatch(context.Background(), fn, inputs, Options{
		MaxWorkers: 4,
		Policy:     PolicyCollect,
		Timeout:    100 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("Expected timeout error to wrap context.DeadlineExceeded")
	}

	for _, i := range []int{0, 2} {
		if outcomes[i].Err != nil || outcomes[i].Value != i {
			t.Errorf("Slot %d: expected completed value, got %+v", i, outcomes[i])
		}
	}
	for _, i := range []int{1, 3} {
		if !errors.Is(outcomes[i].Err, ErrTimeout) {
			t.Errorf("Slot %d: expected timeout error, got %v", i, outcomes[i].Err)
		}
		if FailedIndex(outcomes[i].Err) != i {
			t.Errorf("Slot %d: expected index %d in error, got %d", i, i, FailedIndex(outcomes[i].Err))
		}
	}
}

func TestDispatch_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 10)
	fn := func(ctx context.Context, n int) (int, error) {
		started <- struct{}{}
		<-ctx.Done()
		return 0, ctx.Err()
	}

	go func() {
		<-started
		cancel()
	}()

	outcomes, err := Dispatch(ctx, fn, []int{1, 2, 3}, Options{MaxWorkers: 1, Policy: PolicyCollect})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Err == nil {
			t.Errorf("Slot %d: expected an error after cancellation", i)
		}
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	fn := func(ctx context.Context, n int) (int, error) {
		if n == 1 {
			panic("kaboom")
		}
		return n, nil
	}
	outcomes, err := Dispatch(context.Background(), fn, []int{0, 1, 2}, Options{Policy: PolicyCollect})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !errors.Is(outcomes[1].Err, ErrTaskPanic) {
		t.Errorf("Expected ErrTaskPanic in slot 1, got %v", outcomes[1].Err)
	}
}

func TestDispatch_RespectsWorkerLimit(t *testing.T) {
	var running, peak atomic.Int32
	fn := func(ctx context.Context, n int) (int, error) {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return n, nil
	}

	inputs := make([]int, 20)
	if _, err := Map(context.Background(), fn, inputs, Options{MaxWorkers: 3}); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if peak.Load() > 3 {
		t.Errorf("Expected at most 3 concurrent tasks, saw %d", peak.Load())
	}
}

func TestDispatch_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	_, _ = Dispatch(context.Background(), failOnTwo, []int{0, 1, 2, 3}, Options{Policy: PolicyCollect, Metrics: m})

	if got := testutil.ToFloat64(m.DispatchTasks.WithLabelValues("io", metrics.OutcomeSuccess)); got != 3 {
		t.Errorf("Expected 3 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.DispatchTasks.WithLabelValues("io", metrics.OutcomeError)); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestDefaultWorkers(t *testing.T) {
	if DefaultWorkers(ModeCPU) < 1 {
		t.Error("Expected at least one CPU worker")
	}
	if n := DefaultWorkers(ModeIO); n < 1 || n > 32 {
		t.Errorf("Expected IO workers in [1, 32], got %d", n)
	}
	if ModeCPU.String() != "cpu" || ModeIO.String() != "io" {
		t.Error("Unexpected mode labels")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeIO, false},
		{"io", ModeIO, false},
		{"thread", ModeIO, false},
		{"CPU", ModeCPU, false},
		{"process", ModeCPU, false},
		{"gpu", ModeIO, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
