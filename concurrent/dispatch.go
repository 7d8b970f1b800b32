// Package concurrent runs a function over a batch of inputs on a bounded worker
// pool and returns the results in input order.
//
// A pool is created for every call and torn down when it returns. Cancellation is
// cooperative: on abort or timeout the context handed to tasks is cancelled and the
// dispatcher stops waiting, but a task that ignores its context keeps running until
// it returns on its own.
package concurrent

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aschepis/backscratcher/galaxy/metrics"
)

// Mode selects the kind of work a batch performs. It only changes the default
// pool size; all tasks run on goroutines.
type Mode int

const (
	// ModeIO is for tasks that mostly wait on the network or disk.
	ModeIO Mode = iota
	// ModeCPU is for compute-bound tasks.
	ModeCPU
)

// String returns the mode's label.
func (m Mode) String() string {
	switch m {
	case ModeCPU:
		return "cpu"
	default:
		return "io"
	}
}

// ParseMode parses a mode label. An empty label is ModeIO.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "io", "thread", "":
		return ModeIO, nil
	case "cpu", "process":
		return ModeCPU, nil
	default:
		return ModeIO, fmt.Errorf("unknown dispatch mode %q", s)
	}
}

// Policy decides what a failing task does to the rest of the batch.
type Policy int

const (
	// PolicyAbort stops the batch at the first failure and returns it as a *TaskError.
	PolicyAbort Policy = iota
	// PolicyCollect records each failure in its slot and lets the batch finish.
	PolicyCollect
)

// Func is the work applied to each input.
type Func[T, R any] func(ctx context.Context, in T) (R, error)

// Options configures one Dispatch call.
type Options struct {
	// MaxWorkers bounds the pool. Zero or less picks a default for Mode.
	MaxWorkers int
	Mode       Mode
	Policy     Policy

	// Timeout bounds the whole batch. Zero means no bound.
	Timeout time.Duration

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Outcome is the result of one task. Err is a *TaskError when the task failed,
// timed out or never ran.
type Outcome[R any] struct {
	Value R
	Err   error
	Done  bool
}

// DefaultWorkers returns the pool size used when Options.MaxWorkers is unset.
func DefaultWorkers(mode Mode) int {
	if mode == ModeCPU {
		return runtime.NumCPU()
	}
	return min(32, runtime.NumCPU()+4)
}

type completion[R any] struct {
	index int
	value R
	err   error
}

// Dispatch applies fn to every input and returns one outcome per input, aligned
// by index regardless of completion order.
//
// With PolicyAbort the first failure is returned as a *TaskError and the outcomes
// collected up to that point are returned alongside it. With PolicyCollect the
// error is nil unless ctx is cancelled or the timeout expires; failures live in
// their outcome slots.
func Dispatch[T, R any](ctx context.Context, fn Func[T, R], inputs []T, opts Options) ([]Outcome[R], error) {
	outcomes := make([]Outcome[R], len(inputs))
	if len(inputs) == 0 {
		return outcomes, nil
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = DefaultWorkers(opts.Mode)
	}
	workers = min(workers, len(inputs))

	batchID := uuid.NewString()
	log := opts.Logger.With().
		Str("component", "dispatch").
		Str("batch_id", batchID).
		Str("mode", opts.Mode.String()).
		Logger()
	mode := opts.Mode.String()
	start := time.Now()
	defer func() { opts.Metrics.ObserveDispatch(mode, time.Since(start)) }()

	log.Debug().Int("tasks", len(inputs)).Int("workers", workers).Msg("Dispatching batch")

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so workers never block on a collector that has stopped listening
	done := make(chan completion[R], len(inputs))

	g, gctx := errgroup.WithContext(taskCtx)
	g.SetLimit(workers)
	go func() {
		for i, in := range inputs {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				value, err := runTask(gctx, fn, in)
				done <- completion[R]{index: i, value: value, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	pending := len(inputs)
	var firstErr error
	record := func(c completion[R]) {
		pending--
		if c.err == nil {
			outcomes[c.index] = Outcome[R]{Value: c.value, Done: true}
			opts.Metrics.ObserveTask(mode, metrics.OutcomeSuccess)
			return
		}
		taskErr := &TaskError{Index: c.index, Err: c.err}
		outcomes[c.index] = Outcome[R]{Err: taskErr, Done: true}
		opts.Metrics.ObserveTask(mode, metrics.OutcomeError)
		log.Debug().Err(c.err).Int("index", c.index).Msg("Task failed")
		if firstErr == nil {
			firstErr = taskErr
		}
	}
	// drain records completions that are already buffered without waiting for more
	drain := func() {
		for {
			select {
			case c := <-done:
				record(c)
			default:
				return
			}
		}
	}
	stop := func(cause error, outcome string) error {
		cancel()
		drain()
		if opts.Policy == PolicyAbort && firstErr != nil {
			return firstErr
		}
		if pending == 0 {
			return nil
		}
		n := markUnfinished(outcomes, cause)
		for range n {
			opts.Metrics.ObserveTask(mode, outcome)
		}
		log.Warn().Err(cause).Int("unfinished", n).Msg("Batch stopped before all tasks finished")
		return fmt.Errorf("%d of %d tasks unfinished: %w", n, len(inputs), cause)
	}

	for pending > 0 {
		select {
		case c := <-done:
			record(c)
			if opts.Policy == PolicyAbort && firstErr != nil {
				cancel()
				log.Warn().Err(firstErr).Msg("Aborting batch on task failure")
				return outcomes, firstErr
			}

		case <-timeout:
			if err := stop(ErrTimeout, metrics.OutcomeTimeout); err != nil {
				return outcomes, err
			}

		case <-ctx.Done():
			if err := stop(context.Cause(ctx), metrics.OutcomeCanceled); err != nil {
				return outcomes, err
			}
		}
	}

	log.Debug().Dur("duration", time.Since(start)).Msg("Batch completed")
	return outcomes, nil
}

// Map is Dispatch with PolicyAbort that returns plain values.
func Map[T, R any](ctx context.Context, fn Func[T, R], inputs []T, opts Options) ([]R, error) {
	opts.Policy = PolicyAbort
	outcomes, err := Dispatch(ctx, fn, inputs, opts)
	if err != nil {
		return nil, err
	}
	return Values(outcomes), nil
}

// Values returns the value of every outcome, zero for failed slots.
func Values[R any](outcomes []Outcome[R]) []R {
	values := make([]R, len(outcomes))
	for i, o := range outcomes {
		values[i] = o.Value
	}
	return values
}

// Errors returns the errors of the failed outcomes, in index order.
func Errors[R any](outcomes []Outcome[R]) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

func markUnfinished[R any](outcomes []Outcome[R], cause error) int {
	n := 0
	for i := range outcomes {
		if !outcomes[i].Done {
			outcomes[i].Err = &TaskError{Index: i, Err: cause}
			n++
		}
	}
	return n
}

func runTask[T, R any](ctx context.Context, fn Func[T, R], in T) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return fn(ctx, in)
}
