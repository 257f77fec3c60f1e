// Package batch runs the classification pipeline over a list of inputs on a
// background goroutine and reports progress as typed events.
//
// An Executor runs at most one batch at a time. Each Run owns a fresh
// cancellable context, a scratch directory that is removed when the run ends,
// and an event channel that is closed after exactly one terminal event.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fpang/wildlife-vision/internal/aggregate"
	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/fpang/wildlife-vision/internal/inference"
	"github.com/fpang/wildlife-vision/internal/metrics"
	"github.com/fpang/wildlife-vision/internal/resolver"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Classifier classifies one image. *inference.Adapter implements it.
type Classifier interface {
	Classify(ctx context.Context, path string) (inference.Outcome, error)
}

// Options configures an Executor.
type Options struct {
	// ScratchRoot is where per-run scratch directories are created.
	// Defaults to os.TempDir().
	ScratchRoot string

	// MetricsNamespace names the run summary metrics. Defaults to "WildlifeVision".
	MetricsNamespace string
}

// Executor starts batch runs one at a time.
type Executor struct {
	classifier Classifier
	opts       Options

	mu      sync.Mutex
	current *Run
}

// New returns an Executor that classifies images with classifier.
func New(classifier Classifier, opts Options) *Executor {
	if opts.ScratchRoot == "" {
		opts.ScratchRoot = os.TempDir()
	}
	if opts.MetricsNamespace == "" {
		opts.MetricsNamespace = "WildlifeVision"
	}
	return &Executor{classifier: classifier, opts: opts}
}

// Run is one batch run.
type Run struct {
	ID     string
	Inputs []string

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   State
	outcome Outcome
}

// Start launches a run over inputs. The run's context is derived from ctx,
// so cancelling ctx also cancels the run. Start returns ErrBusy while a
// previous run is still active.
func (e *Executor) Start(ctx context.Context, inputs []string) (*Run, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && !e.current.State().Terminal() {
		return nil, ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:     uuid.New().String(),
		Inputs: append([]string(nil), inputs...),
		events: make(chan Event, len(inputs)+1),
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateRunning,
	}
	e.current = run

	log.Info().
		Str("run_id", run.ID).
		Int("inputs", len(inputs)).
		Msg("Batch run started")

	go e.work(runCtx, run)

	return run, nil
}

// Events returns the run's event channel. It is closed after the terminal event.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancel requests cancellation. The worker stops at the next image boundary.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the worker has exited and the scratch directory is gone.
func (r *Run) Wait() Outcome {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Stop cancels the run and waits for it to finish.
func (r *Run) Stop() Outcome {
	r.Cancel()
	return r.Wait()
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (e *Executor) work(ctx context.Context, run *Run) {
	start := time.Now()
	scratch := filepath.Join(e.opts.ScratchRoot, "run-"+run.ID)

	outcome := e.process(ctx, run, scratch)
	outcome.Duration = time.Since(start)

	if err := os.RemoveAll(scratch); err != nil {
		log.Warn().Err(err).Str("dir", scratch).Msg("Failed to remove scratch directory")
	}

	metrics.New(e.opts.MetricsNamespace).
		Dimension("Operation", "classify").
		Dimension("Outcome", outcome.State.String()).
		Metric("Inputs", float64(len(run.Inputs)), metrics.UnitCount).
		Metric("InputsProcessed", float64(outcome.Processed), metrics.UnitCount).
		Metric("Images", float64(outcome.Images), metrics.UnitCount).
		Metric("ImagesSkipped", float64(outcome.Skipped), metrics.UnitCount).
		Metric("DurationMs", float64(outcome.Duration.Milliseconds()), metrics.UnitMilliseconds).
		Property("run_id", run.ID).
		Flush()

	terminal := Event{RunID: run.ID, Processed: outcome.Processed, Total: len(run.Inputs)}
	switch outcome.State {
	case StateCompleted:
		terminal.Kind = EventCompleted
		terminal.Result = outcome.Result
	case StateCancelled:
		terminal.Kind = EventCancelled
	default:
		terminal.Kind = EventFailed
		terminal.Err = outcome.Err
	}

	run.mu.Lock()
	run.state = outcome.State
	run.outcome = outcome
	run.mu.Unlock()

	run.events <- terminal
	close(run.events)
	run.cancel()
	close(run.done)

	event := log.Info()
	if outcome.State == StateFailed {
		event = log.Error().Err(outcome.Err)
	}
	event.
		Str("run_id", run.ID).
		Str("state", outcome.State.String()).
		Int("processed", outcome.Processed).
		Int("images", outcome.Images).
		Int("skipped", outcome.Skipped).
		Dur("duration", outcome.Duration).
		Msg("Batch run finished")
}

// process runs the pipeline and returns the terminal outcome. It never
// publishes terminal events itself.
func (e *Executor) process(ctx context.Context, run *Run, scratch string) Outcome {
	var out Outcome

	fail := func(err error) Outcome {
		if ctx.Err() != nil {
			out.State = StateCancelled
			return out
		}
		out.State = StateFailed
		out.Err = err
		return out
	}

	for _, in := range run.Inputs {
		if kind := filehandler.KindOf(in); kind != filehandler.KindImage && kind != filehandler.KindArchive {
			return fail(fmt.Errorf("%w: %s", ErrUnsupportedInput, filepath.Base(in)))
		}
	}

	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create scratch directory: %w", err))
	}

	res := resolver.New(scratch)
	tally := aggregate.NewTally()

	for i, in := range run.Inputs {
		if ctx.Err() != nil {
			out.State = StateCancelled
			return out
		}

		resolved, err := res.Resolve(ctx, in)
		if err != nil {
			return fail(err)
		}
		if resolved.Kind == filehandler.KindUnsupported {
			return fail(fmt.Errorf("%w: %s", ErrUnsupportedInput, filepath.Base(in)))
		}

		partial := aggregate.NewResult()
		for _, img := range resolved.Images {
			o, err := e.classifier.Classify(ctx, img)
			if err != nil {
				if errors.Is(err, inference.ErrCancelled) || ctx.Err() != nil {
					out.State = StateCancelled
					return out
				}
				return fail(err)
			}
			out.Images++
			if o.Skipped {
				out.Skipped++
				continue
			}
			partial = aggregate.Combine(partial, o.Result())
		}

		if err := tally.Add(partial); err != nil {
			return fail(err)
		}
		out.Processed = i + 1

		run.events <- Event{
			Kind:      EventProgress,
			RunID:     run.ID,
			Input:     in,
			Processed: i + 1,
			Total:     len(run.Inputs),
			Snapshot:  tally.Snapshot(),
		}
	}

	if ctx.Err() != nil {
		out.State = StateCancelled
		return out
	}

	out.State = StateCompleted
	out.Result = tally.Snapshot()
	return out
}
