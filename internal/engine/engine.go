package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// ErrPathNotFound is returned when the scan root does not exist.
var ErrPathNotFound = errors.New("scan path not found")

// progressSteps is how many progress events a full scan emits at most, plus
// the final one.
const progressSteps = 20

type Engine struct {
	inspector   scanner.FileInspector
	workers     int
	excludeFunc func(string) bool
}

func New(inspector scanner.FileInspector) *Engine {
	return &Engine{inspector: inspector, workers: 1}
}

func (e *Engine) SetExcludeFunc(fn func(string) bool) {
	e.excludeFunc = fn
}

// SetWorkers sets how many files are inspected concurrently. With one
// worker files are processed in traversal order and findings keep that
// order; with more, findings order is unspecified.
func (e *Engine) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	e.workers = n
}

func (e *Engine) Workers() int {
	return e.workers
}

// Scan walks root and inspects every regular file, calling onEvent for each
// threat, for progress, and once with EventComplete or EventError at the
// end. Calls to onEvent never overlap. Cancelling ctx stops the scan between
// files; the returned summary then covers the files processed so far and
// the error is nil.
func (e *Engine) Scan(ctx context.Context, root string, onEvent func(Event)) (scanner.Summary, error) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	summary := scanner.Summary{
		ID:        uuid.NewString(),
		Root:      root,
		StartedAt: time.Now(),
	}

	if _, err := os.Stat(root); err != nil {
		err = errors.Wrapf(ErrPathNotFound, "%s: %v", root, err)
		onEvent(Event{Kind: EventError, Message: err.Error()})
		return summary, err
	}

	files, err := collectFiles(ctx, root, e.excludeFunc)
	if err != nil {
		err = errors.Wrapf(ErrPathNotFound, "%s: %v", root, err)
		onEvent(Event{Kind: EventError, Message: err.Error()})
		return summary, err
	}
	interrupted := ctx.Err() != nil

	log.Debug().Str("root", root).Int("files", len(files)).Int("workers", e.workers).Msg("scan started")

	var (
		mu        sync.Mutex
		completed int
		findings  []scanner.Finding
		total     = len(files)
		step      = progressStep(total)
	)

	record := func(f scanner.Finding) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if f.IsThreat() {
			findings = append(findings, f)
			onEvent(Event{Kind: EventThreat, Path: f.Path, Reasons: f.Reasons})
		}
		if completed%step == 0 || completed == total {
			onEvent(Event{Kind: EventProgress, Completed: completed, Total: total})
		}
	}

	start := time.Now()
	if total == 0 {
		onEvent(Event{Kind: EventProgress, Completed: 0, Total: 0})
	} else if e.workers <= 1 {
		for _, path := range files {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			record(e.inspector.Inspect(path))
		}
	} else {
		if !e.inspectParallel(ctx, files, record) {
			interrupted = true
		}
	}

	summary.Elapsed = time.Since(start)
	summary.FilesScanned = completed
	summary.Findings = findings
	summary.Cancelled = interrupted

	log.Debug().
		Str("root", root).
		Int("files", completed).
		Int("threats", len(findings)).
		Dur("elapsed", summary.Elapsed).
		Bool("cancelled", interrupted).
		Msg("scan finished")

	onEvent(Event{
		Kind:          EventComplete,
		FilesScanned:  completed,
		FindingsCount: len(findings),
		Cancelled:     interrupted,
	})
	return summary, nil
}

// inspectParallel runs inspections on at most e.workers goroutines. It
// returns false when cancellation stopped it before every file started.
func (e *Engine) inspectParallel(ctx context.Context, files []string, record func(scanner.Finding)) bool {
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.workers)
	)
	defer wg.Wait()

	for _, path := range files {
		select {
		case sem <- struct{}{}: // acquire
		case <-ctx.Done():
			return false
		}
		if ctx.Err() != nil {
			<-sem
			return false
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()
			record(e.inspector.Inspect(path))
		}(path)
	}
	return true
}

func progressStep(total int) int {
	step := total / progressSteps
	if step < 1 {
		step = 1
	}
	return step
}

// Run is a scan executing on its own goroutine.
type Run struct {
	queue   *eventQueue
	cancel  context.CancelFunc
	done    chan struct{}
	summary scanner.Summary
	err     error
}

// Start launches Scan in the background. Events are delivered in order on
// Run.Events without ever blocking the scan; the channel is closed after
// the final EventComplete or EventError.
func (e *Engine) Start(ctx context.Context, root string) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		queue:  newEventQueue(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		defer cancel()
		defer r.queue.close()
		r.summary, r.err = e.Scan(ctx, root, r.queue.push)
	}()
	return r
}

// Events returns the run's event stream.
func (r *Run) Events() <-chan Event {
	return r.queue.out
}

// Cancel asks the scan to stop before the next file.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed once the scan has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the scan returns and yields its result.
func (r *Run) Wait() (scanner.Summary, error) {
	<-r.done
	return r.summary, r.err
}
