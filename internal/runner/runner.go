// Package runner implements the dispatch runner (C6): the concurrency
// engine that polls the queue, maintains a bounded population of in-flight
// workers, dispatches each Item to the FastCGI pool, and decides
// acknowledge-vs-redeliver.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/glennschmidt/fcgiq/internal/fastcgi"
	"github.com/glennschmidt/fcgiq/internal/fieldmap"
	"github.com/glennschmidt/fcgiq/internal/item"
	"github.com/glennschmidt/fcgiq/internal/queueadapter"
)

const (
	pollWait     = 20 * time.Second
	errorBackoff = 5 * time.Second
)

// Pool is the subset of *fastcgi.Pool the runner depends on.
type Pool interface {
	Dispatch(stdin []byte, overrides map[string]string) (*fastcgi.ScriptOutput, error)
}

// Config configures a Runner.
type Config struct {
	MaxTasks int
	Pool     Pool
	Queue    queueadapter.Adapter
	Mappings fieldmap.FieldMappings
	Logger   *slog.Logger
}

// Runner owns the poll loop and the bounded worker set described in
// spec.md §4.6. Pool, Queue and Mappings are read-only from the workers'
// perspective once Start is called, and are shared by reference across all
// of them.
type Runner struct {
	cfg      Config
	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// Start launches the poll loop and returns immediately with a handle.
func Start(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cfg:    cfg,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.run(ctx)
	return r
}

// Stop is idempotent: it trips the cancellation signal and blocks until the
// poll loop — and every in-flight worker — has finished.
func (r *Runner) Stop() {
	r.cancel()
	<-r.done
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	sem := make(chan struct{}, r.cfg.MaxTasks)

poll:
	for {
		if ctx.Err() != nil {
			break poll
		}

		// Backpressure (spec.md §4.6.2 step 3): while max_tasks workers are
		// already in flight, the *next* receive is deferred until one
		// finishes. Reserving a semaphore slot before receiving — rather
		// than after spawning — is what defers the receive call itself.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break poll
		}

		it, err := r.cfg.Queue.Receive(ctx, pollWait)
		if err != nil {
			<-sem // did not spawn a worker; release the reservation
			if ctx.Err() != nil {
				break poll
			}
			r.cfg.Logger.Error("error receiving from queue, retrying", "error", err)
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				break poll
			}
			continue poll
		}

		if ctx.Err() != nil {
			<-sem
			break poll
		}

		if it == nil {
			<-sem // empty poll; release the reservation
			continue poll
		}

		r.inFlight.Add(1)
		r.wg.Add(1)
		go func(it *item.Item) {
			defer r.wg.Done()
			defer r.inFlight.Add(-1)
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					r.cfg.Logger.Error(fmt.Sprintf("[task %s] task panicked, item not acknowledged", it.ID), "panic", rec)
				}
			}()
			// Detach from the runner's cancellation so a worker still in
			// flight at Stop can acknowledge its item.
			r.process(context.WithoutCancel(ctx), it)
		}(it)
	}

	r.drain()
}

// drain waits for every in-flight worker to finish. No new items are
// pulled once the poll loop has broken out to here.
func (r *Runner) drain() {
	if n := r.inFlight.Load(); n > 0 {
		r.cfg.Logger.Info(fmt.Sprintf("Waiting for %d tasks to finish...", n))
		r.wg.Wait()
		r.cfg.Logger.Info("All tasks complete.")
	}
}

// process runs one worker iteration (spec.md §4.6.3) for a single Item.
// Workers are never forcibly cancelled: they run to completion so either
// the item is acknowledged on success, or the queue's visibility timeout
// is allowed to expire cleanly on failure.
func (r *Runner) process(ctx context.Context, it *item.Item) {
	overrides := fieldmap.Resolve(it, r.cfg.Mappings)

	out, err := r.cfg.Pool.Dispatch(it.Data, overrides)
	if err != nil {
		r.cfg.Logger.Error(fmt.Sprintf("[task %s] task failed", it.ID), "error", err)
		return
	}

	if len(out.Stderr) > 0 && utf8.Valid(out.Stderr) {
		r.cfg.Logger.Warn(fmt.Sprintf("[task %s] %s", it.ID, out.Stderr))
	}
	if utf8.Valid(out.Stdout) {
		r.cfg.Logger.Debug(fmt.Sprintf("[task %s] stdout: %s", it.ID, out.Stdout))
	}

	resp, err := fastcgi.ParseCGIResponse(out.Stdout)
	if err != nil {
		r.cfg.Logger.Error(fmt.Sprintf("[task %s] task failed", it.ID), "error", err)
		return
	}

	if resp.Status < 200 || resp.Status >= 300 {
		r.cfg.Logger.Error(fmt.Sprintf("[task %s] task failed: script returned status code %d", it.ID, resp.Status))
		return
	}

	if utf8.Valid(resp.Body) {
		r.cfg.Logger.Info(fmt.Sprintf("[task %s] task complete: %s", it.ID, resp.Body))
	} else {
		r.cfg.Logger.Info(fmt.Sprintf("[task %s] task complete", it.ID))
	}

	if err := r.cfg.Queue.Acknowledge(ctx, it); err != nil {
		r.cfg.Logger.Error(fmt.Sprintf("[task %s] failed to acknowledge task", it.ID), "error", err)
	}
}
