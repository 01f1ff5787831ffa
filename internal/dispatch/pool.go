// Package dispatch runs entry preview tasks on a bounded pool of workers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runger/runsel/internal/entry"
)

// ErrPoolClosed is returned by Start after Close.
var ErrPoolClosed = errors.New("pool closed")

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultTimeout   = 10 * time.Second
)

// Options configure a Pool. Zero values select defaults.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Pool is an entry.Dispatcher backed by a fixed number of goroutines.
//
// Submit never blocks and never completes a task before returning. Tasks that
// cannot be queued, fail, time out or panic are completed with empty output,
// which leaves the entry's previous preview in place.
type Pool struct {
	queue   chan *entry.Task
	workers int
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Stats holds pool counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
	Queued    int
}

var _ entry.Dispatcher = (*Pool)(nil)

// New creates a stopped pool.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pool{
		queue:   make(chan *entry.Task, opts.QueueSize),
		workers: opts.Workers,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// Start launches the workers. Cancelling ctx cancels running scripts; Close
// is still required to release the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for range p.workers {
		g.Go(func() error {
			p.work(gctx)
			return nil
		})
	}

	p.started = true
	p.cancel = cancel
	p.group = g

	p.logger.Debug("preview pool started",
		"workers", p.workers,
		"queue_size", cap(p.queue),
		"timeout", p.timeout,
	)
	return nil
}

// Submit queues task. It implements entry.Dispatcher.
func (p *Pool) Submit(task *entry.Task) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.reject(task, "pool closed")
		return
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
	default:
		p.reject(task, "queue full")
	}
}

// reject completes task on its own goroutine: Submit runs under the entry
// lock that Complete needs.
func (p *Pool) reject(task *entry.Task, reason string) {
	p.rejected.Add(1)
	p.logger.Warn("preview task rejected",
		"task_id", task.ID,
		"entry", task.Entry().Name,
		"reason", reason,
	)
	go task.Complete(nil)
}

// Close stops accepting tasks, cancels running scripts and waits for the
// workers. Queued tasks are completed with empty output.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	if p.cancel != nil {
		p.cancel()
	}
	close(p.queue)
	p.mu.Unlock()

	if !started {
		for task := range p.queue {
			task.Complete(nil)
		}
		return nil
	}

	if err := p.group.Wait(); err != nil {
		return fmt.Errorf("waiting for preview workers: %w", err)
	}
	p.logger.Debug("preview pool stopped", "stats", p.Stats())
	return nil
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Queued:    len(p.queue),
	}
}

func (p *Pool) work(ctx context.Context) {
	for task := range p.queue {
		if ctx.Err() != nil {
			task.Complete(nil)
			continue
		}
		task.Complete(p.run(ctx, task))
	}
}

// run executes one task and returns the output to deliver.
func (p *Pool) run(ctx context.Context, task *entry.Task) (output []any) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("preview script panicked",
				"task_id", task.ID,
				"entry", task.Entry().Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			output = nil
		}
	}()

	out, err := task.Run(ctx)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("preview script failed",
			"task_id", task.ID,
			"entry", task.Entry().Name,
			"error", err,
			"elapsed", time.Since(start),
		)
		return nil
	}

	p.completed.Add(1)
	p.logger.Debug("preview script finished",
		"task_id", task.ID,
		"entry", task.Entry().Name,
		"lines", len(out),
		"elapsed", time.Since(start),
	)
	return out
}
