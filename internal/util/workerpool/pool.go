// Package workerpool runs tasks on a bounded set of goroutines.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Submit once Wait has been called.
var ErrClosed = errors.New("worker pool closed")

// Task is a unit of work. Fn receives the pool context, which is cancelled
// after the first failure when the pool is fail-fast.
type Task struct {
	ID string
	Fn func(ctx context.Context) error
}

// Config holds worker pool configuration.
type Config struct {
	Name       string
	MaxWorkers int
	QueueSize  int
	// FailFast cancels the pool context on the first failed task and skips
	// tasks still queued.
	FailFast bool
	Logger   *zap.Logger
}

// Pool executes submitted tasks on MaxWorkers goroutines.
type Pool struct {
	name     string
	failFast bool
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan Task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	errOnce  sync.Once
	firstErr error

	active    int32
	submitted uint64
	completed uint64
	failed    uint64
	skipped   uint64
}

// New starts a pool whose tasks run under ctx.
func New(ctx context.Context, cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.MaxWorkers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		name:     cfg.Name,
		failFast: cfg.FailFast,
		logger:   cfg.Logger,
		ctx:      pctx,
		cancel:   cancel,
		queue:    make(chan Task, cfg.QueueSize),
	}
	for i := 0; i < cfg.MaxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debug("worker pool started",
		zap.String("name", p.name),
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("queue_size", cfg.QueueSize))
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		if p.ctx.Err() != nil {
			atomic.AddUint64(&p.skipped, 1)
			continue
		}
		p.execute(id, task)
	}
}

func (p *Pool) execute(workerID int, task Task) {
	atomic.AddInt32(&p.active, 1)
	defer atomic.AddInt32(&p.active, -1)

	start := time.Now()
	err := p.safeExecute(task)
	duration := time.Since(start)

	if err != nil {
		atomic.AddUint64(&p.failed, 1)
		p.logger.Error("task failed",
			zap.String("pool", p.name),
			zap.Int("worker_id", workerID),
			zap.String("task_id", task.ID),
			zap.Duration("duration", duration),
			zap.Error(err))
		p.errOnce.Do(func() {
			p.firstErr = fmt.Errorf("%s: %w", task.ID, err)
			if p.failFast {
				p.cancel()
			}
		})
		return
	}
	atomic.AddUint64(&p.completed, 1)
	p.logger.Debug("task completed",
		zap.String("pool", p.name),
		zap.String("task_id", task.ID),
		zap.Duration("duration", duration))
}

// safeExecute runs the task, turning a panic into an error.
func (p *Pool) safeExecute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Fn(p.ctx)
}

// Submit queues a task, blocking while the queue is full. It fails once the
// pool context is done or Wait has been called.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
	}
	select {
	case p.queue <- task:
		atomic.AddUint64(&p.submitted, 1)
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Wait closes the pool to new tasks, waits for the workers to drain the
// queue and returns the first task error.
func (p *Pool) Wait() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	p.logger.Debug("worker pool drained",
		zap.String("name", p.name),
		zap.Uint64("completed", atomic.LoadUint64(&p.completed)),
		zap.Uint64("failed", atomic.LoadUint64(&p.failed)),
		zap.Uint64("skipped", atomic.LoadUint64(&p.skipped)))
	return p.firstErr
}

// Stats returns current worker pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:           p.name,
		ActiveWorkers:  int(atomic.LoadInt32(&p.active)),
		QueuedTasks:    len(p.queue),
		SubmittedTasks: atomic.LoadUint64(&p.submitted),
		CompletedTasks: atomic.LoadUint64(&p.completed),
		FailedTasks:    atomic.LoadUint64(&p.failed),
		SkippedTasks:   atomic.LoadUint64(&p.skipped),
	}
}

// Stats represents worker pool statistics.
type Stats struct {
	Name           string
	ActiveWorkers  int
	QueuedTasks    int
	SubmittedTasks uint64
	CompletedTasks uint64
	FailedTasks    uint64
	SkippedTasks   uint64
}

// SuccessRate returns the share of submitted tasks that completed, as a
// percentage.
func (s Stats) SuccessRate() float64 {
	if s.SubmittedTasks == 0 {
		return 100.0
	}
	return float64(s.CompletedTasks) / float64(s.SubmittedTasks) * 100.0
}
