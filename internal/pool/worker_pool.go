package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is a unit of background work. The context is the one the pool was
// started with.
type Task func(ctx context.Context)

// WorkerPool runs tasks on a fixed number of goroutines fed by a bounded
// queue. Tasks queued before Stop are drained; a panicking task is logged
// and does not kill its worker.
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan Task
	log        *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a pool with maxWorkers goroutines and room for
// queueSize waiting tasks.
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan Task, queueSize),
		log:        log,
	}
}

// Start launches the workers.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// TrySubmit enqueues task without blocking. It returns false when the queue
// is full or the pool is stopped.
func (p *WorkerPool) TrySubmit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Pending is the number of queued tasks not yet picked up.
func (p *WorkerPool) Pending() int {
	return len(p.taskQueue)
}

// Stop refuses new tasks, lets the workers drain the queue and waits.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for task := range p.taskQueue {
		p.run(ctx, task)
	}
}

func (p *WorkerPool) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("background task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}
