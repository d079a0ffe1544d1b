package tile

import (
	"sync"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/metrics"
)

// Scheduler runs tasks, typically on background goroutines.
type Scheduler interface {
	Go(task func())
}

// InlineScheduler runs every task on the calling goroutine.
type InlineScheduler struct{}

func (InlineScheduler) Go(task func()) {
	task()
}

// WorkerPool runs tasks in FIFO order on a fixed number of goroutines.
// The queue is unbounded so Go never blocks.
type WorkerPool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool

	wg     sync.WaitGroup
	logger logger.Logger
}

func NewWorkerPool(workers int, l logger.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}

	p := &WorkerPool{logger: l}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	l.Info("worker pool started", "workers", workers)
	return p
}

// Go queues task. After Close the task runs on the caller.
func (p *WorkerPool) Go(task func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		task()
		return
	}
	p.tasks = append(p.tasks, task)
	metrics.WorkerQueueDepth.Set(float64(len(p.tasks)))
	p.mu.Unlock()

	p.cond.Signal()
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.tasks) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks[0] = nil
		p.tasks = p.tasks[1:]
		metrics.WorkerQueueDepth.Set(float64(len(p.tasks)))
		p.mu.Unlock()

		task()
	}
}

// Close lets the workers drain the queue and waits for them to exit.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()

	p.logger.Info("worker pool stopped")
}
