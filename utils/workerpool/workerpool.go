package workerpool

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrStopped   = errors.New("worker pool stopped")
	ErrQueueFull = errors.New("worker pool queue is full")
)

// Pool 通用协程池. Stop 会等队列中已有的任务执行完
type Pool struct {
	jobs    chan func()
	workers int
	log     *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func New(workers, queueSize int, log *zap.Logger) *Pool {
	return &Pool{
		jobs:    make(chan func(), max(queueSize, 0)),
		workers: max(workers, 1),
		log:     log,
	}
}

// Start 启动协程池
func (p *Pool) Start() {
	for i := range p.workers {
		p.wg.Go(func() {
			for job := range p.jobs {
				p.run(i, job)
			}
		})
	}
	p.log.Debug("worker pool started", zap.Int("workers", p.workers))
}

// 单个任务 panic 不影响 worker
func (p *Pool) run(workerID int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker panic", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()
	job()
}

// Submit 提交任务, 队列已满时阻塞直到有空位
func (p *Pool) Submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	p.jobs <- job
	return nil
}

// TrySubmit 队列已满时立即返回 ErrQueueFull
func (p *Pool) TrySubmit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop 停止接收新任务并等待已排队的任务完成, 可重复调用
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
