package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nextspay/pkg/metrics"

	"go.uber.org/zap"
)

// ErrQueueFull 队列已满，任务被丢弃
var ErrQueueFull = errors.New("dispatcher queue full")

// ErrStopped 派发器已停止
var ErrStopped = errors.New("dispatcher stopped")

// Task 异步任务
type Task struct {
	Name     string
	Run      func(ctx context.Context) error
	MaxRetry int // 失败后的最大重试次数，0 表示不重试
	retry    int
}

// Dispatcher 有界的异步任务派发器，请求链路只负责入队
type Dispatcher struct {
	queue      chan Task
	workerNum  int
	timeout    time.Duration
	retryDelay time.Duration
	log        *zap.Logger
	metrics    *metrics.MetricsCollector

	// OnDeadLetter 任务最终失败时回调
	OnDeadLetter func(task Task, err error)

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// Options 派发器配置
type Options struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration // 单个任务的执行超时
	RetryDelay time.Duration
}

func NewDispatcher(opts Options, log *zap.Logger, m *metrics.MetricsCollector) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		queue:      make(chan Task, opts.QueueSize),
		workerNum:  opts.Workers,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		log:        log,
		metrics:    m,
	}
}

// Start 启动 worker
func (d *Dispatcher) Start() {
	for i := 0; i < d.workerNum; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.workerNum), zap.Int("queue_size", cap(d.queue)))
}

// Submit 非阻塞入队
func (d *Dispatcher) Submit(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- task:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		d.log.Warn("dispatcher queue full, dropping task", zap.String("task", task.Name))
		d.deadLetter(task, ErrQueueFull)
		return ErrQueueFull
	}
}

// Stop 停止接收任务并等待队列排空
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len 当前排队任务数
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for task := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		for {
			err := d.process(task)
			if err == nil {
				break
			}
			d.log.Warn("task failed",
				zap.Int("worker", id),
				zap.String("task", task.Name),
				zap.Int("attempt", task.retry+1),
				zap.Error(err),
			)

			// 如果未达到最大重试次数，延迟后重试
			if task.retry >= task.MaxRetry {
				d.deadLetter(task, err)
				break
			}
			task.retry++
			time.Sleep(time.Duration(task.retry) * d.retryDelay)
		}
	}
}

func (d *Dispatcher) process(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return task.Run(ctx)
}

func (d *Dispatcher) deadLetter(task Task, err error) {
	d.log.Error("task failed permanently", zap.String("task", task.Name), zap.Int("retries", task.retry), zap.Error(err))
	if d.OnDeadLetter != nil {
		d.OnDeadLetter(task, err)
	}
}
