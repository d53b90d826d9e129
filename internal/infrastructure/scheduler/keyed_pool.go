package scheduler

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of work bound to a key. Jobs sharing a key run one at a
// time, in submission order.
type Job struct {
	Key string
	Run func(ctx context.Context) error
}

// PoolConfig holds keyed pool configuration
type PoolConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// DefaultPoolConfig returns default keyed pool configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:    8,
		QueueSize:  64,
		JobTimeout: 2 * time.Minute,
	}
}

// Validate checks the configuration
func (c PoolConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue size must not be negative, got %d", ErrInvalidConfig, c.QueueSize)
	}
	return nil
}

type task struct {
	ctx  context.Context
	job  Job
	done chan error
}

// KeyedPool runs jobs on a fixed set of workers. Each worker owns a queue
// and a key always hashes to the same worker, so jobs for one key never
// overlap while unrelated keys proceed in parallel.
type KeyedPool struct {
	config PoolConfig
	logger *zap.Logger

	queues  []chan *task
	poolCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.RWMutex
	isRunning bool
}

// NewKeyedPool creates a new pool. It must be started before use.
func NewKeyedPool(config PoolConfig, logger *zap.Logger) (*KeyedPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyedPool{config: config, logger: logger}, nil
}

// Start starts the workers
func (p *KeyedPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return nil
	}

	p.poolCtx, p.cancel = context.WithCancel(ctx)
	p.queues = make([]chan *task, p.config.Workers)
	for i := range p.queues {
		p.queues[i] = make(chan *task, p.config.QueueSize)
		p.wg.Add(1)
		go p.worker(i, p.queues[i])
	}
	p.isRunning = true

	p.logger.Info("Keyed pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize),
		zap.Duration("job_timeout", p.config.JobTimeout),
	)
	return nil
}

// Stop stops accepting jobs and waits for queued jobs to finish or ctx to
// expire. Jobs still running when ctx expires see their context cancelled.
func (p *KeyedPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Keyed pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("Keyed pool stop timed out")
		return ctx.Err()
	}
}

// Submit queues job on the worker that owns its key. The returned channel
// receives the job result exactly once. ctx supplies values (trace, logger)
// to the job; its cancellation does not abandon a queued job.
func (p *KeyedPool) Submit(ctx context.Context, job Job) (<-chan error, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.isRunning {
		return nil, ErrPoolNotRunning
	}

	t := &task{ctx: ctx, job: job, done: make(chan error, 1)}
	select {
	case p.queues[p.slot(job.Key)] <- t:
		return t.done, nil
	default:
		return nil, ErrJobQueueFull
	}
}

// Do submits job and waits for its result or for ctx to end.
func (p *KeyedPool) Do(ctx context.Context, job Job) error {
	done, err := p.Submit(ctx, job)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepths returns the number of pending jobs per worker.
func (p *KeyedPool) QueueDepths() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	depths := make([]int, len(p.queues))
	for i, q := range p.queues {
		depths[i] = len(q)
	}
	return depths
}

func (p *KeyedPool) slot(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *KeyedPool) worker(id int, queue <-chan *task) {
	defer p.wg.Done()

	for t := range queue {
		t.done <- p.run(id, t)
	}
	p.logger.Debug("Worker stopping", zap.Int("worker_id", id))
}

func (p *KeyedPool) run(id int, t *task) (err error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(t.ctx))
	defer cancel()
	stop := context.AfterFunc(p.poolCtx, cancel)
	defer stop()

	if p.config.JobTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, p.config.JobTimeout)
		defer cancelTimeout()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job panicked",
				zap.Int("worker_id", id),
				zap.String("key", t.job.Key),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	return t.job.Run(ctx)
}
