package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool stopped")

type Task func(ctx context.Context) error

// Pool runs tasks on a fixed set of workers. Tasks submitted with the same key
// land on the same worker and therefore run in submission order.
type Pool struct {
	wg    sync.WaitGroup
	lanes []chan Task
	quit  chan struct{}
	once  sync.Once
	log   *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	lanes := make([]chan Task, workers)
	for i := range lanes {
		lanes[i] = make(chan Task, 16)
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{lanes: lanes, quit: make(chan struct{}), log: &l}
}

func (p *Pool) Size() int { return len(p.lanes) }

func (p *Pool) Start(ctx context.Context) {
	for i := range p.lanes {
		p.wg.Add(1)
		go func(id int, jobs <-chan Task) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-jobs:
					if err := task(ctx); err != nil {
						p.log.Debug().Int("worker", id).Err(err).Msg("task error")
					}
				}
			}
		}(i, p.lanes[i])
	}
}

// Stop stops the workers and waits for running tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit queues task on the worker owning key, blocking while that lane is full.
func (p *Pool) Submit(ctx context.Context, key string, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return ErrStopped
	default:
	}
	select {
	case p.lanes[p.lane(key)] <- task:
		return nil
	case <-p.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) lane(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.lanes)))
}
