// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package queue serializes tasks on a single worker in submission order.
package queue

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/vechain/ethsim/metrics"
)

// ErrClosed is the result of tasks still queued when the queue closes,
// and of tasks submitted afterwards.
var ErrClosed = errors.New("queue closed")

// Task is a unit of work run by the worker.
type Task func() (any, error)

// Future is the pending result of a submitted task.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(value any, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Done returns a channel closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done.
// A canceled wait does not cancel the task.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type item struct {
	task   Task
	future *Future
}

// Options optional parameters for Queue.
type Options struct {
	Logger  log.Logger
	Metrics metrics.Metrics
}

// Queue is a FIFO of tasks drained by one worker goroutine.
type Queue struct {
	lock   sync.Mutex
	items  []*item
	closed bool
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}

	logger log.Logger
	depth  metrics.GaugeMeter
	tasks  metrics.CountMeter
}

// New creates a queue and starts its worker.
func New(opts Options) *Queue {
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	m := metrics.OrNoop(opts.Metrics)
	q := &Queue{
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.New("pkg", "queue"),
		depth:  m.GetOrCreateGaugeMeter("queue_depth"),
		tasks:  m.GetOrCreateCountMeter("queue_tasks_count"),
	}
	go q.loop()
	return q
}

// Submit appends a task. The returned future fails with ErrClosed if the
// queue is closed before the task runs.
func (q *Queue) Submit(task Task) *Future {
	f := newFuture()

	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		f.resolve(nil, ErrClosed)
		return f
	}
	q.items = append(q.items, &item{task, f})
	q.depth.Set(int64(len(q.items)))
	q.lock.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return f
}

// Do submits the task and waits for its result.
// It must not be called from a running task.
func (q *Queue) Do(ctx context.Context, task Task) (any, error) {
	return q.Submit(task).Wait(ctx)
}

// Len returns the count of tasks waiting to run.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

func (q *Queue) next() *item {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed || len(q.items) == 0 {
		return nil
	}
	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.depth.Set(int64(len(q.items)))
	return it
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		if it := q.next(); it != nil {
			it.future.resolve(it.task())
			q.tasks.Add(1)
			continue
		}
		select {
		case <-q.wake:
		case <-q.stop:
			return
		}
	}
}

// Close stops the worker after the running task completes and fails every
// queued task with ErrClosed.
func (q *Queue) Close() {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		<-q.done
		return
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.depth.Set(0)
	q.lock.Unlock()

	close(q.stop)
	<-q.done
	for _, it := range pending {
		it.future.resolve(nil, ErrClosed)
	}
	if len(pending) > 0 {
		q.logger.Debug("queue closed", "dropped", len(pending))
	}
}
