// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) *Queue {
	q := New(Options{Logger: log.NewLogger(log.DiscardHandler())})
	t.Cleanup(q.Close)
	return q
}

func TestQueueOrder(t *testing.T) {
	q := newQueue(t)

	var (
		lock sync.Mutex
		seen []int
	)
	futures := make([]*Future, 0, 100)
	for i := 0; i < 100; i++ {
		i := i
		futures = append(futures, q.Submit(func() (any, error) {
			lock.Lock()
			seen = append(seen, i)
			lock.Unlock()
			return i * 2, nil
		}))
	}
	for i, f := range futures {
		v, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i*2, v)
	}
	for i, v := range seen {
		assert.Equal(t, i, v)
	}
}

func TestQueueSerializes(t *testing.T) {
	q := newQueue(t)

	var running, maxRunning int
	var lock sync.Mutex
	task := func() (any, error) {
		lock.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		lock.Unlock()
		time.Sleep(time.Millisecond)
		lock.Lock()
		running--
		lock.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Do(context.Background(), task)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxRunning)
}

func TestQueueTaskError(t *testing.T) {
	q := newQueue(t)
	boom := errors.New("boom")

	_, err := q.Do(context.Background(), func() (any, error) { return nil, boom })
	assert.Equal(t, boom, err)

	// the worker survives a failed task
	v, err := q.Do(context.Background(), func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestQueueWaitCanceled(t *testing.T) {
	q := newQueue(t)
	release := make(chan struct{})
	blocker := q.Submit(func() (any, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := blocker.Wait(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)

	close(release)
	_, err = blocker.Wait(context.Background())
	assert.NoError(t, err)
}

func TestQueueClose(t *testing.T) {
	q := New(Options{Logger: log.NewLogger(log.DiscardHandler())})
	started := make(chan struct{})
	release := make(chan struct{})

	running := q.Submit(func() (any, error) {
		close(started)
		<-release
		return "done", nil
	})
	<-started
	queued := q.Submit(func() (any, error) { return "never", nil })
	assert.Equal(t, 1, q.Len())

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned before the running task completed")
	case <-time.After(10 * time.Millisecond):
	}
	close(release)
	<-closed

	v, err := running.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)

	_, err = queued.Wait(context.Background())
	assert.Equal(t, ErrClosed, err)

	_, err = q.Do(context.Background(), func() (any, error) { return nil, nil })
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, 0, q.Len())

	// closing twice is harmless
	q.Close()
}
