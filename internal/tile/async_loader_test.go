package tile

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
)

// blockingLoader holds every load until release is closed.
type blockingLoader struct {
	started chan quadtree.Key
	release chan struct{}
}

func newBlockingLoader() *blockingLoader {
	return &blockingLoader{
		started: make(chan quadtree.Key, 16),
		release: make(chan struct{}),
	}
}

func (b *blockingLoader) Load(_ context.Context, key quadtree.Key, canceled CancelSupplier) (*Images, error) {
	b.started <- key
	<-b.release
	if canceled() {
		return nil, ErrCanceled
	}
	return NewImages(key), nil
}

func newTestAsyncLoader(t *testing.T, loader ImagesLoader, maxApplies int) *ConcurrentAsyncLoader {
	t.Helper()
	pool := NewWorkerPool(2, logger.NewNop())
	async := NewConcurrentAsyncLoader(loader, pool, maxApplies, logger.NewNop())
	t.Cleanup(func() {
		async.Close()
		pool.Close()
	})
	return async
}

func TestAsyncLoaderLoadsTile(t *testing.T) {
	loader := newBlockingLoader()
	async := newTestAsyncLoader(t, loader, 0)

	key := quadtree.NewKey(3, 1, 2)
	slot := &Slot{}
	progress := NewProgressCallback()

	async.Load(key, slot, progress)
	assert.Equal(t, Loading, progress.State())

	assert.Equal(t, key, <-loader.started)
	async.Update()
	assert.Nil(t, slot.Images())
	assert.Equal(t, Loading, progress.State())

	close(loader.release)
	async.WaitForLoads()

	assert.Equal(t, Loading, progress.State(), "results are only applied by Update")
	assert.Nil(t, slot.Images())

	async.Update()
	assert.Equal(t, Loaded, progress.State())
	require.NotNil(t, slot.Images())
	assert.Equal(t, key, slot.Images().Key)
}

func TestAsyncLoaderCancelWhileLoading(t *testing.T) {
	loader := newBlockingLoader()
	async := newTestAsyncLoader(t, loader, 0)

	slot := &Slot{}
	progress := NewProgressCallback()

	async.Load(quadtree.NewKey(1, 0, 0), slot, progress)
	<-loader.started

	progress.RequestCancel()
	close(loader.release)
	async.WaitForLoads()
	async.Update()

	assert.Equal(t, FailedOrCanceled, progress.State())
	assert.Nil(t, slot.Images())
}

func TestAsyncLoaderCancelBeforeStartSkipsLoader(t *testing.T) {
	var calls atomic.Int32
	loader := loaderFunc(func(_ context.Context, key quadtree.Key, _ CancelSupplier) (*Images, error) {
		calls.Add(1)
		return NewImages(key), nil
	})

	scheduler := &manualScheduler{}
	async := NewConcurrentAsyncLoader(loader, scheduler, 0, logger.NewNop())

	slot := &Slot{}
	progress := NewProgressCallback()
	async.Load(quadtree.NewKey(0, 0, 0), slot, progress)

	progress.RequestCancel()
	scheduler.run()
	async.WaitForLoads()
	async.Update()

	assert.Zero(t, calls.Load())
	assert.Equal(t, FailedOrCanceled, progress.State())
	assert.Nil(t, slot.Images())
}

func TestAsyncLoaderCancelAfterLoadBeforeUpdate(t *testing.T) {
	loader := loaderFunc(func(_ context.Context, key quadtree.Key, _ CancelSupplier) (*Images, error) {
		return NewImages(key), nil
	})
	async := NewConcurrentAsyncLoader(loader, InlineScheduler{}, 0, logger.NewNop())

	slot := &Slot{}
	progress := NewProgressCallback()
	async.Load(quadtree.NewKey(0, 1, 0), slot, progress)

	progress.RequestCancel()
	async.Update()

	assert.Equal(t, FailedOrCanceled, progress.State())
	assert.Nil(t, slot.Images())
}

func TestAsyncLoaderFailures(t *testing.T) {
	tests := []struct {
		name   string
		loader loaderFunc
	}{
		{
			name: "error",
			loader: func(context.Context, quadtree.Key, CancelSupplier) (*Images, error) {
				return nil, assert.AnError
			},
		},
		{
			name: "no result",
			loader: func(context.Context, quadtree.Key, CancelSupplier) (*Images, error) {
				return nil, nil
			},
		},
		{
			name: "panic",
			loader: func(context.Context, quadtree.Key, CancelSupplier) (*Images, error) {
				panic("decoder exploded")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			async := newTestAsyncLoader(t, tt.loader, 0)

			slot := &Slot{}
			progress := NewProgressCallback()
			async.Load(quadtree.NewKey(2, 3, 1), slot, progress)
			async.WaitForLoads()
			async.Update()

			assert.Equal(t, FailedOrCanceled, progress.State())
			assert.Nil(t, slot.Images())
		})
	}
}

func TestAsyncLoaderLimitsAppliesPerUpdate(t *testing.T) {
	loader := loaderFunc(func(_ context.Context, key quadtree.Key, _ CancelSupplier) (*Images, error) {
		return NewImages(key), nil
	})
	async := NewConcurrentAsyncLoader(loader, InlineScheduler{}, 1, logger.NewNop())

	progresses := make([]*ProgressCallback, 3)
	for i := range progresses {
		progresses[i] = NewProgressCallback()
		async.Load(quadtree.NewKey(1, i, 0), &Slot{}, progresses[i])
	}

	countLoaded := func() int {
		n := 0
		for _, p := range progresses {
			if p.State() == Loaded {
				n++
			}
		}
		return n
	}

	async.Update()
	assert.Equal(t, 1, countLoaded())

	progresses[2].RequestCancel()
	async.Update()
	assert.Equal(t, 2, countLoaded())
	assert.Equal(t, FailedOrCanceled, progresses[2].State())

	async.Update()
	assert.Equal(t, 2, countLoaded())
}

func TestAsyncLoaderReloadAfterCancel(t *testing.T) {
	loader := loaderFunc(func(_ context.Context, key quadtree.Key, _ CancelSupplier) (*Images, error) {
		return NewImages(key), nil
	})
	async := NewConcurrentAsyncLoader(loader, InlineScheduler{}, 0, logger.NewNop())

	slot := &Slot{}
	first := NewProgressCallback()
	first.RequestCancel()
	async.Load(quadtree.NewKey(0, 0, 0), slot, first)
	async.Update()
	require.Equal(t, FailedOrCanceled, first.State())

	second := NewProgressCallback()
	async.Load(quadtree.NewKey(0, 0, 0), slot, second)
	async.Update()
	assert.Equal(t, Loaded, second.State())
	assert.NotNil(t, slot.Images())
}

func TestAsyncLoaderCloseCancelsPending(t *testing.T) {
	loader := loaderFunc(func(_ context.Context, _ quadtree.Key, canceled CancelSupplier) (*Images, error) {
		for !canceled() {
			time.Sleep(time.Millisecond)
		}
		return nil, ErrCanceled
	})

	pool := NewWorkerPool(1, logger.NewNop())
	defer pool.Close()
	async := NewConcurrentAsyncLoader(loader, pool, 0, logger.NewNop())

	progress := NewProgressCallback()
	async.Load(quadtree.NewKey(0, 0, 0), &Slot{}, progress)

	done := make(chan struct{})
	go func() {
		async.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	assert.True(t, progress.IsCancelRequested())
	async.Update()
	assert.Equal(t, FailedOrCanceled, progress.State())
}

func TestAsyncLoaderCloseKeepsQueuedCompletions(t *testing.T) {
	loader := loaderFunc(func(_ context.Context, key quadtree.Key, _ CancelSupplier) (*Images, error) {
		return NewImages(key), nil
	})
	async := NewConcurrentAsyncLoader(loader, InlineScheduler{}, 0, logger.NewNop())

	slot := &Slot{}
	progress := NewProgressCallback()
	async.Load(quadtree.NewKey(1, 2, 1), slot, progress)
	async.Close()

	assert.Equal(t, Loading, progress.State(), "Close leaves queued completions for Update")
	assert.True(t, progress.IsCancelRequested())

	async.Update()
	assert.Equal(t, FailedOrCanceled, progress.State())
	assert.Nil(t, slot.Images())
}

func TestWorkerPoolRunsQueuedTasksBeforeClosing(t *testing.T) {
	pool := NewWorkerPool(3, logger.NewNop())

	var ran atomic.Int32
	for i := 0; i < 100; i++ {
		pool.Go(func() { ran.Add(1) })
	}
	pool.Close()
	assert.Equal(t, int32(100), ran.Load())

	pool.Go(func() { ran.Add(1) })
	assert.Equal(t, int32(101), ran.Load())
}

func TestLoadStateString(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "failed_or_canceled", FailedOrCanceled.String())
	assert.Equal(t, "unknown", LoadState(42).String())
}
