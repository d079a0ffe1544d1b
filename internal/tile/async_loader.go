package tile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/terrain/internal/quadtree"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/terrain/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AsyncLoader loads tiles in the background and hands results to a single
// consumer goroutine.
type AsyncLoader interface {
	// Load starts loading key and returns immediately. progress is Loading on
	// return. A request must not be issued again on the same progress while
	// it is in flight.
	Load(key quadtree.Key, slot *Slot, progress *ProgressCallback)
	// WaitForLoads blocks until every started background task has finished.
	WaitForLoads()
	// Update applies finished loads. It must only be called by the consumer.
	Update()
}

type completion struct {
	key      quadtree.Key
	slot     *Slot
	progress *ProgressCallback
	images   *Images
	err      error
}

// ConcurrentAsyncLoader runs an ImagesLoader on a Scheduler. Workers push
// completions onto a queue that Update drains, so slots and terminal states
// are only written by the consumer.
type ConcurrentAsyncLoader struct {
	loader    ImagesLoader
	scheduler Scheduler
	logger    logger.Logger
	tracer    trace.Tracer

	// maxAppliesPerUpdate caps successful loads applied by one Update.
	// Zero applies everything.
	maxAppliesPerUpdate int

	ctx    context.Context
	cancel context.CancelFunc

	inFlight sync.WaitGroup

	mu        sync.Mutex
	completed []completion
	pending   map[*ProgressCallback]struct{}
}

var _ AsyncLoader = (*ConcurrentAsyncLoader)(nil)

func NewConcurrentAsyncLoader(loader ImagesLoader, scheduler Scheduler, maxAppliesPerUpdate int, l logger.Logger) *ConcurrentAsyncLoader {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConcurrentAsyncLoader{
		loader:              loader,
		scheduler:           scheduler,
		logger:              l,
		tracer:              telemetry.Tracer(),
		maxAppliesPerUpdate: maxAppliesPerUpdate,
		ctx:                 ctx,
		cancel:              cancel,
		pending:             make(map[*ProgressCallback]struct{}),
	}
}

func (l *ConcurrentAsyncLoader) Load(key quadtree.Key, slot *Slot, progress *ProgressCallback) {
	progress.setState(Loading)

	l.mu.Lock()
	l.pending[progress] = struct{}{}
	l.mu.Unlock()

	metrics.TileLoadsRequested.Inc()
	metrics.TileLoadsInFlight.Inc()

	l.inFlight.Add(1)
	l.scheduler.Go(func() {
		defer l.inFlight.Done()
		defer metrics.TileLoadsInFlight.Dec()

		l.run(key, slot, progress)
	})
}

func (l *ConcurrentAsyncLoader) run(key quadtree.Key, slot *Slot, progress *ProgressCallback) {
	canceled := func() bool {
		return progress.IsCancelRequested() || l.ctx.Err() != nil
	}

	c := completion{key: key, slot: slot, progress: progress}
	if canceled() {
		c.err = ErrCanceled
	} else {
		c.images, c.err = l.load(key, canceled)
	}

	l.mu.Lock()
	l.completed = append(l.completed, c)
	metrics.CompletionQueueDepth.Set(float64(len(l.completed)))
	l.mu.Unlock()
}

func (l *ConcurrentAsyncLoader) load(key quadtree.Key, canceled CancelSupplier) (images *Images, err error) {
	ctx, span := l.tracer.Start(l.ctx, "tile.load", trace.WithAttributes(
		attribute.Int("tile.level", key.Level),
		attribute.Int("tile.x", key.X),
		attribute.Int("tile.y", key.Y),
	))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			images = nil
			err = fmt.Errorf("images loader panicked: %v", r)
		}
		if err == nil && images == nil {
			err = ErrNoData
		}

		metrics.TileLoadDuration.Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, ErrCanceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return l.loader.Load(ctx, key, canceled)
}

func (l *ConcurrentAsyncLoader) WaitForLoads() {
	l.inFlight.Wait()
}

func (l *ConcurrentAsyncLoader) Update() {
	l.mu.Lock()
	batch := l.completed
	l.completed = nil
	l.mu.Unlock()

	applied := 0
	var deferred []completion

	for _, c := range batch {
		if c.err == nil && c.progress.IsCancelRequested() {
			c.err = ErrCanceled
		}

		if c.err != nil {
			l.finish(c.progress, FailedOrCanceled)
			if errors.Is(c.err, ErrCanceled) {
				metrics.TileLoadsCompleted.WithLabelValues("canceled").Inc()
				l.logger.Debug("tile load canceled", "tile", c.key)
			} else {
				metrics.TileLoadsCompleted.WithLabelValues("failed").Inc()
				l.logger.Warn("tile load failed", "tile", c.key, "error", c.err)
			}
			continue
		}

		if l.maxAppliesPerUpdate > 0 && applied >= l.maxAppliesPerUpdate {
			deferred = append(deferred, c)
			continue
		}

		c.slot.set(c.images)
		l.finish(c.progress, Loaded)
		metrics.TileLoadsCompleted.WithLabelValues("loaded").Inc()
		applied++
	}

	l.mu.Lock()
	if len(deferred) > 0 {
		l.completed = append(deferred, l.completed...)
	}
	metrics.CompletionQueueDepth.Set(float64(len(l.completed)))
	l.mu.Unlock()
}

func (l *ConcurrentAsyncLoader) finish(progress *ProgressCallback, state LoadState) {
	progress.setState(state)

	l.mu.Lock()
	delete(l.pending, progress)
	l.mu.Unlock()
}

// Close cancels every outstanding request and waits for the workers to
// finish with them. Completions already queued stay queued; the next Update
// finishes them as FailedOrCanceled without touching their slots.
func (l *ConcurrentAsyncLoader) Close() {
	l.cancel()

	l.mu.Lock()
	for progress := range l.pending {
		progress.RequestCancel()
	}
	l.mu.Unlock()

	l.WaitForLoads()
	l.logger.Info("async tile loader stopped")
}
