package tile

import "sync/atomic"

type LoadState int32

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	// FailedOrCanceled is terminal for a canceled request as well as for a
	// load that failed or found no data.
	FailedOrCanceled
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case FailedOrCanceled:
		return "failed_or_canceled"
	}
	return "unknown"
}

// ProgressCallback tracks one load request. The state is written by the
// loader only; RequestCancel may be called from any goroutine at any time.
type ProgressCallback struct {
	state           atomic.Int32
	cancelRequested atomic.Bool
}

func NewProgressCallback() *ProgressCallback {
	return &ProgressCallback{}
}

func (p *ProgressCallback) State() LoadState {
	return LoadState(p.state.Load())
}

func (p *ProgressCallback) setState(s LoadState) {
	p.state.Store(int32(s))
}

func (p *ProgressCallback) RequestCancel() {
	p.cancelRequested.Store(true)
}

func (p *ProgressCallback) IsCancelRequested() bool {
	return p.cancelRequested.Load()
}

// Slot receives the result of a load. It stays empty until the consumer
// applies a successful completion.
type Slot struct {
	images atomic.Pointer[Images]
}

func (s *Slot) Images() *Images {
	return s.images.Load()
}

func (s *Slot) set(images *Images) {
	s.images.Store(images)
}
