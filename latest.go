package crosssection

import (
	"context"
	"sync"
)

// A LatestBuilder builds profiles where only the most recent request matters,
// for example while a user drags an endpoint. Starting a build cancels the
// previous build.
type LatestBuilder struct {
	profiler   *Profiler
	mutex      sync.Mutex
	generation uint64
	cancel     context.CancelCauseFunc
}

// NewLatestBuilder returns a new LatestBuilder that builds profiles with
// profiler.
func NewLatestBuilder(profiler *Profiler) *LatestBuilder {
	return &LatestBuilder{
		profiler: profiler,
	}
}

// BuildProfile builds the profile between from and to, canceling any build in
// progress. It returns ErrSuperseded if another build was started before this
// one returned, even if this build completed.
func (b *LatestBuilder) BuildProfile(ctx context.Context, from, to GeoPoint) (*Profile, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	b.mutex.Lock()
	if b.cancel != nil {
		b.cancel(ErrSuperseded)
	}
	b.generation++
	generation := b.generation
	b.cancel = cancel
	b.mutex.Unlock()

	profile, err := b.profiler.BuildProfile(ctx, from, to)

	b.mutex.Lock()
	superseded := b.generation != generation
	if !superseded {
		b.cancel = nil
	}
	b.mutex.Unlock()

	switch {
	case superseded:
		return nil, ErrSuperseded
	case err != nil:
		return nil, err
	default:
		return profile, nil
	}
}

// Cancel cancels the build in progress, if any.
func (b *LatestBuilder) Cancel() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.cancel != nil {
		b.cancel(ErrSuperseded)
		b.cancel = nil
	}
	b.generation++
}
