package session

import (
	"context"
	"sync"
	"time"
)

// Host plays animations. Every Animate call must eventually lead to Animation.Finish.
type Host interface {
	Animate(a *Animation)
}

type StepFunc func(a *Animation, st Step)

// InstantHost walks every step synchronously and finishes at once.
type InstantHost struct {
	OnStep StepFunc
}

func (h InstantHost) Animate(a *Animation) {
	if h.OnStep != nil {
		for st := range a.Steps() {
			h.OnStep(a, st)
		}
	}
	a.Finish()
}

// TimedHost plays steps on a goroutine, waiting each step's Delay.
// Cancelling ctx skips the remaining waits; the move is still finished.
type TimedHost struct {
	ctx    context.Context
	onStep StepFunc
	wg     sync.WaitGroup
}

func NewTimedHost(ctx context.Context, onStep StepFunc) *TimedHost {
	if ctx == nil {
		ctx = context.Background()
	}
	return &TimedHost{ctx: ctx, onStep: onStep}
}

func (h *TimedHost) Animate(a *Animation) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer a.Finish()
		for st := range a.Steps() {
			if h.onStep != nil {
				h.onStep(a, st)
			}
			if st.Delay <= 0 || h.ctx.Err() != nil {
				continue
			}
			t := time.NewTimer(st.Delay)
			select {
			case <-h.ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}()
}

// Wait blocks until every started animation has finished.
func (h *TimedHost) Wait() { h.wg.Wait() }
