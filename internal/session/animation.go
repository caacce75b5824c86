package session

import (
	"iter"
	"time"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

type StepKind int

const (
	// StepLift empties the source pit.
	StepLift StepKind = iota
	// StepDrop deposits one seed.
	StepDrop
	// StepCapture carries one captured seed into the store.
	StepCapture
)

func (k StepKind) String() string {
	switch k {
	case StepLift:
		return "lift"
	case StepDrop:
		return "drop"
	case StepCapture:
		return "capture"
	}
	return "unknown"
}

// Step is one visual frame. Board is the picture after the step, not a rule state.
type Step struct {
	Kind  StepKind
	Slot  int
	Board mancala.Board
	Delay time.Duration
}

// Animation describes how one accepted move is shown. It is built from the
// pre-move snapshot only and never touches the session board.
type Animation struct {
	Source  Source
	Pit     int
	Pre     mancala.Board
	Path    []int
	Capture *mancala.Capture

	dropStep    time.Duration
	captureStep time.Duration
	owner       *Session
}

func newAnimation(owner *Session, src Source, pre mancala.Board, pit int) *Animation {
	a := &Animation{
		Source:      src,
		Pit:         pit,
		Pre:         pre,
		Path:        mancala.DistributionPath(pre, pit),
		dropStep:    owner.dropStep,
		captureStep: owner.captureStep,
		owner:       owner,
	}
	if c, ok := mancala.CaptureInfo(pre, pit); ok {
		a.Capture = &c
	}
	return a
}

// Steps yields the lift, one drop per path slot, then one capture step per
// captured seed. Every call starts over from the pre-move snapshot.
func (a *Animation) Steps() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		vis := a.Pre
		vis.Pits[a.Pit] = 0
		if !yield(Step{Kind: StepLift, Slot: a.Pit, Board: vis, Delay: a.dropStep}) {
			return
		}
		for _, slot := range a.Path {
			vis.Pits[slot]++
			if !yield(Step{Kind: StepDrop, Slot: slot, Board: vis, Delay: a.dropStep}) {
				return
			}
		}
		if a.Capture == nil || len(a.Path) == 0 {
			return
		}
		landing := a.Path[len(a.Path)-1]
		for _, from := range []int{landing, a.Capture.From} {
			for vis.Pits[from] > 0 {
				vis.Pits[from]--
				vis.Pits[a.Capture.To]++
				if !yield(Step{Kind: StepCapture, Slot: from, Board: vis, Delay: a.captureStep}) {
					return
				}
			}
		}
	}
}

// Frames collects the visual boards of every step.
func (a *Animation) Frames() []mancala.Board {
	var out []mancala.Board
	for st := range a.Steps() {
		out = append(out, st.Board)
	}
	return out
}

// Duration is the sum of every step delay.
func (a *Animation) Duration() time.Duration {
	var d time.Duration
	for st := range a.Steps() {
		d += st.Delay
	}
	return d
}

// Finish hands the animation back to its session. Hosts call it exactly once.
func (a *Animation) Finish() bool {
	if a == nil || a.owner == nil {
		return false
	}
	return a.owner.Complete(a)
}
