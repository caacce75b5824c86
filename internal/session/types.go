package session

import (
	"errors"
	"time"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

var (
	ErrBusy        = errors.New("animation in progress")
	ErrQueued      = errors.New("remote move queued")
	ErrGameOver    = errors.New("game is over")
	ErrNotYourTurn = errors.New("not your turn")
	ErrOutOfSync   = errors.New("remote move does not fit local board, resynchronizing")
	// ErrSnapshotMismatch: the pit is legal locally but does not produce the peer's board.
	ErrSnapshotMismatch = errors.New("remote move result differs from peer board")
)

// Source identifies who asked for a move.
type Source int

const (
	SourceLocal Source = iota
	SourceAI
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceAI:
		return "ai"
	case SourceRemote:
		return "remote"
	}
	return "unknown"
}

type Mode int

const (
	ModeLocalPvP Mode = iota
	ModeVsAI
	ModeOnline
)

func (m Mode) String() string {
	switch m {
	case ModeLocalPvP:
		return "pvp"
	case ModeVsAI:
		return "ai"
	case ModeOnline:
		return "online"
	}
	return "unknown"
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnimating
)

func (p Phase) String() string {
	if p == PhaseAnimating {
		return "animating"
	}
	return "idle"
}

// Notifier is the sync collaborator of an online game.
type Notifier interface {
	// Moved reports a board produced by a local or AI move.
	Moved(b mancala.Board, pit int)
	// Resync asks for the authoritative board; the answer comes back through Session.Sync.
	Resync()
}

// Observer receives every new board. rec is nil for Sync and Reset.
type Observer func(b mancala.Board, rec *mancala.MoveRecord)

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func())

// AfterFunc is the default Scheduler.
func AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Immediate runs f synchronously, ignoring d.
func Immediate(_ time.Duration, f func()) { f() }

type remoteMove struct {
	pit      int
	snapshot *mancala.Board
}
