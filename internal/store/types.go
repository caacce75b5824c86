package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

var (
	ErrNotFound    = errors.New("game not found")
	ErrGuestTaken  = errors.New("guest seat already taken")
	ErrInvalidArgs = errors.New("invalid arguments")
	ErrConflict    = errors.New("concurrent update, retry")
)

const DefaultTTL = 24 * time.Hour

// AnyVersion disables the version check of Update.
const AnyVersion int64 = -1

// Record is the shared state of one online game.
type Record struct {
	ID      string        `json:"id"`
	Code    string        `json:"code"`
	Board   mancala.Board `json:"board"`
	HostID  string        `json:"hostId"`
	GuestID string        `json:"guestId,omitempty"`
	// LastMovePit is nil when the writer did not know the move, e.g. a resync.
	LastMovePit    *int      `json:"lastMovePit,omitempty"`
	LastMovePlayer string    `json:"lastMovePlayer,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Seat returns the side a participant plays: the host is player 0.
func (r *Record) Seat(playerID string) (mancala.Player, bool) {
	switch {
	case playerID == "":
		return 0, false
	case playerID == r.HostID:
		return mancala.Player0, true
	case playerID == r.GuestID:
		return mancala.Player1, true
	}
	return 0, false
}

// PlayerAt is the inverse of Seat.
func (r *Record) PlayerAt(p mancala.Player) string {
	if p == mancala.Player0 {
		return r.HostID
	}
	return r.GuestID
}

func (r *Record) clone() *Record {
	cp := *r
	if r.LastMovePit != nil {
		pit := *r.LastMovePit
		cp.LastMovePit = &pit
	}
	return &cp
}

type Subscription interface {
	Unsubscribe() error
}

// GameStore persists online games and broadcasts every change.
type GameStore interface {
	Create(ctx context.Context, board mancala.Board, hostID string) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	// FindByCode resolves the short join code shown in chat.
	FindByCode(ctx context.Context, code string) (*Record, error)
	// Update replaces the board if the stored record is still at expect
	// (AnyVersion skips the check) and returns the new record. A stale
	// expect fails with ErrConflict.
	Update(ctx context.Context, id string, board mancala.Board, playerID string, movedPit *int, expect int64) (*Record, error)
	AssignGuest(ctx context.Context, id, guestID string) (*Record, error)
	Subscribe(ctx context.Context, id string, onChange func(*Record)) (Subscription, error)
}

func checkCreate(board mancala.Board, hostID string) error {
	if strings.TrimSpace(hostID) == "" {
		return fmt.Errorf("%w: empty host id", ErrInvalidArgs)
	}
	if err := board.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	return nil
}

func applyUpdate(rec *Record, board mancala.Board, playerID string, movedPit *int, expect int64) error {
	if expect != AnyVersion && rec.Version != expect {
		return fmt.Errorf("%w: game is at version %d, not %d", ErrConflict, rec.Version, expect)
	}
	if err := board.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgs, err)
	}
	if _, ok := rec.Seat(playerID); !ok {
		return fmt.Errorf("%w: %q is not seated", ErrInvalidArgs, playerID)
	}
	rec.Board = board
	rec.LastMovePlayer = playerID
	rec.LastMovePit = nil
	if movedPit != nil {
		pit := *movedPit
		rec.LastMovePit = &pit
	}
	return nil
}

func applyGuest(rec *Record, guestID string) error {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" || guestID == rec.HostID {
		return fmt.Errorf("%w: bad guest id %q", ErrInvalidArgs, guestID)
	}
	if rec.GuestID != "" && rec.GuestID != guestID {
		return ErrGuestTaken
	}
	rec.GuestID = guestID
	return nil
}

// codeGen returns `MC-` + 6 upper alnum.
func codeGen() (string, error) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return "MC-" + string(b), nil
}

func normalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }
