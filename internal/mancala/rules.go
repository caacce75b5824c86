package mancala

import (
	"errors"
	"fmt"
)

// ErrIllegalMove is returned for pits out of range, owned by the other side, or empty.
var ErrIllegalMove = errors.New("illegal move")

// Outcome of a finished (or hypothetically finished) game.
type Outcome int

const (
	Draw Outcome = iota
	Player0Wins
	Player1Wins
)

func (o Outcome) String() string {
	switch o {
	case Player0Wins:
		return "player0"
	case Player1Wins:
		return "player1"
	default:
		return "draw"
	}
}

// Winner returns the winning side; ok is false for a draw.
func (o Outcome) Winner() (Player, bool) {
	switch o {
	case Player0Wins:
		return Player0, true
	case Player1Wins:
		return Player1, true
	}
	return 0, false
}

// Turn is the full account of one applied move.
type Turn struct {
	Board     Board
	Player    Player
	Pit       int
	Path      []int
	Landing   int
	ExtraTurn bool
	// Captured counts the seeds taken from the opposite pit, 0 when no capture happened.
	Captured int
	Swept    bool
}

// CheckMove explains why pit cannot be played, or returns nil.
func CheckMove(b Board, pit int) error {
	if pit < 0 || pit >= Slots {
		return fmt.Errorf("%w: pit %d out of range", ErrIllegalMove, pit)
	}
	if !b.Current.Owns(pit) {
		return fmt.Errorf("%w: %s does not belong to %s", ErrIllegalMove, PitName(pit), b.Current)
	}
	if b.Pits[pit] == 0 {
		return fmt.Errorf("%w: %s is empty", ErrIllegalMove, PitName(pit))
	}
	return nil
}

func IsLegalMove(b Board, pit int) bool { return CheckMove(b, pit) == nil }

// LegalMoves lists the playable pits of the side to move in ascending order.
func LegalMoves(b Board) []int {
	moves := make([]int, 0, PitsPerSide)
	first := b.Current.firstPit()
	for i := first; i < first+PitsPerSide; i++ {
		if b.Pits[i] > 0 {
			moves = append(moves, i)
		}
	}
	return moves
}

// sow lists the slots receiving a seed when pit is played. The opponent's store
// is passed over without consuming a seed; the mover's own store only receives
// the last seed and is passed over otherwise.
func sow(b Board, pit int) []int {
	seeds := b.Pits[pit]
	own, opp := b.Current.Store(), b.Current.OpponentStore()
	path := make([]int, 0, seeds)
	idx := pit
	for seeds > 0 {
		idx = (idx + 1) % Slots
		if idx == opp || (idx == own && seeds != 1) {
			continue
		}
		path = append(path, idx)
		seeds--
	}
	return path
}

// Play applies pit for the side to move and reports what happened.
func Play(b Board, pit int) (Turn, error) {
	if err := CheckMove(b, pit); err != nil {
		return Turn{}, err
	}
	mover := b.Current
	path := sow(b, pit)

	next := b
	next.Pits[pit] = 0
	for _, slot := range path {
		next.Pits[slot]++
	}
	landing := path[len(path)-1]
	t := Turn{Player: mover, Pit: pit, Path: path, Landing: landing}

	// the landing pit was empty before its final deposit iff it now holds exactly one seed
	if mover.Owns(landing) && next.Pits[landing] == 1 {
		opposite := 12 - landing
		if taken := next.Pits[opposite]; taken > 0 {
			next.Pits[mover.Store()] += taken + 1
			next.Pits[opposite] = 0
			next.Pits[landing] = 0
			t.Captured = taken
		}
	}

	if landing == mover.Store() {
		t.ExtraTurn = true
	} else {
		next.Current = mover.Opponent()
	}

	if IsTerminal(next) {
		next = Sweep(next)
		t.Swept = true
	}
	t.Board = next
	return t, nil
}

// ApplyMove returns the board after pit is played. The input board is never modified.
func ApplyMove(b Board, pit int) (Board, error) {
	t, err := Play(b, pit)
	if err != nil {
		return Board{}, err
	}
	return t.Board, nil
}

func SideEmpty(b Board, p Player) bool { return b.SideTotal(p) == 0 }

// IsTerminal reports whether either side has run out of seeds in its pits.
func IsTerminal(b Board) bool { return SideEmpty(b, Player0) || SideEmpty(b, Player1) }

// Sweep moves every remaining pit seed into its owner's store.
func Sweep(b Board) Board {
	for _, p := range []Player{Player0, Player1} {
		first := p.firstPit()
		for i := first; i < first+PitsPerSide; i++ {
			b.Pits[p.Store()] += b.Pits[i]
			b.Pits[i] = 0
		}
	}
	return b
}

// Winner compares the two stores.
func Winner(b Board) Outcome {
	a, z := b.Store(Player0), b.Store(Player1)
	switch {
	case a > z:
		return Player0Wins
	case z > a:
		return Player1Wins
	}
	return Draw
}

// Heuristic weights banked seeds three times pit seeds.
func Heuristic(b Board, perspective Player) int {
	opp := perspective.Opponent()
	own := 3*b.Store(perspective) + b.SideTotal(perspective)
	other := 3*b.Store(opp) + b.SideTotal(opp)
	return own - other
}
