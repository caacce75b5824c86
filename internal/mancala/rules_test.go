package mancala

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMove_OpeningPit0(t *testing.T) {
	b := NewBoard()
	next, err := ApplyMove(b, 0)
	require.NoError(t, err)
	assert.Equal(t, [Slots]int{0, 5, 5, 5, 5, 4, 0, 4, 4, 4, 4, 4, 4, 0}, next.Pits)
	assert.Equal(t, Player1, next.Current)
	// input untouched
	assert.Equal(t, NewBoard(), b)
}

func TestApplyMove_LastSeedInOwnStoreKeepsTurn(t *testing.T) {
	b := NewBoard()
	b.Pits[5] = 1
	next, err := ApplyMove(b, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Pits[StoreA])
	assert.Equal(t, Player0, next.Current)
}

func TestApplyMove_ExtraTurnForExactDistance(t *testing.T) {
	for _, p := range []Player{Player0, Player1} {
		first := p.firstPit()
		for i := first; i < first+PitsPerSide; i++ {
			b := NewBoard()
			b.Current = p
			b.Pits[i] = p.Store() - i
			turn, err := Play(b, i)
			require.NoError(t, err, PitName(i))
			assert.True(t, turn.ExtraTurn, PitName(i))
			assert.Equal(t, p.Store(), turn.Landing, PitName(i))
			assert.Equal(t, p, turn.Board.Current, PitName(i))
		}
	}
}

func TestApplyMove_OwnStoreSkippedUnlessLast(t *testing.T) {
	b := NewBoard()
	b.Pits[5] = 10
	turn, err := Play(b, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9, 10, 11, 12, 0, 1, 2, 3}, turn.Path)
	assert.Equal(t, 0, turn.Board.Pits[StoreA])
	assert.Equal(t, 0, turn.Board.Pits[StoreB])
	assert.Equal(t, Player1, turn.Board.Current)
	assert.False(t, turn.ExtraTurn)
}

func TestApplyMove_CapturePlayer0(t *testing.T) {
	var b Board
	b.Pits[0] = 3
	b.Pits[1] = 1
	b.Pits[10] = 5
	b.Pits[8] = 2
	turn, err := Play(b, 1)
	require.NoError(t, err)
	next := turn.Board
	assert.Equal(t, 5, turn.Captured)
	assert.Equal(t, 0, next.Pits[2])
	assert.Equal(t, 0, next.Pits[10])
	assert.Equal(t, 6, next.Pits[StoreA])
	assert.Equal(t, Player1, next.Current)
	assert.False(t, turn.Swept)
}

func TestApplyMove_CapturePlayer1(t *testing.T) {
	var b Board
	b.Current = Player1
	b.Pits[0] = 1
	b.Pits[4] = 3
	b.Pits[7] = 1
	b.Pits[12] = 2
	next, err := ApplyMove(b, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Pits[8])
	assert.Equal(t, 0, next.Pits[4])
	assert.Equal(t, 4, next.Pits[StoreB])
	assert.Equal(t, Player0, next.Current)
}

func TestApplyMove_NoCaptureFromEmptyOpposite(t *testing.T) {
	var b Board
	b.Pits[1] = 1
	b.Pits[0] = 2
	b.Pits[9] = 3
	next, err := ApplyMove(b, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Pits[2])
	assert.Equal(t, 0, next.Pits[StoreA])
}

func TestApplyMove_FullLapCapturesIntoSourcePit(t *testing.T) {
	var b Board
	b.Pits[0] = 12
	b.Pits[12] = 2
	turn, err := Play(b, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, turn.Landing)
	assert.Equal(t, 3, turn.Captured)
	assert.Equal(t, 4, turn.Board.Pits[StoreA])
	assert.Equal(t, 0, turn.Board.Pits[0])
	assert.Equal(t, 0, turn.Board.Pits[12])
	assert.Equal(t, 14, turn.Board.Sum())

	c, ok := CaptureInfo(b, 0)
	require.True(t, ok)
	assert.Equal(t, Capture{From: 12, To: StoreA, Seeds: 4}, c)
}

func TestApplyMove_SweepAfterLastMove(t *testing.T) {
	var b Board
	b.Pits[5] = 1
	b.Pits[7] = 3
	b.Pits[12] = 2
	b.Pits[StoreA] = 20
	b.Pits[StoreB] = 22
	turn, err := Play(b, 5)
	require.NoError(t, err)
	next := turn.Board
	assert.True(t, turn.Swept)
	assert.True(t, IsTerminal(next))
	assert.Equal(t, 21, next.Pits[StoreA])
	assert.Equal(t, 27, next.Pits[StoreB])
	assert.Equal(t, 0, next.SideTotal(Player0)+next.SideTotal(Player1))
	assert.Equal(t, Player1Wins, Winner(next))
}

func TestApplyMove_Illegal(t *testing.T) {
	b := NewBoard()
	b.Pits[2] = 0
	for _, pit := range []int{-1, 14, 2, StoreA, StoreB, 7, 12} {
		next, err := ApplyMove(b, pit)
		assert.ErrorIs(t, err, ErrIllegalMove, "pit %d", pit)
		assert.Equal(t, Board{}, next)
		assert.False(t, IsLegalMove(b, pit))
	}
}

func TestLegalMoves(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, LegalMoves(b))
	b.Current = Player1
	b.Pits[9] = 0
	assert.Equal(t, []int{7, 8, 10, 11, 12}, LegalMoves(b))
}

func TestWinnerAndHeuristic(t *testing.T) {
	var b Board
	b.Pits[StoreA] = 24
	b.Pits[StoreB] = 24
	assert.Equal(t, Draw, Winner(b))
	_, ok := Draw.Winner()
	assert.False(t, ok)

	b = NewBoard()
	b.Pits[StoreA] = 2
	b.Pits[0] = 2
	assert.Equal(t, 3*2+22-24, Heuristic(b, Player0))
	assert.Equal(t, -(3*2 + 22 - 24), Heuristic(b, Player1))
}

// randomPlayouts drives whole games with random legal moves and hands every turn to check.
func randomPlayouts(t *testing.T, games int, check func(pre Board, turn Turn)) {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	for g := 0; g < games; g++ {
		b := NewBoard()
		for !IsTerminal(b) {
			pit, ok := RandomMove(b, rng)
			require.True(t, ok)
			turn, err := Play(b, pit)
			require.NoError(t, err)
			check(b, turn)
			b = turn.Board
		}
	}
}

func TestPlayouts_Invariants(t *testing.T) {
	randomPlayouts(t, 300, func(pre Board, turn Turn) {
		next := turn.Board
		require.Equal(t, TotalSeeds, next.Sum())
		require.NoError(t, next.Validate())

		mover := pre.Current
		if !turn.Swept {
			require.Equal(t, pre.Store(mover.Opponent()), next.Store(mover.Opponent()), "opponent store changed")
		}
		if IsTerminal(next) {
			require.Equal(t, 0, next.SideTotal(Player0)+next.SideTotal(Player1))
			require.Equal(t, TotalSeeds, next.Store(Player0)+next.Store(Player1))
		}
		require.Equal(t, turn.ExtraTurn, next.Current == mover)
	})
}
