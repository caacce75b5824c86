package mancala

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extraTurnBoard: playing a6 banks a seed and keeps the turn, after which a4 captures b4.
func extraTurnBoard() Board {
	var b Board
	b.Pits[0] = 1
	b.Pits[3] = 1
	b.Pits[5] = 1
	b.Pits[7] = 2
	b.Pits[8] = 4
	b.Pits[9] = 1
	return b
}

func TestSearch_ExtraTurnKeepsMaximizing(t *testing.T) {
	b := extraTurnBoard()
	assert.Equal(t, 16, Search(b, 2, true, Player0))

	afterBank, err := ApplyMove(b, 5)
	require.NoError(t, err)
	require.Equal(t, Player0, afterBank.Current)
	assert.Equal(t, 16, Search(afterBank, 1, true, Player0))
	assert.Equal(t, -2, Search(afterBank, 1, false, Player0))

	pit, ok := BestMove(b, Player0, 2)
	require.True(t, ok)
	assert.Equal(t, 5, pit)
}

func TestSearch_LeafIsHeuristic(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, Heuristic(b, Player1), Search(b, 0, true, Player1))
}

func TestBestMove_OpeningDepthOnePrefersExtraTurn(t *testing.T) {
	pit, ok := BestMove(NewBoard(), Player0, 1)
	require.True(t, ok)
	assert.Equal(t, 2, pit)
}

func TestBestMove_Deterministic(t *testing.T) {
	b := NewBoard()
	b, _ = ApplyMove(b, 0)
	first, ok := BestMove(b, Player1, DefaultDepth)
	require.True(t, ok)
	for i := 0; i < 3; i++ {
		again, _ := BestMove(b, Player1, DefaultDepth)
		assert.Equal(t, first, again)
	}
	assert.True(t, IsLegalMove(b, first))
}

func TestBestMove_NoMoves(t *testing.T) {
	b := Sweep(NewBoard())
	pit, ok := BestMove(b, Player0, 3)
	assert.False(t, ok)
	assert.Equal(t, -1, pit)
}

func TestSearcher(t *testing.T) {
	b := NewBoard()
	s := NewSearcher(LevelNormal, 0, nil)
	assert.Equal(t, DefaultDepth, s.Depth)
	pit, ok := s.BestMove(context.Background(), b)
	require.True(t, ok)
	want, _ := BestMove(b, Player0, DefaultDepth)
	assert.Equal(t, want, pit)

	easy := NewSearcher(LevelEasy, 0, nil)
	pit, ok = easy.BestMove(context.Background(), b)
	require.True(t, ok)
	assert.True(t, IsLegalMove(b, pit))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pit, ok = s.BestMove(ctx, b)
	require.True(t, ok)
	assert.Equal(t, 0, pit, "cancelled search keeps the first root move")
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("HARD")
	assert.True(t, ok)
	assert.Equal(t, LevelHard, l)
	assert.Equal(t, DefaultDepth+2, l.Depth())
	_, ok = ParseLevel("grandmaster")
	assert.False(t, ok)
}
