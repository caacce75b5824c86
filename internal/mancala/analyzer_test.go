package mancala

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionPath_MatchesApplyMove(t *testing.T) {
	randomPlayouts(t, 200, func(pre Board, turn Turn) {
		path := DistributionPath(pre, turn.Pit)
		require.Equal(t, turn.Path, path)
		require.Len(t, path, pre.Pits[turn.Pit])
		require.Equal(t, turn.Landing, path[len(path)-1])
		for i, slot := range path {
			require.NotEqual(t, pre.Current.OpponentStore(), slot)
			if slot == pre.Current.Store() {
				require.Equal(t, len(path)-1, i, "own store before last seed")
			}
		}

		c, ok := CaptureInfo(pre, turn.Pit)
		require.Equal(t, turn.Captured > 0, ok)
		if ok {
			require.Equal(t, 12-turn.Landing, c.From)
			require.Equal(t, pre.Current.Store(), c.To)
			require.Equal(t, turn.Captured+1, c.Seeds)
		}
	})
}

func TestDistributionPath_Illegal(t *testing.T) {
	assert.Nil(t, DistributionPath(NewBoard(), 8))
	assert.Nil(t, DistributionPath(NewBoard(), StoreA))
	_, ok := CaptureInfo(NewBoard(), 99)
	assert.False(t, ok)
}

func TestDistributionPath_Opening(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, []int{1, 2, 3, 4}, DistributionPath(b, 0))
	assert.Equal(t, []int{3, 4, 5, 6}, DistributionPath(b, 2))
	assert.Equal(t, []int{4, 5, 7, 8}, DistributionPath(b, 3))
}

func TestInferMove_SinglePitDiff(t *testing.T) {
	before := NewBoard()
	after, err := ApplyMove(before, 3)
	require.NoError(t, err)
	pit, ok := InferMove(before, after)
	require.True(t, ok)
	assert.Equal(t, 3, pit)

	_, ok = InferMove(before, before)
	assert.False(t, ok)
}

func TestInferMove_CaptureDiffMisleadsButVerifyDoesNot(t *testing.T) {
	var before Board
	before.Current = Player1
	before.Pits[0] = 1
	before.Pits[4] = 3
	before.Pits[7] = 1
	before.Pits[12] = 2
	after, err := ApplyMove(before, 7)
	require.NoError(t, err)

	guess, ok := InferMove(before, after)
	require.True(t, ok)
	assert.Equal(t, 4, guess, "lowest decreased slot is the captured pit")

	pit, ok := VerifyMove(before, after)
	require.True(t, ok)
	assert.Equal(t, 7, pit)
}

func TestVerifyMove_RejectsMultiMoveAndTamperedDiffs(t *testing.T) {
	before := NewBoard()
	one, err := ApplyMove(before, 2) // extra turn
	require.NoError(t, err)
	two, err := ApplyMove(one, 0)
	require.NoError(t, err)

	_, ok := VerifyMove(before, two)
	assert.False(t, ok)

	tampered := one
	tampered.Pits[9]++
	_, ok = VerifyMove(before, tampered)
	assert.False(t, ok)

	pit, ok := VerifyMove(before, one)
	require.True(t, ok)
	assert.Equal(t, 2, pit)
}
