package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

type manualHost struct{ anims []*Animation }

func (h *manualHost) Animate(a *Animation) { h.anims = append(h.anims, a) }

func (h *manualHost) last(t *testing.T) *Animation {
	t.Helper()
	require.NotEmpty(t, h.anims)
	return h.anims[len(h.anims)-1]
}

type fakeNotifier struct {
	mu      sync.Mutex
	moved   []int
	resyncs int
}

func (n *fakeNotifier) Moved(_ mancala.Board, pit int) {
	n.mu.Lock()
	n.moved = append(n.moved, pit)
	n.mu.Unlock()
}

func (n *fakeNotifier) Resync() {
	n.mu.Lock()
	n.resyncs++
	n.mu.Unlock()
}

// queueScheduler keeps scheduled work until run is called.
type queueScheduler struct{ fns []func() }

func (q *queueScheduler) schedule(_ time.Duration, f func()) { q.fns = append(q.fns, f) }

func (q *queueScheduler) run() {
	fns := q.fns
	q.fns = nil
	for _, f := range fns {
		f()
	}
}

func newTestSession(mode Mode, opts ...Option) *Session {
	base := []Option{WithLogger(zap.NewNop()), WithScheduler(Immediate)}
	return New(mode, append(base, opts...)...)
}

func TestLocalMove_InstantHost(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestSession(ModeLocalPvP, WithNotifier(n))
	var seen []*mancala.MoveRecord
	s.OnChange(func(_ mancala.Board, rec *mancala.MoveRecord) { seen = append(seen, rec) })

	anim, err := s.RequestMove(SourceLocal, 0)
	require.NoError(t, err)
	require.NotNil(t, anim)

	want, _ := mancala.ApplyMove(mancala.NewBoard(), 0)
	assert.Equal(t, want, s.Board())
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, []mancala.MoveRecord{{Player: mancala.Player0, Pit: 0}}, s.History())
	require.Len(t, seen, 1)
	assert.Equal(t, 0, seen[0].Pit)
	assert.Equal(t, []int{0}, n.moved)
}

func TestRequestMove_Rejections(t *testing.T) {
	s := newTestSession(ModeLocalPvP)
	_, err := s.RequestMove(SourceLocal, 8)
	assert.ErrorIs(t, err, mancala.ErrIllegalMove)
	_, err = s.RequestMove(SourceLocal, 14)
	assert.ErrorIs(t, err, mancala.ErrIllegalMove)
	assert.Equal(t, mancala.NewBoard(), s.Board())
	assert.Empty(t, s.History())

	var over mancala.Board
	over.Pits[mancala.StoreA] = 30
	over.Pits[mancala.StoreB] = 18
	s = newTestSession(ModeLocalPvP, WithBoard(over))
	_, err = s.RequestMove(SourceLocal, 0)
	assert.ErrorIs(t, err, ErrGameOver)
	assert.True(t, s.IsOver())
	assert.Equal(t, mancala.Player0Wins, s.Winner())
}

func TestAnimating_BlocksLocalAndQueuesRemote(t *testing.T) {
	h := &manualHost{}
	n := &fakeNotifier{}
	s := newTestSession(ModeLocalPvP, WithHost(h), WithNotifier(n))

	first, err := s.RequestMove(SourceLocal, 0)
	require.NoError(t, err)
	assert.Equal(t, PhaseAnimating, s.Phase())
	assert.Equal(t, mancala.NewBoard(), s.Board(), "board only changes on completion")

	_, err = s.RequestMove(SourceLocal, 1)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.RequestMove(SourceRemote, 7)
	assert.ErrorIs(t, err, ErrQueued)
	_, err = s.RequestMove(SourceRemote, 1)
	assert.ErrorIs(t, err, ErrQueued)
	assert.Equal(t, 2, s.Pending())

	require.True(t, first.Finish())
	require.Len(t, h.anims, 2, "first queued remote move dispatched after settle")
	second := h.last(t)
	assert.Equal(t, SourceRemote, second.Source)
	assert.Equal(t, 7, second.Pit)
	assert.Equal(t, 1, s.Pending())

	require.True(t, second.Finish())
	require.Len(t, h.anims, 3)
	third := h.last(t)
	assert.Equal(t, 1, third.Pit)
	assert.Equal(t, 0, s.Pending())
	require.True(t, third.Finish())

	b, _ := mancala.ApplyMove(mancala.NewBoard(), 0)
	b, _ = mancala.ApplyMove(b, 7)
	b, _ = mancala.ApplyMove(b, 1)
	assert.Equal(t, b, s.Board())
	assert.Len(t, s.History(), 3)
	assert.Equal(t, []int{0}, n.moved, "remote moves are not echoed")
}

func TestComplete_IgnoresDuplicateFinish(t *testing.T) {
	h := &manualHost{}
	s := newTestSession(ModeLocalPvP, WithHost(h))
	anim, err := s.RequestMove(SourceLocal, 2)
	require.NoError(t, err)
	require.True(t, anim.Finish())
	assert.False(t, anim.Finish())
	assert.Len(t, s.History(), 1)
	assert.True(t, s.History()[0].ExtraTurn)
	assert.Equal(t, mancala.Player0, s.Turn())
}

func TestReset_DuringAnimationMakesItStale(t *testing.T) {
	h := &manualHost{}
	s := newTestSession(ModeLocalPvP, WithHost(h))
	anim, err := s.RequestMove(SourceLocal, 3)
	require.NoError(t, err)
	_, err = s.RequestMove(SourceRemote, 9)
	require.ErrorIs(t, err, ErrQueued)

	s.Reset()
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, 0, s.Pending())
	assert.False(t, anim.Finish())
	assert.Equal(t, mancala.NewBoard(), s.Board())
	assert.Empty(t, s.History())
	assert.Len(t, h.anims, 1)
}

func TestSync(t *testing.T) {
	h := &manualHost{}
	s := newTestSession(ModeLocalPvP, WithHost(h))
	var synced []mancala.Board
	s.OnChange(func(b mancala.Board, rec *mancala.MoveRecord) {
		if rec == nil {
			synced = append(synced, b)
		}
	})
	anim, err := s.RequestMove(SourceLocal, 0)
	require.NoError(t, err)

	target, _ := mancala.ApplyMove(mancala.NewBoard(), 5)
	require.NoError(t, s.Sync(target))
	assert.Equal(t, target, s.Board())
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.False(t, anim.Finish())
	assert.Equal(t, []mancala.Board{target}, synced)

	bad := target
	bad.Pits[0]++
	assert.ErrorIs(t, s.Sync(bad), mancala.ErrInvalidBoard)
	assert.Equal(t, target, s.Board())
}

func TestRemote_IllegalWithSnapshotResyncs(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestSession(ModeOnline, WithLocalSide(mancala.Player1), WithNotifier(n))
	snapshot, _ := mancala.ApplyMove(mancala.NewBoard(), 1)

	_, err := s.RequestRemote(8, &snapshot)
	assert.ErrorIs(t, err, ErrOutOfSync)
	assert.ErrorIs(t, err, mancala.ErrIllegalMove)
	assert.Equal(t, snapshot, s.Board())
	assert.Equal(t, 0, n.resyncs)
}

func TestRemote_IllegalWithoutSnapshotAsksNotifier(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestSession(ModeOnline, WithLocalSide(mancala.Player1), WithNotifier(n))
	_, err := s.RequestMove(SourceRemote, 8)
	assert.ErrorIs(t, err, ErrOutOfSync)
	assert.Equal(t, mancala.NewBoard(), s.Board())
	assert.Equal(t, 1, n.resyncs)
}

func TestRemote_LegalPitWithForeignSnapshotResyncs(t *testing.T) {
	h := &manualHost{}
	n := &fakeNotifier{}
	s := newTestSession(ModeOnline, WithLocalSide(mancala.Player1), WithHost(h), WithNotifier(n))
	var synced []mancala.Board
	s.OnChange(func(b mancala.Board, rec *mancala.MoveRecord) {
		if rec == nil {
			synced = append(synced, b)
		}
	})
	// a1 is legal here, but the peer's board is the result of a2
	foreign, _ := mancala.ApplyMove(mancala.NewBoard(), 1)

	_, err := s.RequestRemote(0, &foreign)
	assert.ErrorIs(t, err, ErrOutOfSync)
	assert.ErrorIs(t, err, ErrSnapshotMismatch)
	assert.Equal(t, foreign, s.Board())
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Empty(t, h.anims)
	assert.Empty(t, s.History())
	assert.Equal(t, []mancala.Board{foreign}, synced)
	assert.Equal(t, 0, n.resyncs)
}

func TestRemote_QueuedMoveCheckedAgainstBoardAfterCompletion(t *testing.T) {
	h := &manualHost{}
	s := newTestSession(ModeOnline, WithLocalSide(mancala.Player1), WithHost(h))
	afterA3, _ := mancala.ApplyMove(mancala.NewBoard(), 2)
	foreign, _ := mancala.ApplyMove(afterA3, 1)

	first, err := s.RequestRemote(2, &afterA3)
	require.NoError(t, err, "a snapshot that matches is animated")
	_, err = s.RequestRemote(0, &foreign)
	require.ErrorIs(t, err, ErrQueued)

	require.True(t, first.Finish())
	assert.Len(t, h.anims, 1, "queued move with a foreign snapshot is not animated")
	assert.Equal(t, foreign, s.Board())
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, []mancala.MoveRecord{{Player: mancala.Player0, Pit: 2, ExtraTurn: true}}, s.History())
}

func TestOnline_TurnOwnership(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestSession(ModeOnline, WithLocalSide(mancala.Player1), WithNotifier(n))
	_, err := s.RequestMove(SourceLocal, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = s.RequestMove(SourceRemote, 0)
	require.NoError(t, err)
	assert.Empty(t, n.moved)

	_, err = s.RequestMove(SourceLocal, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, n.moved)
}

func TestVsAI_PlaysAfterLocalMove(t *testing.T) {
	q := &queueScheduler{}
	s := newTestSession(ModeVsAI, WithScheduler(q.schedule), WithAIDepth(2))

	_, err := s.RequestMove(SourceLocal, 0)
	require.NoError(t, err)
	assert.True(t, s.IsAITurn())
	require.Len(t, q.fns, 1)

	_, err = s.RequestMove(SourceLocal, 7)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	// run until the AI hands the turn back
	for i := 0; i < 10 && len(q.fns) > 0; i++ {
		q.run()
	}
	h := s.History()
	require.GreaterOrEqual(t, len(h), 2)
	assert.Equal(t, mancala.Player1, h[1].Player)
	assert.False(t, s.IsAITurn())
}

func TestVsAI_StaleTimerAfterReset(t *testing.T) {
	q := &queueScheduler{}
	s := newTestSession(ModeVsAI, WithScheduler(q.schedule))
	_, err := s.RequestMove(SourceLocal, 0)
	require.NoError(t, err)
	require.Len(t, q.fns, 1)

	s.Reset()
	q.run()
	assert.Empty(t, s.History())
	assert.Equal(t, mancala.NewBoard(), s.Board())
}

func TestVsAI_StartWhenAIOpens(t *testing.T) {
	s := newTestSession(ModeVsAI, WithAISide(mancala.Player0), WithAILevel(mancala.LevelEasy))
	s.Start()
	h := s.History()
	require.NotEmpty(t, h)
	assert.Equal(t, mancala.Player0, h[0].Player)
	assert.Equal(t, mancala.LevelEasy, s.AILevel())
}

func TestVsAI_SelfPlayToTheEnd(t *testing.T) {
	s := newTestSession(ModeVsAI, WithAIDepth(1))
	for i := 0; i < 200 && !s.IsOver(); i++ {
		b := s.Board()
		require.Equal(t, mancala.Player0, b.Current)
		pit := mancala.LegalMoves(b)[0]
		_, err := s.RequestMove(SourceLocal, pit)
		require.NoError(t, err)
	}
	require.True(t, s.IsOver())
	b := s.Board()
	assert.Equal(t, mancala.TotalSeeds, b.Store(mancala.Player0)+b.Store(mancala.Player1))
}

func TestTimedHost(t *testing.T) {
	var mu sync.Mutex
	steps := 0
	host := NewTimedHost(t.Context(), func(_ *Animation, _ Step) {
		mu.Lock()
		steps++
		mu.Unlock()
	})
	s := New(ModeLocalPvP,
		WithLogger(zap.NewNop()),
		WithHost(host),
		WithTiming(0, 0, time.Millisecond, time.Millisecond),
	)
	done := make(chan struct{})
	s.OnChange(func(mancala.Board, *mancala.MoveRecord) { close(done) })

	_, err := s.RequestMove(SourceLocal, 0)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("animation never finished")
	}
	host.Wait()
	mu.Lock()
	assert.Equal(t, 5, steps)
	mu.Unlock()
	assert.Equal(t, PhaseIdle, s.Phase())
}
