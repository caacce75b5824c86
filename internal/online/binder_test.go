package online

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/session"
	"github.com/park285/Cheese-Mancala-bot/internal/store"
)

func newSession() *session.Session {
	return session.New(session.ModeLocalPvP,
		session.WithLogger(zap.NewNop()),
		session.WithScheduler(session.Immediate),
	)
}

type pair struct {
	st          store.GameStore
	alice, bob  *session.Session
	hostB, gstB *Binder
	rec         *store.Record
}

func newPair(t *testing.T, st store.GameStore) *pair {
	t.Helper()
	ctx := context.Background()
	p := &pair{st: st, alice: newSession(), bob: newSession()}
	p.hostB = NewBinder(st, p.alice, "alice", nil)
	p.gstB = NewBinder(st, p.bob, "bob", nil)

	rec, err := p.hostB.Host(ctx)
	require.NoError(t, err)
	_, err = p.gstB.Join(ctx, rec.Code)
	require.NoError(t, err)
	p.rec = rec
	t.Cleanup(func() {
		_ = p.hostB.Close()
		_ = p.gstB.Close()
	})
	return p
}

func TestHostJoin_Seats(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	alice := newSession()
	host := NewBinder(st, alice, "alice", nil)
	var joined *store.Record
	host.OnPeerJoined(func(r *store.Record) { joined = r })

	rec, err := host.Host(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, host.GameID())
	assert.Equal(t, rec.Code, host.Code())
	assert.Equal(t, session.ModeOnline, alice.Mode())
	assert.Equal(t, mancala.Player0, alice.LocalSide())

	bob := newSession()
	guest := NewBinder(st, bob, "bob", nil)
	_, err = guest.Join(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, mancala.Player1, bob.LocalSide())
	require.NotNil(t, joined)
	assert.Equal(t, "bob", joined.GuestID)

	_, err = NewBinder(st, newSession(), "carol", nil).Join(ctx, rec.Code)
	assert.ErrorIs(t, err, store.ErrGuestTaken)
	_, err = NewBinder(st, newSession(), "alice", nil).Join(ctx, rec.Code)
	assert.ErrorIs(t, err, store.ErrInvalidArgs)
	_, err = NewBinder(st, newSession(), "dave", nil).Join(ctx, "MC-NOPE00")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMovesReplicateBothWays(t *testing.T) {
	p := newPair(t, store.NewMemoryStore())

	_, err := p.alice.RequestMove(session.SourceLocal, 0)
	require.NoError(t, err)
	assert.Equal(t, p.alice.Board(), p.bob.Board())
	require.Len(t, p.bob.History(), 1)

	_, err = p.bob.RequestMove(session.SourceLocal, 7)
	require.NoError(t, err)
	assert.Equal(t, p.bob.Board(), p.alice.Board())
	assert.Len(t, p.alice.History(), 2)

	rec, err := p.st.Get(context.Background(), p.rec.ID)
	require.NoError(t, err)
	assert.Equal(t, p.alice.Board(), rec.Board)
	assert.Equal(t, "bob", rec.LastMovePlayer)
}

func TestRemoteWithoutPit_VerifiedMove(t *testing.T) {
	p := newPair(t, store.NewMemoryStore())
	next, err := mancala.ApplyMove(p.alice.Board(), 0)
	require.NoError(t, err)
	// a writer that does not send the pit, e.g. an older web client
	_, err = p.st.Update(context.Background(), p.rec.ID, next, "alice", nil, store.AnyVersion)
	require.NoError(t, err)

	assert.Equal(t, next, p.bob.Board())
	h := p.bob.History()
	require.Len(t, h, 1)
	assert.Equal(t, 0, h[0].Pit)
}

func TestRemoteWithoutPit_UnknownBoardResyncs(t *testing.T) {
	p := newPair(t, store.NewMemoryStore())
	b := mancala.NewBoard()
	b, _ = mancala.ApplyMove(b, 1)
	b, _ = mancala.ApplyMove(b, 8)
	_, err := p.st.Update(context.Background(), p.rec.ID, b, "bob", nil, store.AnyVersion)
	require.NoError(t, err)

	assert.Equal(t, b, p.alice.Board())
	assert.Empty(t, p.alice.History())
}

func TestRemoteIllegalPit_UsesSnapshot(t *testing.T) {
	p := newPair(t, store.NewMemoryStore())
	b := mancala.NewBoard()
	b, _ = mancala.ApplyMove(b, 1)
	b, _ = mancala.ApplyMove(b, 8)
	pit := 9 // not playable for player 0 on alice's board
	_, err := p.st.Update(context.Background(), p.rec.ID, b, "bob", &pit, store.AnyVersion)
	require.NoError(t, err)

	assert.Equal(t, b, p.alice.Board())
	assert.Equal(t, session.PhaseIdle, p.alice.Phase())
}

func TestRemoteLegalPit_ForeignBoardResyncs(t *testing.T) {
	p := newPair(t, store.NewMemoryStore())
	_, err := p.alice.RequestMove(session.SourceLocal, 0)
	require.NoError(t, err)
	require.Equal(t, p.alice.Board(), p.bob.Board())

	// b1 is legal for bob on alice's board, but the stored board grew from a2, b2
	foreign := mancala.NewBoard()
	foreign, _ = mancala.ApplyMove(foreign, 1)
	foreign, _ = mancala.ApplyMove(foreign, 8)
	pit := 7
	_, err = p.st.Update(context.Background(), p.rec.ID, foreign, "bob", &pit, store.AnyVersion)
	require.NoError(t, err)

	assert.Equal(t, foreign, p.alice.Board())
	assert.Equal(t, session.PhaseIdle, p.alice.Phase())
	assert.Len(t, p.alice.History(), 1)
}

// deafStore never delivers changes, so a binder only learns of them when it writes.
type deafStore struct{ *store.MemoryStore }

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() error { return nil }

func (deafStore) Subscribe(context.Context, string, func(*store.Record)) (store.Subscription, error) {
	return nopSubscription{}, nil
}

func TestMoved_RetriesWhenOnlySeatsChanged(t *testing.T) {
	st := deafStore{store.NewMemoryStore()}
	ctx := context.Background()
	alice := newSession()
	host := NewBinder(st, alice, "alice", nil)
	rec, err := host.Host(ctx)
	require.NoError(t, err)
	joined, err := st.AssignGuest(ctx, rec.ID, "bob")
	require.NoError(t, err)
	require.Greater(t, joined.Version, rec.Version)

	_, err = alice.RequestMove(session.SourceLocal, 0)
	require.NoError(t, err)

	stored, err := st.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Board(), stored.Board)
	assert.Equal(t, joined.Version+1, stored.Version)
	require.NotNil(t, stored.LastMovePit)
	assert.Equal(t, 0, *stored.LastMovePit)
	assert.Equal(t, "alice", stored.LastMovePlayer)
}

func TestMoved_SupersededTakesStoredBoard(t *testing.T) {
	st := deafStore{store.NewMemoryStore()}
	ctx := context.Background()
	alice := newSession()
	host := NewBinder(st, alice, "alice", nil)
	rec, err := host.Host(ctx)
	require.NoError(t, err)
	_, err = st.AssignGuest(ctx, rec.ID, "bob")
	require.NoError(t, err)
	other, _ := mancala.ApplyMove(mancala.NewBoard(), 1)
	_, err = st.Update(ctx, rec.ID, other, "bob", nil, store.AnyVersion)
	require.NoError(t, err)

	_, err = alice.RequestMove(session.SourceLocal, 0)
	require.NoError(t, err)

	stored, err := st.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, other, stored.Board, "the stale move is not written")
	assert.Equal(t, "bob", stored.LastMovePlayer)
	assert.Equal(t, other, alice.Board())
}

func TestResync(t *testing.T) {
	p := newPair(t, store.NewMemoryStore())
	_, err := p.alice.RequestMove(session.SourceLocal, 2)
	require.NoError(t, err)

	wrong := mancala.NewBoard()
	require.NoError(t, p.bob.Sync(wrong))
	p.gstB.Resync()
	assert.Equal(t, p.alice.Board(), p.bob.Board())
}

type failingStore struct {
	store.GameStore
}

func (failingStore) Update(context.Context, string, mancala.Board, string, *int, int64) (*store.Record, error) {
	return nil, errors.New("redis down")
}

func TestUpdateFailureKeepsLocalGame(t *testing.T) {
	st := failingStore{GameStore: store.NewMemoryStore()}
	alice := newSession()
	host := NewBinder(st, alice, "alice", nil)
	_, err := host.Host(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })

	_, err = alice.RequestMove(session.SourceLocal, 0)
	require.NoError(t, err)
	assert.Len(t, alice.History(), 1)
}

func TestClose_StopsReplication(t *testing.T) {
	p := newPair(t, store.NewMemoryStore())
	require.NoError(t, p.gstB.Close())
	_, err := p.alice.RequestMove(session.SourceLocal, 0)
	require.NoError(t, err)
	assert.Equal(t, mancala.NewBoard(), p.bob.Board())
}
