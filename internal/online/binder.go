package online

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/session"
	"github.com/park285/Cheese-Mancala-bot/internal/store"
)

var ErrNotBound = errors.New("binder has no game")

const writeTimeout = 5 * time.Second

// Binder ties one local session to one stored game. It is the session's
// Notifier and the store subscription's handler.
type Binder struct {
	store    store.GameStore
	sess     *session.Session
	playerID string
	logger   *zap.Logger

	mu      sync.Mutex
	gameID  string
	code    string
	guestID string
	sub     store.Subscription
	onPeer  func(*store.Record)
	// newest stored record seen: its version guards writes, its board is
	// the base of the next local move
	version int64
	base    mancala.Board
}

func NewBinder(st store.GameStore, sess *session.Session, playerID string, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{store: st, sess: sess, playerID: strings.TrimSpace(playerID), logger: logger}
}

// OnPeerJoined is called once when a guest takes the second seat.
func (b *Binder) OnPeerJoined(f func(*store.Record)) {
	b.mu.Lock()
	b.onPeer = f
	b.mu.Unlock()
}

func (b *Binder) GameID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gameID
}

func (b *Binder) Code() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.code
}

// Host creates a new stored game and seats the session as player 0.
func (b *Binder) Host(ctx context.Context) (*store.Record, error) {
	rec, err := b.store.Create(ctx, mancala.NewBoard(), b.playerID)
	if err != nil {
		return nil, fmt.Errorf("create online game: %w", err)
	}
	if err := b.bind(ctx, rec, mancala.Player0); err != nil {
		return nil, err
	}
	b.logger.Info("online_host", zap.String("game_id", rec.ID), zap.String("code", rec.Code), zap.String("player_id", b.playerID))
	return rec, nil
}

// Join takes the guest seat of a game given by id or join code.
func (b *Binder) Join(ctx context.Context, idOrCode string) (*store.Record, error) {
	rec, err := b.store.FindByCode(ctx, idOrCode)
	if errors.Is(err, store.ErrNotFound) {
		rec, err = b.store.Get(ctx, strings.TrimSpace(idOrCode))
	}
	if err != nil {
		return nil, err
	}
	if rec.HostID == b.playerID {
		return nil, fmt.Errorf("%w: cannot join own game", store.ErrInvalidArgs)
	}
	rec, err = b.store.AssignGuest(ctx, rec.ID, b.playerID)
	if err != nil {
		return nil, err
	}
	if err := b.bind(ctx, rec, mancala.Player1); err != nil {
		return nil, err
	}
	b.logger.Info("online_join", zap.String("game_id", rec.ID), zap.String("player_id", b.playerID))
	return rec, nil
}

func (b *Binder) bind(ctx context.Context, rec *store.Record, side mancala.Player) error {
	b.mu.Lock()
	old := b.sub
	b.gameID, b.code, b.guestID, b.sub = rec.ID, rec.Code, rec.GuestID, nil
	b.version, b.base = rec.Version, rec.Board
	b.mu.Unlock()
	if old != nil {
		_ = old.Unsubscribe()
	}

	b.sess.SetMode(session.ModeOnline)
	b.sess.SetLocalSide(side)
	b.sess.SetNotifier(b)
	b.sess.Reset()
	if err := b.sess.Sync(rec.Board); err != nil {
		return err
	}

	sub, err := b.store.Subscribe(ctx, rec.ID, b.handle)
	if err != nil {
		return fmt.Errorf("subscribe online game: %w", err)
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()
	return nil
}

// observe records a stored record newer than any seen so far.
func (b *Binder) observe(rec *store.Record) {
	b.mu.Lock()
	if rec.ID == b.gameID && rec.Version > b.version {
		b.version, b.base = rec.Version, rec.Board
	}
	b.mu.Unlock()
}

// Moved pushes a local move against the last seen version. If the game moved
// on meanwhile, the write is retried only when the stored board is still the
// one the move was played from; otherwise the session takes the stored board.
// Other store failures are logged only; the local game goes on.
func (b *Binder) Moved(board mancala.Board, pit int) {
	b.mu.Lock()
	id, version, base := b.gameID, b.version, b.base
	b.mu.Unlock()
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	p := pit
	rec, err := b.store.Update(ctx, id, board, b.playerID, &p, version)
	if errors.Is(err, store.ErrConflict) {
		var cur *store.Record
		cur, err = b.store.Get(ctx, id)
		switch {
		case err != nil:
		case cur.Board == base:
			rec, err = b.store.Update(ctx, id, board, b.playerID, &p, cur.Version)
		default:
			b.logger.Info("online_move_superseded",
				zap.String("game_id", id), zap.Int("pit", pit), zap.String("remote", cur.Board.String()))
			b.observe(cur)
			b.desync(cur.Board)
			return
		}
	}
	if err != nil {
		b.logger.Warn("online_update_error", zap.String("game_id", id), zap.Int("pit", pit), zap.Error(err))
		return
	}
	b.observe(rec)
}

// Resync replaces the local board with the stored one.
func (b *Binder) Resync() {
	id := b.GameID()
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	rec, err := b.store.Get(ctx, id)
	if err != nil {
		b.logger.Warn("online_resync_error", zap.String("game_id", id), zap.Error(err))
		return
	}
	b.observe(rec)
	b.desync(rec.Board)
}

func (b *Binder) desync(board mancala.Board) {
	if err := b.sess.Sync(board); err != nil {
		b.logger.Warn("online_sync_rejected", zap.String("board", board.String()), zap.Error(err))
	}
}

func (b *Binder) handle(rec *store.Record) {
	b.mu.Lock()
	if rec.ID != b.gameID {
		b.mu.Unlock()
		return
	}
	if rec.Version > b.version {
		b.version, b.base = rec.Version, rec.Board
	}
	var joined func(*store.Record)
	if rec.GuestID != "" && b.guestID == "" {
		b.guestID = rec.GuestID
		joined = b.onPeer
	}
	b.mu.Unlock()
	if joined != nil {
		joined(rec)
	}

	if rec.LastMovePlayer == "" || rec.LastMovePlayer == b.playerID {
		return
	}
	local := b.sess.Board()
	if rec.Board == local {
		return
	}
	snapshot := rec.Board
	if rec.LastMovePit != nil {
		b.remote(*rec.LastMovePit, &snapshot)
		return
	}
	if pit, ok := mancala.VerifyMove(local, rec.Board); ok {
		b.remote(pit, &snapshot)
		return
	}
	if pit, ok := mancala.InferMove(local, rec.Board); ok {
		if next, err := mancala.ApplyMove(local, pit); err == nil && next == rec.Board {
			b.remote(pit, &snapshot)
			return
		}
	}
	b.logger.Info("online_desync", zap.String("game_id", rec.ID), zap.String("local", local.String()), zap.String("remote", rec.Board.String()))
	b.desync(rec.Board)
}

func (b *Binder) remote(pit int, snapshot *mancala.Board) {
	_, err := b.sess.RequestRemote(pit, snapshot)
	if err != nil && !errors.Is(err, session.ErrQueued) {
		b.logger.Debug("online_remote_dropped", zap.Int("pit", pit), zap.Error(err))
	}
}

// Close stops listening for remote changes. The session keeps its board.
func (b *Binder) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}
