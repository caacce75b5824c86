package archive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/session"
)

type Saver interface {
	SaveResult(ctx context.Context, g *Game) error
}

// Recorder saves a session's game once, when it first becomes terminal.
// A reset arms it again for the next game.
type Recorder struct {
	saver  Saver
	sess   *session.Session
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	base    Game
	started time.Time
	saved   bool
}

// Attach registers a Recorder on sess. base carries the room and player ids.
func Attach(sess *session.Session, saver Saver, base Game, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{saver: saver, sess: sess, logger: logger, now: time.Now, base: base}
	r.started = r.now()
	sess.OnChange(r.observe)
	return r
}

// SetGameID names the next saved game, e.g. after an online game was created.
func (r *Recorder) SetGameID(id string) {
	r.mu.Lock()
	r.base.GameID = id
	r.mu.Unlock()
}

// SetPlayers updates the ids stored with the next saved game.
func (r *Recorder) SetPlayers(player0, player1 string) {
	r.mu.Lock()
	r.base.Player0ID, r.base.Player1ID = player0, player1
	r.mu.Unlock()
}

func (r *Recorder) observe(b mancala.Board, rec *mancala.MoveRecord) {
	r.mu.Lock()
	if !mancala.IsTerminal(b) {
		if rec == nil && len(r.sess.History()) == 0 && r.saved {
			r.saved = false
			r.started = r.now()
			r.base.GameID = ""
		}
		r.mu.Unlock()
		return
	}
	if r.saved {
		r.mu.Unlock()
		return
	}
	r.saved = true
	g := r.base
	g.StartedAt = r.started
	r.mu.Unlock()

	if g.GameID == "" {
		g.GameID = uuid.NewString()
	}
	g.Mode = r.sess.Mode().String()
	g.Store0, g.Store1 = b.Store(mancala.Player0), b.Store(mancala.Player1)
	g.Winner = mancala.Winner(b).String()
	g.Moves = Notation(r.sess.History())
	g.EndedAt = r.now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.saver.SaveResult(ctx, &g); err != nil {
		r.logger.Warn("archive_save_error", zap.String("game_id", g.GameID), zap.Error(err))
		return
	}
	r.logger.Info("archive_saved",
		zap.String("game_id", g.GameID),
		zap.String("winner", g.Winner),
		zap.Int("moves", len(g.Moves)),
	)
}
