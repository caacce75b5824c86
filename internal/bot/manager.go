package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/archive"
	"github.com/park285/Cheese-Mancala-bot/internal/irisfast"
	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/online"
	"github.com/park285/Cheese-Mancala-bot/internal/render"
	"github.com/park285/Cheese-Mancala-bot/internal/session"
	"github.com/park285/Cheese-Mancala-bot/internal/store"
)

const (
	replyTimeout = 10 * time.Second
	historyLimit = 5
)

// Archive stores finished games and lists them per room.
type Archive interface {
	archive.Saver
	Recent(ctx context.Context, room string, limit int) ([]*archive.Game, error)
}

type Config struct {
	Prefix string
	// AIDepth applies when a game is started without an explicit level.
	AIDepth int
	AIDelay time.Duration
}

type Option func(*Manager)

// WithStore enables online games.
func WithStore(st store.GameStore) Option { return func(m *Manager) { m.store = st } }

func WithArchive(a Archive) Option { return func(m *Manager) { m.archive = a } }

func WithScheduler(f session.Scheduler) Option { return func(m *Manager) { m.schedule = f } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// Manager keeps one game per chat room and turns chat commands into session calls.
// Every finished move, whoever made it, is announced by the room's session observer.
type Manager struct {
	cfg      Config
	present  *Presenter
	format   *Formatter
	store    store.GameStore
	archive  Archive
	schedule session.Scheduler
	logger   *zap.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	id       string
	sess     *session.Session
	binder   *online.Binder
	recorder *archive.Recorder

	mu   sync.Mutex
	prev mancala.Board
}

func NewManager(cfg Config, present *Presenter, format *Formatter, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		present:  present,
		format:   format,
		schedule: session.AfterFunc,
		rooms:    make(map[string]*room),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Handle runs one chat message. Messages without the command prefix are ignored.
func (m *Manager) Handle(ctx context.Context, msg *irisfast.Message) {
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Msg)
	if m.cfg.Prefix == "" || !strings.HasPrefix(text, m.cfg.Prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(text, m.cfg.Prefix))
	cmd, args := "", []string(nil)
	if len(fields) > 0 {
		cmd, args = strings.ToLower(fields[0]), fields[1:]
	}

	switch cmd {
	case "", "도움", "help":
		m.reply(ctx, msg.Room, m.format.Help())
	case "시작", "start":
		m.start(ctx, msg.Room, args)
	case "현황", "status":
		m.status(ctx, msg.Room)
	case "기록", "history":
		m.history(ctx, msg.Room)
	case "리셋", "reset":
		m.reset(ctx, msg.Room)
	case "온라인", "host":
		m.host(ctx, msg)
	case "참가", "join":
		m.join(ctx, msg, args)
	default:
		m.move(ctx, msg, cmd)
	}
}

func (m *Manager) room(id string) *room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[id]
}

// replace installs r for its room and unbinds the previous online game, if any.
func (m *Manager) replace(r *room) {
	m.mu.Lock()
	old := m.rooms[r.id]
	m.rooms[r.id] = r
	m.mu.Unlock()
	if old != nil && old.binder != nil {
		_ = old.binder.Close()
	}
}

func (m *Manager) drop(id string) {
	m.mu.Lock()
	old := m.rooms[id]
	delete(m.rooms, id)
	m.mu.Unlock()
	if old != nil && old.binder != nil {
		_ = old.binder.Close()
	}
}

func (m *Manager) newRoom(id string, mode session.Mode, level mancala.Level, explicit bool) *room {
	opts := []session.Option{
		session.WithHost(session.InstantHost{}),
		session.WithScheduler(m.schedule),
		session.WithLogger(m.logger.With(zap.String("room", id))),
		session.WithAILevel(level),
		session.WithTiming(m.cfg.AIDelay, session.DefaultSettleDelay, session.DefaultDropStep, session.DefaultCaptureStep),
	}
	if !explicit {
		opts = append(opts, session.WithAIDepth(m.cfg.AIDepth))
	}
	sess := session.New(mode, opts...)
	r := &room{id: id, sess: sess, prev: sess.Board()}
	if m.archive != nil {
		r.recorder = archive.Attach(sess, m.archive, archive.Game{Room: id}, m.logger)
	}
	sess.OnChange(func(b mancala.Board, rec *mancala.MoveRecord) { m.observe(r, b, rec) })
	return r
}

func (m *Manager) observe(r *room, b mancala.Board, rec *mancala.MoveRecord) {
	r.mu.Lock()
	prev := r.prev
	r.prev = b
	r.mu.Unlock()
	if rec == nil {
		return
	}

	var turn *mancala.Turn
	if t, err := mancala.Play(prev, rec.Pit); err == nil && t.Board == b {
		turn = &t
	}
	byAI := r.sess.Mode() == session.ModeVsAI && rec.Player == r.sess.AISide()
	pit := rec.Pit
	opts := render.Options{LastPit: &pit, Title: boardTitle(b, rec)}
	if turn != nil {
		opts.Path = turn.Path
	}

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()
	if err := m.present.Board(ctx, r.id, m.format.Move(*rec, turn, byAI, b), b, opts); err != nil {
		m.logger.Warn("bot_reply_error", zap.String("room", r.id), zap.Error(err))
	}
}

func (m *Manager) start(ctx context.Context, roomID string, args []string) {
	mode, level, explicit := session.ModeVsAI, mancala.LevelNormal, false
	for _, a := range args {
		switch strings.ToLower(a) {
		case "ai", "컴퓨터":
			mode = session.ModeVsAI
		case "pvp", "2인":
			mode = session.ModeLocalPvP
		default:
			l, ok := mancala.ParseLevel(a)
			if !ok {
				m.reply(ctx, roomID, m.format.Error("unknown", nil))
				return
			}
			level, explicit = l, true
		}
	}
	if r := m.room(roomID); r != nil && len(r.sess.History()) > 0 && !r.sess.IsOver() {
		m.reply(ctx, roomID, m.format.msg("start.in_progress", nil))
		return
	}

	r := m.newRoom(roomID, mode, level, explicit)
	m.replace(r)
	m.logger.Info("bot_game_start", zap.String("room", roomID), zap.String("mode", mode.String()), zap.String("level", string(level)))
	m.board(ctx, r, m.format.Start(mode, r.sess.AILevel()))
	r.sess.Start()
}

func (m *Manager) move(ctx context.Context, msg *irisfast.Message, token string) {
	r := m.room(msg.Room)
	var current mancala.Player
	if r != nil {
		current = r.sess.Turn()
	}
	pit, ok := parseMove(token, current)
	if !ok {
		m.reply(ctx, msg.Room, m.format.Error("unknown", nil))
		return
	}
	if r == nil {
		m.reply(ctx, msg.Room, m.format.Error("no_game", nil))
		return
	}
	b := r.sess.Board()
	if mancala.IsTerminal(b) {
		m.reply(ctx, msg.Room, m.format.Error("over", nil))
		return
	}

	_, err := r.sess.RequestMove(session.SourceLocal, pit)
	switch {
	case err == nil:
	case errors.Is(err, mancala.ErrIllegalMove):
		m.reply(ctx, msg.Room, m.format.Error("illegal", errors.New(illegalReason(b, pit))))
	case errors.Is(err, session.ErrNotYourTurn):
		m.reply(ctx, msg.Room, m.format.Error("not_your_turn", nil))
	case errors.Is(err, session.ErrBusy):
		m.reply(ctx, msg.Room, m.format.Error("busy", nil))
	case errors.Is(err, session.ErrGameOver):
		m.reply(ctx, msg.Room, m.format.Error("over", nil))
	default:
		m.logger.Warn("bot_move_error", zap.String("room", msg.Room), zap.Int("pit", pit), zap.Error(err))
	}
}

// parseMove reads "a3"/"b5" or a pit number 1..6 on the side to move.
func parseMove(token string, current mancala.Player) (int, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if len(token) == 1 && token[0] >= '1' && token[0] <= '6' {
		return mancala.RelativePit(current, int(token[0]-'0'))
	}
	if len(token) != 2 || (token[0] != 'a' && token[0] != 'b') {
		return 0, false
	}
	pit, err := mancala.ParsePit(token)
	if err != nil {
		return 0, false
	}
	return pit, true
}

func illegalReason(b mancala.Board, pit int) string {
	switch {
	case pit == mancala.StoreA || pit == mancala.StoreB:
		return "창고는 고를 수 없습니다"
	case !b.Current.Owns(pit):
		return "상대 진영 칸입니다"
	case b.Pits[pit] == 0:
		return "빈 칸입니다"
	}
	return mancala.PitName(pit)
}

func (m *Manager) status(ctx context.Context, roomID string) {
	r := m.room(roomID)
	if r == nil {
		m.reply(ctx, roomID, m.format.Error("no_game", nil))
		return
	}
	b := r.sess.Board()
	m.board(ctx, r, m.format.Status(r.sess.Mode(), b, len(r.sess.History())))
}

func (m *Manager) history(ctx context.Context, roomID string) {
	var current []mancala.MoveRecord
	if r := m.room(roomID); r != nil {
		current = r.sess.History()
	}
	var games []*archive.Game
	if m.archive != nil {
		var err error
		games, err = m.archive.Recent(ctx, roomID, historyLimit)
		if err != nil {
			m.logger.Warn("bot_history_error", zap.String("room", roomID), zap.Error(err))
			m.reply(ctx, roomID, m.format.Error("history", err))
			return
		}
	}
	m.reply(ctx, roomID, m.format.History(games, current))
}

func (m *Manager) reset(ctx context.Context, roomID string) {
	r := m.room(roomID)
	if r == nil {
		m.reply(ctx, roomID, m.format.Error("no_game", nil))
		return
	}
	if r.binder != nil {
		// an online game cannot restart on one side only
		m.drop(roomID)
		m.reply(ctx, roomID, m.format.Reset())
		return
	}
	r.sess.Reset()
	m.board(ctx, r, m.format.Reset())
}

func (m *Manager) host(ctx context.Context, msg *irisfast.Message) {
	if m.store == nil {
		m.reply(ctx, msg.Room, m.format.OnlineDisabled())
		return
	}
	r, binder := m.onlineRoom(msg)
	rec, err := binder.Host(ctx)
	if err != nil {
		m.logger.Warn("bot_host_error", zap.String("room", msg.Room), zap.Error(err))
		m.reply(ctx, msg.Room, m.format.Error("host", err))
		return
	}
	if r.recorder != nil {
		r.recorder.SetGameID(rec.ID)
		r.recorder.SetPlayers(rec.HostID, "")
	}
	m.replace(r)
	m.board(ctx, r, m.format.Hosted(rec.Code))
}

func (m *Manager) join(ctx context.Context, msg *irisfast.Message, args []string) {
	if m.store == nil {
		m.reply(ctx, msg.Room, m.format.OnlineDisabled())
		return
	}
	if len(args) == 0 {
		m.reply(ctx, msg.Room, m.format.Error("join_usage", nil))
		return
	}
	r, binder := m.onlineRoom(msg)
	rec, err := binder.Join(ctx, args[0])
	if err != nil {
		m.logger.Info("bot_join_rejected", zap.String("room", msg.Room), zap.Error(err))
		m.reply(ctx, msg.Room, m.format.Error("join", errors.New(joinReason(err))))
		return
	}
	if r.recorder != nil {
		r.recorder.SetGameID(rec.ID)
		r.recorder.SetPlayers(rec.HostID, rec.GuestID)
	}
	m.replace(r)
	m.board(ctx, r, m.format.Joined())
}

// onlineRoom prepares a room whose session is driven by an online.Binder.
// The room is installed only once hosting or joining succeeded.
func (m *Manager) onlineRoom(msg *irisfast.Message) (*room, *online.Binder) {
	r := m.newRoom(msg.Room, session.ModeOnline, mancala.LevelNormal, false)
	player := strings.TrimSpace(msg.UserID())
	if player == "" {
		player = "room:" + msg.Room
	}
	binder := online.NewBinder(m.store, r.sess, player, m.logger.With(zap.String("room", msg.Room)))
	binder.OnPeerJoined(func(rec *store.Record) {
		if r.recorder != nil {
			r.recorder.SetPlayers(rec.HostID, rec.GuestID)
		}
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		m.board(ctx, r, m.format.PeerJoined())
	})
	r.binder = binder
	return r, binder
}

func joinReason(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "대국을 찾을 수 없습니다"
	case errors.Is(err, store.ErrGuestTaken):
		return "이미 상대가 있습니다"
	case errors.Is(err, store.ErrInvalidArgs):
		return "자신의 대국에는 참가할 수 없습니다"
	}
	return err.Error()
}

func (m *Manager) board(ctx context.Context, r *room, text string) {
	b := r.sess.Board()
	opts := render.Options{Title: boardTitle(b, nil)}
	if err := m.present.Board(ctx, r.id, text, b, opts); err != nil {
		m.logger.Warn("bot_reply_error", zap.String("room", r.id), zap.Error(err))
	}
}

func (m *Manager) reply(ctx context.Context, roomID, text string) {
	if err := m.present.Text(ctx, roomID, text); err != nil {
		m.logger.Warn("bot_reply_error", zap.String("room", roomID), zap.Error(err))
	}
}

// boardTitle is the ASCII caption drawn on board images.
func boardTitle(b mancala.Board, rec *mancala.MoveRecord) string {
	if mancala.IsTerminal(b) {
		return fmt.Sprintf("game over  a0 %d : %d b0", b.Store(mancala.Player0), b.Store(mancala.Player1))
	}
	if rec == nil {
		return fmt.Sprintf("%s to move", b.Current.Label())
	}
	return fmt.Sprintf("%s played %s, %s to move", rec.Player.Label(), mancala.PitName(rec.Pit), b.Current.Label())
}

// Close unbinds every online game.
func (m *Manager) Close() {
	m.mu.Lock()
	rooms := make([]*room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*room)
	m.mu.Unlock()
	for _, r := range rooms {
		if r.binder != nil {
			_ = r.binder.Close()
		}
	}
}
