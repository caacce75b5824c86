package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/obslog"
)

const (
	DefaultAIDelay     = 1500 * time.Millisecond
	DefaultSettleDelay = 50 * time.Millisecond
	DefaultDropStep    = 120 * time.Millisecond
	DefaultCaptureStep = 80 * time.Millisecond
)

// Session serializes local, AI and remote moves over one board. The mutex
// guards every field; phase Animating is the move gate.
type Session struct {
	mu sync.Mutex

	board    mancala.Board
	phase    Phase
	pending  []remoteMove
	mode     Mode
	history  []mancala.MoveRecord
	inflight *Animation
	// version changes on every board change, and on Sync/Reset
	version uint64

	localSide mancala.Player
	aiSide    mancala.Player
	aiLevel   mancala.Level
	aiDepth   int
	searcher  *mancala.Searcher

	host      Host
	notifier  Notifier
	schedule  Scheduler
	observers []Observer
	logger    *zap.Logger

	aiDelay     time.Duration
	settleDelay time.Duration
	dropStep    time.Duration
	captureStep time.Duration
}

type Option func(*Session)

func WithLocalSide(p mancala.Player) Option { return func(s *Session) { s.localSide = p } }
func WithAISide(p mancala.Player) Option    { return func(s *Session) { s.aiSide = p } }
func WithHost(h Host) Option                { return func(s *Session) { s.host = h } }
func WithNotifier(n Notifier) Option        { return func(s *Session) { s.notifier = n } }
func WithScheduler(f Scheduler) Option      { return func(s *Session) { s.schedule = f } }
func WithLogger(l *zap.Logger) Option       { return func(s *Session) { s.logger = l } }
func WithBoard(b mancala.Board) Option      { return func(s *Session) { s.board = b } }

func WithAIDepth(depth int) Option           { return func(s *Session) { s.aiDepth = depth } }
func WithAILevel(level mancala.Level) Option { return func(s *Session) { s.aiLevel = level } }

// WithTiming overrides the AI delay, remote settle delay and the two animation step delays.
func WithTiming(aiDelay, settle, drop, capture time.Duration) Option {
	return func(s *Session) {
		s.aiDelay, s.settleDelay, s.dropStep, s.captureStep = aiDelay, settle, drop, capture
	}
}

func New(mode Mode, opts ...Option) *Session {
	s := &Session{
		board:       mancala.NewBoard(),
		mode:        mode,
		localSide:   mancala.Player0,
		aiSide:      mancala.Player1,
		aiLevel:     mancala.LevelNormal,
		aiDelay:     DefaultAIDelay,
		settleDelay: DefaultSettleDelay,
		dropStep:    DefaultDropStep,
		captureStep: DefaultCaptureStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = obslog.L()
	}
	s.searcher = mancala.NewSearcher(s.aiLevel, s.aiDepth, s.logger)
	if s.host == nil {
		s.host = InstantHost{}
	}
	if s.schedule == nil {
		s.schedule = AfterFunc
	}
	return s
}

// OnChange registers an observer. Observers run outside the session lock.
func (s *Session) OnChange(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// RequestMove asks to play pit. Accepted moves return the animation already
// handed to the host. Remote moves that arrive while busy are queued and
// report ErrQueued.
func (s *Session) RequestMove(src Source, pit int) (*Animation, error) {
	if src == SourceRemote {
		return s.RequestRemote(pit, nil)
	}
	s.mu.Lock()
	anim, err := s.begin(src, pit)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, mancala.ErrIllegalMove) || errors.Is(err, ErrNotYourTurn) {
			s.logger.Debug("session_move_rejected",
				zap.String("source", src.String()), zap.Int("pit", pit), zap.Error(err))
		}
		return nil, err
	}
	s.host.Animate(anim)
	return anim, nil
}

// RequestRemote plays a move observed from the peer. snapshot, when known, is
// the peer's board after the move and is used to resynchronize if pit does not
// fit the local board.
func (s *Session) RequestRemote(pit int, snapshot *mancala.Board) (*Animation, error) {
	m := remoteMove{pit: pit, snapshot: snapshot}
	s.mu.Lock()
	if s.phase == PhaseAnimating || len(s.pending) > 0 {
		s.pending = append(s.pending, m)
		n := len(s.pending)
		s.mu.Unlock()
		s.logger.Debug("session_remote_queued", zap.Int("pit", pit), zap.Int("pending", n))
		return nil, ErrQueued
	}
	anim, fx, err := s.beginRemote(m)
	s.mu.Unlock()
	return s.afterRemote(anim, fx, err)
}

type resyncEffect struct {
	synced    *mancala.Board
	observers []Observer
	ask       Notifier
}

func (s *Session) afterRemote(anim *Animation, fx resyncEffect, err error) (*Animation, error) {
	if err != nil {
		if fx.synced != nil {
			for _, o := range fx.observers {
				o(*fx.synced, nil)
			}
		}
		if fx.ask != nil {
			fx.ask.Resync()
		}
		return nil, err
	}
	s.host.Animate(anim)
	return anim, nil
}

// beginRemote starts m or resynchronizes. A move carrying a snapshot is only
// animated when it reproduces that snapshot from the current board. Caller holds mu.
func (s *Session) beginRemote(m remoteMove) (*Animation, resyncEffect, error) {
	var (
		anim *Animation
		err  = s.checkSnapshot(m)
	)
	if err == nil {
		anim, err = s.begin(SourceRemote, m.pit)
	}
	if err == nil {
		return anim, resyncEffect{}, nil
	}
	s.logger.Warn("session_remote_out_of_sync",
		zap.Int("pit", m.pit),
		zap.String("board", s.board.String()),
		zap.Bool("has_snapshot", m.snapshot != nil),
		zap.Error(err),
	)
	var fx resyncEffect
	if m.snapshot != nil && m.snapshot.Validate() == nil {
		s.assign(*m.snapshot)
		b := s.board
		fx.synced = &b
		fx.observers = append([]Observer(nil), s.observers...)
	} else if s.notifier != nil {
		fx.ask = s.notifier
	}
	s.pending = nil
	return nil, fx, fmt.Errorf("%w: %w", ErrOutOfSync, err)
}

// checkSnapshot rejects a legal pit whose result is not m's snapshot.
// Illegal pits are left to begin. Caller holds mu.
func (s *Session) checkSnapshot(m remoteMove) error {
	if m.snapshot == nil || s.phase != PhaseIdle {
		return nil
	}
	next, err := mancala.ApplyMove(s.board, m.pit)
	if err != nil || next == *m.snapshot {
		return nil
	}
	return fmt.Errorf("%w: %s gives %s", ErrSnapshotMismatch, mancala.PitName(m.pit), next)
}

// begin validates a request and moves the session into Animating. Caller holds mu.
func (s *Session) begin(src Source, pit int) (*Animation, error) {
	if s.phase == PhaseAnimating {
		return nil, ErrBusy
	}
	if mancala.IsTerminal(s.board) {
		return nil, ErrGameOver
	}
	switch src {
	case SourceLocal:
		if s.mode == ModeVsAI && s.board.Current == s.aiSide {
			return nil, ErrNotYourTurn
		}
		if s.mode == ModeOnline && s.board.Current != s.localSide {
			return nil, ErrNotYourTurn
		}
	case SourceAI:
		if s.mode != ModeVsAI || s.board.Current != s.aiSide {
			return nil, ErrNotYourTurn
		}
	case SourceRemote:
		if s.mode == ModeOnline && s.board.Current == s.localSide {
			return nil, ErrNotYourTurn
		}
	}
	if err := mancala.CheckMove(s.board, pit); err != nil {
		return nil, err
	}
	anim := newAnimation(s, src, s.board, pit)
	s.phase = PhaseAnimating
	s.inflight = anim
	s.logger.Debug("session_move_start",
		zap.String("source", src.String()),
		zap.String("pit", mancala.PitName(pit)),
		zap.Ints("path", anim.Path),
		zap.Bool("capture", anim.Capture != nil),
	)
	return anim, nil
}

// Complete applies the authoritative result of anim. It returns false for an
// animation that is no longer in flight, e.g. after Reset or Sync.
func (s *Session) Complete(anim *Animation) bool {
	s.mu.Lock()
	if anim == nil || anim != s.inflight {
		s.mu.Unlock()
		s.logger.Debug("session_stale_animation")
		return false
	}
	turn, err := mancala.Play(anim.Pre, anim.Pit)
	if err != nil {
		// unreachable: anim.Pre was validated by begin
		s.phase = PhaseIdle
		s.inflight = nil
		s.mu.Unlock()
		s.logger.Error("session_complete_error", zap.Error(err))
		return false
	}
	rec := mancala.MoveRecord{Player: turn.Player, Pit: anim.Pit, ExtraTurn: turn.ExtraTurn}
	s.board = turn.Board
	s.history = append(s.history, rec)
	s.phase = PhaseIdle
	s.inflight = nil
	s.version++
	version := s.version
	board := s.board
	observers := append([]Observer(nil), s.observers...)
	notifier := s.notifier
	queued := len(s.pending) > 0
	s.mu.Unlock()

	s.logger.Info("session_move_finish",
		zap.String("source", anim.Source.String()),
		zap.String("pit", mancala.PitName(anim.Pit)),
		zap.Bool("extra_turn", turn.ExtraTurn),
		zap.Int("captured", turn.Captured),
		zap.String("board", board.String()),
	)
	for _, o := range observers {
		o(board, &rec)
	}
	if anim.Source != SourceRemote && notifier != nil {
		notifier.Moved(board, anim.Pit)
	}
	if queued {
		s.schedule(s.settleDelay, func() { s.dispatchPending(version) })
		return true
	}
	s.maybeScheduleAI(version)
	return true
}

func (s *Session) dispatchPending(version uint64) {
	s.mu.Lock()
	if s.version != version || s.phase != PhaseIdle || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	m := s.pending[0]
	s.pending = s.pending[1:]
	anim, fx, err := s.beginRemote(m)
	s.mu.Unlock()
	_, _ = s.afterRemote(anim, fx, err)
}

// Start schedules the AI when it is to move. Call it once observers are registered.
func (s *Session) Start() {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()
	s.maybeScheduleAI(version)
}

func (s *Session) maybeScheduleAI(version uint64) {
	s.mu.Lock()
	due := s.aiDue()
	s.mu.Unlock()
	if !due {
		return
	}
	s.schedule(s.aiDelay, func() { s.playAI(version) })
}

// aiDue reports whether the AI should move now. Caller holds mu.
func (s *Session) aiDue() bool {
	return s.mode == ModeVsAI && s.phase == PhaseIdle &&
		s.board.Current == s.aiSide && !mancala.IsTerminal(s.board)
}

func (s *Session) playAI(version uint64) {
	s.mu.Lock()
	if s.version != version || !s.aiDue() {
		s.mu.Unlock()
		return
	}
	b := s.board
	searcher := s.searcher
	s.mu.Unlock()

	pit, ok := searcher.BestMove(context.Background(), b)
	if !ok {
		return
	}
	s.mu.Lock()
	stale := s.version != version
	s.mu.Unlock()
	if stale {
		return
	}
	if _, err := s.RequestMove(SourceAI, pit); err != nil {
		s.logger.Debug("session_ai_move_dropped", zap.Int("pit", pit), zap.Error(err))
	}
}

// Sync replaces the board without animation. An in-flight animation becomes
// stale and queued remote moves are dropped.
func (s *Session) Sync(b mancala.Board) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.assign(b)
	version := s.version
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.logger.Info("session_sync", zap.String("board", b.String()))
	for _, o := range observers {
		o(b, nil)
	}
	s.maybeScheduleAI(version)
	return nil
}

// assign is the non-animated board replacement. Caller holds mu.
func (s *Session) assign(b mancala.Board) {
	s.board = b
	s.phase = PhaseIdle
	s.inflight = nil
	s.pending = nil
	s.version++
}

// Reset starts a new game. An in-flight animation becomes stale.
func (s *Session) Reset() {
	s.mu.Lock()
	s.assign(mancala.NewBoard())
	s.history = nil
	b := s.board
	version := s.version
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.logger.Info("session_reset", zap.String("mode", s.Mode().String()))
	for _, o := range observers {
		o(b, nil)
	}
	s.maybeScheduleAI(version)
}

func (s *Session) Board() mancala.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) History() []mancala.MoveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mancala.MoveRecord(nil), s.history...)
}

// Pending is the number of queued remote moves.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *Session) LocalSide() mancala.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localSide
}

func (s *Session) SetLocalSide(p mancala.Player) {
	s.mu.Lock()
	s.localSide = p
	s.mu.Unlock()
}

func (s *Session) AISide() mancala.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiSide
}

func (s *Session) SetAIDepth(depth int) {
	s.mu.Lock()
	s.aiDepth = depth
	s.searcher = mancala.NewSearcher(s.aiLevel, depth, s.logger)
	s.mu.Unlock()
}

// SetAILevel switches level and falls back to the level's own depth.
func (s *Session) SetAILevel(level mancala.Level) {
	s.mu.Lock()
	s.aiLevel = level
	s.aiDepth = 0
	s.searcher = mancala.NewSearcher(level, 0, s.logger)
	s.mu.Unlock()
}

func (s *Session) AILevel() mancala.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searcher.Level
}

func (s *Session) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

func (s *Session) Turn() mancala.Player { return s.Board().Current }

func (s *Session) IsOver() bool { return mancala.IsTerminal(s.Board()) }

func (s *Session) Winner() mancala.Outcome { return mancala.Winner(s.Board()) }

func (s *Session) IsLegal(pit int) bool { return mancala.IsLegalMove(s.Board(), pit) }

func (s *Session) IsAITurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode == ModeVsAI && s.board.Current == s.aiSide && !mancala.IsTerminal(s.board)
}
