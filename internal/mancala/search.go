package mancala

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultDepth = 4
	MaxDepth     = 10
)

// Level selects how the AI picks its moves.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelNormal Level = "normal"
	LevelHard   Level = "hard"
)

func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "쉬움":
		return LevelEasy, true
	case "normal", "", "보통":
		return LevelNormal, true
	case "hard", "어려움":
		return LevelHard, true
	}
	return LevelNormal, false
}

// Depth is the search depth used for the level; easy plays random moves.
func (l Level) Depth() int {
	switch l {
	case LevelEasy:
		return 0
	case LevelHard:
		return DefaultDepth + 2
	}
	return DefaultDepth
}

func Evaluate(b Board, ai Player) int { return Heuristic(b, ai) }

// Search is depth-limited minimax scored from ai's point of view. After an extra
// turn the same side moves again, so maximizing only flips when the side to move changes.
func Search(b Board, depth int, maximizing bool, ai Player) int {
	return minimax(b, depth, maximizing, ai, nil)
}

func minimax(b Board, depth int, maximizing bool, ai Player, nodes *int) int {
	if nodes != nil {
		*nodes++
	}
	if depth <= 0 || IsTerminal(b) {
		return Evaluate(b, ai)
	}
	best := math.MaxInt
	if maximizing {
		best = math.MinInt
	}
	for _, pit := range LegalMoves(b) {
		next, err := ApplyMove(b, pit)
		if err != nil {
			continue
		}
		child := maximizing
		if next.Current != b.Current {
			child = !maximizing
		}
		score := minimax(next, depth-1, child, ai, nodes)
		if maximizing && score > best {
			best = score
		} else if !maximizing && score < best {
			best = score
		}
	}
	return best
}

// BestMove returns the root move with the strictly highest score; ties keep the
// lowest pit. The root side is assumed to be ai. ok is false when b has no legal move.
func BestMove(b Board, ai Player, depth int) (int, bool) {
	pit, _, ok := bestMove(context.Background(), b, ai, depth, nil)
	return pit, ok
}

func bestMove(ctx context.Context, b Board, ai Player, depth int, nodes *int) (pit, score int, ok bool) {
	if depth < 1 {
		depth = 1
	}
	pit, score = -1, math.MinInt
	for _, mv := range LegalMoves(b) {
		if ok && ctx.Err() != nil {
			break
		}
		next, err := ApplyMove(b, mv)
		if err != nil {
			continue
		}
		s := minimax(next, depth-1, next.Current == b.Current, ai, nodes)
		if s > score {
			pit, score, ok = mv, s, true
		}
	}
	return pit, score, ok
}

// RandomMove picks a uniformly random legal move.
func RandomMove(b Board, rng *rand.Rand) (int, bool) {
	moves := LegalMoves(b)
	if len(moves) == 0 {
		return 0, false
	}
	if rng == nil {
		return moves[rand.IntN(len(moves))], true
	}
	return moves[rng.IntN(len(moves))], true
}

// Searcher picks moves for the side to move according to its level.
type Searcher struct {
	Level  Level
	Depth  int
	Rand   *rand.Rand
	Logger *zap.Logger
}

func NewSearcher(level Level, depth int, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if depth <= 0 {
		depth = level.Depth()
	}
	if depth > MaxDepth {
		depth = MaxDepth
	}
	return &Searcher{Level: level, Depth: depth, Logger: logger}
}

// BestMove searches for b.Current. Cancellation is checked between root moves and
// the best move found so far is returned.
func (s *Searcher) BestMove(ctx context.Context, b Board) (int, bool) {
	if s == nil {
		return BestMove(b, b.Current, DefaultDepth)
	}
	if s.Level == LevelEasy {
		return RandomMove(b, s.Rand)
	}
	start := time.Now()
	nodes := 0
	pit, score, ok := bestMove(ctx, b, b.Current, s.Depth, &nodes)
	if s.Logger != nil {
		s.Logger.Debug("search_best_move",
			zap.String("board", b.String()),
			zap.String("pit", PitName(pit)),
			zap.Int("score", score),
			zap.Int("depth", s.Depth),
			zap.Int("nodes", nodes),
			zap.Duration("elapsed", time.Since(start)),
			zap.Bool("found", ok),
		)
	}
	return pit, ok
}
