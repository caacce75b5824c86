package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

// Schema creates the archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS mancala_games (
	id          BIGSERIAL PRIMARY KEY,
	game_id     TEXT NOT NULL UNIQUE,
	mode        TEXT NOT NULL,
	room        TEXT NOT NULL DEFAULT '',
	player0_id  TEXT NOT NULL DEFAULT '',
	player1_id  TEXT NOT NULL DEFAULT '',
	store0      INTEGER NOT NULL,
	store1      INTEGER NOT NULL,
	winner      TEXT NOT NULL,
	moves       JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS mancala_games_room_ended ON mancala_games (room, ended_at DESC);
`

// Game is one finished game.
type Game struct {
	ID        int64
	GameID    string
	Mode      string
	Room      string
	Player0ID string
	Player1ID string
	Store0    int
	Store1    int
	Winner    string
	Moves     []string
	StartedAt time.Time
	EndedAt   time.Time
}

func (g *Game) Duration() time.Duration {
	d := g.EndedAt.Sub(g.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Notation renders a move history as pit names, `*` marking an extra turn.
func Notation(history []mancala.MoveRecord) []string {
	out := make([]string, 0, len(history))
	for _, m := range history {
		tok := mancala.PitName(m.Pit)
		if m.ExtraTurn {
			tok += "*"
		}
		out = append(out, tok)
	}
	return out
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create mancala_games: %w", err)
	}
	return nil
}

// SaveResult upserts a finished game keyed by its game id.
func (r *Repository) SaveResult(ctx context.Context, g *Game) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	const q = `
		INSERT INTO mancala_games (
			game_id, mode, room, player0_id, player1_id,
			store0, store1, winner, moves,
			started_at, ended_at, duration_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10,$11,$12)
		ON CONFLICT (game_id) DO UPDATE SET
			store0=EXCLUDED.store0,
			store1=EXCLUDED.store1,
			winner=EXCLUDED.winner,
			moves=EXCLUDED.moves,
			ended_at=EXCLUDED.ended_at,
			duration_ms=EXCLUDED.duration_ms`
	_, err = r.db.ExecContext(ctx, q,
		g.GameID, g.Mode, g.Room, g.Player0ID, g.Player1ID,
		g.Store0, g.Store1, g.Winner, moves,
		g.StartedAt, g.EndedAt, g.Duration().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert mancala game: %w", err)
	}
	return nil
}

// Recent lists the latest finished games of a room.
func (r *Repository) Recent(ctx context.Context, room string, limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT id, game_id, mode, room, player0_id, player1_id,
			store0, store1, winner, moves, started_at, ended_at
		FROM mancala_games
		WHERE room = $1
		ORDER BY ended_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, room, limit)
	if err != nil {
		return nil, fmt.Errorf("select mancala games: %w", err)
	}
	defer rows.Close()

	games := make([]*Game, 0, limit)
	for rows.Next() {
		var (
			g     Game
			moves []byte
		)
		if err := rows.Scan(&g.ID, &g.GameID, &g.Mode, &g.Room, &g.Player0ID, &g.Player1ID,
			&g.Store0, &g.Store1, &g.Winner, &moves, &g.StartedAt, &g.EndedAt); err != nil {
			return nil, fmt.Errorf("scan mancala game: %w", err)
		}
		if err := json.Unmarshal(moves, &g.Moves); err != nil {
			return nil, fmt.Errorf("unmarshal moves: %w", err)
		}
		games = append(games, &g)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return games, nil
}
