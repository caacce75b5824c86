package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/store"
	"github.com/park285/Cheese-Mancala-bot/pkg/mancaladto"
)

func toDTO(rec *store.Record) mancaladto.Game {
	b := rec.Board
	g := mancaladto.Game{
		ID:             rec.ID,
		Code:           rec.Code,
		Pits:           b.Pits[:],
		CurrentPlayer:  int(b.Current),
		HostID:         rec.HostID,
		GuestID:        rec.GuestID,
		LastMovePit:    rec.LastMovePit,
		LastMovePlayer: rec.LastMovePlayer,
		LegalMoves:     mancala.LegalMoves(b),
		Over:           mancala.IsTerminal(b),
		Version:        rec.Version,
		UpdatedAt:      rec.UpdatedAt,
	}
	if g.Over {
		g.LegalMoves = []int{}
		g.Winner = mancala.Winner(b).String()
	}
	return g
}

// decode reads an optional JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req mancaladto.CreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	rec, err := s.store.Create(r.Context(), mancala.NewBoard(), strings.TrimSpace(req.PlayerID))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("api_game_created", zap.String("game_id", rec.ID), zap.String("host_id", rec.HostID))
	writeJSON(w, http.StatusCreated, toDTO(rec))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req mancaladto.JoinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	player := strings.TrimSpace(req.PlayerID)
	if rec, err := s.store.Get(r.Context(), id); err == nil && rec.HostID == player {
		writeError(w, http.StatusBadRequest, "invalid_args", "cannot join own game")
		return
	}
	rec, err := s.store.AssignGuest(r.Context(), id, player)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

// handleMove checks seat, turn and legality against the stored board before
// writing the resulting board with the played pit. The write only succeeds
// if the game is still at the version that was checked.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req mancaladto.MoveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	player := strings.TrimSpace(req.PlayerID)
	if player == "" || req.Pit == nil {
		writeError(w, http.StatusBadRequest, "invalid_args", "player_id and pit are required")
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	seat, ok := rec.Seat(player)
	switch {
	case req.Version != nil && *req.Version != rec.Version:
		writeJSON(w, http.StatusConflict, mancaladto.Error{Code: "conflict", Message: "stale game version", Retryable: true})
		return
	case !ok:
		writeError(w, http.StatusForbidden, "not_seated", player)
		return
	case rec.GuestID == "":
		writeError(w, http.StatusConflict, "waiting_for_guest", "")
		return
	case mancala.IsTerminal(rec.Board):
		writeError(w, http.StatusConflict, "game_over", "")
		return
	case rec.Board.Current != seat:
		writeError(w, http.StatusConflict, "not_your_turn", "")
		return
	}
	pit := *req.Pit
	next, err := mancala.ApplyMove(rec.Board, pit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "illegal_move", err.Error())
		return
	}
	updated, err := s.store.Update(r.Context(), id, next, player, &pit, rec.Version)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("api_move", zap.String("game_id", id), zap.String("player_id", player), zap.String("pit", mancala.PitName(pit)))
	writeJSON(w, http.StatusOK, toDTO(updated))
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	pit, err := mancala.ParsePit(r.URL.Query().Get("pit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_args", err.Error())
		return
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	turn, err := mancala.Play(rec.Board, pit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "illegal_move", err.Error())
		return
	}
	out := mancaladto.Path{
		Pit:       pit,
		Slots:     mancala.DistributionPath(rec.Board, pit),
		Landing:   turn.Landing,
		ExtraTurn: turn.ExtraTurn,
	}
	if c, ok := mancala.CaptureInfo(rec.Board, pit); ok {
		out.Capture = &mancaladto.Capture{Opposite: c.From, Store: c.To, Seeds: c.Seeds}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req mancaladto.SuggestRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	level, depth := mancala.LevelNormal, s.aiDepth
	if strings.TrimSpace(req.Level) != "" {
		l, ok := mancala.ParseLevel(req.Level)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_args", "unknown level "+req.Level)
			return
		}
		level, depth = l, 0
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	pit, ok := mancala.NewSearcher(level, depth, s.logger).BestMove(r.Context(), rec.Board)
	if !ok {
		writeError(w, http.StatusConflict, "game_over", "")
		return
	}
	writeJSON(w, http.StatusOK, mancaladto.Suggestion{Pit: pit, Name: mancala.PitName(pit), Level: string(level)})
}
