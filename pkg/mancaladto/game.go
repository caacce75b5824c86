package mancaladto

import "time"

// Game is a stored game as served to web clients.
type Game struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Pits           []int  `json:"pits"`
	CurrentPlayer  int    `json:"currentPlayer"`
	HostID         string `json:"hostId"`
	GuestID        string `json:"guestId,omitempty"`
	LastMovePit    *int   `json:"lastMovePit,omitempty"`
	LastMovePlayer string `json:"lastMovePlayer,omitempty"`
	LegalMoves     []int  `json:"legalMoves"`
	Over           bool   `json:"over"`
	// Winner is "player0", "player1" or "draw" once Over.
	Winner    string    `json:"winner,omitempty"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Capture moves Seeds (the landing seed included) from the opposite pit into Store.
type Capture struct {
	Opposite int `json:"opposite"`
	Store    int `json:"store"`
	Seeds    int `json:"seeds"`
}

// Path describes how a move would sow, for client-side animation.
type Path struct {
	Pit       int      `json:"pit"`
	Slots     []int    `json:"slots"`
	Landing   int      `json:"landing"`
	ExtraTurn bool     `json:"extraTurn"`
	Capture   *Capture `json:"capture,omitempty"`
}

type Suggestion struct {
	Pit   int    `json:"pit"`
	Name  string `json:"name"`
	Level string `json:"level"`
}
