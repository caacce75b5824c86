package mancaladto

type CreateRequest struct {
	PlayerID string `json:"player_id"`
}

type JoinRequest struct {
	PlayerID string `json:"player_id"`
}

type MoveRequest struct {
	PlayerID string `json:"player_id"`
	Pit      *int   `json:"pit"`
	// Version, when set, is the game version the client played against.
	Version *int64 `json:"version,omitempty"`
}

type SuggestRequest struct {
	Level string `json:"level,omitempty"`
}
