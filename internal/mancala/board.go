package mancala

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	PitsPerSide  = 6
	Slots        = 14
	InitialSeeds = 4
	TotalSeeds   = InitialSeeds * PitsPerSide * 2

	StoreA = 6
	StoreB = 13
)

var ErrInvalidBoard = errors.New("invalid board")

// Player identifies a side. Player0 owns pits 0..5 and store 6, Player1 owns 7..12 and store 13.
type Player int

const (
	Player0 Player = 0
	Player1 Player = 1
)

func (p Player) Valid() bool { return p == Player0 || p == Player1 }

func (p Player) Opponent() Player {
	if p == Player0 {
		return Player1
	}
	return Player0
}

// Store returns the index of p's store.
func (p Player) Store() int {
	if p == Player0 {
		return StoreA
	}
	return StoreB
}

func (p Player) OpponentStore() int { return p.Opponent().Store() }

// Owns reports whether pit is one of p's six playable pits (stores excluded).
func (p Player) Owns(pit int) bool {
	first := p.firstPit()
	return pit >= first && pit < first+PitsPerSide
}

func (p Player) firstPit() int {
	if p == Player0 {
		return 0
	}
	return StoreA + 1
}

// Label is the side prefix used in pit names.
func (p Player) Label() string {
	if p == Player0 {
		return "a"
	}
	return "b"
}

func (p Player) String() string { return "player" + strconv.Itoa(int(p)) }

// Board is one game position. It is a value: copying a Board copies the pits,
// so every transition yields an independent board.
type Board struct {
	Pits    [Slots]int `json:"pits"`
	Current Player     `json:"currentPlayer"`
}

// NewBoard returns the standard opening with player 0 to move.
func NewBoard() Board {
	var b Board
	for i := range b.Pits {
		if i == StoreA || i == StoreB {
			continue
		}
		b.Pits[i] = InitialSeeds
	}
	b.Current = Player0
	return b
}

func (b Board) Sum() int {
	total := 0
	for _, n := range b.Pits {
		total += n
	}
	return total
}

// SideTotal sums the six playable pits of p.
func (b Board) SideTotal(p Player) int {
	total := 0
	first := p.firstPit()
	for i := first; i < first+PitsPerSide; i++ {
		total += b.Pits[i]
	}
	return total
}

func (b Board) Store(p Player) int { return b.Pits[p.Store()] }

// Validate checks a snapshot received from outside the rule engine.
func (b Board) Validate() error {
	if !b.Current.Valid() {
		return fmt.Errorf("%w: current player %d", ErrInvalidBoard, b.Current)
	}
	for i, n := range b.Pits {
		if n < 0 {
			return fmt.Errorf("%w: slot %d holds %d", ErrInvalidBoard, i, n)
		}
	}
	if sum := b.Sum(); sum != TotalSeeds {
		return fmt.Errorf("%w: %d seeds on board", ErrInvalidBoard, sum)
	}
	return nil
}

func (b Board) String() string {
	var sb strings.Builder
	sb.WriteByte('<')
	for i, n := range b.Pits {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(n))
	}
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(int(b.Current)))
	sb.WriteByte('>')
	return sb.String()
}

// MoveRecord is one entry of the append-only move history.
type MoveRecord struct {
	Player    Player `json:"player"`
	Pit       int    `json:"pit"`
	ExtraTurn bool   `json:"extraTurn"`
}
