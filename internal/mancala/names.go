package mancala

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownPit = errors.New("unknown pit")

// PitName returns the display name of a slot: a1..a6 and store a0 for player 0,
// b1..b6 and b0 for player 1.
func PitName(index int) string {
	switch {
	case index == StoreA:
		return "a0"
	case index == StoreB:
		return "b0"
	case index >= 0 && index < StoreA:
		return "a" + strconv.Itoa(index+1)
	case index > StoreA && index < StoreB:
		return "b" + strconv.Itoa(index-StoreA)
	}
	return "?"
}

// ParsePit accepts a display name (a1, B3, a0) or a raw slot index.
func ParsePit(s string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("%w: empty", ErrUnknownPit)
	}
	if len(v) == 2 && (v[0] == 'a' || v[0] == 'b') && v[1] >= '0' && v[1] <= '6' {
		n := int(v[1] - '0')
		if v[0] == 'a' {
			if n == 0 {
				return StoreA, nil
			}
			return n - 1, nil
		}
		if n == 0 {
			return StoreB, nil
		}
		return StoreA + n, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n >= Slots {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPit, s)
	}
	return n, nil
}

// RelativePit maps a 1-based pit number on p's side (1..6) to a slot index.
func RelativePit(p Player, n int) (int, bool) {
	if n < 1 || n > PitsPerSide {
		return 0, false
	}
	return p.firstPit() + n - 1, true
}
