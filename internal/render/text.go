package render

import (
	"fmt"
	"strings"

	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
)

// Text draws the board for rooms without images, player 0 at the bottom.
func Text(b mancala.Board) string {
	var sb strings.Builder
	sb.WriteString("     ")
	for slot := mancala.StoreB - 1; slot > mancala.StoreA; slot-- {
		fmt.Fprintf(&sb, " %-3s", mancala.PitName(slot))
	}
	sb.WriteString("\n     ")
	for slot := mancala.StoreB - 1; slot > mancala.StoreA; slot-- {
		fmt.Fprintf(&sb, "[%2d]", b.Pits[slot])
	}
	fmt.Fprintf(&sb, "\nb0 %2d%s%2d a0\n     ", b.Pits[mancala.StoreB], strings.Repeat(" ", 4*mancala.PitsPerSide), b.Pits[mancala.StoreA])
	for slot := 0; slot < mancala.StoreA; slot++ {
		fmt.Fprintf(&sb, "[%2d]", b.Pits[slot])
	}
	sb.WriteString("\n     ")
	for slot := 0; slot < mancala.StoreA; slot++ {
		fmt.Fprintf(&sb, " %-3s", mancala.PitName(slot))
	}
	return sb.String()
}
