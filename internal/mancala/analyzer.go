package mancala

// Capture describes the transfer a move would trigger: the opposite pit and the
// mover's store. Seeds includes the landing seed.
type Capture struct {
	From  int
	To    int
	Seeds int
}

// DistributionPath returns, in order, every slot that receives a seed when pit is
// played on b. It is nil for an illegal move.
func DistributionPath(b Board, pit int) []int {
	if !IsLegalMove(b, pit) {
		return nil
	}
	return sow(b, pit)
}

// CaptureInfo reports whether playing pit would capture, without touching b.
func CaptureInfo(b Board, pit int) (Capture, bool) {
	t, err := Play(b, pit)
	if err != nil || t.Captured == 0 {
		return Capture{}, false
	}
	return Capture{From: 12 - t.Landing, To: t.Player.Store(), Seeds: t.Captured + 1}, true
}

// InferMove guesses which pit produced after from before: the lowest slot whose
// count went down from a positive value. It does not check that the move
// actually yields after; use VerifyMove when that matters.
func InferMove(before, after Board) (int, bool) {
	for i := 0; i < Slots; i++ {
		if before.Pits[i] > 0 && before.Pits[i] > after.Pits[i] {
			return i, true
		}
	}
	return 0, false
}

// VerifyMove returns the single legal move of before.Current that turns before
// into exactly after. Zero or several matching candidates yield false.
func VerifyMove(before, after Board) (int, bool) {
	found, matches := 0, 0
	for _, pit := range LegalMoves(before) {
		if after.Pits[pit] >= before.Pits[pit] {
			continue
		}
		next, err := ApplyMove(before, pit)
		if err != nil || next != after {
			continue
		}
		found = pit
		matches++
	}
	if matches != 1 {
		return 0, false
	}
	return found, true
}
