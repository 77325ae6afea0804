package analysis

import "math"

// SideTotals is what one player accumulated over a game.
type SideTotals struct {
	Moves     int
	CPLossSum float64
	GPL       float64
}

// ACPL is the mean centipawn loss per move, 0 for a side that never moved.
func (s SideTotals) ACPL() float64 {
	if s.Moves == 0 {
		return 0
	}
	return s.CPLossSum / float64(s.Moves)
}

// Accumulator reduces a White-relative evaluation stream, one real ply at a
// time, into per-side losses. It is not safe for concurrent use; one game
// owns one accumulator.
type Accumulator struct {
	model Model
	ply   int

	blackMoves bool // the side making the next pushed ply
	prev       float64
	prevWhite  float64
	prevBlack  float64

	White SideTotals
	Black SideTotals
}

// NewAccumulator starts a reduction from the synthetic baseline value.
// blackFirst is set for games that start from a position with Black to move.
func NewAccumulator(model Model, ply int, baseline float64, blackFirst bool) *Accumulator {
	a := &Accumulator{model: model, ply: ply, blackMoves: blackFirst, prev: baseline}
	a.prevWhite, a.prevBlack = model.Expected(Centipawns(baseline), ply)
	return a
}

// Push scores the move that produced eval and attributes it to its mover.
func (a *Accumulator) Push(eval float64) {
	postWhite, postBlack := a.model.Expected(Centipawns(eval), a.ply)
	delta := 100 * (eval - a.prev)

	if a.blackMoves {
		a.Black.Moves++
		a.Black.CPLossSum += math.Max(0, delta)
		a.Black.GPL += a.prevBlack - postBlack
	} else {
		a.White.Moves++
		a.White.CPLossSum += math.Max(0, -delta)
		a.White.GPL += a.prevWhite - postWhite
	}

	a.prev = eval
	a.prevWhite, a.prevBlack = postWhite, postBlack
	a.blackMoves = !a.blackMoves
}

// LastExpected is the expected score of each side after the last pushed ply
// (or at the baseline when nothing was pushed).
func (a *Accumulator) LastExpected() (white, black float64) {
	return a.prevWhite, a.prevBlack
}

// Plies is the number of real plies scored so far.
func (a *Accumulator) Plies() int {
	return a.White.Moves + a.Black.Moves
}
