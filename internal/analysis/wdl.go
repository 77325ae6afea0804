package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Model selects the centipawn → win/draw/loss calibration.
type Model string

const (
	ModelSF16    Model = "sf16.1"
	ModelSF15    Model = "sf15"
	ModelLichess Model = "lichess"
)

// DefaultPly is the game phase the Stockfish models are evaluated at.
const DefaultPly = 30

// mateCentipawns is MatePawns in centipawns; scores at or past it are decisive
// in every model.
const mateCentipawns = int(MatePawns * 100)

var ErrUnknownModel = errors.New("unknown wdl model")

func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sf", "sf16", "sf16.1":
		return ModelSF16, nil
	case "sf15":
		return ModelSF15, nil
	case "lichess":
		return ModelLichess, nil
	default:
		return ModelSF16, fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
}

// Triple holds win, draw and loss probabilities from White's point of view.
type Triple struct {
	Win  float64
	Draw float64
	Loss float64
}

// Expected returns each side's expected score. The two always sum to 1.
func (t Triple) Expected() (white, black float64) {
	return t.Win + 0.5*t.Draw, t.Loss + 0.5*t.Draw
}

// Centipawns converts a pawn evaluation to whole centipawns.
func Centipawns(pawns float64) int {
	return int(math.Round(pawns * 100))
}

// WDL maps a White-relative centipawn score to a probability triple.
// Probabilities are quantized to permille, so Win+Draw+Loss is 1 up to
// float rounding.
func (m Model) WDL(cp int, ply int) Triple {
	switch {
	case cp >= mateCentipawns:
		return Triple{Win: 1}
	case cp <= -mateCentipawns:
		return Triple{Loss: 1}
	}
	var wins, losses int
	switch m {
	case ModelSF15:
		wins, losses = sf15Wins(cp, ply), sf15Wins(-cp, ply)
	case ModelLichess:
		wins = lichessWins(cp)
		losses = 1000 - wins
	default:
		wins, losses = sf16Wins(cp, ply), sf16Wins(-cp, ply)
	}
	draws := 1000 - wins - losses
	return Triple{
		Win:  float64(wins) / 1000,
		Draw: float64(draws) / 1000,
		Loss: float64(losses) / 1000,
	}
}

// Expected is a shortcut for WDL(cp, ply).Expected().
func (m Model) Expected(cp int, ply int) (white, black float64) {
	return m.WDL(cp, ply).Expected()
}

func sf16Wins(cp int, ply int) int {
	const normalizeToPawnValue = 356
	mm := math.Min(120, math.Max(8, float64(ply)/2+1)) / 32
	a := (((-1.06249702*mm+7.42016937)*mm+0.89425629)*mm + 348.60356174)
	b := (((-5.33122190*mm+39.57831533)*mm-90.84473771)*mm + 123.40620748)
	x := clamp(float64(cp)*normalizeToPawnValue/100, -4000, 4000)
	return int(0.5 + 1000/(1+math.Exp((a-x)/b)))
}

func sf15Wins(cp int, ply int) int {
	mm := math.Min(240, math.Max(float64(ply), 0)) / 64
	a := (((-3.68389304*mm+30.07065921)*mm-60.52878723)*mm + 149.53378557)
	b := (((-2.01818570*mm+15.85685038)*mm-29.83452023)*mm + 47.59078827)
	x := clamp(float64(cp), -2000, 2000)
	return int(0.5 + 1000/(1+math.Exp((a-x)/b)))
}

// lichessWins is computed on the positive side only so that a score and its
// mirror always split the same 1000 permille.
func lichessWins(cp int) int {
	if cp < 0 {
		return 1000 - lichessWins(-cp)
	}
	x := clamp(float64(cp), 0, 1000)
	return int(math.Round(1000 / (1 + math.Exp(-0.00368208*x))))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
