package analysis

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/park285/chess-game-metrics/internal/domain"
)

// MatePawns is the saturated magnitude a forced mate collapses to.
const MatePawns = 100.0

var (
	ErrMalformedEvaluation = errors.New("malformed evaluation annotation")
	ErrUnknownPerspective  = errors.New("unknown evaluation perspective")
)

// Perspective tells which side a raw annotation is relative to.
type Perspective int

const (
	// PerspectiveWhite annotations are already White-relative (lichess [%eval]).
	PerspectiveWhite Perspective = iota
	// PerspectiveMover annotations are relative to the side that just moved (CCRL comments).
	PerspectiveMover
)

func (p Perspective) String() string {
	switch p {
	case PerspectiveMover:
		return "mover"
	default:
		return "white"
	}
}

func ParsePerspective(s string) (Perspective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "white":
		return PerspectiveWhite, nil
	case "mover", "side-to-move":
		return PerspectiveMover, nil
	default:
		return PerspectiveWhite, fmt.Errorf("%w: %q", ErrUnknownPerspective, s)
	}
}

// ParseAnnotation reads an engine evaluation in pawns. Accepted forms are
// signed decimals ("+0.25", "-1.3", ".5"), optionally followed by a
// "/depth" suffix or other words, and mate notations ("#3", "#-2", "+M5",
// "-M5", "mate 4"). Mates and out-of-range values saturate at ±MatePawns.
func ParseAnnotation(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformedEvaluation)
	}
	lower := strings.ToLower(s)
	if rest, ok := strings.CutPrefix(lower, "mate"); ok {
		return parseMate(strings.TrimSpace(rest), s)
	}

	tok := strings.Fields(s)[0]
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		tok = tok[:i]
	}
	switch {
	case strings.HasPrefix(tok, "#"):
		return parseMate(tok[1:], s)
	case len(tok) >= 2 && (tok[0] == '+' || tok[0] == '-') && (tok[1] == 'M' || tok[1] == 'm'):
		return parseMate(tok[:1]+tok[2:], s)
	case strings.HasPrefix(tok, "M") || strings.HasPrefix(tok, "m"):
		return parseMate(tok[1:], s)
	}

	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || !looksDecimal(tok) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedEvaluation, s)
	}
	return saturate(v), nil
}

func parseMate(distance, raw string) (float64, error) {
	if distance == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedEvaluation, raw)
	}
	negative := distance[0] == '-'
	if _, err := strconv.ParseUint(strings.TrimLeft(distance, "+-"), 10, 32); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedEvaluation, raw)
	}
	if negative {
		return -MatePawns, nil
	}
	return MatePawns, nil
}

// looksDecimal rejects forms ParseFloat accepts but engines never print
// (exponents, hex floats, underscores).
func looksDecimal(tok string) bool {
	digits := 0
	for i, r := range tok {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r == '+' || r == '-') && i == 0:
		case r == '.':
		default:
			return false
		}
	}
	return digits > 0
}

func saturate(v float64) float64 {
	if v > MatePawns {
		return MatePawns
	}
	if v < -MatePawns {
		return -MatePawns
	}
	return v
}

// Orient turns a raw value into a White-relative one. It is the only place
// that knows about turn-dependent signs.
func Orient(value float64, blackToMove bool, p Perspective) float64 {
	if p == PerspectiveMover && blackToMove {
		value = -value
	}
	if value == 0 {
		return 0
	}
	return value
}

// Normalize resolves one ply to a White-relative evaluation in pawns.
// Book moves (no annotation) are 0. A malformed annotation also yields 0,
// together with an error wrapping ErrMalformedEvaluation.
func Normalize(ply domain.RawPly, p Perspective) (float64, error) {
	if !ply.Present {
		return 0, nil
	}
	v, err := ParseAnnotation(ply.Annotation)
	if err != nil {
		return 0, err
	}
	return Orient(v, ply.BlackToMove, p), nil
}

// NormalizeSequence returns the White-relative evaluation stream for a game,
// led by the synthetic baseline (a copy of the first real value, or 0 for a
// game without plies). len(result) == len(plies)+1.
func NormalizeSequence(plies []domain.RawPly, p Perspective) ([]float64, []Diagnostic) {
	evals := make([]float64, len(plies)+1)
	var diags []Diagnostic
	for i, ply := range plies {
		v, err := Normalize(ply, p)
		if err != nil {
			diags = append(diags, Diagnostic{
				Kind:   DiagMalformedEvaluation,
				Ply:    i,
				Detail: err.Error(),
			})
		}
		evals[i+1] = v
	}
	if len(plies) > 0 {
		evals[0] = evals[1]
	}
	return evals, diags
}
