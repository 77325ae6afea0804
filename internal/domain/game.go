package domain

import "strings"

// Result is the declared outcome of a game, in PGN result notation.
type Result string

const (
	ResultWhiteWin Result = "1-0"
	ResultBlackWin Result = "0-1"
	ResultDraw     Result = "1/2-1/2"
	ResultUnknown  Result = "*"
)

// ParseResult maps a PGN Result tag to a Result. Anything unrecognised is unknown.
func ParseResult(s string) Result {
	switch strings.TrimSpace(s) {
	case "1-0":
		return ResultWhiteWin
	case "0-1":
		return ResultBlackWin
	case "1/2-1/2", "½-½":
		return ResultDraw
	default:
		return ResultUnknown
	}
}

// Points returns the score each side earned, and false when the result is unknown.
func (r Result) Points() (white, black float64, ok bool) {
	switch r {
	case ResultWhiteWin:
		return 1, 0, true
	case ResultBlackWin:
		return 0, 1, true
	case ResultDraw:
		return 0.5, 0.5, true
	default:
		return 0, 0, false
	}
}

// RawPly is one mainline half-move as handed over by the game parser.
// Annotation is the evaluation text exactly as found; Present is false for
// moves that carried no evaluation at all (book moves).
type RawPly struct {
	Index       int
	SAN         string
	Annotation  string
	Present     bool
	BlackToMove bool // side to move in the position before this ply
}

// GameRecord is a parsed game: metadata plus the flattened mainline.
type GameRecord struct {
	ID       string
	Source   string
	White    string
	Black    string
	Event    string
	Site     string
	Round    string
	Date     string
	WhiteElo *int
	BlackElo *int
	Result   Result
	Plies    []RawPly
}
