package pgnsource

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"

	"github.com/park285/chess-game-metrics/internal/analysis"
	"github.com/park285/chess-game-metrics/internal/domain"
)

// Format names the annotation convention of a PGN collection.
type Format string

const (
	// FormatLichess carries White-relative [%eval x] commands.
	FormatLichess Format = "lichess"
	// FormatCCRL carries "+0.25/20 3s" comments relative to the side that moved.
	FormatCCRL Format = "ccrl"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported pgn format")
	ErrNoGame            = errors.New("no game in pgn text")
)

var (
	evalCommandRe = regexp.MustCompile(`\[%eval\s+([^\]\s,]+)`)
	// a standalone score, ended by "/depth", whitespace or the end of the
	// comment; "1.25s" move times never match
	ccrlEvalRe    = regexp.MustCompile(`(?:^|\s)([+-]?(?:M\d+|\d+\.\d+))(?:/|\s|$)`)
	siteIDRe      = regexp.MustCompile(`^https?://`)
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatLichess:
		return FormatLichess, nil
	case FormatCCRL:
		return FormatCCRL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Perspective is the side the format's evaluations are relative to.
func (f Format) Perspective() analysis.Perspective {
	if f == FormatCCRL {
		return analysis.PerspectiveMover
	}
	return analysis.PerspectiveWhite
}

// Parse reads one game and flattens its mainline into raw plies. The
// evaluation text is extracted but not interpreted; that is left to the
// analysis normalizer.
func Parse(text string, f Format) (domain.GameRecord, error) {
	if strings.TrimSpace(text) == "" {
		return domain.GameRecord{}, ErrNoGame
	}
	opt, err := nchess.PGN(strings.NewReader(text))
	if err != nil {
		return domain.GameRecord{}, fmt.Errorf("parse pgn: %w", err)
	}
	game := nchess.NewGame(opt)

	rec := domain.GameRecord{
		White:    game.GetTagPair("White"),
		Black:    game.GetTagPair("Black"),
		Event:    game.GetTagPair("Event"),
		Site:     game.GetTagPair("Site"),
		Round:    game.GetTagPair("Round"),
		Date:     game.GetTagPair("Date"),
		WhiteElo: parseElo(game.GetTagPair("WhiteElo")),
		BlackElo: parseElo(game.GetTagPair("BlackElo")),
	}
	rec.Result = domain.ParseResult(game.GetTagPair("Result"))
	if rec.Result == domain.ResultUnknown {
		rec.Result = domain.ParseResult(string(game.Outcome()))
	}
	rec.ID = gameID(rec.Site, text)

	moves := game.Moves()
	positions := game.Positions()
	rec.Plies = make([]domain.RawPly, 0, len(moves))
	for i, mv := range moves {
		ply := domain.RawPly{Index: i}
		if i < len(positions) && positions[i] != nil {
			pos := positions[i]
			ply.BlackToMove = pos.Turn() == nchess.Black
			ply.SAN = nchess.AlgebraicNotation{}.Encode(pos, mv)
		} else {
			ply.BlackToMove = i%2 == 1
		}
		ply.Annotation, ply.Present = extractEval(mv, f)
		rec.Plies = append(rec.Plies, ply)
	}
	return rec, nil
}

func extractEval(mv *nchess.Move, f Format) (string, bool) {
	comment := mv.Comments()
	switch f {
	case FormatCCRL:
		if m := ccrlEvalRe.FindStringSubmatch(comment); m != nil {
			return m[1], true
		}
		return "", false
	default:
		if v, ok := mv.GetCommand("eval"); ok {
			return strings.TrimSpace(v), true
		}
		if m := evalCommandRe.FindStringSubmatch(comment); m != nil {
			return m[1], true
		}
		return "", false
	}
}

func parseElo(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// gameID prefers the game URL some sites put in the Site tag; otherwise it
// derives a stable UUID from the game text so reruns upsert instead of
// duplicating.
func gameID(site, text string) string {
	site = strings.TrimSpace(site)
	if siteIDRe.MatchString(site) {
		return site
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(text)).String()
}
