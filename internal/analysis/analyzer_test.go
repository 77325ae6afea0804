package analysis

import (
	"fmt"
	"math"
	"testing"

	"github.com/park285/chess-game-metrics/internal/domain"
)

func plies(blackFirst bool, annotations ...string) []domain.RawPly {
	out := make([]domain.RawPly, len(annotations))
	for i, a := range annotations {
		out[i] = domain.RawPly{
			Index:       i,
			Annotation:  a,
			Present:     a != "",
			BlackToMove: (i%2 == 1) != blackFirst,
		}
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) <= 1e-4 }

func TestAnalyze_DrawnLevelGame(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	rep := a.Analyze(domain.GameRecord{
		ID:     "level",
		Result: domain.ResultDraw,
		Plies:  plies(false, "0.00", "0.00", "0.00", "0.00", "0.00", "0.00"),
	})
	m := rep.Metrics
	if m.WhiteACPL != 0 || m.BlackACPL != 0 || m.WhiteGPL != 0 || m.BlackGPL != 0 {
		t.Fatalf("expected zero losses, got %+v", m)
	}
	if m.WhiteGI != 0.5 || m.BlackGI != 0.5 {
		t.Fatalf("expected GI 0.5/0.5, got %v/%v", m.WhiteGI, m.BlackGI)
	}
	if m.WhiteMoveNumber != 3 || m.BlackMoveNumber != 3 {
		t.Fatalf("expected 3/3 moves, got %d/%d", m.WhiteMoveNumber, m.BlackMoveNumber)
	}
	if *m.WhiteResult != 0.5 || *m.BlackResult != 0.5 {
		t.Fatalf("unexpected result points %v/%v", *m.WhiteResult, *m.BlackResult)
	}
}

func TestAnalyze_BlackPerspectiveDraw(t *testing.T) {
	opts := DefaultOptions()
	opts.Perspective = PerspectiveMover
	rep := NewAnalyzer(opts, nil).Analyze(domain.GameRecord{
		ID:     "ccrl",
		Result: domain.ResultDraw,
		Plies:  plies(false, "+0.20", "-0.15", "+0.30"),
	})
	want := []float64{0.20, 0.20, 0.15, 0.30}
	for i, v := range want {
		if !near(rep.Evals[i], v) {
			t.Fatalf("evals = %v, want %v", rep.Evals, want)
		}
	}
	m := rep.Metrics
	for _, v := range []float64{m.WhiteACPL, m.BlackACPL, m.WhiteGPL, m.BlackGPL, m.WhiteGI, m.BlackGI} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite metric in %+v", m)
		}
	}
	if !near(m.WhiteGI, 0.5-rep.White.GPL) || !near(m.BlackGI, 0.5-rep.Black.GPL) {
		t.Fatalf("GI should be 0.5-GPL: %+v (gpl %v/%v)", m, rep.White.GPL, rep.Black.GPL)
	}
	if m.WhiteMoveNumber != 2 || m.BlackMoveNumber != 1 {
		t.Fatalf("expected 2/1 moves, got %d/%d", m.WhiteMoveNumber, m.BlackMoveNumber)
	}
}

func TestAnalyze_WhiteBlunder(t *testing.T) {
	rep := NewAnalyzer(DefaultOptions(), nil).Analyze(domain.GameRecord{
		ID:     "blunder",
		Result: domain.ResultBlackWin,
		Plies:  plies(false, "0.30", "0.20", "-2.80", "-2.80"),
	})
	m := rep.Metrics
	if !near(m.WhiteACPL, 150) {
		t.Fatalf("white ACPL = %v, want 150", m.WhiteACPL)
	}
	if m.BlackACPL != 0 {
		t.Fatalf("black ACPL = %v, want 0", m.BlackACPL)
	}
	if rep.White.GPL <= 0.3 {
		t.Fatalf("white GPL should reflect the lost game, got %v", rep.White.GPL)
	}
	if !near(m.WhiteGI, -rep.White.GPL) || !near(m.BlackGI, 1-rep.Black.GPL) {
		t.Fatalf("unexpected GI for black win: %+v", m)
	}
}

func TestAnalyze_ImprovingMoveReducesGPL(t *testing.T) {
	// White's second move finds a resource; its GPL contribution is negative.
	rep := NewAnalyzer(DefaultOptions(), nil).Analyze(domain.GameRecord{
		Result: domain.ResultWhiteWin,
		Plies:  plies(false, "0.00", "0.00", "1.50"),
	})
	if rep.White.GPL >= 0 {
		t.Fatalf("expected negative white GPL, got %v", rep.White.GPL)
	}
	if rep.Metrics.WhiteACPL < 0 || rep.Metrics.BlackACPL < 0 {
		t.Fatalf("ACPL must stay non-negative: %+v", rep.Metrics)
	}
}

func TestAnalyze_MoveCounts(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	for n := 0; n < 12; n++ {
		for _, blackFirst := range []bool{false, true} {
			ann := make([]string, n)
			for i := range ann {
				ann[i] = fmt.Sprintf("%+.2f", float64(i%5)-2)
			}
			m := a.Analyze(domain.GameRecord{Result: domain.ResultDraw, Plies: plies(blackFirst, ann...)}).Metrics
			diff := m.WhiteMoveNumber - m.BlackMoveNumber
			if diff < -1 || diff > 1 {
				t.Fatalf("n=%d blackFirst=%v: counts %d/%d", n, blackFirst, m.WhiteMoveNumber, m.BlackMoveNumber)
			}
			if m.WhiteMoveNumber+m.BlackMoveNumber != n {
				t.Fatalf("n=%d: counts %d+%d", n, m.WhiteMoveNumber, m.BlackMoveNumber)
			}
			if m.WhiteACPL < 0 || m.BlackACPL < 0 {
				t.Fatalf("n=%d: negative ACPL %+v", n, m)
			}
		}
	}
}

func TestAnalyze_DegenerateGames(t *testing.T) {
	a := NewAnalyzer(DefaultOptions(), nil)
	cases := []struct {
		result           domain.Result
		whiteGI, blackGI float64
	}{
		{domain.ResultWhiteWin, 1, 0},
		{domain.ResultBlackWin, 0, 1},
		{domain.ResultDraw, 0.5, 0.5},
		{domain.ResultUnknown, 0.5, 0.5},
	}
	for _, c := range cases {
		rep := a.Analyze(domain.GameRecord{ID: "empty", Result: c.result})
		m := rep.Metrics
		if m.WhiteACPL != 0 || m.BlackACPL != 0 || m.WhiteGPL != 0 || m.BlackGPL != 0 {
			t.Fatalf("%s: expected zero losses, got %+v", c.result, m)
		}
		if !near(m.WhiteGI, c.whiteGI) || !near(m.BlackGI, c.blackGI) {
			t.Fatalf("%s: GI %v/%v, want %v/%v", c.result, m.WhiteGI, m.BlackGI, c.whiteGI, c.blackGI)
		}
		if !hasDiagnostic(rep, DiagDegenerateGame) {
			t.Fatalf("%s: expected degenerate diagnostic, got %v", c.result, rep.Diagnostics)
		}
	}

	// White resigns after one move: Black never moved.
	rep := a.Analyze(domain.GameRecord{Result: domain.ResultBlackWin, Plies: plies(false, "0.25")})
	if rep.Metrics.BlackMoveNumber != 0 || rep.Metrics.BlackGI != 1 || rep.Metrics.BlackACPL != 0 {
		t.Fatalf("unexpected black metrics after one-move game: %+v", rep.Metrics)
	}
}

func TestAnalyze_UnknownResultUsesFinalExpectation(t *testing.T) {
	rep := NewAnalyzer(DefaultOptions(), nil).Analyze(domain.GameRecord{
		ID:     "unfinished",
		Result: domain.ParseResult("*"),
		Plies:  plies(false, "0.50", "0.50", "0.50"),
	})
	lastWhite, lastBlack := ModelSF16.Expected(50, DefaultPly)
	if !near(rep.Metrics.WhiteGI, lastWhite-rep.White.GPL) || !near(rep.Metrics.BlackGI, lastBlack-rep.Black.GPL) {
		t.Fatalf("unexpected GI for unknown result: %+v", rep.Metrics)
	}
	if !hasDiagnostic(rep, DiagUnknownResult) {
		t.Fatalf("expected unknown_result diagnostic, got %v", rep.Diagnostics)
	}
	if rep.Metrics.WhiteResult != nil || rep.Metrics.BlackResult != nil {
		t.Fatalf("unknown result should leave points empty")
	}
}

func TestAnalyze_MalformedPlyDoesNotAbort(t *testing.T) {
	rep := NewAnalyzer(DefaultOptions(), nil).Analyze(domain.GameRecord{
		ID:     "broken",
		Result: domain.ResultDraw,
		Plies:  plies(false, "0.10", "garbage", "0.10"),
	})
	if rep.Metrics.WhiteMoveNumber != 2 || rep.Metrics.BlackMoveNumber != 1 {
		t.Fatalf("malformed ply should still count as a move: %+v", rep.Metrics)
	}
	if !hasDiagnostic(rep, DiagMalformedEvaluation) || len(rep.Metrics.Diagnostics) == 0 {
		t.Fatalf("expected malformed diagnostic on the record")
	}
}

func TestAnalyze_MateDoesNotProduceNaN(t *testing.T) {
	rep := NewAnalyzer(DefaultOptions(), nil).Analyze(domain.GameRecord{
		Result: domain.ResultWhiteWin,
		Plies:  plies(false, "1.00", "3.00", "#2", "#1"),
	})
	m := rep.Metrics
	for _, v := range []float64{m.WhiteGPL, m.BlackGPL, m.WhiteGI, m.BlackGI, m.WhiteACPL, m.BlackACPL} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite metric: %+v", m)
		}
	}
}

func TestAccumulator_BlackFirst(t *testing.T) {
	acc := NewAccumulator(ModelSF16, DefaultPly, 0, true)
	acc.Push(0.5) // Black's move, worse for Black by 50cp
	acc.Push(0.5)
	if acc.Black.Moves != 1 || acc.White.Moves != 1 || acc.Plies() != 2 {
		t.Fatalf("unexpected counts: %+v %+v", acc.White, acc.Black)
	}
	if !near(acc.Black.ACPL(), 50) || acc.White.ACPL() != 0 {
		t.Fatalf("unexpected ACPL: white=%v black=%v", acc.White.ACPL(), acc.Black.ACPL())
	}
	if acc.Black.GPL <= 0 {
		t.Fatalf("black GPL should be positive, got %v", acc.Black.GPL)
	}
}

func TestGameIndex(t *testing.T) {
	w := SideTotals{Moves: 10, GPL: 0.2}
	b := SideTotals{Moves: 10, GPL: 0.4}
	cases := []struct {
		result    domain.Result
		wantW     float64
		wantB     float64
		wantKnown bool
	}{
		{domain.ResultDraw, 0.3, 0.1, true},
		{domain.ResultWhiteWin, 0.8, -0.4, true},
		{domain.ResultBlackWin, -0.2, 0.6, true},
		{domain.ResultUnknown, 0.7 - 0.2, 0.3 - 0.4, false},
	}
	for _, c := range cases {
		gw, gb, known := GameIndex(c.result, w, b, 0.7, 0.3)
		if !near(gw, c.wantW) || !near(gb, c.wantB) || known != c.wantKnown {
			t.Fatalf("%s: got %v/%v/%v", c.result, gw, gb, known)
		}
	}
}

func hasDiagnostic(rep *Report, kind DiagnosticKind) bool {
	for _, d := range rep.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestAnalyze_TrailingUnannotatedPlyReadsAsLevel(t *testing.T) {
	// A final move without an evaluation (a lichess mating move, say) counts
	// as 0.00 and is charged to the side that played it.
	rep := NewAnalyzer(DefaultOptions(), nil).Analyze(domain.GameRecord{
		Result: domain.ResultWhiteWin,
		Plies:  plies(false, "0.00", "5.00", ""),
	})
	if len(rep.Evals) != 4 || rep.Evals[3] != 0 {
		t.Fatalf("expected trailing eval 0, got %v", rep.Evals)
	}
	if !near(rep.Metrics.WhiteACPL, 250) {
		t.Fatalf("white ACPL = %v, want 250", rep.Metrics.WhiteACPL)
	}
	if !near(rep.Metrics.BlackACPL, 500) {
		t.Fatalf("black ACPL = %v, want 500", rep.Metrics.BlackACPL)
	}
}
