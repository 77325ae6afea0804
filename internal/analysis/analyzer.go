package analysis

import (
	"math"

	"github.com/park285/chess-game-metrics/internal/domain"
	"github.com/park285/chess-game-metrics/pkg/metricsdto"
	"go.uber.org/zap"
)

const defaultPrecision = 4

type Options struct {
	Perspective Perspective
	Model       Model
	Ply         int
	// Precision is the number of decimals kept in emitted metrics; negative disables rounding.
	Precision int
}

func DefaultOptions() Options {
	return Options{
		Perspective: PerspectiveWhite,
		Model:       ModelSF16,
		Ply:         DefaultPly,
		Precision:   defaultPrecision,
	}
}

// Report is the outcome of analysing one game.
type Report struct {
	Metrics     *metricsdto.GameMetrics
	Evals       []float64
	White       SideTotals
	Black       SideTotals
	Diagnostics []Diagnostic
}

// Analyzer turns game records into metric records. It holds no per-game
// state and can be shared between goroutines.
type Analyzer struct {
	opts   Options
	logger *zap.Logger
}

func NewAnalyzer(opts Options, logger *zap.Logger) *Analyzer {
	if opts.Model == "" {
		opts.Model = ModelSF16
	}
	if opts.Ply <= 0 {
		opts.Ply = DefaultPly
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{opts: opts, logger: logger}
}

func (a *Analyzer) Options() Options { return a.opts }

// Analyze never fails: problems inside the game are reported as diagnostics.
func (a *Analyzer) Analyze(rec domain.GameRecord) *Report {
	evals, diags := NormalizeSequence(rec.Plies, a.opts.Perspective)
	for _, d := range diags {
		a.logger.Warn("malformed_evaluation",
			zap.String("game_id", rec.ID),
			zap.Int("ply", d.Ply),
			zap.String("detail", d.Detail),
		)
	}

	blackFirst := len(rec.Plies) > 0 && rec.Plies[0].BlackToMove
	acc := NewAccumulator(a.opts.Model, a.opts.Ply, evals[0], blackFirst)
	for _, v := range evals[1:] {
		acc.Push(v)
	}

	lastWhite, lastBlack := acc.LastExpected()
	whiteGI, blackGI, known := GameIndex(rec.Result, acc.White, acc.Black, lastWhite, lastBlack)
	if !known {
		diags = append(diags, Diagnostic{
			Kind:   DiagUnknownResult,
			Ply:    -1,
			Detail: "result " + string(rec.Result) + ": GI anchored on final expected score",
		})
	}
	if acc.White.Moves == 0 || acc.Black.Moves == 0 {
		diags = append(diags, Diagnostic{
			Kind:   DiagDegenerateGame,
			Ply:    -1,
			Detail: "a side made no moves",
		})
	}

	m := &metricsdto.GameMetrics{
		GameID:          rec.ID,
		Source:          rec.Source,
		WhiteGI:         a.round(whiteGI),
		BlackGI:         a.round(blackGI),
		WhiteGPL:        a.round(acc.White.GPL),
		BlackGPL:        a.round(acc.Black.GPL),
		WhiteACPL:       a.round(acc.White.ACPL()),
		BlackACPL:       a.round(acc.Black.ACPL()),
		WhiteMoveNumber: acc.White.Moves,
		BlackMoveNumber: acc.Black.Moves,
		White:           rec.White,
		Black:           rec.Black,
		Event:           rec.Event,
		Site:            rec.Site,
		Round:           rec.Round,
		Date:            rec.Date,
		WhiteElo:        rec.WhiteElo,
		BlackElo:        rec.BlackElo,
		Result:          string(rec.Result),
	}
	if wp, bp, ok := rec.Result.Points(); ok {
		m.WhiteResult, m.BlackResult = &wp, &bp
	}
	for _, d := range diags {
		m.Diagnostics = append(m.Diagnostics, d.String())
	}

	return &Report{
		Metrics:     m,
		Evals:       evals,
		White:       acc.White,
		Black:       acc.Black,
		Diagnostics: diags,
	}
}

func (a *Analyzer) round(v float64) float64 {
	if a.opts.Precision < 0 {
		return v
	}
	p := math.Pow(10, float64(a.opts.Precision))
	return math.Round(v*p) / p
}
