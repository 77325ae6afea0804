package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/chess-game-metrics/internal/analysis"
	"github.com/park285/chess-game-metrics/internal/pgnsource"
	"github.com/park285/chess-game-metrics/internal/sink"
)

// WriteFunc hands a finished report to its destination.
type WriteFunc func(ctx context.Context, rep *analysis.Report) error

// Runner analyses games on a pool of workers and writes the results from a
// single goroutine, in input order.
type Runner struct {
	Workers  int
	Analyzer *analysis.Analyzer
	Sink     sink.Sink
	// Write overrides Sink when set.
	Write  WriteFunc
	Logger *zap.Logger
	// Progress, when set, is called by the writer after every game.
	Progress func(Summary)
}

type Summary struct {
	RunID       string        `json:"run_id"`
	Games       int           `json:"games"`
	Written     int           `json:"written"`
	Failed      int           `json:"failed"`
	SinkErrors  int           `json:"sink_errors"`
	Diagnostics int           `json:"diagnostics"`
	Failures    []string      `json:"failures,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

const maxFailures = 100

// reorderWindow bounds, per worker, how many games may be read ahead of the
// oldest one not yet written.
const reorderWindow = 4

type job struct {
	seq  int
	item pgnsource.Item
}

type result struct {
	seq     int
	source  string
	report  *analysis.Report
	failure *analysis.Diagnostic
}

// Run consumes in until it is closed or ctx is cancelled. Failed games and
// sink errors are counted in the summary; only cancellation is returned as
// an error.
func (r *Runner) Run(ctx context.Context, in <-chan pgnsource.Item) (Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	write := r.Write
	if write == nil {
		if r.Sink == nil {
			return Summary{}, fmt.Errorf("pipeline: no sink configured")
		}
		write = func(ctx context.Context, rep *analysis.Report) error {
			return r.Sink.Write(ctx, rep.Metrics)
		}
	}

	sum := Summary{RunID: uuid.NewString()}
	started := time.Now()
	logger = logger.With(zap.String("run_id", sum.RunID))
	logger.Info("run_started", zap.Int("workers", workers))

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, workers)
	results := make(chan result, workers)
	window := make(chan struct{}, reorderWindow*workers)

	g.Go(func() error {
		defer close(jobs)
		seq := 0
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case window <- struct{}{}:
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case item, ok := <-in:
				if !ok {
					return nil
				}
				select {
				case <-gctx.Done():
					return gctx.Err()
				case jobs <- job{seq: seq, item: item}:
				}
				seq++
			}
		}
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := range jobs {
				res := r.analyze(j, logger)
				select {
				case <-gctx.Done():
					return gctx.Err()
				case results <- res:
				}
			}
			return nil
		})
	}

	var runErr error
	done := make(chan struct{})
	go func() {
		runErr = g.Wait()
		close(results)
		close(done)
	}()

	pending := make(map[int]result)
	next := 0
	for res := range results {
		pending[res.seq] = res
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			r.record(ctx, cur, write, &sum, logger)
			<-window
			if r.Progress != nil {
				r.Progress(sum)
			}
		}
	}
	<-done

	sum.Elapsed = time.Since(started)
	if runErr == nil {
		runErr = ctx.Err()
	}
	logger.Info("run_finished",
		zap.Int("games", sum.Games),
		zap.Int("written", sum.Written),
		zap.Int("failed", sum.Failed),
		zap.Int("sink_errors", sum.SinkErrors),
		zap.Int("diagnostics", sum.Diagnostics),
		zap.Duration("elapsed", sum.Elapsed),
		zap.Error(runErr),
	)
	return sum, runErr
}

func (r *Runner) analyze(j job, logger *zap.Logger) (res result) {
	res = result{seq: j.seq, source: j.item.Source}
	if j.item.Err != nil {
		res.failure = &analysis.Diagnostic{Kind: analysis.DiagGameFailed, Ply: -1, Detail: j.item.Err.Error()}
		return res
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("analyze_panic", zap.String("source", j.item.Source), zap.Any("panic", p))
			res.report = nil
			res.failure = &analysis.Diagnostic{Kind: analysis.DiagGameFailed, Ply: -1, Detail: fmt.Sprintf("panic: %v", p)}
		}
	}()
	res.report = r.Analyzer.Analyze(j.item.Record)
	return res
}

func (r *Runner) record(ctx context.Context, res result, write WriteFunc, sum *Summary, logger *zap.Logger) {
	sum.Games++
	if res.failure != nil {
		sum.Failed++
		if len(sum.Failures) < maxFailures {
			sum.Failures = append(sum.Failures, res.source+": "+res.failure.String())
		}
		logger.Warn("game_failed", zap.String("source", res.source), zap.String("detail", res.failure.Detail))
		return
	}
	sum.Diagnostics += len(res.report.Diagnostics)
	if err := write(ctx, res.report); err != nil {
		sum.SinkErrors++
		logger.Error("sink_write_failed",
			zap.String("game_id", res.report.Metrics.GameID),
			zap.String("source", res.source),
			zap.Error(err),
		)
		return
	}
	sum.Written++
}
