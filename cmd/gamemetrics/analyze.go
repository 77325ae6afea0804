package main

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/chess-game-metrics/internal/analysis"
	"github.com/park285/chess-game-metrics/internal/pipeline"
)

func Analyze() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [pgn files or directories...]",
		Short: "Compute ACPL, GPL and GI for every game",
		Long: heredoc.Doc(`analyze computes one metrics record per game and hands it to
			the configured sinks: a JSONL file, Redis, Postgres, Badger or
			an HTTP collector. With no sink configured, records are written
			to stdout as JSON lines.

			Directories are searched for .pgn files. With no arguments, or
			with "-", games are read from stdin.`),
		Example: heredoc.Doc(`
			$ gamemetrics analyze --format ccrl games/ccrl-40-15.pgn
			$ gamemetrics analyze --out metrics.jsonl --progress lichess/
			$ REDIS_URL=redis://localhost:6379/0 gamemetrics analyze games/`),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := s.deps.Sink.Close(); err != nil {
					s.logger.Warn("sink_close_failed", zap.Error(err))
				}
				_ = s.logger.Sync()
			}()
			s.logger.Info("analyze_started",
				zap.Strings("sinks", s.deps.SinkNames),
				zap.String("format", string(s.deps.Source.Format)),
				zap.String("model", string(s.deps.Analyzer.Options().Model)),
			)

			runner := &pipeline.Runner{
				Workers:  s.cfg.Workers,
				Analyzer: s.deps.Analyzer,
				Sink:     s.deps.Sink,
				Logger:   s.logger,
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				runner.Write = func(ctx context.Context, rep *analysis.Report) error {
					s.printGame(cmd.ErrOrStderr(), rep.Metrics)
					return s.deps.Sink.Write(ctx, rep.Metrics)
				}
			}
			sum, err := s.run(cmd, args, runner)
			if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
				s.printSummary(cmd.ErrOrStderr(), sum)
			}
			if err != nil {
				return err
			}
			if strict, _ := cmd.Flags().GetBool("strict"); strict && (sum.Failed > 0 || sum.SinkErrors > 0) {
				return fmt.Errorf("%d failed games, %d sink errors", sum.Failed, sum.SinkErrors)
			}
			return nil
		},
	}
	cmd.Flags().IntP("precision", "p", 0, "decimals kept in emitted metrics (negative keeps full precision)")
	cmd.Flags().StringP("out", "o", "", `JSONL output file ("-" for stdout)`)
	cmd.Flags().Bool("strict", false, "exit non-zero when any game or sink write failed")
	cmd.Flags().BoolP("quiet", "q", false, "do not print the run summary")
	cmd.Flags().Bool("verbose", false, "print a per-side breakdown of every game on stderr")
	return cmd
}
