package main

import (
	"context"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/chess-game-metrics/internal/analysis"
	"github.com/park285/chess-game-metrics/internal/pipeline"
	"github.com/park285/chess-game-metrics/internal/sink"
	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

func Normalize() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize [pgn files or directories...]",
		Short: "Emit the White-relative evaluation sequence of every game",
		Long: heredoc.Doc(`normalize writes one JSON line per game holding its evaluations
			in pawns from White's point of view, led by the baseline value.
			Book moves read as 0, mates as +/-100 and Black-relative CCRL
			comments are flipped.

			The sequence is what analyze feeds into its loss accumulator,
			so this is the place to check a collection before scoring it.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = s.logger.Sync() }()

			out := sink.NewJSONL(cmd.OutOrStdout())
			if path, _ := cmd.Flags().GetString("out"); path != "" && path != "-" {
				f, err := sink.OpenJSONL(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			runner := &pipeline.Runner{
				Workers:  s.cfg.Workers,
				Analyzer: s.deps.Analyzer,
				Logger:   s.logger,
				Write: func(ctx context.Context, rep *analysis.Report) error {
					return out.Append(sequence(rep))
				},
			}
			sum, err := s.run(cmd, args, runner)
			s.logger.Info("normalize_finished", zap.Int("games", sum.Games), zap.Int("failed", sum.Failed))
			return err
		},
	}
	cmd.Flags().StringP("out", "o", "", `JSONL output file ("-" for stdout)`)
	return cmd
}

func sequence(rep *analysis.Report) metricsdto.EvalSequence {
	m := rep.Metrics
	return metricsdto.EvalSequence{
		GameID: m.GameID,
		White:  m.White,
		Black:  m.Black,
		Result: m.Result,
		Evals:  rep.Evals,
	}
}
