package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/chess-game-metrics/internal/builder"
	"github.com/park285/chess-game-metrics/internal/config"
	"github.com/park285/chess-game-metrics/internal/msgcat"
	"github.com/park285/chess-game-metrics/internal/obslog"
	"github.com/park285/chess-game-metrics/internal/pgnsource"
	"github.com/park285/chess-game-metrics/internal/pipeline"
	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

var version = "v0.1.0"

func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "gamemetrics",
		Short: "Per-game accuracy metrics from engine-annotated PGN",
		Long: heredoc.Doc(`gamemetrics reads chess games annotated with engine evaluations
			and computes, for each side, the average centipawn loss (ACPL),
			the game point loss (GPL) and the outcome-adjusted game index (GI).

			Configuration is read from --config, $GAMEMETRICS_CONFIG or
			$XDG_CONFIG_HOME/gamemetrics/config.yaml, then overridden by the
			environment and finally by flags.`),
		Args: cobra.NoArgs,

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().String("config", "", "YAML configuration file")
	root.PersistentFlags().String("format", "", "PGN annotation format: lichess or ccrl")
	root.PersistentFlags().String("model", "", "win/draw/loss model: sf16.1, sf15 or lichess")
	root.PersistentFlags().String("perspective", "", "override the format's eval side: white or mover")
	root.PersistentFlags().Int("ply", 0, "game ply assumed by the win/draw/loss model")
	root.PersistentFlags().IntP("workers", "j", 0, "games analysed in parallel (0 = one per CPU)")
	root.PersistentFlags().Bool("progress", false, "show a progress spinner on stderr")

	root.Version = version
	root.AddCommand(Analyze())
	root.AddCommand(Normalize())
	return root
}

// session is what every subcommand needs before it starts reading games.
type session struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	deps   *builder.Deps
	msgs   *msgcat.Catalog
}

// setup loads configuration and builds the source and analyzer. Sinks are
// opened only when withSinks is set.
func setup(cmd *cobra.Command, withSinks bool) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	applyFlags(cmd, cfg, withSinks)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger, err := obslog.Init(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	if cfg.Path != "" {
		logger.Debug("config_loaded", zap.String("path", cfg.Path))
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}

	var deps *builder.Deps
	if withSinks {
		deps, err = builder.New(cfg, cmd.OutOrStdout(), logger)
	} else {
		deps, err = builder.NewCore(cfg, logger)
	}
	if err != nil {
		return nil, err
	}
	deps.Source.In = cmd.InOrStdin()
	return &session{cfg: cfg, logger: logger, deps: deps, msgs: msgs}, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.AppConfig, withSinks bool) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("perspective") {
		cfg.Perspective, _ = flags.GetString("perspective")
	}
	if flags.Changed("ply") {
		cfg.Ply, _ = flags.GetInt("ply")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Lookup("precision") != nil && flags.Changed("precision") {
		cfg.Precision, _ = flags.GetInt("precision")
	}
	if withSinks && flags.Lookup("out") != nil && flags.Changed("out") {
		cfg.Sinks.JSONLPath, _ = flags.GetString("out")
	}
}

// run streams the games under paths through runner until the input is
// exhausted or the process is interrupted.
func (s *session) run(cmd *cobra.Command, paths []string, runner *pipeline.Runner) (pipeline.Summary, error) {
	if len(paths) == 0 {
		paths = []string{pgnsource.Stdin}
	}
	ctx, stop := signal.NotifyContext(withContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if show, _ := cmd.Flags().GetBool("progress"); show {
		sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		sp.Suffix = " reading games"
		sp.Start()
		defer sp.Stop()
		runner.Progress = func(sum pipeline.Summary) {
			sp.Lock()
			sp.Suffix = fmt.Sprintf(" %d games, %d failed", sum.Games, sum.Failed)
			sp.Unlock()
		}
	}

	items := make(chan pgnsource.Item, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(items)
		return s.deps.Source.Games(gctx, paths, items)
	})
	var sum pipeline.Summary
	g.Go(func() error {
		var err error
		sum, err = runner.Run(gctx, items)
		return err
	})
	err := g.Wait()
	return sum, err
}

func (s *session) printSummary(w io.Writer, sum pipeline.Summary) {
	sum.Elapsed = sum.Elapsed.Round(time.Millisecond)
	s.println(w, "summary.run", sum)
	for _, f := range sum.Failures {
		s.println(w, "summary.failure", f)
	}
}

// printGame writes the per-side breakdown of one record.
func (s *session) printGame(w io.Writer, m *metricsdto.GameMetrics) {
	s.println(w, "game.header", m)
	s.println(w, "game.side", sideLine{Color: "white", Side: m.WhiteSide()})
	s.println(w, "game.side", sideLine{Color: "black", Side: m.BlackSide()})
	for _, d := range m.Diagnostics {
		s.println(w, "game.diagnostic", d)
	}
}

type sideLine struct {
	Color string
	metricsdto.Side
}

func (s *session) println(w io.Writer, key string, data any) {
	line, err := s.msgs.Render(key, data)
	if err != nil {
		s.logger.Warn("render_failed", zap.String("key", key), zap.Error(err))
		return
	}
	fmt.Fprintln(w, line)
}

func withContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
