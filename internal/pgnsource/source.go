package pgnsource

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/chess-game-metrics/internal/domain"
)

// Item is one parsed game, or the reason a game could not be parsed.
type Item struct {
	Record domain.GameRecord
	Source string
	Err    error
}

// Stdin is the path that names standard input.
const Stdin = "-"

type Source struct {
	Format Format
	Logger *zap.Logger
	// In is read for the Stdin path; nil means os.Stdin.
	In io.Reader
}

// Files expands paths into the .pgn files they name, descending into
// directories. Stdin is passed through.
func Files(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		if p == Stdin {
			files = append(files, p)
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pgn") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return files, nil
}

// Games streams every game found under paths to out. Games that fail to
// parse are still sent, with Err set, so the caller can account for them.
// Only I/O failures and cancellation end the stream early.
func (s *Source) Games(ctx context.Context, paths []string, out chan<- Item) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	files, err := Files(paths)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := s.file(ctx, file, out, logger); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) file(ctx context.Context, path string, out chan<- Item, logger *zap.Logger) error {
	if path == Stdin {
		in := s.In
		if in == nil {
			in = os.Stdin
		}
		return s.stream(ctx, "stdin", in, out, logger)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.stream(ctx, path, f, out, logger)
}

func (s *Source) stream(ctx context.Context, path string, r io.Reader, out chan<- Item, logger *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	texts := make(chan string, 64)
	g.Go(func() error {
		defer close(texts)
		return Split(ctx, r, texts)
	})
	g.Go(func() error {
		n := 0
		for text := range texts {
			n++
			item := Item{Source: fmt.Sprintf("%s#%d", path, n)}
			item.Record, item.Err = parseSafely(text, s.Format)
			item.Record.Source = item.Source
			if item.Err != nil {
				logger.Warn("pgn_parse_failed", zap.String("source", item.Source), zap.Error(item.Err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- item:
			}
		}
		logger.Debug("pgn_file_done", zap.String("path", path), zap.Int("games", n))
		return nil
	})
	return g.Wait()
}

// parseSafely keeps a parser panic on one game from taking down the stream.
func parseSafely(text string, f Format) (rec domain.GameRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pgn: panic: %v", r)
		}
	}()
	return Parse(text, f)
}
