package pgnsource

import (
	"bufio"
	"context"
	"io"
	"strings"
)

const maxLineBytes = 8 * 1024 * 1024

// Split cuts a PGN stream into one text per game and sends them on out.
// A game starts at a tag line that follows a blank line.
func Split(ctx context.Context, r io.Reader, out chan<- string) error {
	sb := &strings.Builder{}
	isEmptyPrevLine := true

	s := bufio.NewScanner(r)
	// lichess exports keep the whole movetext on one line
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	flush := func() error {
		if strings.TrimSpace(sb.String()) == "" {
			sb.Reset()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- sb.String():
		}
		sb = &strings.Builder{}
		return nil
	}

	for s.Scan() {
		line := strings.TrimSuffix(s.Text(), "\r")
		if strings.HasPrefix(line, "[") && isEmptyPrevLine && sb.Len() != 0 {
			if err := flush(); err != nil {
				return err
			}
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		isEmptyPrevLine = strings.TrimSpace(line) == ""
	}
	if err := s.Err(); err != nil {
		return err
	}
	return flush()
}
