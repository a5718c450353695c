package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	pkgsource "github.com/jittakal/logship/pkg/source"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgsource.Source = (*LineSource)(nil)

// DefaultMaxLineBytes bounds a single input line.
const DefaultMaxLineBytes = 1024 * 1024

// LineSource reads newline-delimited records from a reader, usually stdin.
// Each line is decoded with Decode.
type LineSource struct {
	name    string
	r       io.Reader
	maxLine int
	logger  *slog.Logger

	lines   atomic.Uint64
	invalid atomic.Uint64
}

// NewLineSource creates a source reading r. A nil reader means os.Stdin.
func NewLineSource(name string, r io.Reader, maxLine int, logger *slog.Logger) *LineSource {
	if r == nil {
		r = os.Stdin
	}
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &LineSource{name: name, r: r, maxLine: maxLine, logger: logger}
}

// Run records every decodable line until the input ends or ctx is done.
// Events without a source are tagged with the source name.
func (s *LineSource) Run(ctx context.Context, rec pkgsource.Recorder) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.r)
		scanner.Buffer(make([]byte, 0, min(64*1024, s.maxLine)), s.maxLine)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil && !errors.Is(err, io.EOF) {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return nil
			}
			s.handle(line, rec)
		}
	}
}

func (s *LineSource) handle(line []byte, rec pkgsource.Recorder) {
	if len(line) == 0 {
		return
	}
	s.lines.Add(1)

	ev, err := Decode(line)
	if err != nil {
		s.invalid.Add(1)
		s.logger.Warn("Skipping undecodable line", "source", s.name, "error", err)
		return
	}
	if ev.Source == "" {
		ev.Source = s.name
	}
	rec.Record(ev)
}

// Lines returns the number of non-empty lines read.
func (s *LineSource) Lines() uint64 {
	return s.lines.Load()
}

// Invalid returns the number of lines that could not be decoded.
func (s *LineSource) Invalid() uint64 {
	return s.invalid.Load()
}

// Close closes the reader when it is an io.Closer other than stdin.
func (s *LineSource) Close() error {
	if s.r == os.Stdin {
		return nil
	}
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
