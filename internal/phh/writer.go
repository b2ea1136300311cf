package phh

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/lox/cardroom/internal/fileutil"
	"github.com/lox/cardroom/internal/game"
	"github.com/rs/zerolog"
)

// maxFailures is how many flushes in a row may fail before the writer gives
// up and drops what it has buffered
const maxFailures = 3

// Writer appends settled hands to a .phhs file as numbered sections. Hands
// are buffered and written every flushHands hands and on OnComplete.
type Writer struct {
	path       string
	flushHands int
	logger     zerolog.Logger

	mu       sync.Mutex
	buffer   []*HandHistory
	section  int
	failures int
	disabled bool
}

// NewWriter opens a writer on path, continuing the section numbering of an
// existing file
func NewWriter(path string, flushHands int, logger zerolog.Logger) (*Writer, error) {
	if path == "" {
		return nil, errors.New("phh: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("phh: create dir: %w", err)
	}
	section, err := lastSection(path)
	if err != nil {
		return nil, fmt.Errorf("phh: read sections: %w", err)
	}
	return &Writer{
		path:       path,
		flushHands: max(1, flushHands),
		logger:     logger.With().Str("component", "phh").Str("path", path).Logger(),
		section:    section,
	}, nil
}

// OnHandSettled buffers a hand and flushes when the buffer is full
func (w *Writer) OnHandSettled(s game.Settlement) {
	w.mu.Lock()
	if w.disabled {
		w.mu.Unlock()
		return
	}
	w.buffer = append(w.buffer, FromSettlement(&s))
	full := len(w.buffer) >= w.flushHands
	w.mu.Unlock()

	if full {
		_ = w.Flush()
	}
}

// OnComplete flushes whatever is buffered
func (w *Writer) OnComplete(int, string) {
	_ = w.Flush()
}

// Close flushes whatever is buffered
func (w *Writer) Close() error {
	return w.Flush()
}

// Flush writes buffered hands in a single append
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disabled || len(w.buffer) == 0 {
		return nil
	}

	var buf bytes.Buffer
	section := w.section
	for i, hand := range w.buffer {
		section++
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "[%d]\n", section)
		if err := Encode(&buf, hand); err != nil {
			return w.failed(err)
		}
	}
	if err := fileutil.AppendLine(w.path, buf.Bytes(), 0o644); err != nil {
		return w.failed(err)
	}

	w.logger.Debug().Int("hands", len(w.buffer)).Int("section", section).Msg("flushed hand histories")
	w.section = section
	w.buffer = w.buffer[:0]
	w.failures = 0
	return nil
}

// Disabled reports whether repeated failures stopped the writer
func (w *Writer) Disabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled
}

func (w *Writer) failed(err error) error {
	w.failures++
	w.logger.Warn().Err(err).Int("failures", w.failures).Msg("hand history flush failed")
	if w.failures >= maxFailures {
		w.logger.Error().Int("dropped", len(w.buffer)).Msg("hand history disabled")
		w.buffer = nil
		w.disabled = true
	}
	return err
}

// lastSection returns the highest [n] header in path, or zero
func lastSection(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	last := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) < 3 || line[0] != '[' || line[len(line)-1] != ']' {
			continue
		}
		if n, err := strconv.Atoi(line[1 : len(line)-1]); err == nil && n > last {
			last = n
		}
	}
	return last, scanner.Err()
}
