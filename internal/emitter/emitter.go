// Package emitter writes notifications to the console: a human-readable part
// followed by a sentinel-delimited JSON block that downstream tooling can
// extract reliably from mixed output.
package emitter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/bassista/court_watch/internal/notification"
)

const (
	BeginMarker = "===COURT_WATCH_NOTIFICATION_BEGIN==="
	EndMarker   = "===COURT_WATCH_NOTIFICATION_END==="
)

// Emitter delivers a notification to its destination.
type Emitter interface {
	Emit(ctx context.Context, n *notification.Notification) error
}

// ConsoleEmitter writes notifications to a writer, normally stdout.
type ConsoleEmitter struct {
	mu    sync.Mutex
	w     io.Writer
	title *color.Color
}

// ConsoleOption configures a ConsoleEmitter.
type ConsoleOption func(*ConsoleEmitter)

// WithColor forces colour on or off regardless of the writer.
func WithColor(enabled bool) ConsoleOption {
	return func(e *ConsoleEmitter) {
		if enabled {
			e.title.EnableColor()
		} else {
			e.title.DisableColor()
		}
	}
}

// NewConsoleEmitter returns an emitter writing to w. Colour is on only when w
// is a terminal.
func NewConsoleEmitter(w io.Writer, opts ...ConsoleOption) *ConsoleEmitter {
	if w == nil {
		w = os.Stdout
	}
	e := &ConsoleEmitter{w: w, title: color.New(color.FgGreen, color.Bold)}
	if isTerminal(w) {
		e.title.EnableColor()
	} else {
		e.title.DisableColor()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Emit writes n. A nil notification writes nothing.
func (e *ConsoleEmitter) Emit(ctx context.Context, n *notification.Notification) error {
	if n == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	block, err := encodeBlock(n)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(e.title.Sprint(n.Title))
	buf.WriteByte('\n')
	buf.WriteString(n.Body)
	buf.WriteString("\n\n")
	buf.Write(block)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// encodeBlock renders the sentinel block. The JSON sits on a single line.
func encodeBlock(n *notification.Notification) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(BeginMarker)
	buf.WriteByte('\n')

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}

	buf.WriteString(EndMarker)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ExtractBlocks returns every notification found between sentinel markers in r,
// ignoring all other output.
func ExtractBlocks(r io.Reader) ([]notification.Notification, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	var (
		out     []notification.Notification
		inBlock bool
		payload strings.Builder
		line    int
		start   int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == BeginMarker:
			if inBlock {
				return out, fmt.Errorf("line %d: nested begin marker (block opened at line %d)", line, start)
			}
			inBlock = true
			start = line
			payload.Reset()
		case text == EndMarker:
			if !inBlock {
				return out, fmt.Errorf("line %d: end marker without begin", line)
			}
			var n notification.Notification
			if err := json.Unmarshal([]byte(payload.String()), &n); err != nil {
				return out, fmt.Errorf("block at line %d: %w", start, err)
			}
			out = append(out, n)
			inBlock = false
		case inBlock:
			payload.WriteString(text)
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read output: %w", err)
	}
	if inBlock {
		return out, fmt.Errorf("block at line %d is not terminated", start)
	}
	return out, nil
}
