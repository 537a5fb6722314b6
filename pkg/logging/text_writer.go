package logging

import (
	"fmt"
	"io"
	"sync"

	"github.com/embervm/ember/internal/errx"
)

// TextWriter renders events as single human-readable lines. Used when
// stderr is a terminal; structured consumers get the JSONL sink instead.
type TextWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

func (t *TextWriter) Write(event *Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "%s %-16s %s\n",
		event.Timestamp.Format("15:04:05.000"), event.EventType, event.Summary)
	if err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

func (t *TextWriter) Close() error {
	return nil
}
