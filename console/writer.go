package console

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/kbukum/scriptkit/errors"
	"github.com/kbukum/scriptkit/tasks"
)

// Writer is a host output stream. Write starts writing p and returns a
// Future that settles with the number of bytes written.
type Writer interface {
	Write(p []byte) *tasks.Future[int]
}

// StreamWriter adapts an io.Writer to Writer. Writes land on the
// underlying writer in the order Write was called.
type StreamWriter struct {
	name string
	w    io.Writer

	mu   sync.Mutex
	tail chan struct{}
}

// NewStreamWriter wraps w; name identifies the stream in errors.
func NewStreamWriter(name string, w io.Writer) *StreamWriter {
	return &StreamWriter{name: name, w: w}
}

// Write copies p and writes it once every earlier write has finished.
func (s *StreamWriter) Write(p []byte) *tasks.Future[int] {
	buf := bytes.Clone(p)

	s.mu.Lock()
	prev := s.tail
	done := make(chan struct{})
	s.tail = done
	s.mu.Unlock()

	return tasks.Go(context.Background(), func(context.Context) (int, error) {
		defer close(done)
		if prev != nil {
			<-prev
		}
		n, err := s.w.Write(buf)
		if err != nil {
			return n, errors.WriteFailed(s.name, err)
		}
		return n, nil
	})
}
