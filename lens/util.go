package lens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrGroupLimit returns an errgroup bound to ctx running at most jobs goroutines, NumCPU if jobs
// is not positive.
func ErrGroupLimit(ctx context.Context, jobs int) (*errgroup.Group, context.Context) {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	return eg, ctx
}

func limitStringLines(s string, count int, head bool) string {
	lines := strings.Split(s, "\n")
	if len(lines) > count {
		if head {
			lines = lines[:count]
		} else {
			lines = lines[len(lines)-count:]
		}
		return strings.Join(lines, "\n")
	} else {
		return s
	}
}

type teeWriter struct {
	one io.Writer
	two io.Writer
}

// TeeWriter duplicates writes across the non-nil writers, closing the result closes every writer
// that is an io.Closer.
func TeeWriter(writers ...io.Writer) io.WriteCloser {
	var last io.Writer
	for _, w := range writers {
		if w != nil {
			if last == nil {
				last = w
			} else {
				last = &teeWriter{
					one: last,
					two: w,
				}
			}
		}
	}

	if last == nil {
		last = io.Discard
	}
	if wc, ok := last.(io.WriteCloser); ok {
		return wc
	} else { // wrap in teeWriter to get close interface
		return &teeWriter{
			one: last,
			two: io.Discard,
		}
	}
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n1, err1 := w.one.Write(p)
	n2, err2 := w.two.Write(p)
	if err1 == nil && err2 == nil && n1 != n2 {
		return 0, fmt.Errorf("uneven write %d != %d", n1, n2)
	}
	return n1, errors.Join(err1, err2)
}

func (w *teeWriter) Close() error {
	var err1, err2 error
	if v, ok := w.one.(io.Closer); ok {
		err1 = v.Close()
	}
	if v, ok := w.two.(io.Closer); ok {
		err2 = v.Close()
	}
	return errors.Join(err1, err2)
}

// lockedWriter serializes whole writes so concurrent workers do not interleave their output.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLockedWriter(w io.Writer) *lockedWriter {
	return &lockedWriter{w: w}
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	return lw.w.Write(p)
}

// WriteString writes s with a single call to the underlying writer.
func (lw *lockedWriter) WriteString(s string) (int, error) {
	return lw.Write([]byte(s))
}
