// Package sink serialises tracked bodies as CSV rows into a single shared
// output stream.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

var (
	// ErrSink wraps every failure to create, write or close the output.
	ErrSink = errors.New("output sink error")

	// ErrClosed is returned by WriteRow after Close.
	ErrClosed = errors.New("output sink closed")
)

// Writer is the append-only, concurrency-safe output for a session. Each
// WriteRow call appends one complete line and flushes it before returning;
// concurrent calls are serialised at row granularity and land in lock
// acquisition order, not capture order.
type Writer struct {
	mu     sync.Mutex
	out    io.WriteCloser
	csv    *csv.Writer
	closed bool

	rows atomic.Uint64
}

// NewWriter wraps out. The Writer owns out and closes it in Close.
func NewWriter(out io.WriteCloser) *Writer {
	return &Writer{
		out: out,
		csv: csv.NewWriter(out),
	}
}

// WriteHeader writes the column header line.
func (w *Writer) WriteHeader() error {
	return w.writeRecord(Header())
}

// WriteRow appends one row.
func (w *Writer) WriteRow(r Row) error {
	if err := w.writeRecord(r.Record()); err != nil {
		return err
	}
	w.rows.Add(1)
	return nil
}

func (w *Writer) writeRecord(rec []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.csv.Write(rec); err != nil {
		return fmt.Errorf("%w: write row: %v", ErrSink, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("%w: flush row: %v", ErrSink, err)
	}
	return nil
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() uint64 {
	return w.rows.Load()
}

// Close flushes and closes the underlying output. It waits for any
// in-flight WriteRow to finish, so no partial line is ever left behind.
// Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.out.Close()
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("%w: close: %v", ErrSink, err)
	}
	return nil
}
