// Package persistence writes and reads the must-link constraint artifact:
// one directed graph edge per line, "<entity_id>\t<neighbor_id>\n", no header.
package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sanonone/contigraph/pkg/graph"
)

// ErrWrite marks any failure to produce the must-link file.
var ErrWrite = errors.New("must-link write failed")

// ErrMalformedLine is returned by the reader for lines that are not two
// tab-separated integers.
var ErrMalformedLine = errors.New("malformed must-link line")

// Edge is one must-link constraint.
type Edge struct {
	From int64
	To   int64
}

// MustLinkWriter buffers edges and writes them to a file. The file is
// truncated when the writer is opened.
type MustLinkWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	path string
	n    int
}

// NewMustLinkWriter creates or truncates the file at path.
func NewMustLinkWriter(path string) (*MustLinkWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrWrite, path, err)
	}
	return &MustLinkWriter{
		file: file,
		buf:  bufio.NewWriter(file),
		path: path,
	}, nil
}

// WriteEdge appends one line.
func (w *MustLinkWriter) WriteEdge(from, to int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := writeLine(w.buf, from, to); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	w.n++
	return nil
}

// Count returns the number of edges written so far.
func (w *MustLinkWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Path returns the file path.
func (w *MustLinkWriter) Path() string {
	return w.path
}

// Close flushes the buffer, syncs and closes the file.
func (w *MustLinkWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("%w: flush: %w", ErrWrite, err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("%w: sync: %w", ErrWrite, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrWrite, err)
	}
	return nil
}

func writeLine(w io.Writer, from, to int64) error {
	var line [48]byte
	b := strconv.AppendInt(line[:0], from, 10)
	b = append(b, '\t')
	b = strconv.AppendInt(b, to, 10)
	b = append(b, '\n')
	_, err := w.Write(b)
	return err
}

// Encode writes every edge of g to w in entity order, then neighbor order.
// Reciprocal edges are written twice. It returns the number of lines.
func Encode(w io.Writer, g *graph.Graph) (int, error) {
	n := 0
	for _, e := range g.Entities {
		for _, nb := range e.Neighbors {
			if err := writeLine(w, e.ID, nb.ID); err != nil {
				return n, fmt.Errorf("%w: %w", ErrWrite, err)
			}
			n++
		}
	}
	return n, nil
}

// Export overwrites path with the edges of g.
func Export(path string, g *graph.Graph) (int, error) {
	w, err := NewMustLinkWriter(path)
	if err != nil {
		return 0, err
	}
	for _, e := range g.Entities {
		for _, nb := range e.Neighbors {
			if err := w.WriteEdge(e.ID, nb.ID); err != nil {
				_ = w.file.Close()
				return w.n, err
			}
		}
	}
	if err := w.Close(); err != nil {
		return w.n, err
	}
	slog.Info("[Persistence] Must-link constraints written", "path", path, "edges", w.n)
	return w.n, nil
}

// ReadMustLinks parses a must-link file.
func ReadMustLinks(path string) ([]Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open must-link file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses must-link lines from r.
func Decode(r io.Reader) ([]Edge, error) {
	var edges []Edge
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		from, to, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			return nil, fmt.Errorf("%w at line %d", ErrMalformedLine, line)
		}
		a, err := strconv.ParseInt(from, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w at line %d: %w", ErrMalformedLine, line, err)
		}
		b, err := strconv.ParseInt(to, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w at line %d: %w", ErrMalformedLine, line, err)
		}
		edges = append(edges, Edge{From: a, To: b})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}
