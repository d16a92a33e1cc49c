// Package filewriter provides a pool of shared, reference-counted file
// writers keyed by path, so that several filters can append to the same
// output file (e.g. a shared CSV sink) without clobbering each other or
// opening the file more than once.
package filewriter

import (
	"log"
	"os"
	"sync"

	"github.com/abrandao/iotseries/pkg/ierrors"
)

// activeWriter is a single open file shared by every Accessor pointing
// at the same path, grounded on FileWritersPool::ActiveWriter.
type activeWriter struct {
	mu    sync.Mutex
	file  *os.File
	empty bool
	refs  uint
}

func (w *activeWriter) write(buf []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(buf); err != nil {
		return ierrors.Wrap(ierrors.Transient, "file writer write failed", err)
	}
	w.empty = false
	return nil
}

// Pool hands out reference-counted Accessors onto files, opening each
// path at most once regardless of how many filters write to it.
type Pool struct {
	mu      sync.Mutex
	writers map[string]*activeWriter
}

// NewPool builds an empty pool.
func NewPool() *Pool {
	return &Pool{writers: make(map[string]*activeWriter)}
}

// Accessor is a handle onto a pooled file. Every Accessor obtained from
// Open must eventually be Closed.
type Accessor struct {
	pool   *Pool
	path   string
	writer *activeWriter
}

// Open returns an Accessor for path, opening the file for append if
// append is true, truncating it otherwise. If this is the first live
// accessor and the file is empty, header is written before Open
// returns. Concurrent Opens of the same path share one underlying
// *os.File.
func (p *Pool) Open(path string, append bool, header []byte) (*Accessor, error) {
	p.mu.Lock()
	w, found := p.writers[path]
	if !found {
		flags := os.O_CREATE | os.O_WRONLY
		var wasEmpty bool
		if append {
			flags |= os.O_APPEND
			info, err := os.Stat(path)
			wasEmpty = err != nil || info.Size() == 0
		} else {
			flags |= os.O_TRUNC
			wasEmpty = true
		}

		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			p.mu.Unlock()
			return nil, ierrors.Wrap(ierrors.Transient, "cannot open file "+path, err)
		}
		log.Printf("filewriter: opening file %s", path)
		w = &activeWriter{file: f, empty: wasEmpty}
		p.writers[path] = w
	} else {
		log.Printf("filewriter: reusing accessor to file %s", path)
	}
	p.mu.Unlock()

	w.mu.Lock()
	w.refs++
	writeHeader := w.empty && len(header) > 0
	w.mu.Unlock()

	a := &Accessor{pool: p, path: path, writer: w}
	if writeHeader {
		if err := a.Write(header); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Write appends buf to the shared file, serialized against every other
// Accessor on the same path.
func (a *Accessor) Write(buf []byte) error {
	return a.writer.write(buf)
}

// Close releases this accessor's reference. The last accessor to close
// a given path closes the underlying file and removes it from the pool.
func (a *Accessor) Close() error {
	p := a.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	w := a.writer
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.refs == 0 {
		return ierrors.New(ierrors.Fatal, "filewriter: closing an already-closed accessor")
	}
	w.refs--

	if w.refs == 0 {
		log.Printf("filewriter: closing file %s", a.path)
		delete(p.writers, a.path)
		if err := w.file.Close(); err != nil {
			return ierrors.Wrap(ierrors.Transient, "close failed for "+a.path, err)
		}
	} else {
		log.Printf("filewriter: closing accessor to file %s", a.path)
	}
	return nil
}
