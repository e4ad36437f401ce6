// Package fastqio reads, transforms, and writes FASTQ files with
// order-preserving parallel parsing.
//
// A Reader opened from a file restarts the input for every operation. A
// Reader over a plain io.Reader supports a single pass; a second
// operation returns ErrSourceExhausted.
package fastqio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/vertti/fastqio/internal/chunk"
	"github.com/vertti/fastqio/internal/pipeline"
)

// DefaultChunkSize is the soft per-chunk byte target for parallel parsing.
const DefaultChunkSize = chunk.DefaultTargetBytes

// Options configures a Reader. The zero value picks one worker per CPU
// and DefaultChunkSize chunks.
type Options struct {
	Workers   int // parallel parse workers (default: NumCPU)
	ChunkSize int // soft chunk size in bytes (default: DefaultChunkSize)
}

var (
	// ErrReaderClosed is returned by operations on a closed Reader.
	ErrReaderClosed = errors.New("fastqio: reader is closed")

	// ErrSourceExhausted is returned by a second operation on a Reader
	// built from a non-restartable stream.
	ErrSourceExhausted = errors.New("fastqio: stream source already consumed")
)

// Reader provides counting, transformation, and extraction over one
// FASTQ input. Methods may be called from multiple goroutines.
type Reader struct {
	opts   Options
	path   string    // file mode when non-empty
	stream io.Reader // stream mode otherwise

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	used   bool
	open   map[*trackedCloser]struct{}
}

// Open opens a FASTQ file, transparently decompressing gzip and zstd
// inputs detected by extension or magic bytes. Every operation re-reads
// the file from the start. Path "-" or "" reads stdin, which allows a
// single operation only. opts may be nil.
func Open(path string, opts *Options) (*Reader, error) {
	if path == "" || path == "-" {
		return New(os.Stdin, opts), nil
	}

	// Probe the input so unreadable files and corrupt compression
	// headers fail here rather than on first use.
	src, err := chunk.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("[reader] opened input",
		slog.String("path", path),
		slog.Bool("compressed", src.Compressed()))
	_ = src.Close()

	return newReader(path, nil, opts), nil
}

// New builds a Reader over r, which must be non-nil. Gzip and zstd
// streams are detected by magic bytes. The input can be consumed once;
// the caller keeps ownership of r.
func New(r io.Reader, opts *Options) *Reader {
	return newReader("", r, opts)
}

func newReader(path string, stream io.Reader, opts *Options) *Reader {
	var o Options
	if opts != nil {
		o = *opts
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reader{
		opts:   o,
		path:   path,
		stream: stream,
		ctx:    ctx,
		cancel: cancel,
		open:   make(map[*trackedCloser]struct{}),
	}
}

// acquire opens a fresh source pass and registers its closer so Close
// can release sources abandoned by the caller.
func (r *Reader) acquire() (io.Reader, io.Closer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, nil, ErrReaderClosed
	}

	var (
		src *chunk.Source
		err error
	)
	if r.path != "" {
		src, err = chunk.Open(r.path)
	} else {
		if r.used {
			return nil, nil, ErrSourceExhausted
		}
		src, err = chunk.FromReader(r.stream)
		if err == nil {
			r.used = true
		}
	}
	if err != nil {
		return nil, nil, err
	}

	tc := &trackedCloser{r: r, src: src}
	r.open[tc] = struct{}{}
	return src, tc, nil
}

func (r *Reader) newStream(fn pipeline.Transform) (pipeline.Stream, error) {
	src, closer, err := r.acquire()
	if err != nil {
		return nil, err
	}
	cfg := pipeline.Config{Workers: r.opts.Workers, ChunkSize: r.opts.ChunkSize}
	return pipeline.New(r.ctx, src, closer, cfg, fn), nil
}

// Close stops active operations and releases any sources still open.
// Records already returned stay valid. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	abandoned := make([]*trackedCloser, 0, len(r.open))
	for tc := range r.open {
		abandoned = append(abandoned, tc)
	}
	r.open = nil
	r.mu.Unlock()

	r.cancel()

	var firstErr error
	for _, tc := range abandoned {
		if err := tc.src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// trackedCloser deregisters a source from its Reader when closed.
type trackedCloser struct {
	r   *Reader
	src *chunk.Source
}

func (tc *trackedCloser) Close() error {
	tc.r.mu.Lock()
	delete(tc.r.open, tc)
	tc.r.mu.Unlock()
	return tc.src.Close()
}
