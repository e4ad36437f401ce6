// Package pipeline runs chunked FASTQ parsing across a pool of workers
// while preserving input order.
package pipeline

import (
	"context"
	"errors"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vertti/fastqio/fastq"
	"github.com/vertti/fastqio/internal/chunk"
)

// Config sizes the worker pool and the chunks it feeds on.
type Config struct {
	Workers   int // parallel parse workers (default: NumCPU)
	ChunkSize int // soft chunk size in bytes (default: chunk.DefaultTargetBytes)
}

// Transform rewrites or filters a parsed batch. A nil Transform passes
// batches through unchanged. Transforms run concurrently on independent
// batches and must not keep state across calls.
type Transform func([]fastq.Record) []fastq.Record

// Stream delivers parsed record batches in input order. Streams are not
// safe for concurrent use.
type Stream interface {
	// Next returns the next non-empty batch, or io.EOF after the last one.
	Next() ([]fastq.Record, error)
	// Close stops the stream and releases the underlying source. Records
	// already returned by Next remain valid.
	Close() error
}

// batchResult carries one parsed chunk from a worker to the collector.
type batchResult struct {
	index   int
	records []fastq.Record
}

// New builds a Stream over r. closer, if non-nil, is closed with the
// stream. Parsing and transforming parallelize across cfg.Workers;
// reading r stays on a single goroutine.
func New(ctx context.Context, r io.Reader, closer io.Closer, cfg Config, fn Transform) Stream {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultTargetBytes
	}

	sp := chunk.NewSplitter(r, cfg.ChunkSize)

	// Single worker: parse inline on the caller's goroutine.
	if cfg.Workers == 1 {
		return &syncStream{ctx: ctx, sp: sp, fn: fn, closer: closer}
	}
	return newParallelStream(ctx, sp, closer, cfg, fn)
}

type syncStream struct {
	ctx    context.Context
	sp     *chunk.Splitter
	fn     Transform
	closer io.Closer
	err    error
}

func (s *syncStream) Next() ([]fastq.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		if s.ctx.Err() != nil {
			s.err = io.EOF
			return nil, io.EOF
		}
		c, err := s.sp.Next()
		if err != nil {
			s.err = err
			return nil, err
		}
		records, err := fastq.ParseChunk(c.Data, c.FirstLine)
		if err != nil {
			s.err = err
			return nil, err
		}
		if s.fn != nil {
			records = s.fn(records)
		}
		if len(records) > 0 {
			return records, nil
		}
	}
}

func (s *syncStream) Close() error {
	if s.err == nil {
		s.err = io.EOF
	}
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

type parallelStream struct {
	cancel context.CancelFunc
	out    chan []fastq.Record
	done   chan struct{}
	err    error // set before done closes
	closer io.Closer
}

func newParallelStream(parent context.Context, sp *chunk.Splitter, closer io.Closer, cfg Config, fn Transform) *parallelStream {
	ctx, cancel := context.WithCancel(parent)
	st := &parallelStream{
		cancel: cancel,
		out:    make(chan []fastq.Record, cfg.Workers*2),
		done:   make(chan struct{}),
		closer: closer,
	}

	jobs := make(chan chunk.Chunk, cfg.Workers*2)
	results := make(chan batchResult, cfg.Workers*2)

	g, ctx := errgroup.WithContext(ctx)

	// Start workers
	for range cfg.Workers {
		g.Go(func() error {
			return runParseWorker(ctx, jobs, results, fn)
		})
	}

	// Producer: cut chunks and dispatch
	g.Go(func() error {
		defer close(jobs)
		return produceChunks(ctx, sp, jobs)
	})

	// Collector: release batches in order
	var collectorErr error
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		collectorErr = collectInOrder(ctx, results, st.out)
	}()

	go func() {
		workerErr := g.Wait()
		close(results)
		<-collectorDone
		st.err = streamError(workerErr, collectorErr)
		close(st.out)
		close(st.done)
	}()

	return st
}

func (st *parallelStream) Next() ([]fastq.Record, error) {
	batch, ok := <-st.out
	if !ok {
		<-st.done
		if st.err != nil {
			return nil, st.err
		}
		return nil, io.EOF
	}
	return batch, nil
}

func (st *parallelStream) Close() error {
	st.cancel()
	for range st.out { //nolint:revive // drain until the monitor closes out
	}
	<-st.done
	if st.closer == nil {
		return nil
	}
	err := st.closer.Close()
	st.closer = nil
	return err
}

func runParseWorker(ctx context.Context, jobs <-chan chunk.Chunk, results chan<- batchResult, fn Transform) error {
	for c := range jobs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		records, err := fastq.ParseChunk(c.Data, c.FirstLine)
		if err != nil {
			return err
		}
		if fn != nil {
			records = fn(records)
		}

		select {
		case results <- batchResult{index: c.Index, records: records}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func produceChunks(ctx context.Context, sp *chunk.Splitter, jobs chan<- chunk.Chunk) error {
	for {
		c, err := sp.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case jobs <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// collectInOrder holds out-of-order batches in a pending map and releases
// the lowest-indexed batch as soon as it completes the sequence. Batches a
// transform emptied advance the sequence without being released.
func collectInOrder(ctx context.Context, results <-chan batchResult, out chan<- []fastq.Record) error {
	pending := make(map[int][]fastq.Record)
	next := 0

	for res := range results {
		pending[res.index] = res.records

		for {
			batch, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if len(batch) == 0 {
				continue
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// streamError picks the first meaningful error. Cancellation alone ends
// the stream without error.
func streamError(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
