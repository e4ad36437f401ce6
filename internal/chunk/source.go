// Package chunk reads FASTQ input and cuts it into record-aligned chunks
// for parallel parsing.
package chunk

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/vertti/fastqio/fastq"
)

const sourceBufSize = 1 << 20

// Source yields decompressed FASTQ bytes from a file or stream. Read
// failures of the underlying medium surface as *fastq.IOError, failures
// of the compressed stream as *fastq.DecompressionError.
type Source struct {
	r          io.Reader
	closeFn    func() error
	compressed bool
}

// Open opens a FASTQ file for reading, transparently decompressing gzip
// and zstd inputs detected by file extension or magic bytes. Path "-" or
// "" reads from stdin. Plain regular files are served from a read-only
// memory map when the platform allows it.
func Open(path string) (*Source, error) {
	if path == "" || path == "-" {
		return FromReader(os.Stdin)
	}

	f, err := os.Open(path) //nolint:gosec // library opens caller-specified files
	if err != nil {
		return nil, &fastq.IOError{Err: err}
	}
	src, err := newFileSource(path, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return src, nil
}

// FromReader wraps an arbitrary stream, detecting gzip and zstd by magic
// bytes alone. Close releases the decompressor but not r.
func FromReader(r io.Reader) (*Source, error) {
	br := bufio.NewReaderSize(r, sourceBufSize)
	magic, err := peekMagic(br)
	if err != nil {
		return nil, &fastq.IOError{Err: err}
	}

	switch {
	case hasGzipMagic(magic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &fastq.DecompressionError{Err: err}
		}
		return &Source{r: gz, compressed: true, closeFn: gz.Close}, nil

	case hasZstdMagic(magic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, &fastq.DecompressionError{Err: err}
		}
		return &Source{
			r:          dec,
			compressed: true,
			closeFn: func() error {
				dec.Close()
				return nil
			},
		}, nil
	}

	return &Source{r: br}, nil
}

func newFileSource(path string, f *os.File) (*Source, error) {
	br := bufio.NewReaderSize(f, sourceBufSize)
	magic, err := peekMagic(br)
	if err != nil {
		return nil, &fastq.IOError{Err: err}
	}

	switch {
	case hasGzipSuffix(path) || hasGzipMagic(magic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &fastq.DecompressionError{Err: err}
		}
		return &Source{
			r:          gz,
			compressed: true,
			closeFn: func() error {
				_ = gz.Close()
				return f.Close()
			},
		}, nil

	case hasZstdSuffix(path) || hasZstdMagic(magic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, &fastq.DecompressionError{Err: err}
		}
		return &Source{
			r:          dec,
			compressed: true,
			closeFn: func() error {
				dec.Close()
				return f.Close()
			},
		}, nil
	}

	// Plain input: serve reads from a memory map when possible. Empty
	// files and special files fall back to buffered reads.
	if m, merr := mmap.Map(f, mmap.RDONLY, 0); merr == nil {
		return &Source{
			r: bytes.NewReader(m),
			closeFn: func() error {
				_ = m.Unmap()
				return f.Close()
			},
		}, nil
	}

	return &Source{r: br, closeFn: f.Close}, nil
}

func (s *Source) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = s.classify(err)
	}
	return n, err
}

// classify distinguishes medium failures from compressed-stream failures.
// Decompressors pass underlying read errors through as *fs.PathError.
func (s *Source) classify(err error) error {
	if !s.compressed {
		return &fastq.IOError{Err: err}
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return &fastq.IOError{Err: err}
	}
	return &fastq.DecompressionError{Err: err}
}

// Compressed reports whether the source decompresses its input.
func (s *Source) Compressed() bool {
	return s.compressed
}

// Close releases the decompressor and the underlying file, if any.
// It is safe to call more than once.
func (s *Source) Close() error {
	if s.closeFn == nil {
		return nil
	}
	err := s.closeFn()
	s.closeFn = nil
	return err
}

func peekMagic(br *bufio.Reader) ([]byte, error) {
	magic, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return magic, nil
}

func hasGzipSuffix(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

func hasZstdSuffix(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".zst") || strings.HasSuffix(lower, ".zstd")
}

func hasGzipMagic(magic []byte) bool {
	return len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b
}

func hasZstdMagic(magic []byte) bool {
	return len(magic) >= 4 &&
		magic[0] == 0x28 && magic[1] == 0xb5 && magic[2] == 0x2f && magic[3] == 0xfd
}
