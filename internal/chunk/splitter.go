package chunk

import (
	"bytes"
	"errors"
	"io"

	"github.com/vertti/fastqio/fastq"
)

const (
	// DefaultTargetBytes is the soft chunk size. Chunks end at the first
	// record boundary at or past the target, so actual chunks run a
	// little larger.
	DefaultTargetBytes = 1 << 20

	readSize = 64 * 1024

	linesPerRecord = 4
)

// Chunk is a run of whole FASTQ records cut from the input stream.
type Chunk struct {
	Index     int    // 0-based position in the stream
	Data      []byte // complete 4-line records
	FirstLine int64  // 1-based line number of the chunk's first line
}

// Splitter cuts a FASTQ stream into record-aligned chunks. Each chunk
// owns its backing array, so chunks can be parsed concurrently and
// outlive one another.
type Splitter struct {
	r      io.Reader
	target int
	tail   []byte
	index  int
	line   int64 // newlines emitted in prior chunks
	eof    bool
	err    error
}

// NewSplitter returns a Splitter producing chunks of roughly targetBytes
// each. A non-positive target uses DefaultTargetBytes.
func NewSplitter(r io.Reader, targetBytes int) *Splitter {
	if targetBytes <= 0 {
		targetBytes = DefaultTargetBytes
	}
	return &Splitter{r: r, target: targetBytes}
}

// Next returns the next chunk, or io.EOF after the final one. Input
// ending mid-record yields a *fastq.TruncatedRecordError. Errors are
// sticky: once Next fails, it keeps returning the same error.
func (s *Splitter) Next() (Chunk, error) {
	if s.err != nil {
		return Chunk{}, s.err
	}

	// Fresh buffer per chunk: records parsed from a chunk alias its
	// backing array, so the array must never be reused.
	buf := make([]byte, 0, len(s.tail)+s.target+readSize)
	buf = append(buf, s.tail...)
	s.tail = nil

	var (
		nl      int // newlines scanned so far
		scanned int // bytes scanned so far
		cut     int // end offset of the last complete record group
	)

	for {
		// Scan for the first record boundary at or past the target.
		for scanned < len(buf) {
			i := bytes.IndexByte(buf[scanned:], '\n')
			if i < 0 {
				scanned = len(buf)
				break
			}
			scanned += i + 1
			nl++
			if nl%linesPerRecord == 0 {
				cut = scanned
				if cut >= s.target {
					return s.emit(buf, cut, nl), nil
				}
			}
		}

		if s.eof {
			break
		}

		if len(buf) == cap(buf) {
			grown := make([]byte, len(buf), 2*cap(buf))
			copy(grown, buf)
			buf = grown
		}
		n, err := s.r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.eof = true
				continue
			}
			s.err = err
			return Chunk{}, err
		}
	}

	if len(buf) == 0 {
		s.err = io.EOF
		return Chunk{}, io.EOF
	}

	// An unterminated final line still counts as a line.
	lines := nl
	if buf[len(buf)-1] != '\n' {
		lines++
	}
	if lines%linesPerRecord != 0 {
		complete := nl - nl%linesPerRecord
		s.err = &fastq.TruncatedRecordError{Line: s.line + int64(complete) + 1}
		return Chunk{}, s.err
	}

	c := s.emit(buf, len(buf), lines)
	s.err = io.EOF
	return c, nil
}

// emit cuts buf at cut, carries the remainder as the next chunk's tail,
// and advances the line counter past the emitted lines.
func (s *Splitter) emit(buf []byte, cut, lines int) Chunk {
	c := Chunk{
		Index:     s.index,
		Data:      buf[:cut:cut],
		FirstLine: s.line + 1,
	}
	s.tail = buf[cut:]
	s.index++
	s.line += int64(lines)
	return c
}
