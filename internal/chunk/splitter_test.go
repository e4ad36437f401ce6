package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/fastqio/fastq"
)

// makeFASTQ builds n records with read lengths varying by index.
func makeFASTQ(n int) []byte {
	var buf bytes.Buffer
	for i := range n {
		readLen := 20 + (i*7)%120
		buf.WriteString(fmt.Sprintf("@read_%d some description\n", i))
		for j := range readLen {
			buf.WriteByte("ACGT"[(i+j)%4])
		}
		buf.WriteByte('\n')
		buf.WriteString("+\n")
		buf.Write(bytes.Repeat([]byte{'I'}, readLen))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func collectChunks(t *testing.T, s *Splitter) []Chunk {
	t.Helper()

	var chunks []Chunk
	for {
		c, err := s.Next()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
}

func TestSplitterSingleChunk(t *testing.T) {
	t.Parallel()

	input := makeFASTQ(10)
	s := NewSplitter(bytes.NewReader(input), DefaultTargetBytes)

	chunks := collectChunks(t, s)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, int64(1), chunks[0].FirstLine)
	assert.Equal(t, input, chunks[0].Data)
}

func TestSplitterEmptyInput(t *testing.T) {
	t.Parallel()

	s := NewSplitter(strings.NewReader(""), DefaultTargetBytes)
	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSplitterRoundTrip(t *testing.T) {
	t.Parallel()

	input := makeFASTQ(200)

	for _, target := range []int{1, 16, 64, 256, 1024, 8192} {
		t.Run(fmt.Sprintf("target=%d", target), func(t *testing.T) {
			t.Parallel()

			s := NewSplitter(bytes.NewReader(input), target)
			chunks := collectChunks(t, s)
			require.NotEmpty(t, chunks)

			var rebuilt []byte
			line := int64(1)
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, line, c.FirstLine)

				nl := bytes.Count(c.Data, []byte{'\n'})
				assert.Zero(t, nl%4, "chunk %d not record-aligned", i)

				rebuilt = append(rebuilt, c.Data...)
				line += int64(nl)
			}
			assert.Equal(t, input, rebuilt)
		})
	}
}

func TestSplitterChunksParseCleanly(t *testing.T) {
	t.Parallel()

	const numRecords = 150
	input := makeFASTQ(numRecords)

	s := NewSplitter(bytes.NewReader(input), 512)
	total := 0
	for _, c := range collectChunks(t, s) {
		records, err := fastq.ParseChunk(c.Data, c.FirstLine)
		require.NoError(t, err)
		total += len(records)
	}
	assert.Equal(t, numRecords, total)
}

func TestSplitterRecordLongerThanTarget(t *testing.T) {
	t.Parallel()

	longRead := strings.Repeat("ACGT", 4096) // 16KiB read
	input := "@long\n" + longRead + "\n+\n" + strings.Repeat("I", len(longRead)) + "\n"

	s := NewSplitter(strings.NewReader(input), 64)
	chunks := collectChunks(t, s)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte(input), chunks[0].Data)
}

func TestSplitterTargetOnRecordBoundary(t *testing.T) {
	t.Parallel()

	record := "@r\nAC\n+\nII\n" // 11 bytes
	input := strings.Repeat(record, 4)

	s := NewSplitter(strings.NewReader(input), len(record))
	chunks := collectChunks(t, s)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, []byte(record), c.Data)
		assert.Equal(t, int64(i*4+1), c.FirstLine)
	}
}

func TestSplitterUnterminatedFinalLine(t *testing.T) {
	t.Parallel()

	input := "@r1\nACGT\n+\nIIII" // no trailing newline
	s := NewSplitter(strings.NewReader(input), DefaultTargetBytes)

	chunks := collectChunks(t, s)
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte(input), chunks[0].Data)
}

func TestSplitterTruncatedInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		target   int
		wantLine int64
	}{
		{
			name:     "partial record only",
			input:    "@r1\nACGT\n+\n",
			target:   DefaultTargetBytes,
			wantLine: 1,
		},
		{
			name:     "partial after complete record",
			input:    "@r1\nACGT\n+\nIIII\n@r2\nAC",
			target:   DefaultTargetBytes,
			wantLine: 5,
		},
		{
			name:     "partial in later chunk",
			input:    "@r1\nACGT\n+\nIIII\n@r2\nACGT\n+\nIIII\n@r3\nACGT\n",
			target:   8,
			wantLine: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewSplitter(strings.NewReader(tt.input), tt.target)

			var err error
			for {
				_, err = s.Next()
				if err != nil {
					break
				}
			}

			var terr *fastq.TruncatedRecordError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.wantLine, terr.Line)

			// Errors are sticky.
			_, again := s.Next()
			assert.Equal(t, err, again)
		})
	}
}

func TestSplitterReadErrorPassthrough(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("disk on fire")
	s := NewSplitter(io.MultiReader(
		strings.NewReader("@r1\nACGT\n+\nIIII\n"),
		&failingReader{err: wantErr},
	), DefaultTargetBytes)

	_, err := s.Next()
	assert.ErrorIs(t, err, wantErr)
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

func BenchmarkSplitter(b *testing.B) {
	input := makeFASTQBench(100000)
	b.SetBytes(int64(len(input)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		s := NewSplitter(bytes.NewReader(input), DefaultTargetBytes)
		for {
			_, err := s.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

func makeFASTQBench(n int) []byte {
	var buf bytes.Buffer
	seq := strings.Repeat("ACGT", 38)
	qual := strings.Repeat("I", 152)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "@read_%d\n%s\n+\n%s\n", i, seq, qual)
	}
	return buf.Bytes()
}
