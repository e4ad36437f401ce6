package fastq

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChunkSingleRecord(t *testing.T) {
	t.Parallel()

	input := `@SEQ_ID description
ACGTACGT
+
IIIIIIII
`
	records, err := ParseChunk([]byte(input), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "@SEQ_ID description", records[0].Header)
	assert.Equal(t, []byte("ACGTACGT"), records[0].Sequence)
	assert.Equal(t, []byte("IIIIIIII"), records[0].Quality)
}

func TestParseChunkMultipleRecords(t *testing.T) {
	t.Parallel()

	input := `@SEQ_1
AAAA
+
!!!!
@SEQ_2
CCCC
+
####
@SEQ_3
GGGG
+
$$$$
`
	records, err := ParseChunk([]byte(input), 1)
	require.NoError(t, err)
	require.Len(t, records, 3)

	tests := []struct {
		header string
		seq    string
		qual   string
	}{
		{"@SEQ_1", "AAAA", "!!!!"},
		{"@SEQ_2", "CCCC", "####"},
		{"@SEQ_3", "GGGG", "$$$$"},
	}

	for i, tt := range tests {
		assert.Equal(t, tt.header, records[i].Header)
		assert.Equal(t, []byte(tt.seq), records[i].Sequence)
		assert.Equal(t, []byte(tt.qual), records[i].Quality)
	}
}

func TestParseChunkEmpty(t *testing.T) {
	t.Parallel()

	records, err := ParseChunk(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseChunkCRLF(t *testing.T) {
	t.Parallel()

	input := "@SEQ_1\r\nACGT\r\n+\r\nIIII\r\n"
	records, err := ParseChunk([]byte(input), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "@SEQ_1", records[0].Header)
	assert.Equal(t, []byte("ACGT"), records[0].Sequence)
	assert.Equal(t, []byte("IIII"), records[0].Quality)
}

func TestParseChunkUnterminatedFinalLine(t *testing.T) {
	t.Parallel()

	// Last quality line has no trailing newline.
	input := "@SEQ_1\nACGT\n+\nIIII"
	records, err := ParseChunk([]byte(input), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("IIII"), records[0].Quality)
}

func TestParseChunkSeparatorPayloadIgnored(t *testing.T) {
	t.Parallel()

	input := "@SEQ_1\nACGT\n+SEQ_1 comment\nIIII\n"
	records, err := ParseChunk([]byte(input), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "@SEQ_1", records[0].Header)
}

func TestParseChunkMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantLine int64
	}{
		{
			name:     "header missing marker",
			input:    "SEQ_1\nACGT\n+\nIIII\n",
			wantLine: 1,
		},
		{
			name:     "empty header line",
			input:    "\nACGT\n+\nIIII\n",
			wantLine: 1,
		},
		{
			name:     "separator missing marker",
			input:    "@SEQ_1\nACGT\nplus\nIIII\n",
			wantLine: 3,
		},
		{
			name:     "sequence and quality length mismatch",
			input:    "@SEQ_1\nACGTACGT\n+\nIII\n",
			wantLine: 4,
		},
		{
			name:     "mismatch in second record",
			input:    "@SEQ_1\nACGT\n+\nIIII\n@SEQ_2\nACGTACGT\n+\nIII\n",
			wantLine: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseChunk([]byte(tt.input), 1)
			require.Error(t, err)

			var merr *MalformedRecordError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tt.wantLine, merr.Line)
		})
	}
}

func TestParseChunkTruncated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantLine int64
	}{
		{
			name:     "header only",
			input:    "@SEQ_1\n",
			wantLine: 1,
		},
		{
			name:     "missing quality",
			input:    "@SEQ_1\nACGT\n+\n",
			wantLine: 1,
		},
		{
			name:     "second record cut short",
			input:    "@SEQ_1\nACGT\n+\nIIII\n@SEQ_2\nACGT\n",
			wantLine: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseChunk([]byte(tt.input), 1)
			require.Error(t, err)

			var terr *TruncatedRecordError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.wantLine, terr.Line)
		})
	}
}

func TestParseChunkFirstLineOffset(t *testing.T) {
	t.Parallel()

	// A chunk starting at line 401 reports absolute line numbers.
	input := "@SEQ_1\nACGTACGT\n+\nIII\n"
	_, err := ParseChunk([]byte(input), 401)
	require.Error(t, err)

	var merr *MalformedRecordError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, int64(404), merr.Line)
}

func BenchmarkParseChunk(b *testing.B) {
	var buf bytes.Buffer
	seq := strings.Repeat("ACGT", 38) // 152bp typical Illumina read
	qual := strings.Repeat("I", 152)
	for i := 0; i < 10000; i++ {
		buf.WriteString("@HWI-ST123:4:1101:14346:1976#0/1\n")
		buf.WriteString(seq + "\n")
		buf.WriteString("+\n")
		buf.WriteString(qual + "\n")
	}
	input := buf.Bytes()

	b.ResetTimer()
	b.SetBytes(int64(len(input)))

	for i := 0; i < b.N; i++ {
		if _, err := ParseChunk(input, 1); err != nil {
			b.Fatal(err)
		}
	}
}
