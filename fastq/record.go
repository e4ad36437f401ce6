// Package fastq provides the FASTQ record model, chunk parsing, and the
// per-record transformations (trim, quality filter, extract).
package fastq

// Record is a single FASTQ read. Records are never mutated after
// construction; transformations return new Record values.
type Record struct {
	Header   string // Header line, including the leading '@'
	Sequence []byte // DNA sequence (A, C, G, T, N)
	Quality  []byte // Quality scores (Phred+33 encoded), same length as Sequence
}

// AppendTo appends the record in 4-line FASTQ text form and returns the
// extended buffer. The separator line is written bare.
func (r Record) AppendTo(buf []byte) []byte {
	buf = append(buf, r.Header...)
	buf = append(buf, '\n')
	buf = append(buf, r.Sequence...)
	buf = append(buf, '\n', '+', '\n')
	buf = append(buf, r.Quality...)
	buf = append(buf, '\n')
	return buf
}
