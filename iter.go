package fastqio

import (
	"github.com/vertti/fastqio/fastq"
	"github.com/vertti/fastqio/internal/pipeline"
)

// RecordIter steps through records one at a time in input order.
// Iterators are not safe for concurrent use.
type RecordIter struct {
	st    pipeline.Stream
	batch []fastq.Record
	pos   int
}

// Records starts a pass over the input and returns an iterator for it.
// The iterator must be closed when done.
func (r *Reader) Records() (*RecordIter, error) {
	st, err := r.newStream(nil)
	if err != nil {
		return nil, err
	}
	return &RecordIter{st: st}, nil
}

// Next returns the next record. After the last record it returns io.EOF.
func (it *RecordIter) Next() (fastq.Record, error) {
	for it.pos >= len(it.batch) {
		batch, err := it.st.Next()
		if err != nil {
			return fastq.Record{}, err
		}
		it.batch = batch
		it.pos = 0
	}
	rec := it.batch[it.pos]
	it.pos++
	return rec, nil
}

// Close stops the pass and releases its source. Records already
// returned stay valid.
func (it *RecordIter) Close() error {
	return it.st.Close()
}
