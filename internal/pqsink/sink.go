// Package pqsink writes extracted read regions to Parquet.
package pqsink

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/vertti/fastqio/fastq"
)

// rowGroupSize is the number of rows buffered before a row group is
// flushed to the file.
const rowGroupSize = 64 * 1024

// Schema returns the two-column layout written for extracted regions.
func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "header", Type: arrow.BinaryTypes.String},
		{Name: "extracted", Type: arrow.BinaryTypes.String},
	}, nil)
}

// Writer streams {header, extracted} rows into a zstd-compressed Parquet
// file, one row group per rowGroupSize rows.
type Writer struct {
	fw       *pqarrow.FileWriter
	builder  *array.RecordBuilder
	headers  *array.StringBuilder
	regions  *array.StringBuilder
	buffered int
	total    int64
}

// NewWriter starts a Parquet file on w. The caller owns w and closes it
// after Close.
func NewWriter(w io.Writer) (*Writer, error) {
	schema := Schema()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithMaxRowGroupLength(rowGroupSize),
	)
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	return &Writer{
		fw:      fw,
		builder: builder,
		headers: builder.Field(0).(*array.StringBuilder), //nolint:errcheck // schema is fixed
		regions: builder.Field(1).(*array.StringBuilder), //nolint:errcheck // schema is fixed
	}, nil
}

// Append queues one row per record. Full row groups flush as they fill.
func (w *Writer) Append(records []fastq.Record) error {
	for _, rec := range records {
		w.headers.Append(rec.Header)
		w.regions.Append(string(rec.Sequence))
		w.buffered++
		w.total++

		if w.buffered >= rowGroupSize {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) flush() error {
	if w.buffered == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	w.buffered = 0

	if err := w.fw.Write(rec); err != nil {
		return fmt.Errorf("writing parquet row group: %w", err)
	}
	return nil
}

// Total returns the number of rows appended so far.
func (w *Writer) Total() int64 {
	return w.total
}

// Close flushes any buffered rows and finalizes the file footer. A file
// closed without appends is still a valid, empty Parquet file.
func (w *Writer) Close() error {
	flushErr := w.flush()
	w.builder.Release()
	if err := w.fw.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return flushErr
}
