package fastqio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vertti/fastqio/fastq"
	"github.com/vertti/fastqio/internal/pipeline"
	"github.com/vertti/fastqio/internal/pqsink"
)

// CountReads parses and validates the whole input and returns the number
// of records in it.
func (r *Reader) CountReads() (int64, error) {
	st, err := r.newStream(nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = st.Close() }()

	var n int64
	for {
		batch, err := st.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n += int64(len(batch))
	}
}

// Trim removes fivePrime bases from the start and threePrime bases from
// the end of every read. Trims past the read length are clamped; records
// are never dropped.
func (r *Reader) Trim(fivePrime, threePrime int) ([]fastq.Record, error) {
	return r.collect(func(recs []fastq.Record) []fastq.Record {
		return fastq.Trim(recs, fivePrime, threePrime)
	})
}

// FilterQuality returns the records whose mean Phred+33 quality is at or
// above threshold.
func (r *Reader) FilterQuality(threshold int) ([]fastq.Record, error) {
	return r.collect(func(recs []fastq.Record) []fastq.Record {
		return fastq.FilterQuality(recs, threshold)
	})
}

// Extract slices every read's sequence and quality to [start:end],
// clamped to the read length.
func (r *Reader) Extract(start, end int) ([]fastq.Record, error) {
	return r.collect(func(recs []fastq.Record) []fastq.Record {
		return fastq.Extract(recs, start, end)
	})
}

// collect runs one pass with fn applied per batch and gathers the
// surviving records in input order.
func (r *Reader) collect(fn pipeline.Transform) ([]fastq.Record, error) {
	st, err := r.newStream(fn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	var records []fastq.Record
	for {
		batch, err := st.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
}

// ExtractToParquet slices every read to [start:end] and writes
// {header, extracted} rows to outputPrefix + ".parquet", compressed with
// zstd. It returns the number of rows written. An input with no records
// still produces a valid, empty Parquet file.
func (r *Reader) ExtractToParquet(start, end int, outputPrefix string) (int64, error) {
	st, err := r.newStream(func(recs []fastq.Record) []fastq.Record {
		return fastq.Extract(recs, start, end)
	})
	if err != nil {
		return 0, err
	}
	defer func() { _ = st.Close() }()

	path := outputPrefix + ".parquet"
	f, err := os.Create(path) //nolint:gosec // library writes caller-specified files
	if err != nil {
		return 0, fmt.Errorf("creating parquet output: %w", err)
	}

	bw := bufio.NewWriterSize(f, 1<<20)
	sink, err := pqsink.NewWriter(bw)
	if err != nil {
		_ = f.Close()
		return 0, err
	}

	for {
		batch, err := st.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = f.Close()
			return 0, err
		}
		if err := sink.Append(batch); err != nil {
			_ = f.Close()
			return 0, err
		}
	}

	if err := sink.Close(); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("flushing parquet output: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing parquet output: %w", err)
	}

	slog.Info("[parquet] saved extracted regions",
		slog.Int64("rows", sink.Total()),
		slog.String("path", path))

	return sink.Total(), nil
}
