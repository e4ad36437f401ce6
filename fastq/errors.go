package fastq

import "fmt"

// IOError reports a failure reading the underlying file or stream.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("reading input: %v", e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// DecompressionError reports a corrupt or truncated compressed input stream.
type DecompressionError struct {
	Err error
}

func (e *DecompressionError) Error() string { return fmt.Sprintf("decompressing input: %v", e.Err) }

func (e *DecompressionError) Unwrap() error { return e.Err }

// TruncatedRecordError reports input that ends partway through a 4-line
// record group. Line is the 1-based line number where the partial record
// starts.
type TruncatedRecordError struct {
	Line int64
}

func (e *TruncatedRecordError) Error() string {
	return fmt.Sprintf("truncated record starting at line %d: input ends mid-record", e.Line)
}

// MalformedRecordError reports a structural violation inside a record group.
// Line is the 1-based line number of the offending line.
type MalformedRecordError struct {
	Line   int64
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d: %s", e.Line, e.Reason)
}
