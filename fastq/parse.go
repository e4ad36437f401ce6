package fastq

import "bytes"

// ParseChunk parses a chunk of whole 4-line record groups. firstLine is the
// 1-based line number of the chunk's first line within the source, used for
// error reporting. Sequence and Quality slices alias the chunk data; the
// chunk must not be reused while the records are live.
func ParseChunk(data []byte, firstLine int64) ([]Record, error) {
	if firstLine <= 0 {
		firstLine = 1
	}

	// Typical Illumina reads are ~150bp, so estimate ~300 bytes of payload
	// plus header and separator per record.
	records := make([]Record, 0, len(data)/300+1)

	line := firstLine
	for len(data) > 0 {
		recStart := line

		// Line 1: header (starts with @)
		header, rest := cutLine(data)
		if len(header) == 0 || header[0] != '@' {
			return nil, &MalformedRecordError{Line: line, Reason: "header line must start with '@'"}
		}
		data = rest
		line++

		// Line 2: sequence
		if len(data) == 0 {
			return nil, &TruncatedRecordError{Line: recStart}
		}
		seq, rest := cutLine(data)
		data = rest
		line++

		// Line 3: separator (starts with +, payload ignored)
		if len(data) == 0 {
			return nil, &TruncatedRecordError{Line: recStart}
		}
		sep, rest := cutLine(data)
		if len(sep) == 0 || sep[0] != '+' {
			return nil, &MalformedRecordError{Line: line, Reason: "separator line must start with '+'"}
		}
		data = rest
		line++

		// Line 4: quality, same length as sequence
		if len(data) == 0 {
			return nil, &TruncatedRecordError{Line: recStart}
		}
		qual, rest := cutLine(data)
		if len(seq) != len(qual) {
			return nil, &MalformedRecordError{Line: line, Reason: "sequence and quality lengths must match"}
		}
		data = rest
		line++

		records = append(records, Record{
			Header:   string(header),
			Sequence: seq[:len(seq):len(seq)],
			Quality:  qual[:len(qual):len(qual)],
		})
	}

	return records, nil
}

// cutLine splits data at the first newline, returning the line (without the
// newline and any trailing CR) and the remainder. An unterminated final line
// is returned as-is with an empty remainder.
func cutLine(data []byte) (line, rest []byte) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line, rest = data[:i], data[i+1:]
	} else {
		line = data
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return line, rest
}
