package fastq

// phred33Offset is subtracted from a quality byte to obtain its score.
const phred33Offset = 33

// Trim removes fivePrime bases from the start and threePrime bases from the
// end of each record's sequence and quality. Trims that exceed the read
// length clamp to an empty sequence; the record is still emitted with its
// header intact.
func Trim(recs []Record, fivePrime, threePrime int) []Record {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		n := len(rec.Sequence)
		start := fivePrime
		if start < 0 {
			start = 0
		}
		if start > n {
			start = n
		}
		end := n
		if threePrime > 0 {
			end = n - threePrime
		}
		if end < start {
			end = start
		}
		out[i] = Record{
			Header:   rec.Header,
			Sequence: rec.Sequence[start:end],
			Quality:  rec.Quality[start:end],
		}
	}
	return out
}

// FilterQuality keeps records whose mean Phred+33 quality is at or above
// threshold. Records with empty quality strings are always dropped.
func FilterQuality(recs []Record, threshold int) []Record {
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if len(rec.Quality) == 0 {
			continue
		}
		if meanQuality(rec.Quality) >= float64(threshold) {
			out = append(out, rec)
		}
	}
	return out
}

// meanQuality returns the mean Phred score of a non-empty quality string.
func meanQuality(qual []byte) float64 {
	sum := 0
	for _, b := range qual {
		sum += int(b)
	}
	return float64(sum)/float64(len(qual)) - phred33Offset
}

// Extract slices each record's sequence and quality to [start:end], clamped
// to the read length. Headers are not modified.
func Extract(recs []Record, start, end int) []Record {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		n := len(rec.Sequence)
		s := start
		if s < 0 {
			s = 0
		}
		if s > n {
			s = n
		}
		e := end
		if e < s {
			e = s
		}
		if e > n {
			e = n
		}
		out[i] = Record{
			Header:   rec.Header,
			Sequence: rec.Sequence[s:e],
			Quality:  rec.Quality[s:e],
		}
	}
	return out
}
