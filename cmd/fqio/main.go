// fqio counts, trims, filters, and extracts reads from FASTQ files.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vertti/fastqio"
	"github.com/vertti/fastqio/fastq"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "fqio",
		Short: "Parallel FASTQ counting, trimming, filtering, and extraction",
		Long: `fqio processes FASTQ files with parallel chunk parsing.

Inputs may be plain, gzip, or zstd compressed; compression is detected
by file extension or magic bytes. Input '-' (or no input) reads stdin.`,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(countCommand())
	rootCmd.AddCommand(headCommand())
	rootCmd.AddCommand(trimCommand())
	rootCmd.AddCommand(filterCommand())
	rootCmd.AddCommand(extractCommand())
	rootCmd.AddCommand(scrambleCommand())
	rootCmd.AddCommand(versionCommand())
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgHiRed).Fprintf(color.Error, "error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are the flags shared by every data command.
type commonFlags struct {
	in        string
	workers   int
	chunkSize int
	progress  bool
	verbose   bool
}

func addCommonFlags(cmd *cobra.Command, cf *commonFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&cf.in, "in", "i", "", "input FASTQ file, plain or gzip/zstd (default: stdin)")
	flags.IntVarP(&cf.workers, "workers", "w", 0, "parallel parse workers (default: NumCPU)")
	flags.IntVar(&cf.chunkSize, "chunk-size", 0, "chunk size target in bytes (default: 1 MiB)")
	flags.BoolVar(&cf.progress, "progress", false, "show byte progress on stderr")
	flags.BoolVarP(&cf.verbose, "verbose", "v", false, "enable debug logging")
}

func (cf commonFlags) options() *fastqio.Options {
	return &fastqio.Options{Workers: cf.workers, ChunkSize: cf.chunkSize}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func countCommand() *cobra.Command {
	var cf commonFlags
	cmd := &cobra.Command{
		Use:   "count [input.fq]",
		Short: "Count the reads in a FASTQ file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && cf.in == "" {
				cf.in = args[0]
			}
			setupLogging(cf.verbose)
			return runCount(cf, cmd.OutOrStdout())
		},
	}
	addCommonFlags(cmd, &cf)
	return cmd
}

func runCount(cf commonFlags, out io.Writer) error {
	r, cleanup, err := openInput(cf)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := r.CountReads()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d\n", n)
	return nil
}

func headCommand() *cobra.Command {
	var (
		cf  commonFlags
		num int
		out string
	)
	cmd := &cobra.Command{
		Use:   "head [input.fq]",
		Short: "Print the first N reads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && cf.in == "" {
				cf.in = args[0]
			}
			if num < 0 {
				return fmt.Errorf("invalid read count %d: must be non-negative", num)
			}
			setupLogging(cf.verbose)
			return runHead(cf, num, out)
		},
	}
	addCommonFlags(cmd, &cf)
	cmd.Flags().IntVarP(&num, "num", "n", 10, "number of reads to print")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output FASTQ file (default: stdout)")
	return cmd
}

func runHead(cf commonFlags, num int, out string) error {
	r, cleanup, err := openInput(cf)
	if err != nil {
		return err
	}
	defer cleanup()

	bw, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	defer closeOut()

	it, err := r.Records()
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	buf := make([]byte, 0, 4096)
	for written := 0; written < num; written++ {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		buf = rec.AppendTo(buf[:0])
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func trimCommand() *cobra.Command {
	var (
		cf         commonFlags
		fivePrime  int
		threePrime int
		out        string
	)
	cmd := &cobra.Command{
		Use:   "trim [input.fq]",
		Short: "Trim bases from the ends of every read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && cf.in == "" {
				cf.in = args[0]
			}
			if fivePrime < 0 || threePrime < 0 {
				return errors.New("invalid trim lengths: must be non-negative")
			}
			setupLogging(cf.verbose)
			return runTrim(cf, fivePrime, threePrime, out)
		},
	}
	addCommonFlags(cmd, &cf)
	cmd.Flags().IntVarP(&fivePrime, "five-prime", "5", 0, "bases to trim from the 5' end")
	cmd.Flags().IntVarP(&threePrime, "three-prime", "3", 0, "bases to trim from the 3' end")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output FASTQ file (default: stdout)")
	return cmd
}

func runTrim(cf commonFlags, fivePrime, threePrime int, out string) error {
	r, cleanup, err := openInput(cf)
	if err != nil {
		return err
	}
	defer cleanup()

	bw, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	defer closeOut()

	one := make([]fastq.Record, 1)
	written, _, err := streamRecords(r, bw, func(rec fastq.Record) (fastq.Record, bool) {
		one[0] = rec
		return fastq.Trim(one, fivePrime, threePrime)[0], true
	})
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	color.New(color.FgHiGreen).Fprintf(color.Error, "Trimmed %d reads\n", written)
	return nil
}

func filterCommand() *cobra.Command {
	var (
		cf         commonFlags
		minQuality int
		out        string
	)
	cmd := &cobra.Command{
		Use:   "filter [input.fq]",
		Short: "Drop reads below a mean quality threshold",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && cf.in == "" {
				cf.in = args[0]
			}
			setupLogging(cf.verbose)
			return runFilter(cf, minQuality, out)
		},
	}
	addCommonFlags(cmd, &cf)
	cmd.Flags().IntVarP(&minQuality, "min-quality", "q", 20, "minimum mean Phred quality to keep a read")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output FASTQ file (default: stdout)")
	return cmd
}

func runFilter(cf commonFlags, minQuality int, out string) error {
	r, cleanup, err := openInput(cf)
	if err != nil {
		return err
	}
	defer cleanup()

	bw, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	defer closeOut()

	one := make([]fastq.Record, 1)
	kept, dropped, err := streamRecords(r, bw, func(rec fastq.Record) (fastq.Record, bool) {
		one[0] = rec
		passed := fastq.FilterQuality(one, minQuality)
		if len(passed) == 0 {
			return fastq.Record{}, false
		}
		return passed[0], true
	})
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	color.New(color.FgHiGreen).Fprintf(color.Error, "Kept %d reads\n", kept)
	color.New(color.FgHiMagenta).Fprintf(color.Error, "Low quality count: %d\n", dropped)
	return nil
}

func extractCommand() *cobra.Command {
	var (
		cf      commonFlags
		start   int
		end     int
		out     string
		parquet bool
		prefix  string
	)
	cmd := &cobra.Command{
		Use:   "extract [input.fq]",
		Short: "Extract a subsequence region from every read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && cf.in == "" {
				cf.in = args[0]
			}
			if start < 0 || end < start {
				return fmt.Errorf("invalid region [%d, %d): start must be >= 0 and end >= start", start, end)
			}
			setupLogging(cf.verbose)
			if parquet {
				return runExtractParquet(cf, start, end, prefix)
			}
			return runExtract(cf, start, end, out)
		},
	}
	addCommonFlags(cmd, &cf)
	cmd.Flags().IntVarP(&start, "start", "s", 0, "region start, 0-based inclusive")
	cmd.Flags().IntVarP(&end, "end", "e", 0, "region end, exclusive")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output FASTQ file (default: stdout)")
	cmd.Flags().BoolVar(&parquet, "parquet", false, "write extracted regions as Parquet instead of FASTQ")
	cmd.Flags().StringVar(&prefix, "prefix", "extracted", "output path prefix for --parquet (writes <prefix>.parquet)")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func runExtract(cf commonFlags, start, end int, out string) error {
	r, cleanup, err := openInput(cf)
	if err != nil {
		return err
	}
	defer cleanup()

	bw, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	defer closeOut()

	one := make([]fastq.Record, 1)
	if _, _, err := streamRecords(r, bw, func(rec fastq.Record) (fastq.Record, bool) {
		one[0] = rec
		return fastq.Extract(one, start, end)[0], true
	}); err != nil {
		return err
	}
	return bw.Flush()
}

func runExtractParquet(cf commonFlags, start, end int, prefix string) error {
	r, cleanup, err := openInput(cf)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := r.ExtractToParquet(start, end, prefix)
	if err != nil {
		return err
	}
	color.New(color.FgHiGreen).Fprintf(color.Error, "Extracted %d regions\n", rows)
	return nil
}

func scrambleCommand() *cobra.Command {
	var (
		cf   commonFlags
		seed uint64
		out  string
	)
	cmd := &cobra.Command{
		Use:   "scramble [input.fq]",
		Short: "Shuffle bases within each read for shareable benchmark data",
		Long: `scramble destroys genomic sequence information while preserving base
composition, read lengths, header formats, and quality score positions,
so the output stays realistic for benchmarking.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && cf.in == "" {
				cf.in = args[0]
			}
			setupLogging(cf.verbose)
			return runScramble(cf, seed, out)
		},
	}
	addCommonFlags(cmd, &cf)
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed for reproducible output")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output FASTQ file (default: stdout)")
	return cmd
}

func runScramble(cf commonFlags, seed uint64, out string) error {
	r, cleanup, err := openInput(cf)
	if err != nil {
		return err
	}
	defer cleanup()

	bw, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	defer closeOut()

	//nolint:gosec // deterministic output needs math/rand, not crypto
	rng := rand.New(rand.NewPCG(seed, seed))
	if _, _, err := streamRecords(r, bw, func(rec fastq.Record) (fastq.Record, bool) {
		seq := append([]byte(nil), rec.Sequence...)
		rng.Shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
		rec.Sequence = seq
		return rec, true
	}); err != nil {
		return err
	}
	return bw.Flush()
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fqio version %s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// streamRecords pulls records one at a time, maps each through fn, and
// writes the kept ones in FASTQ text form. Returns written and dropped
// counts. fn may return the record unchanged.
func streamRecords(r *fastqio.Reader, bw *bufio.Writer, fn func(fastq.Record) (fastq.Record, bool)) (int64, int64, error) {
	it, err := r.Records()
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = it.Close() }()

	var written, dropped int64
	buf := make([]byte, 0, 4096)
	for {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return written, dropped, nil
		}
		if err != nil {
			return written, dropped, err
		}
		out, keep := fn(rec)
		if !keep {
			dropped++
			continue
		}
		buf = out.AppendTo(buf[:0])
		if _, err := bw.Write(buf); err != nil {
			return written, dropped, err
		}
		written++
	}
}

// openInput builds the Reader for a command. Without --progress, file
// paths go through fastqio.Open so every operation can restart the
// pass. With --progress the file is read through a byte-counting proxy
// feeding a stderr bar, which limits the Reader to a single pass.
func openInput(cf commonFlags) (*fastqio.Reader, func(), error) {
	if !cf.progress {
		if cf.in == "" || cf.in == "-" {
			r := fastqio.New(os.Stdin, cf.options())
			return r, func() { _ = r.Close() }, nil
		}
		r, err := fastqio.Open(cf.in, cf.options())
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	}

	if cf.in == "" || cf.in == "-" {
		slog.Warn("[cli] progress needs a regular file, reading stdin without a bar")
		r := fastqio.New(os.Stdin, cf.options())
		return r, func() { _ = r.Close() }, nil
	}

	f, err := os.Open(cf.in) //nolint:gosec // CLI tool needs to open user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("cannot stat input: %w", err)
	}

	bar := pb.Full.Start64(info.Size())
	bar.Set(pb.Bytes, true)
	r := fastqio.New(bar.NewProxyReader(f), cf.options())
	return r, func() {
		_ = r.Close()
		bar.Finish()
		_ = f.Close()
	}, nil
}

func openOutput(path string) (*bufio.Writer, func(), error) {
	if path == "" || path == "-" {
		bw := bufio.NewWriterSize(os.Stdout, 1<<20)
		return bw, func() { _ = bw.Flush() }, nil
	}

	f, err := os.Create(path) //nolint:gosec // CLI tool needs to create user-specified files
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	return bw, func() { _ = bw.Flush(); _ = f.Close() }, nil
}
