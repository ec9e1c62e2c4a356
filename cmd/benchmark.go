package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/filter"
	"github.com/zpam/spamscan/pkg/profiler"
	"golang.org/x/sync/errgroup"
)

var (
	benchmarkRuns       int
	benchmarkConcurrent int
	benchmarkDetectors  bool
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark <directory>",
	Short: "Measure scan throughput over a message corpus",
	Long: `Scan every message file below a directory one or more times and report
throughput, latency percentiles and the spam/ham split.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		files, err := findEmailFiles(args[0])
		if err != nil {
			return fmt.Errorf("failed to find email files: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no email files found in %s", args[0])
		}

		scanner, err := newScanner(cfg, logger)
		if err != nil {
			return err
		}
		defer scanner.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🚀 spamscan benchmark\n")
		fmt.Fprintf(out, "📁 Input directory: %s\n", args[0])
		fmt.Fprintf(out, "📧 Email files found: %d\n", len(files))
		fmt.Fprintf(out, "🔄 Runs: %d, ⚡ concurrent scans: %d\n\n", benchmarkRuns, benchmarkConcurrent)

		b := &Benchmark{scanner: scanner, concurrency: benchmarkConcurrent}
		res, err := b.Run(cmd, files, benchmarkRuns)
		if err != nil {
			return err
		}
		res.Print(out)

		if benchmarkDetectors {
			fmt.Fprintf(out, "\n🔍 Detector timings\n")
			scanner.Timings().PrintReport(out)
		}
		return nil
	},
}

// BenchmarkResult contains performance metrics
type BenchmarkResult struct {
	TotalEmails     int
	TotalTime       time.Duration
	EmailsPerSecond float64
	Latency         profiler.Stats

	SpamDetected int
	HamDetected  int
	Errors       int
}

// Benchmark scans a fixed file set repeatedly
type Benchmark struct {
	scanner     *filter.Scanner
	concurrency int
}

// Run scans files runs times and collects latency statistics
func (b *Benchmark) Run(cmd *cobra.Command, files []string, runs int) (*BenchmarkResult, error) {
	if runs < 1 {
		runs = 1
	}
	latency := profiler.NewProfiler()
	var spam, ham, errs atomic.Int64

	start := time.Now()
	for run := 0; run < runs; run++ {
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(max(1, b.concurrency))
		for _, path := range files {
			g.Go(func() error {
				scanStart := time.Now()
				v, err := b.scanner.Scan(ctx, email.Path(path))
				latency.Record("scan", time.Since(scanStart))
				switch {
				case err != nil:
					errs.Add(1)
				case v.IsSpam:
					spam.Add(1)
				default:
					ham.Add(1)
				}
				return ctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	total := time.Since(start)

	res := &BenchmarkResult{
		TotalEmails:  len(files) * runs,
		TotalTime:    total,
		Latency:      latency.GetStats("scan"),
		SpamDetected: int(spam.Load()),
		HamDetected:  int(ham.Load()),
		Errors:       int(errs.Load()),
	}
	if total > 0 {
		res.EmailsPerSecond = float64(res.TotalEmails) / total.Seconds()
	}
	return res, nil
}

// Print writes a human readable summary
func (r *BenchmarkResult) Print(w io.Writer) {
	fmt.Fprintf(w, "📊 Results\n")
	fmt.Fprintf(w, "  Emails scanned: %d in %s\n", r.TotalEmails, profiler.FormatDuration(r.TotalTime))
	fmt.Fprintf(w, "  Throughput: %.1f emails/sec\n", r.EmailsPerSecond)
	fmt.Fprintf(w, "\n⏱️  Latency\n")
	fmt.Fprintf(w, "  Average: %s\n", profiler.FormatDuration(r.Latency.Average))
	fmt.Fprintf(w, "  Median:  %s\n", profiler.FormatDuration(r.Latency.Median))
	fmt.Fprintf(w, "  P95:     %s\n", profiler.FormatDuration(r.Latency.P95))
	fmt.Fprintf(w, "  P99:     %s\n", profiler.FormatDuration(r.Latency.P99))
	fmt.Fprintf(w, "  Min/Max: %s / %s\n", profiler.FormatDuration(r.Latency.Min), profiler.FormatDuration(r.Latency.Max))
	fmt.Fprintf(w, "\n🎯 Verdicts\n")
	fmt.Fprintf(w, "  Spam: %d, ham: %d, errors: %d\n", r.SpamDetected, r.HamDetected, r.Errors)
}

// findEmailFiles lists message files below dir
func findEmailFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filter.IsEmailFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func init() {
	benchmarkCmd.Flags().IntVarP(&benchmarkRuns, "runs", "r", 1, "Number of passes over the corpus")
	benchmarkCmd.Flags().IntVarP(&benchmarkConcurrent, "concurrent", "n", 4, "Messages scanned concurrently")
	benchmarkCmd.Flags().BoolVar(&benchmarkDetectors, "detectors", false, "Also print per-detector timings")
}
