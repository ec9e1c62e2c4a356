package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/filter"
)

var (
	scanOutput  string
	scanSpamDir string
	scanWorkers int
	scanCompact bool
	scanTimings bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <file|directory|->",
	Short: "Scan messages and print verdicts as JSON",
	Long: `Scan a message file, every message file below a directory, or a message
read from stdin ("-"). Verdicts are written to stdout as JSON.

Examples:
  spamscan scan message.eml
  cat message.eml | spamscan scan -
  spamscan scan ./inbox --spam-dir ./spam --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		scanner, err := newScanner(cfg, logger)
		if err != nil {
			return err
		}
		defer scanner.Close()

		out := cmd.OutOrStdout()
		if scanTimings {
			defer scanner.Timings().PrintReport(cmd.ErrOrStderr())
		}

		target := args[0]
		if target != "-" {
			info, err := os.Stat(target)
			if err != nil {
				return fmt.Errorf("cannot scan %s: %w", target, err)
			}
			if info.IsDir() {
				return scanDirectory(cmd, scanner, target)
			}
		}

		var input any = email.Path(target)
		if target == "-" {
			input = cmd.InOrStdin()
		}

		verdict, err := scanner.Scan(cmd.Context(), input)
		if err != nil {
			return err
		}
		return writeJSON(out, verdict, !scanCompact)
	},
}

func scanDirectory(cmd *cobra.Command, scanner *filter.Scanner, dir string) error {
	out := cmd.OutOrStdout()

	// one JSON object per line, written by whichever worker finished
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	res, err := scanner.ScanDir(cmd.Context(), dir, filter.DirOptions{
		OutputPath:    scanOutput,
		SpamPath:      scanSpamDir,
		MaxConcurrent: scanWorkers,
		OnVerdict: func(fv filter.FileVerdict) {
			mu.Lock()
			defer mu.Unlock()
			if fv.Err != nil {
				enc.Encode(map[string]string{"path": fv.Path, "error": fv.Err.Error()})
				return
			}
			enc.Encode(struct {
				Path    string `json:"path"`
				Verdict any    `json:"verdict"`
			}{fv.Path, fv.Verdict})
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "📊 Scanned %d messages: %d spam, %d ham, %d errors\n",
		res.Total, res.Spam, res.Ham, res.Errors)
	return nil
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func init() {
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Move clean messages here (directory scans)")
	scanCmd.Flags().StringVarP(&scanSpamDir, "spam-dir", "s", "", "Move spam messages here (directory scans)")
	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 4, "Messages scanned concurrently (directory scans)")
	scanCmd.Flags().BoolVar(&scanCompact, "compact", false, "Print the verdict on one line")
	scanCmd.Flags().BoolVar(&scanTimings, "timings", false, "Print per-detector timings to stderr")
}
