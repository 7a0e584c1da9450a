package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/rapport/internal/batch"
	"github.com/JaimeStill/rapport/internal/config"
	"github.com/JaimeStill/rapport/internal/dispatcher"
	"github.com/JaimeStill/rapport/internal/infrastructure"
	"github.com/JaimeStill/rapport/internal/ingest"
	"github.com/JaimeStill/rapport/internal/tui"
	"github.com/JaimeStill/rapport/pkg/formatting"
)

var (
	runFile        string
	runConcurrency int
	runDryRun      bool
	runNoTUI       bool
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a CSV file of reviews",
	Long: `Process every review in a CSV file through classification, response
decision, composition, and dispatch, then print a batch summary.

The file needs customer name, customer email, and review columns; common
header variants such as "name", "email", or "comment" are accepted. Rows
that fail validation are reported and skipped.

Press ctrl+c to stop starting new reviews. Reviews already in progress
finish before the summary is printed.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "CSV file of reviews (required)")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", 0, "Reviews processed at once (default and ceiling from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Log composed messages instead of sending them")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "Disable the live progress view")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
	_ = runCmd.MarkFlagRequired("file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if runConcurrency < 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	cfg, err := config.LoadLocal(configPath)
	if err != nil {
		return err
	}
	if runDryRun {
		cfg.Mail.Provider = dispatcher.ProviderLog
	}

	info, err := os.Stat(runFile)
	if err != nil {
		return err
	}

	parsed, err := ingest.ReadFile(runFile)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, rowErr := range parsed.Errors {
		fmt.Fprintf(stderr, "skipped %s\n", rowErr.Error())
	}
	if len(parsed.Records) == 0 {
		return fmt.Errorf("%s: no valid reviews", runFile)
	}

	useTUI := !runNoTUI && !runJSON
	logger := newLogger(verbose && !useTUI)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := infrastructure.NewPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	execute := func(onProgress func(batch.Progress)) *batch.Result {
		return pipeline.Coordinator.Run(runCtx, parsed.Records, runConcurrency, batch.OnProgress(onProgress))
	}

	var result *batch.Result
	if useTUI {
		title := fmt.Sprintf("%s (%s, %d reviews)",
			filepath.Base(runFile), formatting.FormatBytes(info.Size(), 1), len(parsed.Records))
		result, err = tui.Run(title, len(parsed.Records), cancel, execute)
		if err != nil {
			return err
		}
	} else {
		result = execute(func(batch.Progress) {})
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printSummary(out, result)
	return nil
}

func printSummary(w io.Writer, r *batch.Result) {
	fmt.Fprintf(w, "Batch %s\n", r.ID)
	if r.Cancelled {
		fmt.Fprintf(w, "  cancelled, %d reviews not started\n", r.Unprocessed)
	}
	fmt.Fprintf(w, "  submitted              %d\n", r.Submitted)
	fmt.Fprintf(w, "  processed              %d\n", r.Processed)
	fmt.Fprintf(w, "  classification failed  %d\n", r.ClassificationFailed)
	fmt.Fprintf(w, "  dispatch failed        %d\n", r.DispatchFailed)
	fmt.Fprintf(w, "  no response needed     %d\n", r.NoResponse)
	fmt.Fprintf(w, "  messages sent          %d\n", r.MessagesSent)
	fmt.Fprintf(w, "  success rate           %.2f%%\n", r.SuccessRate)
	fmt.Fprintf(w, "  response rate          %.2f%%\n", r.ResponseRate)
	fmt.Fprintf(w, "  duration               %s\n", r.Duration().Round(1e6))

	if len(r.Sentiment) > 0 {
		fmt.Fprintln(w, "Sentiment")
		for _, k := range sortedKeys(r.Sentiment) {
			fmt.Fprintf(w, "  %-22s %d\n", k, r.Sentiment[k])
		}
	}
	if len(r.Urgency) > 0 {
		fmt.Fprintln(w, "Urgency")
		for _, k := range sortedKeys(r.Urgency) {
			fmt.Fprintf(w, "  %-22s %d\n", k, r.Urgency[k])
		}
	}
	if len(r.Categories) > 0 {
		fmt.Fprintln(w, "Categories")
		for _, k := range sortedKeys(r.Categories) {
			fmt.Fprintf(w, "  %-22s %d\n", k, r.Categories[k])
		}
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
