package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/dsflow"
	"github.com/aretw0/dsflow/internal/presentation/tui"
	"github.com/aretw0/dsflow/pkg/dataset"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/runner"
)

// errRunFailed makes the process exit non-zero after the events were printed.
var errRunFailed = errors.New("run did not complete")

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Run one data science request",
	Long: `Runs the workflow for a single request and prints every step as it completes.
Pass "-" as the message to read it from standard input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		req, err := buildRequest(cmd, args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		a, err := buildApp(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		out := cmd.OutOrStdout()

		var handler runner.Handler
		if jsonMode {
			handler = runner.NewJSONHandler(out)
		} else {
			if !quiet {
				tui.PrintBanner(out)
			}
			handler = runner.NewTextHandler(out,
				runner.WithTextHandlerRenderer(tui.RendererFor(out)),
				runner.WithQuiet(quiet),
			)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return drainRun(ctx, a.assistant.Invoke(ctx, req), handler)
	},
}

// drainRun prints the stream and reports whether the run failed.
func drainRun(ctx context.Context, events <-chan domain.StepEvent, h runner.Handler) error {
	failed := false
	err := runner.Drain(ctx, events, runner.HandlerFunc(func(ctx context.Context, ev domain.StepEvent) error {
		if ev.Kind == domain.EventError || ev.Kind == domain.EventDepthExceeded {
			failed = true
		}
		return h.Handle(ctx, ev)
	}))
	if err != nil {
		return err
	}
	if failed {
		return errRunFailed
	}
	return nil
}

func buildRequest(cmd *cobra.Command, args []string, stdin io.Reader) (dsflow.Request, error) {
	message := strings.Join(args, " ")
	if message == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return dsflow.Request{}, fmt.Errorf("read message: %w", err)
		}
		message = string(data)
	}

	req := dsflow.Request{Message: message}
	req.RunID, _ = cmd.Flags().GetString("run-id")
	req.RecursionLimit, _ = cmd.Flags().GetInt("recursion-limit")

	var err error
	if path, _ := cmd.Flags().GetString("dataset"); path != "" {
		if req.Dataset, err = dataset.LoadField("--dataset", path); err != nil {
			return dsflow.Request{}, err
		}
	}
	if path, _ := cmd.Flags().GetString("test-dataset"); path != "" {
		if req.Dataset == nil {
			return dsflow.Request{}, errors.New("--test-dataset requires --dataset")
		}
		if req.TestDataset, err = dataset.LoadField("--test-dataset", path); err != nil {
			return dsflow.Request{}, err
		}
	}
	return req, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("dataset", "", "CSV file the request is about")
	runCmd.Flags().String("test-dataset", "", "Optional CSV test split for --dataset")
	runCmd.Flags().String("run-id", "", "Run ID to use instead of a generated one")
	runCmd.Flags().Int("recursion-limit", 0, "Maximum number of steps for this run (0 uses the configured limit)")
	runCmd.Flags().Bool("json", false, "Print events as NDJSON")
	runCmd.Flags().BoolP("quiet", "q", false, "Print only the final report")
}
