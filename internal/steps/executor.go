package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/dsflow/internal/classify"
	"github.com/aretw0/dsflow/internal/extract"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Executor runs the newest code block in the sandbox and records the result.
type Executor struct {
	sandbox ports.Sandbox
	timeout time.Duration
	logger  *slog.Logger
}

func (s *Executor) ID() domain.StepID { return domain.StepExecutor }

func (s *Executor) Run(ctx context.Context, st *domain.State, _ ports.ModelClient) (domain.Update, error) {
	if s.sandbox == nil {
		return domain.Update{}, fmt.Errorf("no sandbox configured")
	}

	code, ok := extract.LastCode(st.Messages)
	var result domain.ExecutionResult
	if ok {
		s.logger.Debug("executing code", "run_id", st.RunID, "bytes", len(code))
		result = s.sandbox.Execute(ctx, code)
	} else {
		result = domain.ExecutionResult{ExitCode: -1, Err: "no executable code block found"}
	}

	text := FormatResult(result, s.timeout)
	retries := 0
	if result.Failed() || classify.HasErrorSignature(text) {
		retries = st.ExecutionRetries + 1
	}

	return domain.Update{
		Messages:         []domain.Message{domain.StepMessage(s.ID(), text)},
		GeneratedCode:    &domain.Code{Source: code},
		CodeResults:      &text,
		LastExecution:    &result,
		ExecutionRetries: &retries,
	}, nil
}

// FormatResult renders an execution result as a transcript message.
// Failures carry a "fix this" framing for the code generator.
func FormatResult(r domain.ExecutionResult, timeout time.Duration) string {
	if r.TimedOut {
		if r.Timeout > 0 {
			timeout = r.Timeout
		}
		return fmt.Sprintf("Code exceeded execution time (%d seconds)", int(timeout.Seconds()))
	}
	if r.Failed() {
		return fmt.Sprintf("An error occurred during code execution:\n```\n%s\n```\nFix the error", strings.TrimSpace(r.Failure()))
	}
	return fmt.Sprintf("Result of code execution:\n```\n%s\n```", successBody(r))
}

// FormatScriptResult renders the outcome of an external script.
func FormatScriptResult(script string, r domain.ExecutionResult) string {
	if r.TimedOut {
		return fmt.Sprintf("Script %s exceeded execution time (%d seconds)", script, int(r.Timeout.Seconds()))
	}
	if r.Failed() {
		return fmt.Sprintf("An error occurred during code execution of %s:\n```\n%s\n```\nFix the error", script, strings.TrimSpace(r.Failure()))
	}
	return fmt.Sprintf("Result of %s:\n```\n%s\n```", script, successBody(r))
}

func successBody(r domain.ExecutionResult) string {
	parts := []string{strings.TrimSpace(r.Stdout)}
	for _, a := range r.Artifacts {
		if a.Text != "" {
			parts = append(parts, strings.TrimSpace(a.Text))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// SplitExecutor runs the training block then the inference block produced
// by the TrainTestSplitter.
type SplitExecutor struct {
	sandbox ports.Sandbox
	timeout time.Duration
	logger  *slog.Logger
}

func (s *SplitExecutor) ID() domain.StepID { return domain.StepSplitExecutor }

func (s *SplitExecutor) Run(ctx context.Context, st *domain.State, _ ports.ModelClient) (domain.Update, error) {
	if s.sandbox == nil {
		return domain.Update{}, fmt.Errorf("no sandbox configured")
	}

	var blocks []string
	if msg, ok := st.LastStepMessage(domain.StepTrainTestSplit); ok {
		blocks = extract.CodeBlocks(msg.Content)
	}
	code := domain.Code{Source: st.GeneratedCode.Source}
	if len(blocks) > 0 {
		code.Train = blocks[0]
	}
	if len(blocks) > 1 {
		code.Test = blocks[1]
	}

	run := func(label, src string) domain.ExecutionResult {
		if src == "" {
			return domain.ExecutionResult{ExitCode: -1, Err: "no " + label + " code block found"}
		}
		s.logger.Debug("executing split code", "run_id", st.RunID, "part", label)
		return s.sandbox.Execute(ctx, src)
	}

	train := run("training", code.Train)
	test := domain.ExecutionResult{ExitCode: -1, Err: "skipped: training failed"}
	if !train.Failed() {
		test = run("inference", code.Test)
	}

	text := fmt.Sprintf("Training code results:\n%s\n\nInference code results:\n%s",
		FormatResult(train, s.timeout), FormatResult(test, s.timeout))

	last := test
	if train.Failed() {
		last = train
	}
	return domain.Update{
		Messages:      []domain.Message{domain.StepMessage(s.ID(), text)},
		GeneratedCode: &code,
		CodeResults:   &text,
		LastExecution: &last,
	}, nil
}
