package judge

import (
	"context"
	"log/slog"
	"time"

	"github.com/codecrack-oj/apiserver/types"
)

// EvalParams carries everything needed to judge one submission: the
// code, the problem's test case snapshot, and its resource limits.
type EvalParams struct {
	Mode             types.SubmissionMode
	SourceCode       string
	Language         string
	Testcases        types.TestcaseSet
	TimeLimitSeconds float64
	MemoryLimitKB    int
}

// Evaluation is the finalized outcome of judging one submission.
type Evaluation struct {
	// Cases are the test cases that were selected for the mode, in
	// judging order; Results[i] is the outcome of Cases[i].
	Cases   []types.TestCase
	Results []types.ExecutionResult

	Verdict        types.JudgeStatus
	PassedCount    int
	TotalCount     int
	RuntimeSeconds float64
	MemoryKB       int
}

// Accepted reports whether every evaluated test case passed.
func (e Evaluation) Accepted() bool {
	return e.Verdict == types.StatusAccepted
}

// Evaluator applies the run/submit policy on top of the dispatcher:
// run mode judges only visible cases, submit mode judges the full set
// (visible first, then hidden) and always runs to completion so the
// pass counts reflect every case.
type Evaluator struct {
	dispatcher     *Dispatcher
	runDeadline    time.Duration
	submitDeadline time.Duration
	logger         *slog.Logger
}

// NewEvaluator constructs an Evaluator around a dispatcher with the
// mode-specific submission deadlines.
func NewEvaluator(dispatcher *Dispatcher, runDeadline, submitDeadline time.Duration) *Evaluator {
	if runDeadline <= 0 {
		runDeadline = 15 * time.Second
	}
	if submitDeadline <= 0 {
		submitDeadline = 60 * time.Second
	}
	return &Evaluator{
		dispatcher:     dispatcher,
		runDeadline:    runDeadline,
		submitDeadline: submitDeadline,
		logger:         slog.Default().With("component", "evaluator"),
	}
}

// Evaluate judges one submission and always produces a finalized
// Evaluation: every selected test case has a result slot even when the
// backend failed or the deadline expired, and the aggregate verdict is
// the status of the earliest failing case in judging order.
func (e *Evaluator) Evaluate(ctx context.Context, params EvalParams) Evaluation {
	var cases []types.TestCase
	deadline := e.submitDeadline
	if params.Mode == types.ModeRun {
		cases = params.Testcases.VisibleCases()
		deadline = e.runDeadline
	} else {
		cases = params.Testcases.JudgingOrder()
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	reqs := make([]types.ExecutionRequest, len(cases))
	for i, tc := range cases {
		reqs[i] = types.ExecutionRequest{
			SourceCode:       params.SourceCode,
			Language:         params.Language,
			Stdin:            tc.Input,
			ExpectedOutput:   tc.ExpectedOutput,
			TimeLimitSeconds: params.TimeLimitSeconds,
			MemoryLimitKB:    params.MemoryLimitKB,
		}
	}

	results := e.dispatcher.RunBatch(ctx, reqs)

	eval := aggregate(cases, results)
	e.logger.Info("submission judged",
		"mode", params.Mode,
		"verdict", eval.Verdict,
		"passed", eval.PassedCount,
		"total", eval.TotalCount)
	return eval
}

func aggregate(cases []types.TestCase, results []types.ExecutionResult) Evaluation {
	eval := Evaluation{
		Cases:      cases,
		Results:    results,
		Verdict:    types.StatusAccepted,
		TotalCount: len(results),
	}
	for _, r := range results {
		if r.Status == types.StatusAccepted {
			eval.PassedCount++
		} else if eval.Verdict == types.StatusAccepted {
			// The earliest failing case determines the verdict even
			// when later cases fail differently.
			eval.Verdict = r.Status
		}
		if r.RuntimeSeconds > eval.RuntimeSeconds {
			eval.RuntimeSeconds = r.RuntimeSeconds
		}
		if r.MemoryKB > eval.MemoryKB {
			eval.MemoryKB = r.MemoryKB
		}
	}
	return eval
}
