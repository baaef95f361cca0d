package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/codecrack-oj/apiserver/internal/events"
	"github.com/codecrack-oj/apiserver/internal/judge"
	"github.com/codecrack-oj/apiserver/internal/store"
	"github.com/codecrack-oj/apiserver/types"
)

// Validation failures reported before any judging work starts. A
// rejected request never creates a submission record.
var (
	ErrEmptySource         = errors.New("source code is required")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// SubmissionRepository defines persistence operations for submissions.
// There is no update: history is append-only.
type SubmissionRepository interface {
	Create(ctx context.Context, submission types.Submission) (types.Submission, error)
	Get(ctx context.Context, id int64) (types.Submission, error)
	ListByUserAndProblem(ctx context.Context, userID, problemID int) ([]types.Submission, error)
}

// Evaluator judges one submission to completion.
type Evaluator interface {
	Evaluate(ctx context.Context, params judge.EvalParams) judge.Evaluation
}

// SubmissionService is the boundary of the judging pipeline: it
// validates the request, snapshots the problem's test cases, judges the
// code, persists the record, and shapes the caller-facing outcome.
type SubmissionService struct {
	repo      SubmissionRepository
	problems  *ProblemService
	evaluator Evaluator
	publisher events.Publisher
	channel   string
	logger    *slog.Logger
}

func NewSubmissionService(
	repo SubmissionRepository,
	problems *ProblemService,
	evaluator Evaluator,
	publisher events.Publisher,
	channel string,
) *SubmissionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SubmissionService{
		repo:      repo,
		problems:  problems,
		evaluator: evaluator,
		publisher: publisher,
		channel:   channel,
		logger:    slog.Default().With("component", "submissions"),
	}
}

// TestCaseOutcome pairs a visible test case with the program's output
// for display in the editor.
type TestCaseOutcome struct {
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
	Stdout         string `json:"stdout"`
	StatusID       int    `json:"status_id"`
}

// RunOutcome is the result of judging against visible cases only.
type RunOutcome struct {
	Success        bool
	RuntimeSeconds float64
	MemoryKB       int
	Saved          bool
	TestCases      []TestCaseOutcome
}

// SubmitOutcome is the result of judging against the full test set.
type SubmitOutcome struct {
	Accepted       bool
	PassedCount    int
	TotalCount     int
	RuntimeSeconds float64
	MemoryKB       int
	Saved          bool
}

// Run judges the code against the problem's visible cases and reports
// per-case detail. Hidden cases are never touched, so a run can't leak
// their contents.
func (s *SubmissionService) Run(ctx context.Context, userID, problemID int, sourceCode, language string) (RunOutcome, error) {
	eval, saved, err := s.judge(ctx, types.ModeRun, userID, problemID, sourceCode, language)
	if err != nil {
		return RunOutcome{}, err
	}

	outcomes := make([]TestCaseOutcome, len(eval.Results))
	for i, result := range eval.Results {
		outcomes[i] = TestCaseOutcome{
			Stdin:          eval.Cases[i].Input,
			ExpectedOutput: eval.Cases[i].ExpectedOutput,
			Stdout:         result.Stdout,
			StatusID:       judge.StatusID(result.Status),
		}
	}

	return RunOutcome{
		Success:        eval.Accepted(),
		RuntimeSeconds: eval.RuntimeSeconds,
		MemoryKB:       eval.MemoryKB,
		Saved:          saved,
		TestCases:      outcomes,
	}, nil
}

// Submit judges the code against every test case, visible and hidden,
// and reports only the aggregate so hidden cases stay hidden.
func (s *SubmissionService) Submit(ctx context.Context, userID, problemID int, sourceCode, language string) (SubmitOutcome, error) {
	eval, saved, err := s.judge(ctx, types.ModeSubmit, userID, problemID, sourceCode, language)
	if err != nil {
		return SubmitOutcome{}, err
	}

	return SubmitOutcome{
		Accepted:       eval.Accepted(),
		PassedCount:    eval.PassedCount,
		TotalCount:     eval.TotalCount,
		RuntimeSeconds: eval.RuntimeSeconds,
		MemoryKB:       eval.MemoryKB,
		Saved:          saved,
	}, nil
}

// History returns the user's submissions for a problem, newest first.
func (s *SubmissionService) History(ctx context.Context, userID, problemID int) ([]types.Submission, error) {
	if _, err := s.problems.Get(ctx, problemID); err != nil {
		return nil, err
	}
	return s.repo.ListByUserAndProblem(ctx, userID, problemID)
}

// Get returns one submission, restricted to its owner.
func (s *SubmissionService) Get(ctx context.Context, userID int, id int64) (types.Submission, error) {
	submission, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Submission{}, err
	}
	if submission.UserID != userID {
		// Do not reveal other users' submission ids.
		return types.Submission{}, store.ErrNotFound
	}
	return submission, nil
}

// judge runs the shared pipeline for both modes. The returned saved
// flag is false when the judgment finished but could not be persisted;
// the caller still gets the result this one time, flagged so the UI
// does not expect it in history.
func (s *SubmissionService) judge(ctx context.Context, mode types.SubmissionMode, userID, problemID int, sourceCode, language string) (judge.Evaluation, bool, error) {
	if strings.TrimSpace(sourceCode) == "" {
		return judge.Evaluation{}, false, ErrEmptySource
	}
	if !judge.SupportedLanguage(language) {
		return judge.Evaluation{}, false, ErrUnsupportedLanguage
	}

	problem, err := s.problems.Get(ctx, problemID)
	if err != nil {
		return judge.Evaluation{}, false, err
	}

	// Snapshot the test cases before judging starts; a concurrent
	// problem edit swaps the reference, never the referenced bytes.
	snapshot, err := s.problems.LoadTestcaseSet(ctx, problem.TestcaseSet)
	if err != nil {
		return judge.Evaluation{}, false, err
	}

	eval := s.evaluator.Evaluate(ctx, judge.EvalParams{
		Mode:             mode,
		SourceCode:       sourceCode,
		Language:         language,
		Testcases:        snapshot,
		TimeLimitSeconds: problem.TimeLimitSeconds,
		MemoryLimitKB:    problem.MemoryLimitKB,
	})

	record := types.Submission{
		UserID:         userID,
		ProblemID:      problemID,
		Language:       language,
		SourceCode:     sourceCode,
		Mode:           mode,
		Results:        eval.Results,
		Verdict:        eval.Verdict,
		PassedCount:    eval.PassedCount,
		TotalCount:     eval.TotalCount,
		RuntimeSeconds: eval.RuntimeSeconds,
		MemoryKB:       eval.MemoryKB,
	}

	saved := true
	stored, err := s.repo.Create(ctx, record)
	if err != nil {
		// The judgment is done; losing the row should not lose the
		// verdict the user is waiting on.
		s.logger.Error("failed to persist submission",
			"user_id", userID, "problem_id", problemID, "error", err)
		saved = false
	} else {
		s.publish(ctx, stored)
	}

	return eval, saved, nil
}

func (s *SubmissionService) publish(ctx context.Context, submission types.Submission) {
	event := events.JudgedEvent{
		SubmissionID: submission.ID,
		UserID:       submission.UserID,
		ProblemID:    submission.ProblemID,
		Language:     submission.Language,
		Mode:         submission.Mode,
		Verdict:      submission.Verdict,
		PassedCount:  submission.PassedCount,
		TotalCount:   submission.TotalCount,
		JudgedAt:     time.Now(),
	}
	if err := s.publisher.Publish(ctx, s.channel, event); err != nil {
		s.logger.Warn("failed to publish verdict event",
			"submission_id", submission.ID, "error", err)
	}
}
