package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionMode distinguishes a quick run against visible examples from a
// full submit against the entire test case set.
type SubmissionMode string

// Supported submission modes.
const (
	ModeRun    SubmissionMode = "run"
	ModeSubmit SubmissionMode = "submit"
)

// ExecutionRequest describes a single unit of work for the execution
// backend: one source program run against one test case under the
// problem's resource limits. Requests are built once per test case per
// submission and discarded after their result is captured.
type ExecutionRequest struct {
	// SourceCode is the program to compile and run.
	SourceCode string `json:"source_code"`

	// Language is the language key ("cpp", "java", "javascript").
	Language string `json:"language"`

	// Stdin is the test case input fed to the program.
	Stdin string `json:"stdin"`

	// ExpectedOutput is the output a correct solution produces for Stdin.
	ExpectedOutput string `json:"expected_output"`

	// TimeLimitSeconds is the per-test CPU time limit.
	TimeLimitSeconds float64 `json:"time_limit_seconds"`

	// MemoryLimitKB is the per-test memory limit in kilobytes.
	MemoryLimitKB int `json:"memory_limit_kb"`
}

// ExecutionResult is the normalized outcome of running one test case on
// the execution backend. Results are immutable once produced.
type ExecutionResult struct {
	// Stdout is the program's standard output, if any.
	Stdout string `json:"stdout"`

	// Stderr is the program's standard error, if any.
	Stderr string `json:"stderr"`

	// CompileError holds compiler output when compilation failed.
	CompileError string `json:"compile_error,omitempty"`

	// Status is the verdict for this single test case.
	Status JudgeStatus `json:"status"`

	// RuntimeSeconds is the measured CPU time for this test case.
	RuntimeSeconds float64 `json:"runtime_seconds"`

	// MemoryKB is the measured peak memory for this test case in kilobytes.
	MemoryKB int `json:"memory_kb"`
}

// Submission is one judged run/submit action against a problem. Records
// are append-only: a resubmission creates a new record and old records
// are never modified, preserving the user's full history.
type Submission struct {
	// ID is the unique identifier of the submission.
	ID int64 `json:"id" db:"id"`

	// UserID identifies the user who made the submission.
	UserID int `json:"user_id" db:"user_id"`

	// ProblemID identifies the problem this submission is for.
	ProblemID int `json:"problem_id" db:"problem_id"`

	// Language is the language key the source was submitted in.
	Language string `json:"language" db:"language"`

	// SourceCode is the code as submitted by the user.
	SourceCode string `json:"source_code" db:"source_code"`

	// Mode records whether this was a run or a submit action.
	Mode SubmissionMode `json:"mode" db:"mode"`

	// Results holds one ExecutionResult per evaluated test case, in
	// test case order. The slice is fully populated before the record
	// is persisted; aborted tests appear as StatusJudgeError entries.
	Results []ExecutionResult `json:"results" db:"results"`

	// Verdict is the aggregate outcome: Accepted when every result is
	// accepted, otherwise the status of the first failing test.
	Verdict JudgeStatus `json:"verdict" db:"verdict"`

	// PassedCount is the number of accepted test cases.
	PassedCount int `json:"passed_count" db:"passed_count"`

	// TotalCount is the number of test cases selected for this mode,
	// including tests that were aborted before execution.
	TotalCount int `json:"total_count" db:"total_count"`

	// RuntimeSeconds is the maximum runtime across executed tests.
	RuntimeSeconds float64 `json:"runtime_seconds" db:"runtime_seconds"`

	// MemoryKB is the maximum memory across executed tests in kilobytes.
	MemoryKB int `json:"memory_kb" db:"memory_kb"`

	// CreatedAt is the timestamp when the submission was judged.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// JudgeStatus is the closed set of per-test and aggregate verdicts.
// The zero value is StatusJudgeError so that result slots which were
// never filled in report an infrastructure failure rather than a pass.
type JudgeStatus int

// Supported judge statuses.
const (
	// StatusJudgeError indicates the execution backend failed, timed
	// out, or returned an unusable response for this test.
	StatusJudgeError JudgeStatus = iota

	// StatusAccepted indicates the test produced the expected output.
	StatusAccepted

	// StatusWrongAnswer indicates output that differs from the expected.
	StatusWrongAnswer

	// StatusCompileError indicates the source failed to compile.
	StatusCompileError

	// StatusRuntimeError indicates the program crashed or exited non-zero.
	StatusRuntimeError

	// StatusTimeLimitExceeded indicates the time limit was exceeded.
	StatusTimeLimitExceeded

	// StatusMemoryLimitExceeded indicates the memory limit was exceeded.
	StatusMemoryLimitExceeded
)

var statusNames = map[JudgeStatus]string{
	StatusJudgeError:          "JE",
	StatusAccepted:            "AC",
	StatusWrongAnswer:         "WA",
	StatusCompileError:        "CE",
	StatusRuntimeError:        "RE",
	StatusTimeLimitExceeded:   "TLE",
	StatusMemoryLimitExceeded: "MLE",
}

// String returns the compact status code used in API responses and logs.
func (s JudgeStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "JE"
}

func (s JudgeStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *JudgeStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, candidate := range statusNames {
		if candidate == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown judge status %q", name)
}
