package types

import "time"

// Problem represents a coding problem in the catalog.
// It contains the statement, constraints, starter code, and a reference
// to the test case set used for judging submissions.
type Problem struct {
	// ID is the unique identifier of the problem.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the problem.
	Title string `json:"title" db:"title"`

	// Description contains the full problem statement, including
	// input/output specifications and examples.
	Description string `json:"description" db:"description"`

	// Difficulty indicates the relative difficulty level of the problem
	// ("easy", "medium", "hard").
	Difficulty string `json:"difficulty" db:"difficulty"`

	// TimeLimitSeconds is the maximum allowed CPU time per test case.
	TimeLimitSeconds float64 `json:"time_limit_seconds" db:"time_limit_seconds"`

	// MemoryLimitKB is the maximum allowed memory per test case,
	// expressed in kilobytes.
	MemoryLimitKB int `json:"memory_limit_kb" db:"memory_limit_kb"`

	// StarterCode maps a language key ("cpp", "java", "javascript") to
	// the boilerplate shown in the editor for that language.
	StarterCode map[string]string `json:"starter_code" db:"starter_code"`

	// Tags are free-form labels used for categorization and search.
	Tags []string `json:"tags" db:"tags"`

	// TestcaseSet references the test case document used to judge
	// submissions against this problem. The document itself lives in
	// object storage; the reference is content-addressed so an
	// in-flight judgment is unaffected by concurrent problem edits.
	TestcaseSet TestcaseSetRef `json:"testcase_set" db:"testcase_set"`

	// CreatedAt is the timestamp at which the problem was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TestcaseSetRef points at a versioned test case document in object
// storage. The SHA256 of the document doubles as its object key, so a
// reference always resolves to the exact bytes it was created from.
type TestcaseSetRef struct {
	// ObjectKey is the key of the JSON document in object storage.
	ObjectKey string `json:"object_key" db:"object_key"`

	// SHA256 is the hex-encoded hash of the document contents.
	SHA256 string `json:"sha256" db:"sha256"`

	// VisibleCount is the number of visible test cases in the set.
	VisibleCount int `json:"visible_count" db:"visible_count"`

	// HiddenCount is the number of hidden test cases in the set.
	HiddenCount int `json:"hidden_count" db:"hidden_count"`
}

// TestcaseSet is the test case document stored in object storage: the
// ordered list of cases a problem is judged against. Once loaded for a
// submission it is treated as an immutable snapshot.
type TestcaseSet struct {
	// Cases is the ordered list of test cases, in catalog-declared order.
	Cases []TestCase `json:"cases"`
}

// TestCase is a single input/output pair used to judge a submission.
type TestCase struct {
	// Input is the data fed to the program on stdin.
	Input string `json:"input"`

	// ExpectedOutput is the output a correct solution produces.
	ExpectedOutput string `json:"expected_output"`

	// Explanation optionally describes the case to the user.
	Explanation string `json:"explanation,omitempty"`

	// Visible marks example cases shown to users; hidden cases are
	// only exercised on submit and never returned by the API.
	Visible bool `json:"visible"`
}

// VisibleCases returns the visible cases of the set, preserving order.
func (ts TestcaseSet) VisibleCases() []TestCase {
	cases := make([]TestCase, 0, len(ts.Cases))
	for _, tc := range ts.Cases {
		if tc.Visible {
			cases = append(cases, tc)
		}
	}
	return cases
}

// JudgingOrder returns the cases in judging order: visible cases first,
// then hidden, each group in declared order.
func (ts TestcaseSet) JudgingOrder() []TestCase {
	ordered := make([]TestCase, 0, len(ts.Cases))
	for _, tc := range ts.Cases {
		if tc.Visible {
			ordered = append(ordered, tc)
		}
	}
	for _, tc := range ts.Cases {
		if !tc.Visible {
			ordered = append(ordered, tc)
		}
	}
	return ordered
}
