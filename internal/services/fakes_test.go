package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/codecrack-oj/apiserver/internal/events"
	"github.com/codecrack-oj/apiserver/internal/judge"
	"github.com/codecrack-oj/apiserver/internal/storage"
	"github.com/codecrack-oj/apiserver/internal/store"
	"github.com/codecrack-oj/apiserver/types"
)

// memObjectStorage keeps documents in a map.
type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (m *memObjectStorage) EnsureBucket(context.Context) error { return nil }
func (m *memObjectStorage) Bucket() string                     { return "test" }

func (m *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// fakeProblemRepo keeps problems in a map.
type fakeProblemRepo struct {
	mu       sync.Mutex
	nextID   int
	problems map[int]types.Problem
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{nextID: 1, problems: make(map[int]types.Problem)}
}

func (f *fakeProblemRepo) List(_ context.Context, offset, limit int) ([]types.Problem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	problems := make([]types.Problem, 0, len(f.problems))
	for id := 1; id < f.nextID; id++ {
		if p, ok := f.problems[id]; ok {
			problems = append(problems, p)
		}
	}
	total := len(problems)
	if offset > len(problems) {
		offset = len(problems)
	}
	problems = problems[offset:]
	if limit < len(problems) {
		problems = problems[:limit]
	}
	return problems, total, nil
}

func (f *fakeProblemRepo) Get(_ context.Context, id int) (types.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	problem, ok := f.problems[id]
	if !ok {
		return types.Problem{}, store.ErrNotFound
	}
	return problem, nil
}

func (f *fakeProblemRepo) Create(_ context.Context, problem types.Problem) (types.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	problem.ID = f.nextID
	f.nextID++
	f.problems[problem.ID] = problem
	return problem, nil
}

func (f *fakeProblemRepo) Update(_ context.Context, problem types.Problem) (types.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.problems[problem.ID]; !ok {
		return types.Problem{}, store.ErrNotFound
	}
	f.problems[problem.ID] = problem
	return problem, nil
}

func (f *fakeProblemRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.problems[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.problems, id)
	return nil
}

// fakeSubmissionRepo records created submissions; failCreate makes the
// next Create fail.
type fakeSubmissionRepo struct {
	mu         sync.Mutex
	nextID     int64
	created    []types.Submission
	failCreate bool
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1}
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission types.Submission) (types.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return types.Submission{}, errors.New("database unavailable")
	}
	submission.ID = f.nextID
	f.nextID++
	f.created = append(f.created, submission)
	return submission, nil
}

func (f *fakeSubmissionRepo) Get(_ context.Context, id int64) (types.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.created {
		if s.ID == id {
			return s, nil
		}
	}
	return types.Submission{}, store.ErrNotFound
}

func (f *fakeSubmissionRepo) ListByUserAndProblem(_ context.Context, userID, problemID int) ([]types.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matches := make([]types.Submission, 0)
	for i := len(f.created) - 1; i >= 0; i-- {
		s := f.created[i]
		if s.UserID == userID && s.ProblemID == problemID {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

// fakeEvaluator records the params it was called with and judges every
// selected case with the scripted per-input status.
type fakeEvaluator struct {
	mu       sync.Mutex
	statuses map[string]types.JudgeStatus
	calls    []judge.EvalParams
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{statuses: make(map[string]types.JudgeStatus)}
}

func (f *fakeEvaluator) Evaluate(_ context.Context, params judge.EvalParams) judge.Evaluation {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.mu.Unlock()

	var cases []types.TestCase
	if params.Mode == types.ModeRun {
		cases = params.Testcases.VisibleCases()
	} else {
		cases = params.Testcases.JudgingOrder()
	}

	eval := judge.Evaluation{
		Cases:      cases,
		Results:    make([]types.ExecutionResult, len(cases)),
		Verdict:    types.StatusAccepted,
		TotalCount: len(cases),
	}
	for i, tc := range cases {
		status, ok := f.statuses[tc.Input]
		if !ok {
			status = types.StatusAccepted
		}
		eval.Results[i] = types.ExecutionResult{Status: status, Stdout: tc.ExpectedOutput}
		if status == types.StatusAccepted {
			eval.PassedCount++
		} else if eval.Verdict == types.StatusAccepted {
			eval.Verdict = status
		}
	}
	return eval
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.JudgedEvent
}

func (c *capturePublisher) Publish(_ context.Context, _ string, event events.JudgedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) published() []events.JudgedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.JudgedEvent(nil), c.events...)
}

func newTestProblemService() (*ProblemService, *fakeProblemRepo, *memObjectStorage) {
	repo := newFakeProblemRepo()
	objects := newMemObjectStorage()
	return NewProblemService(repo, storage.New(objects)), repo, objects
}
