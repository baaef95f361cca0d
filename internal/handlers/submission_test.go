package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/codecrack-oj/apiserver/internal/events"
	"github.com/codecrack-oj/apiserver/internal/judge"
	"github.com/codecrack-oj/apiserver/internal/services"
	"github.com/codecrack-oj/apiserver/internal/storage"
	"github.com/codecrack-oj/apiserver/internal/store"
	"github.com/codecrack-oj/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memObjects is an in-memory object storage backend.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) EnsureBucket(context.Context) error { return nil }
func (m *memObjects) Bucket() string                     { return "test" }

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// memProblemRepo is an in-memory services.ProblemRepository.
type memProblemRepo struct {
	mu       sync.Mutex
	nextID   int
	problems map[int]types.Problem
}

func newMemProblemRepo() *memProblemRepo {
	return &memProblemRepo{nextID: 1, problems: make(map[int]types.Problem)}
}

func (m *memProblemRepo) List(context.Context, int, int) ([]types.Problem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	problems := make([]types.Problem, 0, len(m.problems))
	for id := 1; id < m.nextID; id++ {
		if p, ok := m.problems[id]; ok {
			problems = append(problems, p)
		}
	}
	return problems, len(problems), nil
}

func (m *memProblemRepo) Get(_ context.Context, id int) (types.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	problem, ok := m.problems[id]
	if !ok {
		return types.Problem{}, store.ErrNotFound
	}
	return problem, nil
}

func (m *memProblemRepo) Create(_ context.Context, problem types.Problem) (types.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	problem.ID = m.nextID
	m.nextID++
	m.problems[problem.ID] = problem
	return problem, nil
}

func (m *memProblemRepo) Update(_ context.Context, problem types.Problem) (types.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.problems[problem.ID]; !ok {
		return types.Problem{}, store.ErrNotFound
	}
	m.problems[problem.ID] = problem
	return problem, nil
}

func (m *memProblemRepo) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.problems[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.problems, id)
	return nil
}

// memSubmissionRepo is an in-memory services.SubmissionRepository.
type memSubmissionRepo struct {
	mu      sync.Mutex
	nextID  int64
	created []types.Submission
}

func (m *memSubmissionRepo) Create(_ context.Context, submission types.Submission) (types.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	submission.ID = m.nextID
	m.created = append(m.created, submission)
	return submission, nil
}

func (m *memSubmissionRepo) Get(_ context.Context, id int64) (types.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.created {
		if s.ID == id {
			return s, nil
		}
	}
	return types.Submission{}, store.ErrNotFound
}

func (m *memSubmissionRepo) ListByUserAndProblem(_ context.Context, userID, problemID int) ([]types.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := make([]types.Submission, 0)
	for i := len(m.created) - 1; i >= 0; i-- {
		s := m.created[i]
		if s.UserID == userID && s.ProblemID == problemID {
			matches = append(matches, s)
		}
	}
	return matches, nil
}

// passEvaluator accepts every selected case.
type passEvaluator struct{}

func (passEvaluator) Evaluate(_ context.Context, params judge.EvalParams) judge.Evaluation {
	var cases []types.TestCase
	if params.Mode == types.ModeRun {
		cases = params.Testcases.VisibleCases()
	} else {
		cases = params.Testcases.JudgingOrder()
	}
	eval := judge.Evaluation{
		Cases:       cases,
		Results:     make([]types.ExecutionResult, len(cases)),
		Verdict:     types.StatusAccepted,
		PassedCount: len(cases),
		TotalCount:  len(cases),
	}
	for i, tc := range cases {
		eval.Results[i] = types.ExecutionResult{Status: types.StatusAccepted, Stdout: tc.ExpectedOutput}
	}
	return eval
}

// subjectMiddleware injects an authenticated subject, standing in for
// the JWT middleware.
func subjectMiddleware(userID int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), contextSubjectKey, strconv.Itoa(userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newSubmissionTestRouter(t *testing.T, userID int) (http.Handler, int) {
	t.Helper()

	problems := services.NewProblemService(newMemProblemRepo(), storage.New(newMemObjects()))
	problem, err := problems.Create(context.Background(), types.Problem{
		Title:            "Sum",
		Description:      "Add the numbers.",
		Difficulty:       "easy",
		TimeLimitSeconds: 1,
		MemoryLimitKB:    65536,
	}, []types.TestCase{
		{Input: "1 2", ExpectedOutput: "3", Visible: true},
		{Input: "4 4", ExpectedOutput: "8"},
	})
	require.NoError(t, err)

	service := services.NewSubmissionService(
		&memSubmissionRepo{}, problems, passEvaluator{}, events.NopPublisher{}, "submission.judged")

	router := chi.NewRouter()
	router.Route("/submission", func(r chi.Router) {
		var auth func(http.Handler) http.Handler
		if userID > 0 {
			auth = subjectMiddleware(userID)
		}
		SubmissionRouter(r, service, auth)
	})
	return router, problem.ID
}

func sendJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	return sendJSON(t, router, http.MethodPost, path, payload)
}

func putJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	return sendJSON(t, router, http.MethodPut, path, payload)
}

func TestRunEndpoint(t *testing.T) {
	router, problemID := newSubmissionTestRouter(t, 1)

	rec := postJSON(t, router, "/submission/run/"+strconv.Itoa(problemID), SubmissionRequest{
		SourceCode: "print(input())",
		Language:   "javascript",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Saved)
	require.Len(t, resp.TestCases, 1)
	assert.Equal(t, "1 2", resp.TestCases[0].Stdin)
	assert.Equal(t, "3", resp.TestCases[0].Stdout)
	assert.Equal(t, 3, resp.TestCases[0].StatusID)
}

func TestSubmitEndpoint(t *testing.T) {
	router, problemID := newSubmissionTestRouter(t, 1)

	rec := postJSON(t, router, "/submission/submit/"+strconv.Itoa(problemID), SubmissionRequest{
		SourceCode: "print(input())",
		Language:   "cpp",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.Equal(t, 2, resp.PassedTestCases)
	assert.Equal(t, 2, resp.TotalTestCases)
	assert.True(t, resp.Saved)
}

func TestRunValidationErrors(t *testing.T) {
	router, problemID := newSubmissionTestRouter(t, 1)

	rec := postJSON(t, router, "/submission/run/"+strconv.Itoa(problemID), SubmissionRequest{
		SourceCode: "",
		Language:   "cpp",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestSubmitUnknownProblem(t *testing.T) {
	router, _ := newSubmissionTestRouter(t, 1)

	rec := postJSON(t, router, "/submission/submit/999", SubmissionRequest{
		SourceCode: "print(1)",
		Language:   "cpp",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.NotEmpty(t, resp.Error)
}

func TestSubmissionRoutesRequireSubject(t *testing.T) {
	router, problemID := newSubmissionTestRouter(t, 0)

	rec := postJSON(t, router, "/submission/run/"+strconv.Itoa(problemID), SubmissionRequest{
		SourceCode: "print(1)",
		Language:   "cpp",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/submission/history/"+strconv.Itoa(problemID), nil)
	recHistory := httptest.NewRecorder()
	router.ServeHTTP(recHistory, req)
	assert.Equal(t, http.StatusUnauthorized, recHistory.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	router, problemID := newSubmissionTestRouter(t, 1)

	path := "/submission/submit/" + strconv.Itoa(problemID)
	require.Equal(t, http.StatusOK, postJSON(t, router, path, SubmissionRequest{
		SourceCode: "first",
		Language:   "cpp",
	}).Code)
	require.Equal(t, http.StatusOK, postJSON(t, router, path, SubmissionRequest{
		SourceCode: "second",
		Language:   "cpp",
	}).Code)

	req := httptest.NewRequest(http.MethodGet, "/submission/history/"+strconv.Itoa(problemID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Submissions, 2)
	assert.Equal(t, "second", resp.Submissions[0].SourceCode)
}
