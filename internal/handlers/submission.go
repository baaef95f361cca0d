package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/codecrack-oj/apiserver/internal/services"
	"github.com/codecrack-oj/apiserver/internal/store"
	"github.com/codecrack-oj/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// SubmissionHandler exposes the judging endpoints.
type SubmissionHandler struct {
	submissionService *services.SubmissionService
}

func NewSubmissionHandler(submissionService *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// SubmissionRouter registers judging routes. Every route requires an
// authenticated user: anonymous code execution is not offered.
func SubmissionRouter(
	r chi.Router,
	submissionService *services.SubmissionService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewSubmissionHandler(submissionService)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}
	r.Post("/run/{problemID}", handler.Run)
	r.Post("/submit/{problemID}", handler.Submit)
	r.Get("/history/{problemID}", handler.History)
	r.Get("/{submissionID}", handler.Get)
}

// SubmissionRequest carries the code to judge.
type SubmissionRequest struct {
	SourceCode string `json:"code"`
	Language   string `json:"language"`
}

// RunResponse reports a visible-cases run with per-case detail.
type RunResponse struct {
	Success   bool                       `json:"success"`
	Error     string                     `json:"error,omitempty"`
	Runtime   float64                    `json:"runtime"`
	Memory    int                        `json:"memory"`
	Saved     bool                       `json:"saved"`
	TestCases []services.TestCaseOutcome `json:"testCases"`
}

// SubmitResponse reports a full judgment in aggregate only.
type SubmitResponse struct {
	Accepted        bool    `json:"accepted"`
	Error           string  `json:"error,omitempty"`
	PassedTestCases int     `json:"passedTestCases"`
	TotalTestCases  int     `json:"totalTestCases"`
	Runtime         float64 `json:"runtime"`
	Memory          int     `json:"memory"`
	Saved           bool    `json:"saved"`
}

// Run judges the submitted code against the problem's visible cases.
func (h *SubmissionHandler) Run(w http.ResponseWriter, r *http.Request) {
	userID, problemID, req, ok := h.parseJudgeRequest(w, r, func(status int, message string) {
		writeJSON(w, status, RunResponse{Success: false, Error: message})
	})
	if !ok {
		return
	}

	outcome, err := h.submissionService.Run(r.Context(), userID, problemID, req.SourceCode, req.Language)
	if err != nil {
		status, message := judgeErrorStatus(err)
		writeJSON(w, status, RunResponse{Success: false, Error: message})
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		Success:   outcome.Success,
		Runtime:   outcome.RuntimeSeconds,
		Memory:    outcome.MemoryKB,
		Saved:     outcome.Saved,
		TestCases: outcome.TestCases,
	})
}

// Submit judges the submitted code against the full test set.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, problemID, req, ok := h.parseJudgeRequest(w, r, func(status int, message string) {
		writeJSON(w, status, SubmitResponse{Accepted: false, Error: message})
	})
	if !ok {
		return
	}

	outcome, err := h.submissionService.Submit(r.Context(), userID, problemID, req.SourceCode, req.Language)
	if err != nil {
		status, message := judgeErrorStatus(err)
		writeJSON(w, status, SubmitResponse{Accepted: false, Error: message})
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{
		Accepted:        outcome.Accepted,
		PassedTestCases: outcome.PassedCount,
		TotalTestCases:  outcome.TotalCount,
		Runtime:         outcome.RuntimeSeconds,
		Memory:          outcome.MemoryKB,
		Saved:           outcome.Saved,
	})
}

// History returns the caller's submissions for a problem, newest first.
func (h *SubmissionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	problemID, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem id")
		return
	}

	submissions, err := h.submissionService.History(r.Context(), userID, problemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if submissions == nil {
		submissions = []types.Submission{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Submissions: submissions})
}

// Get returns one of the caller's submissions in full.
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "submissionID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	submission, err := h.submissionService.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load submission")
		return
	}

	writeJSON(w, http.StatusOK, submission)
}

type HistoryResponse struct {
	Submissions []types.Submission `json:"submissions"`
}

// parseJudgeRequest extracts the common pieces of a run or submit call,
// writing the mode-specific error shape through fail on rejection.
func (h *SubmissionHandler) parseJudgeRequest(
	w http.ResponseWriter,
	r *http.Request,
	fail func(status int, message string),
) (userID, problemID int, req SubmissionRequest, ok bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		fail(http.StatusUnauthorized, "unauthorized")
		return 0, 0, SubmissionRequest{}, false
	}
	problemID, err = parseProblemID(r)
	if err != nil {
		fail(http.StatusBadRequest, "invalid problem id")
		return 0, 0, SubmissionRequest{}, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(http.StatusBadRequest, "invalid request")
		return 0, 0, SubmissionRequest{}, false
	}
	return userID, problemID, req, true
}

// judgeErrorStatus maps service errors to HTTP statuses without
// leaking internal detail.
func judgeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrEmptySource), errors.Is(err, services.ErrUnsupportedLanguage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "problem not found"
	default:
		return http.StatusInternalServerError, "judging failed"
	}
}
