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

const (
	defaultLimit = 20
	adminRole    = "admin"
)

// ProblemHandler exposes problem catalog endpoints.
type ProblemHandler struct {
	problemService *services.ProblemService
	userService    *services.UserService
}

func NewProblemHandler(problemService *services.ProblemService, userService *services.UserService) *ProblemHandler {
	return &ProblemHandler{
		problemService: problemService,
		userService:    userService,
	}
}

// ProblemRouter registers problem routes. Reads are public; writes
// require an authenticated admin. A nil authMiddleware skips the auth
// layer, which only tests should do.
func ProblemRouter(
	r chi.Router,
	problemService *services.ProblemService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewProblemHandler(problemService, userService)

	r.Get("/", handler.ListProblems)
	if authMiddleware != nil {
		r.With(authMiddleware, handler.requireAdmin).Post("/", handler.CreateProblem)
	} else {
		r.With(handler.requireAdmin).Post("/", handler.CreateProblem)
	}
	r.Route("/{problemID}", func(r chi.Router) {
		r.Get("/", handler.GetProblem)
		if authMiddleware != nil {
			r.With(authMiddleware, handler.requireAdmin).Put("/", handler.UpdateProblem)
			r.With(authMiddleware, handler.requireAdmin).Delete("/", handler.DeleteProblem)
		} else {
			r.With(handler.requireAdmin).Put("/", handler.UpdateProblem)
			r.With(handler.requireAdmin).Delete("/", handler.DeleteProblem)
		}
	})
}

// requireAdmin checks the authenticated user's role. It runs after the
// auth middleware, so the subject is already verified.
func (h *ProblemHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := h.userService.GetByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != adminRole {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListProblems returns a page of the catalog.
func (h *ProblemHandler) ListProblems(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}

	problems, total, err := h.problemService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list problems")
		return
	}

	writeJSON(w, http.StatusOK, ProblemListResponse{
		Problems: problems,
		Total:    total,
		Offset:   offset,
	})
}

// GetProblem returns one problem together with its visible example
// cases. Hidden cases never appear in any response.
func (h *ProblemHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem id")
		return
	}

	problem, err := h.problemService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load problem")
		return
	}

	set, err := h.problemService.LoadTestcaseSet(r.Context(), problem.TestcaseSet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load problem")
		return
	}

	writeJSON(w, http.StatusOK, ProblemResponse{
		Problem:      problem,
		VisibleCases: set.VisibleCases(),
	})
}

// CreateProblem stores a new problem together with its test case set.
func (h *ProblemHandler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	var req ProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.problemService.Create(r.Context(), req.problem(), req.TestCases)
	if err != nil {
		if errors.Is(err, services.ErrNoTestcases) || errors.Is(err, services.ErrNoVisibleTestcases) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create problem")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// UpdateProblem replaces a problem's metadata and, when test cases are
// included, its test case set.
func (h *ProblemHandler) UpdateProblem(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem id")
		return
	}

	var req ProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	problem := req.problem()
	problem.ID = id

	updated, err := h.problemService.Update(r.Context(), problem, req.TestCases)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "problem not found")
		case errors.Is(err, services.ErrNoVisibleTestcases):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update problem")
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteProblem removes a problem and its stored test case set.
func (h *ProblemHandler) DeleteProblem(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem id")
		return
	}

	if err := h.problemService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "problem not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete problem")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ProblemRequest is the create/update payload. Test cases are sent
// inline; the service turns them into a content-addressed storage
// document.
type ProblemRequest struct {
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Difficulty       string            `json:"difficulty"`
	TimeLimitSeconds float64           `json:"time_limit_seconds"`
	MemoryLimitKB    int               `json:"memory_limit_kb"`
	StarterCode      map[string]string `json:"starter_code"`
	Tags             []string          `json:"tags"`
	TestCases        []types.TestCase  `json:"test_cases"`
}

func (req ProblemRequest) validate() error {
	if req.Title == "" {
		return errors.New("title is required")
	}
	if req.Description == "" {
		return errors.New("description is required")
	}
	switch req.Difficulty {
	case "easy", "medium", "hard":
	default:
		return errors.New("difficulty must be easy, medium, or hard")
	}
	if req.TimeLimitSeconds <= 0 {
		return errors.New("time limit must be positive")
	}
	if req.MemoryLimitKB <= 0 {
		return errors.New("memory limit must be positive")
	}
	return nil
}

func (req ProblemRequest) problem() types.Problem {
	return types.Problem{
		Title:            req.Title,
		Description:      req.Description,
		Difficulty:       req.Difficulty,
		TimeLimitSeconds: req.TimeLimitSeconds,
		MemoryLimitKB:    req.MemoryLimitKB,
		StarterCode:      req.StarterCode,
		Tags:             req.Tags,
	}
}

type ProblemListResponse struct {
	Problems []types.Problem `json:"problems"`
	Total    int             `json:"total"`
	Offset   int             `json:"offset"`
}

type ProblemResponse struct {
	types.Problem
	VisibleCases []types.TestCase `json:"visible_test_cases"`
}
