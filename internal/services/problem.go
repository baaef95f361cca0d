package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/codecrack-oj/apiserver/internal/storage"
	"github.com/codecrack-oj/apiserver/types"
)

// ProblemRepository defines persistence operations for problems.
type ProblemRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Problem, int, error)
	Get(ctx context.Context, id int) (types.Problem, error)
	Create(ctx context.Context, problem types.Problem) (types.Problem, error)
	Update(ctx context.Context, problem types.Problem) (types.Problem, error)
	Delete(ctx context.Context, id int) error
}

// ProblemService encapsulates problem use-cases. Test case sets live in
// object storage; the problem row only carries a content-addressed
// reference to them.
type ProblemService struct {
	repo    ProblemRepository
	storage *storage.Storage
	logger  *slog.Logger
}

func NewProblemService(repo ProblemRepository, store *storage.Storage) *ProblemService {
	return &ProblemService{
		repo:    repo,
		storage: store,
		logger:  slog.Default().With("component", "problems"),
	}
}

func (s *ProblemService) List(ctx context.Context, offset, limit int) ([]types.Problem, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *ProblemService) Get(ctx context.Context, id int) (types.Problem, error) {
	return s.repo.Get(ctx, id)
}

// Create stores the problem's test case set and then the problem row
// referencing it.
func (s *ProblemService) Create(ctx context.Context, problem types.Problem, cases []types.TestCase) (types.Problem, error) {
	ref, err := s.storeTestcaseSet(ctx, cases)
	if err != nil {
		return types.Problem{}, err
	}
	problem.TestcaseSet = ref
	return s.repo.Create(ctx, problem)
}

// Update replaces the problem's metadata; when cases is non-empty a new
// test case set document is stored and referenced. The previous
// document is left in place so in-flight judgments against it finish
// against exactly the bytes they started with.
func (s *ProblemService) Update(ctx context.Context, problem types.Problem, cases []types.TestCase) (types.Problem, error) {
	current, err := s.repo.Get(ctx, problem.ID)
	if err != nil {
		return types.Problem{}, err
	}

	problem.TestcaseSet = current.TestcaseSet
	if len(cases) > 0 {
		ref, err := s.storeTestcaseSet(ctx, cases)
		if err != nil {
			return types.Problem{}, err
		}
		problem.TestcaseSet = ref
	}
	return s.repo.Update(ctx, problem)
}

func (s *ProblemService) Delete(ctx context.Context, id int) error {
	problem, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	// Best-effort: the row is gone either way.
	if key := problem.TestcaseSet.ObjectKey; key != "" {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete testcase set", "key", key, "error", err)
		}
	}
	return nil
}

// ErrNoTestcases is returned when a problem is created or updated
// without any test cases.
var ErrNoTestcases = errors.New("at least one test case is required")

// ErrNoVisibleTestcases is returned when a set has no visible example,
// which would make run mode a no-op.
var ErrNoVisibleTestcases = errors.New("at least one visible test case is required")
