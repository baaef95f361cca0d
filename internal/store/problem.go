package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/codecrack-oj/apiserver/types"
)

// ProblemRepository handles persistence for problems.
type ProblemRepository struct {
	db *sql.DB
}

func NewProblemRepository(db *sql.DB) *ProblemRepository {
	return &ProblemRepository{db: db}
}

const problemColumns = `id, title, description, difficulty, time_limit_seconds,
	memory_limit_kb, starter_code, tags, testcase_set, created_at, updated_at`

func (r *ProblemRepository) List(ctx context.Context, offset, limit int) ([]types.Problem, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM problems`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + problemColumns + `
		FROM problems
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	problems := make([]types.Problem, 0, limit)
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, 0, err
		}
		problems = append(problems, problem)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return problems, total, nil
}

func (r *ProblemRepository) Get(ctx context.Context, id int) (types.Problem, error) {
	const query = `
		SELECT ` + problemColumns + `
		FROM problems
		WHERE id = $1`
	problem, err := scanProblem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Problem{}, ErrNotFound
		}
		return types.Problem{}, err
	}
	return problem, nil
}

func (r *ProblemRepository) Create(ctx context.Context, problem types.Problem) (types.Problem, error) {
	now := time.Now()
	problem.CreatedAt = now
	problem.UpdatedAt = now

	starterJSON, tagsJSON, setJSON, err := marshalProblemColumns(problem)
	if err != nil {
		return types.Problem{}, err
	}

	const query = `
		INSERT INTO problems (title, description, difficulty, time_limit_seconds,
			memory_limit_kb, starter_code, tags, testcase_set, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		problem.Title,
		problem.Description,
		problem.Difficulty,
		problem.TimeLimitSeconds,
		problem.MemoryLimitKB,
		starterJSON,
		tagsJSON,
		setJSON,
		problem.CreatedAt,
		problem.UpdatedAt,
	).Scan(&problem.ID); err != nil {
		return types.Problem{}, err
	}

	return problem, nil
}

func (r *ProblemRepository) Update(ctx context.Context, problem types.Problem) (types.Problem, error) {
	problem.UpdatedAt = time.Now()

	starterJSON, tagsJSON, setJSON, err := marshalProblemColumns(problem)
	if err != nil {
		return types.Problem{}, err
	}

	const query = `
		UPDATE problems
		SET title = $1,
			description = $2,
			difficulty = $3,
			time_limit_seconds = $4,
			memory_limit_kb = $5,
			starter_code = $6,
			tags = $7,
			testcase_set = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		problem.Title,
		problem.Description,
		problem.Difficulty,
		problem.TimeLimitSeconds,
		problem.MemoryLimitKB,
		starterJSON,
		tagsJSON,
		setJSON,
		problem.UpdatedAt,
		problem.ID,
	)
	if err != nil {
		return types.Problem{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Problem{}, err
	}
	if affected == 0 {
		return types.Problem{}, ErrNotFound
	}
	return problem, nil
}

func (r *ProblemRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM problems WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalProblemColumns(problem types.Problem) (starter, tags, set []byte, err error) {
	if starter, err = json.Marshal(problem.StarterCode); err != nil {
		return nil, nil, nil, err
	}
	if tags, err = json.Marshal(problem.Tags); err != nil {
		return nil, nil, nil, err
	}
	if set, err = json.Marshal(problem.TestcaseSet); err != nil {
		return nil, nil, nil, err
	}
	return starter, tags, set, nil
}

func scanProblem(row rowScanner) (types.Problem, error) {
	var problem types.Problem
	var starterJSON, tagsJSON, setJSON []byte
	if err := row.Scan(
		&problem.ID,
		&problem.Title,
		&problem.Description,
		&problem.Difficulty,
		&problem.TimeLimitSeconds,
		&problem.MemoryLimitKB,
		&starterJSON,
		&tagsJSON,
		&setJSON,
		&problem.CreatedAt,
		&problem.UpdatedAt,
	); err != nil {
		return types.Problem{}, err
	}
	if err := json.Unmarshal(starterJSON, &problem.StarterCode); err != nil {
		return types.Problem{}, err
	}
	if err := json.Unmarshal(tagsJSON, &problem.Tags); err != nil {
		return types.Problem{}, err
	}
	if err := json.Unmarshal(setJSON, &problem.TestcaseSet); err != nil {
		return types.Problem{}, err
	}
	return problem, nil
}
