package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/codecrack-oj/apiserver/types"
)

// SubmissionRepository handles persistence for judged submissions.
// History is append-only: records are created and read, never updated,
// so concurrent submissions cannot conflict on writes.
type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, submission types.Submission) (types.Submission, error) {
	submission.CreatedAt = time.Now()

	resultsJSON, err := json.Marshal(submission.Results)
	if err != nil {
		return types.Submission{}, err
	}

	const query = `
		INSERT INTO submissions (
			user_id, problem_id, language, source_code, mode,
			results, verdict, passed_count, total_count,
			runtime_seconds, memory_kb, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		submission.UserID,
		submission.ProblemID,
		submission.Language,
		submission.SourceCode,
		string(submission.Mode),
		resultsJSON,
		int(submission.Verdict),
		submission.PassedCount,
		submission.TotalCount,
		submission.RuntimeSeconds,
		submission.MemoryKB,
		submission.CreatedAt,
	).Scan(&submission.ID); err != nil {
		return types.Submission{}, err
	}

	return submission, nil
}

func (r *SubmissionRepository) Get(ctx context.Context, id int64) (types.Submission, error) {
	const query = `
		SELECT id, user_id, problem_id, language, source_code, mode,
		       results, verdict, passed_count, total_count,
		       runtime_seconds, memory_kb, created_at
		FROM submissions
		WHERE id = $1`
	submission, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Submission{}, ErrNotFound
		}
		return types.Submission{}, err
	}
	return submission, nil
}

// ListByUserAndProblem returns a user's submissions for one problem,
// newest first. This backs the "My Submissions" view.
func (r *SubmissionRepository) ListByUserAndProblem(ctx context.Context, userID, problemID int) ([]types.Submission, error) {
	const query = `
		SELECT id, user_id, problem_id, language, source_code, mode,
		       results, verdict, passed_count, total_count,
		       runtime_seconds, memory_kb, created_at
		FROM submissions
		WHERE user_id = $1 AND problem_id = $2
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]types.Submission, 0)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (types.Submission, error) {
	var submission types.Submission
	var mode string
	var verdict int
	var resultsJSON []byte
	if err := row.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.ProblemID,
		&submission.Language,
		&submission.SourceCode,
		&mode,
		&resultsJSON,
		&verdict,
		&submission.PassedCount,
		&submission.TotalCount,
		&submission.RuntimeSeconds,
		&submission.MemoryKB,
		&submission.CreatedAt,
	); err != nil {
		return types.Submission{}, err
	}
	submission.Mode = types.SubmissionMode(mode)
	submission.Verdict = types.JudgeStatus(verdict)
	if err := json.Unmarshal(resultsJSON, &submission.Results); err != nil {
		return types.Submission{}, err
	}
	return submission, nil
}
