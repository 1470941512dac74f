package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gradehub/internal/common/cache"
	"gradehub/internal/common/db"
	"gradehub/internal/submission/model"
	"gradehub/pkg/utils/logger"

	"go.uber.org/zap"
)

// ErrSubmissionNotFound is returned when no submission exists for an id.
var ErrSubmissionNotFound = errors.New("submission not found")

const (
	cacheKeyPrefix  = "gradehub:submission:"
	defaultTTL      = 30 * time.Minute
	defaultEmptyTTL = 5 * time.Minute
)

// StatusUpdate describes a guarded lifecycle transition. The update is
// applied only while the stored status still equals From; a transition
// that lost the race is silently skipped. Nil Feedback and CompletedAt
// leave the stored columns untouched.
type StatusUpdate struct {
	From        model.Status
	To          model.Status
	Score       *int
	Feedback    *string
	CompletedAt *time.Time
}

// SubmissionRepository persists submissions and their lifecycle state.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, sub *model.Submission) error
	UpdateStatus(ctx context.Context, submissionID string, upd StatusUpdate) error
	FindByID(ctx context.Context, submissionID string) (*model.Submission, error)
}

type submissionRepository struct {
	db    db.Database
	cache cache.Cache
	ttl   time.Duration
	empty time.Duration
}

// NewSubmissionRepository creates a MySQL-backed submission repository with
// a cache-aside read path.
func NewSubmissionRepository(database db.Database, c cache.Cache) SubmissionRepository {
	return &submissionRepository{
		db:    database,
		cache: c,
		ttl:   defaultTTL,
		empty: defaultEmptyTTL,
	}
}

func cacheKey(submissionID string) string {
	return cacheKeyPrefix + submissionID
}

// submissionRow mirrors the submissions table for cache serialization.
type submissionRow struct {
	SubmissionID string     `json:"submission_id"`
	StudentID    string     `json:"student_id"`
	AssignmentID string     `json:"assignment_id"`
	Content      string     `json:"content"`
	Status       string     `json:"status"`
	Score        *int       `json:"score"`
	Feedback     string     `json:"feedback"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

func toRow(sub *model.Submission) submissionRow {
	return submissionRow{
		SubmissionID: sub.SubmissionID,
		StudentID:    sub.StudentID,
		AssignmentID: sub.AssignmentID,
		Content:      sub.Content,
		Status:       string(sub.Status),
		Score:        sub.Score,
		Feedback:     sub.Feedback,
		SubmittedAt:  sub.SubmittedAt,
		CompletedAt:  sub.CompletedAt,
	}
}

func fromRow(row submissionRow) *model.Submission {
	return &model.Submission{
		SubmissionID: row.SubmissionID,
		StudentID:    row.StudentID,
		AssignmentID: row.AssignmentID,
		Content:      row.Content,
		Status:       model.Status(row.Status),
		Score:        row.Score,
		Feedback:     row.Feedback,
		SubmittedAt:  row.SubmittedAt,
		CompletedAt:  row.CompletedAt,
	}
}

func (r *submissionRepository) Create(ctx context.Context, tx db.Transaction, sub *model.Submission) error {
	querier := db.GetQuerier(r.db, tx)

	query := `INSERT INTO submissions
		(submission_id, student_id, assignment_id, content, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := querier.Exec(ctx, query,
		sub.SubmissionID, sub.StudentID, sub.AssignmentID,
		sub.Content, string(sub.Status), sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	// Warm the cache so the first status poll does not hit MySQL.
	if data, merr := json.Marshal(toRow(sub)); merr == nil {
		if cerr := r.cache.Set(ctx, cacheKey(sub.SubmissionID), string(data), cache.JitterTTL(r.ttl)); cerr != nil {
			logger.Warn(ctx, "failed to warm submission cache",
				zap.String("submission_id", sub.SubmissionID),
				zap.Error(cerr))
		}
	}
	return nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, submissionID string, upd StatusUpdate) error {
	return cache.UpdateCached(ctx, r.cache, cacheKey(submissionID), func(ctx context.Context) error {
		query := `UPDATE submissions
			SET status = ?, score = ?, feedback = COALESCE(?, feedback),
				completed_at = COALESCE(?, completed_at)
			WHERE submission_id = ? AND status = ?`
		result, err := r.db.Exec(ctx, query,
			string(upd.To), upd.Score, upd.Feedback, upd.CompletedAt,
			submissionID, string(upd.From))
		if err != nil {
			return fmt.Errorf("update submission status: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update submission status: %w", err)
		}
		if affected == 0 {
			// Lost the transition race or the row is gone. The guard keeps
			// terminal states immutable, so this is not an error.
			logger.Debug(ctx, "submission status transition skipped",
				zap.String("submission_id", submissionID),
				zap.String("from", string(upd.From)),
				zap.String("to", string(upd.To)))
		}
		return nil
	})
}

func (r *submissionRepository) FindByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	row, err := cache.GetWithCached(ctx, r.cache, cacheKey(submissionID),
		cache.JitterTTL(r.ttl), r.empty,
		func(row submissionRow) bool { return row.SubmissionID == "" },
		func(row submissionRow) string {
			data, _ := json.Marshal(row)
			return string(data)
		},
		func(data string) (submissionRow, error) {
			var row submissionRow
			err := json.Unmarshal([]byte(data), &row)
			return row, err
		},
		func(ctx context.Context) (submissionRow, error) {
			return r.queryByID(ctx, submissionID)
		},
	)
	if err != nil {
		return nil, err
	}
	if row.SubmissionID == "" {
		return nil, ErrSubmissionNotFound
	}
	return fromRow(row), nil
}

func (r *submissionRepository) queryByID(ctx context.Context, submissionID string) (submissionRow, error) {
	query := `SELECT submission_id, student_id, assignment_id, content, status,
		score, feedback, submitted_at, completed_at
		FROM submissions WHERE submission_id = ?`

	var (
		row      submissionRow
		feedback *string
	)
	err := r.db.QueryRow(ctx, query, submissionID).Scan(
		&row.SubmissionID, &row.StudentID, &row.AssignmentID, &row.Content,
		&row.Status, &row.Score, &feedback, &row.SubmittedAt, &row.CompletedAt)
	if db.IsNoRows(err) {
		return submissionRow{}, nil
	}
	if err != nil {
		return submissionRow{}, fmt.Errorf("query submission: %w", err)
	}
	if feedback != nil {
		row.Feedback = *feedback
	}
	return row, nil
}
