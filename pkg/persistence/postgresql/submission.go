package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/persistence"
)

// SubmissionRepository handles document submission database operations.
type SubmissionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *sql.DB, logger *slog.Logger) *SubmissionRepository {
	return &SubmissionRepository{db: db, logger: logger}
}

const submissionColumns = `
		id
	  , requirement_id
	  , document_id
	  , company_id
	  , submitted_by
	  , submitted_at
	  , verification_status
	  , workflow_stage
	  , revision_round
	  , auto_verified
	  , ai_validation_score
	  , compliance_score
	  , issues
	  , priority_level
	  , reviewed_by
	  , reviewed_at
	  , review_notes
	  , updated_at
`

// Create inserts a new submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.DocumentSubmission) error {
	if submission.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate submission ID: %w", err)
		}

		submission.ID = id.String()
	}

	issuesJSON, err := json.Marshal(submission.Issues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	query := `
		INSERT INTO document_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = r.db.ExecContext(ctx, query,
		submission.ID,
		submission.RequirementID,
		submission.DocumentID,
		submission.CompanyID,
		submission.SubmittedBy,
		submission.SubmittedAt,
		submission.VerificationState,
		submission.Stage,
		submission.RevisionRound,
		submission.AutoVerified,
		submission.AIValidationScore,
		submission.ComplianceScore,
		issuesJSON,
		submission.Priority,
		nullString(submission.ReviewedBy),
		submission.ReviewedAt,
		submission.ReviewNotes,
		submission.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	return nil
}

// GetByID returns a submission.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.DocumentSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM document_submissions WHERE id = $1`

	submission, err := r.scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "submission", id, persistence.ErrSubmissionNotFound)
		}

		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	return submission, nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter persistence.SubmissionFilter) ([]*models.DocumentSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM document_submissions
		WHERE ($1 = '' OR company_id = $1)
		  AND ($2 = '' OR requirement_id::text = $2)
		  AND ($3 = '' OR verification_status = $3)
		  AND ($4::timestamptz IS NULL OR submitted_at >= $4)
		  AND ($5::timestamptz IS NULL OR submitted_at <= $5)
		ORDER BY submitted_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query,
		filter.CompanyID,
		filter.RequirementID,
		string(filter.Status),
		filter.SubmittedFrom,
		filter.SubmittedTo,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	submissions := make([]*models.DocumentSubmission, 0)

	for rows.Next() {
		submission, err := r.scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		submissions = append(submissions, submission)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return submissions, nil
}

// UpdateGuarded persists submission changes only while the stored row still
// holds fromStatus.
func (r *SubmissionRepository) UpdateGuarded(ctx context.Context, submission *models.DocumentSubmission, fromStatus models.VerificationStatus) error {
	submission.UpdatedAt = time.Now().UTC()

	issuesJSON, err := json.Marshal(submission.Issues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	query := `
		UPDATE document_submissions SET
			verification_status = $1,
			workflow_stage = $2,
			auto_verified = $3,
			ai_validation_score = $4,
			compliance_score = $5,
			issues = $6,
			priority_level = $7,
			reviewed_by = $8,
			reviewed_at = $9,
			review_notes = $10,
			updated_at = $11
		WHERE id = $12 AND verification_status = $13
	`

	result, err := r.db.ExecContext(ctx, query,
		submission.VerificationState,
		submission.Stage,
		submission.AutoVerified,
		submission.AIValidationScore,
		submission.ComplianceScore,
		issuesJSON,
		submission.Priority,
		nullString(submission.ReviewedBy),
		submission.ReviewedAt,
		submission.ReviewNotes,
		submission.UpdatedAt,
		submission.ID,
		fromStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError("UpdateGuarded", "submission", submission.ID, persistence.ErrStaleState)
	}

	return nil
}

// MaxRevisionRound returns the highest revision round recorded for the
// requirement+document lineage, zero when none exists.
func (r *SubmissionRepository) MaxRevisionRound(ctx context.Context, requirementID, documentID string) (int, error) {
	var round int

	query := `
		SELECT COALESCE(MAX(revision_round), 0)
		FROM document_submissions
		WHERE requirement_id = $1 AND document_id = $2
	`

	err := r.db.QueryRowContext(ctx, query, requirementID, documentID).Scan(&round)
	if err != nil {
		return 0, fmt.Errorf("failed to query max revision round: %w", err)
	}

	return round, nil
}

func (r *SubmissionRepository) scanSubmission(row rowScanner) (*models.DocumentSubmission, error) {
	submission := &models.DocumentSubmission{}

	var (
		issuesJSON []byte
		reviewedBy sql.NullString
	)

	err := row.Scan(
		&submission.ID,
		&submission.RequirementID,
		&submission.DocumentID,
		&submission.CompanyID,
		&submission.SubmittedBy,
		&submission.SubmittedAt,
		&submission.VerificationState,
		&submission.Stage,
		&submission.RevisionRound,
		&submission.AutoVerified,
		&submission.AIValidationScore,
		&submission.ComplianceScore,
		&issuesJSON,
		&submission.Priority,
		&reviewedBy,
		&submission.ReviewedAt,
		&submission.ReviewNotes,
		&submission.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	submission.ReviewedBy = reviewedBy.String

	if len(issuesJSON) > 0 {
		err = json.Unmarshal(issuesJSON, &submission.Issues)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
		}
	}

	return submission, nil
}
