package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/persistence"
)

// FindingRepository handles audit finding and action item database operations.
type FindingRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFindingRepository creates a new finding repository.
func NewFindingRepository(db *sql.DB, logger *slog.Logger) *FindingRepository {
	return &FindingRepository{db: db, logger: logger}
}

const findingColumns = `
		id
	  , audit_id
	  , company_id
	  , title
	  , description
	  , severity
	  , status
	  , finding_type
	  , ai_detected
	  , ai_confidence
	  , remediation_status
	  , due_date
	  , created_by
	  , created_at
	  , updated_at
	  , resolved_at
`

const actionItemColumns = `
		id
	  , finding_id
	  , assigned_to
	  , description
	  , due_date
	  , status
	  , priority
	  , progress_notes
	  , created_at
	  , completed_at
`

// SaveFinding upserts an audit finding.
func (r *FindingRepository) SaveFinding(ctx context.Context, finding *models.AuditFinding) error {
	now := time.Now().UTC()

	if finding.CreatedAt.IsZero() {
		finding.CreatedAt = now
	}

	finding.UpdatedAt = now

	if finding.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate finding ID: %w", err)
		}

		finding.ID = id.String()
	}

	query := `
		INSERT INTO audit_findings (` + findingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			severity = EXCLUDED.severity,
			status = EXCLUDED.status,
			finding_type = EXCLUDED.finding_type,
			remediation_status = EXCLUDED.remediation_status,
			due_date = EXCLUDED.due_date,
			updated_at = EXCLUDED.updated_at,
			resolved_at = EXCLUDED.resolved_at
	`

	_, err := r.db.ExecContext(ctx, query,
		finding.ID,
		finding.AuditID,
		finding.CompanyID,
		finding.Title,
		finding.Description,
		finding.Severity,
		finding.Status,
		finding.FindingType,
		finding.AIDetected,
		finding.AIConfidence,
		finding.RemediationStatus,
		finding.DueDate,
		finding.CreatedBy,
		finding.CreatedAt,
		finding.UpdatedAt,
		finding.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save finding: %w", err)
	}

	return nil
}

// FindingByID returns an audit finding.
func (r *FindingRepository) FindingByID(ctx context.Context, id string) (*models.AuditFinding, error) {
	query := `SELECT ` + findingColumns + ` FROM audit_findings WHERE id = $1`

	finding, err := r.scanFinding(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("FindingByID", "finding", id, persistence.ErrFindingNotFound)
		}

		return nil, fmt.Errorf("failed to scan finding: %w", err)
	}

	return finding, nil
}

// ListFindings returns findings matching the filter.
func (r *FindingRepository) ListFindings(ctx context.Context, filter persistence.FindingFilter) ([]*models.AuditFinding, error) {
	query := `
		SELECT ` + findingColumns + `
		FROM audit_findings
		WHERE ($1 = '' OR company_id = $1)
		  AND ($2 = '' OR audit_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR severity = $4)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query,
		filter.CompanyID,
		filter.AuditID,
		string(filter.Status),
		string(filter.Severity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	findings := make([]*models.AuditFinding, 0)

	for rows.Next() {
		finding, err := r.scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}

		findings = append(findings, finding)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}

	return findings, nil
}

// SaveActionItem upserts a remediation action item.
func (r *FindingRepository) SaveActionItem(ctx context.Context, item *models.ActionItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate action item ID: %w", err)
		}

		item.ID = id.String()
	}

	query := `
		INSERT INTO action_items (` + actionItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			assigned_to = EXCLUDED.assigned_to,
			description = EXCLUDED.description,
			due_date = EXCLUDED.due_date,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			progress_notes = EXCLUDED.progress_notes,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.FindingID,
		item.AssignedTo,
		item.Description,
		item.DueDate,
		item.Status,
		item.Priority,
		item.ProgressNotes,
		item.CreatedAt,
		item.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save action item: %w", err)
	}

	return nil
}

// ActionItemByID returns an action item.
func (r *FindingRepository) ActionItemByID(ctx context.Context, id string) (*models.ActionItem, error) {
	query := `SELECT ` + actionItemColumns + ` FROM action_items WHERE id = $1`

	item, err := r.scanActionItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("ActionItemByID", "action_item", id, persistence.ErrActionItemNotFound)
		}

		return nil, fmt.Errorf("failed to scan action item: %w", err)
	}

	return item, nil
}

// ActionItems returns the action items for a finding, oldest first.
func (r *FindingRepository) ActionItems(ctx context.Context, findingID string) ([]*models.ActionItem, error) {
	query := `SELECT ` + actionItemColumns + ` FROM action_items WHERE finding_id = $1 ORDER BY created_at`

	return r.queryActionItems(ctx, query, findingID)
}

// ListOverdueActionItems returns incomplete action items past their due date.
func (r *FindingRepository) ListOverdueActionItems(ctx context.Context, now time.Time, limit int) ([]*models.ActionItem, error) {
	query := `
		SELECT ` + actionItemColumns + `
		FROM action_items
		WHERE status != 'completed' AND due_date IS NOT NULL AND due_date <= $1
		ORDER BY due_date
		LIMIT $2
	`

	return r.queryActionItems(ctx, query, now, limit)
}

func (r *FindingRepository) queryActionItems(ctx context.Context, query string, args ...any) ([]*models.ActionItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	items := make([]*models.ActionItem, 0)

	for rows.Next() {
		item, err := r.scanActionItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action item: %w", err)
		}

		items = append(items, item)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating action items: %w", err)
	}

	return items, nil
}

func (r *FindingRepository) scanFinding(row rowScanner) (*models.AuditFinding, error) {
	finding := &models.AuditFinding{}

	err := row.Scan(
		&finding.ID,
		&finding.AuditID,
		&finding.CompanyID,
		&finding.Title,
		&finding.Description,
		&finding.Severity,
		&finding.Status,
		&finding.FindingType,
		&finding.AIDetected,
		&finding.AIConfidence,
		&finding.RemediationStatus,
		&finding.DueDate,
		&finding.CreatedBy,
		&finding.CreatedAt,
		&finding.UpdatedAt,
		&finding.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	return finding, nil
}

func (r *FindingRepository) scanActionItem(row rowScanner) (*models.ActionItem, error) {
	item := &models.ActionItem{}

	err := row.Scan(
		&item.ID,
		&item.FindingID,
		&item.AssignedTo,
		&item.Description,
		&item.DueDate,
		&item.Status,
		&item.Priority,
		&item.ProgressNotes,
		&item.CreatedAt,
		&item.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return item, nil
}
