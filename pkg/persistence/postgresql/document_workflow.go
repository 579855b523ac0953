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

// DocumentWorkflowRepository handles workflow instance database operations.
type DocumentWorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDocumentWorkflowRepository creates a new document workflow repository.
func NewDocumentWorkflowRepository(db *sql.DB, logger *slog.Logger) *DocumentWorkflowRepository {
	return &DocumentWorkflowRepository{db: db, logger: logger}
}

const documentWorkflowColumns = `
		id
	  , document_id
	  , workflow_id
	  , company_id
	  , steps
	  , current_step
	  , status
	  , started_at
	  , completed_at
	  , rejected_by
	  , rejected_at
	  , timeout_at
	  , updated_at
`

// Create inserts a new workflow instance.
func (r *DocumentWorkflowRepository) Create(ctx context.Context, instance *models.DocumentWorkflow) error {
	stepsJSON, err := json.Marshal(instance.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		INSERT INTO document_workflows (` + documentWorkflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.DocumentID,
		instance.WorkflowID,
		instance.CompanyID,
		stepsJSON,
		instance.CurrentStep,
		instance.Status,
		instance.StartedAt,
		instance.CompletedAt,
		nullString(instance.RejectedBy),
		instance.RejectedAt,
		instance.TimeoutAt,
		instance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document workflow: %w", err)
	}

	return nil
}

// GetByID returns a workflow instance.
func (r *DocumentWorkflowRepository) GetByID(ctx context.Context, id string) (*models.DocumentWorkflow, error) {
	query := `SELECT ` + documentWorkflowColumns + ` FROM document_workflows WHERE id = $1`

	instance, err := r.scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "document_workflow", id, persistence.ErrDocumentWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan document workflow: %w", err)
	}

	return instance, nil
}

// List returns workflow instances matching the filter.
func (r *DocumentWorkflowRepository) List(ctx context.Context, filter persistence.InstanceFilter) ([]*models.DocumentWorkflow, error) {
	query := `
		SELECT ` + documentWorkflowColumns + `
		FROM document_workflows
		WHERE ($1 = '' OR company_id = $1)
		  AND ($2 = '' OR document_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, filter.CompanyID, filter.DocumentID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to query document workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.DocumentWorkflow, 0)

	for rows.Next() {
		instance, err := r.scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document workflow: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating document workflows: %w", err)
	}

	return instances, nil
}

// Transition commits a state change together with its history entry. The
// update is guarded on the row still holding fromStatus so concurrent actors
// cannot both win the same step.
func (r *DocumentWorkflowRepository) Transition(ctx context.Context, instance *models.DocumentWorkflow, fromStatus models.InstanceStatus, entry *models.ExecutionHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	instance.UpdatedAt = time.Now().UTC()

	updateQuery := `
		UPDATE document_workflows SET
			current_step = $1,
			status = $2,
			completed_at = $3,
			rejected_by = $4,
			rejected_at = $5,
			timeout_at = $6,
			updated_at = $7
		WHERE id = $8 AND status = $9 AND current_step = $10
	`

	result, err := tx.ExecContext(ctx, updateQuery,
		instance.CurrentStep,
		instance.Status,
		instance.CompletedAt,
		nullString(instance.RejectedBy),
		instance.RejectedAt,
		instance.TimeoutAt,
		instance.UpdatedAt,
		instance.ID,
		fromStatus,
		entry.StepNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update document workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		err = persistence.NewEntityError("Transition", "document_workflow", instance.ID, persistence.ErrStaleState)

		return err
	}

	if entry.ID == "" {
		id, idErr := uuid.NewV7()
		if idErr != nil {
			err = fmt.Errorf("failed to generate history ID: %w", idErr)

			return err
		}

		entry.ID = id.String()
	}

	historyQuery := `
		INSERT INTO workflow_execution_history
			(id, document_workflow_id, sequence, step_number, action, performed_by, performed_at, notes, status)
		VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(sequence), 0) + 1 FROM workflow_execution_history WHERE document_workflow_id = $2),
			$3, $4, $5, $6, $7, $8
		)
	`

	_, err = tx.ExecContext(ctx, historyQuery,
		entry.ID,
		instance.ID,
		entry.StepNumber,
		entry.Action,
		entry.PerformedBy,
		entry.PerformedAt,
		entry.Notes,
		entry.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	return nil
}

// ListTimedOut returns in-progress instances whose deadline has passed,
// oldest deadline first, capped at limit.
func (r *DocumentWorkflowRepository) ListTimedOut(ctx context.Context, now time.Time, limit int) ([]*models.DocumentWorkflow, error) {
	query := `
		SELECT ` + documentWorkflowColumns + `
		FROM document_workflows
		WHERE status = 'in_progress' AND timeout_at IS NOT NULL AND timeout_at <= $1
		ORDER BY timeout_at
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query timed out workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.DocumentWorkflow, 0)

	for rows.Next() {
		instance, err := r.scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document workflow: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating timed out workflows: %w", err)
	}

	return instances, nil
}

// History returns the execution history for an instance in sequence order.
func (r *DocumentWorkflowRepository) History(ctx context.Context, documentWorkflowID string) ([]*models.ExecutionHistoryEntry, error) {
	query := `
		SELECT
			id
		  , document_workflow_id
		  , sequence
		  , step_number
		  , action
		  , performed_by
		  , performed_at
		  , notes
		  , status
		FROM workflow_execution_history
		WHERE document_workflow_id = $1
		ORDER BY sequence
	`

	rows, err := r.db.QueryContext(ctx, query, documentWorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution history: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ExecutionHistoryEntry, 0)

	for rows.Next() {
		entry := &models.ExecutionHistoryEntry{}

		err := rows.Scan(
			&entry.ID,
			&entry.DocumentWorkflowID,
			&entry.Sequence,
			&entry.StepNumber,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.Notes,
			&entry.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution history: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DocumentWorkflowRepository) scanInstance(row rowScanner) (*models.DocumentWorkflow, error) {
	instance := &models.DocumentWorkflow{}

	var (
		stepsJSON  []byte
		rejectedBy sql.NullString
	)

	err := row.Scan(
		&instance.ID,
		&instance.DocumentID,
		&instance.WorkflowID,
		&instance.CompanyID,
		&stepsJSON,
		&instance.CurrentStep,
		&instance.Status,
		&instance.StartedAt,
		&instance.CompletedAt,
		&rejectedBy,
		&instance.RejectedAt,
		&instance.TimeoutAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.RejectedBy = rejectedBy.String

	err = json.Unmarshal(stepsJSON, &instance.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	return instance, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
