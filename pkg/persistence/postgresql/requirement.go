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

// RequirementRepository handles document requirement database operations.
type RequirementRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRequirementRepository creates a new requirement repository.
func NewRequirementRepository(db *sql.DB, logger *slog.Logger) *RequirementRepository {
	return &RequirementRepository{db: db, logger: logger}
}

const requirementColumns = `
		id
	  , audit_id
	  , company_id
	  , document_type
	  , description
	  , is_mandatory
	  , deadline
	  , auto_escalate
	  , escalation_level
	  , validation_rules
	  , priority_score
	  , risk_level
	  , compliance_framework
	  , created_by
	  , created_at
	  , updated_at
	  , closed_at
`

// Save upserts a document requirement.
func (r *RequirementRepository) Save(ctx context.Context, requirement *models.DocumentRequirement) error {
	now := time.Now().UTC()

	if requirement.CreatedAt.IsZero() {
		requirement.CreatedAt = now
	}

	requirement.UpdatedAt = now

	if requirement.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate requirement ID: %w", err)
		}

		requirement.ID = id.String()
	}

	rulesJSON, err := json.Marshal(requirement.ValidationRules)
	if err != nil {
		return fmt.Errorf("failed to marshal validation rules: %w", err)
	}

	query := `
		INSERT INTO document_requirements (` + requirementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			is_mandatory = EXCLUDED.is_mandatory,
			deadline = EXCLUDED.deadline,
			auto_escalate = EXCLUDED.auto_escalate,
			escalation_level = EXCLUDED.escalation_level,
			validation_rules = EXCLUDED.validation_rules,
			priority_score = EXCLUDED.priority_score,
			risk_level = EXCLUDED.risk_level,
			compliance_framework = EXCLUDED.compliance_framework,
			updated_at = EXCLUDED.updated_at,
			closed_at = EXCLUDED.closed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		requirement.ID,
		requirement.AuditID,
		requirement.CompanyID,
		requirement.DocumentType,
		requirement.Description,
		requirement.IsMandatory,
		requirement.Deadline,
		requirement.AutoEscalate,
		requirement.EscalationLevel,
		rulesJSON,
		requirement.PriorityScore,
		requirement.RiskLevel,
		requirement.ComplianceFramework,
		requirement.CreatedBy,
		requirement.CreatedAt,
		requirement.UpdatedAt,
		requirement.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save requirement: %w", err)
	}

	return nil
}

// GetByID returns a requirement.
func (r *RequirementRepository) GetByID(ctx context.Context, id string) (*models.DocumentRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM document_requirements WHERE id = $1`

	requirement, err := r.scanRequirement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "requirement", id, persistence.ErrRequirementNotFound)
		}

		return nil, fmt.Errorf("failed to scan requirement: %w", err)
	}

	return requirement, nil
}

// List returns requirements matching the filter.
func (r *RequirementRepository) List(ctx context.Context, filter persistence.RequirementFilter) ([]*models.DocumentRequirement, error) {
	query := `
		SELECT ` + requirementColumns + `
		FROM document_requirements
		WHERE ($1 = '' OR company_id = $1)
		  AND ($2 = '' OR audit_id = $2)
		  AND (NOT $3 OR closed_at IS NULL)
		ORDER BY priority_score DESC, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, filter.CompanyID, filter.AuditID, filter.OnlyOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	requirements := make([]*models.DocumentRequirement, 0)

	for rows.Next() {
		requirement, err := r.scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}

		requirements = append(requirements, requirement)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating requirements: %w", err)
	}

	return requirements, nil
}

// ListOverdue returns open auto-escalating requirements past their deadline.
func (r *RequirementRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.DocumentRequirement, error) {
	query := `
		SELECT ` + requirementColumns + `
		FROM document_requirements
		WHERE closed_at IS NULL AND auto_escalate AND deadline IS NOT NULL AND deadline <= $1
		ORDER BY deadline
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue requirements: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	requirements := make([]*models.DocumentRequirement, 0)

	for rows.Next() {
		requirement, err := r.scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}

		requirements = append(requirements, requirement)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating overdue requirements: %w", err)
	}

	return requirements, nil
}

// SaveEscalation upserts an escalation record.
func (r *RequirementRepository) SaveEscalation(ctx context.Context, escalation *models.RequirementEscalation) error {
	if escalation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate escalation ID: %w", err)
		}

		escalation.ID = id.String()
	}

	query := `
		INSERT INTO requirement_escalations (id, requirement_id, level, escalation_type, reason, escalated_at, resolved, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			resolved = EXCLUDED.resolved,
			resolved_at = EXCLUDED.resolved_at
	`

	_, err := r.db.ExecContext(ctx, query,
		escalation.ID,
		escalation.RequirementID,
		escalation.Level,
		escalation.EscalationType,
		escalation.Reason,
		escalation.EscalatedAt,
		escalation.Resolved,
		escalation.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save escalation: %w", err)
	}

	return nil
}

// Escalations returns the escalation records for a requirement, oldest first.
func (r *RequirementRepository) Escalations(ctx context.Context, requirementID string) ([]*models.RequirementEscalation, error) {
	query := `
		SELECT
			id
		  , requirement_id
		  , level
		  , escalation_type
		  , reason
		  , escalated_at
		  , resolved
		  , resolved_at
		FROM requirement_escalations
		WHERE requirement_id = $1
		ORDER BY escalated_at
	`

	rows, err := r.db.QueryContext(ctx, query, requirementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	escalations := make([]*models.RequirementEscalation, 0)

	for rows.Next() {
		escalation := &models.RequirementEscalation{}

		err := rows.Scan(
			&escalation.ID,
			&escalation.RequirementID,
			&escalation.Level,
			&escalation.EscalationType,
			&escalation.Reason,
			&escalation.EscalatedAt,
			&escalation.Resolved,
			&escalation.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}

		escalations = append(escalations, escalation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating escalations: %w", err)
	}

	return escalations, nil
}

func (r *RequirementRepository) scanRequirement(row rowScanner) (*models.DocumentRequirement, error) {
	requirement := &models.DocumentRequirement{}

	var rulesJSON []byte

	err := row.Scan(
		&requirement.ID,
		&requirement.AuditID,
		&requirement.CompanyID,
		&requirement.DocumentType,
		&requirement.Description,
		&requirement.IsMandatory,
		&requirement.Deadline,
		&requirement.AutoEscalate,
		&requirement.EscalationLevel,
		&rulesJSON,
		&requirement.PriorityScore,
		&requirement.RiskLevel,
		&requirement.ComplianceFramework,
		&requirement.CreatedBy,
		&requirement.CreatedAt,
		&requirement.UpdatedAt,
		&requirement.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(rulesJSON) > 0 {
		err = json.Unmarshal(rulesJSON, &requirement.ValidationRules)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal validation rules: %w", err)
		}
	}

	return requirement, nil
}
