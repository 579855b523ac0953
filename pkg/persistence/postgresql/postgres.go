// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/auditflow/auditflow/pkg/persistence"
	"github.com/auditflow/auditflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db                   *sql.DB
	logger               *slog.Logger
	workflowRepo         *WorkflowRepository
	documentWorkflowRepo *DocumentWorkflowRepository
	requirementRepo      *RequirementRepository
	submissionRepo       *SubmissionRepository
	findingRepo          *FindingRepository
	documentRepo         *DocumentRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:                   database,
		logger:               logger,
		workflowRepo:         NewWorkflowRepository(database, logger),
		documentWorkflowRepo: NewDocumentWorkflowRepository(database, logger),
		requirementRepo:      NewRequirementRepository(database, logger),
		submissionRepo:       NewSubmissionRepository(database, logger),
		findingRepo:          NewFindingRepository(database, logger),
		documentRepo:         NewDocumentRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) DocumentWorkflowRepository() persistence.DocumentWorkflowRepository {
	return p.documentWorkflowRepo
}

func (p *Persistence) RequirementRepository() persistence.RequirementRepository {
	return p.requirementRepo
}

func (p *Persistence) SubmissionRepository() persistence.SubmissionRepository {
	return p.submissionRepo
}

func (p *Persistence) FindingRepository() persistence.FindingRepository {
	return p.findingRepo
}

func (p *Persistence) DocumentRepository() persistence.DocumentRepository {
	return p.documentRepo
}
