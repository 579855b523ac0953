package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/persistence"
)

// DocumentRepository handles document reference database operations.
type DocumentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *sql.DB, logger *slog.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

// SaveDocument upserts a document reference.
func (r *DocumentRepository) SaveDocument(ctx context.Context, doc *models.DocumentRef) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO documents (id, title, file_type, file_size, company_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			file_type = EXCLUDED.file_type,
			file_size = EXCLUDED.file_size,
			metadata = EXCLUDED.metadata
	`

	_, err = r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.FileType,
		doc.FileSize,
		doc.CompanyID,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	return nil
}

// DocumentByID returns a document reference.
func (r *DocumentRepository) DocumentByID(ctx context.Context, id string) (*models.DocumentRef, error) {
	query := `
		SELECT
			id
		  , title
		  , file_type
		  , file_size
		  , company_id
		  , metadata
		FROM documents
		WHERE id = $1
	`

	doc := &models.DocumentRef{}

	var metadataJSON []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.Title,
		&doc.FileType,
		&doc.FileSize,
		&doc.CompanyID,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("DocumentByID", "document", id, persistence.ErrDocumentNotFound)
		}

		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return doc, nil
}
