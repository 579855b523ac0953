package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/auditflow/auditflow/pkg/models"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	baseBackoff        = 500 * time.Millisecond
	maxBackoff         = 5 * time.Second
)

// HTTPOracle calls an external scoring service over HTTP. Server errors and
// transport failures are retried with exponential backoff; client errors are
// not.
type HTTPOracle struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	maxAttempts int
	logger      *slog.Logger
}

// HTTPOracleConfig configures the HTTP oracle adapter.
type HTTPOracleConfig struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
}

// NewHTTPOracle creates an HTTP oracle adapter.
func NewHTTPOracle(logger *slog.Logger, cfg HTTPOracleConfig) *HTTPOracle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &HTTPOracle{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.With("module", "oracle"),
	}
}

type scoreRequest struct {
	DocumentID string         `json:"document_id"`
	Title      string         `json:"title"`
	FileType   string         `json:"file_type"`
	FileSize   float64        `json:"file_size"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Rules      map[string]any `json:"rules,omitempty"`
}

// ScoreDocument posts the document descriptor to the scoring service.
func (o *HTTPOracle) ScoreDocument(ctx context.Context, doc *models.DocumentRef, rules map[string]any) (*Score, error) {
	payload, err := json.Marshal(scoreRequest{
		DocumentID: doc.ID,
		Title:      doc.Title,
		FileType:   doc.FileType,
		FileSize:   doc.FileSize,
		Metadata:   doc.Metadata,
		Rules:      rules,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := baseBackoff << (attempt - 2)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}

		score, retryable, err := o.scoreOnce(ctx, payload)
		if err == nil {
			return score, nil
		}

		lastErr = err

		if !retryable {
			return nil, err
		}

		o.logger.WarnContext(ctx, "oracle scoring attempt failed",
			"attempt", attempt, "document_id", doc.ID, "error", err)
	}

	return nil, fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

func (o *HTTPOracle) scoreOnce(ctx context.Context, payload []byte) (*Score, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/v1/score", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("oracle request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read oracle response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("oracle rejected request with status %d", resp.StatusCode)
	}

	var score Score

	err = json.Unmarshal(body, &score)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode oracle response: %w", err)
	}

	return &score, false, nil
}
