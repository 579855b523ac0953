// Package oracle provides the validation oracle abstraction used to score
// submitted documents before human review.
package oracle

import (
	"context"
	"errors"

	"github.com/auditflow/auditflow/pkg/models"
)

// ErrUnavailable indicates the oracle could not produce a score after
// exhausting retries. The verification pipeline degrades to manual review.
var ErrUnavailable = errors.New("validation oracle unavailable")

// Score is a bounded oracle verdict for one document.
type Score struct {
	// Validation is the oracle's score in [0, 10].
	Validation float64 `json:"validation_score"`

	// Compliance is the oracle's compliance score in [0, 100].
	Compliance float64 `json:"compliance_score"`

	// Confidence is the oracle's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Issues lists human-readable problems the oracle detected.
	Issues []string `json:"issues"`
}

// ValidationOracle scores documents against a requirement's validation rules.
// Implementations must respect context cancellation and bound their latency.
type ValidationOracle interface {
	ScoreDocument(ctx context.Context, doc *models.DocumentRef, rules map[string]any) (*Score, error)
}
