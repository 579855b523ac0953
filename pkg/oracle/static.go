package oracle

import (
	"context"

	"github.com/auditflow/auditflow/pkg/models"
)

// StaticOracle returns a fixed score for every document. It serves tests and
// environments without a scoring service.
type StaticOracle struct {
	Score Score
	Err   error
}

// NewStaticOracle creates an oracle that always returns the given score.
func NewStaticOracle(score Score) *StaticOracle {
	return &StaticOracle{Score: score}
}

// ScoreDocument returns the configured score or error.
func (o *StaticOracle) ScoreDocument(ctx context.Context, doc *models.DocumentRef, rules map[string]any) (*Score, error) {
	if o.Err != nil {
		return nil, o.Err
	}

	score := o.Score
	score.Issues = append([]string(nil), o.Score.Issues...)

	return &score, nil
}
