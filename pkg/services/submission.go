package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/auditflow/auditflow/pkg/events"
	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/oracle"
	"github.com/auditflow/auditflow/pkg/otelhelper"
	"github.com/auditflow/auditflow/pkg/persistence"
)

const defaultOracleTimeout = 10 * time.Second

// PipelineConfig carries the verification policy knobs.
type PipelineConfig struct {
	// AutoApprove enables skipping human review for clean high scores.
	AutoApprove bool

	// AutoApproveThreshold is the minimum validation score for
	// auto-approval, on the oracle's 0..10 scale.
	AutoApproveThreshold float64

	// OracleTimeout bounds a single validation call.
	OracleTimeout time.Duration
}

// Pipeline drives document submissions through validation and review.
type Pipeline struct {
	persistence persistence.Persistence
	oracle      oracle.ValidationOracle
	notifier    notifier.Notifier
	config      PipelineConfig
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewPipeline creates a submission pipeline.
func NewPipeline(p persistence.Persistence, o oracle.ValidationOracle, n notifier.Notifier, cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = defaultOracleTimeout
	}

	return &Pipeline{
		persistence: p,
		oracle:      o,
		notifier:    n,
		config:      cfg,
		logger:      logger.With("module", "pipeline"),
		tracer:      otel.Tracer("auditflow.pipeline"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the pipeline clock. Tests use this to pin time.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now

	return p
}

// Submit registers a new attempt to satisfy a requirement with a document.
// The revision round continues the requirement+document lineage: 1 on first
// submission, previous maximum plus one on resubmission.
func (p *Pipeline) Submit(ctx context.Context, principal models.Principal, requirementID, documentID string) (*models.DocumentSubmission, error) {
	requirement, err := p.persistence.RequirementRepository().GetByID(ctx, requirementID)
	if err != nil {
		return nil, err
	}

	if requirement.CompanyID != principal.CompanyID {
		return nil, NewServiceError("Submit", "company_scope", "requirement belongs to another company", ErrCompanyScope)
	}

	if !requirement.Open() {
		return nil, NewServiceError("Submit", "requirement_closed", "requirement no longer accepts submissions", ErrRequirementClosed)
	}

	doc, err := p.persistence.DocumentRepository().DocumentByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.CompanyID != principal.CompanyID {
		return nil, NewServiceError("Submit", "company_scope", "document belongs to another company", ErrCompanyScope)
	}

	previousRound, err := p.persistence.SubmissionRepository().MaxRevisionRound(ctx, requirementID, documentID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate submission ID: %w", err)
	}

	now := p.now()

	submission := &models.DocumentSubmission{
		ID:                id.String(),
		RequirementID:     requirementID,
		DocumentID:        documentID,
		CompanyID:         principal.CompanyID,
		SubmittedBy:       principal.UserID,
		SubmittedAt:       now,
		VerificationState: models.VerificationPending,
		Stage:             models.StageSubmitted,
		RevisionRound:     previousRound + 1,
		Priority:          priorityFor(requirement),
		UpdatedAt:         now,
	}

	err = p.persistence.SubmissionRepository().Create(ctx, submission)
	if err != nil {
		return nil, err
	}

	p.notifier.Notify(ctx, submission.ID, events.SubmissionReceived{
		BaseEvent:     p.baseEvent(events.SubmissionReceivedEvent, submission.CompanyID),
		SubmissionID:  submission.ID,
		RequirementID: requirementID,
		DocumentID:    documentID,
		SubmittedBy:   principal.UserID,
		RevisionRound: submission.RevisionRound,
	})

	p.logger.InfoContext(ctx, "submission received",
		"submission_id", submission.ID, "requirement_id", requirementID, "revision_round", submission.RevisionRound)

	return submission, nil
}

// Get returns a submission scoped to the caller's company.
func (p *Pipeline) Get(ctx context.Context, principal models.Principal, submissionID string) (*models.DocumentSubmission, error) {
	submission, err := p.persistence.SubmissionRepository().GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if submission.CompanyID != principal.CompanyID {
		return nil, NewServiceError("Get", "company_scope", "submission belongs to another company", ErrCompanyScope)
	}

	return submission, nil
}

// RunValidation scores a pending submission against the requirement's
// validation rules. Oracle failures never fail the submission: the pipeline
// degrades to manual review with the failure recorded as an issue.
func (p *Pipeline) RunValidation(ctx context.Context, submissionID string) (*models.DocumentSubmission, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "pipeline.run_validation",
		attribute.String(otelhelper.SubmissionIDKey, submissionID),
	)
	defer span.End()

	submission, err := p.persistence.SubmissionRepository().GetByID(ctx, submissionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.RequirementIDKey, submission.RequirementID),
		attribute.String(otelhelper.DocumentIDKey, submission.DocumentID),
		attribute.String(otelhelper.CompanyIDKey, submission.CompanyID),
	)

	if submission.VerificationState != models.VerificationPending {
		return nil, NewServiceError("RunValidation", "not_pending", "submission is not awaiting validation", ErrSubmissionNotReady)
	}

	requirement, err := p.persistence.RequirementRepository().GetByID(ctx, submission.RequirementID)
	if err != nil {
		return nil, err
	}

	doc, err := p.persistence.DocumentRepository().DocumentByID(ctx, submission.DocumentID)
	if err != nil {
		return nil, err
	}

	submission.Stage = models.StageAIValidation

	ruleIssues := p.checkValidationRules(requirement.ValidationRules, doc)

	oracleCtx, cancel := context.WithTimeout(ctx, p.config.OracleTimeout)
	defer cancel()

	score, err := p.oracle.ScoreDocument(oracleCtx, doc, requirement.ValidationRules)

	degraded := false

	switch {
	case err != nil:
		// Degrade to manual review, never block on an unavailable oracle.
		if !errors.Is(err, oracle.ErrUnavailable) {
			p.logger.WarnContext(ctx, "oracle scoring failed", "submission_id", submission.ID, "error", err)
		}

		degraded = true
		submission.Stage = models.StageUnderReview
		submission.Issues = append(ruleIssues, "automatic validation unavailable, manual review required")
	default:
		submission.AIValidationScore = score.Validation
		submission.ComplianceScore = score.Compliance
		submission.Issues = append(ruleIssues, score.Issues...)

		if p.config.AutoApprove && score.Validation >= p.config.AutoApproveThreshold && len(submission.Issues) == 0 {
			now := p.now()
			submission.VerificationState = models.VerificationApproved
			submission.AutoVerified = true
			submission.Stage = models.StageCompleted
			submission.ReviewedAt = &now
		} else {
			submission.Stage = models.StageUnderReview
		}
	}

	err = p.persistence.SubmissionRepository().UpdateGuarded(ctx, submission, models.VerificationPending)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if submission.VerificationState == models.VerificationApproved {
		p.satisfyRequirement(ctx, submission.RequirementID)
	}

	p.notifier.Notify(ctx, submission.ID, events.SubmissionScored{
		BaseEvent:         p.baseEvent(events.SubmissionScoredEvent, submission.CompanyID),
		SubmissionID:      submission.ID,
		AIValidationScore: submission.AIValidationScore,
		ComplianceScore:   submission.ComplianceScore,
		AutoVerified:      submission.AutoVerified,
		Degraded:          degraded,
		Issues:            submission.Issues,
	})

	p.logger.InfoContext(ctx, "submission validated",
		"submission_id", submission.ID, "score", submission.AIValidationScore,
		"auto_verified", submission.AutoVerified, "degraded", degraded)

	return submission, nil
}

// Decide records a human reviewer's verdict on a submission under review.
func (p *Pipeline) Decide(ctx context.Context, principal models.Principal, submissionID string, decision models.ReviewDecision, notes string) (*models.DocumentSubmission, error) {
	if !decision.Valid() {
		return nil, NewServiceError("Decide", "invalid_decision", "unknown decision "+string(decision), ErrInvalidDecision)
	}

	if !principal.Role.CanReview() {
		return nil, NewServiceError("Decide", "role", "role "+string(principal.Role)+" cannot review submissions", ErrRoleNotPermitted)
	}

	submission, err := p.Get(ctx, principal, submissionID)
	if err != nil {
		return nil, err
	}

	if submission.VerificationState.Terminal() {
		return nil, NewServiceError("Decide", "terminal", "submission already "+string(submission.VerificationState), ErrSubmissionTerminal)
	}

	if submission.Stage != models.StageUnderReview {
		return nil, NewServiceError("Decide", "not_reviewable", "submission has not completed validation", ErrSubmissionNotReady)
	}

	now := p.now()
	submission.ReviewedBy = principal.UserID
	submission.ReviewedAt = &now
	submission.ReviewNotes = notes

	fromStatus := submission.VerificationState

	switch decision {
	case models.DecisionApprove:
		submission.VerificationState = models.VerificationApproved
		submission.Stage = models.StageCompleted
	case models.DecisionRequestRevision:
		submission.VerificationState = models.VerificationNeedsRevision
		submission.Stage = models.StageSubmitted
	case models.DecisionReject:
		submission.VerificationState = models.VerificationRejected
		submission.Stage = models.StageCompleted
	}

	err = p.persistence.SubmissionRepository().UpdateGuarded(ctx, submission, fromStatus)
	if err != nil {
		return nil, err
	}

	if decision == models.DecisionApprove {
		p.satisfyRequirement(ctx, submission.RequirementID)
	}

	p.notifier.Notify(ctx, submission.ID, events.SubmissionDecided{
		BaseEvent:    p.baseEvent(events.SubmissionDecidedEvent, submission.CompanyID),
		SubmissionID: submission.ID,
		Decision:     string(decision),
		ReviewedBy:   principal.UserID,
		Notes:        notes,
	})

	p.logger.InfoContext(ctx, "submission decided",
		"submission_id", submission.ID, "decision", decision, "reviewed_by", principal.UserID)

	return submission, nil
}

// satisfyRequirement closes the requirement behind an approved submission and
// resolves its open escalations, so the deadline sweep stops re-escalating it.
// The approval is already committed; failures here are logged, not surfaced.
func (p *Pipeline) satisfyRequirement(ctx context.Context, requirementID string) {
	requirement, err := p.persistence.RequirementRepository().GetByID(ctx, requirementID)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load requirement after approval", "requirement_id", requirementID, "error", err)

		return
	}

	now := p.now()

	if requirement.Open() {
		requirement.ClosedAt = &now
		requirement.UpdatedAt = now

		err = p.persistence.RequirementRepository().Save(ctx, requirement)
		if err != nil {
			p.logger.WarnContext(ctx, "failed to close satisfied requirement", "requirement_id", requirementID, "error", err)

			return
		}
	}

	escalations, err := p.persistence.RequirementRepository().Escalations(ctx, requirementID)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load escalations for satisfied requirement", "requirement_id", requirementID, "error", err)

		return
	}

	for _, escalation := range escalations {
		if escalation.Resolved {
			continue
		}

		escalation.Resolved = true
		escalation.ResolvedAt = &now

		err = p.persistence.RequirementRepository().SaveEscalation(ctx, escalation)
		if err != nil {
			p.logger.WarnContext(ctx, "failed to resolve escalation", "escalation_id", escalation.ID, "error", err)
		}
	}

	p.logger.InfoContext(ctx, "requirement satisfied by approved submission", "requirement_id", requirementID)
}

// checkValidationRules runs the requirement's structured predicate set over
// the document descriptor. A "schema" rule is interpreted as a JSON Schema
// applied to the document metadata; malformed rules count as issues rather
// than failures.
func (p *Pipeline) checkValidationRules(rules map[string]any, doc *models.DocumentRef) []string {
	issues := make([]string, 0)

	if maxSize, ok := ruleFloat(rules, "max_file_size"); ok && doc.FileSize > maxSize {
		issues = append(issues, fmt.Sprintf("file size %.0f exceeds limit %.0f", doc.FileSize, maxSize))
	}

	if fileType, ok := rules["file_type"].(string); ok && fileType != "" && doc.FileType != fileType {
		issues = append(issues, fmt.Sprintf("file type %q does not match required %q", doc.FileType, fileType))
	}

	schema, ok := rules["schema"]
	if !ok {
		return issues
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(metadata))
	if err != nil {
		issues = append(issues, "validation rule schema is malformed: "+err.Error())

		return issues
	}

	for _, desc := range result.Errors() {
		issues = append(issues, "metadata: "+desc.String())
	}

	return issues
}

func ruleFloat(rules map[string]any, key string) (float64, bool) {
	value, ok := rules[key]
	if !ok {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	}

	return 0, false
}

func priorityFor(requirement *models.DocumentRequirement) models.PriorityLevel {
	switch requirement.RiskLevel {
	case models.RiskCritical, models.RiskHigh:
		return models.PriorityHigh
	case models.RiskMedium:
		return models.PriorityMedium
	}

	return models.PriorityLow
}

func (p *Pipeline) baseEvent(eventType events.EventType, companyID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: p.now(),
		CompanyID: companyID,
	}
}
