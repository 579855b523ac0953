// Package memory provides an in-memory persistence implementation for tests
// and local development. It applies the same status-guard semantics as the
// PostgreSQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/persistence"
)

// Persistence implements the persistence layer with in-process maps.
type Persistence struct {
	mu sync.RWMutex

	workflows         map[string]*models.Workflow
	instances         map[string]*models.DocumentWorkflow
	history           map[string][]*models.ExecutionHistoryEntry
	requirements      map[string]*models.DocumentRequirement
	escalations       map[string][]*models.RequirementEscalation
	submissions       map[string]*models.DocumentSubmission
	findings          map[string]*models.AuditFinding
	actionItems       map[string]*models.ActionItem
	documents         map[string]*models.DocumentRef
	historySequencers map[string]int64
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		workflows:         make(map[string]*models.Workflow),
		instances:         make(map[string]*models.DocumentWorkflow),
		history:           make(map[string][]*models.ExecutionHistoryEntry),
		requirements:      make(map[string]*models.DocumentRequirement),
		escalations:       make(map[string][]*models.RequirementEscalation),
		submissions:       make(map[string]*models.DocumentSubmission),
		findings:          make(map[string]*models.AuditFinding),
		actionItems:       make(map[string]*models.ActionItem),
		documents:         make(map[string]*models.DocumentRef),
		historySequencers: make(map[string]int64),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository { return (*workflowRepo)(p) }

func (p *Persistence) DocumentWorkflowRepository() persistence.DocumentWorkflowRepository {
	return (*documentWorkflowRepo)(p)
}

func (p *Persistence) RequirementRepository() persistence.RequirementRepository {
	return (*requirementRepo)(p)
}

func (p *Persistence) SubmissionRepository() persistence.SubmissionRepository {
	return (*submissionRepo)(p)
}

func (p *Persistence) FindingRepository() persistence.FindingRepository { return (*findingRepo)(p) }

func (p *Persistence) DocumentRepository() persistence.DocumentRepository { return (*documentRepo)(p) }

func (p *Persistence) HealthCheck(ctx context.Context) error { return nil }

func (p *Persistence) Close(ctx context.Context) error { return nil }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

type workflowRepo Persistence

func (r *workflowRepo) Save(ctx context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = newID()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	copied := *workflow
	copied.Steps = append([]models.WorkflowStep(nil), workflow.Steps...)
	r.workflows[workflow.ID] = &copied

	return nil
}

func (r *workflowRepo) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	copied := *workflow
	copied.Steps = append([]models.WorkflowStep(nil), workflow.Steps...)

	return &copied, nil
}

func (r *workflowRepo) List(ctx context.Context, filter persistence.WorkflowFilter) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows := make([]*models.Workflow, 0)

	for _, workflow := range r.workflows {
		if filter.CompanyID != "" && workflow.CompanyID != filter.CompanyID {
			continue
		}

		copied := *workflow
		copied.Steps = append([]models.WorkflowStep(nil), workflow.Steps...)
		workflows = append(workflows, &copied)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *workflowRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return persistence.NewEntityError("Delete", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.workflows, id)

	return nil
}

type documentWorkflowRepo Persistence

func (r *documentWorkflowRepo) Create(ctx context.Context, instance *models.DocumentWorkflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *instance
	copied.Steps = append([]models.WorkflowStep(nil), instance.Steps...)
	r.instances[instance.ID] = &copied

	return nil
}

func (r *documentWorkflowRepo) GetByID(ctx context.Context, id string) (*models.DocumentWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "document_workflow", id, persistence.ErrDocumentWorkflowNotFound)
	}

	copied := *instance
	copied.Steps = append([]models.WorkflowStep(nil), instance.Steps...)

	return &copied, nil
}

func (r *documentWorkflowRepo) List(ctx context.Context, filter persistence.InstanceFilter) ([]*models.DocumentWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]*models.DocumentWorkflow, 0)

	for _, instance := range r.instances {
		if filter.CompanyID != "" && instance.CompanyID != filter.CompanyID {
			continue
		}

		if filter.DocumentID != "" && instance.DocumentID != filter.DocumentID {
			continue
		}

		if filter.Status != "" && instance.Status != filter.Status {
			continue
		}

		copied := *instance
		copied.Steps = append([]models.WorkflowStep(nil), instance.Steps...)
		instances = append(instances, &copied)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].StartedAt.After(instances[j].StartedAt)
	})

	return instances, nil
}

func (r *documentWorkflowRepo) Transition(ctx context.Context, instance *models.DocumentWorkflow, fromStatus models.InstanceStatus, entry *models.ExecutionHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.instances[instance.ID]
	if !ok {
		return persistence.NewEntityError("Transition", "document_workflow", instance.ID, persistence.ErrDocumentWorkflowNotFound)
	}

	if stored.Status != fromStatus || stored.CurrentStep != entry.StepNumber {
		return persistence.NewEntityError("Transition", "document_workflow", instance.ID, persistence.ErrStaleState)
	}

	instance.UpdatedAt = time.Now().UTC()

	copied := *instance
	copied.Steps = append([]models.WorkflowStep(nil), instance.Steps...)
	r.instances[instance.ID] = &copied

	if entry.ID == "" {
		entry.ID = newID()
	}

	r.historySequencers[instance.ID]++
	entry.Sequence = r.historySequencers[instance.ID]
	entry.DocumentWorkflowID = instance.ID

	entryCopy := *entry
	r.history[instance.ID] = append(r.history[instance.ID], &entryCopy)

	return nil
}

func (r *documentWorkflowRepo) ListTimedOut(ctx context.Context, now time.Time, limit int) ([]*models.DocumentWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]*models.DocumentWorkflow, 0)

	for _, instance := range r.instances {
		if instance.Status != models.InstanceInProgress {
			continue
		}

		if instance.TimeoutAt == nil || instance.TimeoutAt.After(now) {
			continue
		}

		copied := *instance
		copied.Steps = append([]models.WorkflowStep(nil), instance.Steps...)
		instances = append(instances, &copied)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].TimeoutAt.Before(*instances[j].TimeoutAt)
	})

	if limit > 0 && len(instances) > limit {
		instances = instances[:limit]
	}

	return instances, nil
}

func (r *documentWorkflowRepo) History(ctx context.Context, documentWorkflowID string) ([]*models.ExecutionHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*models.ExecutionHistoryEntry, 0, len(r.history[documentWorkflowID]))

	for _, entry := range r.history[documentWorkflowID] {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}

	return entries, nil
}

type requirementRepo Persistence

func (r *requirementRepo) Save(ctx context.Context, requirement *models.DocumentRequirement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	if requirement.ID == "" {
		requirement.ID = newID()
	}

	if requirement.CreatedAt.IsZero() {
		requirement.CreatedAt = now
	}

	requirement.UpdatedAt = now

	copied := *requirement
	r.requirements[requirement.ID] = &copied

	return nil
}

func (r *requirementRepo) GetByID(ctx context.Context, id string) (*models.DocumentRequirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requirement, ok := r.requirements[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "requirement", id, persistence.ErrRequirementNotFound)
	}

	copied := *requirement

	return &copied, nil
}

func (r *requirementRepo) List(ctx context.Context, filter persistence.RequirementFilter) ([]*models.DocumentRequirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requirements := make([]*models.DocumentRequirement, 0)

	for _, requirement := range r.requirements {
		if filter.CompanyID != "" && requirement.CompanyID != filter.CompanyID {
			continue
		}

		if filter.AuditID != "" && requirement.AuditID != filter.AuditID {
			continue
		}

		if filter.OnlyOpen && !requirement.Open() {
			continue
		}

		copied := *requirement
		requirements = append(requirements, &copied)
	}

	sort.Slice(requirements, func(i, j int) bool {
		if requirements[i].PriorityScore != requirements[j].PriorityScore {
			return requirements[i].PriorityScore > requirements[j].PriorityScore
		}

		return requirements[i].CreatedAt.Before(requirements[j].CreatedAt)
	})

	return requirements, nil
}

func (r *requirementRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.DocumentRequirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requirements := make([]*models.DocumentRequirement, 0)

	for _, requirement := range r.requirements {
		if !requirement.AutoEscalate || !requirement.Overdue(now) {
			continue
		}

		copied := *requirement
		requirements = append(requirements, &copied)
	}

	sort.Slice(requirements, func(i, j int) bool {
		return requirements[i].Deadline.Before(*requirements[j].Deadline)
	})

	if limit > 0 && len(requirements) > limit {
		requirements = requirements[:limit]
	}

	return requirements, nil
}

func (r *requirementRepo) SaveEscalation(ctx context.Context, escalation *models.RequirementEscalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if escalation.ID == "" {
		escalation.ID = newID()
	}

	copied := *escalation

	existing := r.escalations[escalation.RequirementID]
	for i, stored := range existing {
		if stored.ID == escalation.ID {
			existing[i] = &copied

			return nil
		}
	}

	r.escalations[escalation.RequirementID] = append(existing, &copied)

	return nil
}

func (r *requirementRepo) Escalations(ctx context.Context, requirementID string) ([]*models.RequirementEscalation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	escalations := make([]*models.RequirementEscalation, 0, len(r.escalations[requirementID]))

	for _, escalation := range r.escalations[requirementID] {
		copied := *escalation
		escalations = append(escalations, &copied)
	}

	return escalations, nil
}

type submissionRepo Persistence

func (r *submissionRepo) Create(ctx context.Context, submission *models.DocumentSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if submission.ID == "" {
		submission.ID = newID()
	}

	copied := *submission
	copied.Issues = append([]string(nil), submission.Issues...)
	r.submissions[submission.ID] = &copied

	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*models.DocumentSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	submission, ok := r.submissions[id]
	if !ok {
		return nil, persistence.NewEntityError("GetByID", "submission", id, persistence.ErrSubmissionNotFound)
	}

	copied := *submission
	copied.Issues = append([]string(nil), submission.Issues...)

	return &copied, nil
}

func (r *submissionRepo) List(ctx context.Context, filter persistence.SubmissionFilter) ([]*models.DocumentSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	submissions := make([]*models.DocumentSubmission, 0)

	for _, submission := range r.submissions {
		if filter.CompanyID != "" && submission.CompanyID != filter.CompanyID {
			continue
		}

		if filter.RequirementID != "" && submission.RequirementID != filter.RequirementID {
			continue
		}

		if filter.Status != "" && submission.VerificationState != filter.Status {
			continue
		}

		if filter.SubmittedFrom != nil && submission.SubmittedAt.Before(*filter.SubmittedFrom) {
			continue
		}

		if filter.SubmittedTo != nil && submission.SubmittedAt.After(*filter.SubmittedTo) {
			continue
		}

		copied := *submission
		copied.Issues = append([]string(nil), submission.Issues...)
		submissions = append(submissions, &copied)
	}

	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].SubmittedAt.After(submissions[j].SubmittedAt)
	})

	return submissions, nil
}

func (r *submissionRepo) UpdateGuarded(ctx context.Context, submission *models.DocumentSubmission, fromStatus models.VerificationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.submissions[submission.ID]
	if !ok {
		return persistence.NewEntityError("UpdateGuarded", "submission", submission.ID, persistence.ErrSubmissionNotFound)
	}

	if stored.VerificationState != fromStatus {
		return persistence.NewEntityError("UpdateGuarded", "submission", submission.ID, persistence.ErrStaleState)
	}

	submission.UpdatedAt = time.Now().UTC()

	copied := *submission
	copied.Issues = append([]string(nil), submission.Issues...)
	r.submissions[submission.ID] = &copied

	return nil
}

func (r *submissionRepo) MaxRevisionRound(ctx context.Context, requirementID, documentID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	maxRound := 0

	for _, submission := range r.submissions {
		if submission.RequirementID != requirementID || submission.DocumentID != documentID {
			continue
		}

		if submission.RevisionRound > maxRound {
			maxRound = submission.RevisionRound
		}
	}

	return maxRound, nil
}

type findingRepo Persistence

func (r *findingRepo) SaveFinding(ctx context.Context, finding *models.AuditFinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	if finding.ID == "" {
		finding.ID = newID()
	}

	if finding.CreatedAt.IsZero() {
		finding.CreatedAt = now
	}

	finding.UpdatedAt = now

	copied := *finding
	r.findings[finding.ID] = &copied

	return nil
}

func (r *findingRepo) FindingByID(ctx context.Context, id string) (*models.AuditFinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	finding, ok := r.findings[id]
	if !ok {
		return nil, persistence.NewEntityError("FindingByID", "finding", id, persistence.ErrFindingNotFound)
	}

	copied := *finding

	return &copied, nil
}

func (r *findingRepo) ListFindings(ctx context.Context, filter persistence.FindingFilter) ([]*models.AuditFinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	findings := make([]*models.AuditFinding, 0)

	for _, finding := range r.findings {
		if filter.CompanyID != "" && finding.CompanyID != filter.CompanyID {
			continue
		}

		if filter.AuditID != "" && finding.AuditID != filter.AuditID {
			continue
		}

		if filter.Status != "" && finding.Status != filter.Status {
			continue
		}

		if filter.Severity != "" && finding.Severity != filter.Severity {
			continue
		}

		copied := *finding
		findings = append(findings, &copied)
	}

	sort.Slice(findings, func(i, j int) bool {
		return findings[i].CreatedAt.After(findings[j].CreatedAt)
	})

	return findings, nil
}

func (r *findingRepo) SaveActionItem(ctx context.Context, item *models.ActionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == "" {
		item.ID = newID()
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	copied := *item
	r.actionItems[item.ID] = &copied

	return nil
}

func (r *findingRepo) ActionItemByID(ctx context.Context, id string) (*models.ActionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.actionItems[id]
	if !ok {
		return nil, persistence.NewEntityError("ActionItemByID", "action_item", id, persistence.ErrActionItemNotFound)
	}

	copied := *item

	return &copied, nil
}

func (r *findingRepo) ActionItems(ctx context.Context, findingID string) ([]*models.ActionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*models.ActionItem, 0)

	for _, item := range r.actionItems {
		if item.FindingID != findingID {
			continue
		}

		copied := *item
		items = append(items, &copied)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

func (r *findingRepo) ListOverdueActionItems(ctx context.Context, now time.Time, limit int) ([]*models.ActionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*models.ActionItem, 0)

	for _, item := range r.actionItems {
		if !item.Overdue(now) {
			continue
		}

		copied := *item
		items = append(items, &copied)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].DueDate.Before(*items[j].DueDate)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

type documentRepo Persistence

func (r *documentRepo) SaveDocument(ctx context.Context, doc *models.DocumentRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *doc
	r.documents[doc.ID] = &copied

	return nil
}

func (r *documentRepo) DocumentByID(ctx context.Context, id string) (*models.DocumentRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, persistence.NewEntityError("DocumentByID", "document", id, persistence.ErrDocumentNotFound)
	}

	copied := *doc

	return &copied, nil
}
