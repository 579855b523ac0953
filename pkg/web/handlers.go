// Package web provides HTTP handlers and REST API endpoints for the workflow
// and submission engine.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/persistence"
	"github.com/auditflow/auditflow/pkg/services"
)

// Identity headers supplied by the authenticating front proxy.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderCompanyID = "X-Company-Id"
)

type APIHandlers struct {
	engine       *services.Engine
	pipeline     *services.Pipeline
	requirements *services.Requirements
	findings     *services.Findings
	persistence  persistence.Persistence
	validator    *validator.Validate
}

func NewAPIHandlers(
	engine *services.Engine,
	pipeline *services.Pipeline,
	requirements *services.Requirements,
	findings *services.Findings,
	p persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:       engine,
		pipeline:     pipeline,
		requirements: requirements,
		findings:     findings,
		persistence:  p,
		validator:    validator,
	}
}

// principal builds the acting principal from the identity headers.
func (h *APIHandlers) principal(c fiber.Ctx) (models.Principal, bool) {
	principal := models.Principal{
		UserID:    c.Get(HeaderUserID),
		Role:      models.Role(c.Get(HeaderUserRole)),
		CompanyID: c.Get(HeaderCompanyID),
	}

	if principal.UserID == "" || principal.CompanyID == "" || !principal.Role.Valid() {
		return models.Principal{}, false
	}

	return principal, true
}

func (h *APIHandlers) requirePrincipal(c fiber.Ctx) (models.Principal, error) {
	principal, ok := h.principal(c)
	if !ok {
		return models.Principal{}, badRequest(c, "missing or invalid identity headers")
	}

	return principal, nil
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// Workflow templates

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		CompanyID:   principal.CompanyID,
	}

	for _, step := range req.Steps {
		workflow.Steps = append(workflow.Steps, models.WorkflowStep{
			StepNumber:   step.StepNumber,
			Action:       step.Action,
			RoleRequired: models.Role(step.RoleRequired),
			TimeoutHours: step.TimeoutHours,
			IsParallel:   step.IsParallel,
		})
	}

	if err := workflow.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.WorkflowRepository().Save(c.Context(), workflow); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	workflows, err := h.persistence.WorkflowRepository().List(c.Context(), persistence.WorkflowFilter{
		CompanyID: principal.CompanyID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	workflow, err := h.persistence.WorkflowRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if workflow.CompanyID != principal.CompanyID {
		return notFound(c, "workflow not found")
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	workflow, err := h.persistence.WorkflowRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if workflow.CompanyID != principal.CompanyID {
		return notFound(c, "workflow not found")
	}

	if err := h.persistence.WorkflowRepository().Delete(c.Context(), workflow.ID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Document workflows

func (h *APIHandlers) StartDocumentWorkflow(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req StartWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.Start(c.Context(), principal, req.WorkflowID, req.DocumentID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetDocumentWorkflows(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	filter := persistence.InstanceFilter{
		CompanyID:  principal.CompanyID,
		DocumentID: c.Query("document_id"),
		Status:     models.InstanceStatus(c.Query("status")),
	}

	instances, err := h.persistence.DocumentWorkflowRepository().List(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"document_workflows": instances})
}

func (h *APIHandlers) GetDocumentWorkflow(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	instance, err := h.engine.Get(c.Context(), principal, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetDocumentWorkflowHistory(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	history, err := h.engine.History(c.Context(), principal, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"history": history})
}

func (h *APIHandlers) AdvanceDocumentWorkflow(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req StepActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	instance, err := h.engine.Advance(c.Context(), principal, c.Params("id"), req.Notes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) RejectDocumentWorkflow(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req StepActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	instance, err := h.engine.Reject(c.Context(), principal, c.Params("id"), req.Notes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

// Requirements

func (h *APIHandlers) CreateRequirement(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req CreateRequirementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	requirement := &models.DocumentRequirement{
		AuditID:             req.AuditID,
		DocumentType:        req.DocumentType,
		Description:         req.Description,
		IsMandatory:         req.IsMandatory,
		Deadline:            req.Deadline,
		AutoEscalate:        req.AutoEscalate,
		ValidationRules:     req.ValidationRules,
		PriorityScore:       req.PriorityScore,
		RiskLevel:           models.RiskLevel(req.RiskLevel),
		ComplianceFramework: req.ComplianceFramework,
	}

	created, err := h.requirements.Create(c.Context(), principal, requirement)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetRequirements(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	onlyOpen := false

	if openStr := c.Query("open"); openStr != "" {
		onlyOpen, err = strconv.ParseBool(openStr)
		if err != nil {
			return badRequest(c, "Invalid open parameter")
		}
	}

	requirements, err := h.persistence.RequirementRepository().List(c.Context(), persistence.RequirementFilter{
		CompanyID: principal.CompanyID,
		AuditID:   c.Query("audit_id"),
		OnlyOpen:  onlyOpen,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"requirements": requirements})
}

func (h *APIHandlers) GetRequirement(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	requirement, err := h.requirements.Get(c.Context(), principal, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(requirement)
}

func (h *APIHandlers) CloseRequirement(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	requirement, err := h.requirements.Close(c.Context(), principal, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(requirement)
}

func (h *APIHandlers) GetRequirementEscalations(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	requirement, err := h.requirements.Get(c.Context(), principal, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	escalations, err := h.persistence.RequirementRepository().Escalations(c.Context(), requirement.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"escalations": escalations})
}

// Submissions

func (h *APIHandlers) CreateSubmission(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req CreateSubmissionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	submission, err := h.pipeline.Submit(c.Context(), principal, req.RequirementID, req.DocumentID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(submission)
}

func (h *APIHandlers) GetSubmissions(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	filter := persistence.SubmissionFilter{
		CompanyID:     principal.CompanyID,
		RequirementID: c.Query("requirement_id"),
		Status:        models.VerificationStatus(c.Query("status")),
	}

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return badRequest(c, "Invalid from timestamp")
		}

		filter.SubmittedFrom = &from
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return badRequest(c, "Invalid to timestamp")
		}

		filter.SubmittedTo = &to
	}

	submissions, err := h.persistence.SubmissionRepository().List(c.Context(), filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"submissions": submissions})
}

func (h *APIHandlers) GetSubmission(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	submission, err := h.pipeline.Get(c.Context(), principal, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(submission)
}

func (h *APIHandlers) ValidateSubmission(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	// Scope check before running validation.
	if _, err := h.pipeline.Get(c.Context(), principal, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	submission, err := h.pipeline.RunValidation(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(submission)
}

func (h *APIHandlers) DecideSubmission(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req DecideSubmissionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	submission, err := h.pipeline.Decide(c.Context(), principal, c.Params("id"), models.ReviewDecision(req.Decision), req.Notes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(submission)
}

// Findings and action items

func (h *APIHandlers) CreateFinding(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req CreateFindingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	finding := &models.AuditFinding{
		AuditID:     req.AuditID,
		Title:       req.Title,
		Description: req.Description,
		Severity:    models.Severity(req.Severity),
		FindingType: req.FindingType,
		DueDate:     req.DueDate,
	}

	created, err := h.findings.CreateFinding(c.Context(), principal, finding)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetFindings(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	findings, err := h.persistence.FindingRepository().ListFindings(c.Context(), persistence.FindingFilter{
		CompanyID: principal.CompanyID,
		AuditID:   c.Query("audit_id"),
		Status:    models.FindingStatus(c.Query("status")),
		Severity:  models.Severity(c.Query("severity")),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"findings": findings})
}

func (h *APIHandlers) GetFinding(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	finding, err := h.findings.GetFinding(c.Context(), principal, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(finding)
}

func (h *APIHandlers) ResolveFinding(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req ResolveFindingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	finding, err := h.findings.ResolveFinding(c.Context(), principal, c.Params("id"), req.Cascade)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(finding)
}

func (h *APIHandlers) CreateActionItem(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req CreateActionItemRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	item := &models.ActionItem{
		FindingID:   c.Params("id"),
		AssignedTo:  req.AssignedTo,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    models.PriorityLevel(req.Priority),
	}

	created, err := h.findings.CreateActionItem(c.Context(), principal, item)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetActionItems(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	if _, err := h.findings.GetFinding(c.Context(), principal, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	items, err := h.persistence.FindingRepository().ActionItems(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"action_items": items})
}

func (h *APIHandlers) CompleteActionItem(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req CompleteActionItemRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	item, err := h.findings.CompleteActionItem(c.Context(), principal, c.Params("id"), req.ProgressNotes)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(item)
}

// Documents

func (h *APIHandlers) RegisterDocument(c fiber.Ctx) error {
	principal, err := h.requirePrincipal(c)
	if err != nil {
		return err
	}

	var req RegisterDocumentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	doc := &models.DocumentRef{
		ID:        req.ID,
		Title:     req.Title,
		FileType:  req.FileType,
		FileSize:  req.FileSize,
		CompanyID: principal.CompanyID,
		Metadata:  req.Metadata,
	}

	if err := h.persistence.DocumentRepository().SaveDocument(c.Context(), doc); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}
