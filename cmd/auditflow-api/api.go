// Package main provides the AuditFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/auditflow/auditflow/pkg/eventbus"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/oracle"
	"github.com/auditflow/auditflow/pkg/persistence"
	"github.com/auditflow/auditflow/pkg/services"
	"github.com/auditflow/auditflow/pkg/web"
)

type API struct {
	logger         *slog.Logger
	persistence    persistence.Persistence
	eventBus       eventbus.EventBus
	oracle         oracle.ValidationOracle
	pipelineConfig services.PipelineConfig
	validate       *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	o oracle.ValidationOracle,
	pipelineConfig services.PipelineConfig,
) *API {
	return &API{
		logger:         logger,
		persistence:    p,
		eventBus:       eventBus,
		oracle:         o,
		pipelineConfig: pipelineConfig,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	n := notifier.NewEventBusNotifier(a.eventBus, a.logger)
	escalation := services.NewEscalationPolicy()

	engine := services.NewEngine(a.persistence, escalation, n, a.logger)
	pipeline := services.NewPipeline(a.persistence, a.oracle, n, a.pipelineConfig, a.logger)
	requirements := services.NewRequirements(a.persistence, escalation, n, a.logger)
	findings := services.NewFindings(a.persistence, n, a.logger)

	handlers := web.NewAPIHandlers(engine, pipeline, requirements, findings, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("AuditFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	dw := app.Group("/document-workflows")
	dw.Get("/", handlers.GetDocumentWorkflows)
	dw.Post("/", handlers.StartDocumentWorkflow)
	dw.Get("/:id", handlers.GetDocumentWorkflow)
	dw.Get("/:id/history", handlers.GetDocumentWorkflowHistory)
	dw.Post("/:id/advance", handlers.AdvanceDocumentWorkflow)
	dw.Post("/:id/reject", handlers.RejectDocumentWorkflow)

	r := app.Group("/requirements")
	r.Get("/", handlers.GetRequirements)
	r.Post("/", handlers.CreateRequirement)
	r.Get("/:id", handlers.GetRequirement)
	r.Post("/:id/close", handlers.CloseRequirement)
	r.Get("/:id/escalations", handlers.GetRequirementEscalations)

	s := app.Group("/submissions")
	s.Get("/", handlers.GetSubmissions)
	s.Post("/", handlers.CreateSubmission)
	s.Get("/:id", handlers.GetSubmission)
	s.Post("/:id/validate", handlers.ValidateSubmission)
	s.Post("/:id/decision", handlers.DecideSubmission)

	f := app.Group("/findings")
	f.Get("/", handlers.GetFindings)
	f.Post("/", handlers.CreateFinding)
	f.Get("/:id", handlers.GetFinding)
	f.Post("/:id/resolve", handlers.ResolveFinding)
	f.Post("/:id/action-items", handlers.CreateActionItem)
	f.Get("/:id/action-items", handlers.GetActionItems)

	app.Post("/action-items/:id/complete", handlers.CompleteActionItem)

	app.Post("/documents", handlers.RegisterDocument)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
