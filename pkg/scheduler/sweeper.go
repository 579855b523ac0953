package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/auditflow/auditflow/pkg/events"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/otelhelper"
	"github.com/auditflow/auditflow/pkg/persistence"
	"github.com/auditflow/auditflow/pkg/services"
)

const (
	defaultBatchSize = 100
	defaultClaimTTL  = 10 * time.Minute
)

// Config configures the deadline sweeper.
type Config struct {
	// CronExpression sets the sweep cadence, standard five-field cron.
	CronExpression string

	// BatchSize bounds how many rows one sweep run processes per category.
	BatchSize int

	// ClaimTTL is how long a sweep claim on an entity lasts.
	ClaimTTL time.Duration
}

// Sweeper periodically detects expired deadlines and applies the escalation
// policy. Workflow timeouts are serialized by the store's status guard;
// requirement and action item escalations take a claim lease first so
// multiple sweeper instances never escalate the same entity twice.
type Sweeper struct {
	engine       *services.Engine
	requirements *services.Requirements
	persistence  persistence.Persistence
	claimer      Claimer
	notifier     notifier.Notifier
	logger       *slog.Logger
	tracer       trace.Tracer
	config       Config
	schedule     cron.Schedule

	mu      sync.Mutex
	done    chan struct{}
	started bool
}

// NewSweeper creates a deadline sweeper.
func NewSweeper(engine *services.Engine, requirements *services.Requirements, p persistence.Persistence, claimer Claimer, n notifier.Notifier, logger *slog.Logger, cfg Config) (*Sweeper, error) {
	if cfg.CronExpression == "" {
		cfg.CronExpression = "* * * * *"
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}

	schedule, err := cron.ParseStandard(cfg.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sweep cron expression: %w", err)
	}

	return &Sweeper{
		engine:       engine,
		requirements: requirements,
		persistence:  p,
		claimer:      claimer,
		notifier:     n,
		logger:       logger.With("module", "sweeper"),
		tracer:       otel.Tracer("auditflow.sweeper"),
		config:       cfg,
		schedule:     schedule,
	}, nil
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.done = make(chan struct{})
	s.started = true

	go s.loop(ctx)

	s.logger.Info("Deadline sweeper started", "cron", s.config.CronExpression, "batch_size", s.config.BatchSize)

	return nil
}

// Stop shuts down the sweep loop.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.done)
	s.started = false

	s.logger.Info("Deadline sweeper stopped")

	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.done:
			timer.Stop()

			return
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
			s.RunOnce(ctx, time.Now().UTC())
		}
	}
}

// RunOnce executes one full sweep at the given time. Re-running with the
// same now is a no-op for already-terminal or already-claimed entities.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "sweeper.run_once",
		attribute.Int("sweep.batch_size", s.config.BatchSize),
		attribute.String("sweep.at", now.Format(time.RFC3339)),
	)
	defer span.End()

	s.sweepWorkflows(ctx, now)
	s.sweepRequirements(ctx, now)
	s.sweepActionItems(ctx, now)
}

func (s *Sweeper) sweepWorkflows(ctx context.Context, now time.Time) {
	results, err := s.engine.SweepTimeouts(ctx, now, s.config.BatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "workflow timeout sweep failed", "error", err)

		return
	}

	if len(results) > 0 {
		s.logger.InfoContext(ctx, "workflow timeout sweep done", "timed_out", len(results))
	}
}

func (s *Sweeper) sweepRequirements(ctx context.Context, now time.Time) {
	overdue, err := s.persistence.RequirementRepository().ListOverdue(ctx, now, s.config.BatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list overdue requirements", "error", err)

		return
	}

	escalated := 0

	for _, requirement := range overdue {
		claimed, err := s.claimer.Claim(ctx, "requirement:"+requirement.ID, s.config.ClaimTTL)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to claim requirement", "requirement_id", requirement.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		_, err = s.requirements.Escalate(ctx, requirement, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to escalate requirement", "requirement_id", requirement.ID, "error", err)

			continue
		}

		escalated++
	}

	if escalated > 0 {
		s.logger.InfoContext(ctx, "requirement escalation sweep done", "escalated", escalated)
	}
}

func (s *Sweeper) sweepActionItems(ctx context.Context, now time.Time) {
	overdue, err := s.persistence.FindingRepository().ListOverdueActionItems(ctx, now, s.config.BatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list overdue action items", "error", err)

		return
	}

	notified := 0

	for _, item := range overdue {
		claimed, err := s.claimer.Claim(ctx, "action_item:"+item.ID, s.config.ClaimTTL)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to claim action item", "action_item_id", item.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		finding, err := s.persistence.FindingRepository().FindingByID(ctx, item.FindingID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to load finding for overdue item", "action_item_id", item.ID, "error", err)

			continue
		}

		s.notifier.Notify(ctx, item.ID, events.ActionItemOverdue{
			BaseEvent: events.BaseEvent{
				ID:        uuid.NewString(),
				Type:      events.ActionItemOverdueEvent,
				Timestamp: now,
				CompanyID: finding.CompanyID,
			},
			ActionItemID: item.ID,
			FindingID:    item.FindingID,
			AssignedTo:   item.AssignedTo,
			DueDate:      *item.DueDate,
		})

		notified++
	}

	if notified > 0 {
		s.logger.InfoContext(ctx, "action item sweep done", "notified", notified)
	}
}
