// Package services runs the mutating workflows (transfers, credit
// applications, market orders) and serves their status views.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/cache"
	"virtualbank-gateway/database"
	"virtualbank-gateway/events"
	"virtualbank-gateway/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequestMeta carries request scoped identifiers into logs and event payloads.
type RequestMeta struct {
	CorrelationID string
	SessionID     string
}

// Orchestrator persists a workflow, its steps and its outbox row in one
// transaction and only then touches the cache and the broker.
type Orchestrator struct {
	Store     *database.Store
	Cache     cache.Client
	Publisher events.Publisher
	Now       func() time.Time
	Logger    *slog.Logger
}

func NewOrchestrator(store *database.Store, c cache.Client, pub events.Publisher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Store:     store,
		Cache:     c,
		Publisher: pub,
		Now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		Logger:    logger,
	}
}

// workflowSpec describes one workflow instance.
type workflowSpec struct {
	Kind      models.WorkflowKind
	ID        string
	EventType string
	Steps     []database.StepSpec
	// Record is the workflow row; it is embedded in the outbox snapshot.
	Record any
	// Persist upserts Record and applies any side effects, inside the
	// workflow transaction.
	Persist func(tx *gorm.DB, now time.Time) error
	Meta    RequestMeta
}

type snapshot struct {
	Kind          models.WorkflowKind `json:"kind"`
	WorkflowID    string              `json:"workflowId"`
	Status        string              `json:"status"`
	Record        any                 `json:"record"`
	Steps         []models.StepView   `json:"steps"`
	CorrelationID string              `json:"correlationId,omitempty"`
	SessionID     string              `json:"sessionId,omitempty"`
}

// Run executes spec. When the transaction commits but the event cannot be
// published, Run returns the status view together with a publish_failure
// error; the workflow stays committed and the outbox row is left for the
// relay.
func (o *Orchestrator) Run(ctx context.Context, spec workflowSpec) (models.StatusView, error) {
	now := o.Now()
	var (
		view    models.StatusView
		eventID = uuid.NewString()
		payload []byte
	)

	err := o.Store.WithTx(ctx, func(tx *gorm.DB) error {
		if err := spec.Persist(tx, now); err != nil {
			return fmt.Errorf("persist %s workflow: %w", spec.Kind, err)
		}
		steps, err := database.AppendWorkflowSteps(tx, spec.Kind, spec.ID, spec.Steps, now)
		if err != nil {
			return err
		}
		view = models.NewStatusView(spec.Kind, spec.ID, models.StatusPending, steps)

		payload, err = json.Marshal(snapshot{
			Kind:          spec.Kind,
			WorkflowID:    spec.ID,
			Status:        view.Status,
			Record:        spec.Record,
			Steps:         view.Steps,
			CorrelationID: spec.Meta.CorrelationID,
			SessionID:     spec.Meta.SessionID,
		})
		if err != nil {
			return fmt.Errorf("encode %s snapshot: %w", spec.Kind, err)
		}
		return database.InsertTransactionEvent(tx, &models.TransactionEvent{
			EventID:      eventID,
			EventType:    spec.EventType,
			ResourceType: string(spec.Kind),
			ResourceID:   spec.ID,
			Version:      events.DefaultVersion,
			Payload:      datatypes.JSON(payload),
			Status:       models.EventStatusPending,
			OccurredAt:   now,
		})
	})
	if err != nil {
		o.Logger.Error("workflow transaction failed",
			"event", "workflow_tx_failed",
			"module", "services",
			"layer", "orchestrator",
			"workflow_kind", string(spec.Kind),
			"workflow_id", spec.ID,
			"correlation_id", spec.Meta.CorrelationID,
			"error", err.Error(),
		)
		return models.StatusView{}, err
	}

	o.cacheView(ctx, view, spec.Meta)

	pubErr := o.Publisher.Publish(ctx, events.DomainEvent{
		Type:       spec.EventType,
		Key:        spec.ID,
		Version:    events.DefaultVersion,
		Payload:    json.RawMessage(payload),
		OccurredAt: now,
	})
	if pubErr != nil {
		o.markEvent(ctx, eventID, pubErr, spec.Meta)
		o.Logger.Error("workflow committed but event publish failed",
			"event", "workflow_publish_failed",
			"module", "services",
			"layer", "orchestrator",
			"workflow_kind", string(spec.Kind),
			"workflow_id", spec.ID,
			"event_id", eventID,
			"correlation_id", spec.Meta.CorrelationID,
			"error", pubErr.Error(),
		)
		return view, apperrors.Wrap(apperrors.KindPublishFailure, "domain event publish failed", pubErr)
	}
	o.markEvent(ctx, eventID, nil, spec.Meta)

	o.Logger.Info("workflow accepted",
		"event", "workflow_accepted",
		"module", "services",
		"layer", "orchestrator",
		"workflow_kind", string(spec.Kind),
		"workflow_id", spec.ID,
		"correlation_id", spec.Meta.CorrelationID,
	)
	return view, nil
}

func (o *Orchestrator) cacheView(ctx context.Context, view models.StatusView, meta RequestMeta) {
	if o.Cache == nil || !o.Cache.Enabled() {
		return
	}
	key := cache.StatusKey(string(view.Kind), view.WorkflowID)
	if err := o.Cache.Set(ctx, key, view, o.Cache.DefaultTTL()); err != nil {
		o.Logger.Warn("status cache write failed",
			"event", "workflow_cache_write_failed",
			"module", "services",
			"layer", "orchestrator",
			"cache_key", key,
			"correlation_id", meta.CorrelationID,
			"error", err.Error(),
		)
	}
}

// markEvent records the publish outcome on the outbox row. Failing to do so
// only means the relay may publish the event again.
func (o *Orchestrator) markEvent(ctx context.Context, eventID string, pubErr error, meta RequestMeta) {
	err := o.Store.WithTx(ctx, func(tx *gorm.DB) error {
		if pubErr != nil {
			return database.MarkEventFailed(tx, eventID, pubErr.Error())
		}
		return database.MarkEventPublished(tx, eventID, o.Now())
	})
	if err != nil {
		o.Logger.Warn("outbox status update failed",
			"event", "outbox_mark_failed",
			"module", "services",
			"layer", "orchestrator",
			"event_id", eventID,
			"correlation_id", meta.CorrelationID,
			"error", err.Error(),
		)
	}
}
