package services

import (
	"context"
	"log/slog"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/cache"
	"virtualbank-gateway/database"
	"virtualbank-gateway/models"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// StatusReader serves workflow status views cache-aside. Concurrent misses
// for the same workflow share one store read.
type StatusReader struct {
	Store  *database.Store
	Cache  cache.Client
	Logger *slog.Logger

	group singleflight.Group
}

func NewStatusReader(store *database.Store, c cache.Client, logger *slog.Logger) *StatusReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusReader{Store: store, Cache: c, Logger: logger}
}

// Get returns the status view of a workflow, or a not_found error when the
// store has no such workflow.
func (r *StatusReader) Get(ctx context.Context, kind models.WorkflowKind, id string) (models.StatusView, error) {
	key := cache.StatusKey(string(kind), id)

	v, err, _ := r.group.Do(key, func() (any, error) {
		view, found, err := cache.Remember(ctx, r.Cache, key, 0, func(ctx context.Context) (models.StatusView, bool, error) {
			return r.load(ctx, kind, id)
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, apperrors.New(apperrors.KindNotFound, string(kind)+" workflow not found")
		}
		return view, nil
	})
	if err != nil {
		return models.StatusView{}, err
	}
	return v.(models.StatusView), nil
}

func (r *StatusReader) load(ctx context.Context, kind models.WorkflowKind, id string) (models.StatusView, bool, error) {
	var (
		view  models.StatusView
		found bool
	)
	err := r.Store.Read(ctx, func(db *gorm.DB) error {
		status, ok, err := database.FetchWorkflowStatus(db, kind, id)
		if err != nil || !ok {
			return err
		}
		steps, err := database.FetchWorkflowSteps(db, id)
		if err != nil {
			return err
		}
		view = models.NewStatusView(kind, id, status, steps)
		found = true
		return nil
	})
	if err != nil {
		r.Logger.Error("status read failed",
			"event", "workflow_status_read_failed",
			"module", "services",
			"layer", "status",
			"workflow_kind", string(kind),
			"workflow_id", id,
			"error", err.Error(),
		)
	}
	return view, found, err
}
