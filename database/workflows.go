package database

import (
	"errors"
	"fmt"
	"time"

	"virtualbank-gateway/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StepSpec is a step to append to a workflow.
type StepSpec struct {
	Name   string
	Status string
}

func UpsertTransfer(tx *gorm.DB, t *models.Transfer) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transfer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"note", "status", "updated_at"}),
	}).Create(t).Error
}

func UpsertCreditApplication(tx *gorm.DB, a *models.CreditApplication) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "application_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"requested_limit", "currency", "justification", "collateral_type", "attachments", "status", "updated_at",
		}),
	}).Create(a).Error
}

func UpsertMarketOrder(tx *gorm.DB, o *models.MarketOrder) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "limit_price", "time_in_force", "status", "updated_at"}),
	}).Create(o).Error
}

// AppendWorkflowSteps inserts steps after the workflow's current last
// sequence, so sequences stay contiguous from 1 even if a workflow is written
// twice. Callers hold the workflow row (upserted in the same transaction),
// which serializes concurrent appends to one workflow.
func AppendWorkflowSteps(tx *gorm.DB, kind models.WorkflowKind, workflowID string, specs []StepSpec, at time.Time) ([]models.WorkflowStep, error) {
	var last int
	if err := tx.Model(&models.WorkflowStep{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("workflow_id = ?", workflowID).
		Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("read last step sequence: %w", err)
	}

	steps := make([]models.WorkflowStep, 0, len(specs))
	for i, spec := range specs {
		steps = append(steps, models.WorkflowStep{
			StepID:       uuid.NewString(),
			WorkflowID:   workflowID,
			WorkflowKind: kind,
			Sequence:     last + i + 1,
			Name:         spec.Name,
			Status:       spec.Status,
			OccurredAt:   at,
		})
	}
	if len(steps) == 0 {
		return steps, nil
	}
	if err := tx.Create(&steps).Error; err != nil {
		return nil, fmt.Errorf("insert workflow steps: %w", err)
	}
	return steps, nil
}

// FetchWorkflowSteps returns a workflow's steps ordered by sequence.
func FetchWorkflowSteps(db *gorm.DB, workflowID string) ([]models.WorkflowStep, error) {
	var steps []models.WorkflowStep
	err := db.Where("workflow_id = ?", workflowID).Order("sequence ASC").Find(&steps).Error
	return steps, err
}

// FetchWorkflowStatus reads the status column of a workflow record.
func FetchWorkflowStatus(db *gorm.DB, kind models.WorkflowKind, workflowID string) (string, bool, error) {
	model, pk, err := workflowTable(kind)
	if err != nil {
		return "", false, err
	}
	var row struct{ Status string }
	err = db.Model(model).Select("status").Where(pk+" = ?", workflowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Status, true, nil
}

// CountWorkflows counts workflow rows of a kind with the given id.
func CountWorkflows(db *gorm.DB, kind models.WorkflowKind, workflowID string) (int64, error) {
	model, pk, err := workflowTable(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.Model(model).Where(pk+" = ?", workflowID).Count(&n).Error
	return n, err
}

func workflowTable(kind models.WorkflowKind) (any, string, error) {
	switch kind {
	case models.KindTransfer:
		return &models.Transfer{}, "transfer_id", nil
	case models.KindCreditApplication:
		return &models.CreditApplication{}, "application_id", nil
	case models.KindMarketOrder:
		return &models.MarketOrder{}, "order_id", nil
	default:
		return nil, "", fmt.Errorf("unknown workflow kind %q", kind)
	}
}
