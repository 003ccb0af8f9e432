package services

import (
	"context"
	"encoding/json"
	"time"

	"virtualbank-gateway/database"
	"virtualbank-gateway/events"
	"virtualbank-gateway/models"
	"virtualbank-gateway/utils"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EstimatedCreditDecision is how long underwriting is expected to take.
const EstimatedCreditDecision = time.Hour

type CreditApplicationInput struct {
	PlayerID       string
	AccountID      string
	RequestedLimit decimal.Decimal
	Currency       string
	Justification  string
	CollateralType *string
	Attachments    []string
}

type CreditService struct {
	Orchestrator *Orchestrator
}

func (s *CreditService) Submit(ctx context.Context, in CreditApplicationInput, meta RequestMeta) (models.StatusView, error) {
	if err := checkMoney("requestedLimit", in.RequestedLimit); err != nil {
		return models.StatusView{}, err
	}
	attachments := in.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return models.StatusView{}, err
	}

	app := &models.CreditApplication{
		ApplicationID:  utils.WorkflowID(in.PlayerID, in.AccountID),
		PlayerID:       in.PlayerID,
		AccountID:      in.AccountID,
		RequestedLimit: utils.RoundMoney(in.RequestedLimit),
		Currency:       in.Currency,
		Justification:  in.Justification,
		CollateralType: in.CollateralType,
		Attachments:    datatypes.JSON(raw),
		Status:         models.StatusPending,
	}

	return s.Orchestrator.Run(ctx, workflowSpec{
		Kind:      models.KindCreditApplication,
		ID:        app.ApplicationID,
		EventType: events.TypeCreditReceived,
		Steps: []database.StepSpec{
			{Name: "receive_application", Status: models.StatusSucceeded},
			{Name: "underwrite", Status: models.StatusPending},
		},
		Record: app,
		Persist: func(tx *gorm.DB, now time.Time) error {
			app.CreatedAt, app.UpdatedAt = now, now
			return database.UpsertCreditApplication(tx, app)
		},
		Meta: meta,
	})
}
