package services

import (
	"context"
	"time"

	"virtualbank-gateway/database"
	"virtualbank-gateway/events"
	"virtualbank-gateway/models"
	"virtualbank-gateway/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransferInput struct {
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Currency             string
	Note                 *string
}

type TransferService struct {
	Orchestrator *Orchestrator
}

// Initiate records a transfer with reserve_funds done and commit_transfer
// pending. The amount moves from the source account's available balance to
// its held balance when that account is known.
func (s *TransferService) Initiate(ctx context.Context, in TransferInput, meta RequestMeta) (models.StatusView, error) {
	if err := checkMoney("amount", in.Amount); err != nil {
		return models.StatusView{}, err
	}

	transfer := &models.Transfer{
		TransferID:           utils.WorkflowID(in.SourceAccountID, in.DestinationAccountID),
		SourceAccountID:      in.SourceAccountID,
		DestinationAccountID: in.DestinationAccountID,
		Amount:               utils.RoundMoney(in.Amount),
		Currency:             in.Currency,
		Note:                 in.Note,
		Status:               models.StatusPending,
	}

	return s.Orchestrator.Run(ctx, workflowSpec{
		Kind:      models.KindTransfer,
		ID:        transfer.TransferID,
		EventType: events.TypeTransferInitiated,
		Steps: []database.StepSpec{
			{Name: "reserve_funds", Status: models.StatusSucceeded},
			{Name: "commit_transfer", Status: models.StatusPending},
		},
		Record: transfer,
		Persist: func(tx *gorm.DB, now time.Time) error {
			transfer.CreatedAt, transfer.UpdatedAt = now, now
			if err := database.UpsertTransfer(tx, transfer); err != nil {
				return err
			}
			return database.AdjustAccountBalances(tx, []models.BalanceAdjustment{{
				AccountID:      transfer.SourceAccountID,
				AvailableDelta: transfer.Amount.Neg(),
				HeldDelta:      transfer.Amount,
			}})
		},
		Meta: meta,
	})
}
