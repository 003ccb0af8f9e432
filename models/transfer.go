package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is the workflow record of a fund transfer.
type Transfer struct {
	TransferID           string          `json:"transferId" gorm:"primaryKey;size:64"`
	SourceAccountID      string          `json:"sourceAccountId" gorm:"size:128;not null;index:idx_transfers_source_account"`
	DestinationAccountID string          `json:"destinationAccountId" gorm:"size:128;not null;index:idx_transfers_destination_account"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:numeric(18,2);not null"`
	Currency             string          `json:"currency" gorm:"size:3;not null"`
	Note                 *string         `json:"note"`
	Status               string          `json:"status" gorm:"size:32;not null"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
