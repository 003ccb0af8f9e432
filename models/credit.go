package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type CreditApplication struct {
	ApplicationID  string          `json:"applicationId" gorm:"primaryKey;size:64"`
	PlayerID       string          `json:"playerId" gorm:"size:128;not null;index"`
	AccountID      string          `json:"accountId" gorm:"size:128;not null"`
	RequestedLimit decimal.Decimal `json:"requestedLimit" gorm:"type:numeric(18,2);not null"`
	Currency       string          `json:"currency" gorm:"size:3;not null"`
	Justification  string          `json:"justification" gorm:"not null"`
	CollateralType *string         `json:"collateralType" gorm:"size:120"`
	Attachments    datatypes.JSON  `json:"attachments"`
	Status         string          `json:"status" gorm:"size:32;not null"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
