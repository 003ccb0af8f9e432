package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account balances are adjusted by plain deltas; no ledger invariants are enforced.
type Account struct {
	AccountID        string          `json:"account_id" gorm:"primaryKey;size:128"`
	PlayerID         string          `json:"player_id" gorm:"size:128;not null;index:idx_accounts_player_currency,priority:1"`
	Currency         string          `json:"currency" gorm:"size:3;not null;index:idx_accounts_player_currency,priority:2"`
	Status           string          `json:"status" gorm:"size:32;not null;default:'active'"`
	AvailableBalance decimal.Decimal `json:"available_balance" gorm:"type:numeric(18,2);not null;default:0"`
	HeldBalance      decimal.Decimal `json:"held_balance" gorm:"type:numeric(18,2);not null;default:0"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BalanceAdjustment is a delta applied to one account.
type BalanceAdjustment struct {
	AccountID      string
	AvailableDelta decimal.Decimal
	HeldDelta      decimal.Decimal
}
