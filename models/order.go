package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MarketOrder struct {
	OrderID     string           `json:"orderId" gorm:"primaryKey;size:64"`
	AccountID   string           `json:"accountId" gorm:"size:128;not null;index:idx_market_orders_account"`
	Symbol      string           `json:"symbol" gorm:"size:12;not null"`
	Side        string           `json:"side" gorm:"size:4;not null"`
	OrderType   string           `json:"orderType" gorm:"size:8;not null"`
	Quantity    decimal.Decimal  `json:"quantity" gorm:"type:numeric(18,2);not null"`
	LimitPrice  *decimal.Decimal `json:"limitPrice" gorm:"type:numeric(18,2)"`
	TimeInForce *string          `json:"timeInForce" gorm:"size:3"`
	Status      string           `json:"status" gorm:"size:32;not null"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}
