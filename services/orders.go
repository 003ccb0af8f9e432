package services

import (
	"context"
	"time"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/database"
	"virtualbank-gateway/events"
	"virtualbank-gateway/models"
	"virtualbank-gateway/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

type MarketOrderInput struct {
	AccountID   string
	Symbol      string
	Side        string
	OrderType   string
	Quantity    decimal.Decimal
	LimitPrice  *decimal.Decimal
	TimeInForce *string
}

type OrderService struct {
	Orchestrator *Orchestrator
}

// Place records an order as validated and waiting to be routed to the
// exchange. Limit orders must carry a positive limit price.
func (s *OrderService) Place(ctx context.Context, in MarketOrderInput, meta RequestMeta) (models.StatusView, error) {
	if err := checkMoney("quantity", in.Quantity); err != nil {
		return models.StatusView{}, err
	}
	if in.OrderType == OrderTypeLimit && in.LimitPrice == nil {
		return models.StatusView{}, apperrors.New(apperrors.KindValidation, "limitPrice is required for limit orders")
	}
	if in.LimitPrice != nil {
		if err := checkMoney("limitPrice", *in.LimitPrice); err != nil {
			return models.StatusView{}, err
		}
	}

	order := &models.MarketOrder{
		OrderID:     utils.WorkflowID(in.AccountID, in.Symbol),
		AccountID:   in.AccountID,
		Symbol:      in.Symbol,
		Side:        in.Side,
		OrderType:   in.OrderType,
		Quantity:    utils.RoundMoney(in.Quantity),
		LimitPrice:  roundedPrice(in.LimitPrice),
		TimeInForce: in.TimeInForce,
		Status:      models.StatusPending,
	}

	return s.Orchestrator.Run(ctx, workflowSpec{
		Kind:      models.KindMarketOrder,
		ID:        order.OrderID,
		EventType: events.TypeMarketOrderAccepted,
		Steps: []database.StepSpec{
			{Name: "validate_order", Status: models.StatusSucceeded},
			{Name: "route_to_exchange", Status: models.StatusPending},
		},
		Record: order,
		Persist: func(tx *gorm.DB, now time.Time) error {
			order.CreatedAt, order.UpdatedAt = now, now
			return database.UpsertMarketOrder(tx, order)
		},
		Meta: meta,
	})
}

func roundedPrice(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	r := utils.RoundMoney(*p)
	return &r
}
