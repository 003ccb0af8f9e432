package controllers

import (
	"virtualbank-gateway/middlewares"
	"virtualbank-gateway/models"
	"virtualbank-gateway/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type MarketOrderDTO struct {
	AccountID   string           `json:"accountId" validate:"required,max=128"`
	Symbol      string           `json:"symbol" validate:"required,max=12"`
	Side        string           `json:"side" validate:"required,oneof=buy sell"`
	OrderType   string           `json:"orderType" validate:"required,oneof=market limit"`
	Quantity    decimal.Decimal  `json:"quantity" validate:"required,gt=0"`
	LimitPrice  *decimal.Decimal `json:"limitPrice" validate:"omitempty,gt=0"`
	TimeInForce *string          `json:"timeInForce" validate:"omitempty,min=2,max=3"`
}

type OrderController struct {
	Orders        *services.OrderService
	Status        *services.StatusReader
	PublicBaseURL string
}

func (ctl *OrderController) CreateOrder(c *fiber.Ctx) error {
	var in MarketOrderDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	view, err := ctl.Orders.Place(c.UserContext(), services.MarketOrderInput{
		AccountID:   in.AccountID,
		Symbol:      in.Symbol,
		Side:        in.Side,
		OrderType:   in.OrderType,
		Quantity:    in.Quantity,
		LimitPrice:  in.LimitPrice,
		TimeInForce: in.TimeInForce,
	}, requestMeta(c))
	if view.WorkflowID == "" {
		return err
	}
	return accepted(c, err, fiber.Map{
		"workflowId": view.WorkflowID,
		"orderId":    view.WorkflowID,
		"status":     "accepted",
		"statusUrl":  ctl.PublicBaseURL + "/api/v1/market/orders/" + view.WorkflowID,
	})
}

func (ctl *OrderController) GetOrder(c *fiber.Ctx) error {
	view, err := ctl.Status.Get(c.UserContext(), models.KindMarketOrder, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}
