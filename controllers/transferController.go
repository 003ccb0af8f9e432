package controllers

import (
	"virtualbank-gateway/middlewares"
	"virtualbank-gateway/models"
	"virtualbank-gateway/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type TransferCreateDTO struct {
	SourceAccountID      string          `json:"sourceAccountId" validate:"required,max=128"`
	DestinationAccountID string          `json:"destinationAccountId" validate:"required,max=128"`
	Amount               decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Currency             string          `json:"currency" validate:"required,len=3"`
	Note                 *string         `json:"note" validate:"omitempty,max=256"`
}

type TransferController struct {
	Transfers     *services.TransferService
	Status        *services.StatusReader
	PublicBaseURL string
}

func (ctl *TransferController) CreateTransfer(c *fiber.Ctx) error {
	var in TransferCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	view, err := ctl.Transfers.Initiate(c.UserContext(), services.TransferInput{
		SourceAccountID:      in.SourceAccountID,
		DestinationAccountID: in.DestinationAccountID,
		Amount:               in.Amount,
		Currency:             in.Currency,
		Note:                 in.Note,
	}, requestMeta(c))
	if view.WorkflowID == "" {
		return err
	}
	return accepted(c, err, fiber.Map{
		"workflowId": view.WorkflowID,
		"transferId": view.WorkflowID,
		"status":     "accepted",
		"statusUrl":  ctl.PublicBaseURL + "/api/v1/transfers/" + view.WorkflowID,
	})
}

func (ctl *TransferController) GetTransfer(c *fiber.Ctx) error {
	view, err := ctl.Status.Get(c.UserContext(), models.KindTransfer, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}
