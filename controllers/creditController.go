package controllers

import (
	"virtualbank-gateway/middlewares"
	"virtualbank-gateway/models"
	"virtualbank-gateway/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CreditApplicationDTO struct {
	PlayerID       string          `json:"playerId" validate:"required,max=128"`
	AccountID      string          `json:"accountId" validate:"required,max=128"`
	RequestedLimit decimal.Decimal `json:"requestedLimit" validate:"required,gt=0"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	Justification  string          `json:"justification" validate:"required,max=1024"`
	CollateralType *string         `json:"collateralType" validate:"omitempty,min=1,max=120"`
	Attachments    []string        `json:"attachments" validate:"omitempty,max=5,dive,url"`
}

type CreditController struct {
	Credits       *services.CreditService
	Status        *services.StatusReader
	PublicBaseURL string
}

func (ctl *CreditController) CreateApplication(c *fiber.Ctx) error {
	var in CreditApplicationDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	view, err := ctl.Credits.Submit(c.UserContext(), services.CreditApplicationInput{
		PlayerID:       in.PlayerID,
		AccountID:      in.AccountID,
		RequestedLimit: in.RequestedLimit,
		Currency:       in.Currency,
		Justification:  in.Justification,
		CollateralType: in.CollateralType,
		Attachments:    in.Attachments,
	}, requestMeta(c))
	if view.WorkflowID == "" {
		return err
	}
	return accepted(c, err, fiber.Map{
		"workflowId":               view.WorkflowID,
		"applicationId":            view.WorkflowID,
		"status":                   "received",
		"reviewUrl":                ctl.PublicBaseURL + "/api/v1/credits/applications/" + view.WorkflowID,
		"estimatedDecisionSeconds": int(services.EstimatedCreditDecision.Seconds()),
	})
}

func (ctl *CreditController) GetApplication(c *fiber.Ctx) error {
	view, err := ctl.Status.Get(c.UserContext(), models.KindCreditApplication, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}
