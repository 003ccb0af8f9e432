package services

import (
	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/utils"

	"github.com/shopspring/decimal"
)

// checkMoney rejects amounts the store cannot hold before any transaction
// opens.
func checkMoney(field string, d decimal.Decimal) error {
	if utils.MoneyInRange(d) {
		return nil
	}
	rule := "lte=" + utils.MaxMoney.String()
	msg := field + " must be greater than zero and at most " + utils.MaxMoney.String()
	if !utils.RoundMoney(d).IsPositive() {
		rule = "gt=0"
		msg = field + " must be greater than zero"
	}
	return &apperrors.Error{
		Kind:    apperrors.KindValidation,
		Message: msg,
		Fields:  map[string]string{field: rule},
	}
}
