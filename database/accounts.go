package database

import (
	"time"

	"virtualbank-gateway/models"

	"gorm.io/gorm"
)

// AdjustAccountBalances applies each delta with a single UPDATE. Accounts that
// do not exist are skipped silently; balances are not checked.
func AdjustAccountBalances(tx *gorm.DB, adjustments []models.BalanceAdjustment) error {
	now := time.Now().UTC()
	for _, adj := range adjustments {
		err := tx.Model(&models.Account{}).
			Where("account_id = ?", adj.AccountID).
			Updates(map[string]any{
				"available_balance": gorm.Expr("available_balance + ?", adj.AvailableDelta),
				"held_balance":      gorm.Expr("held_balance + ?", adj.HeldDelta),
				"updated_at":        now,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
