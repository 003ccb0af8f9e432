package database

import (
	"fmt"

	"virtualbank-gateway/models"

	"gorm.io/gorm"
)

// Migrate applies the (idempotent, additive) schema:
// - AutoMigrate tables/columns/index tags
// - PostgreSQL only: partial index for the outbox relay and CHECK constraints
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.Account{},
			&models.IdempotencyKey{},
			&models.Transfer{},
			&models.CreditApplication{},
			&models.MarketOrder{},
			&models.WorkflowStep{},
			&models.TransactionEvent{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		indexes := []string{
			`CREATE INDEX IF NOT EXISTS idx_transaction_events_relay ON transaction_events (occurred_at) WHERE status <> 'published'`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []struct{ table, name, expr string }{
			{"transfers", "chk_transfers_amount_pos", "amount > 0"},
			{"credit_applications", "chk_credit_applications_limit_pos", "requested_limit > 0"},
			{"market_orders", "chk_market_orders_quantity_pos", "quantity > 0"},
			{"workflow_steps", "chk_workflow_steps_sequence_pos", "sequence > 0"},
		}
		for _, c := range checks {
			if err := tx.Exec(checkConstraint(c.table, c.name, c.expr)).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", c.name, err)
			}
		}
		return nil
	})
}

func checkConstraint(table, name, expr string) string {
	return fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%[1]s'::regclass
		  AND conname  = '%[2]s'
	) THEN
		ALTER TABLE %[1]s ADD CONSTRAINT %[2]s CHECK (%[3]s);
	END IF;
END $$;`, table, name, expr)
}
