package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the constraints and indexes the inventory queries rely on
func MigrateConstraints(db *gorm.DB) error {
	statements := []string{
		// Quantity bounds are enforced again at the storage layer
		`DO $$ BEGIN
			ALTER TABLE reservations ADD CONSTRAINT chk_reservations_quantity CHECK (quantity BETWEEN 1 AND 10);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,

		`DO $$ BEGIN
			ALTER TABLE events ADD CONSTRAINT chk_events_capacity CHECK (capacity >= 0);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,

		// Ledger sum: live holds and confirmed rows per event
		`CREATE INDEX IF NOT EXISTS idx_reservations_event_status_expiry
			ON reservations (event_id, status, expires_at);`,

		// Sweeper scan
		`CREATE INDEX IF NOT EXISTS idx_reservations_pending_expiry
			ON reservations (expires_at) WHERE status = 'PENDING';`,

		`CREATE INDEX IF NOT EXISTS idx_reconciliation_issues_open
			ON reconciliation_issues (created_at) WHERE resolved_at IS NULL;`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
