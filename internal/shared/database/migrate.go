package database

import (
	"ticketing/internal/events"
	"ticketing/internal/reservations"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}
	return db.AutoMigrate(
		&events.Event{},
		&events.Tier{},
		&events.Session{},
		&reservations.Reservation{},
		&reservations.Ticket{},
		&reservations.ProcessedNotification{},
		&reservations.ReconciliationIssue{},
	)
}
