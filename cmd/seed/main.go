package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"ticketing/internal/events"
	"ticketing/internal/shared/config"
	"ticketing/internal/shared/database"
	"ticketing/internal/shared/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Seeder struct {
	db  *database.DB
	cfg *config.Config
}

func main() {
	fmt.Println("Starting ticketing database seeder...")

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, cfg: cfg}

	fmt.Println("\nCleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("\nSeeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Println("\nDemo tokens (24h):")
	if err := seeder.PrintTokens(); err != nil {
		log.Fatalf("Failed to sign demo tokens: %v", err)
	}

	fmt.Println("\nSeeding completed.")
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"reconciliation_issues",
		"processed_notifications",
		"tickets",
		"reservations",
		"event_sessions",
		"event_tiers",
		"events",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll creates the demo events and clears cached read models
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	if err := s.SeedEvents(); err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}

	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}

	return nil
}

func int64Ptr(v int64) *int64 { return &v }

// SeedEvents creates one single-date event, one multi-date event with a free
// preview night, a tiny event for sell-out demos and a draft
func (s *Seeder) SeedEvents() error {
	now := time.Now().UTC()

	seed := []events.Event{
		{
			Name:     "Harbour Lights Festival",
			Venue:    "Pier 4 Arena",
			StartsAt: now.AddDate(0, 1, 0),
			Capacity: 500,
			Status:   events.EventStatusPublished,
			Tiers: []events.Tier{
				{Code: "STANDARD", Name: "Standard", PriceCents: 3000, SortOrder: 1},
				{Code: "VIP", Name: "VIP", PriceCents: 9000, SortOrder: 2},
				{Code: "STUDENT", Name: "Student", PriceCents: 1800, SortOrder: 3, Status: events.TierStatusPaused},
			},
		},
		{
			Name:     "Chamber Strings Residency",
			Venue:    "Old Exchange Hall",
			StartsAt: now.AddDate(0, 0, 14),
			Capacity: 120,
			Status:   events.EventStatusPublished,
			Tiers: []events.Tier{
				{Code: "STANDARD", Name: "Standard", PriceCents: 2500, SortOrder: 1},
			},
			Sessions: []events.Session{
				{Label: "Preview", StartsAt: now.AddDate(0, 0, 13), PriceOverrideCents: int64Ptr(0)},
				{Label: "Opening Night", StartsAt: now.AddDate(0, 0, 14), PriceOverrideCents: int64Ptr(4500)},
				{Label: "Matinee", StartsAt: now.AddDate(0, 0, 15)},
			},
		},
		{
			Name:     "Back Room Acoustic",
			Venue:    "The Lantern",
			StartsAt: now.AddDate(0, 0, 7),
			Capacity: 5,
			Status:   events.EventStatusPublished,
			Tiers: []events.Tier{
				{Code: "STANDARD", Name: "Standard", PriceCents: 1500, SortOrder: 1},
			},
		},
		{
			Name:     "Winter Gala (unannounced)",
			Venue:    "Civic Ballroom",
			StartsAt: now.AddDate(0, 3, 0),
			Capacity: 300,
			Status:   events.EventStatusDraft,
			Tiers: []events.Tier{
				{Code: "STANDARD", Name: "Standard", PriceCents: 6000, SortOrder: 1},
			},
		},
	}

	for i := range seed {
		event := &seed[i]
		event.ID = uuid.New()
		for j := range event.Tiers {
			if event.Tiers[j].Status == "" {
				event.Tiers[j].Status = events.TierStatusActive
			}
		}

		if err := s.db.PostgreSQL.Create(event).Error; err != nil {
			return fmt.Errorf("failed to create event %s: %w", event.Name, err)
		}
		fmt.Printf("  Created event: %s (%s, capacity %d, %d tiers, %d sessions)\n",
			event.Name, event.ID, event.Capacity, len(event.Tiers), len(event.Sessions))
	}

	return nil
}

// PrintTokens signs a buyer and an admin token with the configured secret
func (s *Seeder) PrintTokens() error {
	subjects := []struct {
		label string
		id    string
		role  string
	}{
		{"buyer", "buyer-" + uuid.NewString()[:8], middleware.RoleBuyer},
		{"admin", "admin-" + uuid.NewString()[:8], middleware.RoleAdmin},
	}

	for _, subject := range subjects {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": subject.id,
			"role":    subject.role,
			"type":    "access",
			"exp":     time.Now().Add(24 * time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
		if err != nil {
			return err
		}
		fmt.Printf("  %s (%s): %s\n", subject.label, subject.id, signed)
	}
	return nil
}
