package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is owned by event management. The ticketing core only reads it.
type Event struct {
	ID        uuid.UUID   `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name      string      `json:"name" gorm:"not null;size:255"`
	Venue     string      `json:"venue" gorm:"size:255"`
	StartsAt  time.Time   `json:"starts_at" gorm:"not null"`
	Capacity  int         `json:"capacity" gorm:"not null;check:capacity >= 0"`
	Status    EventStatus `json:"status" gorm:"type:varchar(20);default:'draft'"`
	CreatedAt time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time   `json:"updated_at" gorm:"autoUpdateTime"`

	Tiers    []Tier    `json:"tiers" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE;"`
	Sessions []Session `json:"sessions" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE;"`
}

// Tier is a named price class for an event
type Tier struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID    uuid.UUID  `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_event_tier_code"`
	Code       string     `json:"code" gorm:"size:50;not null;uniqueIndex:idx_event_tier_code"`
	Name       string     `json:"name" gorm:"size:100;not null"`
	PriceCents int64      `json:"price_cents" gorm:"not null;check:price_cents >= 0"`
	Status     TierStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	SortOrder  int        `json:"sort_order" gorm:"default:0"`
}

// Session is one dated occurrence of a multi-date event. A non-nil
// PriceOverrideCents supersedes tier pricing, and zero is a valid price.
type Session struct {
	ID                 uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	EventID            uuid.UUID `json:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_event_session_label"`
	Label              string    `json:"label" gorm:"size:100;not null;uniqueIndex:idx_event_session_label"`
	StartsAt           time.Time `json:"starts_at"`
	PriceOverrideCents *int64    `json:"price_override_cents" gorm:"check:price_override_cents >= 0"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

func (Tier) TableName() string {
	return "event_tiers"
}

func (Session) TableName() string {
	return "event_sessions"
}
