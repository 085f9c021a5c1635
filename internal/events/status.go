package events

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// IsOnSale reports whether tickets may be sold for an event in this status
func (s EventStatus) IsOnSale() bool {
	return s == EventStatusPublished
}

type TierStatus string

const (
	TierStatusActive TierStatus = "active"
	TierStatusPaused TierStatus = "paused"
)
