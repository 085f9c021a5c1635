package events

import "time"

// Availability is the capacity read model for one event
type Availability struct {
	EventID   string `json:"event_id"`
	Capacity  int    `json:"capacity"`
	Sold      int    `json:"sold"`
	Held      int    `json:"held"`
	Remaining int    `json:"remaining"`
	SoldOut   bool   `json:"sold_out"`
}

type OffersResponse struct {
	EventID  string      `json:"event_id"`
	Name     string      `json:"name"`
	StartsAt time.Time   `json:"starts_at"`
	Status   EventStatus `json:"status"`
	Offers   []Offer     `json:"offers"`
}

type EventResponse struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Venue        string        `json:"venue"`
	StartsAt     time.Time     `json:"starts_at"`
	Status       EventStatus   `json:"status"`
	Offers       []Offer       `json:"offers"`
	Availability *Availability `json:"availability"`
}

// NewAvailability derives the remaining count from capacity and consumed units
func NewAvailability(eventID string, capacity, sold, held int) *Availability {
	remaining := capacity - sold - held
	if remaining < 0 {
		remaining = 0
	}
	return &Availability{
		EventID:   eventID,
		Capacity:  capacity,
		Sold:      sold,
		Held:      held,
		Remaining: remaining,
		SoldOut:   remaining == 0,
	}
}
