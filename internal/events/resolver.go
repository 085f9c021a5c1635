package events

import (
	"errors"
	"strings"
)

var ErrInvalidTier = errors.New("invalid tier")

type PriceSource string

const (
	PriceSourceSession PriceSource = "session_override"
	PriceSourceTier    PriceSource = "tier"
)

// PriceResolution is the unit price for a tier/session combination.
// SessionLabel is set only when the requested label matched a session.
type PriceResolution struct {
	UnitPriceCents int64       `json:"unit_price_cents"`
	Sellable       bool        `json:"sellable"`
	TierCode       string      `json:"tier_code"`
	SessionLabel   *string     `json:"session_label,omitempty"`
	Source         PriceSource `json:"source"`
}

// Offer is one purchasable price point shown to buyers
type Offer struct {
	Kind       PriceSource `json:"kind"`
	Code       string      `json:"code,omitempty"`
	Label      string      `json:"label"`
	PriceCents int64       `json:"price_cents"`
	Sellable   bool        `json:"sellable"`
}

// TierResolver prices a request against the event's current configuration.
// It has no state and performs no I/O.
type TierResolver interface {
	Resolve(event *Event, sessionLabel *string, tierCode string) (*PriceResolution, error)
	Offers(event *Event) []Offer
}

type tierResolver struct{}

func NewTierResolver() TierResolver {
	return tierResolver{}
}

func (tierResolver) Resolve(event *Event, sessionLabel *string, tierCode string) (*PriceResolution, error) {
	if event == nil {
		return nil, ErrEventNotFound
	}

	onSale := event.Status.IsOnSale()

	if sessionLabel != nil {
		if session := findSession(event.Sessions, *sessionLabel); session != nil && session.PriceOverrideCents != nil {
			label := session.Label
			return &PriceResolution{
				UnitPriceCents: *session.PriceOverrideCents,
				Sellable:       onSale,
				TierCode:       normalizeTierCode(tierCode),
				SessionLabel:   &label,
				Source:         PriceSourceSession,
			}, nil
		}
	}

	tier := findTier(event.Tiers, tierCode)
	if tier == nil {
		return nil, ErrInvalidTier
	}

	resolution := &PriceResolution{
		UnitPriceCents: tier.PriceCents,
		Sellable:       onSale && tier.Status != TierStatusPaused,
		TierCode:       tier.Code,
		Source:         PriceSourceTier,
	}
	// a session without its own price still identifies the occurrence
	if sessionLabel != nil {
		if session := findSession(event.Sessions, *sessionLabel); session != nil {
			label := session.Label
			resolution.SessionLabel = &label
		}
	}

	return resolution, nil
}

func (tierResolver) Offers(event *Event) []Offer {
	if event == nil {
		return nil
	}

	onSale := event.Status.IsOnSale()
	offers := make([]Offer, 0, len(event.Tiers)+len(event.Sessions))

	for _, tier := range event.Tiers {
		offers = append(offers, Offer{
			Kind:       PriceSourceTier,
			Code:       tier.Code,
			Label:      tier.Name,
			PriceCents: tier.PriceCents,
			Sellable:   onSale && tier.Status != TierStatusPaused,
		})
	}

	for _, session := range event.Sessions {
		if session.PriceOverrideCents == nil {
			continue
		}
		offers = append(offers, Offer{
			Kind:       PriceSourceSession,
			Label:      session.Label,
			PriceCents: *session.PriceOverrideCents,
			Sellable:   onSale,
		})
	}

	return offers
}

func findSession(sessions []Session, label string) *Session {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}
	for i := range sessions {
		if strings.EqualFold(sessions[i].Label, label) {
			return &sessions[i]
		}
	}
	return nil
}

func findTier(tiers []Tier, code string) *Tier {
	code = normalizeTierCode(code)
	if code == "" {
		return nil
	}
	for i := range tiers {
		if strings.EqualFold(tiers[i].Code, code) {
			return &tiers[i]
		}
	}
	return nil
}

func normalizeTierCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
