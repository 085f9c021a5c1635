package checkout

import (
	"context"
	"strings"

	"ticketing/internal/events"
	"ticketing/internal/reservations"

	"github.com/google/uuid"
)

// EventLoader reads an event with its tiers and sessions
type EventLoader interface {
	GetWithPricing(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

// Service turns a buyer's request into a held reservation and a payment redirect
type Service interface {
	Checkout(ctx context.Context, buyerID string, req CheckoutRequest) (*CheckoutResponse, error)
}

type service struct {
	events       EventLoader
	resolver     events.TierResolver
	reservations reservations.Service
	broker       Broker
}

func NewService(loader EventLoader, resolver events.TierResolver, reservationService reservations.Service, broker Broker) Service {
	return &service{
		events:       loader,
		resolver:     resolver,
		reservations: reservationService,
		broker:       broker,
	}
}

func (s *service) Checkout(ctx context.Context, buyerID string, req CheckoutRequest) (*CheckoutResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, events.ErrEventNotFound
	}

	event, err := s.events.GetWithPricing(ctx, eventID)
	if err != nil {
		return nil, err
	}

	price, err := s.resolver.Resolve(event, req.SessionLabel, req.TierCode)
	if err != nil {
		return nil, err
	}
	if !price.Sellable {
		return nil, ErrEventNotOnSale
	}

	result, err := s.reservations.Reserve(ctx, reservations.ReserveInput{
		EventID:        event.ID,
		TierCode:       price.TierCode,
		SessionLabel:   price.SessionLabel,
		Quantity:       req.Quantity,
		UnitPriceCents: price.UnitPriceCents,
		BuyerID:        buyerID,
	})
	if err != nil {
		return nil, err
	}
	if result.SoldOut {
		return nil, &SoldOutError{Remaining: result.Remaining}
	}

	reservation := result.Reservation
	redirectURL, err := s.broker.Open(ctx, reservation, describe(event, price))
	if err != nil {
		return nil, err
	}

	return &CheckoutResponse{
		ReservationID:  reservation.ID,
		RedirectURL:    redirectURL,
		ExpiresAt:      reservation.ExpiresAt,
		TierCode:       reservation.TierCode,
		SessionLabel:   reservation.SessionLabel,
		Quantity:       reservation.Quantity,
		UnitPriceCents: reservation.UnitPriceCents,
		AmountCents:    reservation.AmountCents(),
		Currency:       reservation.Currency,
		PriceSource:    price.Source,
	}, nil
}

// describe builds the line item name shown on the processor's page
func describe(event *events.Event, price *events.PriceResolution) string {
	parts := []string{event.Name}
	if price.SessionLabel != nil {
		parts = append(parts, *price.SessionLabel)
	}
	if price.TierCode != "" {
		parts = append(parts, price.TierCode)
	}
	return strings.Join(parts, " - ")
}
