package events

import (
	"context"
	"fmt"
	"log/slog"

	"ticketing/internal/shared/constants"
	"ticketing/pkg/cache"
	"ticketing/pkg/logger"

	"github.com/google/uuid"
)

// CapacityLedger supplies the consumed-capacity figures for an event
type CapacityLedger interface {
	Availability(ctx context.Context, eventID uuid.UUID) (*Availability, error)
}

type Service interface {
	SetCacheService(cacheService cache.Service)
	GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	GetOffers(ctx context.Context, id uuid.UUID) (*OffersResponse, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (*Availability, error)
}

type service struct {
	repo         Repository
	resolver     TierResolver
	ledger       CapacityLedger
	cacheService cache.Service
	log          *logger.Logger
}

func NewService(repo Repository, resolver TierResolver, ledger CapacityLedger) Service {
	return &service{
		repo:     repo,
		resolver: resolver,
		ledger:   ledger,
		log:      logger.GetDefault(),
	}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

func (s *service) GetEvent(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	offers, err := s.GetOffers(ctx, id)
	if err != nil {
		return nil, err
	}

	availability, err := s.GetAvailability(ctx, id)
	if err != nil {
		return nil, err
	}

	return &EventResponse{
		ID:           offers.EventID,
		Name:         offers.Name,
		StartsAt:     offers.StartsAt,
		Status:       offers.Status,
		Offers:       offers.Offers,
		Availability: availability,
	}, nil
}

func (s *service) GetOffers(ctx context.Context, id uuid.UUID) (*OffersResponse, error) {
	cacheKey := constants.BuildEventOffersKey(id.String())

	if s.cacheService != nil {
		var cached OffersResponse
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	event, err := s.repo.GetWithPricing(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &OffersResponse{
		EventID:  event.ID.String(),
		Name:     event.Name,
		StartsAt: event.StartsAt,
		Status:   event.Status,
		Offers:   s.resolver.Offers(event),
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, resp, constants.TTL_EVENT_OFFERS); err != nil {
			s.log.Warn("failed to cache event offers", slog.String("event_id", id.String()), slog.Any("error", err))
		}
	}

	return resp, nil
}

func (s *service) GetAvailability(ctx context.Context, id uuid.UUID) (*Availability, error) {
	availability, err := s.ledger.Availability(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read availability: %w", err)
	}
	return availability, nil
}
