package webhooks

import (
	"context"
	"log/slog"

	"ticketing/internal/payments"
	"ticketing/internal/reservations"
	"ticketing/pkg/logger"
)

// Reconciler applies verified payment notifications to reservations
type Reconciler interface {
	Reconcile(ctx context.Context, notification *payments.Notification) (*reservations.ReconcileResult, error)
}

type reconciler struct {
	reservations reservations.Service
	log          *logger.Logger
}

func NewReconciler(reservationService reservations.Service) Reconciler {
	return &reconciler{
		reservations: reservationService,
		log:          logger.GetDefault(),
	}
}

func toOutcome(notification *payments.Notification) reservations.PaymentOutcome {
	outcome := reservations.OutcomeFailed
	if notification.Outcome == payments.OutcomeSucceeded {
		outcome = reservations.OutcomeSucceeded
	}
	return reservations.PaymentOutcome{
		ExternalEventID:  notification.ExternalEventID,
		PaymentSessionID: notification.PaymentSessionID,
		Outcome:          outcome,
		ConfirmationID:   notification.ConfirmationID,
		AmountCents:      notification.AmountCents,
	}
}

func (r *reconciler) Reconcile(ctx context.Context, notification *payments.Notification) (*reservations.ReconcileResult, error) {
	result, err := r.reservations.ApplyPaymentOutcome(ctx, toOutcome(notification))
	if err != nil {
		r.log.ErrorContext(ctx, "failed to reconcile payment notification",
			slog.String("external_event_id", notification.ExternalEventID),
			slog.String("payment_session_id", notification.PaymentSessionID),
			slog.Any("error", err))
		return nil, err
	}

	attrs := []any{
		slog.String("external_event_id", notification.ExternalEventID),
		slog.String("event_type", notification.EventType),
		slog.String("payment_session_id", notification.PaymentSessionID),
		slog.String("action", string(result.Action)),
	}

	switch result.Action {
	case reservations.ActionConflict:
		// money without inventory; the issue row is what operators work from
		attrs = append(attrs, slog.Any("error", reservations.ErrLateConfirmationConflict))
		r.log.ErrorContext(ctx, "payment notification flagged for reconciliation", attrs...)
	case reservations.ActionUnknownSession:
		attrs = append(attrs, slog.String("reservation_hint", notification.ReservationID))
		r.log.WarnContext(ctx, "payment notification for unknown session", attrs...)
	default:
		r.log.InfoContext(ctx, "payment notification reconciled", attrs...)
	}

	return result, nil
}
