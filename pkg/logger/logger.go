package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	// Get log level from environment
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	// Create handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Create handler based on environment
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		// Use text handler for development (more readable)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// Use JSON handler for production (structured)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	// Create logger
	logger := slog.New(handler)

	return &Logger{
		Logger: logger,
	}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("user_id", userID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Inventory logging methods

// LogReservationCreated logs a new PENDING hold
func (l *Logger) LogReservationCreated(ctx context.Context, reservationID, eventID, buyerID string, quantity int, expiresAt time.Time) {
	l.Logger.InfoContext(ctx,
		"Reservation Created",
		slog.String("reservation_id", reservationID),
		slog.String("event_id", eventID),
		slog.String("buyer_id", buyerID),
		slog.Int("quantity", quantity),
		slog.Time("expires_at", expiresAt),
	)
}

// LogSoldOut logs a rejected reserve attempt
func (l *Logger) LogSoldOut(ctx context.Context, eventID string, requested, remaining int) {
	l.Logger.InfoContext(ctx,
		"Reservation Rejected: Sold Out",
		slog.String("event_id", eventID),
		slog.Int("requested", requested),
		slog.Int("remaining", remaining),
	)
}

// LogReservationConfirmed logs a reservation that reached CONFIRMED with its ticket
func (l *Logger) LogReservationConfirmed(ctx context.Context, reservationID, ticketID, confirmationID string, late bool) {
	l.Logger.InfoContext(ctx,
		"Reservation Confirmed",
		slog.String("reservation_id", reservationID),
		slog.String("ticket_id", ticketID),
		slog.String("confirmation_id", confirmationID),
		slog.Bool("late", late),
	)
}

// LogReservationCancelled logs a PENDING reservation released before expiry
func (l *Logger) LogReservationCancelled(ctx context.Context, reservationID, reason string) {
	l.Logger.InfoContext(ctx,
		"Reservation Cancelled",
		slog.String("reservation_id", reservationID),
		slog.String("reason", reason),
	)
}

// LogReservationExpired logs a hold reclaimed by the sweeper
func (l *Logger) LogReservationExpired(ctx context.Context, reservationID, eventID string, quantity int) {
	l.Logger.InfoContext(ctx,
		"Reservation Expired",
		slog.String("reservation_id", reservationID),
		slog.String("event_id", eventID),
		slog.Int("quantity", quantity),
	)
}

// LogLateConfirmationConflict logs a payment that succeeded after its hold lapsed
// and could not be honoured. Someone has to reconcile these by hand.
func (l *Logger) LogLateConfirmationConflict(ctx context.Context, reservationID, eventID, externalEventID, confirmationID string, amountCents int64) {
	l.Logger.ErrorContext(ctx,
		"Late Confirmation Conflict",
		slog.String("reservation_id", reservationID),
		slog.String("event_id", eventID),
		slog.String("external_event_id", externalEventID),
		slog.String("confirmation_id", confirmationID),
		slog.Int64("amount_cents", amountCents),
		slog.String("action", "manual_reconciliation_required"),
	)
}

// Security logging methods

// LogWebhookSignatureInvalid logs a rejected payment notification
func (l *Logger) LogWebhookSignatureInvalid(ctx context.Context, ip string, err error) {
	l.Logger.WarnContext(ctx,
		"Webhook Signature Invalid",
		slog.String("ip", ip),
		slog.String("error", err.Error()),
	)
}

// LogAuthFailure logs failed authentication
func (l *Logger) LogAuthFailure(ctx context.Context, reason, ip string) {
	l.Logger.WarnContext(ctx,
		"Authentication Failure",
		slog.String("reason", reason),
		slog.String("ip", ip),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
