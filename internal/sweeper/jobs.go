package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ticketing/internal/reservations"
	"ticketing/internal/shared/constants"
	"ticketing/pkg/cache"
	"ticketing/pkg/logger"
)

// Expirer moves lapsed PENDING reservations to EXPIRED
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) ([]reservations.Reservation, error)
}

// JobConfig contains configuration for the expiry sweeper
type JobConfig struct {
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
	// MaxBatches bounds one tick so a huge backlog cannot pin the lock
	MaxBatches int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Interval:   1 * time.Minute,
		BatchSize:  100,
		LockTTL:    50 * time.Second,
		MaxBatches: 50,
	}
}

// JobProcessor runs the expiry sweep on a ticker
type JobProcessor struct {
	expirer Expirer
	locker  cache.Locker
	config  *JobConfig
	log     *logger.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu          sync.Mutex
	running     bool
	lastRunAt   time.Time
	lastExpired int
	lastError   string
}

// NewJobProcessor creates a sweeper. locker may be nil for a single instance.
func NewJobProcessor(expirer Expirer, locker cache.Locker, config *JobConfig) *JobProcessor {
	defaults := DefaultJobConfig()
	if config == nil {
		config = defaults
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if config.MaxBatches <= 0 {
		config.MaxBatches = defaults.MaxBatches
	}

	return &JobProcessor{
		expirer: expirer,
		locker:  locker,
		config:  config,
		log:     logger.GetDefault(),
		done:    make(chan struct{}),
	}
}

// Start starts the sweeper loop
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.mu.Lock()
	jp.running = true
	jp.mu.Unlock()

	jp.wg.Add(1)
	go jp.startExpirySweeper(ctx)

	jp.log.Info("expiry sweeper started",
		slog.Duration("interval", jp.config.Interval),
		slog.Int("batch_size", jp.config.BatchSize))
}

// Stop stops the loop and waits for an in-flight sweep to finish
func (jp *JobProcessor) Stop() {
	jp.stopOnce.Do(func() {
		close(jp.done)
	})
	jp.wg.Wait()

	jp.mu.Lock()
	jp.running = false
	jp.mu.Unlock()

	jp.log.Info("expiry sweeper stopped")
}

func (jp *JobProcessor) startExpirySweeper(ctx context.Context) {
	defer jp.wg.Done()

	ticker := time.NewTicker(jp.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.sweep(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) sweep(ctx context.Context) {
	expired, err := jp.RunOnce(ctx)
	if err != nil {
		jp.log.Error("expiry sweep failed", slog.Any("error", err))
		return
	}
	if expired > 0 {
		jp.log.Info("expired lapsed reservations", slog.Int("count", expired))
	}
}

// RunOnce takes the leader lock and expires batches until one comes back
// short. It returns how many reservations this call moved.
func (jp *JobProcessor) RunOnce(ctx context.Context) (int, error) {
	if jp.locker != nil {
		token, acquired, err := jp.locker.TryLock(ctx, constants.LOCK_KEY_EXPIRY_SWEEPER, jp.config.LockTTL)
		if err != nil {
			// correctness comes from the conditional update, so sweep anyway
			jp.log.Warn("sweeper lock unavailable, sweeping without it", slog.Any("error", err))
		} else if !acquired {
			jp.log.Debug("another instance holds the sweeper lock")
			return 0, nil
		} else {
			defer func() {
				if err := jp.locker.Unlock(context.WithoutCancel(ctx), constants.LOCK_KEY_EXPIRY_SWEEPER, token); err != nil {
					jp.log.Warn("failed to release sweeper lock", slog.Any("error", err))
				}
			}()
		}
	}

	total := 0
	var runErr error
	for batch := 0; batch < jp.config.MaxBatches; batch++ {
		expired, err := jp.expirer.ExpireDue(ctx, jp.config.BatchSize)
		total += len(expired)
		if err != nil {
			runErr = err
			break
		}
		if len(expired) < jp.config.BatchSize {
			break
		}
	}

	jp.mu.Lock()
	jp.lastRunAt = time.Now()
	jp.lastExpired = total
	jp.lastError = ""
	if runErr != nil {
		jp.lastError = runErr.Error()
	}
	jp.mu.Unlock()

	return total, runErr
}

// GetJobStatus returns the status of the sweeper
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	jp.mu.Lock()
	defer jp.mu.Unlock()

	status := "stopped"
	if jp.running {
		status = "running"
	}

	result := map[string]interface{}{
		"interval":     jp.config.Interval.String(),
		"batch_size":   jp.config.BatchSize,
		"status":       status,
		"last_expired": jp.lastExpired,
	}
	if !jp.lastRunAt.IsZero() {
		result["last_run_at"] = jp.lastRunAt.Format(time.RFC3339)
	}
	if jp.lastError != "" {
		result["last_error"] = jp.lastError
	}
	return result
}
