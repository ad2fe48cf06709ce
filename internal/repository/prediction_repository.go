package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mr-rsr/mnist-gateway/internal/logging"
)

// PredictionLog is one persisted classification outcome.
type PredictionLog struct {
	ID         uint      `gorm:"primaryKey"`
	RequestID  string    `gorm:"column:request_id;uniqueIndex;size:64"`
	SessionID  string    `gorm:"column:session_id;index;size:64"`
	Digit      int       `gorm:"column:digit"`
	Confidence float64   `gorm:"column:confidence"`
	Tier       string    `gorm:"column:tier;size:16"`
	ImageSHA1  string    `gorm:"column:image_sha1;index;size:40"`
	LatencyMs  int64     `gorm:"column:latency_ms"`
	CacheHit   bool      `gorm:"column:cache_hit"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// MetricsAggregation holds the raw aggregates computed over the log table.
type MetricsAggregation struct {
	TotalCount        int64
	AverageConfidence float64
	AverageLatencyMs  float64
	TierCounts        map[string]int64
}

// PredictionRepository provides persistence APIs for prediction logs.
// Transient database failures are retried with exponential backoff.
type PredictionRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewPredictionRepository creates a new repository instance.
func NewPredictionRepository(db *gorm.DB, logger *zap.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:             db,
		logger:         logger.Named("prediction_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *PredictionRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&PredictionLog{})
}

// SavePrediction persists a prediction log entry.
func (r *PredictionRepository) SavePrediction(ctx context.Context, log *PredictionLog) error {
	return r.executeWithRetry(ctx, "repository.save_prediction", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves a prediction log by its request identity.
func (r *PredictionRepository) FindByRequestID(ctx context.Context, requestID string) (*PredictionLog, error) {
	var log PredictionLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics computes totals, average confidence and latency, and
// the per-tier distribution over all persisted predictions.
func (r *PredictionRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var totals struct {
		TotalCount        int64
		AverageConfidence float64
		AverageLatencyMs  float64
	}
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&PredictionLog{}).
			Select("COUNT(*) AS total_count, COALESCE(AVG(confidence), 0) AS average_confidence, COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
			Scan(&totals).Error
	})
	if err != nil {
		return nil, err
	}

	var tiers []struct {
		Tier  string
		Count int64
	}
	err = r.executeWithRetry(ctx, "repository.aggregate_tiers", "", func() error {
		return r.db.WithContext(ctx).
			Model(&PredictionLog{}).
			Select("tier, COUNT(*) AS count").
			Group("tier").
			Scan(&tiers).Error
	})
	if err != nil {
		return nil, err
	}

	aggregation := &MetricsAggregation{
		TotalCount:        totals.TotalCount,
		AverageConfidence: totals.AverageConfidence,
		AverageLatencyMs:  totals.AverageLatencyMs,
		TierCounts:        make(map[string]int64, len(tiers)),
	}
	for _, t := range tiers {
		aggregation.TierCounts[t.Tier] = t.Count
	}
	return aggregation, nil
}

func (r *PredictionRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
