package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mr-rsr/mnist-gateway/internal/classifier"
	"github.com/mr-rsr/mnist-gateway/internal/logging"
	"github.com/mr-rsr/mnist-gateway/internal/present"
	"github.com/mr-rsr/mnist-gateway/internal/repository"
	"github.com/mr-rsr/mnist-gateway/internal/session"
)

// Classifier is the inference dependency of the pipeline.
type Classifier interface {
	Classify(ctx context.Context, imageData string) (*classifier.Prediction, error)
}

// PredictionRepository defines the persistence operations needed by the
// use case.
type PredictionRepository interface {
	SavePrediction(ctx context.Context, log *repository.PredictionLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.PredictionLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// PredictionUseCase runs the capture-to-inference pipeline for one
// classification request: sufficiency gate, cache lookup, backend call,
// panel update, then history and cache writes.
type PredictionUseCase struct {
	classifier     Classifier
	cache          Cache
	repo           PredictionRepository
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// cachedPrediction is the JSON shape stored in Redis per drawing hash.
type cachedPrediction struct {
	PredictedDigit int                `json:"predicted_digit"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
}

// Result pairs the renderable panel with the request identity assigned to
// the attempt.
type Result struct {
	RequestID string
	View      present.View
}

// NewPredictionUseCase constructs a new use case instance.
func NewPredictionUseCase(c Classifier, cache Cache, repo PredictionRepository, logger *zap.Logger) *PredictionUseCase {
	return &PredictionUseCase{
		classifier:     c,
		cache:          cache,
		repo:           repo,
		logger:         logger.Named("prediction_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Classify runs one user-initiated classification against a session.
//
// A gate rejection or an in-flight duplicate is returned as an error and
// leaves the panel untouched. A backend failure is not an error here: the
// panel moves to its error state and the caller renders it; the attempt is
// terminal and only a new gesture retries.
func (uc *PredictionUseCase) Classify(ctx context.Context, sess *session.Session) (*Result, error) {
	imageData, token, err := sess.StartClassification()
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.classify", requestID)

	hash := sha1.Sum([]byte(imageData))
	hashHex := hex.EncodeToString(hash[:])

	started := time.Now()
	prediction, cacheHit := uc.lookupCached(ctx, requestID, hashHex)
	if !cacheHit {
		prediction, err = uc.classifier.Classify(ctx, imageData)
		if err != nil {
			opLogger.Warn("classification attempt failed", zap.Error(err))
			sess.FinishError(token, err)
			return &Result{RequestID: requestID, View: sess.View()}, nil
		}
	}
	latency := time.Since(started)

	outcome := present.Outcome{
		PredictedDigit: prediction.PredictedDigit,
		Confidence:     prediction.Confidence,
		Probabilities:  prediction.Probabilities,
	}
	sess.FinishSuccess(token, outcome)

	uc.storeCached(ctx, requestID, hashHex, prediction, cacheHit)
	uc.persistLog(ctx, opLogger, &repository.PredictionLog{
		RequestID:  requestID,
		SessionID:  sess.ID,
		Digit:      prediction.PredictedDigit,
		Confidence: prediction.Confidence,
		Tier:       string(present.TierFor(prediction.Confidence)),
		ImageSHA1:  hashHex,
		LatencyMs:  latency.Milliseconds(),
		CacheHit:   cacheHit,
		CreatedAt:  time.Now().UTC(),
	})

	return &Result{RequestID: requestID, View: sess.View()}, nil
}

// GetPrediction loads a persisted prediction by request id.
func (uc *PredictionUseCase) GetPrediction(ctx context.Context, requestID string) (*repository.PredictionLog, error) {
	return uc.repo.FindByRequestID(ctx, requestID)
}

func (uc *PredictionUseCase) lookupCached(ctx context.Context, requestID, hashHex string) (*classifier.Prediction, bool) {
	raw, err := uc.withRedisGet(ctx, requestID, "cache.get.prediction", predictionKey(hashHex))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.WithOperation(uc.logger, "cache.get.prediction", requestID).Warn("failed to read cache", zap.Error(err))
		}
		return nil, false
	}

	var payload cachedPrediction
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logging.WithOperation(uc.logger, "cache.get.prediction", requestID).Warn("failed to decode cached prediction", zap.Error(err))
		return nil, false
	}
	return &classifier.Prediction{
		PredictedDigit: payload.PredictedDigit,
		Confidence:     payload.Confidence,
		Probabilities:  payload.Probabilities,
	}, true
}

// storeCached refreshes the cache after a backend round-trip. Cache
// failures never fail the attempt; the drawing was already classified.
func (uc *PredictionUseCase) storeCached(ctx context.Context, requestID, hashHex string, prediction *classifier.Prediction, cacheHit bool) {
	if cacheHit {
		return
	}
	serialized, err := json.Marshal(cachedPrediction{
		PredictedDigit: prediction.PredictedDigit,
		Confidence:     prediction.Confidence,
		Probabilities:  prediction.Probabilities,
	})
	if err != nil {
		logging.WithOperation(uc.logger, "cache.set.prediction", requestID).Warn("failed to serialize prediction", zap.Error(err))
		return
	}
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.prediction", func() error {
		return uc.cache.Set(ctx, predictionKey(hashHex), string(serialized), time.Hour)
	}); err != nil {
		logging.WithOperation(uc.logger, "cache.set.prediction", requestID).Warn("failed to cache prediction", zap.Error(err))
	}
}

// persistLog writes history. Failures are logged and swallowed: the user
// already has a rendered result and the panel must stay interactive.
func (uc *PredictionUseCase) persistLog(ctx context.Context, opLogger *zap.Logger, log *repository.PredictionLog) {
	if err := uc.repo.SavePrediction(ctx, log); err != nil {
		opLogger.Warn("failed to persist prediction log", zap.Error(err))
	}
}

func (uc *PredictionUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *PredictionUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
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
