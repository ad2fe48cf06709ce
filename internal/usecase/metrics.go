package usecase

import "context"

// MetricsSummary represents aggregated classification insights.
type MetricsSummary struct {
	TotalPredictions  int64            `json:"total_predictions"`
	AverageConfidence float64          `json:"average_confidence"`
	AverageLatencyMs  float64          `json:"average_latency_ms"`
	TierCounts        map[string]int64 `json:"tier_counts"`
}

// GetMetricsSummary aggregates prediction metrics from persisted logs.
func (uc *PredictionUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	return &MetricsSummary{
		TotalPredictions:  aggregation.TotalCount,
		AverageConfidence: aggregation.AverageConfidence,
		AverageLatencyMs:  aggregation.AverageLatencyMs,
		TierCounts:        aggregation.TierCounts,
	}, nil
}
