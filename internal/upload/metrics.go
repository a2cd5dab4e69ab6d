package upload

import "context"

// MetricsSummary represents aggregated masking insights.
type MetricsSummary struct {
	TotalRequests           int64   `json:"total_requests"`
	SuccessfulRequests      int64   `json:"successful_requests"`
	SuccessRate             float64 `json:"success_rate"`
	AverageRegions          float64 `json:"average_regions"`
	AverageMaskingLatencyMs float64 `json:"average_masking_latency_ms"`
}

// GetMetricsSummary aggregates submission metrics from persisted mask logs.
func (t *Tracker) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := t.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:           aggregation.TotalCount,
		SuccessfulRequests:      aggregation.SuccessCount,
		AverageRegions:          aggregation.AverageRegions,
		AverageMaskingLatencyMs: aggregation.AverageLatencyMs,
	}

	if aggregation.TotalCount > 0 {
		summary.SuccessRate = float64(aggregation.SuccessCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
