package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/pii-mask/internal/logging"
)

// MaskLog represents a persisted masking submission outcome.
type MaskLog struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Owner       string    `gorm:"column:owner;index;size:64"`
	Success     bool      `gorm:"column:success"`
	Regions     int       `gorm:"column:regions"`
	SHA1Hash    string    `gorm:"column:sha1_hash;index;size:40"`
	ErrorDetail string    `gorm:"column:error_detail;type:text"`
	LatencyMs   int64     `gorm:"column:latency_ms"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (MaskLog) TableName() string {
	return "mask_logs"
}

// MetricsAggregation holds raw aggregates over persisted mask logs.
type MetricsAggregation struct {
	TotalCount       int64
	SuccessCount     int64
	AverageRegions   float64
	AverageLatencyMs float64
}

// MaskRepository provides persistence APIs for mask logs.
type MaskRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewMaskRepository creates a new repository instance.
func NewMaskRepository(db *gorm.DB, logger *zap.Logger) *MaskRepository {
	return &MaskRepository{
		db:             db,
		logger:         logger.Named("mask_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *MaskRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&MaskLog{})
}

// SaveLog persists a mask log entry.
func (r *MaskRepository) SaveLog(ctx context.Context, log *MaskLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndOwner retrieves a mask log matching the request and owner.
func (r *MaskRepository) FindByRequestIDAndOwner(ctx context.Context, requestID, owner string) (*MaskLog, error) {
	var log MaskLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ? AND owner = ?", requestID, owner).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics computes totals over all persisted mask logs.
func (r *MaskRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).Model(&MaskLog{}).
			Select("COUNT(*) AS total_count, " +
				"SUM(CASE WHEN success THEN 1 ELSE 0 END) AS success_count, " +
				"COALESCE(AVG(regions), 0) AS average_regions, " +
				"COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *MaskRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
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
