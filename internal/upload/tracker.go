package upload

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pii-mask/internal/logging"
	"github.com/example/pii-mask/internal/masker"
	"github.com/example/pii-mask/internal/notify"
	"github.com/example/pii-mask/internal/preview"
	"github.com/example/pii-mask/internal/repository"
)

// Sentinel errors for the HTTP layer to map onto status codes. The record's
// ErrorMessage carries the user-facing wording.
var (
	ErrUnsupportedType  = errors.New("unsupported artifact type")
	ErrArtifactTooLarge = errors.New("artifact exceeds size ceiling")
	ErrNotReady         = errors.New("no submittable artifact")
)

// Decoder produces a renderable preview from raw artifact bytes.
type Decoder interface {
	Decode(contentType string, data []byte) (string, error)
}

// Repository defines the persistence operations needed by the tracker.
type Repository interface {
	SaveLog(ctx context.Context, log *repository.MaskLog) error
	FindByRequestIDAndOwner(ctx context.Context, requestID, owner string) (*repository.MaskLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Tracker owns the upload lifecycle: one record per session owner, mutated
// only under its mutex. Decode and masking completions run on their own
// goroutines and carry the generation captured at dispatch; a completion
// whose generation no longer matches the current record is discarded.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*record

	repo     Repository
	cache    Cache
	decoder  Decoder
	masker   masker.Client
	notifier notify.Notifier
	logger   *zap.Logger

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type cachedResult struct {
	RequestID   string    `json:"request_id"`
	Owner       string    `json:"owner"`
	Success     bool      `json:"success"`
	Regions     int       `json:"regions"`
	Hash        string    `json:"sha1_hash"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTracker constructs a new tracker instance.
func NewTracker(repo Repository, cache Cache, decoder Decoder, maskClient masker.Client, notifier notify.Notifier, logger *zap.Logger) *Tracker {
	return &Tracker{
		records:        make(map[string]*record),
		repo:           repo,
		cache:          cache,
		decoder:        decoder,
		masker:         maskClient,
		notifier:       notifier,
		logger:         logger.Named("upload_tracker"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// SelectCandidate runs the validation gate and, on success, starts decoding
// the candidate into a preview. Validation failures set ErrorMessage and
// force the phase to idle but leave any previously selected artifact,
// preview, and result untouched; a bad pick never erases a good one.
func (t *Tracker) SelectCandidate(ctx context.Context, owner string, cand Candidate) (Snapshot, error) {
	opLogger := logging.WithOwner(t.logger, "tracker.select_candidate", owner)

	t.mu.Lock()
	rec := t.ensureLocked(owner)

	if !allowedContentTypes[cand.ContentType] {
		rec.phase = PhaseIdle
		rec.errorMessage = MsgUnsupportedType
		snap := rec.snapshot()
		t.mu.Unlock()
		opLogger.Info("candidate rejected", zap.String("content_type", cand.ContentType), zap.String("reason", "unsupported_type"))
		return snap, ErrUnsupportedType
	}

	size := cand.Size
	if size == 0 {
		size = int64(len(cand.Data))
	}
	if size > MaxArtifactSize {
		rec.phase = PhaseIdle
		rec.errorMessage = MsgTooLarge
		snap := rec.snapshot()
		t.mu.Unlock()
		opLogger.Info("candidate rejected", zap.Int64("size", size), zap.String("reason", "too_large"))
		return snap, ErrArtifactTooLarge
	}

	rec.generation++
	gen := rec.generation
	snap := rec.snapshot()
	t.mu.Unlock()

	go t.decodeCandidate(owner, gen, cand)
	return snap, nil
}

func (t *Tracker) decodeCandidate(owner string, gen uint64, cand Candidate) {
	opLogger := logging.WithOwner(t.logger, "tracker.decode_candidate", owner)
	previewURI, err := t.decoder.Decode(cand.ContentType, cand.Data)

	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.records[owner]
	if rec == nil || rec.generation != gen {
		opLogger.Debug("stale decode discarded", zap.Uint64("generation", gen))
		return
	}
	if err != nil {
		// declared content type passed the gate but the bytes are not a
		// decodable image
		rec.phase = PhaseIdle
		rec.errorMessage = MsgUnsupportedType
		opLogger.Warn("candidate failed to decode", zap.Error(err))
		return
	}

	rec.artifactName = cand.Name
	rec.artifact = cand.Data
	rec.contentType = cand.ContentType
	rec.preview = previewURI
	rec.phase = PhaseReady
	rec.resultPreview = ""
	rec.regions = 0
	rec.requestID = ""
	rec.errorMessage = ""
}

// Submit sends the ready artifact to the masking service. It is a no-op
// unless the record is Ready with an artifact present; in particular a second
// call while a submission is in flight is rejected. Exactly one external call
// is made per accepted invocation.
func (t *Tracker) Submit(ctx context.Context, owner string) (Snapshot, error) {
	t.mu.Lock()
	rec := t.records[owner]
	if rec == nil || rec.phase != PhaseReady || len(rec.artifact) == 0 {
		snap := Snapshot{Phase: PhaseIdle}
		if rec != nil {
			snap = rec.snapshot()
		}
		t.mu.Unlock()
		return snap, ErrNotReady
	}

	requestID := uuid.NewString()
	rec.phase = PhaseSubmitting
	rec.errorMessage = ""
	rec.requestID = requestID
	gen := rec.generation
	artifact := append([]byte(nil), rec.artifact...)
	contentType := rec.contentType
	snap := rec.snapshot()
	t.mu.Unlock()

	// detach from the request context: reset does not cancel the in-flight
	// call, it only discards the eventual outcome
	go t.runSubmission(context.WithoutCancel(ctx), owner, requestID, gen, contentType, artifact)
	return snap, nil
}

func (t *Tracker) runSubmission(ctx context.Context, owner, requestID string, gen uint64, contentType string, artifact []byte) {
	opLogger := logging.WithOperation(t.logger, "tracker.run_submission", requestID)
	start := time.Now()
	result, err := t.masker.Mask(ctx, contentType, artifact)
	latencyMs := time.Since(start).Milliseconds()

	t.mu.Lock()
	rec := t.records[owner]
	if rec == nil || rec.generation != gen {
		t.mu.Unlock()
		opLogger.Info("stale submission outcome discarded", zap.Uint64("generation", gen))
		return
	}
	if err != nil {
		rec.phase = PhaseFailed
		rec.errorMessage = MsgSubmissionFailed
		rec.resultPreview = ""
		rec.regions = 0
		opLogger.Error("masking call failed", zap.Error(err))
	} else {
		rec.phase = PhaseSucceeded
		rec.resultPreview = preview.DataURI(result.ContentType, result.MaskedImage)
		rec.regions = result.Regions
		rec.errorMessage = ""
	}
	t.mu.Unlock()

	t.recordOutcome(ctx, owner, requestID, artifact, result, err, latencyMs)
}

// recordOutcome persists the audit row, caches the result, and emits the
// notification. None of these can fail the submission: the record has already
// transitioned and losses here are logged only.
func (t *Tracker) recordOutcome(ctx context.Context, owner, requestID string, artifact []byte, result *masker.Result, maskErr error, latencyMs int64) {
	opLogger := logging.WithOperation(t.logger, "tracker.record_outcome", requestID)

	hash := sha1.Sum(artifact)
	hashHex := hex.EncodeToString(hash[:])

	log := &repository.MaskLog{
		RequestID: requestID,
		Owner:     owner,
		Success:   maskErr == nil,
		SHA1Hash:  hashHex,
		LatencyMs: latencyMs,
		CreatedAt: time.Now().UTC(),
	}
	if maskErr != nil {
		log.ErrorDetail = maskErr.Error()
	} else {
		log.Regions = result.Regions
	}
	if err := t.repo.SaveLog(ctx, log); err != nil {
		opLogger.Error("failed to persist mask log", zap.Error(err))
	}

	cached := cachedResult{
		RequestID:   requestID,
		Owner:       owner,
		Success:     log.Success,
		Regions:     log.Regions,
		Hash:        hashHex,
		ErrorDetail: log.ErrorDetail,
		LatencyMs:   latencyMs,
		CreatedAt:   log.CreatedAt,
	}
	if serialized, err := json.Marshal(cached); err != nil {
		opLogger.Error("failed to serialize mask result", zap.Error(err))
	} else if err := t.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return t.cache.Set(ctx, cacheKey(requestID), string(serialized), 5*time.Minute)
	}); err != nil {
		opLogger.Error("failed to cache mask result", zap.Error(err))
	}

	event := notify.Event{Owner: owner, Level: notify.LevelSuccess, Title: "Masking complete"}
	if maskErr != nil {
		event.Level = notify.LevelError
		event.Title = "Masking failed"
		event.Detail = MsgSubmissionFailed
	} else {
		event.Detail = fmt.Sprintf("Redacted %d region(s)", result.Regions)
	}
	if err := t.notifier.Publish(ctx, event); err != nil {
		opLogger.Warn("notification dropped", zap.Error(err))
	}
}

// Reset unconditionally replaces the record with a fresh idle one. The
// generation bump turns any in-flight decode or submission into a stale
// completion so late outcomes cannot resurrect discarded state.
func (t *Tracker) Reset(owner string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	fresh := &record{phase: PhaseIdle}
	if prev := t.records[owner]; prev != nil {
		fresh.generation = prev.generation + 1
	}
	t.records[owner] = fresh
	return fresh.snapshot()
}

// Snapshot returns a read-only copy of the owner's current record.
func (t *Tracker) Snapshot(owner string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec := t.records[owner]; rec != nil {
		return rec.snapshot()
	}
	return Snapshot{Phase: PhaseIdle}
}

// Result retrieves a completed submission outcome from cache or persistence.
func (t *Tracker) Result(ctx context.Context, owner, requestID string) (*repository.MaskLog, error) {
	key := cacheKey(requestID)
	if cached, err := t.withRedisGet(ctx, requestID, "cache.get.result", key); err == nil {
		var payload cachedResult
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(t.logger, "tracker.result", requestID).Warn("failed to decode cached result", zap.Error(err))
		} else if payload.Owner == owner {
			return &repository.MaskLog{
				RequestID:   requestID,
				Owner:       owner,
				Success:     payload.Success,
				Regions:     payload.Regions,
				SHA1Hash:    payload.Hash,
				ErrorDetail: payload.ErrorDetail,
				LatencyMs:   payload.LatencyMs,
				CreatedAt:   payload.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(t.logger, "tracker.result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return t.repo.FindByRequestIDAndOwner(ctx, requestID, owner)
}

func (t *Tracker) ensureLocked(owner string) *record {
	rec := t.records[owner]
	if rec == nil {
		rec = &record{phase: PhaseIdle}
		t.records[owner] = rec
	}
	return rec
}

func cacheKey(requestID string) string {
	return fmt.Sprintf("mask:%s", requestID)
}

func (t *Tracker) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if t.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := t.initialBackoff
	opLogger := logging.WithOperation(t.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < t.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= t.maxBackoff {
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

		if !isTransientError(err) || attempt == t.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (t *Tracker) withRedisGet(ctx context.Context, requestID, operation, key string) (string, error) {
	var result string
	err := t.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := t.cache.Get(ctx, key)
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
