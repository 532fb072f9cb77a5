package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
)

// CacheRepository abstracts persistence for replayable responses.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

const (
	idempotencyPending = "pending"
	idempotencyDone    = "done"
	idempotencyLockTTL = 30 * time.Second
)

// IdempotencyRecord is what is stored per Idempotency-Key.
type IdempotencyRecord struct {
	State    string          `json:"state"`
	Status   int             `json:"status,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// IdempotencyService lets clients retry payment requests safely: the first
// request under a key runs, later ones replay its stored response.
type IdempotencyService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewIdempotencyService constructs the service.
func NewIdempotencyService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *IdempotencyService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether replay protection is active.
func (s *IdempotencyService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("ledger:idempotency:%s:%s", scope, key)
}

// Begin claims key for scope. It returns the stored record when the key was
// already completed, and a conflict while another request still holds it.
func (s *IdempotencyService) Begin(ctx context.Context, scope, key string) (*IdempotencyRecord, error) {
	if !s.Enabled() || key == "" {
		return nil, nil
	}
	cacheKey := idempotencyKey(scope, key)

	start := time.Now()
	var existing IdempotencyRecord
	err := s.repo.Get(ctx, cacheKey, &existing)
	switch {
	case err == nil:
		s.metrics.RecordCacheOperation(true, time.Since(start))
		if existing.State == idempotencyDone {
			return &existing, nil
		}
		return nil, appErrors.Clone(appErrors.ErrConflict, "a request with this idempotency key is still in progress")
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.metrics.RecordCacheOperation(false, time.Since(start))
	default:
		s.logger.Warn("idempotency lookup failed", zap.String("key", cacheKey), zap.Error(err))
		return nil, nil
	}

	claimed, err := s.repo.SetNX(ctx, cacheKey, IdempotencyRecord{State: idempotencyPending}, idempotencyLockTTL)
	if err != nil {
		s.logger.Warn("idempotency claim failed", zap.String("key", cacheKey), zap.Error(err))
		return nil, nil
	}
	if !claimed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a request with this idempotency key is still in progress")
	}
	return nil, nil
}

// Complete stores the response so that retries replay it.
func (s *IdempotencyService) Complete(ctx context.Context, scope, key string, status int, response interface{}) {
	if !s.Enabled() || key == "" {
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		s.logger.Warn("idempotency encode failed", zap.Error(err))
		return
	}
	cacheKey := idempotencyKey(scope, key)
	start := time.Now()
	err = s.repo.Set(ctx, cacheKey, IdempotencyRecord{State: idempotencyDone, Status: status, Response: payload}, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("idempotency store failed", zap.String("key", cacheKey), zap.Error(err))
	}
}

// Release frees key after a failed request so the client may retry it.
func (s *IdempotencyService) Release(ctx context.Context, scope, key string) {
	if !s.Enabled() || key == "" {
		return
	}
	cacheKey := idempotencyKey(scope, key)
	if err := s.repo.Delete(ctx, cacheKey); err != nil {
		s.logger.Warn("idempotency release failed", zap.String("key", cacheKey), zap.Error(err))
	}
}
