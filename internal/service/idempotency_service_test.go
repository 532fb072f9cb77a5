package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/driving-school-ledger/pkg/errors"
)

type memoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
	fail   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	m.values[key] = raw
	return true, nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func TestIdempotencyReplaysCompletedRequest(t *testing.T) {
	cache := newMemoryCache()
	svc := NewIdempotencyService(cache, NewMetricsService(), time.Hour, nil, true)
	ctx := context.Background()

	record, err := svc.Begin(ctx, "usr-1", "key-1")
	require.NoError(t, err)
	assert.Nil(t, record)

	_, err = svc.Begin(ctx, "usr-1", "key-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict), "in-flight key must not run twice")

	svc.Complete(ctx, "usr-1", "key-1", http.StatusCreated, map[string]string{"payment_id": "pay-1"})

	record, err = svc.Begin(ctx, "usr-1", "key-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, http.StatusCreated, record.Status)
	assert.JSONEq(t, `{"payment_id":"pay-1"}`, string(record.Response))

	other, err := svc.Begin(ctx, "usr-2", "key-1")
	require.NoError(t, err)
	assert.Nil(t, other, "keys are scoped per caller")
}

func TestIdempotencyReleaseAllowsRetry(t *testing.T) {
	svc := NewIdempotencyService(newMemoryCache(), nil, time.Hour, nil, true)
	ctx := context.Background()

	_, err := svc.Begin(ctx, "usr-1", "key-1")
	require.NoError(t, err)
	svc.Release(ctx, "usr-1", "key-1")

	record, err := svc.Begin(ctx, "usr-1", "key-1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestIdempotencyDisabledOrFailingCacheIsTransparent(t *testing.T) {
	disabled := NewIdempotencyService(newMemoryCache(), nil, time.Hour, nil, false)
	record, err := disabled.Begin(context.Background(), "usr-1", "key-1")
	assert.NoError(t, err)
	assert.Nil(t, record)
	assert.False(t, disabled.Enabled())

	broken := newMemoryCache()
	broken.fail = errors.New("connection refused")
	svc := NewIdempotencyService(broken, nil, time.Hour, nil, true)
	record, err = svc.Begin(context.Background(), "usr-1", "key-1")
	assert.NoError(t, err)
	assert.Nil(t, record)
}
