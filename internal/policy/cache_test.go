package policy

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openpreserve/flint/internal/iocache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	data := readSample(t)
	assert.Equal(t, CacheKey(data, NoFilter), CacheKey(data, NoFilter))
	assert.NotEqual(t, CacheKey(data, NoFilter), CacheKey(data, NewPatternFilter("images")))
	assert.NotEqual(t, CacheKey(data, NoFilter), CacheKey(append(data, ' '), NoFilter))
	assert.Equal(t, CacheKey(data, NewPatternFilter("a", "b")), CacheKey(data, NewPatternFilter("b", "a")))
}

func TestCacheReusesEntries(t *testing.T) {
	c := NewCache(nil, nil)
	data := readSample(t)

	var wg sync.WaitGroup
	maps := make([]*PolicyMap, 16)
	for i := range maps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pm, err := c.PolicyMap(data, NoFilter)
			assert.NoError(t, err)
			maps[i] = pm
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
	for _, pm := range maps {
		assert.Same(t, maps[0], pm)
	}

	_, err := c.PolicyMap(data, NewPatternFilter("images"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestCacheNil(t *testing.T) {
	var c *Cache
	pm, err := c.PolicyMap(readSample(t), NoFilter)
	require.NoError(t, err)
	assert.Equal(t, 2, pm.Len())
	assert.Equal(t, 0, c.Len())
}

func TestCacheRemembersErrors(t *testing.T) {
	c := NewCache(nil, nil)
	_, err := c.PolicyMap([]byte("<broken"), NoFilter)
	require.ErrorIs(t, err, ErrMalformedSchema)
	_, err = c.PolicyMap([]byte("<broken"), NoFilter)
	require.ErrorIs(t, err, ErrMalformedSchema)
	assert.Equal(t, 1, c.Len())
}

func TestCachePersistentHit(t *testing.T) {
	data := readSample(t)
	key := CacheKey(data, NoFilter)

	stored := NewPolicyMap()
	stored.Add("stored", "ctx", "t")
	encoded, err := json.Marshal(stored)
	require.NoError(t, err)

	store := &iocache.MockCacheStore{}
	store.On("Get", key).Return(encoded, currentCacheVersion, time.Now().Unix(), nil)

	pm, err := NewCache(store, nil).PolicyMap(data, NoFilter)
	require.NoError(t, err)
	assert.Equal(t, []string{"stored"}, pm.Patterns())
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCachePersistentMiss(t *testing.T) {
	tests := []struct {
		name    string
		version int
		age     time.Duration
		err     error
	}{
		{"not found", currentCacheVersion, 0, errors.New("no rows")},
		{"stale", currentCacheVersion, cacheTTL + time.Hour, nil},
		{"old version", currentCacheVersion + 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := readSample(t)
			key := CacheKey(data, NoFilter)

			store := &iocache.MockCacheStore{}
			store.On("Get", key).Return([]byte(`[]`), tt.version, time.Now().Add(-tt.age).Unix(), tt.err)
			store.On("Set", key, mock.Anything, currentCacheVersion, mock.AnythingOfType("int64")).Return(nil)

			pm, err := NewCache(store, nil).PolicyMap(data, NoFilter)
			require.NoError(t, err)
			assert.Equal(t, 2, pm.Len())
			store.AssertExpectations(t)
		})
	}
}
