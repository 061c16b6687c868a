package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingData counts profile fetches so tests can assert cache hits.
type countingData struct {
	profile      Profile
	profileErr   error
	profileCalls int
}

func (c *countingData) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	return Quote{}, nil
}

func (c *countingData) GetProfile(ctx context.Context, symbol string) (Profile, error) {
	c.profileCalls++
	return c.profile, c.profileErr
}

func (c *countingData) GetRecentVolume15m(ctx context.Context, symbol string) (int64, error) {
	return 0, nil
}

func (c *countingData) GetRecentHeadlines(ctx context.Context, symbol string, sinceDays int) ([]Headline, error) {
	return nil, nil
}

func (c *countingData) ListTradableSymbols(ctx context.Context, exchange string) ([]string, error) {
	return nil, nil
}

func TestMemoryProfileCache_SetGet(t *testing.T) {
	cache := NewMemoryProfileCache(time.Hour)
	defer cache.Close()
	ctx := context.Background()

	_, ok := cache.Get(ctx, "ACME")
	assert.False(t, ok)

	want := Profile{Name: "Acme Corp", Industry: "Software", SharesOutstanding: 50e6}
	cache.Set(ctx, "ACME", want)

	got, ok := cache.Get(ctx, "ACME")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestMemoryProfileCache_Expiry(t *testing.T) {
	cache := NewMemoryProfileCache(10 * time.Millisecond)
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "ACME", Profile{Name: "Acme Corp"})
	time.Sleep(25 * time.Millisecond)

	_, ok := cache.Get(ctx, "ACME")
	assert.False(t, ok, "entries past their TTL read as misses")
}

func TestCached_ProfileFetchedOnce(t *testing.T) {
	inner := &countingData{profile: Profile{Name: "Acme Corp", SharesOutstanding: 50e6}}
	cache := NewMemoryProfileCache(time.Hour)
	defer cache.Close()

	data := WithProfileCache(inner, cache)
	ctx := context.Background()

	first, err := data.GetProfile(ctx, "ACME")
	require.NoError(t, err)

	second, err := data.GetProfile(ctx, "ACME")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.profileCalls, "the second lookup must come from cache")
}

func TestCached_FetchFailureNotCached(t *testing.T) {
	inner := &countingData{profileErr: Unavailable("profile", "ACME", errors.New("timeout"))}
	cache := NewMemoryProfileCache(time.Hour)
	defer cache.Close()

	data := WithProfileCache(inner, cache)
	ctx := context.Background()

	_, err := data.GetProfile(ctx, "ACME")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))

	_, err = data.GetProfile(ctx, "ACME")
	require.Error(t, err)
	assert.Equal(t, 2, inner.profileCalls, "failures must not poison the cache")
}

func TestUnavailable_Wrapping(t *testing.T) {
	err := Unavailable("quote", "ACME", errors.New("connection refused"))
	assert.True(t, IsUnavailable(err))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "quote ACME")

	assert.False(t, IsUnavailable(errors.New("some other error")))
	assert.False(t, IsUnavailable(nil))
}

func TestFloatProxy(t *testing.T) {
	assert.Equal(t, 120e6, Profile{SharesOutstanding: 200e6, FloatShares: 120e6}.FloatProxy())
	assert.Equal(t, 200e6, Profile{SharesOutstanding: 200e6}.FloatProxy())
	assert.Zero(t, Profile{}.FloatProxy())
}
