package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/repository"
	"WhyAgent/pkg/cache"
)

func TestFetchAllSummarizes(t *testing.T) {
	store := repository.NewParquetPriceStore(filepath.Join(t.TempDir(), "prices"), nop)
	provider := &fakeProvider{
		data: map[string]*models.PriceHistory{"AAPL": history("AAPL", 10)},
		errs: map[string]error{"MSFT": errBoom},
	}
	f := NewPriceFetcher(provider, store, nil, "", "", nop)

	sum, err := f.FetchAll(context.Background(), []string{"aapl", " msft ", "ZZZZ", ""})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"AAPL": "fake"}, sum.Saved)
	assert.Equal(t, []string{"ZZZZ"}, sum.Skipped)
	assert.Contains(t, sum.Failed, "MSFT")
	assert.FileExists(t, store.Path("AAPL"))
	assert.NoFileExists(t, store.Path("ZZZZ"))
	assert.Equal(t, []string{"AAPL", "MSFT", "ZZZZ"}, provider.fetched)
}

func TestFetchSkipsLockedTicker(t *testing.T) {
	locks := cache.NewMemoryCache()
	defer locks.Close()
	ctx := context.Background()

	ok, err := locks.TryLock(ctx, cache.GenerateKeyWithParams("fetch", "AAPL"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	provider := &fakeProvider{data: map[string]*models.PriceHistory{"AAPL": history("AAPL", 10)}}
	store := repository.NewParquetPriceStore(t.TempDir(), nop)
	f := NewPriceFetcher(provider, store, locks, "3mo", "1d", nop)

	sum, err := f.FetchAll(ctx, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, sum.Skipped)
	assert.Empty(t, provider.fetched)
}

func TestFetchReleasesLock(t *testing.T) {
	locks := cache.NewMemoryCache()
	defer locks.Close()

	provider := &fakeProvider{data: map[string]*models.PriceHistory{"AAPL": history("AAPL", 10)}}
	f := NewPriceFetcher(provider, repository.NewParquetPriceStore(t.TempDir(), nop), locks, "", "", nop)

	for i := 0; i < 2; i++ {
		src, err := f.Fetch(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "fake", src)
	}
	assert.Len(t, provider.fetched, 2)
}
