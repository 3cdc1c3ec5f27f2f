package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
	"WhyAgent/pkg/metrics"
)

func TestTrainRequestHandlerTrains(t *testing.T) {
	e := newEnv(t)
	provider := &fakeProvider{data: map[string]*models.PriceHistory{"AAPL": history("AAPL", 60)}}
	fetcher := NewPriceFetcher(provider, e.prices, nil, "", "", nop)
	h := NewTrainRequestHandler("whyagent.train-requests", fetcher, e.trainer, metrics.Nop{}, nop)
	ctx := context.Background()

	assert.Equal(t, "whyagent.train-requests", h.Topic())
	require.NoError(t, h.Handle(ctx, []byte(`{"ticker":"aapl","requested_at":"2024-06-01T00:00:00Z"}`)))

	run, err := e.tracker.RunByName(ctx, "xgb_AAPL", 0)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", run.Ticker)
	assert.Equal(t, []string{"AAPL"}, provider.fetched)
}

func TestTrainRequestHandlerUsesStoredPricesWhenFetchFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.prices.Save(ctx, history("AAPL", 60)))

	provider := &fakeProvider{errs: map[string]error{"AAPL": errBoom}}
	h := NewTrainRequestHandler("t", NewPriceFetcher(provider, e.prices, nil, "", "", nop), e.trainer, metrics.Nop{}, nop)

	require.NoError(t, h.Handle(ctx, []byte(`{"ticker":"AAPL"}`)))
}

func TestTrainRequestHandlerRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	h := NewTrainRequestHandler("t", nil, e.trainer, metrics.Nop{}, nop)
	ctx := context.Background()

	assert.Error(t, h.Handle(ctx, []byte(`not json`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"ticker":"  "}`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"ticker":"../../etc"}`)))
	assert.ErrorIs(t, h.Handle(ctx, []byte(`{"ticker":"NOPE"}`)), models.ErrPricesNotFound)
}
