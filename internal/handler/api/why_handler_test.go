package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/repository"
	"WhyAgent/internal/service/metrics"
	"WhyAgent/internal/service/ratelimit"
	"WhyAgent/internal/services/boosting"
	"WhyAgent/internal/usecase"
	xlogger "WhyAgent/pkg/logger"
	appmetrics "WhyAgent/pkg/metrics"
)

type stubExplainer struct{ reply string }

func (s stubExplainer) Explain(context.Context, string) (string, error) { return s.reply, nil }

type noNews struct{}

func (noNews) Search(context.Context, string, int) ([]models.NewsItem, error) { return nil, nil }

type plusOneDay struct{}

func (plusOneDay) NextSession(t time.Time) time.Time { return t.AddDate(0, 0, 1) }

type stubHistory struct{ rows []models.Prediction }

func (s stubHistory) RecentPredictions(_ context.Context, ticker string, _ int) ([]models.Prediction, error) {
	var out []models.Prediction
	for _, p := range s.rows {
		if p.Ticker == ticker {
			out = append(out, p)
		}
	}
	return out, nil
}

func seedPrices(t *testing.T, store *repository.ParquetPriceStore, ticker string, n int) {
	t.Helper()
	h := &models.PriceHistory{Ticker: ticker, Source: "test", Interval: "1d"}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 4*math.Sin(float64(i)/3) + 0.1*float64(i)
		h.Bars = append(h.Bars, models.PriceBar{
			Date: day.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c,
			Volume: 1e6 + 1e5*math.Cos(float64(i)/2),
		})
	}
	require.NoError(t, store.Save(context.Background(), h))
}

func newTestEcho(t *testing.T, modelURI string, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()
	l := xlogger.NewNop()

	tracker, err := repository.OpenTracker(ctx, "sqlite:///"+filepath.Join(dir, "runs.db"), nil, l)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })
	store, err := repository.NewFSModelStore(filepath.Join(dir, "mlruns"), tracker, 2, l)
	require.NoError(t, err)
	prices := repository.NewParquetPriceStore(filepath.Join(dir, "prices"), l)

	seedPrices(t, prices, "AAPL", 60)
	seedPrices(t, prices, "TINY", 3)

	params := boosting.DefaultParams()
	params.NEstimators = 20
	params.MaxDepth = 3
	trainer := usecase.NewTrainer(prices, store, tracker, appmetrics.Nop{}, usecase.TrainerConfig{Params: params}, l)
	_, err = trainer.Train(ctx, "AAPL")
	require.NoError(t, err)

	pred := usecase.NewPredictor(store, prices, nil, nil, appmetrics.Nop{}, usecase.PredictorConfig{ModelURI: modelURI}, l)
	ex := usecase.NewExplainService(pred, noNews{}, stubExplainer{reply: "because"}, plusOneDay{}, nil, appmetrics.Nop{}, usecase.ExplainConfig{Language: "Korean"}, l)
	history := stubHistory{rows: []models.Prediction{{ID: "p1", Ticker: "AAPL", PredPct: 0.01}}}

	h := NewWhyHandler(l, pred, ex, usecase.NewChat(ex), history, limiter, metrics.NewEndpoint(prometheus.NewRegistry()))
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, rec.Code, env.Status)
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
}

func TestRootAndHealth(t *testing.T) {
	e := newTestEcho(t, "models:/xgb_AAPL/latest", nil)

	rec := do(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var root struct {
		Service   string   `json:"service"`
		Endpoints []string `json:"endpoints"`
	}
	decode(t, rec, &root)
	assert.Equal(t, "WhyAgent API", root.Service)
	assert.Contains(t, root.Endpoints, "/explain")

	rec = do(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	decode(t, rec, &health)
	assert.Equal(t, "ok", health["status"])
}

func TestPredictEndpoints(t *testing.T) {
	e := newTestEcho(t, "models:/xgb_AAPL/latest", nil)

	for _, path := range []string{"/predict", "/api/predict"} {
		rec := do(e, http.MethodPost, path, `{"ticker":"aapl"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out predictResponse
		decode(t, rec, &out)
		assert.Equal(t, "AAPL", out.Ticker)
		assert.False(t, math.IsNaN(out.PredPct))
	}
}

func TestPredictErrorMapping(t *testing.T) {
	e := newTestEcho(t, "models:/xgb_AAPL/latest", nil)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/predict", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/predict", `{"ticker":"MSFT"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/predict", `{"ticker":"TINY"}`).Code)

	unset := newTestEcho(t, "", nil)
	assert.Equal(t, http.StatusInternalServerError, do(unset, http.MethodPost, "/predict", `{"ticker":"AAPL"}`).Code)
}

func TestExplainEndpoint(t *testing.T) {
	e := newTestEcho(t, "models:/xgb_AAPL/latest", nil)

	rec := do(e, http.MethodPost, "/api/explain", `{"ticker":"AAPL","pred_pct":0.02,"top_k":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out models.Explanation
	decode(t, rec, &out)
	assert.Equal(t, "AAPL", out.Ticker)
	assert.InDelta(t, 2.0, out.PredPctPercent, 1e-9)
	assert.LessOrEqual(t, len(out.TopFeatures), 3)
	assert.Equal(t, 0, out.NewsCount)
	assert.Equal(t, "because", out.Explanation)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/explain", `{"ticker":"AAPL","top_k":9}`).Code)
}

func TestExplainRateLimited(t *testing.T) {
	e := newTestEcho(t, "models:/xgb_AAPL/latest", ratelimit.New(1, 0))

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/explain", `{"ticker":"AAPL"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/explain", `{"ticker":"AAPL"}`).Code)
}

func TestChatEndpoint(t *testing.T) {
	e := newTestEcho(t, "models:/xgb_AAPL/latest", nil)

	rec := do(e, http.MethodPost, "/api/chat", `{"message":"AAPL이 왜 이렇게 예측돼?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ans map[string]interface{}
	decode(t, rec, &ans)
	assert.Equal(t, true, ans["ok"])
	assert.Equal(t, "AAPL", ans["ticker"])
	assert.Equal(t, "because", ans["explanation"])

	rec = do(e, http.MethodPost, "/api/chat", `{"message":"시장 어때?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	ans = nil
	decode(t, rec, &ans)
	assert.Equal(t, false, ans["ok"])
	assert.Equal(t, usecase.NoTickerAnswer, ans["answer"])
}

func TestPredictionsEndpoint(t *testing.T) {
	e := newTestEcho(t, "models:/xgb_AAPL/latest", nil)

	rec := do(e, http.MethodGet, "/api/predictions/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Rows  []models.Prediction `json:"rows"`
		Total int64               `json:"total"`
	}
	decode(t, rec, &out)
	assert.EqualValues(t, 1, out.Total)
	assert.Equal(t, "p1", out.Rows[0].ID)

	rec = do(e, http.MethodGet, "/api/predictions/aapl?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatWebsocket(t *testing.T) {
	srv := httptest.NewServer(newTestEcho(t, "models:/xgb_AAPL/latest", nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "why", "ticker": "AAPL"}))
	var ans map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ans))
	assert.Equal(t, true, ans["ok"])
	assert.Equal(t, "AAPL", ans["ticker"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{bad")))
	ans = nil
	require.NoError(t, conn.ReadJSON(&ans))
	assert.Contains(t, ans["error"], "invalid message")
}
