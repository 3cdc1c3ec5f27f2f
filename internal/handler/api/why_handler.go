package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/service/metrics"
	"WhyAgent/internal/service/ratelimit"
	"WhyAgent/internal/usecase"
	xhttp "WhyAgent/pkg/http"
	xlogger "WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// PredictionHistory lists recently served predictions.
type PredictionHistory interface {
	RecentPredictions(ctx context.Context, ticker string, n int) ([]models.Prediction, error)
}

// WhyHandler serves prediction, explanation and chat endpoints.
type WhyHandler struct {
	logger    *xlogger.Logger
	predictor *usecase.Predictor
	explain   *usecase.ExplainService
	chat      *usecase.Chat
	history   PredictionHistory
	limiter   *ratelimit.Limiter
	metrics   *metrics.Endpoint
	upgrader  websocket.Upgrader
}

// NewWhyHandler creates the handler. history, limiter and m may be nil.
func NewWhyHandler(logger *xlogger.Logger, p *usecase.Predictor, ex *usecase.ExplainService, chat *usecase.Chat, history PredictionHistory, limiter *ratelimit.Limiter, m *metrics.Endpoint) *WhyHandler {
	return &WhyHandler{
		logger:    logger,
		predictor: p,
		explain:   ex,
		chat:      chat,
		history:   history,
		limiter:   limiter,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *WhyHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)
	e.POST("/predict", h.Predict)
	e.POST("/explain", h.Explain)

	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.POST("/explain", h.Explain)
	g.POST("/chat", h.Chat)
	g.GET("/ws/chat", h.ChatWS)
	if h.history != nil {
		g.GET("/predictions/:ticker", h.Predictions)
	}
}

func (h *WhyHandler) Root(c echo.Context) error {
	endpoints := []string{"/health", "/predict", "/explain", "/api/chat", "/api/ws/chat", "/metrics", "/web"}
	if h.history != nil {
		endpoints = append(endpoints, "/api/predictions/:ticker")
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"service":   "WhyAgent API",
		"endpoints": endpoints,
	})
}

func (h *WhyHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

type predictResponse struct {
	Ticker  string  `json:"ticker"`
	PredPct float64 `json:"pred_pct"`
}

func (h *WhyHandler) Predict(c echo.Context) error {
	start := time.Now()
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.done(c, "predict", start, xhttp.BadRequestResponse(c, verr))
	}

	pred, err := h.predictor.Predict(c.Request().Context(), req.Ticker, "")
	if err != nil {
		return h.fail(c, "predict", start, err)
	}
	return h.done(c, "predict", start, xhttp.SuccessResponse(c, predictResponse{Ticker: pred.Ticker, PredPct: pred.PredPct}))
}

func (h *WhyHandler) Explain(c echo.Context) error {
	start := time.Now()
	if !h.allow(c) {
		return h.fail(c, "explain", start, xhttp.TooManyRequestsError("rate limit exceeded"))
	}
	req := &models.ExplainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.done(c, "explain", start, xhttp.BadRequestResponse(c, verr))
	}

	in := usecase.ExplainInput{Ticker: req.Ticker, PredPct: req.PredPct, TopK: req.TopK}
	if req.NewsQuery != nil {
		in.NewsQuery = *req.NewsQuery
	}
	res, err := h.explain.Explain(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, "explain", start, err)
	}
	return h.done(c, "explain", start, xhttp.SuccessResponse(c, res))
}

func (h *WhyHandler) Chat(c echo.Context) error {
	start := time.Now()
	if !h.allow(c) {
		return h.fail(c, "chat", start, xhttp.TooManyRequestsError("rate limit exceeded"))
	}
	req := &models.ChatRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.done(c, "chat", start, xhttp.BadRequestResponse(c, verr))
	}

	res, err := h.answer(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "chat", start, err)
	}
	return h.done(c, "chat", start, xhttp.SuccessResponse(c, res))
}

func (h *WhyHandler) Predictions(c echo.Context) error {
	start := time.Now()
	ticker := util.NormalizeTicker(c.Param("ticker"))
	if ticker == "" || len(ticker) > 15 {
		return h.fail(c, "predictions", start, xhttp.BadRequestError("invalid ticker"))
	}

	limit := util.ParseIntDefault(c.QueryParam("limit"), defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return h.fail(c, "predictions", start, xhttp.BadRequestError("limit must be between 1 and 200"))
	}

	rows, err := h.history.RecentPredictions(c.Request().Context(), ticker, limit)
	if err != nil {
		return h.fail(c, "predictions", start, err)
	}
	return h.done(c, "predictions", start, xhttp.ListResponse(c, rows, int64(len(rows))))
}

func (h *WhyHandler) answer(ctx context.Context, req *models.ChatRequest) (*models.ChatAnswer, error) {
	ticker := ""
	if req.Ticker != nil {
		ticker = *req.Ticker
	}
	return h.chat.Answer(ctx, req.Message, ticker)
}

func (h *WhyHandler) allow(c echo.Context) bool {
	return h.limiter == nil || h.limiter.Allow(c.RealIP())
}

func (h *WhyHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" rejected", xlogger.Error(err))
	}
	h.metrics.Observe(endpoint, start, appErr.Status)
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *WhyHandler) done(c echo.Context, endpoint string, start time.Time, err error) error {
	h.metrics.Observe(endpoint, start, c.Response().Status)
	return err
}
