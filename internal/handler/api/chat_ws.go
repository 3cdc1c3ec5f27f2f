package api

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"WhyAgent/internal/domain/models"
	xhttp "WhyAgent/pkg/http"
	xlogger "WhyAgent/pkg/logger"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = 8 << 10
)

// wsReply is one websocket answer frame.
type wsReply struct {
	*models.ChatAnswer
	Error string `json:"error,omitempty"`
}

// ChatWS answers each {message, ticker?} frame with a chat response frame.
func (h *WhyHandler) ChatWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", xlogger.Error(err))
			}
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := h.wsAnswer(c, data)
		// gorilla allows one concurrent writer; pings use WriteControl.
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("websocket write failed", xlogger.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (h *WhyHandler) wsAnswer(c echo.Context, data []byte) wsReply {
	start := time.Now()
	if !h.allow(c) {
		h.metrics.Observe("chat_ws", start, 429)
		return wsReply{Error: "rate limit exceeded"}
	}

	var req models.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.metrics.Observe("chat_ws", start, 400)
		return wsReply{Error: "invalid message: " + err.Error()}
	}
	if errs := xhttp.ValidateStruct(c.Request().Context(), &req); errs != nil {
		h.metrics.Observe("chat_ws", start, 400)
		return wsReply{Error: errs[0].Message}
	}

	ans, err := h.answer(c.Request().Context(), &req)
	if err != nil {
		appErr := toAppError(err)
		h.metrics.Observe("chat_ws", start, appErr.Status)
		h.logger.Warn("websocket chat failed", xlogger.Error(err))
		return wsReply{Error: appErr.Message}
	}
	h.metrics.Observe("chat_ws", start, 200)
	return wsReply{ChatAnswer: ans}
}

func (h *WhyHandler) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(wsPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
