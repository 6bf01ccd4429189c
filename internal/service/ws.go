package service

import (
	"context"
	"errors"
	"net"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// wsEvent is the websocket envelope, same fields the SSE stream carries.
type wsEvent struct {
	Event string `json:"event"`
	ID    int    `json:"id"`
	Retry int    `json:"retry"`
	Data  string `json:"data"`
}

// wsEvents feeds delivery queue messages over a websocket, an alternative
// consumer to the SSE stream with the same id, retry and termination rules.
func wsEvents(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		ctx, cancelF := consumerCtx(data, c.Request().Context())
		defer cancelF()
		go watchClose(ws, cancelF)

		goapp.Log.Info().Msg("ws client connected")
		defer goapp.Log.Info().Msg("ws client done")

		id := 0
		for {
			msg, ok, err := nextMessage(ctx, data)
			if err != nil {
				data.Processor.ClientGone()
				return nil
			}
			if !ok {
				continue
			}
			if terminal(msg) {
				goapp.Log.Info().Str("event", msg.Event).Msg("end of stream")
				return nil
			}
			id++
			if err := ws.WriteJSON(wsEvent{Event: msg.Event, ID: id,
				Retry: sseRetryTimeout, Data: msg.Data}); err != nil {
				goapp.Log.Warn().Err(err).Msg("ws write failed")
				data.Processor.ClientGone()
				return nil
			}
		}
	}
}

// watchClose drains reads so close frames are seen and cancels on any read
// failure.
func watchClose(ws *websocket.Conn, cancelF context.CancelFunc) {
	defer cancelF()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) ||
				errors.Is(err, net.ErrClosed) {
				goapp.Log.Info().Msg("connection closed")
				return
			}
			goapp.Log.Debug().Err(err).Msg("ws read ended")
			return
		}
	}
}
