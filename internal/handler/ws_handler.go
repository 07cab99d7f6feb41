package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"vttcore/internal/app/ws"
	"vttcore/internal/pkg/logx"
	"vttcore/internal/pkg/randx"
)

// HandleWebSocket upgrades the request and runs the connection until it closes. The connection
// starts outside any room; clients pick one with a joinRoom event.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		client := ws.NewClient(randx.ConnectionID(), conn, ws.Config{
			SendBuffer:    deps.Config.SendBuffer,
			MaxFrameBytes: deps.Config.MaxFrameBytes,
		})
		sess := deps.Engine.Connect(client)

		logx.Info("WebSocket connection established", "conn_id", client.ID())

		go client.WritePump()
		client.ReadPump(sess)
	}
}
