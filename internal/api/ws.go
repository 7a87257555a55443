package api

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"vk-comments-exporter/internal/logger"
)

func (s *Server) handleWSLogs(w http.ResponseWriter, r *http.Request) {
	websocket.Server{
		Handshake: func(cfg *websocket.Config, req *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			conn.PayloadType = websocket.TextFrame
			ch, cancel := logger.Subscribe()
			defer cancel()

			for msg := range ch {
				if err := websocket.Message.Send(conn, string(msg)); err != nil {
					return
				}
			}
		},
	}.ServeHTTP(w, r)
}

// handleWSStatus pushes the export status every interval_ms (100..5000).
func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	n := queryIntDefault(r.URL.Query(), "interval_ms", 1000)
	n = max(100, min(n, 5000))
	interval := time.Duration(n) * time.Millisecond

	websocket.Server{
		Handshake: func(cfg *websocket.Config, req *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			conn.PayloadType = websocket.TextFrame

			send := func() bool {
				b, err := json.Marshal(s.manager.Status())
				if err != nil {
					return false
				}
				return websocket.Message.Send(conn, string(append(b, '\n'))) == nil
			}
			if !send() {
				return
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for range ticker.C {
				if !send() {
					return
				}
			}
		},
	}.ServeHTTP(w, r)
}
