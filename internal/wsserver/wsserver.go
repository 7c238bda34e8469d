// Package wsserver wires the HTTP mux: CORS, the /health probe, and the
// /ws upgrade into a per-connection session.
package wsserver

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/itsakeyfut/reversi/internal/conf"
	"github.com/itsakeyfut/reversi/internal/logging"
	"github.com/itsakeyfut/reversi/internal/session"
)

// allowedOrigin is the sole CORS origin, matching the original actix-cors
// configuration (GET, POST, content-type, http://localhost:3000).
const allowedOrigin = "http://localhost:3000"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowedOrigin
	},
}

// New builds the HTTP handler: CORS middleware wrapping a mux with
// /health and /ws.
func New(coord session.Coordinator, log *logging.Logger, cfg *conf.Conf) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy!"))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleUpgrade(w, r, coord, log, cfg)
	})

	return cors(mux)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		w.Header().Set("Access-Control-Allow-Headers", "content-type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func handleUpgrade(w http.ResponseWriter, r *http.Request, coord session.Coordinator, log *logging.Logger, cfg *conf.Conf) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("websocket upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	s := session.New(id, conn, coord, log, cfg)
	log.Info("new connection %s from %s", id, conn.RemoteAddr())

	go func() {
		defer conn.Close()
		s.Run(context.Background())
	}()
}
