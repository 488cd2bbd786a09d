package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hexhold/hexhold/internal/middleware"
)

// RouterConfig holds configuration for the server router
type RouterConfig struct {
	Logger  *slog.Logger
	Handler *Handler
}

// NewRouter creates the server's HTTP router: the WebSocket endpoint
// plus a health check.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.HandleFunc("/ws", cfg.Handler.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
