package api

import (
	"context"
	"net/http"
)

// Server wraps an HTTP server with the engine's routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)

	// Loop control.
	mux.HandleFunc("POST /api/v1/loops/{name}/trigger", h.TriggerLoop)

	// Audit trail.
	mux.HandleFunc("GET /api/v1/actions", h.ListActions)
	mux.HandleFunc("GET /api/v1/actions/{id}/proof", h.GetActionProof)
	mux.HandleFunc("GET /api/v1/proofs", h.ListProofs)

	// Strategy.
	mux.HandleFunc("GET /api/v1/strategy", h.GetStrategy)
	mux.HandleFunc("GET /api/v1/adaptations", h.ListAdaptations)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: corsMiddleware(mux),
	}

	return &Server{
		httpServer: srv,
	}
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for local dashboard access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
