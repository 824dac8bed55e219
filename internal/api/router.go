package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/biobridge/internal/bridges/fingerprint"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Device routes kept for the existing web UI. They always answer 200
	// with {success, message}.
	r.Group(func(r chi.Router) {
		r.Use(s.commandSourceMiddleware(fingerprint.SourceLegacy))
		r.Post("/enroll", s.handleLegacyCommand(fingerprint.CommandEnroll))
		r.Post("/verify", s.handleLegacyCommand(fingerprint.CommandVerify))
		r.Post("/delete", s.handleLegacyCommand(fingerprint.CommandDelete))
		r.Post("/empty", s.handleLegacyCommand(fingerprint.CommandEmpty))
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/bridge", func(r chi.Router) {
			r.Get("/status", s.handleBridgeStatus)
			r.Get("/ports", s.handleListPorts)
			r.Post("/reopen", s.handleReopen)
			r.With(s.commandSourceMiddleware(fingerprint.SourceHTTP)).Post("/commands/{command}", s.handleCommand)
		})

		if s.members != nil {
			r.Route("/members", func(r chi.Router) {
				r.Get("/", s.handleListMembers)
				r.Get("/fingerprint/{fingerId}", s.handleGetMemberByFingerprint)
			})
		}

		if s.audit != nil {
			r.Get("/audit", s.handleListAudit)
		}

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          s.version,
		"sensor_connected": s.bridge.Status().Connected,
	})
}
