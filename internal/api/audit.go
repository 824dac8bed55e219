package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/biobridge/internal/audit"
)

// AuditLister pages through the command audit log.
// Satisfied by *audit.SQLiteRepository.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// handleListAudit returns command submissions, newest first.
//
// Query parameters:
//   - command: enroll, verify, delete, empty
//   - outcome: accepted, rejected
//   - source: http, legacy, mqtt
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Command: q.Get("command"),
		Outcome: q.Get("outcome"),
		Source:  q.Get("source"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command audit", "error", err)
		writeInternalError(w, "failed to list command audit")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
