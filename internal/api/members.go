package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/biobridge/internal/member"
)

// handleListMembers returns every member.
// GET /api/v1/members
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.members.List(r.Context())
	if err != nil {
		s.logger.Error("listing members failed", "error", err)
		writeInternalError(w, "listing members failed")
		return
	}
	if members == nil {
		members = []member.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"members": members,
		"count":   len(members),
	})
}

// handleGetMemberByFingerprint returns the member bound to a sensor slot.
// Clients call it after a verify-status success event.
// GET /api/v1/members/fingerprint/{fingerId}
func (s *Server) handleGetMemberByFingerprint(w http.ResponseWriter, r *http.Request) {
	fingerID, err := strconv.Atoi(chi.URLParam(r, "fingerId"))
	if err != nil || fingerID <= 0 {
		writeBadRequest(w, "fingerprint ID must be a positive integer")
		return
	}

	m, err := s.members.GetByFingerprint(r.Context(), fingerID)
	if errors.Is(err, member.ErrMemberNotFound) {
		writeNotFound(w, "no member holds this fingerprint ID")
		return
	}
	if err != nil {
		s.logger.Error("member lookup failed", "finger_id", fingerID, "error", err)
		writeInternalError(w, "member lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
