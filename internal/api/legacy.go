package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/biobridge/internal/bridges/fingerprint"
)

// legacyResponse is the body of every device route reply.
type legacyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleLegacyCommand serves POST /enroll, /verify, /delete and /empty.
// These routes always answer 200; the outcome is in the success flag.
func (s *Server) handleLegacyCommand(kind fingerprint.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := parseRequestCommand(r, string(kind))
		if err != nil {
			writeJSON(w, http.StatusOK, legacyResponse{Message: legacyMessage(err)})
			return
		}

		ack, err := s.bridge.Submit(r.Context(), cmd)
		if err != nil {
			writeJSON(w, http.StatusOK, legacyResponse{Message: legacyMessage(err)})
			return
		}
		writeJSON(w, http.StatusOK, legacyResponse{Success: true, Message: ack.Message})
	}
}

func legacyMessage(err error) string {
	if errors.Is(err, errInvalidBody) {
		return err.Error()
	}
	return fingerprint.RejectionMessage(err)
}
