package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/biobridge/internal/bridges/fingerprint"
)

// commandRequest is the body of a command submission. The id may be sent
// as a JSON string or number; verify and empty take no body at all.
type commandRequest struct {
	ID fingerIDValue `json:"id"`
}

// fingerIDValue accepts a JSON string, number or null.
type fingerIDValue string

func (v *fingerIDValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = fingerIDValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("id must be a string or number")
	}
	*v = fingerIDValue(n.String())
	return nil
}

// commandResponse is returned for an accepted command.
type commandResponse struct {
	Accepted bool   `json:"accepted"`
	Command  string `json:"command"`
	FingerID *int   `json:"finger_id,omitempty"`
	Message  string `json:"message"`
}

// decodeCommandRequest reads an optional JSON body. An empty body yields
// an empty id.
func decodeCommandRequest(r *http.Request) (commandRequest, error) {
	var req commandRequest
	if r.Body == nil {
		return req, nil
	}
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

// parseRequestCommand builds a Command from the route name and request body.
func parseRequestCommand(r *http.Request, kind string) (fingerprint.Command, error) {
	req, err := decodeCommandRequest(r)
	if err != nil {
		return fingerprint.Command{}, errInvalidBody
	}
	return fingerprint.ParseCommand(kind, string(req.ID))
}

var errInvalidBody = errors.New("invalid JSON body")

// handleCommand submits a sensor command.
// POST /api/v1/bridge/commands/{command}
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := parseRequestCommand(r, chi.URLParam(r, "command"))
	if errors.Is(err, errInvalidBody) {
		writeBadRequest(w, err.Error())
		return
	}
	if err != nil {
		writeCommandError(w, err)
		return
	}

	ack, err := s.bridge.Submit(r.Context(), cmd)
	if err != nil {
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, commandResponse{
		Accepted: true,
		Command:  string(ack.Command),
		FingerID: ack.FingerID,
		Message:  ack.Message,
	})
}

// handleBridgeStatus returns the bridge snapshot.
// GET /api/v1/bridge/status
func (s *Server) handleBridgeStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Snapshot())
}

// handleListPorts enumerates serial ports on the host.
// GET /api/v1/bridge/ports
func (s *Server) handleListPorts(w http.ResponseWriter, _ *http.Request) {
	ports, err := s.ports()
	if err != nil {
		s.logger.Error("listing serial ports failed", "error", err)
		writeInternalError(w, "listing serial ports failed")
		return
	}
	if ports == nil {
		ports = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ports": ports,
		"count": len(ports),
	})
}

// handleReopen starts a new open attempt on a closed or failed link. The
// attempt runs under the server lifetime, not the request.
// POST /api/v1/bridge/reopen
func (s *Server) handleReopen(w http.ResponseWriter, _ *http.Request) {
	if err := s.bridge.Reopen(s.lifetime()); err != nil {
		if errors.Is(err, fingerprint.ErrLinkClosed) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "bridge is shutting down")
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "opening serial port",
	})
}
