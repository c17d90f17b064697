package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/plcbridge/internal/channel"
)

// HealthResponse reports the outcome of every dependency check.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// ChannelResponse describes one channel.
type ChannelResponse struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Address int    `json:"address"`
	Device  int    `json:"device,omitempty"`
	State   string `json:"state,omitempty"`

	// UpdatedAt is when an output was last commanded, if journaled.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// handleHealth runs every configured check. Any failure makes the
// response 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Checks:  make(map[string]string, len(names)),
	}
	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleStatus returns the bridge snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

// handleListChannels returns the channel table in announcement order.
// An optional ?kind= filter takes relay, digital_output, digital_input
// or modbus_input.
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	groups := [][]channel.Channel{
		s.table.ModbusInputs(),
		s.table.Inputs(),
		s.table.Relays(),
		s.table.Outputs(),
	}

	kind := r.URL.Query().Get("kind")
	if kind != "" && !validKind(kind) {
		writeError(w, http.StatusBadRequest, "unknown channel kind: "+kind)
		return
	}

	outputs := s.status.Status().Outputs
	channels := make([]ChannelResponse, 0)
	for _, group := range groups {
		for _, ch := range group {
			if kind != "" && ch.Kind.String() != kind {
				continue
			}
			channels = append(channels, toChannelResponse(ch, outputs))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"count":    len(channels),
	})
}

// handleGetChannel returns one channel by name.
func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ch, ok := s.table.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "channel not found: "+name)
		return
	}

	resp := toChannelResponse(ch, s.status.Status().Outputs)
	if s.history != nil && ch.Kind.IsOutput() {
		at, err := s.history.UpdatedAt(r.Context(), ch.Name)
		switch {
		case err == nil:
			resp.UpdatedAt = &at
		case !errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("reading output history failed", "channel", ch.Name, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func toChannelResponse(ch channel.Channel, outputs map[string]string) ChannelResponse {
	return ChannelResponse{
		Name:    ch.Name,
		Kind:    ch.Kind.String(),
		Address: ch.Address,
		Device:  ch.Device,
		State:   outputs[ch.Name],
	}
}

func validKind(kind string) bool {
	for _, k := range []channel.Kind{channel.Relay, channel.DigitalOutput, channel.DigitalInput, channel.ModbusInput} {
		if k.String() == kind {
			return true
		}
	}
	return false
}
