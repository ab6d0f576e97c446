package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-track/internal/simulation"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// Simulator manages simulated aircraft
type Simulator interface {
	CreateAircraft(location transponder.Location, altitude float64, controls simulation.Controls) (*simulation.SimulatedAircraft, error)
	UpdateControls(icao transponder.Icao24, controls simulation.Controls) error
	RemoveAircraft(icao transponder.Icao24) error
	Aircraft() []simulation.SimulatedAircraft
}

// SetSimulator enables the simulation endpoints
func (h *Handler) SetSimulator(sim Simulator) {
	h.simulator = sim
}

// GetSimulatedAircraft returns all simulated aircraft
func (h *Handler) GetSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	if !h.simulationEnabled(w) {
		return
	}
	WriteJSON(w, http.StatusOK, h.simulator.Aircraft())
}

// CreateSimulatedAircraft creates a new simulated aircraft
func (h *Handler) CreateSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	if !h.simulationEnabled(w) {
		return
	}

	var req struct {
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
		Altitude float64 `json:"altitude"`
		simulation.Controls
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	a, err := h.simulator.CreateAircraft(transponder.Location{Lat: req.Lat, Lon: req.Lon}, req.Altitude, req.Controls)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("Created simulated aircraft via API",
		logger.String("icao", a.Icao24.String()),
		logger.String("callsign", a.Callsign))
	WriteJSON(w, http.StatusCreated, a)
}

// UpdateSimulationControls steers a simulated aircraft
func (h *Handler) UpdateSimulationControls(w http.ResponseWriter, r *http.Request) {
	if !h.simulationEnabled(w) {
		return
	}

	var icao transponder.Icao24
	if err := icao.UnmarshalText([]byte(chi.URLParam(r, "icao"))); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var controls simulation.Controls
	if err := json.NewDecoder(r.Body).Decode(&controls); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.simulator.UpdateControls(icao, controls); err != nil {
		h.simulationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveSimulatedAircraft removes a simulated aircraft
func (h *Handler) RemoveSimulatedAircraft(w http.ResponseWriter, r *http.Request) {
	if !h.simulationEnabled(w) {
		return
	}

	var icao transponder.Icao24
	if err := icao.UnmarshalText([]byte(chi.URLParam(r, "icao"))); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.simulator.RemoveAircraft(icao); err != nil {
		h.simulationError(w, err)
		return
	}
	h.logger.Info("Removed simulated aircraft via API", logger.String("icao", icao.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) simulationEnabled(w http.ResponseWriter) bool {
	if h.simulator == nil {
		writeError(w, http.StatusServiceUnavailable, "simulation is disabled")
		return false
	}
	return true
}

func (h *Handler) simulationError(w http.ResponseWriter, err error) {
	if errors.Is(err, simulation.ErrUnknownAircraft) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
