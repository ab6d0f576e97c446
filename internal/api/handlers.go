package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/config"
	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/storage/sqlite"
	"github.com/yegors/co-track/internal/tracker"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

const (
	defaultLookupTimeout = 5 * time.Second
	maxLookupTimeout     = 30 * time.Second
	maxLookupAddresses   = 100
)

// FeedStatus reports the feed connections
type FeedStatus interface {
	Status() []tracker.ConnectionStatus
}

// Awaiter answers synchronous lookups
type Awaiter interface {
	Lookup(ctx context.Context, icaos []transponder.Icao24) []lookup.Outcome
}

// ArchiveReader reads archived changes
type ArchiveReader interface {
	Changes(ctx context.Context, aircraftID int32, afterStamp int64, limit int) ([]sqlite.ArchivedChange, error)
}

// Handler contains the API handlers. feeds, awaiter and archive may be nil,
// the endpoints that need them then answer 503.
type Handler struct {
	list      *aircraft.List
	feeds     FeedStatus
	awaiter   Awaiter
	archive   ArchiveReader
	simulator Simulator
	view      viewer
	logger    *logger.Logger
	startedAt time.Time
}

// NewHandler creates a new API handler
func NewHandler(list *aircraft.List, feeds FeedStatus, awaiter Awaiter, archive ArchiveReader, station config.StationConfig, log *logger.Logger) *Handler {
	return &Handler{
		list:      list,
		feeds:     feeds,
		awaiter:   awaiter,
		archive:   archive,
		view:      viewer{station: station, now: time.Now},
		logger:    log.Named("api-handler"),
		startedAt: time.Now(),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	var feeds []tracker.ConnectionStatus
	connected := 0
	if h.feeds != nil {
		feeds = h.feeds.Status()
		for _, f := range feeds {
			if f.Connected {
				connected++
			}
		}
	}

	status := "ok"
	if len(feeds) > 0 && connected == 0 {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"aircraft_count":  h.list.Count(),
		"stamp":           h.list.Stamp(),
		"feeds":           feeds,
		"feeds_connected": connected,
		"lookup_enabled":  h.awaiter != nil,
		"archive_enabled": h.archive != nil,
		"simulation":      h.simulator != nil,
	})
}

// GetFields lists the history field names accepted by history queries
func (h *Handler) GetFields(w http.ResponseWriter, r *http.Request) {
	fields := aircraft.AllHistoryFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	WriteJSON(w, http.StatusOK, names)
}

// GetAllAircraft returns every aircraft, or with ?since=stamp only those
// that changed after stamp
func (h *Handler) GetAllAircraft(w http.ResponseWriter, r *http.Request) {
	since := int64(-1)
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since stamp")
			return
		}
		since = v
	}

	list, stamp := h.list.ChangedSince(since)
	views := make([]*AircraftView, 0, len(list))
	for _, a := range list {
		views = append(views, h.view.aircraft(a))
	}

	WriteJSON(w, http.StatusOK, ListView{Stamp: stamp, Count: len(views), Aircraft: views})
}

// GetAircraft returns one aircraft by id
func (h *Handler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	a, ok := h.aircraftFromURL(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, h.view.aircraft(a))
}

// GetAircraftByIcao returns the aircraft that currently owns an address
func (h *Handler) GetAircraftByIcao(w http.ResponseWriter, r *http.Request) {
	var icao transponder.Icao24
	if err := icao.UnmarshalText([]byte(chi.URLParam(r, "icao"))); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, ok := h.list.TryGetByIcao(icao)
	if !ok {
		writeError(w, http.StatusNotFound, "Aircraft not found")
		return
	}
	WriteJSON(w, http.StatusOK, h.view.aircraft(a))
}

// GetAircraftHistory returns the change sets of one aircraft. The window is
// either ?since=stamp (exclusive) or ?from=RFC3339 (inclusive), and ?fields
// narrows the fields reported. Each requested field's last value before the
// window is included so the caller can reconstruct state at the start.
func (h *Handler) GetAircraftHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := h.aircraftFromURL(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fields, err := parseFields(query.Get("fields"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	since, from := query.Get("since"), query.Get("from")
	if since != "" && from != "" {
		writeError(w, http.StatusBadRequest, "use either since or from, not both")
		return
	}

	snapshot := a.History()
	var sets []*aircraft.ChangeSet
	switch {
	case from != "":
		t, err := time.Parse(time.RFC3339Nano, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from time, expected RFC3339")
			return
		}
		sets = snapshot.ChangeSetsFromUTC(t, fields...)
	default:
		stamp := int64(-1)
		if since != "" {
			stamp, err = strconv.ParseInt(since, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid since stamp")
				return
			}
		}
		sets = snapshot.ChangeSetsAfterStamp(stamp, fields...)
	}

	mask := aircraft.MaskOf(fields...)
	view := HistoryView{
		AircraftID: a.ID,
		Stamp:      a.Stamp,
		Fields:     make([]string, 0, mask.Len()),
		ChangeSets: make([]ChangeSetView, 0, len(sets)),
	}
	for _, f := range mask.Fields() {
		view.Fields = append(view.Fields, f.String())
	}
	for _, cs := range sets {
		view.ChangeSets = append(view.ChangeSets, changeSetView(cs, mask))
	}
	WriteJSON(w, http.StatusOK, view)
}

// GetAircraftArchive returns archived changes of one aircraft
func (h *Handler) GetAircraftArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive is disabled")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid aircraft id")
		return
	}

	query := r.URL.Query()
	after := int64(-1)
	if s := query.Get("after"); s != "" {
		if after, err = strconv.ParseInt(s, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid after stamp")
			return
		}
	}
	limit := 0
	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	changes, err := h.archive.Changes(r.Context(), int32(id), after, limit)
	if err != nil {
		h.logger.Error("Failed to read change archive", logger.Error(err), logger.Int64("aircraft_id", id))
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"aircraft_id": id,
		"count":       len(changes),
		"changes":     changes,
	})
}

// Lookup waits for aircraft details. ?icao takes a comma separated list of
// addresses and ?timeout_ms bounds the wait. Whatever completed in time is
// returned.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	if h.awaiter == nil {
		writeError(w, http.StatusServiceUnavailable, "lookup is disabled")
		return
	}

	query := r.URL.Query()
	icaos, err := parseIcaos(query.Get("icao"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(icaos) == 0 {
		writeError(w, http.StatusBadRequest, "icao is required")
		return
	}
	if len(icaos) > maxLookupAddresses {
		writeError(w, http.StatusBadRequest, "too many addresses")
		return
	}

	timeout := defaultLookupTimeout
	if s := query.Get("timeout_ms"); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil || ms <= 0 {
			writeError(w, http.StatusBadRequest, "invalid timeout_ms")
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}
	if timeout > maxLookupTimeout {
		timeout = maxLookupTimeout
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	outcomes := h.awaiter.Lookup(ctx, icaos)
	WriteJSON(w, http.StatusOK, map[string]any{
		"requested": len(icaos),
		"completed": len(outcomes),
		"outcomes":  outcomes,
	})
}

func (h *Handler) aircraftFromURL(w http.ResponseWriter, r *http.Request) (*aircraft.Aircraft, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid aircraft id")
		return nil, false
	}
	a, ok := h.list.TryGet(int32(id))
	if !ok {
		writeError(w, http.StatusNotFound, "Aircraft not found")
		return nil, false
	}
	return a, true
}

func parseFields(s string) ([]aircraft.HistoryField, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var fields []aircraft.HistoryField
	for _, name := range strings.Split(s, ",") {
		f, err := aircraft.ParseHistoryField(name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseIcaos(s string) ([]transponder.Icao24, error) {
	var out []transponder.Icao24
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var icao transponder.Icao24
		if err := icao.UnmarshalText([]byte(part)); err != nil {
			return nil, err
		}
		out = append(out, icao)
	}
	return out, nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
