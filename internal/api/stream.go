package api

import (
	"encoding/json"
	"fmt"

	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/internal/websocket"
)

type snapshotRequest struct {
	Since *int64 `json:"since"`
}

// HandleMessage answers snapshot requests from stream clients. The snapshot
// honours the client's aircraft filters, and its stamp tells the client
// which streamed changes it already has.
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, data json.RawMessage) error {
	if messageType != websocket.MessageTypeSnapshotRequest {
		return fmt.Errorf("unsupported message type %q", messageType)
	}

	var req snapshotRequest
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("invalid snapshot request: %w", err)
		}
	}
	since := int64(-1)
	if req.Since != nil {
		since = *req.Since
	}

	filters := client.GetFilters()
	list, stamp := h.list.ChangedSince(since)
	views := make([]*AircraftView, 0, len(list))
	for _, a := range list {
		var icao *transponder.Icao24
		if a.Icao24.Established() {
			v := a.Icao24.Value()
			icao = &v
		}
		if !filters.Selects(a.ID, icao) {
			continue
		}
		views = append(views, h.view.aircraft(a))
	}

	client.SendMessage(&websocket.Message{
		Type: websocket.MessageTypeSnapshot,
		Data: ListView{Stamp: stamp, Count: len(views), Aircraft: views},
	})
	return nil
}
