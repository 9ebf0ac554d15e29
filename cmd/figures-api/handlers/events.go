package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/events"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

const keepAliveInterval = 30 * time.Second

// EventsHandler streams batch-completed events as server-sent events.
type EventsHandler struct {
	logger     *observability.Logger
	subscriber events.Subscriber
}

// NewEventsHandler creates an events handler. A nil subscriber answers 503.
func NewEventsHandler(logger *observability.Logger, subscriber events.Subscriber) *EventsHandler {
	return &EventsHandler{logger: logger, subscriber: subscriber}
}

// Stream handles GET /events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.subscriber == nil {
		writeError(w, http.StatusServiceUnavailable, "event streaming is disabled", "")
		return
	}

	ctx := r.Context()
	ch, unsubscribe, err := h.subscriber.Subscribe(ctx)
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Msg("Event subscription failed")
		writeError(w, http.StatusServiceUnavailable, "event subscription failed", err.Error())
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Msg("Response does not support streaming")
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: batch.completed\nid: %s\ndata: %s\n\n", event.BatchID, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
