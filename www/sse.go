package www

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"chipsight/engine"
)

type SSEEvent struct {
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	select {
	case h.stopChan <- struct{}{}:
	default:
	}
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- evt:
				default:
					// drop if full
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- SSEEvent{Event: "keepalive", Data: "ping"}:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{Event: event, Data: data}:
	default:
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners wires engine events to SSE broadcasts so station
// and andon displays refresh without polling.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.LogCreatedEvent)
		h.Broadcast("log-update", fmt.Sprintf(`{"type":"created","log_id":%d,"machine_id":%d,"drawing_id":%d}`,
			ev.Log.ID, ev.Log.MachineID, ev.Log.DrawingID))
	}, engine.EventLogCreated)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.LogTransitionEvent)
		h.Broadcast("log-update", fmt.Sprintf(`{"type":"transition","log_id":%d,"from":"%s","to":"%s"}`,
			ev.Log.ID, ev.From, ev.To))
	}, engine.EventLogTransition)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.MachineStatusEvent)
		h.Broadcast("machine-update", fmt.Sprintf(`{"machine_id":%d,"status":"%s"}`, ev.MachineID, ev.Status))
	}, engine.EventMachineStatusChanged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.HoldChangedEvent)
		h.Broadcast("hold-update", fmt.Sprintf(`{"drawing_id":%d,"blocking_log_id":%d,"held":%t}`,
			ev.DrawingID, ev.BlockingLogID, ev.Held))
	}, engine.EventHoldChanged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.QualityCheckEvent)
		h.Broadcast("quality-update", fmt.Sprintf(`{"type":"check","log_id":%d,"check_type":"%s","result":"%s"}`,
			ev.Check.LogID, ev.Check.CheckType, ev.Check.Result))
	}, engine.EventQualityCheckRecorded)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ScrapEvent)
		h.Broadcast("quality-update", fmt.Sprintf(`{"type":"scrap","drawing_id":%d,"quantity":%d}`,
			ev.Record.DrawingID, ev.Record.QuantityScrapped))
	}, engine.EventScrapRecorded)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ReworkQueuedEvent)
		h.Broadcast("rework-update", fmt.Sprintf(`{"type":"queued","item_id":%d,"drawing_id":%d}`,
			ev.Item.ID, ev.Item.DrawingID))
	}, engine.EventReworkQueued)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.ReworkStatusEvent)
		h.Broadcast("rework-update", fmt.Sprintf(`{"type":"status","item_id":%d,"to":"%s"}`, ev.Item.ID, ev.To))
	}, engine.EventReworkStatusChanged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.DowntimeEvent)
		h.Broadcast("log-update", fmt.Sprintf(`{"type":"downtime","log_id":%d,"category":"%s"}`,
			ev.Entry.LogID, ev.Entry.Category))
	}, engine.EventDowntimeLogged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"connected"}`)
	}, engine.EventMessagingConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"disconnected"}`)
	}, engine.EventMessagingDisconnected)
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
