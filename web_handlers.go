package main

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/elijahnyp/torch_sync/engine"
	"github.com/elijahnyp/torch_sync/state"
	. "github.com/elijahnyp/torch_sync/util"
	"github.com/gorilla/websocket"
)

const recentEventLimit = 25

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served on the internal monitor port
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		// Channel is full, skip this update
	}
}

// readPump drains the connection until the peer goes away
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

/* ***************************************
Dashboard
*/

// Dashboard serves the monitor pages from the live sync state.
type Dashboard struct {
	engine  *engine.Engine
	scene   *SceneStore
	tracker *TrackerSnapshot
	markers *MarkerLayer
	hub     *WSHub
	recent  []engine.Event
	mu      sync.Mutex
}

func NewDashboard(eng *engine.Engine, scene *SceneStore, tracker *TrackerSnapshot, markers *MarkerLayer, hub *WSHub) *Dashboard {
	return &Dashboard{engine: eng, scene: scene, tracker: tracker, markers: markers, hub: hub}
}

// Record keeps an engine event for the status page and pushes it to
// websocket clients. It is safe for concurrent use.
func (d *Dashboard) Record(ev engine.Event) {
	d.mu.Lock()
	d.recent = append(d.recent, ev)
	if len(d.recent) > recentEventLimit {
		d.recent = d.recent[len(d.recent)-recentEventLimit:]
	}
	d.mu.Unlock()
	if d.hub != nil {
		d.hub.BroadcastUpdate(ev.Kind, ev)
	}
}

// RecentEvents returns recorded events, newest first.
func (d *Dashboard) RecentEvents() []engine.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]engine.Event, len(d.recent))
	for i, ev := range d.recent {
		out[len(d.recent)-1-i] = ev
	}
	return out
}

// SystemStatus represents the overall system status
type SystemStatus struct {
	LastTransition time.Time      `json:"last_transition"`
	TrackerUpdated time.Time      `json:"tracker_updated"`
	SceneID        string         `json:"scene_id"`
	Activity       state.Activity `json:"activity"`
	RecentEvents   []engine.Event `json:"recent_events"`
	SceneLoads     int            `json:"scene_loads"`
	TotalLights    int            `json:"total_lights"`
	OptedInLights  int            `json:"opted_in_lights"`
	Markers        int            `json:"markers"`
	TotalSources   int            `json:"total_sources"`
	ActiveSources  int            `json:"active_sources"`
	SceneReady     bool           `json:"scene_ready"`
}

func (d *Dashboard) Status() SystemStatus {
	es := d.engine.Status()
	total, active := d.tracker.Counts()
	status := SystemStatus{
		Activity:       es.Activity,
		LastTransition: es.LastTransition,
		SceneLoads:     es.SceneLoads,
		SceneID:        d.scene.SceneID(),
		SceneReady:     d.scene.Ready(),
		TrackerUpdated: d.tracker.Updated(),
		TotalSources:   total,
		ActiveSources:  active,
		Markers:        len(d.markers.Attached()),
		RecentEvents:   d.RecentEvents(),
	}
	for _, l := range d.scene.Lights() {
		status.TotalLights++
		if l.OptedIn {
			status.OptedInLights++
		}
	}
	return status
}

// Lights returns the scene's lights with HasMarker taken from the marker layer.
func (d *Dashboard) Lights() []state.LightEntity {
	lights := d.scene.Lights()
	for i := range lights {
		lights[i].HasMarker = d.markers.Has(lights[i].ID)
	}
	return lights
}

// ServeWebSocket handles websocket requests from the peer
func (d *Dashboard) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  d.hub,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// APISystemStatus returns the overall system status as JSON
func (d *Dashboard) APISystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.Status())
}

// APILights returns the active scene's lights as JSON
func (d *Dashboard) APILights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.Lights())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html><head><title>torch_sync</title></head>
<body>
<h1><img src="/marker.png" alt=""> torch_sync</h1>
<p>Global illumination: <strong id="activity">{{.Status.Activity}}</strong>
{{if not .Status.LastTransition.IsZero}}since {{.Status.LastTransition.Format "2006-01-02 15:04:05"}}{{end}}</p>
<p>Scene: {{if .Status.SceneReady}}{{.Status.SceneID}} ({{.Status.SceneLoads}} loads){{else}}not ready{{end}}
| Sources: {{.Status.ActiveSources}}/{{.Status.TotalSources}} lit</p>
<table>
<tr><th>Light</th><th>Opted in</th><th>Hidden</th><th>Marker</th></tr>
{{range .Lights}}<tr><td>{{.ID}}</td><td>{{.OptedIn}}</td><td>{{.Hidden}}</td><td>{{.HasMarker}}</td></tr>
{{end}}</table>
<h2>Recent activity</h2>
<ul id="events">
{{range .Status.RecentEvents}}<li>{{.Time.Format "15:04:05"}} {{.Kind}} {{.EntityID}} {{.Error}}</li>
{{end}}</ul>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (msg) => {
  const m = JSON.parse(msg.data);
  if (m.type === "activity") { document.getElementById("activity").textContent = m.data.activity; }
  const li = document.createElement("li");
  li.textContent = new Date(m.data.time).toLocaleTimeString() + " " + m.type + " " + (m.data.entity_id || "") + " " + (m.data.error || "");
  document.getElementById("events").prepend(li);
};
</script>
</body></html>
`))

// HomeHandler serves the main dashboard page
func (d *Dashboard) HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Lights []state.LightEntity
		Status SystemStatus
	}{Lights: d.Lights(), Status: d.Status()}
	if err := homeTemplate.Execute(w, data); err != nil {
		Logger.Error().Err(err).Msg("Error rendering dashboard")
	}
}
