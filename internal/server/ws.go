package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/repovis/repovis/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is an incoming interaction event.
type clientFrame struct {
	Type string `json:"type"` // expand, collapse, click, dragstart, drag, dragend, pan, zoom, hover
	ID   string `json:"id,omitempty"`

	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
	Factor float64 `json:"factor,omitempty"`
}

// serverFrame wraps outgoing messages.
type serverFrame struct {
	Type     string           `json:"type"` // "snapshot" or "error"
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Error    string           `json:"error,omitempty"`
	NodeID   string           `json:"node_id,omitempty"`
}

// client is one connected renderer. Snapshots overwrite each other when the
// connection is slow; error frames queue.
type client struct {
	id  string
	out chan serverFrame
}

// hub fans engine frames out to connected clients without ever stalling the
// tick loop.
type hub struct {
	mu      sync.Mutex
	clients map[string]*client
}

func newHub() *hub {
	return &hub{clients: make(map[string]*client)}
}

func (h *hub) register() *client {
	c := &client{id: uuid.NewString(), out: make(chan serverFrame, 8)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *hub) unregister(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.out)
	}
	h.mu.Unlock()
}

// broadcast delivers the latest snapshot to every client, dropping the frame
// for clients whose buffers are full.
func (h *hub) broadcast(snap engine.Snapshot) {
	frame := serverFrame{Type: "snapshot", Snapshot: &snap}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.out <- frame:
		default:
		}
	}
}

// send queues a frame for one client, dropping it if the client is gone or
// backed up.
func (h *hub) send(id string, frame serverFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	select {
	case c.out <- frame:
	default:
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	c := s.hub.register()
	defer s.hub.unregister(c.id)
	log.Printf("server: client %s connected", c.id)

	// One goroutine owns the write side of the connection.
	go func() {
		for frame := range c.out {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.hub.send(c.id, serverFrame{Type: "error", Error: "invalid message format"})
			continue
		}
		s.dispatch(r, frame, c.id)
	}
}

// dispatch routes one interaction frame into the engine. Expand and click
// may block on enrichment, so they run off the read loop; a failure comes
// back as a soft error frame and the node stays retryable.
func (s *Server) dispatch(r *http.Request, frame clientFrame, clientID string) {
	ctx := r.Context()

	switch frame.Type {
	case "expand":
		go func() {
			if err := s.eng.Expand(ctx, frame.ID); err != nil {
				log.Printf("server: expand %s: %v", frame.ID, err)
				s.hub.send(clientID, serverFrame{Type: "error", NodeID: frame.ID, Error: err.Error()})
			}
		}()
	case "collapse":
		if err := s.eng.Collapse(frame.ID); err != nil {
			s.hub.send(clientID, serverFrame{Type: "error", NodeID: frame.ID, Error: err.Error()})
		}
	case "click":
		go func() {
			if err := s.eng.Click(ctx, frame.ID); err != nil {
				log.Printf("server: click %s: %v", frame.ID, err)
				s.hub.send(clientID, serverFrame{Type: "error", NodeID: frame.ID, Error: err.Error()})
			}
		}()
	case "dragstart":
		s.eng.StartDrag(frame.ID)
	case "drag":
		s.eng.Drag(frame.ID, frame.X, frame.Y)
	case "dragend":
		s.eng.EndDrag(frame.ID)
	case "pan":
		s.eng.Pan(frame.DX, frame.DY)
	case "zoom":
		s.eng.Zoom(frame.Factor, frame.X, frame.Y)
	case "hover":
		s.eng.Hover(frame.ID)
	default:
		s.hub.send(clientID, serverFrame{Type: "error", Error: "unknown message type: " + frame.Type})
	}
}
