// Package monitor serves a small status web UI: a WebSocket stream of bridge
// status and command/response traffic, plus JSON endpoints. It consumes the
// bridge's status callback and exchange tap; the bridge works without it.
package monitor

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"elmbridge/internal/bridge"
	"elmbridge/internal/config"
	"elmbridge/internal/netinfo"
)

// Monitor broadcasts bridge state to WebSocket clients.
type Monitor struct {
	cfg    *config.Config
	bridge *bridge.Bridge
	webFS  fs.FS

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients. Exactly one of
// Status/Exchange is set per frame.
type Frame struct {
	Status   *StatusData   `json:"status,omitempty"`
	Exchange *ExchangeData `json:"exchange,omitempty"`
	Stamp    int64         `json:"stamp"` // Unix ms
}

// StatusData mirrors the bridge's observable state.
type StatusData struct {
	Running   bool     `json:"running"`
	Port      int      `json:"port"`
	Client    string   `json:"client,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	Info      string   `json:"info"`
}

// ExchangeData is one command/response cycle as shown in the traffic view.
type ExchangeData struct {
	Client     string `json:"client"`
	Command    string `json:"command"`
	Response   string `json:"response"`
	DurationMs int64  `json:"durationMs"`
}

// New creates a new Monitor.
func New(cfg *config.Config, b *bridge.Bridge, webFS fs.FS) *Monitor {
	return &Monitor{
		cfg:     cfg,
		bridge:  b,
		webFS:   webFS,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.Handle("/", http.FileServer(http.FS(m.webFS)))
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc("/api/status", m.handleStatus)
	mux.HandleFunc("/api/config", m.handleConfig)

	srv := &http.Server{
		Addr:    m.cfg.Monitor.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[monitor] listening on %s", m.cfg.Monitor.ListenAddr)
	return srv.ListenAndServe()
}

// BroadcastStatus pushes the current bridge state to all clients. Wired to
// the bridge's status callback by main.
func (m *Monitor) BroadcastStatus(running bool, client string) {
	m.broadcast(Frame{
		Status: m.statusData(running, client),
		Stamp:  time.Now().UnixMilli(),
	})
}

// Record implements bridge.Recorder, streaming each exchange to the UI.
func (m *Monitor) Record(ex bridge.Exchange) {
	m.broadcast(Frame{
		Exchange: &ExchangeData{
			Client:     ex.Client,
			Command:    ex.Command,
			Response:   ex.Response,
			DurationMs: ex.Duration.Milliseconds(),
		},
		Stamp: ex.Stamp.UnixMilli(),
	})
}

func (m *Monitor) statusData(running bool, client string) *StatusData {
	return &StatusData{
		Running:   running,
		Port:      m.bridge.Port(),
		Client:    client,
		Addresses: netinfo.CandidateAddresses(),
		Info:      m.bridge.ConnectionInfo(),
	}
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	m.clientsMu.Lock()
	m.clients[client] = struct{}{}
	m.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", len(m.clients))

	// Send the current state right away
	initial := Frame{
		Status: m.statusData(m.bridge.IsRunning(), m.bridge.ClientAddress()),
		Stamp:  time.Now().UnixMilli(),
	}
	if data, err := json.Marshal(initial); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (handle incoming messages / keep-alive)
	go func() {
		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, client)
			m.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", len(m.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	data, err := json.Marshal(m.statusData(m.bridge.IsRunning(), m.bridge.ClientAddress()))
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (m *Monitor) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := m.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := m.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := m.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (m *Monitor) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()

	for client := range m.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
