package sfweb

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sfio/pkg/sfstream"
	"sfio/sflog"
)

//go:embed static/*
var staticFiles embed.FS

// StatusPayload is the telemetry snapshot broadcast to every connected
// browser and served from the REST endpoint.
type StatusPayload struct {
	State       string  `json:"state"`
	Filename    string  `json:"filename"`
	FifoFill    float64 `json:"fifoFill"`
	Frames      int64   `json:"frames"`
	BytesPerSec float64 `json:"bytesPerSec"`
	Error       string  `json:"error,omitempty"`
}

// message is the envelope every websocket frame carries.
type message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Server hosts the dashboard and polls a Reader for its telemetry.
type Server struct {
	reader *sfstream.Reader
	port   int
	hub    *Hub
	log    sflog.Logger

	httpServer *http.Server
}

// NewServer constructs a Server bound to reader, listening on port.
func NewServer(reader *sfstream.Reader, port int, log sflog.Logger) *Server {
	if log == nil {
		log = sflog.Nop{}
	}
	return &Server{
		reader: reader,
		port:   port,
		hub:    NewHub(),
		log:    log,
	}
}

// Start runs the hub, the telemetry broadcast loop, and the HTTP server.
// It blocks until the server stops (normally via Shutdown).
func (s *Server) Start() error {
	go s.hub.Run()
	go s.broadcastLoop()

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("sfweb: static filesystem: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/status", s.handleAPIStatus)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("sfweb: starting", "port", s.port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("sfweb: upgrade failed", "error", err)
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	s.hub.register <- c

	if data, err := json.Marshal(message{Type: "status", Payload: s.snapshot(0)}); err == nil {
		c.send <- data
	}

	go c.writePump()
	c.readPump()
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshot(0))
}

func (s *Server) snapshot(bytesPerSec float64) StatusPayload {
	snap := s.reader.Snapshot()
	errMsg := ""
	if snap.Err != nil {
		errMsg = snap.Err.Error()
	}
	return StatusPayload{
		State:       snap.State.String(),
		Filename:    snap.Filename,
		FifoFill:    snap.FifoFillPct,
		Frames:      snap.FramesDecoded,
		BytesPerSec: bytesPerSec,
		Error:       errMsg,
	}
}

// broadcastLoop pushes a telemetry snapshot to every connected client at a
// fixed cadence, matching the poll interval sftui uses.
func (s *Server) broadcastLoop() {
	const tick = 50 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastFrames int64
	for range ticker.C {
		if s.hub.ClientCount() == 0 {
			continue
		}

		snap := s.reader.Snapshot()
		deltaFrames := snap.FramesDecoded - lastFrames
		lastFrames = snap.FramesDecoded
		bytesPerSec := float64(deltaFrames) / tick.Seconds()

		errMsg := ""
		if snap.Err != nil {
			errMsg = snap.Err.Error()
		}
		payload := StatusPayload{
			State:       snap.State.String(),
			Filename:    snap.Filename,
			FifoFill:    snap.FifoFillPct,
			Frames:      snap.FramesDecoded,
			BytesPerSec: bytesPerSec,
			Error:       errMsg,
		}

		data, err := json.Marshal(message{Type: "status", Payload: payload})
		if err != nil {
			continue
		}
		s.hub.Broadcast(data)
	}
}
