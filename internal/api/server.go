// Package api is the control surface over the pipeline: REST endpoints
// driving the capture scheduler, a websocket stream of diagnostic
// events, and an MJPEG preview of the consumer's textures.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Avataren/slidekiosk/internal/bridge"
	"github.com/Avataren/slidekiosk/internal/consumer"
	"github.com/Avataren/slidekiosk/internal/logger"
	"github.com/Avataren/slidekiosk/internal/preview"
	"github.com/Avataren/slidekiosk/internal/scheduler"
)

// Server represents the HTTP control server
type Server struct {
	router   *mux.Router
	sched    *scheduler.Scheduler
	cons     *consumer.Consumer
	br       *bridge.Bridge
	streamer *preview.Streamer
	events   *eventHub
	upgrader websocket.Upgrader
}

// NewServer creates a new control server over the pipeline components.
func NewServer(sched *scheduler.Scheduler, cons *consumer.Consumer, br *bridge.Bridge, streamer *preview.Streamer) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		sched:    sched,
		cons:     cons,
		br:       br,
		streamer: streamer,
		events:   newEventHub(br),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // kiosk runs on a trusted network
			},
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)

	api.HandleFunc("/surfaces/active", s.handleSetActive).Methods("PUT")
	api.HandleFunc("/surfaces/resize", s.handleResizeAll).Methods("POST")
	api.HandleFunc("/surfaces/{index}/enable", s.handleEnable).Methods("POST")
	api.HandleFunc("/surfaces/{index}/disable", s.handleDisable).Methods("POST")
	api.HandleFunc("/surfaces/{index}/navigate", s.handleNavigate).Methods("POST")
	api.HandleFunc("/surfaces/{index}/reload", s.handleReload).Methods("POST")
	api.HandleFunc("/surfaces/{index}/resize", s.handleResize).Methods("POST")

	s.router.HandleFunc("/stream/{index}", s.handleStream).Methods("GET")
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("Control server listening")
	return http.ListenAndServe(addr, s.router)
}

// surfaceIndex parses the {index} path variable.
func surfaceIndex(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["index"])
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"surfaces":  s.sched.Surfaces(),
		"transport": s.sched.Transport().String(),
		"bridge":    s.br.Stats(),
		"textures":  s.cons.Indices(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

// handleEvents upgrades to a websocket and streams diagnostic events
// (load timeouts, rejected frames) until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	id, ch := s.events.subscribe()
	defer s.events.unsubscribe(id)

	logger.WithComponent("api").Debug().Str("client", id).Msg("Event stream client connected")

	for diag := range ch {
		if err := conn.WriteJSON(diag); err != nil {
			return
		}
	}
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	index, err := surfaceIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sched.EnablePainting(index)
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	index, err := surfaceIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sched.DisablePainting(index)
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Indices []int `json:"indices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sched.SetActivePaintingWindows(req.Indices)
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	index, err := surfaceIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sched.Navigate(index, req.URL)
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	index, err := surfaceIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sched.Reload(index)
	writeJSON(w, map[string]string{"status": "ok"})
}

type resizeRequest struct {
	Width   int   `json:"width"`
	Height  int   `json:"height"`
	Indices []int `json:"indices,omitempty"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	index, err := surfaceIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sched.Resize(index, req.Width, req.Height)
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleResizeAll resizes every surface, or the given subset when a
// non-empty indices list is supplied.
func (s *Server) handleResizeAll(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Indices) > 0 {
		s.sched.ResizeIndices(req.Indices, req.Width, req.Height)
	} else {
		s.sched.ResizeAll(req.Width, req.Height)
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	index, err := surfaceIndex(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.streamer.Handler(index)(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>slidekiosk</title>
    <style>
        body { font-family: monospace; padding: 20px; background: #1e1e1e; color: #d4d4d4; }
        a { color: #569cd6; }
    </style>
</head>
<body>
    <h1>slidekiosk</h1>
    <p>Surface previews are served at <code>/stream/{index}</code>.</p>
    <p>Pipeline state: <a href="/api/status">/api/status</a> &middot;
       diagnostics: websocket at <code>/api/events</code>.</p>
</body>
</html>`
	w.Write([]byte(html))
}
