// Package server exposes the engine to a browser renderer: a JSON snapshot
// endpoint, node details with rendered summaries, and a WebSocket channel
// that streams per-tick frames and accepts interaction events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/repovis/repovis/internal/engine"
	"github.com/repovis/repovis/internal/tree"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
	TickRate int  // engine ticks (and broadcast frames) per second
}

// Server hosts the engine behind HTTP and WebSocket.
type Server struct {
	cfg        Config
	eng        *engine.Engine
	store      *tree.Store
	hub        *hub
	router     chi.Router
	httpServer *http.Server
}

// New creates a server around the given engine and tree store.
func New(cfg Config, eng *engine.Engine, store *tree.Store) *Server {
	s := &Server{
		cfg:   cfg,
		eng:   eng,
		store: store,
		hub:   newHub(),
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/graph", s.handleGraph)
	r.Get("/api/nodes/*", s.handleNode)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleGraph returns the current snapshot.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Snapshot())
}

// nodeDetails is the response shape for the node details endpoint.
type nodeDetails struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Size        int64  `json:"size"`
	Analyzed    bool   `json:"analyzed"`
	Summary     string `json:"summary,omitempty"`
	SummaryHTML string `json:"summary_html,omitempty"`
	Children    int    `json:"children"`
}

// handleNode returns tree-level details for one node, with the summary
// rendered to HTML.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	node, err := s.store.Node(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("node %s not found", id)})
		return
	}

	details := nodeDetails{
		ID:       node.ID,
		Name:     node.Name,
		Kind:     string(node.Kind),
		Size:     node.Size,
		Analyzed: node.Analyzed,
		Summary:  node.Summary,
		Children: len(node.Children),
	}
	if node.Summary != "" {
		html, err := renderMarkdown(node.Summary)
		if err != nil {
			log.Printf("server: render summary for %s: %v", id, err)
		} else {
			details.SummaryHTML = html
		}
	}
	writeJSON(w, http.StatusOK, details)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

// Router returns the chi router, mostly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start runs the engine tick loop and begins listening on the configured
// port. It blocks until the listener fails or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.eng.Run(ctx, s.cfg.TickRate, s.hub.broadcast)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("repovis server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
