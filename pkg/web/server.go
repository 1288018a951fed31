// Package web serves analysis results over HTTP and streams analysis events.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/analysis"
	"github.com/ritzau/graph-analyzer/pkg/graph"
	"github.com/ritzau/graph-analyzer/pkg/lens"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/pubsub"
	"github.com/ritzau/graph-analyzer/pkg/search"
)

// Source supplies the latest analysis result, nil before the first one
type Source interface {
	Latest() (*analysis.Report, *graph.Index)
}

// NodeInfo describes one node and its neighbours
type NodeInfo struct {
	Name      string            `json:"name"`
	Op        string            `json:"op"`
	Inputs    []string          `json:"inputs"`
	Consumers []string          `json:"consumers"`
	Attrs     map[string]string `json:"attrs"` // Attribute name -> kind
}

// SearchResult is the outcome of a bounded search
type SearchResult struct {
	Start   string   `json:"start"`
	Pattern []string `json:"pattern"`
	Budget  int      `json:"budget"`
	Found   bool     `json:"found"`
	Match   string   `json:"match,omitempty"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	source    Source
	publisher pubsub.Publisher
}

// NewServer creates a new web server. Events are streamed from publisher.
func NewServer(source Source, publisher pubsub.Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		source:    source,
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/report", s.handleReport).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/nodes/{name:.+}", s.handleNode).Methods("GET")
	s.router.HandleFunc("/api/search", s.handleSearch).Methods("GET")
	s.router.HandleFunc("/api/subgraph", s.handleSubgraph).Methods("GET")
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.TopicAnalysisStatus && topic != pubsub.TopicReport {
		http.Error(w, fmt.Sprintf("unknown topic %q", topic), http.StatusNotFound)
		return
	}

	// Subscribe before writing headers so a closed publisher can still be reported
	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	// Stream events
	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
			return
		}
		flush(w)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, _, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, r, report)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	_, idx, ok := s.latest(w)
	if !ok {
		return
	}

	data := lens.FromIndex(idx)
	query := r.URL.Query()
	if focus := query["focus"]; len(focus) > 0 {
		depth := 1
		if raw := query.Get("depth"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				http.Error(w, fmt.Sprintf("invalid depth %q", raw), http.StatusBadRequest)
				return
			}
			depth = v
		}
		data = lens.Focus(data, focus, depth)
	}
	writeJSON(w, r, data)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	_, idx, ok := s.latest(w)
	if !ok {
		return
	}

	name := mux.Vars(r)["name"]
	node, exists := idx.Lookup(name)
	if !exists {
		http.Error(w, fmt.Sprintf("node %q not found", name), http.StatusNotFound)
		return
	}

	info := NodeInfo{
		Name:      node.Name,
		Op:        node.Op,
		Inputs:    append([]string{}, node.Inputs...),
		Consumers: []string{},
		Attrs:     make(map[string]string, len(node.Attrs)),
	}
	for _, consumer := range idx.Consumers(node.Name) {
		info.Consumers = append(info.Consumers, consumer.Name)
	}
	for key, value := range node.Attrs {
		info.Attrs[key] = string(value.Kind())
	}
	writeJSON(w, r, info)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	_, idx, ok := s.latest(w)
	if !ok {
		return
	}

	query := r.URL.Query()
	start, exists := idx.Lookup(query.Get("start"))
	if !exists {
		http.Error(w, fmt.Sprintf("start node %q not found", query.Get("start")), http.StatusNotFound)
		return
	}
	patterns := query["pattern"]
	if len(patterns) == 0 {
		http.Error(w, "at least one pattern is required", http.StatusBadRequest)
		return
	}

	budget := search.DefaultBudget
	if raw := query.Get("budget"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, fmt.Sprintf("invalid budget %q", raw), http.StatusBadRequest)
			return
		}
		budget = v
	}
	opts := []search.Option{search.WithBudget(budget)}
	if track, _ := strconv.ParseBool(query.Get("track_visited")); track {
		opts = append(opts, search.WithVisitedTracking())
	}

	result := SearchResult{Start: start.Name, Pattern: patterns, Budget: budget}
	if match := search.Search(idx, start, search.Patterns(patterns), opts...); match != nil {
		result.Found = true
		result.Match = match.Name
	}
	writeJSON(w, r, result)
}

func (s *Server) handleSubgraph(w http.ResponseWriter, r *http.Request) {
	_, idx, ok := s.latest(w)
	if !ok {
		return
	}

	patterns := r.URL.Query()["pattern"]
	if len(patterns) == 0 {
		http.Error(w, "at least one pattern is required", http.StatusBadRequest)
		return
	}

	inputs := []string{}
	for _, node := range search.SubgraphInputs(idx, search.Patterns(patterns)) {
		inputs = append(inputs, node.Name)
	}
	writeJSON(w, r, map[string]interface{}{
		"pattern": patterns,
		"inputs":  inputs,
	})
}

// latest writes 503 and returns false until the first analysis has completed
func (s *Server) latest(w http.ResponseWriter) (*analysis.Report, *graph.Index, bool) {
	report, idx := s.source.Latest()
	if report == nil || idx == nil {
		http.Error(w, "analysis not ready", http.StatusServiceUnavailable)
		return nil, nil, false
	}
	return report, idx, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WarnContext(r.Context(), "failed to encode response", "error", err)
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start serves on the given port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrap(err, "web server failed")
	}
	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Request contexts derive from ctx, so open
// SSE streams end as soon as shutdown begins.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "web server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "web server shutdown failed")
		}
		return nil
	}
}
