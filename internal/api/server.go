// Package api exposes the admin HTTP surface: runtime status, the detection
// region of interest, the card library and the trigger event log.
package api

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartenwerk/schallpappenspieler/internal/catalog"
	"github.com/kartenwerk/schallpappenspieler/internal/monitoring"
	"github.com/kartenwerk/schallpappenspieler/internal/pipeline"
)

// Store is the slice of the catalog the API needs.
type Store interface {
	ListCards() ([]catalog.Card, error)
	AddCard(code, title, artist, coverPath string) (catalog.Card, error)
	RecentEvents(limit int) ([]catalog.TriggerEvent, error)
}

// Server serves the admin API.
type Server struct {
	stats *pipeline.Stats
	roi   *pipeline.ROIStore
	store Store

	httpServer *http.Server
}

// New creates a Server. store may be nil when the catalog is disabled; the
// card and event endpoints then return 404.
func New(addr string, stats *pipeline.Stats, roi *pipeline.ROIStore, store Store) *Server {
	s := &Server{stats: stats, roi: roi, store: store}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately so tests can drive it
// with httptest.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/api/roi", s.handleGetROI).Methods("GET")
	r.HandleFunc("/api/roi", s.handlePutROI).Methods("PUT")
	r.HandleFunc("/api/roi", s.handleDeleteROI).Methods("DELETE")
	if s.store != nil {
		r.HandleFunc("/api/cards", s.handleListCards).Methods("GET")
		r.HandleFunc("/api/cards", s.handleAddCard).Methods("POST")
		r.HandleFunc("/api/events", s.handleEvents).Methods("GET")
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("api: shutdown: %v", err)
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: encode response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type roiPayload struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

func (p roiPayload) rect() image.Rectangle {
	return image.Rect(p.X0, p.Y0, p.X1, p.Y1)
}

type statusResponse struct {
	pipeline.StatsSnapshot
	ROI *roiPayload `json:"roi,omitempty"`
}

func (s *Server) currentROI() *roiPayload {
	rect, ok := s.roi.Current()
	if !ok {
		return nil
	}
	return &roiPayload{X0: rect.Min.X, Y0: rect.Min.Y, X1: rect.Max.X, Y1: rect.Max.Y}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		StatsSnapshot: s.stats.Snapshot(),
		ROI:           s.currentROI(),
	})
}

func (s *Server) handleGetROI(w http.ResponseWriter, r *http.Request) {
	roi := s.currentROI()
	if roi == nil {
		http.Error(w, "no roi set", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, roi)
}

// handlePutROI sets the detection region. An empty body clears it.
func (s *Server) handlePutROI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		s.roi.Clear()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var payload roiPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid roi json: "+err.Error(), http.StatusBadRequest)
		return
	}
	rect := payload.rect()
	if rect.Empty() {
		http.Error(w, "roi is empty", http.StatusBadRequest)
		return
	}
	s.roi.Set(rect)
	writeJSON(w, http.StatusOK, s.currentROI())
}

func (s *Server) handleDeleteROI(w http.ResponseWriter, r *http.Request) {
	s.roi.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.store.ListCards()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cards == nil {
		cards = []catalog.Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

type addCardRequest struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid card json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	card, err := s.store.AddCard(req.Code, req.Title, req.Artist, "")
	if err != nil {
		// The only insert failure mode for a well-formed request is the
		// unique code constraint.
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.store.RecentEvents(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []catalog.TriggerEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
