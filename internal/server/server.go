// Package server exposes the share persistence endpoints over HTTP, backed
// by a sharestore.Store. It speaks the same wire contract the share client
// consumes.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AssetVal/HeatMap/internal/sharestore"
	"github.com/AssetVal/HeatMap/pkg/share"
)

// Server handles share persistence requests.
type Server struct {
	store sharestore.Store
}

// New creates a share server over the given store.
func New(store sharestore.Store) *Server {
	return &Server{store: store}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/saveHeatmapData", s.handleSave)
	r.Post("/loadHeatmapData", s.handleLoad)
	return r
}

type saveRequest struct {
	Addresses []share.Address `json:"addresses"`
}

type loadRequest struct {
	HeatmapID string `json:"heatmapID"`
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "invalid request body"})
		return
	}

	// Points without coordinates are dropped, not rejected; the stored set
	// must be renderable as-is.
	kept := make([]share.Address, 0, len(req.Addresses))
	for _, a := range req.Addresses {
		if a.HasCoordinates() {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "no addresses with coordinates"})
		return
	}

	id, err := s.store.SaveHeatmap(r.Context(), kept)
	if err != nil {
		zap.L().Error("save heatmap failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "store failure"})
		return
	}

	zap.L().Info("heatmap saved", zap.String("id", id), zap.Int("addresses", len(kept)))
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"_id": id}})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HeatmapID == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "heatmapID is required"})
		return
	}

	addresses, err := s.store.LoadHeatmap(r.Context(), req.HeatmapID)
	if err != nil {
		if eris.Is(err, sharestore.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{Error: "heatmap not found"})
			return
		}
		zap.L().Error("load heatmap failed", zap.String("id", req.HeatmapID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "store failure"})
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]any{"addresses": addresses},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
