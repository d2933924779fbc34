package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/recommend"
	"github.com/hyperjump/osusume/internal/storage"
)

const (
	msgNotFound       = "Movie not found"
	msgInternal       = "Something went wrong"
	msgInvalidRequest = "invalid request body"
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).DecodeContext(r.Context(), &req); err != nil {
		s.respondError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := req.Validate(); err != nil {
		s.logger.Debug("rejected recommend request", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	s.logger.Debug("recommend request",
		zap.String("movie", req.Movie),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	recs, err := s.engine.Recommend(r.Context(), req.Movie)
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		s.respondJSON(w, http.StatusNotFound, models.NotFoundResponse{
			Error:       msgNotFound,
			Results:     []models.Recommendation{},
			Suggestions: s.suggestionsFor(r, req.Movie),
		})
	case err != nil:
		s.logger.Error("recommend failed",
			zap.String("movie", req.Movie),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		s.respondError(w, http.StatusInternalServerError, msgInternal)
	default:
		s.respondJSON(w, http.StatusOK, recs)
	}
}

// suggestionsFor returns "did you mean" titles for an unknown query. Failures are logged and ignored.
func (s *Server) suggestionsFor(r *http.Request, movie string) []string {
	limit := s.config.Recommend.SuggestLimit
	if s.suggester == nil || limit <= 0 || movie == "" {
		return nil
	}
	found, err := s.suggester.Suggest(r.Context(), movie, limit)
	if err != nil {
		s.logger.Debug("suggestions failed", zap.String("movie", movie), zap.Error(err))
		return nil
	}
	titles := make([]string, len(found))
	for i, sg := range found {
		titles[i] = sg.Title
	}
	return titles
}

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Catalog().Titles())
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		s.respondError(w, http.StatusNotImplemented, "suggestions not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := s.config.Recommend.SuggestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxSuggestLimit {
		limit = maxSuggestLimit
	}
	found, err := s.suggester.Suggest(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("suggest failed", zap.String("q", q), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":       q,
		"suggestions": found,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()
	resp := map[string]interface{}{
		"items":        s.engine.Catalog().Len(),
		"matrix_dtype": string(store.DType()),
		"matrix_bytes": store.SizeBytes(),
		"k":            s.engine.K(),
	}
	configInfo := map[string]interface{}{
		"catalog_path":             s.config.Data.CatalogPath,
		"matrix_path":              s.config.Data.MatrixPath,
		"enrichment_base_url":      s.config.Enrichment.BaseURL,
		"enrichment_timeout":       s.config.Enrichment.Timeout.String(),
		"enrichment_max_in_flight": s.config.Enrichment.MaxInFlight,
		"api_key_configured":       s.config.Enrichment.APIKey != "",
	}
	diskBytes, err := storage.DiskUsageBytes(s.config.Data.CatalogPath, s.config.Data.MatrixPath)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	} else {
		s.logger.Debug("status: disk usage failed", zap.Error(err))
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
