package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"officedj/internal/catalog"
	"officedj/internal/core"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	tracks, err := s.searcher.Search(r.Context(), query)
	if err != nil {
		s.metrics.RecordSearch("error")
		s.logger.Error("Catalog search failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusBadGateway, s.localizer.T("error.search_failed"))
		return
	}

	s.metrics.RecordSearch("ok")
	if tracks == nil {
		tracks = []core.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// handleYouTubeLookup resolves a fallback video synchronously. The response
// carries a null video_id when every mirror came up empty; that is a valid
// outcome, not an error.
func (s *Server) handleYouTubeLookup(w http.ResponseWriter, r *http.Request) {
	artist := r.URL.Query().Get("artist")
	title := r.URL.Query().Get("title")
	if artist == "" || title == "" {
		writeError(w, http.StatusBadRequest, "artist and title are required")
		return
	}

	videoID, err := s.finder.Find(r.Context(), artist, title)
	if errors.Is(err, catalog.ErrNoVideo) {
		s.metrics.RecordLookup("miss")
		writeJSON(w, http.StatusOK, map[string]any{"video_id": nil})
		return
	}
	if err != nil {
		s.metrics.RecordLookup("error")
		s.logger.Error("Fallback lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, s.localizer.T("error.generic"))
		return
	}

	s.metrics.RecordLookup("hit")
	writeJSON(w, http.StatusOK, map[string]any{"video_id": videoID})
}

type positionReport struct {
	PositionMs int `json:"position_ms"`
	DurationMs int `json:"duration_ms"`
}

type endedReport struct {
	EntryID string `json:"entry_id"`
}

func (s *Server) handleEmbeddedPosition(w http.ResponseWriter, r *http.Request) {
	if s.positions == nil {
		writeError(w, http.StatusConflict, "embedded player backend not active")
		return
	}
	var report positionReport
	if !decodeJSON(w, r, &report) {
		return
	}
	s.positions.ReportPosition(report.PositionMs, report.DurationMs)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEmbeddedEnded(w http.ResponseWriter, r *http.Request) {
	if s.positions == nil {
		writeError(w, http.StatusConflict, "embedded player backend not active")
		return
	}
	var report endedReport
	if !decodeJSON(w, r, &report) {
		return
	}
	s.positions.ReportEnded(report.EntryID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
