package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"officedj/internal/auth"
	"officedj/internal/core"
)

type addTrackRequest struct {
	SpotifySongID string  `json:"spotify_song_id"`
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	AlbumCoverURL *string `json:"album_cover_url"`
	DurationMs    int     `json:"duration_ms"`
}

type reorderRequest struct {
	Moves []struct {
		ID       string `json:"id"`
		Position int    `json:"position"`
	} `json:"moves"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.queue.ListQueue(r.Context())
	if err != nil {
		s.logger.Error("List queue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	s.metrics.SetQueueSize(len(entries))
	if entries == nil {
		entries = []core.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	identity, _ := auth.FromContext(r.Context())

	if !s.floodgate.Allow("add", identity.UserID) {
		s.metrics.RecordFloodReject("add")
		writeError(w, http.StatusTooManyRequests, s.localizer.T("error.flood_limited"))
		return
	}

	var req addTrackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SpotifySongID == "" || req.Title == "" || req.Artist == "" {
		writeError(w, http.StatusBadRequest, "spotify_song_id, title and artist are required")
		return
	}

	entry, err := s.queue.Insert(r.Context(), core.NewQueueEntry{
		SpotifySongID: req.SpotifySongID,
		Title:         req.Title,
		Artist:        req.Artist,
		AlbumCoverURL: req.AlbumCoverURL,
		DurationMs:    req.DurationMs,
		AddedByUserID: identity.UserID,
		AddedByName:   identity.DisplayName,
	})
	if err != nil {
		s.logger.Error("Insert queue entry failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}

	s.metrics.RecordTrackAdded()
	s.metrics.RecordRequestDuration("queue_add", time.Since(started))
	if s.resolver != nil {
		s.resolver.ResolveAsync(*entry)
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleDeleteTrack removes a queued entry. Only the user who added the entry
// may remove it; skipping the current track is a separate, unrestricted action.
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	songID := chi.URLParam(r, "songID")

	entries, err := s.queue.ListQueue(r.Context())
	if err != nil {
		s.logger.Error("List queue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	var target *core.QueueEntry
	for i := range entries {
		if entries[i].ID == songID {
			target = &entries[i]
			break
		}
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "queue entry not found")
		return
	}
	if target.AddedByUserID != identity.UserID {
		writeError(w, http.StatusForbidden, s.localizer.T("error.not_authorized"))
		return
	}

	if err := s.queue.Delete(r.Context(), songID); err != nil {
		s.logger.Error("Delete queue entry failed", zap.String("songID", songID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReorder applies each move as an independent single-row update, in
// request order. Concurrent reorders from different clients can interleave;
// the next resync settles everyone on the stored order.
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Moves) == 0 || len(req.Moves) > 2 {
		writeError(w, http.StatusBadRequest, "reorder takes one or two moves")
		return
	}

	for _, move := range req.Moves {
		if err := s.queue.UpdatePosition(r.Context(), move.ID, move.Position); err != nil {
			s.logger.Error("Reorder move failed", zap.String("id", move.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	if err := s.playback.Skip(r.Context()); err != nil {
		s.logger.Error("Skip failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	s.metrics.RecordSkip()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.playback.State()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.playback.Start(r.Context()); err != nil {
		s.logger.Error("Start failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.playback.State()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.playback.Pause(r.Context()); err != nil {
		s.logger.Error("Pause failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.playback.State()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.playback.Resume(r.Context()); err != nil {
		s.logger.Error("Resume failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.playback.State()})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.playback.Toggle(r.Context()); err != nil {
		s.logger.Error("Toggle failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.playback.State()})
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		writeError(w, http.StatusBadRequest, "volume must be between 0 and 1")
		return
	}
	if err := s.playback.SetVolume(r.Context(), req.Volume); err != nil {
		s.logger.Error("Set volume failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListReactions(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "songID")
	reactions, err := s.reactions.ListReactions(r.Context(), []string{songID})
	if err != nil {
		s.logger.Error("List reactions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	if reactions == nil {
		reactions = []core.Reaction{}
	}
	writeJSON(w, http.StatusOK, reactions)
}

func (s *Server) handleSetReaction(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	songID := chi.URLParam(r, "songID")

	if !s.floodgate.Allow("react", identity.UserID) {
		s.metrics.RecordFloodReject("react")
		writeError(w, http.StatusTooManyRequests, s.localizer.T("error.flood_limited"))
		return
	}

	var req reactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Emoji == "" {
		writeError(w, http.StatusBadRequest, "emoji is required")
		return
	}

	reaction, err := s.reactions.SetReaction(r.Context(), songID, identity.UserID, identity.DisplayName, req.Emoji)
	if err != nil {
		s.logger.Error("Set reaction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}

	if reaction == nil {
		// Same emoji twice toggles the reaction off.
		s.metrics.RecordReaction("removed")
		writeJSON(w, http.StatusOK, map[string]any{"removed": true})
		return
	}
	s.metrics.RecordReaction("set")
	writeJSON(w, http.StatusOK, reaction)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.ListHistory(r.Context())
	if err != nil {
		s.logger.Error("List history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.history.Leaderboard(r.Context())
	if err != nil {
		s.logger.Error("Leaderboard failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
