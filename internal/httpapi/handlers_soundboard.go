package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"officedj/internal/auth"
	"officedj/internal/soundboard"
)

type addSoundRequest struct {
	Title    string `json:"title"`
	VideoID  string `json:"video_id"`
	Color    string `json:"color"`
	Category string `json:"category"`
}

func (s *Server) handleListSounds(w http.ResponseWriter, r *http.Request) {
	sounds, err := s.sounds.List(r.Context())
	if err != nil {
		s.logger.Error("List sounds failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	if sounds == nil {
		sounds = []soundboard.Sound{}
	}
	writeJSON(w, http.StatusOK, sounds)
}

func (s *Server) handleAddSound(w http.ResponseWriter, r *http.Request) {
	var req addSoundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.VideoID == "" {
		writeError(w, http.StatusBadRequest, "title and video_id are required")
		return
	}

	sound, err := s.sounds.Add(r.Context(), req.Title, req.VideoID, req.Color, req.Category)
	if err != nil {
		s.logger.Error("Add sound failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusCreated, sound)
}

// handlePlaySound broadcasts the trigger; the clip plays in every connected
// browser, which is the entire point of an office soundboard.
func (s *Server) handlePlaySound(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	soundID := chi.URLParam(r, "soundID")

	sound, err := s.sounds.Get(r.Context(), soundID)
	if errors.Is(err, soundboard.ErrNotFound) {
		writeError(w, http.StatusNotFound, "sound not found")
		return
	}
	if err != nil {
		s.logger.Error("Get sound failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}

	s.soundsOut.PublishSound(r.Context(), soundboard.PlayEvent{
		SoundID:  sound.ID,
		Title:    sound.Title,
		VideoID:  sound.VideoID,
		PlayedBy: identity.DisplayName,
	})
	s.metrics.RecordSoundPlayed()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFavoriteSound(w http.ResponseWriter, r *http.Request) {
	soundID := chi.URLParam(r, "soundID")
	sound, err := s.sounds.ToggleFavorite(r.Context(), soundID)
	if errors.Is(err, soundboard.ErrNotFound) {
		writeError(w, http.StatusNotFound, "sound not found")
		return
	}
	if err != nil {
		s.logger.Error("Toggle favorite failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, sound)
}

func (s *Server) handleDeleteSound(w http.ResponseWriter, r *http.Request) {
	soundID := chi.URLParam(r, "soundID")
	err := s.sounds.Delete(r.Context(), soundID)
	if errors.Is(err, soundboard.ErrNotFound) {
		writeError(w, http.StatusNotFound, "sound not found")
		return
	}
	if err != nil {
		s.logger.Error("Delete sound failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.localizer.T("error.generic"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
