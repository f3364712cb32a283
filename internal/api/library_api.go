package api

import (
	"io"
	"net/http"

	"bandaid/internal/teleprompter"
)

type createTextRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ScrollSpeed int    `json:"scrollSpeed,omitempty"`
	FontSize    int    `json:"fontSize,omitempty"`
}

type createPlaylistRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TextIDs     []string `json:"textIds,omitempty"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type playlistTextRequest struct {
	TextID string `json:"textId"`
}

// GET /api/v1/settings
func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Settings.Load(r.Context()))
}

// handlePatchSettings merges the fields present in the body into the stored settings.
// PUT /api/v1/settings
func (s *HTTPServer) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	updated, err := s.deps.Settings.Patch(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// POST /api/v1/settings/reset
func (s *HTTPServer) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	def, err := s.deps.Settings.Reset(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// GET /api/v1/texts
func (s *HTTPServer) handleListTexts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"texts": s.deps.Library.Texts(r.Context())})
}

// GET /api/v1/texts/{id}
func (s *HTTPServer) handleGetText(w http.ResponseWriter, r *http.Request) {
	text, err := s.deps.Library.Text(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, text)
}

// POST /api/v1/texts
func (s *HTTPServer) handleCreateText(w http.ResponseWriter, r *http.Request) {
	var req createTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text, err := s.deps.Library.AddText(r.Context(), req.Title, req.Content, req.ScrollSpeed, req.FontSize)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, text)
}

// PUT /api/v1/texts/{id}
func (s *HTTPServer) handleUpdateText(w http.ResponseWriter, r *http.Request) {
	var upd teleprompter.TextUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text, err := s.deps.Library.UpdateText(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, text)
}

// DELETE /api/v1/texts/{id}
func (s *HTTPServer) handleDeleteText(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.DeleteText(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/texts/reorder
func (s *HTTPServer) handleReorderTexts(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.deps.Library.ReorderTexts(r.Context(), req.IDs); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"texts": s.deps.Library.Texts(r.Context())})
}

// GET /api/v1/playlists
func (s *HTTPServer) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"playlists": s.deps.Library.Playlists(r.Context())})
}

// GET /api/v1/playlists/{id}
func (s *HTTPServer) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Library.Playlist(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/v1/playlists
func (s *HTTPServer) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p, err := s.deps.Library.AddPlaylist(r.Context(), req.Name, req.Description, req.TextIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// PUT /api/v1/playlists/{id}
func (s *HTTPServer) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var upd teleprompter.PlaylistUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p, err := s.deps.Library.UpdatePlaylist(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DELETE /api/v1/playlists/{id}
func (s *HTTPServer) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.DeletePlaylist(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/playlists/reorder
func (s *HTTPServer) handleReorderPlaylists(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.deps.Library.ReorderPlaylists(r.Context(), req.IDs); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": s.deps.Library.Playlists(r.Context())})
}

// GET /api/v1/playlists/{id}/texts
func (s *HTTPServer) handlePlaylistTexts(w http.ResponseWriter, r *http.Request) {
	texts, err := s.deps.Library.PlaylistTexts(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"texts": texts})
}

// POST /api/v1/playlists/{id}/texts
func (s *HTTPServer) handleAddPlaylistText(w http.ResponseWriter, r *http.Request) {
	var req playlistTextRequest
	if err := decodeJSON(r, &req); err != nil || req.TextID == "" {
		writeError(w, http.StatusBadRequest, "textId is required")
		return
	}
	p, err := s.deps.Library.AddTextToPlaylist(r.Context(), r.PathValue("id"), req.TextID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DELETE /api/v1/playlists/{id}/texts/{textId}
func (s *HTTPServer) handleRemovePlaylistText(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Library.RemoveTextFromPlaylist(r.Context(), r.PathValue("id"), r.PathValue("textId"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
