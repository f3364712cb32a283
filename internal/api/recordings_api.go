package api

import (
	"errors"
	"net/http"
	"path/filepath"

	"bandaid/internal/recordings"
)

// maxAudioUpload caps the size of an uploaded audio file.
const maxAudioUpload = 200 << 20

type createRecordingRequest struct {
	Title    string `json:"title"`
	FileName string `json:"fileName"`
	Duration int64  `json:"duration"`
}

// GET /api/v1/recordings
func (s *HTTPServer) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"recordings": s.deps.Recordings.All(r.Context())})
}

// GET /api/v1/recordings/{id}
func (s *HTTPServer) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Recordings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// POST /api/v1/recordings
func (s *HTTPServer) handleCreateRecording(w http.ResponseWriter, r *http.Request) {
	var req createRecordingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := s.deps.Recordings.Create(r.Context(), req.Title, req.FileName, req.Duration)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// PUT /api/v1/recordings/{id}
func (s *HTTPServer) handleUpdateRecording(w http.ResponseWriter, r *http.Request) {
	var upd recordings.Update
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := s.deps.Recordings.Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DELETE /api/v1/recordings/{id}
func (s *HTTPServer) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recordings.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/recordings/{id}/audio
func (s *HTTPServer) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxAudioUpload)
	n, err := s.deps.Recordings.WriteAudio(r.Context(), r.PathValue("id"), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio file too large")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	s.logger.Info().Str("recording_id", r.PathValue("id")).Int64("bytes", n).Msg("Audio uploaded")
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/recordings/{id}/audio
func (s *HTTPServer) handleDownloadAudio(w http.ResponseWriter, r *http.Request) {
	f, rec, err := s.deps.Recordings.OpenAudio(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	name := filepath.Base(rec.URI)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}
