package api

import (
	"bytes"
	"net/http"

	"bandaid/internal/export"
	"bandaid/internal/models"
	"bandaid/internal/reminders"
	"bandaid/internal/service"
)

// handleListGigs refreshes reminders and returns all gigs in date order.
// GET /api/v1/gigs
func (s *HTTPServer) handleListGigs(w http.ResponseWriter, r *http.Request) {
	gigs := s.deps.Gigs.List(r.Context())
	if gigs == nil {
		gigs = []models.Gig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"gigs": gigs})
}

// GET /api/v1/gigs/{id}
func (s *HTTPServer) handleGetGig(w http.ResponseWriter, r *http.Request) {
	gig, err := s.deps.Gigs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gig)
}

// POST /api/v1/gigs
func (s *HTTPServer) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	var in service.GigInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	gig, err := s.deps.Gigs.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, gig)
}

// PUT /api/v1/gigs/{id}
func (s *HTTPServer) handleUpdateGig(w http.ResponseWriter, r *http.Request) {
	var in service.GigInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	gig, err := s.deps.Gigs.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gig)
}

// DELETE /api/v1/gigs/{id}
func (s *HTTPServer) handleDeleteGig(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Gigs.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotifications lists every scheduled reminder.
// GET /api/v1/notifications
func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.listNotifications(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

// GET /api/v1/gigs.ics
func (s *HTTPServer) handleExportICS(w http.ResponseWriter, r *http.Request) {
	data, err := export.ICS(s.deps.Gigs.List(r.Context()), s.deps.Location, s.now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="gigs.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /api/v1/gigs.xlsx
func (s *HTTPServer) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	gigs := s.deps.Gigs.List(r.Context())

	list, err := s.listNotifications(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	rows := make([]export.NotificationRow, 0, len(list))
	for _, n := range list {
		rows = append(rows, export.NotificationRow{
			ID:     n.ID,
			GigID:  n.Content.Data.GigID,
			Type:   n.Content.Data.Type,
			FireAt: n.FireAt,
			Title:  n.Content.Title,
			Body:   n.Content.Body,
		})
	}

	var buf bytes.Buffer
	if err := export.Workbook(&buf, gigs, rows, s.deps.Location); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="gigs.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) listNotifications(r *http.Request) ([]reminders.Notification, error) {
	if s.deps.Notifications == nil {
		return []reminders.Notification{}, nil
	}
	list, err := s.deps.Notifications.ListAll(r.Context())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []reminders.Notification{}
	}
	return list, nil
}
