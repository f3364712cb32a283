package export

import (
	"fmt"
	"io"
	"time"

	"bandaid/internal/models"
)

var gigColumns = []string{"Title", "Date", "Time", "Description", "Reminders", "Recurring", "Every (days)", "Created", "Updated"}

var notificationColumns = []string{"Identifier", "Gig", "Type", "Fires at", "Title", "Body"}

// NotificationRow is one scheduled reminder as listed in the workbook.
type NotificationRow struct {
	ID     string
	GigID  string
	Type   string
	FireAt time.Time
	Title  string
	Body   string
}

// Workbook writes the gig list, and the scheduled reminders if any, as an
// Excel workbook to out.
func Workbook(out io.Writer, gigs []models.Gig, notifications []NotificationRow, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	w := NewExcelizeWriter()
	defer w.Close()

	if err := w.AddSheet("Gigs"); err != nil {
		return err
	}
	if err := w.WriteHeader(gigColumns); err != nil {
		return err
	}
	for _, g := range gigs {
		interval := ""
		if g.ReminderSettings.Recurring {
			interval = fmt.Sprint(g.ReminderSettings.RecurringIntervalDays)
		}
		row := []interface{}{
			g.Title,
			g.Date.String(),
			g.Time.String(),
			g.Description,
			ReminderSummary(g.ReminderSettings),
			yesNo(g.ReminderSettings.Recurring),
			interval,
			formatTime(g.CreatedAt, loc),
			formatTime(g.UpdatedAt, loc),
		}
		if err := w.WriteRow(row); err != nil {
			return fmt.Errorf("write gig %s: %w", g.ID, err)
		}
	}

	if len(notifications) > 0 {
		if err := w.AddSheet("Reminders"); err != nil {
			return err
		}
		if err := w.WriteHeader(notificationColumns); err != nil {
			return err
		}
		for _, n := range notifications {
			row := []interface{}{n.ID, n.GigID, n.Type, formatTime(n.FireAt, loc), n.Title, n.Body}
			if err := w.WriteRow(row); err != nil {
				return fmt.Errorf("write reminder %s: %w", n.ID, err)
			}
		}
	}

	return w.Save(out)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
