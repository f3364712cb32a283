package reminders

import (
	"strconv"
	"time"

	"bandaid/internal/models"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

func itoa(n int) string { return strconv.Itoa(n) }

// BuildNotifications derives every reminder the gig's settings ask for, with
// fire times computed from instant by exact duration subtraction. Elapsed
// candidates are included; the caller filters them.
func BuildNotifications(gig models.Gig, instant time.Time) []Notification {
	s := gig.ReminderSettings
	date := gig.Date.String()
	clock := gig.Time.String()

	var out []Notification
	if s.SevenDaysBefore {
		out = append(out, Notification{
			ID:     NotificationID(gig.ID, TagSevenDays),
			FireAt: instant.Add(-week),
			Content: Content{
				Title: "Upcoming Gig in 7 Days",
				Body:  gig.Title + " - " + date + " at " + clock,
				Data:  Payload{GigID: gig.ID, Type: TagSevenDays},
			},
		})
	}
	if s.OneDayBefore {
		out = append(out, Notification{
			ID:     NotificationID(gig.ID, TagOneDay),
			FireAt: instant.Add(-day),
			Content: Content{
				Title: "Gig Tomorrow!",
				Body:  gig.Title + " - " + clock,
				Data:  Payload{GigID: gig.ID, Type: TagOneDay},
			},
		})
	}
	for _, h := range s.Hours() {
		unit := "Hours"
		if h == 1 {
			unit = "Hour"
		}
		tag := HoursTag(h)
		out = append(out, Notification{
			ID:     NotificationID(gig.ID, tag),
			FireAt: instant.Add(-time.Duration(h) * time.Hour),
			Content: Content{
				Title: "Gig in " + itoa(h) + " " + unit + "!",
				Body:  gig.Title + " starts at " + clock,
				Data:  Payload{GigID: gig.ID, Type: tag},
			},
		})
	}
	return out
}
