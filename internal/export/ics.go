// Package export renders the gig list as calendar and spreadsheet files.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"bandaid/internal/models"
)

const (
	productID   = "-//BandAid//Gigs//EN"
	uidDomain   = "bandaid"
	gigDuration = 2 * time.Hour
)

// ICS renders gigs as an iCalendar document. Each gig with reminders enabled
// carries one display alarm per configured reminder.
func ICS(gigs []models.Gig, loc *time.Location, now time.Time) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")

	for _, g := range gigs {
		start := g.Instant(loc)

		e := cal.AddEvent(fmt.Sprintf("%s@%s", g.ID, uidDomain))
		e.SetDtStampTime(now)
		if !g.CreatedAt.IsZero() {
			e.SetCreatedTime(g.CreatedAt)
		}
		if !g.UpdatedAt.IsZero() {
			e.SetModifiedAt(g.UpdatedAt)
		}
		e.SetStartAt(start)
		e.SetEndAt(start.Add(gigDuration))
		e.SetSummary(g.Title)
		if g.Description != "" {
			e.SetDescription(g.Description)
		}
		e.SetStatus(ics.ObjectStatusConfirmed)
		e.SetTimeTransparency(ics.TransparencyOpaque)
		e.SetSequence(0)

		if !g.ReminderSettings.Enabled {
			continue
		}
		for _, a := range alarms(g) {
			alarm := e.AddAlarm()
			alarm.SetAction(ics.ActionDisplay)
			alarm.AddProperty("TRIGGER;VALUE=DURATION", a.trigger)
			alarm.SetDescription(a.description)
		}
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize calendar: %w", err)
	}
	return buf.Bytes(), nil
}

type alarmSpec struct {
	trigger     string
	description string
}

func alarms(g models.Gig) []alarmSpec {
	s := g.ReminderSettings
	var out []alarmSpec
	if s.SevenDaysBefore {
		out = append(out, alarmSpec{"-P7D", "Upcoming Gig in 7 Days: " + g.Title})
	}
	if s.OneDayBefore {
		out = append(out, alarmSpec{"-P1D", "Gig Tomorrow: " + g.Title})
	}
	for _, h := range s.Hours() {
		unit := "Hours"
		if h == 1 {
			unit = "Hour"
		}
		out = append(out, alarmSpec{
			trigger:     fmt.Sprintf("-PT%dH", h),
			description: fmt.Sprintf("Gig in %d %s: %s", h, unit, g.Title),
		})
	}
	return out
}

// ReminderSummary describes a gig's reminders in one line, e.g. "7d, 1d, 3h".
func ReminderSummary(s models.ReminderSettings) string {
	if !s.Enabled {
		return "off"
	}
	var parts []string
	if s.SevenDaysBefore {
		parts = append(parts, "7d")
	}
	if s.OneDayBefore {
		parts = append(parts, "1d")
	}
	for _, h := range s.Hours() {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
