package reminders

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"bandaid/internal/models"
)

// nextOccurrence returns the instant intervalDays calendar days after start,
// keeping the wall-clock time of day.
func nextOccurrence(start time.Time, intervalDays int) (time.Time, error) {
	if intervalDays <= 0 {
		return time.Time{}, fmt.Errorf("recurring interval must be positive, got %d", intervalDays)
	}

	r, err := rrule.StrToRRule(fmt.Sprintf("FREQ=DAILY;INTERVAL=%d;COUNT=2", intervalDays))
	if err != nil {
		return time.Time{}, fmt.Errorf("build recurrence rule: %w", err)
	}
	r.DTStart(start)

	occ := r.All()
	if len(occ) < 2 {
		return time.Time{}, fmt.Errorf("recurrence rule yielded %d occurrences", len(occ))
	}
	return occ[1], nil
}

// nextGig builds the occurrence that follows gig.
func nextGig(gig models.Gig, loc *time.Location, id string, now time.Time) (models.Gig, error) {
	next, err := nextOccurrence(gig.Instant(loc), gig.ReminderSettings.RecurringIntervalDays)
	if err != nil {
		return models.Gig{}, err
	}

	out := gig
	out.ID = id
	out.Date = models.DateOf(next)
	out.ReminderSettings.HoursBeforeOptions = append([]int(nil), gig.ReminderSettings.HoursBeforeOptions...)
	out.CreatedAt = now
	out.UpdatedAt = now
	return out, nil
}
