package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// HourOptions are the hour offsets offered by the gig form.
var HourOptions = []int{1, 2, 3, 4, 5, 6, 12}

// Date is a timezone-naive calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a timezone-naive time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ClockOf returns the wall-clock time of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseClock parses a 24-hour HH:mm string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q; expected HH:mm", s)
	}
	return ClockOf(t), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ReminderSettings configures which reminders a gig gets and whether it recurs.
type ReminderSettings struct {
	Enabled               bool  `json:"enabled"`
	SevenDaysBefore       bool  `json:"sevenDaysBefore"`
	OneDayBefore          bool  `json:"oneDayBefore"`
	HoursBeforeOptions    []int `json:"hoursBeforeOptions" validate:"dive,gt=0"`
	Recurring             bool  `json:"recurring"`
	RecurringIntervalDays int   `json:"recurringIntervalDays" validate:"required_if=Recurring true,gte=0"`
}

// DefaultReminderSettings returns the settings a new gig starts with.
func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		Enabled:               true,
		SevenDaysBefore:       false,
		OneDayBefore:          true,
		HoursBeforeOptions:    []int{3},
		Recurring:             false,
		RecurringIntervalDays: 7,
	}
}

// Hours returns the hour offsets as a sorted set of positive values.
func (s ReminderSettings) Hours() []int {
	seen := make(map[int]struct{}, len(s.HoursBeforeOptions))
	out := make([]int, 0, len(s.HoursBeforeOptions))
	for _, h := range s.HoursBeforeOptions {
		if h <= 0 {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}

// Gig is a scheduled performance or rehearsal.
type Gig struct {
	ID               string           `json:"id"`
	Title            string           `json:"title" validate:"required"`
	Description      string           `json:"description"`
	Date             Date             `json:"date"`
	Time             Clock            `json:"time"`
	ReminderSettings ReminderSettings `json:"reminderSettings"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Instant combines the gig's date and time into one instant in loc.
func (g *Gig) Instant(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(g.Date.Year, g.Date.Month, g.Date.Day, g.Time.Hour, g.Time.Minute, 0, 0, loc)
}

// Before reports whether g is ordered before other by (date, time).
func (g *Gig) Before(other *Gig) bool {
	return g.sortKey() < other.sortKey()
}

func (g *Gig) sortKey() string {
	return g.Date.String() + "T" + g.Time.String()
}

// SortGigs orders gigs ascending by (date, time), keeping the relative order of equal instants.
func SortGigs(gigs []Gig) {
	sort.SliceStable(gigs, func(i, j int) bool {
		return gigs[i].Before(&gigs[j])
	})
}
