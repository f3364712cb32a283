package reminders

import (
	"context"
	"time"

	"bandaid/internal/models"
)

// Offset tags identify which relative reminder a notification belongs to.
const (
	TagSevenDays = "7days"
	TagOneDay    = "1day"
)

// HoursTag returns the offset tag for a reminder n hours before a gig.
func HoursTag(n int) string {
	return itoa(n) + "hours"
}

// NotificationID returns the identifier of the gig's reminder with the given tag.
func NotificationID(gigID, tag string) string {
	return gigID + "-" + tag
}

// Payload references the gig a notification is about.
type Payload struct {
	GigID string `json:"gigId"`
	Type  string `json:"type"`
}

// Content is what the user sees when a notification fires.
type Content struct {
	Title string  `json:"title"`
	Body  string  `json:"body"`
	Data  Payload `json:"data"`
}

// Notification is one scheduled alert registration.
type Notification struct {
	ID      string    `json:"identifier"`
	FireAt  time.Time `json:"fireAt"`
	Content Content   `json:"content"`
}

// Sink stores scheduled notifications until they are delivered.
type Sink interface {
	// Schedule registers n, replacing any registration with the same ID.
	Schedule(ctx context.Context, n Notification) error

	// Cancel removes the registration with the given ID. Unknown IDs are ignored.
	Cancel(ctx context.Context, id string) error

	// Complete removes n once it has fired, unless its ID has since been
	// rescheduled for a different fire time.
	Complete(ctx context.Context, n Notification) error

	// ListAll returns every registration ordered by fire time.
	ListAll(ctx context.Context) ([]Notification, error)

	// RequestPermission reports whether notifications may be scheduled.
	RequestPermission(ctx context.Context) (bool, error)
}

// Deliverer shows a due notification to the user.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification, policy DisplayPolicy) error
}

// GigRepository is the part of the gig store the scheduler needs.
type GigRepository interface {
	GetAll(ctx context.Context) []models.Gig
	Upsert(ctx context.Context, gig models.Gig) error
	RolloverOf(ctx context.Context, sourceID string) (string, bool)
	RecordRollover(ctx context.Context, sourceID, nextID string) error
}
