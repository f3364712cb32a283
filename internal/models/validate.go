package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidGig is returned when a gig fails validation.
var ErrInvalidGig = errors.New("invalid gig")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the gig's fields.
func (g *Gig) Validate() error {
	var problems []string

	if strings.TrimSpace(g.Title) == "" {
		problems = append(problems, "Please enter a title for the gig")
	}
	if g.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if g.Time.Hour < 0 || g.Time.Hour > 23 || g.Time.Minute < 0 || g.Time.Minute > 59 {
		problems = append(problems, "time is out of range")
	}

	if err := validate.Struct(g); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			switch fieldName(fe) {
			case "Title":
				// reported above
			case "HoursBeforeOptions":
				problems = append(problems, "hours before must be positive")
			case "RecurringIntervalDays":
				problems = append(problems, "recurring interval must be a positive number of days")
			default:
				problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidGig, strings.Join(dedupe(problems), "; "))
}

// fieldName drops the element index validator appends for dive errors.
func fieldName(fe validator.FieldError) string {
	name := fe.StructField()
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
