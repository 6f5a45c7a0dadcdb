// Package validate holds the pure input validators for booking steps.
//
// All validators are deterministic given the raw input (and, for dates, the
// reference time); they hold no state and perform no I/O.
package validate

import (
	"strings"
	"time"

	"github.com/kiara-bot/kiara/internal/models"
)

// dateLayouts are the accepted inbound date formats, tried in order.
var dateLayouts = []string{
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// DateOutputLayout is the normalized long-form rendering persisted and echoed
// back to the user.
const DateOutputLayout = "January 2, 2006"

// Phone validates a mobile number and returns its digit-only canonical form.
// Valid iff the digits are exactly 11 long and start with "09".
func Phone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cleaned := digits.String()
	if len(cleaned) != 11 || !strings.HasPrefix(cleaned, "09") {
		return "", models.ErrInvalidPhone
	}
	return cleaned, nil
}

// Date parses raw as a calendar date and checks it falls within
// [today, Dec 31 of today's year+2], both bounds inclusive. It returns the
// long-form rendering, e.g. "December 25, 2025".
func Date(raw string, now time.Time) (string, error) {
	trimmed := strings.TrimSpace(raw)
	var parsed time.Time
	ok := false
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, now.Location()); err == nil {
			parsed = t
			ok = true
			break
		}
	}
	if !ok {
		return "", models.ErrInvalidDate
	}

	minDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	maxDate := time.Date(now.Year()+2, time.December, 31, 0, 0, 0, 0, now.Location())
	if parsed.Before(minDate) || parsed.After(maxDate) {
		return "", models.ErrInvalidDate
	}

	return parsed.Format(DateOutputLayout), nil
}

// Choice validates raw against a step's declared options and returns the
// matched option value.
func Choice(raw string, options []models.ChoiceOption) (string, error) {
	trimmed := strings.TrimSpace(raw)
	for _, opt := range options {
		if strings.EqualFold(trimmed, opt.Value) {
			return opt.Value, nil
		}
	}
	return "", models.ErrInvalidChoice
}
