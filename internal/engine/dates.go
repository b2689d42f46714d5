package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the format of the start and end dates of a range query.
const DateLayout = "2006-01-02"

// keyDateLayouts are tried in order when KeyDate is stored as text.
var keyDateLayouts = []string{
	"01/02/2006 03:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006 03:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"2006-01-02 15:04:05",
	time.RFC3339,
	DateLayout,
}

// window is an inclusive range of calendar days.
type window struct {
	start, end time.Time
}

func parseWindow(start, end string) (window, error) {
	s, err := parseDay("start_date", start)
	if err != nil {
		return window{}, err
	}
	e, err := parseDay("end_date", end)
	if err != nil {
		return window{}, err
	}
	if s.After(e) {
		return window{}, validationf("start_date %s is after end_date %s", start, end)
	}
	return window{start: s, end: e}, nil
}

func parseDay(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, validationf("%s is required", field)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, validationf("%s: %q is not a YYYY-MM-DD date", field, value)
	}
	return t, nil
}

// contains reports whether the calendar day of t, in t's own location, lies
// within the window.
func (w window) contains(t time.Time) bool {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !day.Before(w.start) && !day.After(w.end)
}

// parseKeyDate converts a KeyDate cell to an instant.
func parseKeyDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range keyDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", val)
	case nil:
		return time.Time{}, errors.New("missing date")
	default:
		return time.Time{}, fmt.Errorf("unsupported date value of type %T", v)
	}
}
