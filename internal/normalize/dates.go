package normalize

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// YearPolicy supplies the year for dates printed without one, e.g. "Jan 05".
type YearPolicy interface {
	Year() int
}

// FixedYear resolves every year-less date to the same year.
type FixedYear int

func (y FixedYear) Year() int { return int(y) }

// CurrentYear resolves year-less dates to the current year of its clock.
type CurrentYear struct {
	Now func() time.Time
}

func (c CurrentYear) Year() int {
	if c.Now == nil {
		return time.Now().Year()
	}
	return c.Now().Year()
}

// dateLayouts are tried in order against dates that carry a year.
// Numeric dates are month-first, as on US card statements.
var dateLayouts = []string{
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1-2-2006",
	"1/2/2006",
	"1/2/06",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
}

// yearlessLayouts have a year appended with the given separator before parsing,
// so that an impossible day in the resolved year (Feb 29) is rejected.
var yearlessLayouts = []struct {
	layout string
	sep    string
}{
	{"Jan 2", " "},
	{"January 2", " "},
	{"2 Jan", " "},
	{"2 January", " "},
	{"1/2", "/"},
}

// ParseDate parses s into a calendar date. It returns nil for empty or
// unparseable input, including impossible calendar days. It never panics.
func ParseDate(s string, years YearPolicy) *civil.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}

	if years == nil {
		return nil
	}
	year := years.Year()
	if year < 1 || year > 9999 {
		return nil
	}
	for _, yl := range yearlessLayouts {
		value := fmt.Sprintf("%s%s%04d", s, yl.sep, year)
		if t, err := time.Parse(yl.layout+yl.sep+"2006", value); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}

	return nil
}
