package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseFilter builds a Filter from user input. Each value may itself be a
// comma-separated list; months are 1-12 or English names ("March", "mar").
func ParseFilter(years, months []string) (Filter, error) {
	var filter Filter
	for _, v := range splitValues(years) {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return Filter{}, fmt.Errorf("invalid year %q", v)
		}
		filter.Years = append(filter.Years, y)
	}
	for _, v := range splitValues(months) {
		m, err := ParseMonth(v)
		if err != nil {
			return Filter{}, err
		}
		filter.Months = append(filter.Months, m)
	}
	return filter, nil
}

// ParseMonth accepts 1-12 or an English month name or its three-letter abbreviation.
func ParseMonth(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("invalid month %q", v)
		}
		return n, nil
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), v) || strings.EqualFold(m.String()[:3], v) {
			return int(m), nil
		}
	}
	return 0, fmt.Errorf("invalid month %q", v)
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
