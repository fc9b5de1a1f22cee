package engine

import (
	"fmt"
	"strings"
	"time"

	"contact-metrics/capacity"
	"contact-metrics/models"
)

// Filter narrows the events of a run. Empty fields match everything.
type Filter struct {
	// From and To bound the event date, inclusive, compared by calendar day.
	From     time.Time
	To       time.Time
	Sectors  []models.Sector
	Agents   []string
	Channels []string
}

// Match reports whether an event passes the filter.
func (f Filter) Match(ev models.ContactEvent) bool {
	date := ev.Timestamp.Format(capacity.DateLayout)
	if !f.From.IsZero() && date < f.From.Format(capacity.DateLayout) {
		return false
	}
	if !f.To.IsZero() && date > f.To.Format(capacity.DateLayout) {
		return false
	}
	if len(f.Sectors) > 0 && !contains(f.Sectors, ev.Sector) {
		return false
	}
	if len(f.Agents) > 0 && !containsFold(f.Agents, ev.AgentID) {
		return false
	}
	if len(f.Channels) > 0 && !containsFold(f.Channels, ev.Channel) {
		return false
	}
	return true
}

func contains(values []models.Sector, v models.Sector) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func containsFold(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

// FilterSpec is the textual form of a filter, as read from flags or query
// parameters. Date selects a single day and overrides From and To.
type FilterSpec struct {
	From     string
	To       string
	Date     string
	Sectors  []string
	Agents   []string
	Channels []string
}

// Build parses the textual values into a Filter, reading dates in loc.
func (s FilterSpec) Build(loc *time.Location) (Filter, error) {
	var f Filter
	var err error

	from, to := s.From, s.To
	if s.Date != "" {
		from, to = s.Date, s.Date
	}
	if f.From, err = parseDate(from, loc); err != nil {
		return Filter{}, fmt.Errorf("invalid from date: %w", err)
	}
	if f.To, err = parseDate(to, loc); err != nil {
		return Filter{}, fmt.Errorf("invalid to date: %w", err)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return Filter{}, fmt.Errorf("to date %s is before from date %s", to, from)
	}

	for _, v := range splitValues(s.Sectors) {
		f.Sectors = append(f.Sectors, models.ParseSector(v))
	}
	f.Agents = splitValues(s.Agents)
	f.Channels = splitValues(s.Channels)
	return f, nil
}

// ParseTime reads an instant given as RFC 3339 or as a wall clock
// "2006-01-02 15:04[:05]" in loc. An empty value is the zero time.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(capacity.DateLayout, value, loc)
}

// splitValues flattens repeated and comma-separated values.
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
