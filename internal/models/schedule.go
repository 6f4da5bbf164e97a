package models

import (
	"regexp"
	"strings"
	"time"
)

// timeOfDayPattern matches the fixed "HH:MM" wall-clock format used by
// schedule rules. The fixed width makes lexicographic comparison valid.
var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTimeOfDay reports whether s is a well-formed "HH:MM" time.
func ValidTimeOfDay(s string) bool {
	return timeOfDayPattern.MatchString(s)
}

// weekdayNames maps lowercase weekday names to time.Weekday.
var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday parses a weekday name (case-insensitive, full name).
func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// ScheduleRule is a time/day-bounded assignment of a playlist to a screen.
// Rules are immutable snapshots fetched from the directory; lower priority
// values take precedence when rules overlap.
type ScheduleRule struct {
	PlaylistID string   `json:"playlistId"`
	StartTime  string   `json:"startTime"` // "HH:MM", inclusive
	EndTime    string   `json:"endTime"`   // "HH:MM", inclusive
	Priority   int      `json:"priority"`
	DaysOfWeek []string `json:"daysOfWeek,omitempty"` // absent = every day
}

// Validate checks a rule for structural errors.
func (r *ScheduleRule) Validate() error {
	if r.PlaylistID == "" {
		return ErrPlaylistIDRequired
	}
	if !ValidTimeOfDay(r.StartTime) || !ValidTimeOfDay(r.EndTime) {
		return ErrInvalidTimeOfDay
	}
	for _, day := range r.DaysOfWeek {
		if _, ok := ParseWeekday(day); !ok {
			return ErrInvalidWeekday
		}
	}
	return nil
}

// AppliesOn reports whether the rule is in effect on the given weekday.
// A rule with no DaysOfWeek applies on all seven days.
func (r *ScheduleRule) AppliesOn(day time.Weekday) bool {
	if len(r.DaysOfWeek) == 0 {
		return true
	}
	for _, name := range r.DaysOfWeek {
		if d, ok := ParseWeekday(name); ok && d == day {
			return true
		}
	}
	return false
}

// ScreenSchedule is the schedule block of a screen document.
type ScreenSchedule struct {
	Current  *ScheduleRule  `json:"current,omitempty"`
	Upcoming []ScheduleRule `json:"upcoming,omitempty"`
}

// Rules returns current plus upcoming rules as one slice for resolution.
func (s *ScreenSchedule) Rules() []ScheduleRule {
	if s == nil {
		return nil
	}
	rules := make([]ScheduleRule, 0, len(s.Upcoming)+1)
	if s.Current != nil {
		rules = append(rules, *s.Current)
	}
	rules = append(rules, s.Upcoming...)
	return rules
}

// Screen is the directory document for a display.
type Screen struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Status            string          `json:"status"`
	CurrentPlaylistID string          `json:"currentPlaylistId,omitempty"`
	NextPlaylistID    string          `json:"nextPlaylistId,omitempty"`
	Schedule          *ScreenSchedule `json:"schedule,omitempty"`
}

// Area is the directory document for the area a screen belongs to.
type Area struct {
	AreaID            string `json:"areaId"`
	CurrentPlaylistID string `json:"currentPlaylistId,omitempty"`
}
