// Package schedule decides which playlist should be active at a given
// instant. Resolution is a pure function over the rule set; it holds no
// state and is re-evaluated on every check.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/marqueehq/marquee/internal/models"
)

// Resolve returns the playlist id that should be active at now, or "" when
// no rule matches and no fallback is given.
//
// A rule matches when now's weekday is in its day set (an empty set means
// every day) and its start and end times bound now's wall-clock minute,
// inclusive on both ends. Among matches the numerically lowest priority
// wins; ties break to the earliest start time.
func Resolve(now time.Time, rules []models.ScheduleRule, fallbackPlaylistID string) string {
	currentTime := fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())
	currentDay := now.Weekday()

	var best *models.ScheduleRule
	for i := range rules {
		rule := &rules[i]
		if !rule.AppliesOn(currentDay) {
			continue
		}
		// Fixed-width "HH:MM" makes lexicographic comparison valid.
		if currentTime < rule.StartTime || currentTime > rule.EndTime {
			continue
		}

		if best == nil ||
			rule.Priority < best.Priority ||
			(rule.Priority == best.Priority && rule.StartTime < best.StartTime) {
			best = rule
		}
	}

	if best != nil {
		return best.PlaylistID
	}
	return fallbackPlaylistID
}

// Boundaries returns the distinct start and end times across all rules,
// sorted ascending. The reconciliation loop schedules targeted checks
// around each boundary.
func Boundaries(rules []models.ScheduleRule) []string {
	seen := make(map[string]struct{})
	var boundaries []string
	add := func(t string) {
		if !models.ValidTimeOfDay(t) {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		boundaries = append(boundaries, t)
	}

	for i := range rules {
		add(rules[i].StartTime)
		add(rules[i].EndTime)
	}

	sort.Strings(boundaries)
	return boundaries
}
