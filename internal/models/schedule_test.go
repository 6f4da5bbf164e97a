package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTimeOfDay(t *testing.T) {
	assert.True(t, ValidTimeOfDay("00:00"))
	assert.True(t, ValidTimeOfDay("09:30"))
	assert.True(t, ValidTimeOfDay("23:59"))

	assert.False(t, ValidTimeOfDay("24:00"))
	assert.False(t, ValidTimeOfDay("9:30"))
	assert.False(t, ValidTimeOfDay("09:60"))
	assert.False(t, ValidTimeOfDay(""))
}

func TestScheduleRuleValidate(t *testing.T) {
	rule := ScheduleRule{PlaylistID: "pl-1", StartTime: "09:00", EndTime: "17:00", Priority: 1}
	require.NoError(t, rule.Validate())

	t.Run("missing playlist", func(t *testing.T) {
		r := ScheduleRule{StartTime: "09:00", EndTime: "17:00"}
		assert.ErrorIs(t, r.Validate(), ErrPlaylistIDRequired)
	})

	t.Run("bad time", func(t *testing.T) {
		r := ScheduleRule{PlaylistID: "pl", StartTime: "9am", EndTime: "17:00"}
		assert.ErrorIs(t, r.Validate(), ErrInvalidTimeOfDay)
	})

	t.Run("bad weekday", func(t *testing.T) {
		r := ScheduleRule{PlaylistID: "pl", StartTime: "09:00", EndTime: "17:00", DaysOfWeek: []string{"Funday"}}
		assert.ErrorIs(t, r.Validate(), ErrInvalidWeekday)
	})
}

func TestScheduleRuleAppliesOn(t *testing.T) {
	everyDay := ScheduleRule{PlaylistID: "pl", StartTime: "00:00", EndTime: "23:59"}
	assert.True(t, everyDay.AppliesOn(time.Monday))
	assert.True(t, everyDay.AppliesOn(time.Sunday))

	weekdaysOnly := ScheduleRule{
		PlaylistID: "pl", StartTime: "09:00", EndTime: "17:00",
		DaysOfWeek: []string{"Monday", "tuesday", "WEDNESDAY"},
	}
	assert.True(t, weekdaysOnly.AppliesOn(time.Monday))
	assert.True(t, weekdaysOnly.AppliesOn(time.Tuesday))
	assert.False(t, weekdaysOnly.AppliesOn(time.Saturday))
}

func TestScreenScheduleRules(t *testing.T) {
	var nilSched *ScreenSchedule
	assert.Empty(t, nilSched.Rules())

	sched := &ScreenSchedule{
		Current:  &ScheduleRule{PlaylistID: "pl-now", StartTime: "09:00", EndTime: "17:00"},
		Upcoming: []ScheduleRule{{PlaylistID: "pl-later", StartTime: "17:00", EndTime: "23:00"}},
	}
	rules := sched.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "pl-now", rules[0].PlaylistID)
	assert.Equal(t, "pl-later", rules[1].PlaylistID)
}
