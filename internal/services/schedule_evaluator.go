package services

import (
	"strings"
	"time"

	"geowatch/internal/config"
	"geowatch/internal/models"
	"geowatch/internal/utils"
	"geowatch/pkg/logger"
)

type ScheduleEvaluator interface {
	IsActiveNow(schedule *models.Schedule, now time.Time) bool
}

type scheduleEvaluator struct {
	mode     string
	location *time.Location
	logger   *logger.Logger
}

// NewScheduleEvaluator evaluates windows either in location or, for
// config.TimezoneModeSchedule, in the schedule's own zone when it loads.
func NewScheduleEvaluator(mode string, location *time.Location, log *logger.Logger) ScheduleEvaluator {
	if location == nil {
		location = time.UTC
	}
	return &scheduleEvaluator{
		mode:     mode,
		location: location,
		logger:   log.WithComponent("schedule_evaluator"),
	}
}

func (s *scheduleEvaluator) IsActiveNow(schedule *models.Schedule, now time.Time) bool {
	if schedule == nil || !schedule.Enabled {
		return true
	}

	start, err := utils.ParseClock(schedule.StartTime)
	if err != nil {
		s.logger.WithError(err).Warn("Ignoring schedule with malformed start time")
		return true
	}
	end, err := utils.ParseClock(schedule.EndTime)
	if err != nil {
		s.logger.WithError(err).Warn("Ignoring schedule with malformed end time")
		return true
	}

	local := now.In(s.locationFor(schedule))
	if !scheduleIncludesDay(schedule.Days, utils.WeekdayName(local)) {
		return false
	}

	t := utils.MinuteOfDay(local)
	if start <= end {
		return start <= t && t <= end
	}
	// overnight window, e.g. 22:00-06:00
	return t >= start || t <= end
}

func (s *scheduleEvaluator) locationFor(schedule *models.Schedule) *time.Location {
	if s.mode != config.TimezoneModeSchedule || schedule.Timezone == "" {
		return s.location
	}
	loc, ok := utils.LoadLocation(schedule.Timezone)
	if !ok {
		s.logger.WithField("timezone", schedule.Timezone).Warn("Unknown schedule timezone, using evaluator timezone")
		return s.location
	}
	return loc
}

// scheduleIncludesDay matches full names and three-letter abbreviations,
// ignoring case.
func scheduleIncludesDay(days []string, day string) bool {
	for _, d := range days {
		d = models.NormalizeDay(d)
		if d == day || (len(d) == 3 && strings.HasPrefix(day, d)) {
			return true
		}
	}
	return false
}
