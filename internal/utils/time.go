package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func FormatTimeISO(t time.Time) string {
	return t.Format(time.RFC3339)
}

// LoadLocation resolves an IANA zone name, returning ok=false when it is
// empty or unknown.
func LoadLocation(timezone string) (*time.Location, bool) {
	if strings.TrimSpace(timezone) == "" {
		return nil, false
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}

// MinuteOfDay truncates t to the minute and returns minutes after midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// WeekdayName is the lowercase English weekday of t.
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}
