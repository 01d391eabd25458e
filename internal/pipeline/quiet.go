package pipeline

import (
	"time"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

const fallbackZone = "Europe/Moscow"

// subscriberLocation resolves the subscriber's IANA zone. Subscribers
// carry real zone names, not fixed offsets, so DST shifts are honoured.
func subscriberLocation(s *domain.Subscriber) *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}

	loc, err := time.LoadLocation(fallbackZone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// localDate returns the current date (YYYY-MM-DD) in the subscriber's
// zone; quota counters reset on this boundary.
func localDate(now time.Time, s *domain.Subscriber) string {
	return now.In(subscriberLocation(s)).Format("2006-01-02")
}

// inQuietHours reports whether now falls inside the subscriber's
// quiet-hours window, computed in their local zone. Windows may wrap
// midnight ("22:00"–"09:00").
func inQuietHours(now time.Time, s *domain.Subscriber) bool {
	start, okStart := parseClock(s.QuietStart)
	end, okEnd := parseClock(s.QuietEnd)

	if !okStart || !okEnd || start == end {
		return false
	}

	local := now.In(subscriberLocation(s))
	minute := local.Hour()*60 + local.Minute()

	if start < end {
		return minute >= start && minute < end
	}

	// Wrapping window.
	return minute >= start || minute < end
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(raw string) (int, bool) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, false
	}

	return t.Hour()*60 + t.Minute(), true
}
