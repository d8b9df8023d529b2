// internal/scheduler/generator.go
package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"postflow-service/internal/domain/campaign"
	xerrors "postflow-service/internal/pkg/errors"
)

// Jitter bounds: slot hours never leave [6, 22] and minutes never leave
// [0, 59] after randomization. Clamping can collapse two distinct slots into
// an identical timestamp; that collision is accepted, not corrected.
const (
	jitterHourMin = 6
	jitterHourMax = 22
)

// Generate expands campaign rules over the inclusive [StartDate, EndDate]
// range into an ascending list of publish timestamps in the campaign
// timezone. It is a pure function: the holiday calendar and random source
// are passed in, and repeated calls with the same inputs and a same-seeded
// source return identical output.
func Generate(rules campaign.Rules, holidays HolidayCalendar, rng RandomSource) ([]time.Time, error) {
	loc, err := validateRules(rules)
	if err != nil {
		return nil, err
	}

	slots, err := parsePostingTimes(rules.PostingTimes)
	if err != nil {
		return nil, err
	}

	minInterval := time.Duration(rules.MinimumIntervalMinutes) * time.Minute

	start := time.Date(rules.StartDate.Year(), rules.StartDate.Month(), rules.StartDate.Day(), 0, 0, 0, 0, loc)
	end := time.Date(rules.EndDate.Year(), rules.EndDate.Month(), rules.EndDate.Day(), 0, 0, 0, 0, loc)

	var out []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if rules.SkipWeekends && isWeekend(day) {
			continue
		}
		if rules.SkipHolidays && holidays != nil && holidays.IsHoliday(day, rules.Timezone) {
			continue
		}

		candidates := make([]time.Time, 0, rules.PostsPerDay)
		for i := 0; i < rules.PostsPerDay; i++ {
			hour, minute := slotFor(slots, i)
			if rules.RandomizeTimes {
				hour, minute = jitter(hour, minute, rng)
			}
			candidates = append(candidates, time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc))
		}

		sort.Slice(candidates, func(a, b int) bool { return candidates[a].Before(candidates[b]) })

		// Greedy left-to-right: keep the first candidate, then each next one
		// only if it is at least the minimum interval after the last kept.
		// Tight intervals may yield fewer than PostsPerDay slots on a day.
		lastKept := time.Time{}
		for _, c := range candidates {
			if !lastKept.IsZero() && c.Sub(lastKept) < minInterval {
				continue
			}
			out = append(out, c)
			lastKept = c
		}
	}

	return out, nil
}

func validateRules(rules campaign.Rules) (*time.Location, error) {
	if rules.StartDate.IsZero() || rules.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start_date and end_date are required", xerrors.ErrInvalidRules)
	}
	if rules.EndDate.Before(rules.StartDate) {
		return nil, fmt.Errorf("%w: end_date is before start_date", xerrors.ErrInvalidRules)
	}
	if rules.PostsPerDay < 1 {
		return nil, fmt.Errorf("%w: posts_per_day must be positive", xerrors.ErrInvalidRules)
	}
	if len(rules.PostingTimes) > rules.PostsPerDay {
		return nil, fmt.Errorf("%w: posting_times has %d entries but posts_per_day is %d",
			xerrors.ErrInvalidRules, len(rules.PostingTimes), rules.PostsPerDay)
	}
	if rules.MinimumIntervalMinutes < 0 {
		return nil, fmt.Errorf("%w: minimum_interval_minutes cannot be negative", xerrors.ErrInvalidRules)
	}

	if rules.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(rules.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", xerrors.ErrInvalidRules, rules.Timezone)
	}
	return loc, nil
}

type daySlot struct {
	hour   int
	minute int
}

func parsePostingTimes(times []string) ([]daySlot, error) {
	slots := make([]daySlot, 0, len(times))
	for _, raw := range times {
		parts := strings.SplitN(raw, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: posting time %q is not HH:MM", xerrors.ErrInvalidRules, raw)
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("%w: posting time %q has invalid hour", xerrors.ErrInvalidRules, raw)
		}
		minute, err := strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("%w: posting time %q has invalid minute", xerrors.ErrInvalidRules, raw)
		}
		slots = append(slots, daySlot{hour: hour, minute: minute})
	}
	return slots, nil
}

// slotFor returns the explicit posting time for index i, or a synthesized
// overflow slot spread over a 12-hour window from 09:00 in 2-hour steps.
func slotFor(slots []daySlot, i int) (hour, minute int) {
	if i < len(slots) {
		return slots[i].hour, slots[i].minute
	}
	return 9 + (i*2)%12, 0
}

func jitter(hour, minute int, rng RandomSource) (int, int) {
	hour += rng.Intn(3) - 1     // [-1, 1]
	minute += rng.Intn(61) - 30 // [-30, 30]
	return clamp(hour, jitterHourMin, jitterHourMax), clamp(minute, 0, 59)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
