// internal/scheduler/holidays.go
package scheduler

import "time"

const dateLayout = "2006-01-02"

// HolidayCalendar is the external holiday-data collaborator. The scheduler
// never computes holidays itself.
type HolidayCalendar interface {
	IsHoliday(date time.Time, region string) bool
}

// HolidaySet is a date-set backed HolidayCalendar, used when the caller
// supplies resolved holiday dates directly.
type HolidaySet struct {
	dates map[string]struct{}
}

func NewHolidaySet(dates ...string) *HolidaySet {
	set := &HolidaySet{dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		set.dates[d] = struct{}{}
	}
	return set
}

func (s *HolidaySet) Add(date time.Time) {
	s.dates[date.Format(dateLayout)] = struct{}{}
}

func (s *HolidaySet) IsHoliday(date time.Time, _ string) bool {
	_, ok := s.dates[date.Format(dateLayout)]
	return ok
}
