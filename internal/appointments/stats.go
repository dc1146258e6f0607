package appointments

import (
	"time"

	"clinician-console/internal/model"
)

type Stats struct {
	Today int
	Week  int
}

// Aggregate counts appointments on now's calendar date and in now's
// Sunday-to-Saturday week, both in now's location.
func Aggregate(list []model.Appointment, now time.Time) Stats {
	loc := now.Location()
	start, end := WeekWindow(now)
	y, m, d := now.Date()

	var s Stats
	for _, a := range list {
		t := a.DateTime.In(loc)
		if ay, am, ad := t.Date(); ay == y && am == m && ad == d {
			s.Today++
		}
		if !t.Before(start) && t.Before(end) {
			s.Week++
		}
	}
	return s
}

// WeekWindow is [Sunday 00:00, next Sunday 00:00) around now. Saturday
// counts in full, not only up to now's time of day.
func WeekWindow(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	start = today.AddDate(0, 0, -int(now.Weekday()))
	return start, start.AddDate(0, 0, 7)
}
