package untis

import "time"

// Lesson is one timetable period.
type Lesson struct {
	Subject string    `json:"subject"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Room    string    `json:"room"`
	Classes []string  `json:"classes"`
}

// Holiday is one school holiday range.
type Holiday struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// untisDate converts the wire format yyyymmdd integer to a time.Time at
// midnight local time. Returns the zero time for zero input.
func untisDate(d int) time.Time {
	if d == 0 {
		return time.Time{}
	}
	year := d / 10000
	month := time.Month(d / 100 % 100)
	day := d % 100
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

// untisDateTime combines the yyyymmdd date and hhmm clock integers of the
// wire format into one local timestamp.
func untisDateTime(d, hm int) time.Time {
	day := untisDate(d)
	if day.IsZero() {
		return day
	}
	return day.Add(time.Duration(hm/100)*time.Hour + time.Duration(hm%100)*time.Minute)
}

// asUntisDate renders a timestamp in the yyyymmdd wire format.
func asUntisDate(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
