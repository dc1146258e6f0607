package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Week is the fixed display order of the schedule editor.
var Week = [7]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDay matches case-insensitively; ok is false for anything outside monday..sunday.
func ParseDay(s string) (Day, bool) {
	d := Day(strings.ToLower(strings.TrimSpace(s)))
	for _, w := range Week {
		if w == d {
			return d, true
		}
	}
	return "", false
}

// Label is the display name, e.g. "Tuesday".
func (d Day) Label() string {
	if d == "" {
		return ""
	}
	return strings.ToUpper(string(d[:1])) + string(d[1:])
}

// WorkingHour is the wire shape of one weekday, both in the profile
// response and in the bulk replace body.
type WorkingHour struct {
	Day         string `json:"day"`
	IsAvailable bool   `json:"isAvailable"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

type DoctorProfile struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Specialization string        `json:"specialization,omitempty"`
	WorkingHours   []WorkingHour `json:"workingHours,omitempty"`
}

// Complete reports whether the profile may reach the main console:
// a specialization is set and at least one day is available.
func (p *DoctorProfile) Complete() bool {
	if p == nil || p.Specialization == "" {
		return false
	}
	return AnyAvailable(p.WorkingHours)
}

func AnyAvailable(hours []WorkingHour) bool {
	for _, h := range hours {
		if h.IsAvailable {
			return true
		}
	}
	return false
}

// DayAvailability is the in-memory editor model for one weekday.
type DayAvailability struct {
	Day       Day
	Available bool
	Start     string
	End       string
}

func (d DayAvailability) Wire() WorkingHour {
	return WorkingHour{
		Day:         string(d.Day),
		IsAvailable: d.Available,
		StartTime:   d.Start,
		EndTime:     d.End,
	}
}

type Appointment struct {
	ID          string    `json:"id"`
	PatientName string    `json:"patientName"`
	DateTime    time.Time `json:"dateTime"`
	Reason      string    `json:"reason"`
}

// backend may send zone-less local timestamps
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

func (a *Appointment) UnmarshalJSON(b []byte) error {
	type alias Appointment
	var raw struct {
		alias
		DateTime string `json:"dateTime"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Appointment(raw.alias)
	if raw.DateTime == "" {
		return nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw.DateTime, time.Local); err == nil {
			a.DateTime = t
			return nil
		}
	}
	return fmt.Errorf("appointment %s: bad dateTime %q", a.ID, raw.DateTime)
}
