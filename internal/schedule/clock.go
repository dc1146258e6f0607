package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultStart = "09:00"
	DefaultEnd   = "17:00"

	// Granularity is the step, in minutes, the time setters accept.
	Granularity = 15
)

// Minutes converts "HH:MM" to minute of day. A trailing ":SS", as the
// backend sometimes sends, is accepted and ignored.
func Minutes(t string) (int, error) {
	hh, mm, ok := strings.Cut(t, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("bad time %q", t)
	}
	if m, ss, ok := strings.Cut(mm, ":"); ok {
		if s, err := strconv.Atoi(ss); err != nil || len(ss) != 2 || s < 0 || s > 59 {
			return 0, fmt.Errorf("bad time %q", t)
		}
		mm = m
	}
	if len(mm) != 2 {
		return 0, fmt.Errorf("bad time %q", t)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad time %q", t)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad time %q", t)
	}
	return h*60 + m, nil
}

func Clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// TimeOptions lists every time of day on an interval-minute grid, from 00:00.
func TimeOptions(interval int) []string {
	if interval <= 0 {
		interval = Granularity
	}
	out := make([]string, 0, 24*60/interval)
	for m := 0; m < 24*60; m += interval {
		out = append(out, Clock(m))
	}
	return out
}
