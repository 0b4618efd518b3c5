package command

import (
	"fmt"
	"strings"
	"time"
)

// Weekdays holds one flag per day, Monday first
type Weekdays [7]bool

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdaysFromByte unpacks the wire form (Monday is bit 0)
func WeekdaysFromByte(b byte) Weekdays {
	var w Weekdays
	for i := range w {
		w[i] = b&(1<<i) != 0
	}
	return w
}

// Byte packs the flags into the wire form
func (w Weekdays) Byte() byte {
	var b byte
	for i, on := range w {
		if on {
			b |= 1 << i
		}
	}
	return b
}

// Has reports whether the flag for a time.Weekday is set
func (w Weekdays) Has(d time.Weekday) bool {
	// time.Sunday is 0
	return w[(int(d)+6)%7]
}

// String returns a comma separated list such as "Mon,Wed,Fri", or "none"
func (w Weekdays) String() string {
	var days []string
	for i, on := range w {
		if on {
			days = append(days, weekdayNames[i])
		}
	}
	if len(days) == 0 {
		return "none"
	}
	return strings.Join(days, ",")
}

// ParseWeekdays parses the String form. "all" and "none" are accepted, and
// day names are matched case-insensitively on their first three letters.
func ParseWeekdays(s string) (Weekdays, error) {
	var w Weekdays
	s = strings.TrimSpace(strings.ToLower(s))

	switch s {
	case "", "none":
		return w, nil
	case "all":
		return Weekdays{true, true, true, true, true, true, true}, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 3 {
			return w, fmt.Errorf("invalid weekday %q", part)
		}
		found := false
		for i, name := range weekdayNames {
			if strings.ToLower(name) == part[:3] {
				w[i] = true
				found = true
				break
			}
		}
		if !found {
			return w, fmt.Errorf("invalid weekday %q", part)
		}
	}
	return w, nil
}
