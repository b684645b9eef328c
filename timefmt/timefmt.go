// Package timefmt renders and parses the timestamp formats of the CLI.
// Display formats are kept as strftime specs, matching the historical last
// output byte for byte.
package timefmt

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// UsecPerSec converts between microsecond timestamps and seconds.
const UsecPerSec = 1_000_000

// Format selects one of the timestamp renderings supported by the CLI.
type Format int

const (
	Ctime   Format = iota + 1 // ctime-style full date
	Short                     // "Mon Jan  2 15:04"
	HHMM                      // hour and minute only
	NoTime                    // suppressed
	ISO                       // ISO8601, same as the original last command
	Compact                   // date and time, no day name
)

var specs = map[Format]string{
	Short:   "%a %b %e %H:%M",
	HHMM:    "%H:%M",
	ISO:     "%FT%T%z",
	Compact: "%F %T",
}

// Render formats a microsecond timestamp in the local time zone.
func (f Format) Render(usec uint64) string {
	t := time.Unix(int64(usec/UsecPerSec), 0)
	switch f {
	case NoTime:
		return ""
	case Ctime:
		return t.Format(time.ANSIC)
	}
	return strftime.Format(specs[f], t)
}

// Mode bundles the login/logout formats and field widths selected by one
// --time-format value.
type Mode struct {
	Login     Format
	LoginLen  int
	Logout    Format
	LogoutLen int
}

// ModeByName resolves a --time-format argument.
func ModeByName(name string) (Mode, error) {
	switch name {
	case "notime":
		return Mode{NoTime, 0, NoTime, 0}, nil
	case "short":
		return Mode{Short, 16, HHMM, 5}, nil
	case "full":
		return Mode{Ctime, 24, Ctime, 24}, nil
	case "iso":
		return Mode{ISO, 25, ISO, 25}, nil
	case "compact":
		return Mode{Compact, 19, Compact, 19}, nil
	}
	return Mode{}, fmt.Errorf("invalid time format '%s'", name)
}

// Absolute date or date+time expressions.
var datetimeLayouts = mustLayouts("%Y%m%d%H%M%S", "%Y-%m-%d %T", "%Y-%m-%d %R", "%Y-%m-%d")

// Time-of-day expressions, combined with today's date.
var timeLayouts = mustLayouts("%T", "%R")

func mustLayouts(specs ...string) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		layout, err := strftime.Layout(s)
		if err != nil {
			panic(err)
		}
		out[i] = layout
	}
	return out
}

// Parse turns a user-supplied time expression into microseconds since the
// epoch. Accepted forms: YYYYMMDDHHMMSS, "YYYY-MM-DD [HH:MM[:SS]]",
// "HH:MM[:SS]" (today), and the words now, today, yesterday, tomorrow.
func Parse(expr string) (uint64, error) {
	now := time.Now()

	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, expr, time.Local); err == nil {
			return uint64(t.Unix()) * UsecPerSec, nil
		}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, expr, time.Local); err == nil {
			t = time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, time.Local)
			return uint64(t.Unix()) * UsecPerSec, nil
		}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	switch expr {
	case "now":
		return uint64(now.Unix()) * UsecPerSec, nil
	case "today":
		return uint64(midnight.Unix()) * UsecPerSec, nil
	case "yesterday":
		return uint64(midnight.AddDate(0, 0, -1).Unix()) * UsecPerSec, nil
	case "tomorrow":
		return uint64(midnight.AddDate(0, 0, 1).Unix()) * UsecPerSec, nil
	}
	return 0, fmt.Errorf("invalid time value '%s'", expr)
}
