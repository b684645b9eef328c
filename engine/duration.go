package engine

import (
	"fmt"

	"github.com/lastdb/lastdb/timefmt"
)

// formatLength renders the elapsed time between start and stop with the
// one-byte state marker in front, e.g. " (1+02:48:41)". Zero-day and
// zero-hour cases collapse the leading components. Legacy mode truncates to
// minute precision, matching historical minute-resolution accounting.
func formatLength(start, stop uint64, marker byte, legacy bool) string {
	secs := (stop - start) / timefmt.UsecPerSec
	mins := (secs / 60) % 60
	hours := (secs / 3600) % 24
	days := secs / 86400

	if legacy {
		switch {
		case days > 0:
			return fmt.Sprintf("%c(%d+%02d:%02d)", marker, days, hours, mins)
		case hours > 0:
			return fmt.Sprintf("%c(%02d:%02d)", marker, hours, mins)
		default:
			return fmt.Sprintf("%c(00:%02d)", marker, mins)
		}
	}

	secs %= 60
	switch {
	case days > 0:
		return fmt.Sprintf("%c(%d+%02d:%02d:%02d)", marker, days, hours, mins, secs)
	case hours > 0:
		return fmt.Sprintf("%c(%02d:%02d:%02d)", marker, hours, mins, secs)
	default:
		return fmt.Sprintf("%c(00:%02d:%02d)", marker, mins, secs)
	}
}
