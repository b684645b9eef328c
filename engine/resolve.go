package engine

import (
	"fmt"

	"github.com/lastdb/lastdb/model"
	"github.com/lastdb/lastdb/timefmt"
)

// resolve turns a surviving record into display rows. logout is the
// effective logout time computed by Process: the recorded logout clamped to
// the last seen boot, or the last seen boot itself (noTime when none) for
// open sessions. Must run before trackReboot so that a boot marker is
// resolved against the boundary that preceded it in the pass.
func (e *Engine) resolve(rec model.Record, logout uint64) []model.Row {
	o := &e.opts

	host := rec.Host
	if o.Resolve != nil && host != "" {
		host = o.Resolve(host)
	}

	tty := rec.TTY
	if rec.Kind == model.Boot {
		tty = "system boot"
	}

	row := model.Row{
		User:    rec.User,
		TTY:     tty,
		Host:    host,
		Service: rec.Service,
		Login:   o.LoginFormat.Render(rec.Login),
	}

	switch {
	case rec.HasLogout:
		if !o.Compact {
			row.Logout = o.LogoutFormat.Render(logout)
		}
		row.Duration = formatLength(rec.Login, logout, ' ', o.Legacy)

	case o.Compact:
		if e.lastReboot == noTime {
			row.Duration = formatLength(rec.Login, o.Now, '.', o.Legacy)
		} else {
			row.Duration = formatLength(rec.Login, e.lastReboot, '?', o.Legacy)
		}

	case e.lastReboot != noTime:
		// Open session followed in pass order by a boot: no clean logout
		// was ever written, so it ended in a crash.
		row.Logout = "crash"

	default:
		switch {
		case rec.Kind == model.Boot:
			if o.LogoutFormat == timefmt.HHMM {
				row.Logout, row.Duration = "still", "running"
			} else {
				row.Logout = "still running"
			}
		case rec.Kind.Known():
			// Historical non-boot kinds render like user sessions.
			if o.LogoutFormat == timefmt.HHMM {
				row.Logout, row.Duration = "still", "logged in"
			} else {
				row.Logout = "still logged in"
			}
		default:
			row.Logout = "ERROR"
			row.Duration = fmt.Sprintf("Unknown: %d", rec.Kind)
		}
	}

	if o.ShowShutdown && rec.Kind == model.Boot && rec.HasLogout && e.lastReboot != noTime {
		down := model.Row{
			User:     "shutdown",
			TTY:      "system down",
			Host:     host,
			Service:  rec.Service,
			Login:    o.LoginFormat.Render(logout),
			Logout:   o.LogoutFormat.Render(e.lastReboot),
			Duration: formatLength(logout, e.lastReboot, ' ', o.Legacy),
		}
		// Injected ahead of the boot row it was derived from, which breaks
		// strict chronological order of the listing. Known limitation;
		// reordering is left to the caller.
		return []model.Row{down, row}
	}
	return []model.Row{row}
}
