// Package engine reconstructs session history from a newest-first stream of
// login accounting records. It is a single-pass reducer: the only state
// carried between records is the earliest boot marker seen so far, the
// earliest login time, and the emit counter. No record is revisited.
package engine

import (
	"github.com/lastdb/lastdb/model"
	"github.com/lastdb/lastdb/timefmt"
)

// noTime is the "not seen yet" sentinel for microsecond timestamps. Every
// real timestamp compares below it, so min-updates and clamps work without
// a separate flag.
const noTime = ^uint64(0)

// Options configure one reconstruction pass.
type Options struct {
	Since   uint64   // drop records that started before this instant (0 = unset)
	Until   uint64   // drop records that started after this instant (0 = unset)
	Present uint64   // keep only sessions alive at this instant (0 = unset)
	Match   []string // exact user or tty matches; empty matches everything
	Limit   uint64   // stop emitting after this many records (0 = unlimited)

	OpenOnly     bool // show open sessions only
	Compact      bool // single consolidated duration column, no logout
	Legacy       bool // minute instead of second duration precision
	ShowShutdown bool // synthesize shutdown rows for closed boot markers

	LoginFormat  timefmt.Format
	LogoutFormat timefmt.Format

	// Now is the wall clock of the invocation, used to size sessions that
	// are still open.
	Now uint64

	// Resolve optionally rewrites the remote host for display (DNS
	// translation). Nil leaves hosts untouched.
	Resolve func(string) string
}

// Source is a finite, non-restartable stream of records, newest first. It
// follows the sql.Rows access pattern.
type Source interface {
	Next() bool
	Record() model.Record
	Err() error
}

// Renderer receives resolved rows one at a time and the earliest-record
// footer once the pass is complete.
type Renderer interface {
	Row(model.Row) error
	Finish(earliest uint64, hasRecords bool) error
}

// Engine is the single-pass session reducer. Its state belongs to exactly
// one pass and must not be shared across invocations.
type Engine struct {
	opts Options

	lastReboot uint64 // earliest boot time seen so far in pass order
	earliest   uint64 // earliest login across every record read
	emitted    uint64
}

// New creates an engine for a single pass over a record stream.
func New(opts Options) *Engine {
	return &Engine{opts: opts, lastReboot: noTime, earliest: noTime}
}

// Earliest reports the oldest login time read so far and whether any record
// has been read at all. It covers every record, displayed or not.
func (e *Engine) Earliest() (uint64, bool) {
	return e.earliest, e.earliest != noTime
}

// trackReboot records boot markers as the new session-lifetime boundary.
// Every record must pass through here exactly once, dropped or not: records
// later in the pass (chronologically older) depend on this state even when
// this record is never shown.
func (e *Engine) trackReboot(rec model.Record) {
	if rec.Kind == model.Boot && rec.Login < e.lastReboot {
		e.lastReboot = rec.Login
	}
}

// Process runs one record through the filter, boundary-tracker and resolver
// steps and returns the rows it produced: none, one, or two when a shutdown
// row is synthesized.
func (e *Engine) Process(rec model.Record) []model.Row {
	if rec.Login < e.earliest {
		e.earliest = rec.Login
	}

	o := &e.opts
	if o.Limit > 0 && e.emitted >= o.Limit {
		e.trackReboot(rec)
		return nil
	}

	if (o.Since != 0 && rec.Login < o.Since) ||
		(o.Until != 0 && rec.Login > o.Until) ||
		(o.Present != 0 && o.Present < rec.Login) {
		e.trackReboot(rec)
		return nil
	}

	// Sessions cannot outlive the machine: clamp the logout to the next
	// boot, and treat a missing logout as "ended at the next boot" until
	// the resolver decides otherwise.
	logout := e.lastReboot
	if rec.HasLogout {
		logout = rec.Logout
		if logout > e.lastReboot {
			logout = e.lastReboot
		}
	}

	if o.Present != 0 && logout < o.Present {
		e.trackReboot(rec)
		return nil
	}

	if len(o.Match) > 0 && !matches(o.Match, rec.User, rec.TTY) {
		e.trackReboot(rec)
		return nil
	}

	if rec.HasLogout && o.OpenOnly {
		e.trackReboot(rec)
		return nil
	}

	rows := e.resolve(rec, logout)
	e.trackReboot(rec)
	e.emitted++
	return rows
}

func matches(match []string, user, tty string) bool {
	for _, m := range match {
		if user == m || tty == m {
			return true
		}
	}
	return false
}

// Run drains src through the engine into out and finishes with the
// earliest-record footer. The source decides when the stream ends; there is
// no early termination, so a limited pass still costs one full scan.
func Run(src Source, eng *Engine, out Renderer) error {
	for src.Next() {
		for _, row := range eng.Process(src.Record()) {
			if err := out.Row(row); err != nil {
				return err
			}
		}
	}
	if err := src.Err(); err != nil {
		return err
	}
	earliest, ok := eng.Earliest()
	return out.Finish(earliest, ok)
}
