package engine

import (
	"testing"

	"github.com/lastdb/lastdb/model"
	"github.com/lastdb/lastdb/timefmt"
)

// base is an arbitrary epoch instant (microseconds); tests build streams
// relative to it.
const base = uint64(1_700_000_000) * timefmt.UsecPerSec

func usec(secs int64) uint64 {
	return uint64(int64(base) + secs*timefmt.UsecPerSec)
}

func user(name string, login uint64) model.Record {
	return model.Record{Kind: model.UserProcess, User: name, Login: login, TTY: "pts/0"}
}

func closed(name string, login, logout uint64) model.Record {
	r := user(name, login)
	r.Logout = logout
	r.HasLogout = true
	return r
}

func boot(login uint64) model.Record {
	return model.Record{Kind: model.Boot, User: "reboot", Login: login, TTY: "~"}
}

func defaultOpts() Options {
	return Options{
		LoginFormat:  timefmt.Short,
		LogoutFormat: timefmt.HHMM,
		Now:          usec(10_000),
	}
}

func TestCrashClassificationAfterBoot(t *testing.T) {
	// Newest first: alice closed, a boot, then bob with no logout. Bob's
	// session must be understood as ended by the boot.
	eng := New(defaultOpts())

	rows := eng.Process(closed("alice", usec(0), usec(3600)))
	if len(rows) != 1 {
		t.Fatalf("alice: got %d rows; want 1", len(rows))
	}
	if rows[0].Duration != " (01:00:00)" {
		t.Errorf("alice duration = %q; want %q", rows[0].Duration, " (01:00:00)")
	}

	rows = eng.Process(boot(usec(-7200)))
	if len(rows) != 1 {
		t.Fatalf("boot: got %d rows; want 1", len(rows))
	}
	if rows[0].TTY != "system boot" {
		t.Errorf("boot tty = %q; want %q", rows[0].TTY, "system boot")
	}
	if rows[0].Logout != "still" || rows[0].Duration != "running" {
		t.Errorf("boot logout/duration = %q/%q; want still/running", rows[0].Logout, rows[0].Duration)
	}

	rows = eng.Process(user("bob", usec(-10_000)))
	if len(rows) != 1 {
		t.Fatalf("bob: got %d rows; want 1", len(rows))
	}
	if rows[0].Logout != "crash" {
		t.Errorf("bob logout = %q; want %q", rows[0].Logout, "crash")
	}
}

func TestCrashDurationClippedToBootCompact(t *testing.T) {
	opts := defaultOpts()
	opts.Compact = true
	eng := New(opts)

	eng.Process(boot(usec(-7200)))
	rows := eng.Process(user("bob", usec(-10_000)))
	if len(rows) != 1 {
		t.Fatalf("got %d rows; want 1", len(rows))
	}
	// 10000-7200 = 2800 seconds from login to the boot that ended it.
	if rows[0].Duration != "?(00:46:40)" {
		t.Errorf("duration = %q; want %q", rows[0].Duration, "?(00:46:40)")
	}
}

func TestOpenSessionStillLiveBeforeAnyBoot(t *testing.T) {
	eng := New(defaultOpts())
	rows := eng.Process(user("alice", usec(0)))
	if len(rows) != 1 {
		t.Fatalf("got %d rows; want 1", len(rows))
	}
	if rows[0].Logout != "still" || rows[0].Duration != "logged in" {
		t.Errorf("logout/duration = %q/%q; want still/logged in", rows[0].Logout, rows[0].Duration)
	}
}

func TestOpenSessionVerboseLogoutFormat(t *testing.T) {
	opts := defaultOpts()
	opts.LogoutFormat = timefmt.Ctime
	eng := New(opts)
	rows := eng.Process(user("alice", usec(0)))
	if rows[0].Logout != "still logged in" || rows[0].Duration != "" {
		t.Errorf("logout/duration = %q/%q; want %q/empty",
			rows[0].Logout, rows[0].Duration, "still logged in")
	}
}

func TestCompactOpenSessionMeasuredToNow(t *testing.T) {
	opts := defaultOpts()
	opts.Compact = true
	opts.Now = usec(320)
	eng := New(opts)
	rows := eng.Process(user("alice", usec(0)))
	if rows[0].Duration != ".(00:05:20)" {
		t.Errorf("duration = %q; want %q", rows[0].Duration, ".(00:05:20)")
	}
}

func TestLogoutClampedToLastReboot(t *testing.T) {
	eng := New(defaultOpts())
	eng.Process(boot(usec(0)))
	// Closed session whose recorded logout lies past the boot: the session
	// cannot have outlived the machine.
	rows := eng.Process(closed("alice", usec(-3600), usec(900)))
	if rows[0].Duration != " (01:00:00)" {
		t.Errorf("duration = %q; want %q (clamped to boot)", rows[0].Duration, " (01:00:00)")
	}
}

func TestRebootTrackerMonotonic(t *testing.T) {
	eng := New(defaultOpts())
	eng.Process(boot(usec(0)))
	eng.Process(boot(usec(-5000)))
	if eng.lastReboot != usec(-5000) {
		t.Errorf("lastReboot = %d; want %d", eng.lastReboot, usec(-5000))
	}
	// Older boots only: a later (newer) value must never win. Streams are
	// newest-first so this cannot happen from a well-formed source, but the
	// tracker enforces it regardless.
	eng.lastReboot = usec(-10_000)
	eng.Process(boot(usec(-7000)))
	if eng.lastReboot != usec(-10_000) {
		t.Errorf("lastReboot = %d; want %d (monotonic)", eng.lastReboot, usec(-10_000))
	}
}

func TestFilteredRecordStillUpdatesTracker(t *testing.T) {
	opts := defaultOpts()
	opts.Match = []string{"bob"}
	eng := New(opts)

	// The boot marker matches neither user nor tty and is dropped, but it
	// must still cap bob's open session.
	if rows := eng.Process(boot(usec(-7200))); rows != nil {
		t.Fatalf("boot marker should have been filtered, got %d rows", len(rows))
	}
	rows := eng.Process(user("bob", usec(-10_000)))
	if len(rows) != 1 || rows[0].Logout != "crash" {
		t.Fatalf("bob after filtered boot: got %+v; want crash", rows)
	}

	// Footer state is identical to an unfiltered pass.
	earliest, ok := eng.Earliest()
	if !ok || earliest != usec(-10_000) {
		t.Errorf("earliest = %d, %v; want %d, true", earliest, ok, usec(-10_000))
	}
}

func TestSinceUntilFilters(t *testing.T) {
	tests := []struct {
		name  string
		since uint64
		until uint64
		login uint64
		want  int // rows emitted
	}{
		{"inside range", usec(-100), usec(100), usec(0), 1},
		{"before since", usec(-100), 0, usec(-200), 0},
		{"after until", 0, usec(100), usec(200), 0},
		{"unset filters", 0, 0, usec(0), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOpts()
			opts.Since = tt.since
			opts.Until = tt.until
			eng := New(opts)
			rows := eng.Process(closed("alice", tt.login, tt.login+timefmt.UsecPerSec))
			if len(rows) != tt.want {
				t.Errorf("got %d rows; want %d", len(rows), tt.want)
			}
		})
	}
}

func TestPresentFilter(t *testing.T) {
	opts := defaultOpts()
	opts.Present = usec(0)
	eng := New(opts)

	// Started after the probe instant.
	if rows := eng.Process(closed("late", usec(100), usec(200))); rows != nil {
		t.Errorf("session starting after present emitted %d rows", len(rows))
	}
	// Ended before the probe instant.
	if rows := eng.Process(closed("early", usec(-200), usec(-100))); rows != nil {
		t.Errorf("session ending before present emitted %d rows", len(rows))
	}
	// Alive at the probe instant.
	if rows := eng.Process(closed("there", usec(-100), usec(100))); len(rows) != 1 {
		t.Errorf("session alive at present emitted %d rows; want 1", len(rows))
	}
	// Open with no boot seen: still alive, passes any probe.
	if rows := eng.Process(user("open", usec(-100))); len(rows) != 1 {
		t.Errorf("open session emitted %d rows; want 1", len(rows))
	}
}

func TestOpenSessionsOnly(t *testing.T) {
	opts := defaultOpts()
	opts.OpenOnly = true
	eng := New(opts)

	if rows := eng.Process(closed("alice", usec(0), usec(100))); rows != nil {
		t.Errorf("closed session emitted %d rows in open-only mode", len(rows))
	}
	if rows := eng.Process(user("bob", usec(-100))); len(rows) != 1 {
		t.Errorf("open session emitted %d rows; want 1", len(rows))
	}
}

func TestLimitSuppressesOutputButKeepsScanning(t *testing.T) {
	opts := defaultOpts()
	opts.Limit = 1
	eng := New(opts)

	if rows := eng.Process(closed("alice", usec(0), usec(100))); len(rows) != 1 {
		t.Fatalf("first record emitted %d rows; want 1", len(rows))
	}
	if rows := eng.Process(closed("bob", usec(-500), usec(-400))); rows != nil {
		t.Fatalf("second record emitted %d rows past the limit", len(rows))
	}
	// The pass keeps its bookkeeping: earliest covers the suppressed record.
	earliest, ok := eng.Earliest()
	if !ok || earliest != usec(-500) {
		t.Errorf("earliest = %d, %v; want %d, true", earliest, ok, usec(-500))
	}
	// And boot markers past the limit still move the boundary.
	eng.Process(boot(usec(-1000)))
	if eng.lastReboot != usec(-1000) {
		t.Errorf("lastReboot = %d; want %d", eng.lastReboot, usec(-1000))
	}
}

func TestUnknownKindRendersErrorAndCountsTowardLimit(t *testing.T) {
	opts := defaultOpts()
	opts.Limit = 1
	eng := New(opts)

	rec := model.Record{Kind: model.Kind(99), User: "ghost", Login: usec(0), TTY: "pts/9"}
	rows := eng.Process(rec)
	if len(rows) != 1 {
		t.Fatalf("got %d rows; want 1", len(rows))
	}
	if rows[0].Logout != "ERROR" {
		t.Errorf("logout = %q; want %q", rows[0].Logout, "ERROR")
	}
	if rows[0].Duration != "Unknown: 99" {
		t.Errorf("duration = %q; want %q", rows[0].Duration, "Unknown: 99")
	}
	// The defective record used up the limit.
	if rows := eng.Process(user("alice", usec(-100))); rows != nil {
		t.Errorf("record past the limit emitted %d rows", len(rows))
	}
}

func TestHistoricalKindRendersAsUserSession(t *testing.T) {
	eng := New(defaultOpts())
	rec := model.Record{Kind: model.DeadProcess, User: "alice", Login: usec(0), TTY: "pts/0"}
	rows := eng.Process(rec)
	if len(rows) != 1 {
		t.Fatalf("got %d rows; want 1", len(rows))
	}
	if rows[0].Logout != "still" || rows[0].Duration != "logged in" {
		t.Errorf("logout/duration = %q/%q; want still/logged in", rows[0].Logout, rows[0].Duration)
	}
}

func TestShutdownSynthesis(t *testing.T) {
	opts := defaultOpts()
	opts.ShowShutdown = true
	eng := New(opts)

	// Newest boot is still open.
	eng.Process(boot(usec(0)))
	// Previous boot was shut down cleanly 50 seconds before the next one.
	prev := boot(usec(-3600))
	prev.Logout = usec(-50)
	prev.HasLogout = true
	rows := eng.Process(prev)

	if len(rows) != 2 {
		t.Fatalf("got %d rows; want synthesized shutdown plus boot row", len(rows))
	}
	down, bootRow := rows[0], rows[1]
	if down.User != "shutdown" || down.TTY != "system down" {
		t.Errorf("synthetic row user/tty = %q/%q; want shutdown/system down", down.User, down.TTY)
	}
	if down.Duration != " (00:00:50)" {
		t.Errorf("system-down duration = %q; want %q", down.Duration, " (00:00:50)")
	}
	if bootRow.TTY != "system boot" {
		t.Errorf("boot row tty = %q; want %q", bootRow.TTY, "system boot")
	}
	if bootRow.Duration != " (00:59:10)" { // 3600-50 seconds of uptime
		t.Errorf("boot row duration = %q; want %q", bootRow.Duration, " (00:59:10)")
	}
}

func TestNoShutdownSynthesisWithoutLaterBoot(t *testing.T) {
	opts := defaultOpts()
	opts.ShowShutdown = true
	eng := New(opts)

	// Closed boot marker, but no boot seen earlier in the pass: nothing to
	// anchor a shutdown interval to.
	rec := boot(usec(0))
	rec.Logout = usec(3600)
	rec.HasLogout = true
	if rows := eng.Process(rec); len(rows) != 1 {
		t.Errorf("got %d rows; want 1 (no synthetic shutdown)", len(rows))
	}
}

func TestMatchFilterOnUserOrTTY(t *testing.T) {
	tests := []struct {
		name  string
		match []string
		want  int
	}{
		{"match user", []string{"alice"}, 1},
		{"match tty", []string{"pts/0"}, 1},
		{"no match", []string{"bob"}, 0},
		{"empty matches all", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOpts()
			opts.Match = tt.match
			eng := New(opts)
			rows := eng.Process(user("alice", usec(0)))
			if len(rows) != tt.want {
				t.Errorf("got %d rows; want %d", len(rows), tt.want)
			}
		})
	}
}

func TestEarliestUnsetOnEmptyPass(t *testing.T) {
	eng := New(defaultOpts())
	if _, ok := eng.Earliest(); ok {
		t.Error("Earliest reported a value before any record was read")
	}
}

// collectSink implements Renderer for Run tests.
type collectSink struct {
	rows     []model.Row
	earliest uint64
	has      bool
	finished bool
}

func (c *collectSink) Row(r model.Row) error { c.rows = append(c.rows, r); return nil }
func (c *collectSink) Finish(earliest uint64, has bool) error {
	c.earliest, c.has, c.finished = earliest, has, true
	return nil
}

// sliceSource implements Source over a fixed record list.
type sliceSource struct {
	recs []model.Record
	i    int
	err  error
}

func (s *sliceSource) Next() bool {
	if s.i >= len(s.recs) {
		return false
	}
	s.i++
	return true
}
func (s *sliceSource) Record() model.Record { return s.recs[s.i-1] }
func (s *sliceSource) Err() error           { return s.err }

func TestRunDrainsSourceAndFinishes(t *testing.T) {
	src := &sliceSource{recs: []model.Record{
		closed("alice", usec(0), usec(3600)),
		boot(usec(-7200)),
		user("bob", usec(-10_000)),
	}}
	sink := &collectSink{}
	if err := Run(src, New(defaultOpts()), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.rows) != 3 {
		t.Errorf("got %d rows; want 3", len(sink.rows))
	}
	if !sink.finished || !sink.has || sink.earliest != usec(-10_000) {
		t.Errorf("finish = (%d, %v, %v); want (%d, true, true)",
			sink.earliest, sink.has, sink.finished, usec(-10_000))
	}
}

func TestRunSurfacesSourceError(t *testing.T) {
	src := &sliceSource{err: errMangled}
	sink := &collectSink{}
	if err := Run(src, New(defaultOpts()), sink); err == nil {
		t.Fatal("Run swallowed the source error")
	}
	if sink.finished {
		t.Error("Finish ran despite a failed pass")
	}
}

var errMangled = &mangledErr{}

type mangledErr struct{}

func (*mangledErr) Error() string { return "mangled entry" }
