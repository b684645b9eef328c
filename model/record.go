package model

// Kind identifies what a stored record describes. The numeric values follow
// the classic utmp record types, so databases imported from older systems
// keep their meaning.
type Kind int

const (
	Empty Kind = iota
	RunLevel
	Boot
	NewTime
	OldTime
	InitProcess
	LoginProcess
	UserProcess
	DeadProcess
)

// Known reports whether k is one of the classic record types. Anything else
// came from a foreign or corrupted writer and is rendered as such rather
// than guessed at.
func (k Kind) Known() bool { return k >= Empty && k <= DeadProcess }

// Record is one stored login accounting event. Timestamps are microseconds
// since the epoch, held in uint64 so they stay valid past the 32-bit time
// overflow. Records are immutable once read.
type Record struct {
	ID        int64
	Kind      Kind
	User      string // "reboot" or "soft-reboot" for boot markers
	Login     uint64
	Logout    uint64 // valid only when HasLogout is set
	HasLogout bool

	// TTY may instead carry the authenticating service name when no
	// terminal was known at login. That value is shown as-is.
	TTY     string
	Host    string // remote origin, may be empty
	Service string
}

// Row is one fully resolved display line. All fields are ready-to-print
// strings; the engine owns the session-state reasoning that produced them.
//
// For timed sessions Duration carries a one-byte state marker in front of
// the parenthesized value: ' ' closed normally, '.' open and still live,
// '?' open and ended by a crash. Textual statuses ("logged in", "running",
// "Unknown: N") have no marker.
type Row struct {
	User     string
	TTY      string
	Host     string
	Service  string
	Login    string
	Logout   string
	Duration string
}
