// Package render turns resolved session rows into fixed-width text or a
// JSON document. It applies column widths and truncation at the output
// boundary; the row representation itself stays width-free.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lastdb/lastdb/model"
	"github.com/lastdb/lastdb/timefmt"
)

// Classic last column widths.
const (
	userLen    = 8
	ttyLen     = 12
	hostLen    = 16
	serviceLen = 12
)

// Config carries the presentation knobs shared by both output formats.
type Config struct {
	Compact     bool // no logout column, no " - " separator
	NoHost      bool // suppress the hostname column entirely
	HostLast    bool // move the hostname to the end of the line
	ShowService bool
	FullNames   bool // do not truncate user and host names

	LoginLen  int
	LogoutLen int

	// FooterFormat renders the earliest-record footer; Label names the
	// database in it.
	FooterFormat timefmt.Format
	Label        string
}

// col left-justifies s into a field of width w, truncating when needed.
func col(s string, w int) string {
	if len(s) > w {
		s = s[:w]
	}
	return fmt.Sprintf("%-*s", w, s)
}

// pad left-justifies without truncating, used for the full-names mode.
func pad(s string, w int) string {
	return fmt.Sprintf("%-*s", w, s)
}

// softReboot maps "soft-reboot" to a name that fits the 8-column user
// field. Full-names mode keeps it intact.
func softReboot(user string, full bool) string {
	if full || user != "soft-reboot" {
		return user
	}
	return "s-reboot"
}

// Line renders one row as a fixed-width text line (without the trailing
// newline).
func Line(r model.Row, cfg Config) string {
	user := softReboot(r.User, cfg.FullNames)
	if cfg.FullNames {
		user = pad(user, userLen)
	} else {
		user = col(user, userLen)
	}

	service := ""
	if cfg.ShowService {
		service = " " + col(r.Service, serviceLen)
	}

	sep := " - "
	if cfg.Compact {
		sep = ""
	}

	switch {
	case cfg.NoHost:
		return fmt.Sprintf("%s %s%s %s%s%s %s",
			user, col(r.TTY, ttyLen), service,
			col(r.Login, cfg.LoginLen), sep, col(r.Logout, cfg.LogoutLen),
			r.Duration)
	case cfg.HostLast:
		return fmt.Sprintf("%s %s%s %s%s%s %s %s",
			user, col(r.TTY, ttyLen), service,
			col(r.Login, cfg.LoginLen), sep, col(r.Logout, cfg.LogoutLen),
			col(r.Duration, serviceLen), r.Host)
	}

	host := r.Host
	if cfg.FullNames {
		host = pad(host, hostLen)
	} else {
		host = col(host, hostLen)
	}
	return fmt.Sprintf("%s %s %s%s %s%s%s %s",
		user, col(r.TTY, ttyLen), host, service,
		col(r.Login, cfg.LoginLen), sep, col(r.Logout, cfg.LogoutLen),
		r.Duration)
}

// Text writes classic fixed-width output, one line per row, followed by the
// "begins" footer.
type Text struct {
	w   io.Writer
	cfg Config
}

// NewText creates a text renderer writing to w.
func NewText(w io.Writer, cfg Config) *Text {
	return &Text{w: w, cfg: cfg}
}

// Row writes one display line.
func (t *Text) Row(r model.Row) error {
	_, err := fmt.Fprintln(t.w, Line(r, t.cfg))
	return err
}

// Finish writes the earliest-record footer, or a "has no entries" notice
// when the pass read nothing at all.
func (t *Text) Finish(earliest uint64, hasRecords bool) error {
	if !hasRecords {
		_, err := fmt.Fprintf(t.w, "%s has no entries\n", t.cfg.Label)
		return err
	}
	if t.cfg.FooterFormat == timefmt.NoTime {
		return nil
	}
	_, err := fmt.Fprintf(t.w, "\n%s begins %s\n",
		t.cfg.Label, t.cfg.FooterFormat.Render(earliest))
	return err
}

// Entry is one structured output row.
type Entry struct {
	User     string  `json:"user"`
	TTY      string  `json:"tty"`
	Hostname *string `json:"hostname,omitempty"`
	Service  string  `json:"service,omitempty"`
	Login    string  `json:"login"`
	Logout   *string `json:"logout,omitempty"`
	Length   string  `json:"length"`
}

type document struct {
	Entries []Entry `json:"entries"`
	Start   string  `json:"start,omitempty"`
}

// JSON collects rows and writes a single document on Finish.
type JSON struct {
	w       io.Writer
	cfg     Config
	entries []Entry
}

// NewJSON creates a JSON renderer writing to w.
func NewJSON(w io.Writer, cfg Config) *JSON {
	return &JSON{w: w, cfg: cfg}
}

// Row buffers one entry for the final document.
func (j *JSON) Row(r model.Row) error {
	e := Entry{
		User:   r.User,
		TTY:    r.TTY,
		Login:  r.Login,
		Length: stripLength(r.Duration),
	}
	if !j.cfg.NoHost {
		host := r.Host
		e.Hostname = &host
	}
	if j.cfg.ShowService && r.Service != "" {
		e.Service = r.Service
	}
	if !j.cfg.Compact {
		logout := r.Logout
		e.Logout = &logout
	}
	j.entries = append(j.entries, e)
	return nil
}

// stripLength removes the state marker and parentheses from timed
// durations; textual statuses like "logged in" pass through unchanged.
func stripLength(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case ' ', '.', '?', '(':
	default:
		return s
	}
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s
	}
	s = s[open+1:]
	if end := strings.IndexByte(s, ')'); end >= 0 {
		s = s[:end]
	}
	return s
}

// Finish emits the collected document.
func (j *JSON) Finish(earliest uint64, hasRecords bool) error {
	doc := document{Entries: j.entries}
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}
	if hasRecords && j.cfg.FooterFormat != timefmt.NoTime {
		doc.Start = j.cfg.FooterFormat.Render(earliest)
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
