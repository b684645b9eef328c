package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lastdb/lastdb/config"
	"github.com/lastdb/lastdb/engine"
	"github.com/lastdb/lastdb/render"
	"github.com/lastdb/lastdb/store"
	"github.com/lastdb/lastdb/timefmt"
)

// lastPresets carry the defaults selected by the invocation name.
type lastPresets struct {
	legacy bool
	unique bool
}

// lastOptions mirror the flags of the last subcommand.
type lastOptions struct {
	hostlast  bool
	compact   bool
	dns       bool
	fulltimes bool
	ip        bool
	json      bool
	legacy    bool
	open      bool
	nohost    bool
	service   bool
	unique    bool
	wide      bool
	system    bool

	file       string
	present    string
	since      string
	until      string
	timeFormat string
	limit      uint64

	match []string
}

func parseLastFlags(args []string, presets lastPresets, cfg config.Config) (lastOptions, error) {
	opt := lastOptions{legacy: presets.legacy || cfg.Legacy, unique: presets.unique}

	if os.Getenv("LAST_COMPACT") != "" {
		opt.compact = true
	}

	args, limit := expandLimitShorthand(args)
	opt.limit = limit

	fs := flag.NewFlagSet("last", flag.ContinueOnError)
	fs.Usage = func() { printUsage(os.Stderr) }

	for _, name := range []string{"a", "hostlast"} {
		fs.BoolVar(&opt.hostlast, name, opt.hostlast, "display hostnames as last entry")
	}
	for _, name := range []string{"c", "compact"} {
		fs.BoolVar(&opt.compact, name, opt.compact, "hide logouts and use the compact login time format")
	}
	for _, name := range []string{"d", "dns"} {
		fs.BoolVar(&opt.dns, name, opt.dns, "translate IP addresses into hostnames")
	}
	for _, name := range []string{"f", "file"} {
		fs.StringVar(&opt.file, name, cfg.Database, "use FILE as the accounting database")
	}
	for _, name := range []string{"F", "fulltimes"} {
		fs.BoolVar(&opt.fulltimes, name, opt.fulltimes, "display full times and dates")
	}
	for _, name := range []string{"i", "ip"} {
		fs.BoolVar(&opt.ip, name, opt.ip, "translate hostnames to IP addresses")
	}
	for _, name := range []string{"j", "json"} {
		fs.BoolVar(&opt.json, name, opt.json, "generate JSON output")
	}
	for _, name := range []string{"L", "legacy"} {
		fs.BoolVar(&opt.legacy, name, opt.legacy, "minute instead of second duration precision")
	}
	for _, name := range []string{"n", "limit"} {
		fs.Uint64Var(&opt.limit, name, opt.limit, "display only the first N entries")
	}
	for _, name := range []string{"o", "open"} {
		fs.BoolVar(&opt.open, name, opt.open, "display open sessions only")
	}
	for _, name := range []string{"p", "present"} {
		fs.StringVar(&opt.present, name, opt.present, "display who was present at TIME")
	}
	for _, name := range []string{"R", "nohostname"} {
		fs.BoolVar(&opt.nohost, name, opt.nohost, "don't display the hostname field")
	}
	for _, name := range []string{"S", "service"} {
		fs.BoolVar(&opt.service, name, opt.service, "display the PAM service used to login")
	}
	for _, name := range []string{"s", "since"} {
		fs.StringVar(&opt.since, name, opt.since, "display who was logged in after TIME")
	}
	for _, name := range []string{"t", "until"} {
		fs.StringVar(&opt.until, name, opt.until, "display who was logged in until TIME")
	}
	for _, name := range []string{"u", "unique"} {
		fs.BoolVar(&opt.unique, name, opt.unique, "display the latest entry for each user only")
	}
	for _, name := range []string{"w", "fullnames"} {
		fs.BoolVar(&opt.wide, name, opt.wide, "display full user and domain names")
	}
	for _, name := range []string{"x", "system"} {
		fs.BoolVar(&opt.system, name, opt.system, "display system shutdown entries")
	}
	fs.StringVar(&opt.timeFormat, "time-format", cfg.TimeFormat,
		"display timestamps in the specified format (notime|short|full|iso|compact)")

	if err := fs.Parse(args); err != nil {
		return opt, err
	}
	opt.match = fs.Args()
	return opt, nil
}

// expandLimitShorthand consumes the historical "-N" digit options ("-25",
// or even "-2 -5") and returns the remaining arguments plus the limit they
// spell out. Everything after a "--" terminator is an operand and is
// passed through untouched.
func expandLimitShorthand(args []string) ([]string, uint64) {
	var limit uint64
	rest := args[:0:0]
	for i, arg := range args {
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		if isDigitOption(arg) {
			for _, c := range arg[1:] {
				limit = limit*10 + uint64(c-'0')
			}
			continue
		}
		rest = append(rest, arg)
	}
	return rest, limit
}

func isDigitOption(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	for _, c := range arg[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// normalizeRange resolves the interaction of the since/until/present
// filters (0 = unset). It returns the effective until bound and whether
// the range can select anything at all: a present instant outside
// [since, until], or since past until, selects nothing. A present instant
// inside the range tightens until, since nothing present then can have
// started later.
func normalizeRange(since, until, present uint64) (uint64, bool) {
	if present != 0 {
		if since != 0 && present < since {
			return until, false
		}
		if until != 0 {
			if present > until {
				return until, false
			}
			until = present
		}
	}
	if since != 0 && until != 0 && since > until {
		return until, false
	}
	return until, true
}

// checkConflicts rejects mutually exclusive display flags.
func checkConflicts(opt lastOptions) error {
	switch {
	case opt.nohost && opt.hostlast:
		return fmt.Errorf("the options -a and -R cannot be used together")
	case opt.nohost && opt.dns:
		return fmt.Errorf("the options -d and -R cannot be used together")
	case opt.nohost && opt.ip:
		return fmt.Errorf("the options -i and -R cannot be used together")
	case opt.dns && opt.ip:
		return fmt.Errorf("the options -d and -i cannot be used together")
	}
	return nil
}

func runLast(args []string, presets lastPresets) error {
	cfg := config.Load()
	opt, err := parseLastFlags(args, presets, cfg)
	if err != nil {
		return err
	}
	if err := checkConflicts(opt); err != nil {
		return err
	}

	// Display mode. The footer keeps the full ctime format unless a
	// specific mode was requested.
	mode := timefmt.Mode{Login: timefmt.Short, LoginLen: 16, Logout: timefmt.HHMM, LogoutLen: 5}
	footer := timefmt.Ctime
	applyMode := func(name string) error {
		m, err := timefmt.ModeByName(name)
		if err != nil {
			return err
		}
		mode = m
		footer = m.Login
		return nil
	}
	if opt.timeFormat != "" {
		if err := applyMode(opt.timeFormat); err != nil {
			return err
		}
	} else if opt.compact {
		if err := applyMode("compact"); err != nil {
			return err
		}
	}
	if opt.fulltimes {
		mode = timefmt.Mode{Login: timefmt.Ctime, LoginLen: 24, Logout: timefmt.Ctime, LogoutLen: 24}
		opt.compact = false
	}
	if opt.compact {
		mode.LogoutLen = 0
	}

	var since, until, present uint64
	for _, f := range []struct {
		expr string
		dst  *uint64
	}{{opt.since, &since}, {opt.until, &until}, {opt.present, &present}} {
		if f.expr == "" {
			continue
		}
		if *f.dst, err = timefmt.Parse(f.expr); err != nil {
			return err
		}
	}

	// Contradictory ranges select nothing; end the run before any record
	// is read or any output produced.
	until, ok := normalizeRange(since, until, present)
	if !ok {
		return nil
	}

	var resolve func(string) string
	if opt.dns {
		resolve = resolveHostname
	} else if opt.ip {
		resolve = resolveAddr
	}

	db, err := store.OpenRead(opt.file)
	if err != nil {
		return err
	}
	defer db.Close()
	it, err := db.Read(opt.unique)
	if err != nil {
		return err
	}
	defer it.Close()

	eng := engine.New(engine.Options{
		Since:        since,
		Until:        until,
		Present:      present,
		Match:        opt.match,
		Limit:        opt.limit,
		OpenOnly:     opt.open,
		Compact:      opt.compact,
		Legacy:       opt.legacy,
		ShowShutdown: opt.system,
		LoginFormat:  mode.Login,
		LogoutFormat: mode.Logout,
		Now:          uint64(time.Now().Unix()) * timefmt.UsecPerSec,
		Resolve:      resolve,
	})

	rcfg := render.Config{
		Compact:      opt.compact,
		NoHost:       opt.nohost,
		HostLast:     opt.hostlast,
		ShowService:  opt.service,
		FullNames:    opt.wide,
		LoginLen:     mode.LoginLen,
		LogoutLen:    mode.LogoutLen,
		FooterFormat: footer,
		Label:        db.Path(),
	}
	var out engine.Renderer
	if opt.json {
		out = render.NewJSON(os.Stdout, rcfg)
	} else {
		out = render.NewText(os.Stdout, rcfg)
	}

	return engine.Run(it, eng, out)
}

// unexpectedOperands is the shared complaint of the write-side subcommands,
// which take no positional arguments.
func unexpectedOperands(fs *flag.FlagSet) error {
	if fs.NArg() == 0 {
		return nil
	}
	return fmt.Errorf("unexpected argument: %s", strings.Join(fs.Args(), " "))
}
