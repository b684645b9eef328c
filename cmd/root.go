// Package cmd wires the CLI surface: subcommand dispatch, flag parsing and
// the glue between store, engine and renderer.
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `lastdb v%s — login accounting with boot-aware session history

Usage:
  lastdb COMMAND [options] [operand]

Commands:
  last        Show session history (default behavior of the last command)
  boot        Record a system boot entry
  shutdown    Close the current boot entry at the present time
  boottime    Print the last recorded boot time
  rotate      Move old entries into a timestamped backup database
  view        Browse session history interactively
  version     Print version and exit

Common options:
  -f, --file FILE     Use FILE as the accounting database

Options for last:
  -a, --hostlast      Display hostnames as last entry
  -c, --compact       Hide logouts and use the compact login time format
  -d, --dns           Translate IP addresses into hostnames
  -F, --fulltimes     Display full times and dates
  -i, --ip            Translate hostnames to IP addresses
  -j, --json          Generate JSON output
  -L, --legacy        Session duration precision in minutes instead of seconds
  -n, --limit N, -N   Display only the first N entries
  -o, --open          Display open sessions only
  -p, --present TIME  Display who was present at TIME
  -R, --nohostname    Don't display the hostname field
  -S, --service       Display the PAM service used to login
  -s, --since TIME    Display who was logged in after TIME
  -t, --until TIME    Display who was logged in until TIME
  -u, --unique        Display the latest entry for each user only
  -w, --fullnames     Display full user and domain names
  -x, --system        Display system shutdown entries
  --time-format FMT   Display timestamps in the specified format

  FMT format: notime|short|full|iso|compact
  TIME format: YYYY-MM-DD HH:MM:SS

Operands for last:
  username|tty...     Display only entries matching these arguments

Options for rotate:
  -d, --days N        Move all entries older than N days (default 60)

Invoked as "last" or "lastlog", lastdb behaves as its namesake: legacy
minute precision, and for lastlog one entry per user. "wlast"/"wlastlog"
are the second-precision equivalents.
`, Version)
}

// Run parses the command line and dispatches. The invocation name doubles
// as a command: the historical names select the matching presets.
func Run() error {
	args := os.Args[1:]

	switch filepath.Base(os.Args[0]) {
	case "last":
		return runLast(args, lastPresets{legacy: true})
	case "wlast":
		return runLast(args, lastPresets{})
	case "lastlog":
		return runLast(args, lastPresets{legacy: true, unique: true})
	case "wlastlog":
		return runLast(args, lastPresets{unique: true})
	}

	if len(args) == 0 {
		printUsage(os.Stdout)
		return nil
	}

	switch args[0] {
	case "last":
		return runLast(args[1:], lastPresets{})
	case "boot":
		return runBoot(args[1:])
	case "shutdown":
		return runShutdown(args[1:])
	case "boottime":
		return runBootTime(args[1:])
	case "rotate":
		return runRotate(args[1:])
	case "view":
		return runView(args[1:])
	case "version", "-v", "--version":
		fmt.Printf("lastdb v%s\n", Version)
		return nil
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return nil
	}

	printUsage(os.Stderr)
	return fmt.Errorf("unknown command %q", args[0])
}
