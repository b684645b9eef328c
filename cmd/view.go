package cmd

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lastdb/lastdb/config"
	"github.com/lastdb/lastdb/engine"
	"github.com/lastdb/lastdb/store"
	"github.com/lastdb/lastdb/timefmt"
	"github.com/lastdb/lastdb/ui"
)

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.Usage = func() { printUsage(os.Stderr) }
	cfg := config.Load()
	var file string
	var system bool
	for _, name := range []string{"f", "file"} {
		fs.StringVar(&file, name, cfg.Database, "use FILE as the accounting database")
	}
	for _, name := range []string{"x", "system"} {
		fs.BoolVar(&system, name, false, "display system shutdown entries")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedOperands(fs); err != nil {
		return err
	}

	db, err := store.OpenRead(file)
	if err != nil {
		return err
	}
	defer db.Close()
	it, err := db.Read(false)
	if err != nil {
		return err
	}
	defer it.Close()

	eng := engine.New(engine.Options{
		Legacy:       cfg.Legacy,
		ShowShutdown: system,
		LoginFormat:  timefmt.Short,
		LogoutFormat: timefmt.HHMM,
		Now:          uint64(time.Now().Unix()) * timefmt.UsecPerSec,
	})

	// The browser needs random access for scrolling, so this is the one
	// mode that materializes the rows.
	var items []ui.Item
	for it.Next() {
		rec := it.Record()
		for _, row := range eng.Process(rec) {
			items = append(items, ui.Item{Row: row, Login: rec.Login})
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	footer := fmt.Sprintf("%s has no entries", db.Path())
	if earliest, ok := eng.Earliest(); ok {
		footer = fmt.Sprintf("%s begins %s", db.Path(), timefmt.Ctime.Render(earliest))
	}
	return ui.Browse(items, footer)
}
