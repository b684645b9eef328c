package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/lastdb/lastdb/config"
	"github.com/lastdb/lastdb/store"
)

// defaultRotateDays keeps roughly two months of history live.
const defaultRotateDays = 60

func runRotate(args []string) error {
	fs := flag.NewFlagSet("rotate", flag.ContinueOnError)
	fs.Usage = func() { printUsage(os.Stderr) }
	cfg := config.Load()
	var file string
	var days int
	for _, name := range []string{"f", "file"} {
		fs.StringVar(&file, name, cfg.Database, "use FILE as the accounting database")
	}
	for _, name := range []string{"d", "days"} {
		fs.IntVar(&days, name, defaultRotateDays, "move all entries older than N days")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedOperands(fs); err != nil {
		return err
	}

	db, err := store.Open(file)
	if err != nil {
		return err
	}
	defer db.Close()

	n, backup, err := db.Rotate(days)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("No old entries found")
		return nil
	}
	fmt.Printf("%s entries moved to %s\n", humanize.Comma(n), backup)
	return nil
}
