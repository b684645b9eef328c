package cmd

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/lastdb/lastdb/config"
	"github.com/lastdb/lastdb/model"
	"github.com/lastdb/lastdb/store"
	"github.com/lastdb/lastdb/timefmt"
)

// softRebootThreshold: a recorded kernel boot this far in the past means
// the machine did not actually reboot, only userspace did.
const softRebootThreshold = 5 * time.Minute

func runBoot(args []string) error {
	fs := flag.NewFlagSet("boot", flag.ContinueOnError)
	fs.Usage = func() { printUsage(os.Stderr) }
	cfg := config.Load()
	var file string
	var quiet bool
	for _, name := range []string{"f", "file"} {
		fs.StringVar(&file, name, cfg.Database, "use FILE as the accounting database")
	}
	for _, name := range []string{"q", "quiet"} {
		fs.BoolVar(&quiet, name, false, "suppress boot-time warnings")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := unexpectedOperands(fs); err != nil {
		return err
	}

	bootSec, err := host.BootTime()
	if err != nil {
		return fmt.Errorf("determine boot time: %w", err)
	}
	boot := bootSec * timefmt.UsecPerSec
	now := uint64(time.Now().Unix()) * timefmt.UsecPerSec

	user := "reboot"
	if now > boot && now-boot > uint64(softRebootThreshold.Microseconds()) {
		if !quiet {
			fmt.Fprintf(os.Stderr, "Boot time too far in the past, using current time:\n")
			fmt.Fprintf(os.Stderr, "Boot time: %s\n", timefmt.Ctime.Render(boot))
			fmt.Fprintf(os.Stderr, "Current time: %s\n", timefmt.Ctime.Render(now))
		}
		boot = now
		user = "soft-reboot"
	}

	kernel, err := host.KernelVersion()
	if err != nil {
		kernel = ""
	}

	db, err := store.Open(file)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Append(model.Boot, user, boot, "~", kernel, ""); err != nil {
		return fmt.Errorf("write boot entry: %w", err)
	}
	return nil
}

func runShutdown(args []string) error {
	fs := flag.NewFlagSet("shutdown", flag.ContinueOnError)
	fs.Usage = func() { printUsage(os.Stderr) }
	cfg := config.Load()
	var file string
	for _, name := range []string{"f", "file"} {
		fs.StringVar(&file, name, cfg.Database, "use FILE as the accounting database")
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

	id, err := db.OpenID("~")
	if err != nil {
		return fmt.Errorf("get id for reboot entry: %w", err)
	}
	now := uint64(time.Now().UnixMicro())
	if err := db.CloseSession(id, now); err != nil {
		return fmt.Errorf("write shutdown entry: %w", err)
	}
	return nil
}

func runBootTime(args []string) error {
	fs := flag.NewFlagSet("boottime", flag.ContinueOnError)
	fs.Usage = func() { printUsage(os.Stderr) }
	cfg := config.Load()
	var file string
	for _, name := range []string{"f", "file"} {
		fs.StringVar(&file, name, cfg.Database, "use FILE as the accounting database")
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

	boot, err := db.BootTime()
	if err != nil {
		return fmt.Errorf("read boot entry: %w", err)
	}
	fmt.Printf("system boot %s\n", timefmt.Ctime.Render(boot))
	return nil
}
