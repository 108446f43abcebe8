// Command migrate applies the embedded schema migrations.
//
//	migrate [-driver postgres|sqlite] [-dsn url] up|down|version|steps N|force N
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/zxlitianshu/Kekari-agent/internal/config"
	"github.com/zxlitianshu/Kekari-agent/internal/migrations"
)

func main() {
	driver := flag.String("driver", "", "database driver (postgres|sqlite); defaults to the configured driver")
	dsn := flag.String("dsn", "", "golang-migrate database URL; defaults to the configured database")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version|steps N|force N")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*driver, *dsn, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(driver, dsn string, args []string) error {
	if driver == "" || dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if driver == "" {
			driver = cfg.Database.Driver
		}
		if dsn == "" {
			dsn = cfg.Database.MigrationURL()
		}
	}

	m, err := migrations.New(driver, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "up":
		return report(m.Up(), "schema is up to date")
	case "down":
		return report(m.Down(), "all migrations reverted")
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	case "steps", "force":
		if len(rest) != 1 {
			return fmt.Errorf("%s takes exactly one integer argument", cmd)
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		if cmd == "force" {
			return report(m.Force(n), fmt.Sprintf("version forced to %d", n))
		}
		return report(m.Steps(n), fmt.Sprintf("applied %d steps", n))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// report treats ErrNoChange as success.
func report(err error, done string) error {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	fmt.Println(done)
	return nil
}
