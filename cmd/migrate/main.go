package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
)

const usage = `usage: migrate <command>

commands:
  up             apply all pending migrations
  down [n]       roll back n migrations (default 1)
  force <v>      mark version v as applied without running it
  version        print the current schema version`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("migrate", cfg.Env, cfg.LogLevel)

	if err := cfg.RequirePostgres(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := db.NewMigrator(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open migrator")
	}
	defer func() { _, _ = m.Close() }()

	if err := run(m, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migration failed")
	}
}

func run(m *migrate.Migrate, cmd string, args []string) error {
	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		n := 1
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			n = v
		}
		if err := m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "force":
		if len(args) == 0 {
			return errors.New("force needs a version")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		if err := m.Force(v); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Msg("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
	return nil
}
