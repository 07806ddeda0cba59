package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/config"
)

func main() {
	var down bool
	var steps int
	flag.BoolVar(&down, "down", false, "roll back all migrations")
	flag.IntVar(&steps, "steps", 0, "apply exactly n migrations (negative rolls back)")
	flag.Parse()

	log := logrus.New()
	cfg := config.Load()

	dsn := os.Getenv("MIGRATE_DSN")
	if dsn == "" {
		dsn = "mysql://" + cfg.MySQLDSN
	}

	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		log.WithError(err).Fatal("failed to init migrations")
	}
	defer m.Close()

	switch {
	case steps != 0:
		err = m.Steps(steps)
	case down:
		err = m.Down()
	default:
		err = m.Up()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no pending migrations")
		return
	}
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	version, dirty, _ := m.Version()
	log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("migrations applied")
}
