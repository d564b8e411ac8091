// Command seed loads demo doctors and availability into the scheduling
// database.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/seed"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/migrations"
)

func main() {
	config.Load()
	doctors := flag.Int("doctors", config.Int("SEED_DOCTORS", 10), "number of doctors to create")
	days := flag.Int("days", config.Int("SEED_DAYS", 7), "days of availability per doctor")
	start := flag.String("start", "", "first day with availability (YYYY-MM-DD); defaults to tomorrow")
	seedValue := flag.Uint64("seed", 0, "random seed; 0 picks a random one")
	flag.Parse()

	logger := runtime.NewLogger("scheduling-seed")
	ctx, stop := runtime.SignalContext()
	defer stop()

	opts := seed.Options{Doctors: *doctors, Days: *days, Seed: *seedValue}
	if *start != "" {
		d, err := model.ParseDate(*start)
		if err != nil {
			logger.Error("invalid -start", "value", *start, "err", err)
			os.Exit(2)
		}
		opts.Start = d
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	list, err := db.LoadMigrations(migrations.FS, ".")
	if err != nil {
		logger.Error("load migrations failed", "err", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx, pool, list, logger); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	began := time.Now()
	res, err := seed.Run(ctx, storage.NewPgStore(pool), opts)
	if err != nil {
		logger.Error("seed failed", "err", err, "doctors_written", len(res.Doctors))
		os.Exit(1)
	}
	for _, d := range res.Doctors {
		logger.Info("doctor", "id", d.ID, "name", d.Name, "department", d.Department)
	}
	logger.Info("seed complete", "doctors", len(res.Doctors), "windows", res.Windows, "elapsed", time.Since(began).String())
}
