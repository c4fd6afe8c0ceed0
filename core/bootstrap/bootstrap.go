package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	coredatabase "github.com/m3rciful/coursebot/core/database"
	"github.com/m3rciful/coursebot/core/logger"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations coredatabase.Migrations
	Modules    Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, coredatabase.Migrations) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects to the database, applies migrations
// and runs the seeders in order.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, opts.Database, opts.Migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	if err := opts.Modules.seed(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &Result{DB: db}, nil
}

func (m Modules) seed(ctx context.Context, db *sqlx.DB) error {
	for i, s := range m.Seeders {
		if s == nil {
			continue
		}
		start := time.Now()
		if err := s.Seed(ctx, db); err != nil {
			logger.Error(ctx, "db.seed", "seed",
				slog.Int("index", i),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("seeder %d: %w", i, err)
		}
		logger.Debug(ctx, "db.seed", "seed",
			slog.Int("index", i),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return nil
}
