package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/pkg/sigctx"
	"github.com/spf13/pflag"
)

const (
	storagePathFlag   = "storage-path"
	migrationPathFlag = "migrations-path"
	seedFlag          = "seed"
	seedFileFlag      = "seed-file"
)

type flags struct {
	storagePath    string
	migrationsPath string
	seed           bool
	seedFile       string
}

func main() {
	f := getFlagsValues()
	validateFlags(f)
	makeMigrations(f.storagePath, f.migrationsPath)
	if f.seed {
		seedProducts(f.storagePath, f.seedFile)
	}
}

type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger() *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default(),
		verbose: true,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(fmt.Sprintf(format, v...))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

func getFlagsValues() flags {
	storagePath := pflag.StringP(storagePathFlag, "s", "", "postgres dsn without scheme")
	migrationsPath := pflag.StringP(migrationPathFlag, "m", "", "migrations directory")
	seed := pflag.Bool(seedFlag, false, "upsert the seed catalog after migrating")
	seedFile := pflag.String(seedFileFlag, "", "seed YAML file, built-in catalog if empty")
	pflag.Parse()
	return flags{*storagePath, *migrationsPath, *seed, *seedFile}
}

func validateFlags(f flags) {
	var errs []error

	if f.storagePath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", storagePathFlag))
	}

	if f.migrationsPath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", migrationPathFlag))
	}

	if f.seedFile != "" && !f.seed {
		errs = append(errs, fmt.Errorf("--%s flag: requires --%s", seedFileFlag, seedFlag))
	}

	if len(errs) != 0 {
		slog.Error("invalid args", "err", errors.Join(errs...))
		fallDown()
	}
}

func makeMigrations(storagePath, migrationsPath string) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		fmt.Sprintf("pgx5://%s", storagePath),
	)
	if err != nil {
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}

	m.Log = NewMigrationLogger()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return
		}
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	m.Log.Printf("migration applied")
}

func seedProducts(storagePath, seedFile string) {
	ctx, cancel := sigctx.NotifyContext(context.Background())
	defer cancel()

	seed, err := storage.NewSeedRepository(seedFile)
	if err != nil {
		slog.Error("failed to open seed", "err", err)
		fallDown()
	}

	ps, err := seed.LoadProducts(ctx)
	if err != nil {
		slog.Error("failed to read seed", "err", err)
		fallDown()
	}

	db, err := storage.NewSQLDB(ctx, "postgres://"+storagePath)
	if err != nil {
		slog.Error("failed to connect", "err", err)
		fallDown()
	}
	defer db.Close()

	if err := storage.NewProductsRepository(db).StoreProducts(ctx, ps); err != nil {
		slog.Error("failed to seed products", "err", err)
		db.Close()
		fallDown()
	}
	slog.Info("seed applied", "nProducts", len(ps))
}

func fallDown() {
	os.Exit(2)
}
