package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/walletledger/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/walletledger/pkg/ledger"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	driverPostgres    = "postgres"
	driverSQLite      = "sqlite"
	sqliteMemory      = ":memory:"
	defaultSQLiteFile = "walletledger.db"
	// Concurrent transfers wait on the writer lock instead of failing with SQLITE_BUSY.
	sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
)

// ledgerStore is what the service needs from a backend.
type ledgerStore interface {
	ledger.Store
	ledger.SecretStore
}

// openStore opens the configured backend. sqlite schemas are migrated on open;
// postgres schemas are applied by the migrate command.
func openStore(ctx context.Context, cfg *runtimeConfig, migrate bool) (ledgerStore, func(), error) {
	if cfg.StoreDriver == storeDriverPgx {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("pgx pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pgx ping: %w", err)
		}
		if migrate {
			if err := pgstore.EnsureSchema(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return pgstore.New(pool), pool.Close, nil
	}

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database open: %w", err)
	}
	closeDB := func() { _ = cleanup() }
	if migrate || driver == driverSQLite {
		if err := gormstore.Migrate(gormDB); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	return gormstore.New(gormDB), closeDB, nil
}

func openDatabase(ctx context.Context, databaseURL string) (*gorm.DB, func() error, string, error) {
	target, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, nil, "", err
	}

	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	var db *gorm.DB
	switch target.driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(target.dsn), gormConfig)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(target.dsn), gormConfig)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	if target.driver == driverSQLite {
		// One connection serializes writers, standing in for SELECT ... FOR UPDATE.
		sqlDB.SetMaxOpenConns(1)
	}
	return db.WithContext(ctx), sqlDB.Close, target.driver, nil
}

// databaseTarget is a parsed --database-url.
type databaseTarget struct {
	driver string
	dsn    string
	path   string
}

func isPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

// parseDatabaseURL accepts postgres URLs, sqlite:// URLs, ":memory:" and bare sqlite paths.
// sqlite parent directories are created so a fresh deployment can start.
func parseDatabaseURL(databaseURL string) (databaseTarget, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	switch {
	case databaseURL == "":
		return databaseTarget{}, fmt.Errorf("%s is empty", flagDatabaseURL)
	case isPostgresURL(databaseURL):
		return databaseTarget{driver: driverPostgres, dsn: databaseURL}, nil
	case databaseURL == sqliteMemory:
		return databaseTarget{driver: driverSQLite, dsn: sqliteMemory, path: sqliteMemory}, nil
	}

	path := databaseURL
	if strings.HasPrefix(databaseURL, "sqlite://") {
		parsed, err := url.Parse(databaseURL)
		if err != nil {
			return databaseTarget{}, fmt.Errorf("parse sqlite url: %w", err)
		}
		path = parsed.Host + parsed.Path
	}
	if path == "" || path == "/" {
		path = defaultSQLiteFile
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return databaseTarget{}, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return databaseTarget{}, fmt.Errorf("create sqlite directory: %w", err)
	}
	return databaseTarget{driver: driverSQLite, dsn: path + sqlitePragmas, path: path}, nil
}
