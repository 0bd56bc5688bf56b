// Package database provides the registry database connection and schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"net/url"
	"os"
	"strings"
	"sync"

	"miniappctl/internal/config"
	"miniappctl/internal/observability"
	contextutils "miniappctl/internal/utils"

	// Import PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Manager handles database operations with proper logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// DefaultDatabaseConfig returns the default database configuration
func DefaultDatabaseConfig() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}

	// TEST_DATABASE_URL wins so tests never touch a real registry
	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.URL = testURL
	}

	return cfg
}

// InitDB opens a connection with default pool settings and applies migrations
func (dm *Manager) InitDB(ctx context.Context, databaseURL string) (result0 *sql.DB, err error) {
	cfg := DefaultDatabaseConfig()
	cfg.URL = databaseURL
	return dm.InitDBWithConfig(ctx, cfg)
}

// InitDBWithConfig opens a connection with cfg and applies migrations
func (dm *Manager) InitDBWithConfig(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "InitDBWithConfig",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Bool("migrations.enabled", true),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := dm.RunMigrations(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after migration failure", closeErr)
		}
		return nil, err
	}

	return db, nil
}

// extractDatabaseName extracts the database name from a PostgreSQL connection string
func extractDatabaseName(databaseURL string) string {
	if u, err := url.Parse(databaseURL); err == nil && u.Scheme != "" && u.Path != "" {
		if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" {
			return dbName
		}
	}

	// key=value DSN form
	for _, field := range strings.Fields(databaseURL) {
		if name, ok := strings.CutPrefix(field, "dbname="); ok && name != "" {
			return name
		}
	}

	return "miniapps"
}

// MaskDatabaseURL hides credentials in a connection URL for display
func MaskDatabaseURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.User == nil {
		return databaseURL
	}
	u.User = url.UserPassword("***", "***")
	// url.String escapes the asterisks
	return strings.Replace(u.String(), "%2A%2A%2A:%2A%2A%2A@", "***:***@", 1)
}

// InitDBWithoutMigrations opens and pings a connection without touching the schema
func (dm *Manager) InitDBWithoutMigrations(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "InitDBWithoutMigrations",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	if cfg.URL == "" {
		return nil, contextutils.NewCodedErrorf(contextutils.ErrInvalidConfig, nil, "database url is not set (database.url or DATABASE_URL)")
	}

	// Register OpenTelemetry SQL driver once per process and reuse the name
	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.NewCodedErrorf(contextutils.ErrDatabaseConnection, otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, cfg.URL)
	if err != nil {
		return nil, contextutils.NewCodedErrorf(contextutils.ErrDatabaseConnection, err, "failed to open database connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, config.DatabasePingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.NewCodedErrorf(contextutils.ErrDatabaseConnection, err, "failed to ping database %s", MaskDatabaseURL(cfg.URL))
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"database":          extractDatabaseName(cfg.URL),
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	return db, nil
}

// RunMigrations applies the embedded golang-migrate migrations on a dedicated connection
func (dm *Manager) RunMigrations(ctx context.Context, db *sql.DB) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "RunMigrations",
		attribute.String("db.system", "postgresql"),
		attribute.String("migration.type", "golang_migrate"),
	)
	defer observability.FinishSpan(span, &err)

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return contextutils.NewCodedErrorf(contextutils.ErrDatabaseMigration, err, "failed to open embedded migrations")
	}

	// A dedicated connection keeps m.Close from closing the shared pool
	conn, err := db.Conn(ctx)
	if err != nil {
		return contextutils.NewCodedErrorf(contextutils.ErrDatabaseConnection, err, "failed to acquire migration connection")
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = conn.Close()
		return contextutils.NewCodedErrorf(contextutils.ErrDatabaseMigration, err, "failed to initialize migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return contextutils.NewCodedErrorf(contextutils.ErrDatabaseMigration, err, "failed to initialize golang-migrate")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			dm.logger.Warn(ctx, "Error closing migration", map[string]interface{}{
				"source_error": errString(srcErr),
				"db_error":     errString(dbErr),
			})
		}
	}()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return contextutils.NewCodedErrorf(contextutils.ErrDatabaseMigration, err, "golang-migrate up failed")
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		span.SetAttributes(attribute.Int("migration.version", int(version)), attribute.Bool("migration.dirty", dirty))
	}

	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Debug(ctx, "No new migrations to apply", map[string]interface{}{"version": version})
		return nil
	}
	dm.logger.Info(ctx, "Database migrations applied", map[string]interface{}{"version": version})
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
