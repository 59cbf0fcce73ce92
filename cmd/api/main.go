// Package main is the entry point for the library API server.
// It wires together configuration, the database connection, and the HTTP router.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/confuciuslib/clms/internal/backup"
	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/mailer"
	"github.com/confuciuslib/clms/internal/notifier"

	_ "github.com/lib/pq"           // Register the PostgreSQL driver with database/sql.
	_ "github.com/mattn/go-sqlite3" // Register the SQLite driver with database/sql.
)

// appVersion is the current version of the API, shown in logs and the healthcheck.
const appVersion = "1.0.0"

// serverConfig holds all the values that can be tweaked at startup via
// command-line flags. Defaults come from the environment (a .env file is
// loaded first if present), so deployments can configure without flags.
type serverConfig struct {
	port        int    // TCP port the HTTP server listens on (default 4000)
	environment string // Runtime environment: development, staging, or production
	db          struct {
		driver string // "sqlite3" or "postgres"
		dsn    string // Data Source Name for the chosen driver
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	backupDir string // Directory database snapshots are written to
	limiter   struct {
		rps     float64 // Sustained requests per second per client IP
		burst   int     // Burst capacity per client IP
		enabled bool
	}
}

// applicationDependencies bundles every shared resource that HTTP handlers need.
// A pointer to this struct is passed as the receiver on all handler and route methods.
type applicationDependencies struct {
	config   serverConfig     // Server configuration loaded from flags
	logger   *slog.Logger     // Structured logger that writes to stdout
	models   data.Models      // Database model layer for all tables
	notifier *notifier.Notifier
	backups  *backup.Manager
}

// main is the application entry point.
// It parses flags, opens the database, runs migrations, wires up dependencies,
// and starts the HTTP server.
func main() {
	// Load a .env file if one exists; real environment variables win.
	_ = godotenv.Load()

	var settings serverConfig

	// Register command-line flags so operators can override defaults at runtime.
	flag.IntVar(&settings.port, "port", 4000, "Server port")
	flag.StringVar(&settings.environment, "env", envOr("CLMS_ENV", "development"), "Environment(development|staging|production)")
	flag.StringVar(&settings.db.driver, "db-driver", envOr("CLMS_DB_DRIVER", "sqlite3"), "Database driver (sqlite3|postgres)")
	flag.StringVar(&settings.db.dsn, "db-dsn", envOr("CLMS_DB_DSN", "file:clms.db?_foreign_keys=on"), "Database DSN")
	flag.StringVar(&settings.smtp.host, "smtp-host", envOr("CLMS_SMTP_HOST", "smtp.gmail.com"), "SMTP host")
	flag.IntVar(&settings.smtp.port, "smtp-port", 587, "SMTP port")
	flag.StringVar(&settings.smtp.username, "smtp-username", os.Getenv("CLMS_SMTP_USERNAME"), "SMTP username")
	flag.StringVar(&settings.smtp.password, "smtp-password", os.Getenv("CLMS_SMTP_PASSWORD"), "SMTP password")
	flag.StringVar(&settings.smtp.sender, "smtp-sender", envOr("CLMS_SMTP_SENDER", "library@confucius.uonbi.ac.ke"), "Email sender address")
	flag.StringVar(&settings.backupDir, "backup-dir", envOr("CLMS_BACKUP_DIR", "backups"), "Backup directory")
	flag.Float64Var(&settings.limiter.rps, "limiter-rps", 2, "Rate limiter requests per second")
	flag.IntVar(&settings.limiter.burst, "limiter-burst", 4, "Rate limiter burst")
	flag.BoolVar(&settings.limiter.enabled, "limiter-enabled", true, "Enable rate limiter")

	flag.Parse()

	// Create a structured logger that writes human-readable text to stdout.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Open and verify the database connection pool.
	db, err := openDB(settings)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	defer db.Close() // Close the pool cleanly when main() returns.

	logger.Info("database connection pool established", "driver", settings.db.driver)

	// Create any missing tables before serving traffic.
	if err := data.Migrate(db, settings.db.driver); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	models := data.NewModels(db)

	// A fresh database has no accounts, which would lock out every admin
	// endpoint. Seed the initial admin from the environment.
	if err := bootstrapAdmin(models, logger); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	transport := mailer.NewSMTP(
		settings.smtp.host,
		settings.smtp.port,
		settings.smtp.username,
		settings.smtp.password,
		settings.smtp.sender,
	)

	// Snapshots only work against a file-backed sqlite store; the manager is
	// still constructed for other drivers and reports ErrUnsupportedStore.
	var dbFile string
	if settings.db.driver == "sqlite3" {
		dbFile = sqliteFilePath(settings.db.dsn)
	}

	// Bundle all shared dependencies into a single struct.
	appInstance := &applicationDependencies{
		config:   settings,
		logger:   logger,
		models:   models,
		notifier: notifier.New(models, transport, logger),
		backups:  backup.NewManager(models, dbFile, settings.backupDir, logger),
	}

	// serve blocks until shutdown; it handles SIGINT/SIGTERM gracefully.
	if err := appInstance.serve(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

// openDB opens a connection pool for the configured driver, then pings the
// database with a 5-second timeout to confirm it is reachable.
// Returns the pool on success, or an error if the connection cannot be established.
func openDB(settings serverConfig) (*sql.DB, error) {
	// sql.Open only validates the DSN format; it does not actually connect yet.
	db, err := sql.Open(settings.db.driver, settings.db.dsn)
	if err != nil {
		return nil, err
	}

	// Create a context that cancels automatically after 5 seconds.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// PingContext performs a real round-trip to verify the database is reachable.
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// bootstrapAdmin creates the first admin account when the users table is
// empty. Credentials come from CLMS_ADMIN_USERNAME / CLMS_ADMIN_PASSWORD;
// the defaults are only meant for local development and are logged loudly.
func bootstrapAdmin(models data.Models, logger *slog.Logger) error {
	count, err := models.Users.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := envOr("CLMS_ADMIN_USERNAME", "admin")
	plaintext := os.Getenv("CLMS_ADMIN_PASSWORD")
	if plaintext == "" {
		plaintext = "admin123"
		logger.Warn("CLMS_ADMIN_PASSWORD not set, using default password; change it immediately")
	}

	admin := &data.User{
		Username: username,
		Email:    envOr("CLMS_ADMIN_EMAIL", "admin@confucius.uonbi.ac.ke"),
		Role:     data.RoleAdmin,
	}
	if err := admin.Password.Set(plaintext); err != nil {
		return err
	}
	if err := models.Users.Insert(admin); err != nil {
		return err
	}

	logger.Info("initial admin account created", "username", username)
	return nil
}

// envOr returns the value of the named environment variable, or fallback if
// it is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// sqliteFilePath extracts the on-disk file path from a go-sqlite3 DSN such
// as "file:clms.db?_foreign_keys=on" or a bare path.
func sqliteFilePath(dsn string) string {
	s := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	return s
}
