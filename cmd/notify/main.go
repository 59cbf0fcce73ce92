// Package main is the notification runner, meant to be invoked from cron.
// It connects to the same database as the API server, runs the due-reminder
// and overdue-notice scans, and prints how many emails went out.
//
// Typical crontab entry, once a day at 08:00:
//
//	0 8 * * * /usr/local/bin/notify --all
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/mailer"
	"github.com/confuciuslib/clms/internal/notifier"

	_ "github.com/lib/pq"           // Register the PostgreSQL driver with database/sql.
	_ "github.com/mattn/go-sqlite3" // Register the SQLite driver with database/sql.
)

func main() {
	_ = godotenv.Load()

	var (
		dbDriver     string
		dbDSN        string
		smtpHost     string
		smtpPort     int
		smtpUsername string
		smtpPassword string
		smtpSender   string

		runReminders bool
		runOverdue   bool
		runAll       bool
	)

	rootCmd := &cobra.Command{
		Use:   "notify",
		Short: "Send due-date reminders and overdue notices by email",
		Long: `Scans open loans and emails students whose books are due soon or
already overdue, honoring each student's notification preferences. Every
attempt is recorded in email_logs, and a student is mailed at most once per
day per loan per notice type, so re-running the command is safe.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !runReminders && !runOverdue && !runAll {
				return fmt.Errorf("nothing to do: pass --reminders, --overdue, or --all")
			}

			logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

			db, err := sql.Open(dbDriver, dbDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return err
			}

			models := data.NewModels(db)
			transport := mailer.NewSMTP(smtpHost, smtpPort, smtpUsername, smtpPassword, smtpSender)
			n := notifier.New(models, transport, logger)

			if runReminders || runAll {
				sent, err := n.SendDueReminders()
				if err != nil {
					return err
				}
				fmt.Printf("Due date reminders sent: %d\n", sent)
			}

			if runOverdue || runAll {
				sent, err := n.SendOverdueNotices()
				if err != nil {
					return err
				}
				fmt.Printf("Overdue notices sent: %d\n", sent)
			}

			return nil
		},
	}

	rootCmd.Flags().StringVar(&dbDriver, "db-driver", envOr("CLMS_DB_DRIVER", "sqlite3"), "Database driver (sqlite3|postgres)")
	rootCmd.Flags().StringVar(&dbDSN, "db-dsn", envOr("CLMS_DB_DSN", "file:clms.db?_foreign_keys=on"), "Database DSN")
	rootCmd.Flags().StringVar(&smtpHost, "smtp-host", envOr("CLMS_SMTP_HOST", "smtp.gmail.com"), "SMTP host")
	rootCmd.Flags().IntVar(&smtpPort, "smtp-port", 587, "SMTP port")
	rootCmd.Flags().StringVar(&smtpUsername, "smtp-username", os.Getenv("CLMS_SMTP_USERNAME"), "SMTP username")
	rootCmd.Flags().StringVar(&smtpPassword, "smtp-password", os.Getenv("CLMS_SMTP_PASSWORD"), "SMTP password")
	rootCmd.Flags().StringVar(&smtpSender, "smtp-sender", envOr("CLMS_SMTP_SENDER", "library@confucius.uonbi.ac.ke"), "Email sender address")

	rootCmd.Flags().BoolVar(&runReminders, "reminders", false, "Send due date reminders")
	rootCmd.Flags().BoolVar(&runOverdue, "overdue", false, "Send overdue notices")
	rootCmd.Flags().BoolVar(&runAll, "all", false, "Send both reminders and overdue notices")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// envOr returns the value of the named environment variable, or fallback if
// it is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
