// internal/data/migrations.go
// Schema bootstrap. Statements are ordered so foreign-key targets are created
// before the tables that reference them, and every statement is idempotent
// (CREATE ... IF NOT EXISTS) so Migrate can run on every startup.
package data

import (
	"database/sql"
	"fmt"
	"strings"
)

// migrations holds every DDL statement in execution order. The %[1]s verb is
// replaced with the driver's auto-increment primary key syntax, which is the
// only point where the postgres and sqlite schemas differ.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id %[1]s,
		username VARCHAR(80) UNIQUE NOT NULL,
		email VARCHAR(120) UNIQUE NOT NULL,
		password_hash VARCHAR(256) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'librarian',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id %[1]s,
		name VARCHAR(100) UNIQUE NOT NULL,
		description TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS students (
		id %[1]s,
		name VARCHAR(100) NOT NULL,
		registration_number VARCHAR(50) UNIQUE,
		id_number VARCHAR(20) UNIQUE,
		passport_number VARCHAR(20) UNIQUE,
		email VARCHAR(120) NOT NULL,
		phone VARCHAR(20),
		membership_status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS staff (
		id %[1]s,
		name VARCHAR(100) NOT NULL,
		staff_type VARCHAR(20) NOT NULL,
		email VARCHAR(120),
		phone VARCHAR(20),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS books (
		id %[1]s,
		title VARCHAR(200) NOT NULL,
		author VARCHAR(200),
		publisher VARCHAR(200),
		isbn VARCHAR(20) UNIQUE,
		unique_id VARCHAR(50) UNIQUE NOT NULL,
		category_id BIGINT REFERENCES categories(id),
		total_copies INTEGER NOT NULL DEFAULT 1,
		shelf_location VARCHAR(50),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS loans (
		id %[1]s,
		book_id BIGINT NOT NULL REFERENCES books(id),
		student_id BIGINT REFERENCES students(id),
		staff_id BIGINT REFERENCES staff(id),
		borrowed_at TIMESTAMP NOT NULL,
		due_date TIMESTAMP NOT NULL,
		returned_at TIMESTAMP,
		notes TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS fines (
		id %[1]s,
		student_id BIGINT NOT NULL REFERENCES students(id),
		loan_id BIGINT NOT NULL REFERENCES loans(id),
		amount DOUBLE PRECISION NOT NULL,
		original_amount DOUBLE PRECISION NOT NULL,
		reason VARCHAR(200) NOT NULL DEFAULT 'Late return',
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMP,
		waived BOOLEAN NOT NULL DEFAULT FALSE,
		waived_at TIMESTAMP,
		waived_by BIGINT REFERENCES users(id),
		waiver_reason TEXT,
		adjustment_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id %[1]s,
		actor_id BIGINT REFERENCES users(id),
		action VARCHAR(100) NOT NULL,
		entity_type VARCHAR(50) NOT NULL,
		entity_id BIGINT,
		details TEXT,
		request_id VARCHAR(36),
		ip_address VARCHAR(45),
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS backup_logs (
		id %[1]s,
		filename VARCHAR(200) NOT NULL,
		created_by BIGINT REFERENCES users(id),
		file_size BIGINT,
		status VARCHAR(20) NOT NULL DEFAULT 'completed',
		description TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS notification_preferences (
		id %[1]s,
		student_id BIGINT UNIQUE NOT NULL REFERENCES students(id),
		email_due_reminder BOOLEAN NOT NULL DEFAULT TRUE,
		email_overdue_notice BOOLEAN NOT NULL DEFAULT TRUE,
		days_before_due INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS email_logs (
		id %[1]s,
		recipient_email VARCHAR(120) NOT NULL,
		subject VARCHAR(200) NOT NULL,
		body TEXT NOT NULL,
		email_type VARCHAR(50) NOT NULL,
		student_id BIGINT REFERENCES students(id),
		loan_id BIGINT REFERENCES loans(id),
		sent_at TIMESTAMP NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'sent',
		error_message TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_loans_open_book ON loans (book_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_loans_open_student ON loans (student_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_loans_due_date ON loans (due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs (entity_type, entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_loan ON email_logs (loan_id, email_type)`,
}

// Migrate creates any missing tables and indexes. driver must be "postgres"
// or "sqlite3", matching the name the pool was opened with.
func Migrate(db *sql.DB, driver string) error {
	var pk string
	switch driver {
	case "postgres":
		pk = "BIGSERIAL PRIMARY KEY"
	case "sqlite3":
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	for _, stmt := range migrations {
		if strings.Contains(stmt, "%[1]s") {
			stmt = fmt.Sprintf(stmt, pk)
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
