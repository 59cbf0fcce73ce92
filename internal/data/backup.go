// internal/data/backup.go
package data

import (
	"database/sql"
	"errors"
	"time"
)

// Backup statuses.
const (
	BackupCompleted = "completed"
	BackupFailed    = "failed"
)

// BackupLog records one database snapshot attempt. Unlike every other table,
// backup rows may be deleted (together with their snapshot file).
type BackupLog struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// BackupLogModel wraps a *sql.DB connection for the backup_logs table.
type BackupLogModel struct {
	DB *sql.DB
}

// Insert records a backup attempt.
func (m BackupLogModel) Insert(backup *BackupLog) error {
	return m.DB.QueryRow(`
		INSERT INTO backup_logs (filename, created_by, file_size, status, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		backup.Filename,
		nullInt64Ptr(backup.CreatedBy),
		backup.FileSize,
		backup.Status,
		backup.Description,
	).Scan(&backup.ID, &backup.CreatedAt)
}

// Get retrieves a backup record by id.
func (m BackupLogModel) Get(id int64) (*BackupLog, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	var backup BackupLog
	var createdBy sql.NullInt64
	var description sql.NullString

	err := m.DB.QueryRow(`
		SELECT id, filename, created_by, file_size, status, description, created_at
		FROM backup_logs WHERE id = $1`, id).Scan(
		&backup.ID, &backup.Filename, &createdBy, &backup.FileSize,
		&backup.Status, &description, &backup.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	if createdBy.Valid {
		backup.CreatedBy = &createdBy.Int64
	}
	backup.Description = description.String
	return &backup, nil
}

// GetAll returns every backup record, newest first.
func (m BackupLogModel) GetAll() ([]*BackupLog, error) {
	rows, err := m.DB.Query(`
		SELECT id, filename, created_by, file_size, status, description, created_at
		FROM backup_logs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	backups := []*BackupLog{}
	for rows.Next() {
		var backup BackupLog
		var createdBy sql.NullInt64
		var description sql.NullString

		err := rows.Scan(&backup.ID, &backup.Filename, &createdBy, &backup.FileSize,
			&backup.Status, &description, &backup.CreatedAt)
		if err != nil {
			return nil, err
		}

		if createdBy.Valid {
			backup.CreatedBy = &createdBy.Int64
		}
		backup.Description = description.String
		backups = append(backups, &backup)
	}
	return backups, rows.Err()
}

// Delete removes a backup record.
func (m BackupLogModel) Delete(id int64) error {
	result, err := m.DB.Exec(`DELETE FROM backup_logs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
