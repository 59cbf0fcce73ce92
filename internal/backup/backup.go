// Package backup implements file-level snapshot and restore for the sqlite
// store. Snapshots are plain file copies; restore overwrites the live
// database file. There is no isolation against concurrent writers, so the
// service must be stopped before restoring. That is an operator requirement,
// not something this package can guarantee.
package backup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/confuciuslib/clms/internal/data"
)

// ErrUnsupportedStore is returned when the service is not running on a
// file-backed sqlite store.
var ErrUnsupportedStore = errors.New("backups require the sqlite driver")

// Manager creates, restores, and deletes database snapshots, recording every
// attempt in backup_logs.
type Manager struct {
	models data.Models
	dbPath string // Path to the live sqlite file; empty for other drivers
	dir    string // Directory snapshots are written to
	logger *slog.Logger
}

// NewManager constructs a Manager. dbPath must be the live sqlite database
// file, or empty when running on a driver that does not support snapshots.
func NewManager(models data.Models, dbPath, dir string, logger *slog.Logger) *Manager {
	return &Manager{
		models: models,
		dbPath: dbPath,
		dir:    dir,
		logger: logger,
	}
}

// Snapshot copies the live database file into the backup directory and
// records the result. A failed copy is still recorded, with status "failed".
func (m *Manager) Snapshot(description string, actorID *int64) (*data.BackupLog, error) {
	if m.dbPath == "" {
		return nil, ErrUnsupportedStore
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	filename := fmt.Sprintf("library_backup_%s.db", timestamp)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, err
	}

	size, copyErr := copyFile(m.dbPath, filepath.Join(m.dir, filename))

	log := &data.BackupLog{
		Filename:    filename,
		CreatedBy:   actorID,
		FileSize:    size,
		Status:      data.BackupCompleted,
		Description: description,
	}
	if copyErr != nil {
		log.Filename = fmt.Sprintf("failed_backup_%s.db", timestamp)
		log.Status = data.BackupFailed
		log.Description = fmt.Sprintf("Backup failed: %v", copyErr)
	}

	if err := m.models.Backups.Insert(log); err != nil {
		return nil, err
	}
	if copyErr != nil {
		return log, copyErr
	}

	m.logger.Info("backup created", "filename", filename, "size", size)
	return log, nil
}

// Restore overwrites the live database file with the named snapshot. A
// safety copy of the current file is taken first; its filename is returned
// so the operator can roll back a bad restore.
func (m *Manager) Restore(id int64) (string, error) {
	if m.dbPath == "" {
		return "", ErrUnsupportedStore
	}

	log, err := m.models.Backups.Get(id)
	if err != nil {
		return "", err
	}

	source := filepath.Join(m.dir, log.Filename)
	if _, err := os.Stat(source); err != nil {
		return "", fmt.Errorf("backup file missing: %w", err)
	}

	preRestore := fmt.Sprintf("pre_restore_backup_%s.db", time.Now().UTC().Format("20060102_150405"))
	if _, err := copyFile(m.dbPath, filepath.Join(m.dir, preRestore)); err != nil {
		return "", fmt.Errorf("creating pre-restore copy: %w", err)
	}

	if _, err := copyFile(source, m.dbPath); err != nil {
		return preRestore, fmt.Errorf("restoring database: %w", err)
	}

	m.logger.Info("database restored", "from", log.Filename, "pre_restore_copy", preRestore)
	return preRestore, nil
}

// Delete removes a snapshot file and its record. A missing file is not an
// error; the record is removed regardless.
func (m *Manager) Delete(id int64) error {
	log, err := m.models.Backups.Get(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(m.dir, log.Filename)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return m.models.Backups.Delete(id)
}

// Path returns the on-disk location of a snapshot.
func (m *Manager) Path(log *data.BackupLog) string {
	return filepath.Join(m.dir, log.Filename)
}

// copyFile copies src to dst, returning the number of bytes written.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return size, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return size, err
	}
	return size, out.Close()
}
