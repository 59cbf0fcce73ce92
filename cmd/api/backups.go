// cmd/api/backups.go
// Backup endpoints, all admin only. Snapshots only work when the server is
// running on the SQLite store; on PostgreSQL they fail with a clear message
// pointing at pg_dump instead.
package main

import (
	"errors"
	"net/http"

	"github.com/confuciuslib/clms/internal/backup"
	"github.com/confuciuslib/clms/internal/data"
)

// listBackupsHandler handles GET /v1/backups, newest first.
func (app *applicationDependencies) listBackupsHandler(w http.ResponseWriter, r *http.Request) {
	backups, err := app.models.Backups.GetAll()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"backups": backups}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createBackupHandler handles POST /v1/backups: takes a snapshot of the
// database file and records it in backup_logs.
func (app *applicationDependencies) createBackupHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Description string `json:"description"`
	}

	if r.ContentLength > 0 {
		err := app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	}

	var actorID *int64
	if user := app.contextGetUser(r); user != nil {
		actorID = &user.ID
	}

	log, err := app.backups.Snapshot(input.Description, actorID)
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrUnsupportedStore):
			app.conflictResponse(w, r, errors.New("file snapshots require the sqlite store; use pg_dump for postgres"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionCreateBackup, "BackupLog", log.ID, map[string]any{
		"filename":  log.Filename,
		"file_size": log.FileSize,
	})

	err = app.writeJSON(w, http.StatusCreated, envelope{"backup": log}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// restoreBackupHandler handles POST /v1/backups/:id/restore.
// The current database file is preserved as a pre-restore snapshot before
// being overwritten, so a bad restore can itself be undone.
func (app *applicationDependencies) restoreBackupHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	preRestore, err := app.backups.Restore(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, backup.ErrUnsupportedStore):
			app.conflictResponse(w, r, errors.New("file snapshots require the sqlite store; use pg_dump for postgres"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionRestoreBackup, "BackupLog", id, map[string]any{
		"pre_restore_file": preRestore,
	})

	err = app.writeJSON(w, http.StatusOK, envelope{
		"message":          "database restored; restart the server to reopen the store",
		"pre_restore_file": preRestore,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteBackupHandler handles DELETE /v1/backups/:id, removing both the log
// row and the snapshot file.
func (app *applicationDependencies) deleteBackupHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.backups.Delete(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionDeleteBackup, "BackupLog", id, nil)

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "backup successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
