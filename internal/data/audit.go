// internal/data/audit.go
// Audit trail. Entries are append-only advisory records: the caller decides
// what to do when a write fails, and the expectation everywhere in this
// application is to log the failure and carry on. A lost audit entry must
// never fail the business operation that triggered it.
package data

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Audit action codes written by the handlers and batch jobs.
const (
	ActionCreateBook    = "CREATE_BOOK"
	ActionUpdateBook    = "UPDATE_BOOK"
	ActionDeleteBook    = "DELETE_BOOK"
	ActionCreateStudent = "CREATE_STUDENT"
	ActionUpdateStudent = "UPDATE_STUDENT"
	ActionCreateStaff   = "CREATE_STAFF"
	ActionUpdateStaff   = "UPDATE_STAFF"
	ActionBorrowBook    = "BORROW_BOOK"
	ActionReturnBook    = "RETURN_BOOK"
	ActionPayFine       = "PAY_FINE"
	ActionWaiveFine     = "WAIVE_FINE"
	ActionAdjustFine    = "ADJUST_FINE"
	ActionSendEmail     = "SEND_EMAIL"
	ActionCreateBackup  = "CREATE_BACKUP"
	ActionRestoreBackup = "RESTORE_BACKUP"
	ActionDeleteBackup  = "DELETE_BACKUP"
	ActionCreateUser    = "CREATE_USER"
	ActionServerStop    = "SERVER_SHUTDOWN"
)

// AuditEntry is one immutable record of a mutating action.
type AuditEntry struct {
	ID         int64          `json:"id"`
	ActorID    *int64         `json:"actor_id,omitempty"` // Nil for system actions
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditFilters narrows GetAll results. Zero values mean "no filter".
type AuditFilters struct {
	EntityType string
	Action     string
	ActorID    int64
}

// AuditLogModel wraps a *sql.DB connection for the audit_logs table.
type AuditLogModel struct {
	DB *sql.DB
}

// Insert appends an audit entry. Details are serialized to JSON best-effort:
// a value the encoder cannot handle is replaced by its fmt string form rather
// than failing the whole entry.
func (m AuditLogModel) Insert(entry *AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var details sql.NullString
	if len(entry.Details) > 0 {
		blob, err := json.Marshal(entry.Details)
		if err != nil {
			blob, err = json.Marshal(map[string]string{"raw": fmt.Sprint(entry.Details)})
			if err != nil {
				blob = []byte(`{}`)
			}
		}
		details = sql.NullString{String: string(blob), Valid: true}
	}

	return m.DB.QueryRow(`
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details, request_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		nullInt64Ptr(entry.ActorID),
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		details,
		nullString(entry.RequestID),
		nullString(entry.IPAddress),
		entry.CreatedAt,
	).Scan(&entry.ID)
}

// GetForEntity returns every audit entry for one entity, newest first,
// unbounded.
func (m AuditLogModel) GetForEntity(entityType string, entityID int64) ([]*AuditEntry, error) {
	rows, err := m.DB.Query(`
		SELECT id, actor_id, action, entity_type, entity_id, details, request_id, ip_address, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuditEntries(rows, nil)
}

// GetAll returns audit entries newest first, narrowed by the given filters
// and paginated. Page size is capped at 100 by the handler layer.
func (m AuditLogModel) GetAll(f AuditFilters, filters Filters) ([]*AuditEntry, Metadata, error) {
	query := `
		SELECT count(*) OVER(), id, actor_id, action, entity_type, entity_id,
		       details, request_id, ip_address, created_at
		FROM audit_logs
		WHERE ($1 = '' OR entity_type = $1)
		AND ($2 = '' OR action = $2)
		AND ($3 = 0 OR actor_id = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5`

	rows, err := m.DB.Query(query, f.EntityType, f.Action, f.ActorID, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	entries, err := collectAuditEntries(rows, &totalRecords)
	if err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return entries, metadata, nil
}

func collectAuditEntries(rows *sql.Rows, total *int) ([]*AuditEntry, error) {
	entries := []*AuditEntry{}
	for rows.Next() {
		var entry AuditEntry
		var actorID, entityID sql.NullInt64
		var details, requestID, ipAddress sql.NullString

		dest := []any{}
		if total != nil {
			dest = append(dest, total)
		}
		dest = append(dest,
			&entry.ID, &actorID, &entry.Action, &entry.EntityType, &entityID,
			&details, &requestID, &ipAddress, &entry.CreatedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		if actorID.Valid {
			entry.ActorID = &actorID.Int64
		}
		entry.EntityID = entityID.Int64
		entry.RequestID = requestID.String
		entry.IPAddress = ipAddress.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				entry.Details = map[string]any{"raw": details.String}
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
