// cmd/api/audit.go
// The logAudit helper plus the read-only audit endpoints.
package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/confuciuslib/clms/internal/data"
)

// logAudit appends an audit entry for a mutating action performed during r.
// The actor is whoever authenticated on this request (nil for anonymous),
// threaded explicitly rather than read from any ambient state. A failed
// audit write is logged and swallowed: the audit trail is advisory and must
// never abort or roll back the business operation that triggered it.
func (app *applicationDependencies) logAudit(r *http.Request, action, entityType string, entityID int64, details map[string]any) {
	entry := &data.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		RequestID:  app.contextGetRequestID(r),
		IPAddress:  app.clientIP(r),
	}
	if user := app.contextGetUser(r); user != nil {
		entry.ActorID = &user.ID
	}

	if err := app.models.AuditLogs.Insert(entry); err != nil {
		app.logger.Error("audit logging failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// listAuditLogsHandler handles GET /v1/audit.
// Supports entity_type, action, and actor_id filters plus pagination; page
// size is capped at 100. Results are newest first.
func (app *applicationDependencies) listAuditLogsHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	auditFilters := data.AuditFilters{
		EntityType: app.readString(qs, "entity_type", ""),
		Action:     app.readString(qs, "action", ""),
		ActorID:    int64(app.readInt(qs, "actor_id", 0)),
	}

	filters := data.Filters{
		Page:         app.readInt(qs, "page", 1),
		PageSize:     app.readInt(qs, "page_size", 50),
		Sort:         "-created_at",
		SortSafeList: []string{"-created_at"},
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 100
	}

	entries, metadata, err := app.models.AuditLogs.GetAll(auditFilters, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"audit_logs": entries, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// entityHistoryHandler handles GET /v1/audit/entity/:type/:id.
// It returns the complete audit history for one entity, newest first.
func (app *applicationDependencies) entityHistoryHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	entityType := params.ByName("type")

	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	history, err := app.models.AuditLogs.GetForEntity(entityType, id)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"history": history}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
