// cmd/api/fines.go
// Fine endpoints. Paying is open to any authenticated operator; waiving and
// adjusting change the amount owed, so they require an admin, whose identity
// is recorded on the fine itself as well as in the audit trail.
package main

import (
	"errors"
	"net/http"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/validator"
)

// listFinesHandler handles GET /v1/fines.
// The status query parameter selects pending, paid, waived, or all fines.
func (app *applicationDependencies) listFinesHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	status := app.readString(qs, "status", "pending")

	v := validator.New()
	v.Check(
		validator.In(status, data.FineStatusPending, data.FineStatusPaid, data.FineStatusWaived, "all"),
		"status",
		"must be one of pending, paid, waived, or all",
	)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	filters := data.Filters{
		Page:         app.readInt(qs, "page", 1),
		PageSize:     app.readInt(qs, "page_size", 20),
		Sort:         app.readString(qs, "sort", "-created_at"),
		SortSafeList: []string{"id", "amount", "created_at", "-id", "-amount", "-created_at"},
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	fines, metadata, err := app.models.Fines.GetAll(status, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"fines": fines, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showFineHandler handles GET /v1/fines/:id.
func (app *applicationDependencies) showFineHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	fine, err := app.models.Fines.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"fine": fine}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// payFineHandler handles POST /v1/fines/:id/pay.
// Paying an already-paid or waived fine yields a 409 and changes nothing.
func (app *applicationDependencies) payFineHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	fine, err := app.models.Fines.Pay(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, data.ErrFineClosed):
			app.conflictResponse(w, r, errors.New("this fine has already been paid or waived"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionPayFine, "Fine", fine.ID, map[string]any{
		"student_id": fine.StudentID,
		"amount":     fine.Amount,
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"fine": fine}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// waiveFineHandler handles POST /v1/fines/:id/waive.
// Admin only: the waiving administrator is recorded on the fine.
func (app *applicationDependencies) waiveFineHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := app.requireAdminActor(w, r)
	if !ok {
		return
	}

	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(input.Reason != "", "reason", "must be provided")
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	fine, err := app.models.Fines.Waive(id, admin.ID, input.Reason)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, data.ErrFineClosed):
			app.conflictResponse(w, r, errors.New("this fine has already been paid or waived"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionWaiveFine, "Fine", fine.ID, map[string]any{
		"student_id":      fine.StudentID,
		"original_amount": fine.OriginalAmount,
		"reason":          input.Reason,
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"fine": fine}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// adjustFineHandler handles POST /v1/fines/:id/adjust.
// Admin only: sets a pending fine to a new non-negative amount.
func (app *applicationDependencies) adjustFineHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := app.requireAdminActor(w, r)
	if !ok {
		return
	}

	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Amount *float64 `json:"amount"`
		Reason string   `json:"reason"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(input.Amount != nil, "amount", "must be provided")
	v.Check(input.Reason != "", "reason", "must be provided")
	if input.Amount != nil {
		v.Check(*input.Amount >= 0, "amount", "must not be negative")
	}
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	fine, err := app.models.Fines.Adjust(id, admin.ID, *input.Amount, input.Reason)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, data.ErrFineClosed):
			app.conflictResponse(w, r, errors.New("this fine has already been paid or waived"))
		case errors.Is(err, data.ErrInvalidAmount):
			app.badRequestResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionAdjustFine, "Fine", fine.ID, map[string]any{
		"student_id": fine.StudentID,
		"new_amount": fine.Amount,
		"adjustment": fine.AdjustmentAmount,
		"reason":     input.Reason,
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"fine": fine}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// fineStatisticsHandler handles GET /v1/fines-statistics (admin only).
func (app *applicationDependencies) fineStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := app.models.Fines.Statistics()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"statistics": stats}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
