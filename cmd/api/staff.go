// cmd/api/staff.go
package main

import (
	"errors"
	"net/http"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/validator"
)

// createStaffHandler handles POST /v1/staff.
func (app *applicationDependencies) createStaffHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name      string `json:"name"`
		StaffType string `json:"staff_type"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	staff := &data.Staff{
		Name:      input.Name,
		StaffType: input.StaffType,
		Email:     input.Email,
		Phone:     input.Phone,
	}

	v := validator.New()
	if data.ValidateStaff(v, staff); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Staff.Insert(staff)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.logAudit(r, data.ActionCreateStaff, "Staff", staff.ID, map[string]any{
		"name":       staff.Name,
		"staff_type": staff.StaffType,
	})

	err = app.writeJSON(w, http.StatusCreated, envelope{"staff": staff}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showStaffHandler handles GET /v1/staff/:id.
func (app *applicationDependencies) showStaffHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	staff, err := app.models.Staff.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"staff": staff}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listStaffHandler handles GET /v1/staff with search and pagination.
func (app *applicationDependencies) listStaffHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	search := app.readString(qs, "search", "")

	filters := data.Filters{
		Page:         app.readInt(qs, "page", 1),
		PageSize:     app.readInt(qs, "page_size", 20),
		Sort:         app.readString(qs, "sort", "name"),
		SortSafeList: []string{"id", "name", "staff_type", "created_at", "-id", "-name", "-staff_type", "-created_at"},
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	staff, metadata, err := app.models.Staff.GetAll(search, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"staff": staff, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateStaffHandler handles PATCH /v1/staff/:id.
func (app *applicationDependencies) updateStaffHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	staff, err := app.models.Staff.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	var input struct {
		Name      *string `json:"name"`
		StaffType *string `json:"staff_type"`
		Email     *string `json:"email"`
		Phone     *string `json:"phone"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Name != nil {
		staff.Name = *input.Name
	}
	if input.StaffType != nil {
		staff.StaffType = *input.StaffType
	}
	if input.Email != nil {
		staff.Email = *input.Email
	}
	if input.Phone != nil {
		staff.Phone = *input.Phone
	}

	v := validator.New()
	if data.ValidateStaff(v, staff); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Staff.Update(staff)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionUpdateStaff, "Staff", staff.ID, map[string]any{
		"name":       staff.Name,
		"staff_type": staff.StaffType,
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"staff": staff}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
