// cmd/api/students.go
// Handlers for student registration, lookup, and per-student notification
// preferences. Students are never deleted; suspending or expiring the
// membership is the way to retire one.
package main

import (
	"errors"
	"net/http"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/validator"
)

// createStudentHandler handles POST /v1/students.
func (app *applicationDependencies) createStudentHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name               string `json:"name"`
		RegistrationNumber string `json:"registration_number"`
		IDNumber           string `json:"id_number"`
		PassportNumber     string `json:"passport_number"`
		Email              string `json:"email"`
		Phone              string `json:"phone"`
		MembershipStatus   string `json:"membership_status"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	student := &data.Student{
		Name:               input.Name,
		RegistrationNumber: input.RegistrationNumber,
		IDNumber:           input.IDNumber,
		PassportNumber:     input.PassportNumber,
		Email:              input.Email,
		Phone:              input.Phone,
		MembershipStatus:   input.MembershipStatus,
	}

	v := validator.New()
	if data.ValidateStudent(v, student); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Students.Insert(student)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateIdentifier):
			app.conflictResponse(w, r, errors.New("a student with this identifier or email already exists"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionCreateStudent, "Student", student.ID, map[string]any{
		"name":       student.Name,
		"identifier": student.Identifier(),
		"email":      student.Email,
	})

	err = app.writeJSON(w, http.StatusCreated, envelope{"student": student}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showStudentHandler handles GET /v1/students/:id. The response includes the
// student's full borrowing history and outstanding fines alongside the
// derived open-loan count and unpaid fine total.
func (app *applicationDependencies) showStudentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	student, err := app.models.Students.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	loans, err := app.models.Loans.ForStudent(id)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	unpaidFines, err := app.models.Fines.UnpaidForStudent(id)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{
		"student":      student,
		"loans":        loans,
		"unpaid_fines": unpaidFines,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listStudentsHandler handles GET /v1/students with search and pagination.
// Search matches name, email, and all three identifier columns.
func (app *applicationDependencies) listStudentsHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	search := app.readString(qs, "search", "")

	filters := data.Filters{
		Page:         app.readInt(qs, "page", 1),
		PageSize:     app.readInt(qs, "page_size", 20),
		Sort:         app.readString(qs, "sort", "name"),
		SortSafeList: []string{"id", "name", "created_at", "-id", "-name", "-created_at"},
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	students, metadata, err := app.models.Students.GetAll(search, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"students": students, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateStudentHandler handles PATCH /v1/students/:id.
func (app *applicationDependencies) updateStudentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	student, err := app.models.Students.Get(id)
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
		Name               *string `json:"name"`
		RegistrationNumber *string `json:"registration_number"`
		IDNumber           *string `json:"id_number"`
		PassportNumber     *string `json:"passport_number"`
		Email              *string `json:"email"`
		Phone              *string `json:"phone"`
		MembershipStatus   *string `json:"membership_status"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Name != nil {
		student.Name = *input.Name
	}
	if input.RegistrationNumber != nil {
		student.RegistrationNumber = *input.RegistrationNumber
	}
	if input.IDNumber != nil {
		student.IDNumber = *input.IDNumber
	}
	if input.PassportNumber != nil {
		student.PassportNumber = *input.PassportNumber
	}
	if input.Email != nil {
		student.Email = *input.Email
	}
	if input.Phone != nil {
		student.Phone = *input.Phone
	}
	if input.MembershipStatus != nil {
		student.MembershipStatus = *input.MembershipStatus
	}

	v := validator.New()
	if data.ValidateStudent(v, student); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Students.Update(student)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateIdentifier):
			app.conflictResponse(w, r, errors.New("a student with this identifier or email already exists"))
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionUpdateStudent, "Student", student.ID, map[string]any{
		"name":              student.Name,
		"membership_status": student.MembershipStatus,
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"student": student}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showPreferencesHandler handles GET /v1/students/:id/preferences.
// A student with no stored preference row gets the defaults.
func (app *applicationDependencies) showPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	// Confirm the student exists before reporting preferences for them.
	_, err = app.models.Students.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	pref, err := app.models.Preferences.GetForStudent(id)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"preferences": pref}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updatePreferencesHandler handles PUT /v1/students/:id/preferences.
// PUT rather than PATCH: the body replaces the whole preference row.
func (app *applicationDependencies) updatePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	_, err = app.models.Students.Get(id)
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
		EmailDueReminder   bool `json:"email_due_reminder"`
		EmailOverdueNotice bool `json:"email_overdue_notice"`
		DaysBeforeDue      int  `json:"days_before_due"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(input.DaysBeforeDue >= 1 && input.DaysBeforeDue <= 7, "days_before_due", "must be between 1 and 7")
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	pref := &data.NotificationPreference{
		StudentID:          id,
		EmailDueReminder:   input.EmailDueReminder,
		EmailOverdueNotice: input.EmailOverdueNotice,
		DaysBeforeDue:      input.DaysBeforeDue,
	}

	err = app.models.Preferences.Upsert(pref)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"preferences": pref}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
