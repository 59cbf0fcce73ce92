// cmd/api/loans.go
// Borrow and return endpoints. The hard rules (copy availability, the
// student borrowing limit, idempotent returns) live in internal/data; the
// handlers add the softer pre-checks that produce friendlier error messages.
package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/validator"
)

// createLoanHandler handles POST /v1/loans: borrowing a book.
// Exactly one of student_id and staff_id must be provided. The due date is
// computed from the borrower class unless an explicit due_date overrides it.
func (app *applicationDependencies) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		BookID    int64  `json:"book_id"`
		StudentID *int64 `json:"student_id"`
		StaffID   *int64 `json:"staff_id"`
		Notes     string `json:"notes"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.Check(input.BookID > 0, "book_id", "must be provided")
	v.Check(
		(input.StudentID != nil) != (input.StaffID != nil),
		"borrower",
		"exactly one of student_id or staff_id must be provided",
	)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	// Soft pre-checks for better error messages. The guarded insert below is
	// what actually enforces availability and the borrow limit.
	if input.StudentID != nil {
		student, err := app.models.Students.Get(*input.StudentID)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrRecordNotFound):
				app.notFoundResponse(w, r)
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}
		if student.MembershipStatus != data.MembershipActive {
			app.conflictResponse(w, r, fmt.Errorf("student membership is %s", student.MembershipStatus))
			return
		}
	}
	if input.StaffID != nil {
		_, err := app.models.Staff.Get(*input.StaffID)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrRecordNotFound):
				app.notFoundResponse(w, r)
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}
	}

	loan := &data.Loan{
		BookID:    input.BookID,
		StudentID: input.StudentID,
		StaffID:   input.StaffID,
		Notes:     input.Notes,
	}

	err = app.models.Loans.Insert(loan)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, data.ErrBookUnavailable):
			app.conflictResponse(w, r, errors.New("no copies of this book are currently available"))
		case errors.Is(err, data.ErrBorrowLimit):
			app.conflictResponse(w, r, fmt.Errorf("student already has %d books borrowed", data.StudentBorrowLimit))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionBorrowBook, "Loan", loan.ID, map[string]any{
		"book_id":    loan.BookID,
		"student_id": loan.StudentID,
		"staff_id":   loan.StaffID,
		"due_date":   loan.DueDate,
	})

	err = app.writeJSON(w, http.StatusCreated, envelope{"loan": loan}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showLoanHandler handles GET /v1/loans/:id.
func (app *applicationDependencies) showLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	loan, err := app.models.Loans.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"loan": loan}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listLoansHandler handles GET /v1/loans.
// The status query parameter selects active, returned, overdue, or all loans.
func (app *applicationDependencies) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	status := app.readString(qs, "status", "active")

	v := validator.New()
	v.Check(
		validator.In(status, "active", "returned", "overdue", "all"),
		"status",
		"must be one of active, returned, overdue, or all",
	)
	if !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	filters := data.Filters{
		Page:         app.readInt(qs, "page", 1),
		PageSize:     app.readInt(qs, "page_size", 20),
		Sort:         app.readString(qs, "sort", "-borrowed_at"),
		SortSafeList: []string{"id", "borrowed_at", "due_date", "-id", "-borrowed_at", "-due_date"},
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	loans, metadata, err := app.models.Loans.GetAll(status, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"loans": loans, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// returnLoanHandler handles PUT /v1/loans/:id/return.
// Closing an already-returned loan yields a 409. If the loan is overdue and
// the borrower is a student, the response includes the fine created for it.
func (app *applicationDependencies) returnLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Notes string `json:"notes"`
	}

	// An empty body is fine; notes are optional.
	if r.ContentLength > 0 {
		err = app.readJSON(w, r, &input)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	}

	loan, fine, err := app.models.Loans.Return(id, input.Notes)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, data.ErrAlreadyReturned):
			app.conflictResponse(w, r, errors.New("this loan has already been returned"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	details := map[string]any{
		"book_id":     loan.BookID,
		"returned_at": loan.ReturnedAt,
	}
	if fine != nil {
		details["fine_id"] = fine.ID
		details["fine_amount"] = fine.Amount
	}
	app.logAudit(r, data.ActionReturnBook, "Loan", loan.ID, details)

	response := envelope{"loan": loan}
	if fine != nil {
		response["fine"] = fine
	}

	err = app.writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
