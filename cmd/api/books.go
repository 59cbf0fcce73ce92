// cmd/api/books.go
// HTTP request handlers for the book catalog. Each handler is a method on
// *applicationDependencies so it has access to the logger and database models.
package main

import (
	"errors"
	"net/http"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/validator"
)

// createBookHandler handles POST /v1/books.
// It reads a JSON body containing the new book's details, inserts a record
// into the database, and responds with the created book (including its
// database-assigned ID and timestamps) and a 201 Created status.
func (app *applicationDependencies) createBookHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title         string `json:"title"`
		Author        string `json:"author"`
		Publisher     string `json:"publisher"`
		ISBN          string `json:"isbn"`
		UniqueID      string `json:"unique_id"`
		CategoryID    *int64 `json:"category_id"`
		TotalCopies   int    `json:"total_copies"`
		ShelfLocation string `json:"shelf_location"`
	}

	// Decode the incoming JSON body into our input struct using the safe readJSON helper.
	// readJSON enforces a 1MB limit, rejects unknown fields, and ensures a single value.
	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.TotalCopies == 0 {
		input.TotalCopies = 1
	}

	book := &data.Book{
		Title:         input.Title,
		Author:        input.Author,
		Publisher:     input.Publisher,
		ISBN:          input.ISBN,
		UniqueID:      input.UniqueID,
		CategoryID:    input.CategoryID,
		TotalCopies:   input.TotalCopies,
		ShelfLocation: input.ShelfLocation,
	}

	v := validator.New()
	if data.ValidateBook(v, book); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Books.Insert(book)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateIdentifier):
			app.conflictResponse(w, r, errors.New("a book with this ISBN or unique id already exists"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionCreateBook, "Book", book.ID, map[string]any{
		"title":        book.Title,
		"author":       book.Author,
		"unique_id":    book.UniqueID,
		"isbn":         book.ISBN,
		"total_copies": book.TotalCopies,
	})

	err = app.writeJSON(w, http.StatusCreated, envelope{"book": book}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showBookHandler handles GET /v1/books/:id.
// Responds 404 if no book with that ID exists.
func (app *applicationDependencies) showBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	book, err := app.models.Books.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"book": book}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// listBooksHandler handles GET /v1/books.
// Supports search (title/author/ISBN/unique id), category filtering, sorting,
// and pagination via query parameters.
func (app *applicationDependencies) listBooksHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	search := app.readString(qs, "search", "")
	categoryID := int64(app.readInt(qs, "category_id", 0))

	filters := data.Filters{
		Page:         app.readInt(qs, "page", 1),
		PageSize:     app.readInt(qs, "page_size", 20),
		Sort:         app.readString(qs, "sort", "title"),
		SortSafeList: []string{"id", "title", "author", "created_at", "-id", "-title", "-author", "-created_at"},
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	books, metadata, err := app.models.Books.GetAll(search, categoryID, filters)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"books": books, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateBookHandler handles PATCH /v1/books/:id.
// It reads a partial JSON body, applies only the non-nil fields to the
// existing book, and saves the changes. Responds 404 if the book does not exist.
func (app *applicationDependencies) updateBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	book, err := app.models.Books.Get(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	// Every field is a pointer so we can distinguish between "not provided"
	// (nil) and "intentionally set to zero/empty". Only non-nil fields are applied.
	var input struct {
		Title         *string `json:"title"`
		Author        *string `json:"author"`
		Publisher     *string `json:"publisher"`
		ISBN          *string `json:"isbn"`
		UniqueID      *string `json:"unique_id"`
		CategoryID    *int64  `json:"category_id"`
		TotalCopies   *int    `json:"total_copies"`
		ShelfLocation *string `json:"shelf_location"`
	}

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Title != nil {
		book.Title = *input.Title
	}
	if input.Author != nil {
		book.Author = *input.Author
	}
	if input.Publisher != nil {
		book.Publisher = *input.Publisher
	}
	if input.ISBN != nil {
		book.ISBN = *input.ISBN
	}
	if input.UniqueID != nil {
		book.UniqueID = *input.UniqueID
	}
	if input.CategoryID != nil {
		book.CategoryID = input.CategoryID
	}
	if input.TotalCopies != nil {
		book.TotalCopies = *input.TotalCopies
	}
	if input.ShelfLocation != nil {
		book.ShelfLocation = *input.ShelfLocation
	}

	v := validator.New()
	if data.ValidateBook(v, book); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Books.Update(book)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateIdentifier):
			app.conflictResponse(w, r, errors.New("a book with this ISBN or unique id already exists"))
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionUpdateBook, "Book", book.ID, map[string]any{
		"title":     book.Title,
		"unique_id": book.UniqueID,
	})

	err = app.writeJSON(w, http.StatusOK, envelope{"book": book}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteBookHandler handles DELETE /v1/books/:id.
// Responds 404 if no book with that ID exists.
func (app *applicationDependencies) deleteBookHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.models.Books.Delete(id)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionDeleteBook, "Book", id, nil)

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "book successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
