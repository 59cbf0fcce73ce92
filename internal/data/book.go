// Package data provides the data models and database interaction logic
// for the library management system.
package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/confuciuslib/clms/internal/validator"
)

// Book represents a single book record stored in the database.
// It maps directly to a row in the "books" table.
type Book struct {
	ID              int64     `json:"id"`                       // Unique identifier assigned by the database
	Title           string    `json:"title"`                    // Title of the book
	Author          string    `json:"author,omitempty"`         // Author name, free text
	Publisher       string    `json:"publisher,omitempty"`      // Name of the publishing company
	ISBN            string    `json:"isbn,omitempty"`           // ISBN, unique when present
	UniqueID        string    `json:"unique_id"`                // Library accession number, always unique
	CategoryID      *int64    `json:"category_id,omitempty"`    // Optional category reference
	TotalCopies     int       `json:"total_copies"`             // Number of physical copies owned
	ShelfLocation   string    `json:"shelf_location,omitempty"` // Physical shelf location
	AvailableCopies int       `json:"available_copies"`         // Derived: total copies minus open loans
	CreatedAt       time.Time `json:"created_at"`               // Timestamp when the record was created
}

// ValidateBook checks the fields that must hold for every book write.
func ValidateBook(v *validator.Validator, book *Book) {
	v.Check(book.Title != "", "title", "must be provided")
	v.Check(len(book.Title) <= 200, "title", "must not be more than 200 characters long")
	v.Check(book.UniqueID != "", "unique_id", "must be provided")
	v.Check(book.TotalCopies >= 1, "total_copies", "must be at least 1")
}

// availableCopiesExpr computes available copies as total copies minus the
// number of open loans. There is no stored counter to keep consistent; the
// count is always derived from the loans table.
const availableCopiesExpr = `
	books.total_copies - (SELECT COUNT(*) FROM loans
	                      WHERE loans.book_id = books.id AND loans.returned_at IS NULL)`

// BookModel wraps a *sql.DB connection and provides methods for
// creating, reading, updating, and deleting book records.
type BookModel struct {
	DB *sql.DB // Shared database connection pool
}

// Insert adds a new book record to the database.
// After a successful insert, the database-assigned id and created_at values
// are written back into the book struct. A duplicate ISBN or unique id is
// reported as ErrDuplicateIdentifier.
func (m BookModel) Insert(book *Book) error {
	query := `
		INSERT INTO books (title, author, publisher, isbn, unique_id, category_id, total_copies, shelf_location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := m.DB.QueryRow(
		query,
		book.Title,
		book.Author,
		book.Publisher,
		nullString(book.ISBN),
		book.UniqueID,
		nullInt64Ptr(book.CategoryID),
		book.TotalCopies,
		book.ShelfLocation,
	).Scan(&book.ID, &book.CreatedAt)

	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateIdentifier
		}
		return err
	}

	book.AvailableCopies = book.TotalCopies
	return nil
}

// Get retrieves a single book by its primary key, including the derived
// available-copy count. Returns ErrRecordNotFound if no book exists.
func (m BookModel) Get(id int64) (*Book, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := fmt.Sprintf(`
		SELECT id, title, author, publisher, isbn, unique_id, category_id,
		       total_copies, shelf_location, created_at, %s
		FROM books
		WHERE id = $1`, availableCopiesExpr)

	var book Book
	var author, publisher, isbn, shelf sql.NullString
	var categoryID sql.NullInt64

	err := m.DB.QueryRow(query, id).Scan(
		&book.ID,
		&book.Title,
		&author,
		&publisher,
		&isbn,
		&book.UniqueID,
		&categoryID,
		&book.TotalCopies,
		&shelf,
		&book.CreatedAt,
		&book.AvailableCopies,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	book.Author = author.String
	book.Publisher = publisher.String
	book.ISBN = isbn.String
	book.ShelfLocation = shelf.String
	if categoryID.Valid {
		book.CategoryID = &categoryID.Int64
	}
	return &book, nil
}

// GetAll retrieves a paginated, sorted list of books, optionally filtered by
// a search term (matched against title, author, ISBN, and unique id) and a
// category. It uses a COUNT(*) OVER() window function so only one round-trip
// is needed. Returns the book slice and pagination Metadata.
func (m BookModel) GetAll(search string, categoryID int64, filters Filters) ([]*Book, Metadata, error) {
	// Build query dynamically using the validated sort column and direction.
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), id, title, author, publisher, isbn, unique_id,
		       category_id, total_copies, shelf_location, created_at, %s
		FROM books
		WHERE ($1 = '' OR title LIKE $2 OR author LIKE $2 OR isbn LIKE $2 OR unique_id LIKE $2)
		AND ($3 = 0 OR category_id = $3)
		ORDER BY %s %s, id ASC
		LIMIT $4 OFFSET $5`, availableCopiesExpr, filters.sortColumn(), filters.sortDirection())

	rows, err := m.DB.Query(query, search, "%"+search+"%", categoryID, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	books := []*Book{}

	for rows.Next() {
		var book Book
		var author, publisher, isbn, shelf sql.NullString
		var catID sql.NullInt64

		err := rows.Scan(
			&totalRecords, // COUNT(*) OVER() – same value on every row
			&book.ID,
			&book.Title,
			&author,
			&publisher,
			&isbn,
			&book.UniqueID,
			&catID,
			&book.TotalCopies,
			&shelf,
			&book.CreatedAt,
			&book.AvailableCopies,
		)
		if err != nil {
			return nil, Metadata{}, err
		}

		book.Author = author.String
		book.Publisher = publisher.String
		book.ISBN = isbn.String
		book.ShelfLocation = shelf.String
		if catID.Valid {
			book.CategoryID = &catID.Int64
		}
		books = append(books, &book)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return books, metadata, nil
}

// Update saves the modified fields of book back to the database.
func (m BookModel) Update(book *Book) error {
	query := `
		UPDATE books
		SET title = $1, author = $2, publisher = $3, isbn = $4, unique_id = $5,
		    category_id = $6, total_copies = $7, shelf_location = $8
		WHERE id = $9`

	args := []any{
		book.Title,
		book.Author,
		book.Publisher,
		nullString(book.ISBN),
		book.UniqueID,
		nullInt64Ptr(book.CategoryID),
		book.TotalCopies,
		book.ShelfLocation,
		book.ID,
	}

	result, err := m.DB.Exec(query, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateIdentifier
		}
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

// Delete removes the book with the given id from the database.
// Returns ErrRecordNotFound if no matching record exists.
func (m BookModel) Delete(id int64) error {
	// Guard against obviously bad IDs before touching the database.
	if id < 1 {
		return ErrRecordNotFound
	}

	result, err := m.DB.Exec(`DELETE FROM books WHERE id = $1`, id)
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

// nullString converts an empty string to a NULL database value so unique
// columns like isbn can hold many "absent" values.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt64Ptr converts an optional int64 pointer to its NULL-aware form.
func nullInt64Ptr(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
