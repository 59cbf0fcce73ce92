// internal/data/models.go
package data

import (
	"database/sql"
	"errors"
	"math"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Models is a top-level container that groups all database model types together.
// It is passed around the application via applicationDependencies so every handler
// has access to the database without importing sql directly.
type Models struct {
	Users       UserModel                   // Librarian/admin accounts
	Categories  CategoryModel               // Book categories
	Students    StudentModel                // Student borrowers
	Staff       StaffModel                  // Staff borrowers (teachers and interns)
	Books       BookModel                   // Book catalog
	Loans       LoanModel                   // Borrow records and the loan engine rules
	Fines       FineModel                   // Fine lifecycle: pending -> paid | waived
	AuditLogs   AuditLogModel               // Immutable audit trail
	Backups     BackupLogModel              // Database snapshot records
	Preferences NotificationPreferenceModel // Per-student email preferences
	EmailLogs   EmailLogModel               // Record of every outbound email
	Reports     ReportModel                 // Dashboard and admin report aggregates
}

// NewModels constructs a Models value wired up to the given database connection pool.
// Call this once during application startup and store the result in applicationDependencies.
func NewModels(db *sql.DB) Models {
	return Models{
		Users:       UserModel{DB: db},
		Categories:  CategoryModel{DB: db},
		Students:    StudentModel{DB: db},
		Staff:       StaffModel{DB: db},
		Books:       BookModel{DB: db},
		Loans:       LoanModel{DB: db},
		Fines:       FineModel{DB: db},
		AuditLogs:   AuditLogModel{DB: db},
		Backups:     BackupLogModel{DB: db},
		Preferences: NotificationPreferenceModel{DB: db},
		EmailLogs:   EmailLogModel{DB: db},
		Reports:     ReportModel{DB: db},
	}
}

// Sentinel errors returned by the model layer. Handlers translate these into
// the appropriate HTTP status codes; the models themselves never touch HTTP.
var (
	// ErrRecordNotFound is returned when a query finds no matching row.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBookUnavailable is returned when a borrow request finds no free copies.
	ErrBookUnavailable = errors.New("no copies of this book are available")

	// ErrBorrowLimit is returned when a student already holds the maximum
	// number of open loans.
	ErrBorrowLimit = errors.New("student has reached the borrowing limit")

	// ErrAlreadyReturned is returned when returning a loan that is closed.
	ErrAlreadyReturned = errors.New("loan has already been returned")

	// ErrInvalidAmount is returned when a fine adjustment would go negative.
	ErrInvalidAmount = errors.New("fine amount cannot be negative")

	// ErrFineClosed is returned when paying, waiving, or adjusting a fine
	// that is no longer pending.
	ErrFineClosed = errors.New("fine has already been paid or waived")

	// ErrDuplicateIdentifier is returned when an insert or update violates a
	// unique constraint (ISBN, book unique id, student identifiers, ...).
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// isDuplicateKey reports whether err is a unique-constraint violation from
// either supported driver. The write boundary calls this so the rest of the
// application only ever sees ErrDuplicateIdentifier.
func isDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isForeignKeyViolation reports whether err means a referenced row does not
// exist. Callers translate it into ErrRecordNotFound.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503" // foreign_key_violation
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// Filters holds pagination and sorting parameters extracted from URL query strings.
type Filters struct {
	Page         int      // Current page number (1-indexed)
	PageSize     int      // Number of records per page
	Sort         string   // Column name to sort by (prefix with "-" for DESC)
	SortSafeList []string // Allowed sort columns to prevent SQL injection
}

// sortColumn returns the validated column name for ORDER BY, defaulting to id.
func (f Filters) sortColumn() string {
	for _, safe := range f.SortSafeList {
		if f.Sort == safe {
			return strings.TrimPrefix(f.Sort, "-")
		}
	}
	return "id" // safe fallback
}

// sortDirection returns "ASC" or "DESC" based on the Sort prefix.
func (f Filters) sortDirection() string {
	if strings.HasPrefix(f.Sort, "-") {
		return "DESC"
	}
	return "ASC"
}

// limit returns the SQL LIMIT value derived from PageSize.
func (f Filters) limit() int { return f.PageSize }

// offset returns the SQL OFFSET value derived from Page and PageSize.
func (f Filters) offset() int { return (f.Page - 1) * f.PageSize }

// Metadata contains pagination information returned alongside list responses.
type Metadata struct {
	CurrentPage  int `json:"current_page,omitempty"`
	PageSize     int `json:"page_size,omitempty"`
	FirstPage    int `json:"first_page,omitempty"`
	LastPage     int `json:"last_page,omitempty"`
	TotalRecords int `json:"total_records,omitempty"`
}

// calculateMetadata computes page metadata from total record count and filter values.
func calculateMetadata(totalRecords, page, pageSize int) Metadata {
	if totalRecords == 0 {
		return Metadata{}
	}
	return Metadata{
		CurrentPage:  page,
		PageSize:     pageSize,
		FirstPage:    1,
		LastPage:     int(math.Ceil(float64(totalRecords) / float64(pageSize))),
		TotalRecords: totalRecords,
	}
}
