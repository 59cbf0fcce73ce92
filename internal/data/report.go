// internal/data/report.go
// Read-only aggregate queries backing the dashboard and admin reports.
package data

import (
	"database/sql"
	"time"
)

// DashboardStats is the summary shown on the landing dashboard.
type DashboardStats struct {
	TotalStudents int     `json:"total_students"`
	TotalStaff    int     `json:"total_staff"`
	TotalBooks    int     `json:"total_books"`
	ActiveLoans   int     `json:"active_loans"`
	OverdueLoans  int     `json:"overdue_loans"`
	UnpaidFines   float64 `json:"unpaid_fines"`
}

// BorrowCount pairs a book with how often it has been borrowed.
type BorrowCount struct {
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	UniqueID    string `json:"unique_id"`
	BorrowCount int    `json:"borrow_count"`
}

// StockStatus reports copy counts for one book.
type StockStatus struct {
	Title           string `json:"title"`
	UniqueID        string `json:"unique_id"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	BorrowedCopies  int    `json:"borrowed_copies"`
}

// ReportModel wraps a *sql.DB connection for aggregate queries.
type ReportModel struct {
	DB *sql.DB
}

// Dashboard gathers the landing-page counters in one round trip per table.
func (m ReportModel) Dashboard() (*DashboardStats, error) {
	var stats DashboardStats
	err := m.DB.QueryRow(`
		SELECT (SELECT COUNT(*) FROM students),
		       (SELECT COUNT(*) FROM staff),
		       (SELECT COUNT(*) FROM books),
		       (SELECT COUNT(*) FROM loans WHERE returned_at IS NULL),
		       (SELECT COUNT(*) FROM loans WHERE returned_at IS NULL AND due_date < $1),
		       (SELECT COALESCE(SUM(amount), 0) FROM fines WHERE paid = FALSE AND waived = FALSE)`,
		time.Now().UTC()).Scan(
		&stats.TotalStudents,
		&stats.TotalStaff,
		&stats.TotalBooks,
		&stats.ActiveLoans,
		&stats.OverdueLoans,
		&stats.UnpaidFines,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// MostBorrowed returns the most frequently borrowed books, capped at limit.
func (m ReportModel) MostBorrowed(limit int) ([]*BorrowCount, error) {
	rows, err := m.DB.Query(`
		SELECT books.title, COALESCE(books.author, ''), books.unique_id, COUNT(loans.id)
		FROM books
		INNER JOIN loans ON loans.book_id = books.id
		GROUP BY books.id, books.title, books.author, books.unique_id
		ORDER BY COUNT(loans.id) DESC, books.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*BorrowCount{}
	for rows.Next() {
		var bc BorrowCount
		if err := rows.Scan(&bc.Title, &bc.Author, &bc.UniqueID, &bc.BorrowCount); err != nil {
			return nil, err
		}
		results = append(results, &bc)
	}
	return results, rows.Err()
}

// StockStatus reports per-book copy counts across the whole catalog.
func (m ReportModel) StockStatus() ([]*StockStatus, error) {
	rows, err := m.DB.Query(`
		SELECT books.title, books.unique_id, books.total_copies,
		       (SELECT COUNT(*) FROM loans WHERE loans.book_id = books.id AND loans.returned_at IS NULL)
		FROM books
		ORDER BY books.title ASC, books.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*StockStatus{}
	for rows.Next() {
		var ss StockStatus
		var borrowed int
		if err := rows.Scan(&ss.Title, &ss.UniqueID, &ss.TotalCopies, &borrowed); err != nil {
			return nil, err
		}
		ss.BorrowedCopies = borrowed
		ss.AvailableCopies = ss.TotalCopies - borrowed
		results = append(results, &ss)
	}
	return results, rows.Err()
}
