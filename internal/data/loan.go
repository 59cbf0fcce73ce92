// internal/data/loan.go
// The loan engine: borrow and return rules, due-date computation, and the
// overdue queries used by reports and the notification scans.
package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	// StudentLoanDays is the default borrowing period for students.
	StudentLoanDays = 3

	// StaffLoanDays is the default borrowing period for staff.
	StaffLoanDays = 30

	// StudentBorrowLimit is the maximum number of open loans per student.
	// Staff have no limit.
	StudentBorrowLimit = 3

	// FinePerDay is the late-return charge in KES per whole day overdue.
	FinePerDay = 20.0
)

// Loan represents one borrowing transaction linking a book to exactly one
// borrower (a student or a staff member, never both).
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	StudentID  *int64     `json:"student_id,omitempty"`
	StaffID    *int64     `json:"staff_id,omitempty"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`

	// Joined display fields, populated by list queries.
	BookTitle    string `json:"book_title,omitempty"`
	BorrowerName string `json:"borrower_name,omitempty"`
	BorrowerType string `json:"borrower_type,omitempty"`
}

// IsOverdue reports whether the loan is overdue at the given instant.
// A loan exactly at its due date is not overdue; the comparison is strict.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.ReturnedAt == nil && now.After(l.DueDate)
}

// DaysOverdue returns the number of whole days the loan is past due at the
// given instant, truncated toward zero. Zero if the loan is not overdue.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(l.DueDate).Hours() / 24)
}

// LoanModel wraps a *sql.DB connection and implements the borrowing rules.
type LoanModel struct {
	DB *sql.DB // Shared database connection pool
}

// Insert creates a new loan, enforcing book availability and the student
// borrowing limit. Both checks and the insert happen in a single guarded
// INSERT ... SELECT statement, so two concurrent requests for the last copy
// of a book cannot both succeed: whichever commits second matches no rows.
//
// If loan.DueDate is the zero time, it is set from the borrower class:
// students get StudentLoanDays, staff get StaffLoanDays.
func (m LoanModel) Insert(loan *Loan) error {
	if loan.BorrowedAt.IsZero() {
		loan.BorrowedAt = time.Now().UTC()
	}
	if loan.DueDate.IsZero() {
		days := StaffLoanDays
		if loan.StudentID != nil {
			days = StudentLoanDays
		}
		loan.DueDate = loan.BorrowedAt.AddDate(0, 0, days)
	}

	query := `
		INSERT INTO loans (book_id, student_id, staff_id, borrowed_at, due_date, notes)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE (SELECT total_copies FROM books WHERE id = $1) >
		      (SELECT COUNT(*) FROM loans WHERE book_id = $1 AND returned_at IS NULL)
		AND ($2 IS NULL OR
		      (SELECT COUNT(*) FROM loans WHERE student_id = $2 AND returned_at IS NULL) < $7)
		RETURNING id`

	err := m.DB.QueryRow(
		query,
		loan.BookID,
		nullInt64Ptr(loan.StudentID),
		nullInt64Ptr(loan.StaffID),
		loan.BorrowedAt,
		loan.DueDate,
		loan.Notes,
		StudentBorrowLimit,
	).Scan(&loan.ID)

	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return ErrRecordNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	// The guard rejected the insert. Re-read state to classify the failure.
	// The classification itself may race, but the invariant already held at
	// insert time, which is what matters.
	var totalCopies, openCount int
	err = m.DB.QueryRow(`
		SELECT total_copies,
		       (SELECT COUNT(*) FROM loans WHERE book_id = books.id AND returned_at IS NULL)
		FROM books WHERE id = $1`, loan.BookID).Scan(&totalCopies, &openCount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrRecordNotFound
	case err != nil:
		return err
	case totalCopies-openCount <= 0:
		return ErrBookUnavailable
	}
	return ErrBorrowLimit
}

// Return closes an open loan, stamping returned_at with the current time.
// If the borrower is a student and the loan is overdue at the moment of
// return, exactly one Fine is created in the same transaction, charging
// FinePerDay per whole day late. Staff loans never generate fines.
//
// Returns the created fine, or nil when none applies.
func (m LoanModel) Return(id int64, notes string) (*Loan, *Fine, error) {
	loan, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if loan.ReturnedAt != nil {
		return nil, nil, ErrAlreadyReturned
	}

	tx, err := m.DB.Begin()
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// The returned_at IS NULL guard makes the close idempotent under
	// concurrent return requests: only one of them can match the row.
	result, err := tx.Exec(`
		UPDATE loans SET returned_at = $1, notes = $2
		WHERE id = $3 AND returned_at IS NULL`, now, notes, id)
	if err != nil {
		return nil, nil, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, nil, err
	}
	if rowsAffected == 0 {
		return nil, nil, ErrAlreadyReturned
	}

	var fine *Fine
	if daysOverdue := loan.DaysOverdue(now); loan.StudentID != nil && daysOverdue > 0 {
		amount := float64(daysOverdue) * FinePerDay

		fine = &Fine{
			StudentID:      *loan.StudentID,
			LoanID:         loan.ID,
			Amount:         amount,
			OriginalAmount: amount,
			Reason:         fmt.Sprintf("Late return - %d days overdue", daysOverdue),
		}
		err = tx.QueryRow(`
			INSERT INTO fines (student_id, loan_id, amount, original_amount, reason)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			fine.StudentID, fine.LoanID, fine.Amount, fine.OriginalAmount, fine.Reason,
		).Scan(&fine.ID, &fine.CreatedAt)
		if err != nil {
			return nil, nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}

	loan.ReturnedAt = &now
	loan.Notes = notes
	return loan, fine, nil
}

// Get retrieves a single loan by its primary key.
func (m LoanModel) Get(id int64) (*Loan, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT id, book_id, student_id, staff_id, borrowed_at, due_date, returned_at, notes
		FROM loans
		WHERE id = $1`

	var loan Loan
	var studentID, staffID sql.NullInt64
	var returnedAt sql.NullTime
	var notes sql.NullString

	err := m.DB.QueryRow(query, id).Scan(
		&loan.ID,
		&loan.BookID,
		&studentID,
		&staffID,
		&loan.BorrowedAt,
		&loan.DueDate,
		&returnedAt,
		&notes,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	if studentID.Valid {
		loan.StudentID = &studentID.Int64
	}
	if staffID.Valid {
		loan.StaffID = &staffID.Int64
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		loan.ReturnedAt = &t
	}
	loan.Notes = notes.String
	return &loan, nil
}

// GetAll retrieves loans filtered by status: "active" (open), "returned",
// "overdue" (open and past due, evaluated against the current time), or
// "all". Results carry the book title and borrower name for display.
func (m LoanModel) GetAll(status string, filters Filters) ([]*Loan, Metadata, error) {
	var cond string
	args := []any{}
	switch status {
	case "active":
		cond = "WHERE loans.returned_at IS NULL"
	case "returned":
		cond = "WHERE loans.returned_at IS NOT NULL"
	case "overdue":
		cond = "WHERE loans.returned_at IS NULL AND loans.due_date < $1"
		args = append(args, time.Now().UTC())
	default:
		cond = ""
	}

	query := fmt.Sprintf(`
		SELECT count(*) OVER(), loans.id, loans.book_id, loans.student_id, loans.staff_id,
		       loans.borrowed_at, loans.due_date, loans.returned_at, loans.notes,
		       books.title,
		       COALESCE(students.name, staff.name, 'Unknown'),
		       CASE WHEN loans.student_id IS NOT NULL THEN 'Student' ELSE 'Staff' END
		FROM loans
		INNER JOIN books ON books.id = loans.book_id
		LEFT JOIN students ON students.id = loans.student_id
		LEFT JOIN staff ON staff.id = loans.staff_id
		%s
		ORDER BY loans.%s %s, loans.id ASC
		LIMIT $%d OFFSET $%d`, cond, filters.sortColumn(), filters.sortDirection(), len(args)+1, len(args)+2)

	args = append(args, filters.limit(), filters.offset())

	rows, err := m.DB.Query(query, args...)
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	loans := []*Loan{}

	for rows.Next() {
		var loan Loan
		var studentID, staffID sql.NullInt64
		var returnedAt sql.NullTime
		var notes sql.NullString

		err := rows.Scan(
			&totalRecords,
			&loan.ID,
			&loan.BookID,
			&studentID,
			&staffID,
			&loan.BorrowedAt,
			&loan.DueDate,
			&returnedAt,
			&notes,
			&loan.BookTitle,
			&loan.BorrowerName,
			&loan.BorrowerType,
		)
		if err != nil {
			return nil, Metadata{}, err
		}

		if studentID.Valid {
			loan.StudentID = &studentID.Int64
		}
		if staffID.Valid {
			loan.StaffID = &staffID.Int64
		}
		if returnedAt.Valid {
			t := returnedAt.Time
			loan.ReturnedAt = &t
		}
		loan.Notes = notes.String
		loans = append(loans, &loan)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return loans, metadata, nil
}

// ForStudent returns a student's full borrowing history, newest first, with
// the book title attached for display.
func (m LoanModel) ForStudent(studentID int64) ([]*Loan, error) {
	query := `
		SELECT loans.id, loans.book_id, loans.student_id, loans.staff_id,
		       loans.borrowed_at, loans.due_date, loans.returned_at, loans.notes,
		       books.title
		FROM loans
		INNER JOIN books ON books.id = loans.book_id
		WHERE loans.student_id = $1
		ORDER BY loans.borrowed_at DESC, loans.id DESC`

	rows, err := m.DB.Query(query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := []*Loan{}
	for rows.Next() {
		var loan Loan
		var sID, staffID sql.NullInt64
		var returnedAt sql.NullTime
		var notes sql.NullString

		err := rows.Scan(
			&loan.ID,
			&loan.BookID,
			&sID,
			&staffID,
			&loan.BorrowedAt,
			&loan.DueDate,
			&returnedAt,
			&notes,
			&loan.BookTitle,
		)
		if err != nil {
			return nil, err
		}

		if sID.Valid {
			loan.StudentID = &sID.Int64
		}
		if returnedAt.Valid {
			t := returnedAt.Time
			loan.ReturnedAt = &t
		}
		loan.Notes = notes.String
		loan.BorrowerType = "Student"
		loans = append(loans, &loan)
	}
	return loans, rows.Err()
}

// StudentLoan is a loan joined with the borrowing student and book details
// needed to compose a notification email.
type StudentLoan struct {
	Loan
	StudentName  string
	StudentEmail string
	BookAuthor   string
}

// DueSoon returns open student loans whose due date falls in the window
// [now+1 day, now+2 days] inclusive. Staff loans are never included.
func (m LoanModel) DueSoon(now time.Time) ([]*StudentLoan, error) {
	return m.studentLoans(`
		loans.returned_at IS NULL
		AND loans.due_date >= $1 AND loans.due_date <= $2
		AND loans.student_id IS NOT NULL`,
		now.Add(24*time.Hour), now.Add(48*time.Hour))
}

// Overdue returns all open student loans past their due date at the given
// instant. Staff loans are never included.
func (m LoanModel) Overdue(now time.Time) ([]*StudentLoan, error) {
	return m.studentLoans(`
		loans.returned_at IS NULL
		AND loans.due_date < $1
		AND loans.student_id IS NOT NULL`, now)
}

func (m LoanModel) studentLoans(cond string, args ...any) ([]*StudentLoan, error) {
	query := fmt.Sprintf(`
		SELECT loans.id, loans.book_id, loans.student_id, loans.borrowed_at,
		       loans.due_date, books.title, COALESCE(books.author, ''),
		       students.name, students.email
		FROM loans
		INNER JOIN books ON books.id = loans.book_id
		INNER JOIN students ON students.id = loans.student_id
		WHERE %s
		ORDER BY loans.due_date ASC, loans.id ASC`, cond)

	rows, err := m.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := []*StudentLoan{}
	for rows.Next() {
		var sl StudentLoan
		var studentID int64
		err := rows.Scan(
			&sl.ID,
			&sl.BookID,
			&studentID,
			&sl.BorrowedAt,
			&sl.DueDate,
			&sl.BookTitle,
			&sl.BookAuthor,
			&sl.StudentName,
			&sl.StudentEmail,
		)
		if err != nil {
			return nil, err
		}
		sl.StudentID = &studentID
		loans = append(loans, &sl)
	}
	return loans, rows.Err()
}
