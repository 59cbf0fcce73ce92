package data

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// newTestModels opens a fresh sqlite database in a temp directory, runs the
// migrations, and returns the model layer. Each test gets its own file.
func newTestModels(t *testing.T) Models {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "clms.db") + "?_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewModels(db)
}

func seedBook(t *testing.T, m Models, title, uniqueID string, copies int) *Book {
	t.Helper()
	book := &Book{
		Title:       title,
		Author:      "Test Author",
		UniqueID:    uniqueID,
		TotalCopies: copies,
	}
	if err := m.Books.Insert(book); err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return book
}

func seedStudent(t *testing.T, m Models, name, regNo string) *Student {
	t.Helper()
	student := &Student{
		Name:               name,
		RegistrationNumber: regNo,
		Email:              regNo + "@students.uonbi.ac.ke",
	}
	if err := m.Students.Insert(student); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return student
}

func seedStaff(t *testing.T, m Models, name string) *Staff {
	t.Helper()
	staff := &Staff{Name: name, StaffType: "teacher"}
	if err := m.Staff.Insert(staff); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	return staff
}

// seedLoan borrows a book with an explicit due date, bypassing the default
// loan-period computation so tests can place loans in the past.
func seedLoan(t *testing.T, m Models, bookID int64, studentID *int64, borrowedAt, dueDate time.Time) *Loan {
	t.Helper()
	loan := &Loan{
		BookID:     bookID,
		StudentID:  studentID,
		BorrowedAt: borrowedAt,
		DueDate:    dueDate,
	}
	if err := m.Loans.Insert(loan); err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return loan
}

func TestCalculateMetadata(t *testing.T) {
	meta := calculateMetadata(101, 2, 20)
	if meta.CurrentPage != 2 || meta.PageSize != 20 {
		t.Fatalf("page info: %+v", meta)
	}
	if meta.FirstPage != 1 || meta.LastPage != 6 {
		t.Fatalf("page range: %+v", meta)
	}
	if meta.TotalRecords != 101 {
		t.Fatalf("total: %+v", meta)
	}

	empty := calculateMetadata(0, 1, 20)
	if empty != (Metadata{}) {
		t.Fatalf("expected zero metadata for no records, got %+v", empty)
	}
}

func TestFiltersSortColumn(t *testing.T) {
	f := Filters{Sort: "-title", SortSafeList: []string{"id", "title", "-id", "-title"}}
	if got := f.sortColumn(); got != "title" {
		t.Fatalf("sortColumn = %q", got)
	}
	if got := f.sortDirection(); got != "DESC" {
		t.Fatalf("sortDirection = %q", got)
	}

	// A sort value outside the safelist falls back to id rather than being
	// interpolated into SQL.
	f = Filters{Sort: "title; DROP TABLE books", SortSafeList: []string{"id", "title"}}
	if got := f.sortColumn(); got != "id" {
		t.Fatalf("unsafe sortColumn = %q", got)
	}
}
