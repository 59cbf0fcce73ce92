package data

import (
	"errors"
	"testing"
	"time"
)

func TestLoanDueDateDefaults(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 5)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	staff := seedStaff(t, m, "Dr. Ochieng")

	studentLoan := &Loan{BookID: book.ID, StudentID: &student.ID}
	if err := m.Loans.Insert(studentLoan); err != nil {
		t.Fatalf("student loan: %v", err)
	}
	wantDue := studentLoan.BorrowedAt.AddDate(0, 0, StudentLoanDays)
	if !studentLoan.DueDate.Equal(wantDue) {
		t.Fatalf("student due = %v, want %v", studentLoan.DueDate, wantDue)
	}

	staffLoan := &Loan{BookID: book.ID, StaffID: &staff.ID}
	if err := m.Loans.Insert(staffLoan); err != nil {
		t.Fatalf("staff loan: %v", err)
	}
	wantDue = staffLoan.BorrowedAt.AddDate(0, 0, StaffLoanDays)
	if !staffLoan.DueDate.Equal(wantDue) {
		t.Fatalf("staff due = %v, want %v", staffLoan.DueDate, wantDue)
	}
}

func TestLoanBookUnavailable(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 1)
	first := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	second := seedStudent(t, m, "Brian Otieno", "E35-1002-2024")

	if err := m.Loans.Insert(&Loan{BookID: book.ID, StudentID: &first.ID}); err != nil {
		t.Fatalf("first loan: %v", err)
	}

	err := m.Loans.Insert(&Loan{BookID: book.ID, StudentID: &second.ID})
	if !errors.Is(err, ErrBookUnavailable) {
		t.Fatalf("err = %v, want ErrBookUnavailable", err)
	}

	// Returning the copy frees it up again.
	var loanID int64
	loans, _, err := m.Loans.GetAll("active", Filters{Page: 1, PageSize: 20, SortSafeList: []string{"id"}})
	if err != nil {
		t.Fatalf("getall: %v", err)
	}
	loanID = loans[0].ID
	if _, _, err := m.Loans.Return(loanID, ""); err != nil {
		t.Fatalf("return: %v", err)
	}
	if err := m.Loans.Insert(&Loan{BookID: book.ID, StudentID: &second.ID}); err != nil {
		t.Fatalf("after return: %v", err)
	}
}

func TestLoanStudentBorrowLimit(t *testing.T) {
	m := newTestModels(t)

	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	for i := 0; i < StudentBorrowLimit; i++ {
		book := seedBook(t, m, "Book", "CONF-00"+string(rune('1'+i)), 1)
		if err := m.Loans.Insert(&Loan{BookID: book.ID, StudentID: &student.ID}); err != nil {
			t.Fatalf("loan %d: %v", i, err)
		}
	}

	extra := seedBook(t, m, "One More", "CONF-009", 1)
	err := m.Loans.Insert(&Loan{BookID: extra.ID, StudentID: &student.ID})
	if !errors.Is(err, ErrBorrowLimit) {
		t.Fatalf("err = %v, want ErrBorrowLimit", err)
	}
}

func TestLoanStaffHaveNoBorrowLimit(t *testing.T) {
	m := newTestModels(t)

	staff := seedStaff(t, m, "Dr. Ochieng")
	for i := 0; i < StudentBorrowLimit+2; i++ {
		book := seedBook(t, m, "Book", "CONF-10"+string(rune('1'+i)), 1)
		if err := m.Loans.Insert(&Loan{BookID: book.ID, StaffID: &staff.ID}); err != nil {
			t.Fatalf("loan %d: %v", i, err)
		}
	}
}

func TestLoanUnknownBook(t *testing.T) {
	m := newTestModels(t)

	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	err := m.Loans.Insert(&Loan{BookID: 999, StudentID: &student.ID})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestLoanReturnOnTimeNoFine(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 1)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	now := time.Now().UTC()
	loan := seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))

	returned, fine, err := m.Loans.Return(loan.ID, "in good condition")
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.ReturnedAt == nil {
		t.Fatalf("returned_at not set")
	}
	if fine != nil {
		t.Fatalf("unexpected fine: %+v", fine)
	}
}

func TestLoanLateReturnCreatesFine(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 1)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	// Borrowed 8 days ago, due 5 days ago: 5 whole days late.
	now := time.Now().UTC()
	loan := seedLoan(t, m, book.ID, &student.ID, now.AddDate(0, 0, -8), now.AddDate(0, 0, -5))

	_, fine, err := m.Loans.Return(loan.ID, "")
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if fine == nil {
		t.Fatalf("expected a fine")
	}
	if want := 5 * FinePerDay; fine.Amount != want {
		t.Fatalf("fine amount = %v, want %v", fine.Amount, want)
	}
	if fine.OriginalAmount != fine.Amount {
		t.Fatalf("original amount = %v", fine.OriginalAmount)
	}
	if fine.StudentID != student.ID || fine.LoanID != loan.ID {
		t.Fatalf("fine links: %+v", fine)
	}

	// The fine is persisted, not just returned.
	stored, err := m.Fines.Get(fine.ID)
	if err != nil {
		t.Fatalf("get fine: %v", err)
	}
	if stored.Status() != FineStatusPending {
		t.Fatalf("status = %s", stored.Status())
	}
}

func TestLoanLateReturnStaffNoFine(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 1)
	staff := seedStaff(t, m, "Dr. Ochieng")

	now := time.Now().UTC()
	loan := &Loan{
		BookID:     book.ID,
		StaffID:    &staff.ID,
		BorrowedAt: now.AddDate(0, 0, -40),
		DueDate:    now.AddDate(0, 0, -10),
	}
	if err := m.Loans.Insert(loan); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, fine, err := m.Loans.Return(loan.ID, "")
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if fine != nil {
		t.Fatalf("staff loans must never generate fines, got %+v", fine)
	}
}

func TestLoanDoubleReturn(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 1)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	now := time.Now().UTC()
	loan := seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))

	if _, _, err := m.Loans.Return(loan.ID, ""); err != nil {
		t.Fatalf("first return: %v", err)
	}
	_, _, err := m.Loans.Return(loan.ID, "")
	if !errors.Is(err, ErrAlreadyReturned) {
		t.Fatalf("err = %v, want ErrAlreadyReturned", err)
	}
}

func TestLoanOverdueBoundary(t *testing.T) {
	now := time.Now().UTC()

	dueNow := &Loan{DueDate: now}
	if dueNow.IsOverdue(now) {
		t.Fatalf("a loan exactly at its due date is not overdue")
	}

	dueLater := &Loan{DueDate: now.Add(time.Hour)}
	if dueLater.IsOverdue(now) {
		t.Fatalf("a loan due in the future is not overdue")
	}

	justPast := &Loan{DueDate: now.Add(-time.Hour)}
	if !justPast.IsOverdue(now) {
		t.Fatalf("a loan past its due date is overdue")
	}
	if days := justPast.DaysOverdue(now); days != 0 {
		t.Fatalf("days overdue = %d, want 0 for a partial day", days)
	}

	wellPast := &Loan{DueDate: now.AddDate(0, 0, -3).Add(-time.Hour)}
	if days := wellPast.DaysOverdue(now); days != 3 {
		t.Fatalf("days overdue = %d, want 3", days)
	}

	returnedAt := now
	closed := &Loan{DueDate: now.AddDate(0, 0, -3), ReturnedAt: &returnedAt}
	if closed.IsOverdue(now) {
		t.Fatalf("a returned loan is never overdue")
	}
}

func TestLoanGetAllStatusFilter(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 3)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	now := time.Now().UTC()
	open := seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))
	overdue := seedLoan(t, m, book.ID, &student.ID, now.AddDate(0, 0, -5), now.AddDate(0, 0, -2))
	closed := seedLoan(t, m, book.ID, &student.ID, now.AddDate(0, 0, -3), now)
	if _, _, err := m.Loans.Return(closed.ID, ""); err != nil {
		t.Fatalf("return: %v", err)
	}

	filters := Filters{Page: 1, PageSize: 20, SortSafeList: []string{"id"}}

	cases := []struct {
		status string
		want   int
	}{
		{"active", 2},
		{"overdue", 1},
		{"returned", 1},
		{"all", 3},
	}
	for _, tc := range cases {
		loans, meta, err := m.Loans.GetAll(tc.status, filters)
		if err != nil {
			t.Fatalf("%s: %v", tc.status, err)
		}
		if len(loans) != tc.want || meta.TotalRecords != tc.want {
			t.Fatalf("%s: got %d loans (meta %+v), want %d", tc.status, len(loans), meta, tc.want)
		}
	}

	overdueLoans, _, err := m.Loans.GetAll("overdue", filters)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if overdueLoans[0].ID != overdue.ID {
		t.Fatalf("overdue loan = %d, want %d", overdueLoans[0].ID, overdue.ID)
	}

	// Joined display fields are populated by list queries.
	if overdueLoans[0].BookTitle != "The Analects" || overdueLoans[0].BorrowerName != "Wanjiku Kamau" {
		t.Fatalf("joined fields: %+v", overdueLoans[0])
	}
	_ = open
}

func TestLoanForStudent(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 3)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	other := seedStudent(t, m, "Otieno Odhiambo", "E35-1002-2024")

	now := time.Now().UTC()
	older := seedLoan(t, m, book.ID, &student.ID, now.AddDate(0, 0, -10), now.AddDate(0, 0, -7))
	newer := seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))
	seedLoan(t, m, book.ID, &other.ID, now, now.AddDate(0, 0, 3))

	history, err := m.Loans.ForStudent(student.ID)
	if err != nil {
		t.Fatalf("for student: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d loans, want 2", len(history))
	}
	if history[0].ID != newer.ID || history[1].ID != older.ID {
		t.Fatalf("history order: %d, %d", history[0].ID, history[1].ID)
	}
	if history[0].BookTitle != "The Analects" {
		t.Fatalf("book title = %q", history[0].BookTitle)
	}
}
