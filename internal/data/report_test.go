package data

import (
	"testing"
	"time"
)

func TestReportDashboard(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 3)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	seedStaff(t, m, "Dr. Ochieng")

	now := time.Now().UTC()
	seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))
	late := seedLoan(t, m, book.ID, &student.ID, now.AddDate(0, 0, -5), now.AddDate(0, 0, -2))
	closed := seedLoan(t, m, book.ID, &student.ID, now.AddDate(0, 0, -8), now.AddDate(0, 0, -4))
	if _, _, err := m.Loans.Return(closed.ID, ""); err != nil {
		t.Fatalf("return: %v", err)
	}

	stats, err := m.Reports.Dashboard()
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.TotalStudents != 1 || stats.TotalStaff != 1 || stats.TotalBooks != 1 {
		t.Fatalf("totals: %+v", stats)
	}
	if stats.ActiveLoans != 2 {
		t.Fatalf("active loans = %d", stats.ActiveLoans)
	}
	if stats.OverdueLoans != 1 {
		t.Fatalf("overdue loans = %d", stats.OverdueLoans)
	}
	// The closed loan was 4 days late.
	if stats.UnpaidFines != 4*FinePerDay {
		t.Fatalf("unpaid fines = %v", stats.UnpaidFines)
	}
	_ = late
}

func TestReportMostBorrowed(t *testing.T) {
	m := newTestModels(t)

	popular := seedBook(t, m, "The Analects", "CONF-001", 5)
	quiet := seedBook(t, m, "Tao Te Ching", "CONF-002", 5)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		loan := seedLoan(t, m, popular.ID, &student.ID, now, now.AddDate(0, 0, 3))
		if _, _, err := m.Loans.Return(loan.ID, ""); err != nil {
			t.Fatalf("return: %v", err)
		}
	}
	seedLoan(t, m, quiet.ID, &student.ID, now, now.AddDate(0, 0, 3))

	top, err := m.Reports.MostBorrowed(10)
	if err != nil {
		t.Fatalf("most borrowed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("length = %d", len(top))
	}
	if top[0].Title != "The Analects" || top[0].BorrowCount != 3 {
		t.Fatalf("top entry: %+v", top[0])
	}

	one, err := m.Reports.MostBorrowed(1)
	if err != nil {
		t.Fatalf("limit: %v", err)
	}
	if len(one) != 1 {
		t.Fatalf("limit ignored: %d", len(one))
	}
}

func TestReportStockStatus(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 3)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	now := time.Now().UTC()
	seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))

	stock, err := m.Reports.StockStatus()
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if len(stock) != 1 {
		t.Fatalf("length = %d", len(stock))
	}
	s := stock[0]
	if s.TotalCopies != 3 || s.BorrowedCopies != 1 || s.AvailableCopies != 2 {
		t.Fatalf("stock: %+v", s)
	}
}
