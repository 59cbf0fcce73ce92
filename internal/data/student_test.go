package data

import (
	"errors"
	"testing"
	"time"

	"github.com/confuciuslib/clms/internal/validator"
)

func TestStudentIdentifierPriority(t *testing.T) {
	cases := []struct {
		name    string
		student Student
		want    string
	}{
		{"registration wins", Student{RegistrationNumber: "E35-1001-2024", IDNumber: "12345678", PassportNumber: "A1234567"}, "E35-1001-2024"},
		{"national id next", Student{IDNumber: "12345678", PassportNumber: "A1234567"}, "12345678"},
		{"passport last", Student{PassportNumber: "A1234567"}, "A1234567"},
	}
	for _, tc := range cases {
		if got := tc.student.Identifier(); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidateStudentRequiresIdentifier(t *testing.T) {
	v := validator.New()
	ValidateStudent(v, &Student{Name: "Wanjiku Kamau", Email: "wanjiku@students.uonbi.ac.ke"})
	if v.Valid() {
		t.Fatalf("expected a validation failure")
	}
	if _, ok := v.Errors["identifier"]; !ok {
		t.Fatalf("missing identifier error: %v", v.Errors)
	}

	v = validator.New()
	ValidateStudent(v, &Student{
		Name:           "Li Wei",
		Email:          "liwei@students.uonbi.ac.ke",
		PassportNumber: "G98765432",
	})
	if !v.Valid() {
		t.Fatalf("unexpected errors: %v", v.Errors)
	}
}

func TestStudentInsertDefaultsToActive(t *testing.T) {
	m := newTestModels(t)

	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	if student.MembershipStatus != MembershipActive {
		t.Fatalf("membership = %q", student.MembershipStatus)
	}
}

func TestStudentDuplicateRegistration(t *testing.T) {
	m := newTestModels(t)

	seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	err := m.Students.Insert(&Student{
		Name:               "Impostor",
		RegistrationNumber: "E35-1001-2024",
		Email:              "other@students.uonbi.ac.ke",
	})
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("err = %v, want ErrDuplicateIdentifier", err)
	}
}

func TestStudentGetDerivedFields(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 3)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	now := time.Now().UTC()
	seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))
	late := seedLoan(t, m, book.ID, &student.ID, now.AddDate(0, 0, -5), now.AddDate(0, 0, -2))
	if _, fine, err := m.Loans.Return(late.ID, ""); err != nil || fine == nil {
		t.Fatalf("return: fine=%v err=%v", fine, err)
	}

	got, err := m.Students.Get(student.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BorrowedCount != 1 {
		t.Fatalf("borrowed_count = %d, want 1", got.BorrowedCount)
	}
	if got.UnpaidFines != 2*FinePerDay {
		t.Fatalf("unpaid_fines = %v, want %v", got.UnpaidFines, 2*FinePerDay)
	}
}

func TestStudentGetAllSearch(t *testing.T) {
	m := newTestModels(t)

	seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	seedStudent(t, m, "Brian Otieno", "E35-1002-2024")

	filters := Filters{Page: 1, PageSize: 20, Sort: "name", SortSafeList: []string{"id", "name"}}

	students, meta, err := m.Students.GetAll("otieno", filters)
	if err != nil {
		t.Fatalf("getall: %v", err)
	}
	if len(students) != 1 || students[0].Name != "Brian Otieno" {
		t.Fatalf("results: %+v", students)
	}
	if meta.TotalRecords != 1 {
		t.Fatalf("metadata: %+v", meta)
	}
}

func TestStudentUpdateMembership(t *testing.T) {
	m := newTestModels(t)

	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")
	student.MembershipStatus = MembershipSuspended
	if err := m.Students.Update(student); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := m.Students.Get(student.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MembershipStatus != MembershipSuspended {
		t.Fatalf("membership = %q", got.MembershipStatus)
	}
}
