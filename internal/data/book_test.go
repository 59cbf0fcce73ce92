package data

import (
	"errors"
	"testing"
	"time"

	"github.com/confuciuslib/clms/internal/validator"
)

func TestBookInsertAndGet(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 3)
	if book.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if book.AvailableCopies != 3 {
		t.Fatalf("available = %d, want 3", book.AvailableCopies)
	}

	got, err := m.Books.Get(book.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "The Analects" || got.AvailableCopies != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestBookGetNotFound(t *testing.T) {
	m := newTestModels(t)

	_, err := m.Books.Get(999)
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestBookDuplicateUniqueID(t *testing.T) {
	m := newTestModels(t)

	seedBook(t, m, "The Analects", "CONF-001", 1)
	err := m.Books.Insert(&Book{Title: "Another", UniqueID: "CONF-001", TotalCopies: 1})
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("err = %v, want ErrDuplicateIdentifier", err)
	}
}

func TestBookAvailableCopiesTracksLoans(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "Tao Te Ching", "CONF-002", 2)
	student := seedStudent(t, m, "Wanjiku Kamau", "E35-1001-2024")

	now := time.Now().UTC()
	seedLoan(t, m, book.ID, &student.ID, now, now.AddDate(0, 0, 3))

	got, err := m.Books.Get(book.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AvailableCopies != 1 {
		t.Fatalf("available = %d, want 1", got.AvailableCopies)
	}
}

func TestBookGetAllSearch(t *testing.T) {
	m := newTestModels(t)

	seedBook(t, m, "The Analects", "CONF-001", 1)
	seedBook(t, m, "Tao Te Ching", "CONF-002", 1)
	seedBook(t, m, "Art of War", "CONF-003", 1)

	filters := Filters{Page: 1, PageSize: 20, Sort: "title", SortSafeList: []string{"id", "title"}}

	books, meta, err := m.Books.GetAll("tao", 0, filters)
	if err != nil {
		t.Fatalf("getall: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Tao Te Ching" {
		t.Fatalf("search results: %+v", books)
	}
	if meta.TotalRecords != 1 {
		t.Fatalf("metadata: %+v", meta)
	}

	all, meta, err := m.Books.GetAll("", 0, filters)
	if err != nil {
		t.Fatalf("getall: %v", err)
	}
	if len(all) != 3 || meta.TotalRecords != 3 {
		t.Fatalf("expected 3 books, got %d (meta %+v)", len(all), meta)
	}
}

func TestBookUpdateAndDelete(t *testing.T) {
	m := newTestModels(t)

	book := seedBook(t, m, "The Analects", "CONF-001", 1)

	book.Title = "The Analects of Confucius"
	book.TotalCopies = 5
	if err := m.Books.Update(book); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := m.Books.Get(book.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "The Analects of Confucius" || got.TotalCopies != 5 {
		t.Fatalf("after update: %+v", got)
	}

	if err := m.Books.Delete(book.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Books.Get(book.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("after delete err = %v", err)
	}
	if err := m.Books.Delete(book.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("double delete err = %v", err)
	}
}

func TestValidateBook(t *testing.T) {
	v := validator.New()
	ValidateBook(v, &Book{Title: "", UniqueID: "", TotalCopies: 0})
	if v.Valid() {
		t.Fatalf("expected validation failures")
	}
	if _, ok := v.Errors["title"]; !ok {
		t.Fatalf("missing title error: %v", v.Errors)
	}
	if _, ok := v.Errors["unique_id"]; !ok {
		t.Fatalf("missing unique_id error: %v", v.Errors)
	}

	v = validator.New()
	ValidateBook(v, &Book{Title: "The Analects", UniqueID: "CONF-001", TotalCopies: 1})
	if !v.Valid() {
		t.Fatalf("unexpected errors: %v", v.Errors)
	}
}
