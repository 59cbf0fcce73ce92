package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/confuciuslib/clms/internal/backup"
	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/notifier"
)

// nullTransport accepts every email without sending anything.
type nullTransport struct{}

func (nullTransport) Send(to, subject, body string) error { return nil }

func newTestApplication(t *testing.T) *applicationDependencies {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "clms.db")

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := data.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	models := data.NewModels(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := serverConfig{environment: "testing"}
	cfg.db.driver = "sqlite3"

	return &applicationDependencies{
		config:   cfg,
		logger:   logger,
		models:   models,
		notifier: notifier.New(models, nullTransport{}, logger),
		backups:  backup.NewManager(models, dbPath, filepath.Join(dir, "backups"), logger),
	}
}

func seedAdmin(t *testing.T, app *applicationDependencies) *data.User {
	t.Helper()
	admin := &data.User{
		Username: "admin",
		Email:    "admin@confucius.uonbi.ac.ke",
		Role:     data.RoleAdmin,
	}
	if err := admin.Password.Set("admin-test-pass"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := app.models.Users.Insert(admin); err != nil {
		t.Fatalf("insert admin: %v", err)
	}
	return admin
}

// do runs one request against the full middleware-wrapped router and decodes
// the JSON response body into a generic envelope.
func do(t *testing.T, app *applicationDependencies, method, urlPath string, body any, auth *data.User, password string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(blob)
	}

	req := httptest.NewRequest(method, urlPath, reader)
	req.RemoteAddr = "127.0.0.1:54321"
	if auth != nil {
		req.SetBasicAuth(auth.Username, password)
	}

	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, decoded
}

func TestLogShutdownWritesSystemAuditEntry(t *testing.T) {
	app := newTestApplication(t)

	app.logShutdown("terminated")

	entries, _, err := app.models.AuditLogs.GetAll(
		data.AuditFilters{Action: data.ActionServerStop},
		data.Filters{Page: 1, PageSize: 20, Sort: "-created_at", SortSafeList: []string{"-created_at"}},
	)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ActorID != nil {
		t.Fatalf("shutdown entry has an actor: %+v", entries[0])
	}
	if entries[0].EntityType != "System" || entries[0].Details["signal"] != "terminated" {
		t.Fatalf("entry = %+v", entries[0])
	}
}

func TestHealthcheck(t *testing.T) {
	app := newTestApplication(t)

	code, body := do(t, app, http.MethodGet, "/v1/healthcheck", nil, nil, "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "available" {
		t.Fatalf("body: %v", body)
	}
}

func TestCreateBook(t *testing.T) {
	app := newTestApplication(t)

	code, body := do(t, app, http.MethodPost, "/v1/books", map[string]any{
		"title":        "The Analects",
		"author":       "Confucius",
		"unique_id":    "CONF-001",
		"total_copies": 2,
	}, nil, "")
	if code != http.StatusCreated {
		t.Fatalf("status = %d, body %v", code, body)
	}
	book := body["book"].(map[string]any)
	if book["available_copies"].(float64) != 2 {
		t.Fatalf("book: %v", book)
	}

	// Validation failures come back as a 422 with field errors.
	code, body = do(t, app, http.MethodPost, "/v1/books", map[string]any{"author": "Anon"}, nil, "")
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %v", code, body)
	}

	// Unknown fields are rejected outright.
	code, _ = do(t, app, http.MethodPost, "/v1/books", map[string]any{"titel": "typo"}, nil, "")
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d", code)
	}

	// Duplicate unique id.
	code, _ = do(t, app, http.MethodPost, "/v1/books", map[string]any{
		"title":     "Copy",
		"unique_id": "CONF-001",
	}, nil, "")
	if code != http.StatusConflict {
		t.Fatalf("status = %d", code)
	}
}

func TestShowBookNotFound(t *testing.T) {
	app := newTestApplication(t)

	code, _ := do(t, app, http.MethodGet, "/v1/books/999", nil, nil, "")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
}

func TestBorrowAndReturnFlow(t *testing.T) {
	app := newTestApplication(t)

	book := &data.Book{Title: "The Analects", UniqueID: "CONF-001", TotalCopies: 1}
	if err := app.models.Books.Insert(book); err != nil {
		t.Fatalf("book: %v", err)
	}
	student := &data.Student{
		Name:               "Wanjiku Kamau",
		RegistrationNumber: "E35-1001-2024",
		Email:              "wanjiku@students.uonbi.ac.ke",
	}
	if err := app.models.Students.Insert(student); err != nil {
		t.Fatalf("student: %v", err)
	}
	other := &data.Student{
		Name:               "Brian Otieno",
		RegistrationNumber: "E35-1002-2024",
		Email:              "brian@students.uonbi.ac.ke",
	}
	if err := app.models.Students.Insert(other); err != nil {
		t.Fatalf("student: %v", err)
	}

	code, body := do(t, app, http.MethodPost, "/v1/loans", map[string]any{
		"book_id":    book.ID,
		"student_id": student.ID,
	}, nil, "")
	if code != http.StatusCreated {
		t.Fatalf("borrow status = %d, body %v", code, body)
	}
	loan := body["loan"].(map[string]any)
	loanID := int64(loan["id"].(float64))

	// The only copy is out; the next borrower gets a conflict.
	code, _ = do(t, app, http.MethodPost, "/v1/loans", map[string]any{
		"book_id":    book.ID,
		"student_id": other.ID,
	}, nil, "")
	if code != http.StatusConflict {
		t.Fatalf("second borrow status = %d", code)
	}

	// Both borrower kinds at once is a validation error.
	staff := &data.Staff{Name: "Dr. Ochieng", StaffType: "teacher"}
	if err := app.models.Staff.Insert(staff); err != nil {
		t.Fatalf("staff: %v", err)
	}
	code, _ = do(t, app, http.MethodPost, "/v1/loans", map[string]any{
		"book_id":    book.ID,
		"student_id": student.ID,
		"staff_id":   staff.ID,
	}, nil, "")
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("dual borrower status = %d", code)
	}

	code, body = do(t, app, "PUT", "/v1/loans/"+itoa(loanID)+"/return", map[string]any{"notes": "ok"}, nil, "")
	if code != http.StatusOK {
		t.Fatalf("return status = %d, body %v", code, body)
	}

	code, _ = do(t, app, "PUT", "/v1/loans/"+itoa(loanID)+"/return", map[string]any{}, nil, "")
	if code != http.StatusConflict {
		t.Fatalf("double return status = %d", code)
	}
}

func TestSuspendedStudentCannotBorrow(t *testing.T) {
	app := newTestApplication(t)

	book := &data.Book{Title: "The Analects", UniqueID: "CONF-001", TotalCopies: 1}
	if err := app.models.Books.Insert(book); err != nil {
		t.Fatalf("book: %v", err)
	}
	student := &data.Student{
		Name:               "Wanjiku Kamau",
		RegistrationNumber: "E35-1001-2024",
		Email:              "wanjiku@students.uonbi.ac.ke",
		MembershipStatus:   data.MembershipSuspended,
	}
	if err := app.models.Students.Insert(student); err != nil {
		t.Fatalf("student: %v", err)
	}

	code, _ := do(t, app, http.MethodPost, "/v1/loans", map[string]any{
		"book_id":    book.ID,
		"student_id": student.ID,
	}, nil, "")
	if code != http.StatusConflict {
		t.Fatalf("status = %d", code)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	app := newTestApplication(t)
	admin := seedAdmin(t, app)

	// Anonymous.
	code, _ := do(t, app, http.MethodGet, "/v1/audit", nil, nil, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", code)
	}

	// Wrong password.
	code, _ = do(t, app, http.MethodGet, "/v1/audit", nil, admin, "wrong")
	if code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", code)
	}

	// Librarian, correctly authenticated but not admin.
	librarian := &data.User{Username: "librarian1", Email: "lib@confucius.uonbi.ac.ke"}
	if err := librarian.Password.Set("lib-pass"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := app.models.Users.Insert(librarian); err != nil {
		t.Fatalf("insert: %v", err)
	}
	code, _ = do(t, app, http.MethodGet, "/v1/audit", nil, librarian, "lib-pass")
	if code != http.StatusForbidden {
		t.Fatalf("librarian status = %d", code)
	}

	// Admin.
	code, body := do(t, app, http.MethodGet, "/v1/audit", nil, admin, "admin-test-pass")
	if code != http.StatusOK {
		t.Fatalf("admin status = %d, body %v", code, body)
	}
}

func TestAuditTrailRecordsActor(t *testing.T) {
	app := newTestApplication(t)
	admin := seedAdmin(t, app)

	code, body := do(t, app, http.MethodPost, "/v1/books", map[string]any{
		"title":     "The Analects",
		"unique_id": "CONF-001",
	}, admin, "admin-test-pass")
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", code, body)
	}
	bookID := int64(body["book"].(map[string]any)["id"].(float64))

	history, err := app.models.AuditLogs.GetForEntity("Book", bookID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d", len(history))
	}
	entry := history[0]
	if entry.Action != data.ActionCreateBook {
		t.Fatalf("action = %s", entry.Action)
	}
	if entry.ActorID == nil || *entry.ActorID != admin.ID {
		t.Fatalf("actor = %v, want %d", entry.ActorID, admin.ID)
	}
	if entry.RequestID == "" {
		t.Fatalf("request id not recorded")
	}
}

func TestFineWaiveRequiresAdmin(t *testing.T) {
	app := newTestApplication(t)
	seedAdmin(t, app)

	code, _ := do(t, app, http.MethodPost, "/v1/fines/1/waive", map[string]any{"reason": "x"}, nil, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d", code)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
