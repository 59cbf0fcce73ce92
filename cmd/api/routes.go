// cmd/api/routes.go
package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// routes registers all HTTP endpoints and returns the configured router wrapped
// in the application middleware.
//
// Middleware chain (outermost → innermost):
//
//	recoverPanic → rateLimit → requestID → authenticate → router
//
// Admin-only endpoints (audit, backups, reports, users, fine statistics) are
// additionally wrapped in requireAdmin.
func (app *applicationDependencies) routes() http.Handler {
	router := httprouter.New()

	// Override the default httprouter error handlers to return JSON responses.
	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)

	// Book catalog
	router.HandlerFunc(http.MethodPost, "/v1/books", app.createBookHandler)
	router.HandlerFunc(http.MethodGet, "/v1/books/:id", app.showBookHandler)
	router.HandlerFunc(http.MethodGet, "/v1/books", app.listBooksHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/books/:id", app.updateBookHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/books/:id", app.deleteBookHandler)

	// Categories
	router.HandlerFunc(http.MethodPost, "/v1/categories", app.createCategoryHandler)
	router.HandlerFunc(http.MethodGet, "/v1/categories", app.listCategoriesHandler)

	// Students
	router.HandlerFunc(http.MethodPost, "/v1/students", app.createStudentHandler)
	router.HandlerFunc(http.MethodGet, "/v1/students/:id", app.showStudentHandler)
	router.HandlerFunc(http.MethodGet, "/v1/students", app.listStudentsHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/students/:id", app.updateStudentHandler)
	router.HandlerFunc(http.MethodGet, "/v1/students/:id/preferences", app.showPreferencesHandler)
	router.HandlerFunc(http.MethodPut, "/v1/students/:id/preferences", app.updatePreferencesHandler)

	// Staff
	router.HandlerFunc(http.MethodPost, "/v1/staff", app.createStaffHandler)
	router.HandlerFunc(http.MethodGet, "/v1/staff/:id", app.showStaffHandler)
	router.HandlerFunc(http.MethodGet, "/v1/staff", app.listStaffHandler)
	router.HandlerFunc(http.MethodPatch, "/v1/staff/:id", app.updateStaffHandler)

	// Loans: borrowing and returning
	router.HandlerFunc(http.MethodPost, "/v1/loans", app.createLoanHandler)
	router.HandlerFunc(http.MethodGet, "/v1/loans", app.listLoansHandler)
	router.HandlerFunc(http.MethodGet, "/v1/loans/:id", app.showLoanHandler)
	router.HandlerFunc(http.MethodPut, "/v1/loans/:id/return", app.returnLoanHandler)

	// Fines
	router.HandlerFunc(http.MethodGet, "/v1/fines", app.listFinesHandler)
	router.HandlerFunc(http.MethodGet, "/v1/fines/:id", app.showFineHandler)
	router.HandlerFunc(http.MethodPost, "/v1/fines/:id/pay", app.payFineHandler)
	router.HandlerFunc(http.MethodPost, "/v1/fines/:id/waive", app.waiveFineHandler)
	router.HandlerFunc(http.MethodPost, "/v1/fines/:id/adjust", app.adjustFineHandler)
	router.HandlerFunc(http.MethodGet, "/v1/fines-statistics", app.requireAdmin(app.fineStatisticsHandler))

	// Notification scans, also reachable through cmd/notify
	router.HandlerFunc(http.MethodPost, "/v1/notifications/due-reminders", app.requireAdmin(app.sendDueRemindersHandler))
	router.HandlerFunc(http.MethodPost, "/v1/notifications/overdue-notices", app.requireAdmin(app.sendOverdueNoticesHandler))
	router.HandlerFunc(http.MethodGet, "/v1/notifications/statistics", app.requireAdmin(app.emailStatisticsHandler))

	// Audit trail (admin only)
	router.HandlerFunc(http.MethodGet, "/v1/audit", app.requireAdmin(app.listAuditLogsHandler))
	router.HandlerFunc(http.MethodGet, "/v1/audit/entity/:type/:id", app.requireAdmin(app.entityHistoryHandler))

	// Backups (admin only)
	router.HandlerFunc(http.MethodGet, "/v1/backups", app.requireAdmin(app.listBackupsHandler))
	router.HandlerFunc(http.MethodPost, "/v1/backups", app.requireAdmin(app.createBackupHandler))
	router.HandlerFunc(http.MethodPost, "/v1/backups/:id/restore", app.requireAdmin(app.restoreBackupHandler))
	router.HandlerFunc(http.MethodDelete, "/v1/backups/:id", app.requireAdmin(app.deleteBackupHandler))

	// Dashboard and reports
	router.HandlerFunc(http.MethodGet, "/v1/dashboard", app.dashboardHandler)
	router.HandlerFunc(http.MethodGet, "/v1/reports/most-borrowed", app.requireAdmin(app.mostBorrowedHandler))
	router.HandlerFunc(http.MethodGet, "/v1/reports/stock-status", app.requireAdmin(app.stockStatusHandler))

	// User accounts (admin only)
	router.HandlerFunc(http.MethodPost, "/v1/users", app.requireAdmin(app.createUserHandler))

	// Wrap with middleware: recoverPanic is outermost so it catches panics
	// from every other layer alike.
	return app.recoverPanic(app.rateLimit(app.requestID(app.authenticate(router))))
}
