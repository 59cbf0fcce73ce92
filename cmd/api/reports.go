// cmd/api/reports.go
// Dashboard and reporting endpoints backed by the read-only aggregate
// queries in internal/data.
package main

import (
	"net/http"
)

// dashboardHandler handles GET /v1/dashboard: the landing-page counters.
func (app *applicationDependencies) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := app.models.Reports.Dashboard()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"dashboard": stats}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// mostBorrowedHandler handles GET /v1/reports/most-borrowed (admin only).
// The limit query parameter caps the list; default 10, maximum 50.
func (app *applicationDependencies) mostBorrowedHandler(w http.ResponseWriter, r *http.Request) {
	limit := app.readInt(r.URL.Query(), "limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}

	books, err := app.models.Reports.MostBorrowed(limit)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"most_borrowed": books}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// stockStatusHandler handles GET /v1/reports/stock-status (admin only).
// Lists every title with its total, borrowed, and available copy counts.
func (app *applicationDependencies) stockStatusHandler(w http.ResponseWriter, r *http.Request) {
	stock, err := app.models.Reports.StockStatus()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"stock": stock}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
