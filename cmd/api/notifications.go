// cmd/api/notifications.go
// Admin endpoints to trigger the notification scans on demand. The same scans
// run from cmd/notify on a cron schedule; these endpoints exist so an
// administrator can fire them manually and see the counts immediately.
package main

import (
	"net/http"
)

// sendDueRemindersHandler handles POST /v1/notifications/due-reminders.
// A partial failure still returns 200 with the number actually sent;
// individual failures are logged and recorded in email_logs.
func (app *applicationDependencies) sendDueRemindersHandler(w http.ResponseWriter, r *http.Request) {
	sent, err := app.notifier.SendDueReminders()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"reminders_sent": sent}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// sendOverdueNoticesHandler handles POST /v1/notifications/overdue-notices.
func (app *applicationDependencies) sendOverdueNoticesHandler(w http.ResponseWriter, r *http.Request) {
	sent, err := app.notifier.SendOverdueNotices()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"notices_sent": sent}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// emailStatisticsHandler handles GET /v1/notifications/statistics.
func (app *applicationDependencies) emailStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := app.models.EmailLogs.Statistics()
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"statistics": stats}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
