// internal/data/email.go
package data

import (
	"database/sql"
	"time"
)

// Email types recorded in email_logs.
const (
	EmailDueReminder   = "due_reminder"
	EmailOverdueNotice = "overdue_notice"
)

// Email statuses.
const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

// EmailLog records one outbound email attempt, successful or not.
type EmailLog struct {
	ID           int64     `json:"id"`
	Recipient    string    `json:"recipient_email"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	EmailType    string    `json:"email_type"`
	StudentID    *int64    `json:"student_id,omitempty"`
	LoanID       *int64    `json:"loan_id,omitempty"`
	SentAt       time.Time `json:"sent_at"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// EmailStatistics summarises the email_logs table.
type EmailStatistics struct {
	TotalSent      int `json:"total_sent"`
	TotalFailed    int `json:"total_failed"`
	DueReminders   int `json:"due_reminders"`
	OverdueNotices int `json:"overdue_notices"`
}

// EmailLogModel wraps a *sql.DB connection for the email_logs table.
type EmailLogModel struct {
	DB *sql.DB
}

// Insert records an email attempt.
func (m EmailLogModel) Insert(log *EmailLog) error {
	if log.SentAt.IsZero() {
		log.SentAt = time.Now().UTC()
	}

	return m.DB.QueryRow(`
		INSERT INTO email_logs (recipient_email, subject, body, email_type, student_id, loan_id, sent_at, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		log.Recipient,
		log.Subject,
		log.Body,
		log.EmailType,
		nullInt64Ptr(log.StudentID),
		nullInt64Ptr(log.LoanID),
		log.SentAt,
		log.Status,
		nullString(log.ErrorMessage),
	).Scan(&log.ID)
}

// SentToday reports whether a successful email of the given type was already
// recorded for the loan on the calendar day containing now (UTC). The scans
// use this to avoid re-mailing a borrower when a run is repeated.
func (m EmailLogModel) SentToday(loanID int64, emailType string, now time.Time) (bool, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	err := m.DB.QueryRow(`
		SELECT COUNT(*) FROM email_logs
		WHERE loan_id = $1 AND email_type = $2 AND status = $3
		AND sent_at >= $4 AND sent_at < $5`,
		loanID, emailType, EmailSent, dayStart, dayEnd).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Statistics aggregates send counts by outcome and type.
func (m EmailLogModel) Statistics() (*EmailStatistics, error) {
	var stats EmailStatistics
	err := m.DB.QueryRow(`
		SELECT COUNT(CASE WHEN status = 'sent' THEN 1 END),
		       COUNT(CASE WHEN status = 'failed' THEN 1 END),
		       COUNT(CASE WHEN status = 'sent' AND email_type = 'due_reminder' THEN 1 END),
		       COUNT(CASE WHEN status = 'sent' AND email_type = 'overdue_notice' THEN 1 END)
		FROM email_logs`).Scan(
		&stats.TotalSent,
		&stats.TotalFailed,
		&stats.DueReminders,
		&stats.OverdueNotices,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
