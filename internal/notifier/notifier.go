// Package notifier implements the two scheduled email scans: due-date
// reminders and overdue notices. Both are batch operations meant to be
// invoked by an external scheduler (cmd/notify); they return the number of
// emails successfully dispatched and never abort on a single send failure.
package notifier

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/mailer"
)

// Notifier scans loans and mails students according to their preferences.
type Notifier struct {
	models    data.Models
	transport mailer.Transport
	logger    *slog.Logger
}

// New constructs a Notifier.
func New(models data.Models, transport mailer.Transport, logger *slog.Logger) *Notifier {
	return &Notifier{
		models:    models,
		transport: transport,
		logger:    logger,
	}
}

// SendDueReminders scans open student loans due within the next two days and
// mails a reminder to each student whose preference allows it. With no stored
// preference the default of "remind 1 day before" applies, so only loans due
// in exactly one day are actually mailed, despite the wider query window.
//
// Returns the count of emails the transport accepted.
func (n *Notifier) SendDueReminders() (int, error) {
	now := time.Now().UTC()

	loans, err := n.models.Loans.DueSoon(now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, loan := range loans {
		pref, err := n.models.Preferences.GetForStudent(*loan.StudentID)
		if err != nil {
			n.logger.Error("loading notification preference", "student_id", *loan.StudentID, "error", err)
			continue
		}
		if !pref.EmailDueReminder {
			continue
		}

		daysUntilDue := calendarDaysUntil(now, loan.DueDate)
		if daysUntilDue > pref.DaysBeforeDue {
			continue
		}

		subject := fmt.Sprintf("Library Book Due Reminder - %s", loan.BookTitle)
		body := fmt.Sprintf(`Dear %s,

This is a friendly reminder that you have a book due soon:

Book: %s
Author: %s
Due Date: %s
Days Until Due: %d

Please return the book on time to avoid late fees.

Thank you,
Confucius Institute Library
University of Nairobi
`,
			loan.StudentName,
			loan.BookTitle,
			orNA(loan.BookAuthor),
			loan.DueDate.Format("January 2, 2006"),
			daysUntilDue,
		)

		if n.send(loan, data.EmailDueReminder, subject, body, now) {
			sent++
		}
	}

	return sent, nil
}

// SendOverdueNotices scans all open student loans past their due date and
// mails a notice to each student who has not disabled overdue notices. The
// notice quotes the fine the student would owe if they returned the book
// now. It never creates a Fine record: fines only exist once the book is
// actually returned.
//
// Returns the count of emails the transport accepted.
func (n *Notifier) SendOverdueNotices() (int, error) {
	now := time.Now().UTC()

	loans, err := n.models.Loans.Overdue(now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, loan := range loans {
		pref, err := n.models.Preferences.GetForStudent(*loan.StudentID)
		if err != nil {
			n.logger.Error("loading notification preference", "student_id", *loan.StudentID, "error", err)
			continue
		}
		if !pref.EmailOverdueNotice {
			continue
		}

		daysOverdue := loan.DaysOverdue(now)
		projectedFine := float64(daysOverdue) * data.FinePerDay

		subject := fmt.Sprintf("OVERDUE NOTICE - %s", loan.BookTitle)
		body := fmt.Sprintf(`Dear %s,

This is an overdue notice for the following book:

Book: %s
Author: %s
Due Date: %s
Days Overdue: %d
Fine Amount: KES %.0f

Please return the book immediately to avoid additional charges.

Contact the library if you need assistance.

Confucius Institute Library
University of Nairobi
Email: library@confucius.uonbi.ac.ke
`,
			loan.StudentName,
			loan.BookTitle,
			orNA(loan.BookAuthor),
			loan.DueDate.Format("January 2, 2006"),
			daysOverdue,
			projectedFine,
		)

		if n.send(loan, data.EmailOverdueNotice, subject, body, now) {
			sent++
		}
	}

	return sent, nil
}

// send dispatches one email unless an identical notice already went out
// today, records the attempt in email_logs either way, and appends a
// system audit entry. Reports whether the transport accepted the message.
func (n *Notifier) send(loan *data.StudentLoan, emailType, subject, body string, now time.Time) bool {
	already, err := n.models.EmailLogs.SentToday(loan.ID, emailType, now)
	if err != nil {
		n.logger.Error("checking email history", "loan_id", loan.ID, "error", err)
		return false
	}
	if already {
		n.logger.Info("skipping duplicate notification", "loan_id", loan.ID, "email_type", emailType)
		return false
	}

	sendErr := n.transport.Send(loan.StudentEmail, subject, body)

	log := &data.EmailLog{
		Recipient: loan.StudentEmail,
		Subject:   subject,
		Body:      body,
		EmailType: emailType,
		StudentID: loan.StudentID,
		LoanID:    &loan.ID,
		SentAt:    now,
		Status:    data.EmailSent,
	}
	if sendErr != nil {
		log.Status = data.EmailFailed
		log.ErrorMessage = sendErr.Error()
		n.logger.Error("sending email", "to", loan.StudentEmail, "subject", subject, "error", sendErr)
	}

	if err := n.models.EmailLogs.Insert(log); err != nil {
		n.logger.Error("recording email log", "loan_id", loan.ID, "error", err)
	}

	// Scans run outside any request, so the audit entry has no actor.
	auditErr := n.models.AuditLogs.Insert(&data.AuditEntry{
		Action:     data.ActionSendEmail,
		EntityType: "Email",
		EntityID:   log.ID,
		Details: map[string]any{
			"recipient":  loan.StudentEmail,
			"subject":    subject,
			"email_type": emailType,
			"student_id": *loan.StudentID,
			"loan_id":    loan.ID,
			"status":     log.Status,
		},
	})
	if auditErr != nil {
		n.logger.Error("audit logging failed", "action", data.ActionSendEmail, "error", auditErr)
	}

	return sendErr == nil
}

// calendarDaysUntil returns the whole calendar days between now and due,
// comparing dates rather than instants so "due tomorrow" means tomorrow's
// date regardless of the time of day.
func calendarDaysUntil(now, due time.Time) int {
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dueDate := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueDate.Sub(nowDate).Hours() / 24)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
