// internal/data/preference.go
package data

import (
	"database/sql"
	"errors"
	"time"
)

// NotificationPreference holds a student's email preferences. A student with
// no preference row gets the defaults: both notice types on, reminders one
// day before the due date.
type NotificationPreference struct {
	ID                 int64     `json:"id,omitempty"`
	StudentID          int64     `json:"student_id"`
	EmailDueReminder   bool      `json:"email_due_reminder"`
	EmailOverdueNotice bool      `json:"email_overdue_notice"`
	DaysBeforeDue      int       `json:"days_before_due"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// defaultPreference returns the implied preference for a student without a
// stored row.
func defaultPreference(studentID int64) *NotificationPreference {
	return &NotificationPreference{
		StudentID:          studentID,
		EmailDueReminder:   true,
		EmailOverdueNotice: true,
		DaysBeforeDue:      1,
	}
}

// NotificationPreferenceModel wraps a *sql.DB connection for the
// notification_preferences table.
type NotificationPreferenceModel struct {
	DB *sql.DB
}

// GetForStudent returns the student's stored preference, or the defaults if
// none exists. The returned value has ID 0 when defaulted.
func (m NotificationPreferenceModel) GetForStudent(studentID int64) (*NotificationPreference, error) {
	var pref NotificationPreference
	err := m.DB.QueryRow(`
		SELECT id, student_id, email_due_reminder, email_overdue_notice, days_before_due, created_at, updated_at
		FROM notification_preferences
		WHERE student_id = $1`, studentID).Scan(
		&pref.ID,
		&pref.StudentID,
		&pref.EmailDueReminder,
		&pref.EmailOverdueNotice,
		&pref.DaysBeforeDue,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return defaultPreference(studentID), nil
		default:
			return nil, err
		}
	}
	return &pref, nil
}

// Upsert stores the preference for a student, inserting or updating as
// needed. Both drivers support ON CONFLICT on the student_id unique column.
func (m NotificationPreferenceModel) Upsert(pref *NotificationPreference) error {
	now := time.Now().UTC()
	return m.DB.QueryRow(`
		INSERT INTO notification_preferences
			(student_id, email_due_reminder, email_overdue_notice, days_before_due, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			email_due_reminder = $2,
			email_overdue_notice = $3,
			days_before_due = $4,
			updated_at = $5
		RETURNING id, created_at, updated_at`,
		pref.StudentID,
		pref.EmailDueReminder,
		pref.EmailOverdueNotice,
		pref.DaysBeforeDue,
		now,
	).Scan(&pref.ID, &pref.CreatedAt, &pref.UpdatedAt)
}
