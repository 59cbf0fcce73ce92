// internal/data/fine.go
// Fine lifecycle. A fine starts pending and moves to exactly one terminal
// state, paid or waived. Waive and adjust are only valid while pending;
// guarded updates enforce this at the database rather than in Go, so two
// concurrent administrators cannot both close the same fine.
package data

import (
	"database/sql"
	"errors"
	"time"
)

// Fine states derived from the paid/waived flags.
const (
	FineStatusPending = "pending"
	FineStatusPaid    = "paid"
	FineStatusWaived  = "waived"
)

// Fine is a monetary penalty tied to one student and one loan.
type Fine struct {
	ID               int64      `json:"id"`
	StudentID        int64      `json:"student_id"`
	LoanID           int64      `json:"loan_id"`
	Amount           float64    `json:"amount"`          // Current amount, mutable via adjust/waive
	OriginalAmount   float64    `json:"original_amount"` // Set once at creation, never changed
	Reason           string     `json:"reason"`
	Paid             bool       `json:"paid"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	Waived           bool       `json:"waived"`
	WaivedAt         *time.Time `json:"waived_at,omitempty"`
	WaivedBy         *int64     `json:"waived_by,omitempty"`
	WaiverReason     string     `json:"waiver_reason,omitempty"`
	AdjustmentAmount float64    `json:"adjustment_amount"` // Signed delta from original
	CreatedAt        time.Time  `json:"created_at"`
}

// Status returns the derived state of the fine.
func (f *Fine) Status() string {
	switch {
	case f.Waived:
		return FineStatusWaived
	case f.Paid:
		return FineStatusPaid
	default:
		return FineStatusPending
	}
}

// FineStatistics summarises the fines table for the admin statistics view.
type FineStatistics struct {
	TotalFines           int     `json:"total_fines"`
	PaidFines            int     `json:"paid_fines"`
	WaivedFines          int     `json:"waived_fines"`
	PendingFines         int     `json:"pending_fines"`
	TotalAmountCollected float64 `json:"total_amount_collected"`
	TotalAmountWaived    float64 `json:"total_amount_waived"`
	TotalAmountPending   float64 `json:"total_amount_pending"`
	RecentAdjustments    []*Fine `json:"recent_adjustments"`
}

// FineModel wraps a *sql.DB connection for the fines table.
type FineModel struct {
	DB *sql.DB // Shared database connection pool
}

const fineColumns = `
	id, student_id, loan_id, amount, original_amount, reason,
	paid, paid_at, waived, waived_at, waived_by, waiver_reason,
	adjustment_amount, created_at`

// Get retrieves a single fine by its primary key.
func (m FineModel) Get(id int64) (*Fine, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	row := m.DB.QueryRow(`SELECT `+fineColumns+` FROM fines WHERE id = $1`, id)
	fine, err := scanFine(row)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}
	return fine, nil
}

// GetAll retrieves fines filtered by derived status ("pending", "paid",
// "waived", or "all"), newest first.
func (m FineModel) GetAll(status string, filters Filters) ([]*Fine, Metadata, error) {
	var cond string
	switch status {
	case FineStatusPending:
		cond = "WHERE paid = FALSE AND waived = FALSE"
	case FineStatusPaid:
		cond = "WHERE paid = TRUE"
	case FineStatusWaived:
		cond = "WHERE waived = TRUE"
	default:
		cond = ""
	}

	query := `SELECT count(*) OVER(), ` + fineColumns + ` FROM fines ` + cond +
		` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	rows, err := m.DB.Query(query, filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	fines := []*Fine{}

	for rows.Next() {
		fine, err := scanFineRow(rows, &totalRecords)
		if err != nil {
			return nil, Metadata{}, err
		}
		fines = append(fines, fine)
	}
	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return fines, metadata, nil
}

// UnpaidForStudent returns a student's unwaived, unpaid fines.
func (m FineModel) UnpaidForStudent(studentID int64) ([]*Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines
		WHERE student_id = $1 AND paid = FALSE AND waived = FALSE
		ORDER BY created_at DESC`

	rows, err := m.DB.Query(query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fines := []*Fine{}
	for rows.Next() {
		fine, err := scanFineRow(rows, nil)
		if err != nil {
			return nil, err
		}
		fines = append(fines, fine)
	}
	return fines, rows.Err()
}

// Pay marks a pending fine as paid. Paying an already-paid or waived fine is
// rejected with ErrFineClosed and leaves the record untouched, including its
// original paid timestamp.
func (m FineModel) Pay(id int64) (*Fine, error) {
	result, err := m.DB.Exec(`
		UPDATE fines SET paid = TRUE, paid_at = $1
		WHERE id = $2 AND paid = FALSE AND waived = FALSE`,
		time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	return m.afterGuardedUpdate(id, result)
}

// Waive zeroes a pending fine, recording the waiving administrator, reason,
// and the adjustment (always minus the original amount). Waiving a paid or
// already-waived fine is rejected with ErrFineClosed.
func (m FineModel) Waive(id, adminID int64, reason string) (*Fine, error) {
	result, err := m.DB.Exec(`
		UPDATE fines
		SET waived = TRUE, waived_at = $1, waived_by = $2, waiver_reason = $3,
		    amount = 0, adjustment_amount = -original_amount
		WHERE id = $4 AND paid = FALSE AND waived = FALSE`,
		time.Now().UTC(), adminID, reason, id)
	if err != nil {
		return nil, err
	}
	return m.afterGuardedUpdate(id, result)
}

// Adjust sets a pending fine to a new non-negative amount, recording the
// administrator, reason, and the signed delta from the original amount. The
// waived flag is not set. Adjusting a paid or waived fine is rejected with
// ErrFineClosed; a negative amount with ErrInvalidAmount.
func (m FineModel) Adjust(id, adminID int64, newAmount float64, reason string) (*Fine, error) {
	if newAmount < 0 {
		return nil, ErrInvalidAmount
	}

	result, err := m.DB.Exec(`
		UPDATE fines
		SET amount = $1, adjustment_amount = $1 - original_amount,
		    waived_by = $2, waived_at = $3, waiver_reason = $4
		WHERE id = $5 AND paid = FALSE AND waived = FALSE`,
		newAmount, adminID, time.Now().UTC(), reason, id)
	if err != nil {
		return nil, err
	}
	return m.afterGuardedUpdate(id, result)
}

// afterGuardedUpdate distinguishes "no such fine" from "fine already closed"
// when a guarded update matched nothing, and reloads the row on success.
func (m FineModel) afterGuardedUpdate(id int64, result sql.Result) (*Fine, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		if _, err := m.Get(id); err != nil {
			return nil, err // ErrRecordNotFound or a real failure
		}
		return nil, ErrFineClosed
	}
	return m.Get(id)
}

// Statistics aggregates counts and amounts across all fines.
func (m FineModel) Statistics() (*FineStatistics, error) {
	var stats FineStatistics
	err := m.DB.QueryRow(`
		SELECT COUNT(*),
		       COUNT(CASE WHEN paid THEN 1 END),
		       COUNT(CASE WHEN waived THEN 1 END),
		       COUNT(CASE WHEN NOT paid AND NOT waived THEN 1 END),
		       COALESCE(SUM(CASE WHEN paid THEN amount END), 0),
		       COALESCE(SUM(CASE WHEN waived THEN original_amount END), 0),
		       COALESCE(SUM(CASE WHEN NOT paid AND NOT waived THEN amount END), 0)
		FROM fines`).Scan(
		&stats.TotalFines,
		&stats.PaidFines,
		&stats.WaivedFines,
		&stats.PendingFines,
		&stats.TotalAmountCollected,
		&stats.TotalAmountWaived,
		&stats.TotalAmountPending,
	)
	if err != nil {
		return nil, err
	}

	// The ten most recently waived or adjusted fines, for the admin view.
	rows, err := m.DB.Query(`
		SELECT ` + fineColumns + `
		FROM fines
		WHERE adjustment_amount != 0
		ORDER BY COALESCE(waived_at, created_at) DESC, id DESC
		LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats.RecentAdjustments = []*Fine{}
	for rows.Next() {
		fine, err := scanFine(rows)
		if err != nil {
			return nil, err
		}
		stats.RecentAdjustments = append(stats.RecentAdjustments, fine)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &stats, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFine(s scanner) (*Fine, error) {
	return scanFineInto(s, nil)
}

func scanFineRow(s scanner, total *int) (*Fine, error) {
	return scanFineInto(s, total)
}

func scanFineInto(s scanner, total *int) (*Fine, error) {
	var fine Fine
	var paidAt, waivedAt sql.NullTime
	var waivedBy sql.NullInt64
	var waiverReason sql.NullString

	dest := []any{}
	if total != nil {
		dest = append(dest, total)
	}
	dest = append(dest,
		&fine.ID, &fine.StudentID, &fine.LoanID, &fine.Amount, &fine.OriginalAmount,
		&fine.Reason, &fine.Paid, &paidAt, &fine.Waived, &waivedAt, &waivedBy,
		&waiverReason, &fine.AdjustmentAmount, &fine.CreatedAt,
	)

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	if paidAt.Valid {
		t := paidAt.Time
		fine.PaidAt = &t
	}
	if waivedAt.Valid {
		t := waivedAt.Time
		fine.WaivedAt = &t
	}
	if waivedBy.Valid {
		fine.WaivedBy = &waivedBy.Int64
	}
	fine.WaiverReason = waiverReason.String
	return &fine, nil
}
