// internal/data/staff.go
package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/confuciuslib/clms/internal/validator"
)

// Staff represents a staff borrower, either a teacher or an intern.
type Staff struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StaffType string    `json:"staff_type"` // "teacher" or "intern"
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateStaff checks the fields that must hold for every staff write.
func ValidateStaff(v *validator.Validator, staff *Staff) {
	v.Check(staff.Name != "", "name", "must be provided")
	v.Check(validator.In(staff.StaffType, "teacher", "intern"), "staff_type", "must be teacher or intern")
	if staff.Email != "" {
		v.Check(validator.Matches(staff.Email, validator.EmailRX), "email", "must be a valid email address")
	}
}

// StaffModel wraps a *sql.DB connection for the staff table.
type StaffModel struct {
	DB *sql.DB
}

// Insert adds a new staff member.
func (m StaffModel) Insert(staff *Staff) error {
	query := `
		INSERT INTO staff (name, staff_type, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return m.DB.QueryRow(query, staff.Name, staff.StaffType, staff.Email, staff.Phone).
		Scan(&staff.ID, &staff.CreatedAt)
}

// Get retrieves a staff member by id.
func (m StaffModel) Get(id int64) (*Staff, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	var staff Staff
	var email, phone sql.NullString

	err := m.DB.QueryRow(`
		SELECT id, name, staff_type, email, phone, created_at
		FROM staff WHERE id = $1`, id).Scan(
		&staff.ID, &staff.Name, &staff.StaffType, &email, &phone, &staff.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	staff.Email = email.String
	staff.Phone = phone.String
	return &staff, nil
}

// GetAll retrieves a paginated list of staff, optionally filtered by name.
func (m StaffModel) GetAll(search string, filters Filters) ([]*Staff, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), id, name, staff_type, email, phone, created_at
		FROM staff
		WHERE ($1 = '' OR name LIKE $2)
		ORDER BY %s %s, id ASC
		LIMIT $3 OFFSET $4`, filters.sortColumn(), filters.sortDirection())

	rows, err := m.DB.Query(query, search, "%"+search+"%", filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	members := []*Staff{}

	for rows.Next() {
		var staff Staff
		var email, phone sql.NullString

		err := rows.Scan(&totalRecords, &staff.ID, &staff.Name, &staff.StaffType, &email, &phone, &staff.CreatedAt)
		if err != nil {
			return nil, Metadata{}, err
		}

		staff.Email = email.String
		staff.Phone = phone.String
		members = append(members, &staff)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return members, metadata, nil
}

// Update saves the modified fields of staff back to the database.
func (m StaffModel) Update(staff *Staff) error {
	result, err := m.DB.Exec(`
		UPDATE staff SET name = $1, staff_type = $2, email = $3, phone = $4
		WHERE id = $5`,
		staff.Name, staff.StaffType, staff.Email, staff.Phone, staff.ID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
