// internal/data/student.go
package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/confuciuslib/clms/internal/validator"
)

// Membership statuses a student can hold.
const (
	MembershipActive    = "active"
	MembershipSuspended = "suspended"
	MembershipExpired   = "expired"
)

// Student represents a student borrower. Exactly one of the three identifier
// fields must be set; the first non-empty one in declaration order is the
// canonical identifier.
type Student struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	RegistrationNumber string    `json:"registration_number,omitempty"` // University students
	IDNumber           string    `json:"id_number,omitempty"`           // National ID holders
	PassportNumber     string    `json:"passport_number,omitempty"`     // International students
	Email              string    `json:"email"`
	Phone              string    `json:"phone,omitempty"`
	MembershipStatus   string    `json:"membership_status"`
	CreatedAt          time.Time `json:"created_at"`

	// Derived fields populated by Get.
	BorrowedCount int     `json:"borrowed_count"` // Open loans right now
	UnpaidFines   float64 `json:"unpaid_fines"`   // Sum of pending fine amounts
}

// Identifier returns the student's canonical identifier: registration number
// first, then national ID, then passport number.
func (s *Student) Identifier() string {
	switch {
	case s.RegistrationNumber != "":
		return s.RegistrationNumber
	case s.IDNumber != "":
		return s.IDNumber
	default:
		return s.PassportNumber
	}
}

// ValidateStudent checks the fields that must hold for every student write.
func ValidateStudent(v *validator.Validator, student *Student) {
	v.Check(student.Name != "", "name", "must be provided")
	v.Check(student.Email != "", "email", "must be provided")
	v.Check(validator.Matches(student.Email, validator.EmailRX), "email", "must be a valid email address")
	v.Check(
		student.RegistrationNumber != "" || student.IDNumber != "" || student.PassportNumber != "",
		"identifier",
		"at least one of registration_number, id_number, or passport_number must be provided",
	)
	if student.MembershipStatus != "" {
		v.Check(
			validator.In(student.MembershipStatus, MembershipActive, MembershipSuspended, MembershipExpired),
			"membership_status",
			"must be one of active, suspended, or expired",
		)
	}
}

// StudentModel wraps a *sql.DB connection for the students table.
type StudentModel struct {
	DB *sql.DB // Shared database connection pool
}

// Insert adds a new student. A clash on any of the three identifier columns
// is reported as ErrDuplicateIdentifier.
func (m StudentModel) Insert(student *Student) error {
	if student.MembershipStatus == "" {
		student.MembershipStatus = MembershipActive
	}

	query := `
		INSERT INTO students (name, registration_number, id_number, passport_number, email, phone, membership_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := m.DB.QueryRow(
		query,
		student.Name,
		nullString(student.RegistrationNumber),
		nullString(student.IDNumber),
		nullString(student.PassportNumber),
		student.Email,
		student.Phone,
		student.MembershipStatus,
	).Scan(&student.ID, &student.CreatedAt)

	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateIdentifier
		}
		return err
	}
	return nil
}

// Get retrieves a student together with their open-loan count and unpaid
// fine total. Returns ErrRecordNotFound if no student exists.
func (m StudentModel) Get(id int64) (*Student, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	query := `
		SELECT id, name, registration_number, id_number, passport_number,
		       email, phone, membership_status, created_at,
		       (SELECT COUNT(*) FROM loans WHERE student_id = students.id AND returned_at IS NULL),
		       (SELECT COALESCE(SUM(amount), 0) FROM fines
		        WHERE student_id = students.id AND paid = FALSE AND waived = FALSE)
		FROM students
		WHERE id = $1`

	var student Student
	var regNum, idNum, passport, phone sql.NullString

	err := m.DB.QueryRow(query, id).Scan(
		&student.ID,
		&student.Name,
		&regNum,
		&idNum,
		&passport,
		&student.Email,
		&phone,
		&student.MembershipStatus,
		&student.CreatedAt,
		&student.BorrowedCount,
		&student.UnpaidFines,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	student.RegistrationNumber = regNum.String
	student.IDNumber = idNum.String
	student.PassportNumber = passport.String
	student.Phone = phone.String
	return &student, nil
}

// GetAll retrieves a paginated list of students, optionally filtered by a
// search term matched against the name and all three identifier columns.
func (m StudentModel) GetAll(search string, filters Filters) ([]*Student, Metadata, error) {
	query := fmt.Sprintf(`
		SELECT count(*) OVER(), id, name, registration_number, id_number, passport_number,
		       email, phone, membership_status, created_at
		FROM students
		WHERE ($1 = '' OR name LIKE $2 OR registration_number LIKE $2
		       OR id_number LIKE $2 OR passport_number LIKE $2)
		ORDER BY %s %s, id ASC
		LIMIT $3 OFFSET $4`, filters.sortColumn(), filters.sortDirection())

	rows, err := m.DB.Query(query, search, "%"+search+"%", filters.limit(), filters.offset())
	if err != nil {
		return nil, Metadata{}, err
	}
	defer rows.Close()

	totalRecords := 0
	students := []*Student{}

	for rows.Next() {
		var student Student
		var regNum, idNum, passport, phone sql.NullString

		err := rows.Scan(
			&totalRecords,
			&student.ID,
			&student.Name,
			&regNum,
			&idNum,
			&passport,
			&student.Email,
			&phone,
			&student.MembershipStatus,
			&student.CreatedAt,
		)
		if err != nil {
			return nil, Metadata{}, err
		}

		student.RegistrationNumber = regNum.String
		student.IDNumber = idNum.String
		student.PassportNumber = passport.String
		student.Phone = phone.String
		students = append(students, &student)
	}

	if err = rows.Err(); err != nil {
		return nil, Metadata{}, err
	}

	metadata := calculateMetadata(totalRecords, filters.Page, filters.PageSize)
	return students, metadata, nil
}

// Update saves the modified fields of student back to the database.
func (m StudentModel) Update(student *Student) error {
	query := `
		UPDATE students
		SET name = $1, registration_number = $2, id_number = $3, passport_number = $4,
		    email = $5, phone = $6, membership_status = $7
		WHERE id = $8`

	result, err := m.DB.Exec(
		query,
		student.Name,
		nullString(student.RegistrationNumber),
		nullString(student.IDNumber),
		nullString(student.PassportNumber),
		student.Email,
		student.Phone,
		student.MembershipStatus,
		student.ID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateIdentifier
		}
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
