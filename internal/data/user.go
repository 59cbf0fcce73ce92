// internal/data/user.go
// Librarian and admin accounts. Passwords are stored as bcrypt hashes; the
// plaintext never leaves the password type.
package data

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/confuciuslib/clms/internal/validator"
)

// Roles a user can hold.
const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
)

// User represents an account that operates the system. Users are actors in
// the audit trail, not borrowers.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  password  `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// password wraps the bcrypt hash together with the optional plaintext it was
// derived from, so validation can check the plaintext without re-exposing it.
type password struct {
	plaintext *string
	hash      []byte
}

// Set hashes the plaintext password with bcrypt and stores both forms.
func (p *password) Set(plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return err
	}
	p.plaintext = &plaintext
	p.hash = hash
	return nil
}

// Matches reports whether the plaintext matches the stored hash.
func (p *password) Matches(plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(p.hash, []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ValidateUser checks the fields that must hold for every user write.
func ValidateUser(v *validator.Validator, user *User) {
	v.Check(user.Username != "", "username", "must be provided")
	v.Check(len(user.Username) <= 80, "username", "must not be more than 80 characters long")
	v.Check(user.Email != "", "email", "must be provided")
	v.Check(validator.Matches(user.Email, validator.EmailRX), "email", "must be a valid email address")
	v.Check(validator.In(user.Role, RoleAdmin, RoleLibrarian), "role", "must be admin or librarian")
	if user.Password.plaintext != nil {
		v.Check(len(*user.Password.plaintext) >= 8, "password", "must be at least 8 characters long")
		v.Check(len(*user.Password.plaintext) <= 72, "password", "must not be more than 72 characters long")
	}
}

// UserModel wraps a *sql.DB connection for the users table.
type UserModel struct {
	DB *sql.DB
}

// Insert adds a new user account. A duplicate username or email is reported
// as ErrDuplicateIdentifier.
func (m UserModel) Insert(user *User) error {
	if user.Role == "" {
		user.Role = RoleLibrarian
	}
	user.Active = true

	err := m.DB.QueryRow(`
		INSERT INTO users (username, email, password_hash, role, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at`,
		user.Username, user.Email, string(user.Password.hash), user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateIdentifier
		}
		return err
	}
	return nil
}

// GetByUsername retrieves an active user by username for authentication.
func (m UserModel) GetByUsername(username string) (*User, error) {
	var user User
	err := m.DB.QueryRow(`
		SELECT id, username, email, password_hash, role, active, created_at
		FROM users
		WHERE username = $1 AND active = TRUE`, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password.hash,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}
	return &user, nil
}

// Count returns the number of user accounts, active or not. Used at startup
// to decide whether the initial admin account needs to be created.
func (m UserModel) Count() (int, error) {
	var count int
	err := m.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
