// internal/data/category.go
package data

import (
	"database/sql"
	"errors"
	"time"
)

// Category groups books; a book may be uncategorized.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryModel wraps a *sql.DB connection for the categories table.
type CategoryModel struct {
	DB *sql.DB
}

// Insert adds a new category. A duplicate name is reported as
// ErrDuplicateIdentifier.
func (m CategoryModel) Insert(category *Category) error {
	err := m.DB.QueryRow(`
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		category.Name, category.Description).
		Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateIdentifier
		}
		return err
	}
	return nil
}

// Get retrieves a category by id.
func (m CategoryModel) Get(id int64) (*Category, error) {
	if id < 1 {
		return nil, ErrRecordNotFound
	}

	var category Category
	var description sql.NullString

	err := m.DB.QueryRow(`
		SELECT id, name, description, created_at FROM categories WHERE id = $1`, id).
		Scan(&category.ID, &category.Name, &description, &category.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	category.Description = description.String
	return &category, nil
}

// GetAll retrieves every category ordered by name. The table is small enough
// that pagination would be noise.
func (m CategoryModel) GetAll() ([]*Category, error) {
	rows, err := m.DB.Query(`SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*Category{}
	for rows.Next() {
		var category Category
		var description sql.NullString
		if err := rows.Scan(&category.ID, &category.Name, &description, &category.CreatedAt); err != nil {
			return nil, err
		}
		category.Description = description.String
		categories = append(categories, &category)
	}
	return categories, rows.Err()
}
