// cmd/api/users.go
package main

import (
	"errors"
	"net/http"

	"github.com/confuciuslib/clms/internal/data"
	"github.com/confuciuslib/clms/internal/validator"
)

// createUserHandler handles POST /v1/users (admin only): registering a new
// librarian or admin account. The password is bcrypt-hashed before storage
// and never appears in any response.
func (app *applicationDependencies) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if input.Role == "" {
		input.Role = data.RoleLibrarian
	}

	user := &data.User{
		Username: input.Username,
		Email:    input.Email,
		Role:     input.Role,
		Active:   true,
	}

	err = user.Password.Set(input.Password)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	v := validator.New()
	if data.ValidateUser(v, user); !v.Valid() {
		app.failedValidationResponse(w, r, v.Errors)
		return
	}

	err = app.models.Users.Insert(user)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateIdentifier):
			app.conflictResponse(w, r, errors.New("a user with this username or email already exists"))
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	app.logAudit(r, data.ActionCreateUser, "User", user.ID, map[string]any{
		"username": user.Username,
		"role":     user.Role,
	})

	err = app.writeJSON(w, http.StatusCreated, envelope{"user": user}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
