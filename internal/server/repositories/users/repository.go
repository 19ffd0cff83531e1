// Package users is the credential directory: persistent storage of
// principals (username, bcrypt password hash, role, active flag) consulted
// at login and for per-request role refresh.
package users

import (
	"context"

	"github.com/arsansys/siva/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// Update rewrites the mutable fields of an existing user; in the auth
	// flow it is used to attach a federated credential to the principal.
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]*models.User, error)
}
