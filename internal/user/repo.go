package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists users and answers the uniqueness lookups registration
// needs. Lookups that match nothing fail with errx.NotFound.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// InTx runs fn with a Repository bound to a single transaction.
	InTx(ctx context.Context, fn func(Repository) error) error
}
