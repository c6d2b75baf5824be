package bookmark

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for bookmarks. Every owner-scoped method
// treats another user's bookmark exactly like a missing one (errx.NotFound).
type Repository interface {
	// NextID reserves the id the next Create will use.
	NextID(ctx context.Context) (int64, error)
	// Create inserts b with its ID and ShortURL already set.
	Create(ctx context.Context, b Bookmark) (Bookmark, error)
	ListByOwner(ctx context.Context, owner uuid.UUID, limit, offset int) ([]Bookmark, error)
	CountByOwner(ctx context.Context, owner uuid.UUID) (int64, error)
	GetByOwner(ctx context.Context, owner uuid.UUID, id int64) (Bookmark, error)
	Update(ctx context.Context, owner uuid.UUID, id int64, url, body string) (Bookmark, error)
	Delete(ctx context.Context, owner uuid.UUID, id int64) error
	// ResolveAndCount increments the visit counter for shortURL and returns
	// the target URL.
	ResolveAndCount(ctx context.Context, shortURL string) (string, error)
	StatsByOwner(ctx context.Context, owner uuid.UUID) ([]Stat, error)

	// InTx runs fn with a Repository bound to a single transaction.
	InTx(ctx context.Context, fn func(Repository) error) error
}
