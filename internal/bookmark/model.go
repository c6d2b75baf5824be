package bookmark

import (
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/bookmarker/internal/paging"
)

// Bookmark is a saved URL owned by one user. ShortURL is derived from ID and
// never changes.
type Bookmark struct {
	ID        int64
	OwnerID   uuid.UUID
	URL       string
	ShortURL  string
	Body      string
	Visits    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stat is the per-bookmark visit summary.
type Stat struct {
	URL      string
	ShortURL string
	Body     string
	Visits   int64
}

// Page is one slice of a user's bookmarks.
type Page struct {
	Items []Bookmark
	Meta  paging.Meta
}
