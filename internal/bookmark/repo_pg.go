package bookmark

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sundayezeilo/bookmarker/internal/errx"
	"github.com/sundayezeilo/bookmarker/internal/pgstore"
)

const (
	constraintURLUnique      = "bookmarks_url_unique"
	constraintShortURLUnique = "bookmarks_short_url_unique"

	MsgURLExists = "URL already exists"
	MsgNotFound  = "Bookmark not found"
)

type repo struct {
	db pgstore.DBTX
}

// NewRepository creates a PostgreSQL-backed Repository.
func NewRepository(db pgstore.DBTX) Repository {
	return &repo{db: db}
}

func mapRepoError(op string, err error) error {
	if pgstore.IsNoRows(err) {
		return &errx.Error{Op: op, Kind: errx.NotFound, Msg: MsgNotFound, Err: err}
	}
	if constraint, ok := pgstore.UniqueViolation(err); ok {
		switch constraint {
		case constraintURLUnique:
			return &errx.Error{Op: op, Kind: errx.Conflict, Msg: MsgURLExists, Err: err}
		case constraintShortURLUnique:
			// Codes derive from ids, so this means the sequence was reset.
			return errx.E(op, errx.Internal, err)
		default:
			return errx.E(op, errx.Conflict, err)
		}
	}
	return errx.E(op, errx.Unavailable, err)
}

const bookmarkColumns = `id, user_id, url, short_url, body, visits, created_at, updated_at`

func scanBookmark(row pgx.Row) (Bookmark, error) {
	var b Bookmark
	err := row.Scan(&b.ID, &b.OwnerID, &b.URL, &b.ShortURL, &b.Body, &b.Visits, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *repo) NextID(ctx context.Context) (int64, error) {
	const op = "bookmark.repo.NextID"

	var id int64
	err := r.db.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('bookmarks', 'id'))`).Scan(&id)
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return id, nil
}

func (r *repo) Create(ctx context.Context, b Bookmark) (Bookmark, error) {
	const op = "bookmark.repo.Create"

	if b.ID <= 0 || b.ShortURL == "" {
		return Bookmark{}, errx.E(op, errx.Internal, errors.New("id and short url must be assigned before insert"))
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO bookmarks (id, user_id, url, short_url, body)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+bookmarkColumns,
		b.ID, b.OwnerID, b.URL, b.ShortURL, b.Body,
	)
	created, err := scanBookmark(row)
	if err != nil {
		return Bookmark{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *repo) ListByOwner(ctx context.Context, owner uuid.UUID, limit, offset int) ([]Bookmark, error) {
	const op = "bookmark.repo.ListByOwner"

	rows, err := r.db.Query(ctx,
		`SELECT `+bookmarkColumns+`
		 FROM bookmarks
		 WHERE user_id = $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		owner, limit, offset,
	)
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Bookmark, error) {
		return scanBookmark(row)
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return items, nil
}

func (r *repo) CountByOwner(ctx context.Context, owner uuid.UUID) (int64, error) {
	const op = "bookmark.repo.CountByOwner"

	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookmarks WHERE user_id = $1`, owner).Scan(&n); err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}

func (r *repo) GetByOwner(ctx context.Context, owner uuid.UUID, id int64) (Bookmark, error) {
	const op = "bookmark.repo.GetByOwner"

	b, err := scanBookmark(r.db.QueryRow(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = $1 AND user_id = $2`,
		id, owner,
	))
	if err != nil {
		return Bookmark{}, mapRepoError(op, err)
	}
	return b, nil
}

func (r *repo) Update(ctx context.Context, owner uuid.UUID, id int64, url, body string) (Bookmark, error) {
	const op = "bookmark.repo.Update"

	b, err := scanBookmark(r.db.QueryRow(ctx,
		`UPDATE bookmarks
		 SET url = $3, body = $4, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+bookmarkColumns,
		id, owner, url, body,
	))
	if err != nil {
		return Bookmark{}, mapRepoError(op, err)
	}
	return b, nil
}

func (r *repo) Delete(ctx context.Context, owner uuid.UUID, id int64) error {
	const op = "bookmark.repo.Delete"

	tag, err := r.db.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.M(op, errx.NotFound, MsgNotFound)
	}
	return nil
}

func (r *repo) ResolveAndCount(ctx context.Context, shortURL string) (string, error) {
	const op = "bookmark.repo.ResolveAndCount"

	var target string
	err := r.db.QueryRow(ctx,
		`UPDATE bookmarks SET visits = visits + 1 WHERE short_url = $1 RETURNING url`,
		shortURL,
	).Scan(&target)
	if err != nil {
		return "", mapRepoError(op, err)
	}
	return target, nil
}

func (r *repo) StatsByOwner(ctx context.Context, owner uuid.UUID) ([]Stat, error) {
	const op = "bookmark.repo.StatsByOwner"

	rows, err := r.db.Query(ctx,
		`SELECT url, short_url, body, visits FROM bookmarks WHERE user_id = $1 ORDER BY id`,
		owner,
	)
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	stats, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Stat])
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return stats, nil
}

func (r *repo) InTx(ctx context.Context, fn func(Repository) error) error {
	const op = "bookmark.repo.InTx"

	err := pgstore.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&repo{db: tx})
	})
	if err != nil {
		if errx.KindOf(err) == errx.Unknown {
			return errx.E(op, errx.Unavailable, err)
		}
		return err
	}
	return nil
}
