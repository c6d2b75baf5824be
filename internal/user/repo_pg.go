package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sundayezeilo/bookmarker/internal/errx"
	"github.com/sundayezeilo/bookmarker/internal/idgen"
	"github.com/sundayezeilo/bookmarker/internal/pgstore"
)

const (
	constraintEmailUnique    = "users_email_unique"
	constraintUsernameUnique = "users_username_unique"

	MsgEmailTaken    = "email taken"
	MsgUsernameTaken = "username taken"
)

type repo struct {
	db  pgstore.DBTX
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a PostgreSQL-backed Repository.
func NewRepository(db pgstore.DBTX, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}
	return &repo{db: db, ids: config.IDGenerator}
}

func mapRepoError(op string, err error) error {
	if pgstore.IsNoRows(err) {
		return errx.E(op, errx.NotFound, err)
	}
	if constraint, ok := pgstore.UniqueViolation(err); ok {
		switch constraint {
		case constraintEmailUnique:
			return &errx.Error{Op: op, Kind: errx.Conflict, Msg: MsgEmailTaken, Err: err}
		case constraintUsernameUnique:
			return &errx.Error{Op: op, Kind: errx.Conflict, Msg: MsgUsernameTaken, Err: err}
		default:
			return errx.E(op, errx.Conflict, err)
		}
	}
	return errx.E(op, errx.Unavailable, err)
}

const userColumns = `id, username, email, password_hash, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (r *repo) Create(ctx context.Context, u User) (User, error) {
	const op = "user.repo.Create"

	if u.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return User{}, errx.E(op, errx.Unavailable, err)
		}
		u.ID = id
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		u.ID, u.Username, u.Email, u.PasswordHash,
	)
	created, err := scanUser(row)
	if err != nil {
		return User{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	const op = "user.repo.GetByID"

	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return User{}, mapRepoError(op, err)
	}
	return u, nil
}

func (r *repo) GetByEmail(ctx context.Context, email string) (User, error) {
	const op = "user.repo.GetByEmail"

	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return User{}, mapRepoError(op, err)
	}
	return u, nil
}

func (r *repo) EmailExists(ctx context.Context, email string) (bool, error) {
	const op = "user.repo.EmailExists"
	return r.exists(ctx, op, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *repo) UsernameExists(ctx context.Context, username string) (bool, error) {
	const op = "user.repo.UsernameExists"
	return r.exists(ctx, op, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *repo) exists(ctx context.Context, op, query, arg string) (bool, error) {
	var found bool
	if err := r.db.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, mapRepoError(op, err)
	}
	return found, nil
}

func (r *repo) InTx(ctx context.Context, fn func(Repository) error) error {
	const op = "user.repo.InTx"

	err := pgstore.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&repo{db: tx, ids: r.ids})
	})
	if err != nil {
		if errx.KindOf(err) == errx.Unknown {
			return errx.E(op, errx.Unavailable, err)
		}
		return err
	}
	return nil
}
