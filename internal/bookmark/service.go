// Package bookmark stores per-user bookmarks, derives their short codes and
// resolves short codes back to target URLs.
package bookmark

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/uuid"

	"github.com/sundayezeilo/bookmarker/internal/errx"
	"github.com/sundayezeilo/bookmarker/internal/paging"
	"github.com/sundayezeilo/bookmarker/sluggen"
)

const (
	MaxURLLength      = 2048
	DefaultMaxPerPage = 100
	// MaxShortURLLength is the longest code sluggen can produce for an int64 id.
	MaxShortURLLength = 11

	MsgInvalidURL = "Enter a valid URL"
)

// Input carries the writable bookmark fields.
type Input struct {
	URL  string
	Body string
}

// Service defines the bookmark operations. Every method except Resolve is
// scoped to the owning user.
type Service interface {
	Create(ctx context.Context, owner uuid.UUID, in Input) (Bookmark, error)
	List(ctx context.Context, owner uuid.UUID, p paging.Params) (Page, error)
	Get(ctx context.Context, owner uuid.UUID, id int64) (Bookmark, error)
	Update(ctx context.Context, owner uuid.UUID, id int64, in Input) (Bookmark, error)
	Delete(ctx context.Context, owner uuid.UUID, id int64) error
	Resolve(ctx context.Context, shortURL string) (string, error)
	Stats(ctx context.Context, owner uuid.UUID) ([]Stat, error)
}

type service struct {
	repo       Repository
	encoder    sluggen.Encoder
	maxPerPage int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Encoder    sluggen.Encoder
	MaxPerPage int // default: DefaultMaxPerPage
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	enc := config.Encoder
	if enc == nil {
		enc = sluggen.NewBase62(sluggen.DefaultMinLength)
	}

	maxPerPage := config.MaxPerPage
	if maxPerPage <= 0 {
		maxPerPage = DefaultMaxPerPage
	}

	return &service{
		repo:       repo,
		encoder:    enc,
		maxPerPage: maxPerPage,
	}
}

func (s *service) Create(ctx context.Context, owner uuid.UUID, in Input) (Bookmark, error) {
	const op = "bookmark.service.Create"

	if err := validateURL(in.URL); err != nil {
		return Bookmark{}, &errx.Error{Op: op, Kind: errx.Invalid, Msg: MsgInvalidURL, Err: err}
	}

	var created Bookmark
	err := s.repo.InTx(ctx, func(repo Repository) error {
		id, err := repo.NextID(ctx)
		if err != nil {
			return err
		}

		code, err := s.encoder.Encode(id)
		if err != nil {
			return errx.E(op, errx.Internal, err)
		}

		created, err = repo.Create(ctx, Bookmark{
			ID:       id,
			OwnerID:  owner,
			URL:      in.URL,
			ShortURL: code,
			Body:     in.Body,
		})
		return err
	})
	if err != nil {
		return Bookmark{}, errx.E(op, errx.KindOf(err), err)
	}
	return created, nil
}

func (s *service) List(ctx context.Context, owner uuid.UUID, p paging.Params) (Page, error) {
	const op = "bookmark.service.List"

	if err := p.Validate(s.maxPerPage); err != nil {
		return Page{}, errx.E(op, errx.Invalid, err)
	}

	var page Page
	err := s.repo.InTx(ctx, func(repo Repository) error {
		total, err := repo.CountByOwner(ctx, owner)
		if err != nil {
			return err
		}
		if p.PastEnd(total) {
			page = Page{Items: []Bookmark{}, Meta: paging.NewMeta(p, total)}
			return nil
		}

		items, err := repo.ListByOwner(ctx, owner, p.PerPage, p.Offset())
		if err != nil {
			return err
		}

		page = Page{Items: items, Meta: paging.NewMeta(p, total)}
		return nil
	})
	if err != nil {
		return Page{}, errx.E(op, errx.KindOf(err), err)
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, owner uuid.UUID, id int64) (Bookmark, error) {
	const op = "bookmark.service.Get"

	var b Bookmark
	err := s.repo.InTx(ctx, func(repo Repository) (err error) {
		b, err = repo.GetByOwner(ctx, owner, id)
		return err
	})
	if err != nil {
		return Bookmark{}, errx.E(op, errx.KindOf(err), err)
	}
	return b, nil
}

func (s *service) Update(ctx context.Context, owner uuid.UUID, id int64, in Input) (Bookmark, error) {
	const op = "bookmark.service.Update"

	if err := validateURL(in.URL); err != nil {
		return Bookmark{}, &errx.Error{Op: op, Kind: errx.Invalid, Msg: MsgInvalidURL, Err: err}
	}

	var b Bookmark
	err := s.repo.InTx(ctx, func(repo Repository) (err error) {
		b, err = repo.Update(ctx, owner, id, in.URL, in.Body)
		return err
	})
	if err != nil {
		return Bookmark{}, errx.E(op, errx.KindOf(err), err)
	}
	return b, nil
}

func (s *service) Delete(ctx context.Context, owner uuid.UUID, id int64) error {
	const op = "bookmark.service.Delete"

	err := s.repo.InTx(ctx, func(repo Repository) error {
		return repo.Delete(ctx, owner, id)
	})
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

func (s *service) Resolve(ctx context.Context, shortURL string) (string, error) {
	const op = "bookmark.service.Resolve"

	// Anything sluggen could not have produced is unknown without a lookup.
	if len(shortURL) > MaxShortURLLength {
		return "", errx.M(op, errx.NotFound, MsgNotFound)
	}
	if _, err := s.encoder.Decode(shortURL); err != nil {
		return "", &errx.Error{Op: op, Kind: errx.NotFound, Msg: MsgNotFound, Err: err}
	}

	var target string
	err := s.repo.InTx(ctx, func(repo Repository) (err error) {
		target, err = repo.ResolveAndCount(ctx, shortURL)
		return err
	})
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	return target, nil
}

func (s *service) Stats(ctx context.Context, owner uuid.UUID) ([]Stat, error) {
	const op = "bookmark.service.Stats"

	var stats []Stat
	err := s.repo.InTx(ctx, func(repo Repository) (err error) {
		stats, err = repo.StatsByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return stats, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" || parsedURL.Hostname() == "" {
		return errors.New("url must include host")
	}
	return nil
}
