// Package auth registers users, checks credentials and issues the bearer
// tokens that guard the bookmark endpoints.
package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sundayezeilo/bookmarker/internal/errx"
	"github.com/sundayezeilo/bookmarker/internal/user"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72

	msgUsernameShort    = "username too short"
	msgUsernameAlnum    = "username must be alphanumeric with no spaces"
	msgPasswordShort    = "password too short"
	msgPasswordLong     = "password too long"
	msgEmailInvalid     = "email invalid"
	msgWrongCredentials = "wrong credentials"
	msgUserGone         = "user no longer exists"
)

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Session is the result of a successful login.
type Session struct {
	User         user.User
	AccessToken  string
	RefreshToken string
}

// Tokens signs and verifies bearer tokens. *TokenIssuer implements it.
type Tokens interface {
	Issue(userID uuid.UUID, typ TokenType) (string, error)
	Parse(token string, want TokenType) (uuid.UUID, error)
}

// Service defines the account operations.
type Service interface {
	Register(ctx context.Context, in RegisterInput) (user.User, error)
	Login(ctx context.Context, email, password string) (Session, error)
	WhoAmI(ctx context.Context, accessToken string) (user.User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	// Authenticate resolves an access token to the user id it was issued for.
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
}

type service struct {
	users    user.Repository
	tokens   Tokens
	validate *validator.Validate
	cost     int
	// dummyHash is compared against when the email is unknown so a miss
	// costs the same as a wrong password.
	dummyHash []byte
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	BcryptCost int // default: bcrypt.DefaultCost
}

// NewService creates a new service instance.
func NewService(users user.Repository, tokens Tokens, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	cost := config.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		panic("auth: generate dummy hash: " + err.Error())
	}

	return &service{
		users:     users,
		tokens:    tokens,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cost:      cost,
		dummyHash: dummy,
	}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	const op = "auth.service.Register"

	if err := s.validateRegistration(in); err != nil {
		return user.User{}, errx.E(op, errx.Invalid, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return user.User{}, errx.E(op, errx.Internal, err)
	}

	var created user.User
	err = s.users.InTx(ctx, func(repo user.Repository) error {
		taken, err := repo.EmailExists(ctx, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return errx.M(op, errx.Conflict, user.MsgEmailTaken)
		}

		taken, err = repo.UsernameExists(ctx, in.Username)
		if err != nil {
			return err
		}
		if taken {
			return errx.M(op, errx.Conflict, user.MsgUsernameTaken)
		}

		created, err = repo.Create(ctx, user.User{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: string(hash),
		})
		return err
	})
	if err != nil {
		return user.User{}, errx.E(op, errx.KindOf(err), err)
	}
	return created, nil
}

// validateRegistration checks fields in a fixed order and reports the first
// failure only.
func (s *service) validateRegistration(in RegisterInput) error {
	const op = "auth.service.validateRegistration"

	checks := []struct {
		value string
		tag   string
		msg   string
	}{
		{in.Username, "min=" + strconv.Itoa(MinUsernameLength), msgUsernameShort},
		{in.Username, "alphanumunicode", msgUsernameAlnum},
		{in.Password, "min=" + strconv.Itoa(MinPasswordLength), msgPasswordShort},
	}
	for _, c := range checks {
		if s.validate.Var(c.value, c.tag) != nil {
			return errx.M(op, errx.Invalid, c.msg)
		}
	}

	if len(in.Password) > MaxPasswordBytes {
		return errx.M(op, errx.Invalid, msgPasswordLong)
	}
	if s.validate.Var(in.Email, "email") != nil {
		return errx.M(op, errx.Invalid, msgEmailInvalid)
	}
	return nil
}

func (s *service) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "auth.service.Login"

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errx.KindOf(err) != errx.NotFound {
			return Session{}, errx.E(op, errx.KindOf(err), err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return Session{}, errx.M(op, errx.Unauthorized, msgWrongCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Session{}, errx.M(op, errx.Unauthorized, msgWrongCredentials)
		}
		return Session{}, errx.E(op, errx.Internal, err)
	}

	access, err := s.tokens.Issue(u.ID, AccessToken)
	if err != nil {
		return Session{}, errx.E(op, errx.KindOf(err), err)
	}
	refresh, err := s.tokens.Issue(u.ID, RefreshToken)
	if err != nil {
		return Session{}, errx.E(op, errx.KindOf(err), err)
	}

	return Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) WhoAmI(ctx context.Context, accessToken string) (user.User, error) {
	const op = "auth.service.WhoAmI"

	id, err := s.tokens.Parse(accessToken, AccessToken)
	if err != nil {
		return user.User{}, errx.E(op, errx.KindOf(err), err)
	}
	return s.lookup(ctx, op, id)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "auth.service.Refresh"

	id, err := s.tokens.Parse(refreshToken, RefreshToken)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	if _, err := s.lookup(ctx, op, id); err != nil {
		return "", err
	}

	access, err := s.tokens.Issue(id, AccessToken)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	return access, nil
}

func (s *service) Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error) {
	const op = "auth.service.Authenticate"

	id, err := s.tokens.Parse(accessToken, AccessToken)
	if err != nil {
		return uuid.Nil, errx.E(op, errx.KindOf(err), err)
	}
	return id, nil
}

// lookup loads the token's user. A deleted account is an auth failure.
func (s *service) lookup(ctx context.Context, op string, id uuid.UUID) (user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return user.User{}, &errx.Error{Op: op, Kind: errx.Unauthorized, Msg: msgUserGone, Err: err}
		}
		return user.User{}, errx.E(op, errx.KindOf(err), err)
	}
	return u, nil
}
