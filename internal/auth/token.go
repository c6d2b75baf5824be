package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sundayezeilo/bookmarker/internal/config"
	"github.com/sundayezeilo/bookmarker/internal/errx"
)

// TokenType separates short-lived access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

const (
	msgInvalidToken  = "token is invalid or expired"
	msgAccessOnly    = "only access tokens are allowed"
	msgRefreshOnly   = "only refresh tokens are allowed"
	msgMissingHeader = "missing authorization header"
)

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer builds an issuer from auth config.
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// Issue signs a token of the given type for userID.
func (i *TokenIssuer) Issue(userID uuid.UUID, typ TokenType) (string, error) {
	const op = "auth.TokenIssuer.Issue"

	ttl := i.accessTTL
	if typ == RefreshToken {
		ttl = i.refreshTTL
	}

	now := i.now()
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errx.E(op, errx.Internal, err)
	}
	return signed, nil
}

// Parse verifies token and returns its subject. The token must be of type want.
func (i *TokenIssuer) Parse(token string, want TokenType) (uuid.UUID, error) {
	const op = "auth.TokenIssuer.Parse"

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return uuid.Nil, &errx.Error{Op: op, Kind: errx.Unauthorized, Msg: msgInvalidToken, Err: err}
	}

	if claims.Type != want {
		msg := msgAccessOnly
		if want == RefreshToken {
			msg = msgRefreshOnly
		}
		return uuid.Nil, errx.M(op, errx.Unauthorized, msg)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, &errx.Error{Op: op, Kind: errx.Unauthorized, Msg: msgInvalidToken, Err: errors.Join(errors.New("bad subject"), err)}
	}
	return id, nil
}
