package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sundayezeilo/bookmarker/internal/errx"
	"github.com/sundayezeilo/bookmarker/internal/httpx"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}

// UserIDFrom returns the user id placed in ctx by RequireUser.
func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	const op = "auth.BearerToken"

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errx.M(op, errx.Unauthorized, msgMissingHeader)
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errx.M(op, errx.Unauthorized, "authorization header must be \"Bearer <token>\"")
	}
	return token, nil
}

// Authenticator resolves access tokens. Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
}

// RequireUser rejects requests without a valid access token and stores the
// caller's id in the request context for downstream handlers.
func RequireUser(a Authenticator, logger *slog.Logger) httpx.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := BearerToken(r)
			if err == nil {
				var id uuid.UUID
				if id, err = a.Authenticate(ctx, token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithUserID(ctx, id)))
					return
				}
			}

			logger.WarnContext(ctx, "request not authenticated",
				"request_id", httpx.GetRequestID(ctx),
				"path", r.URL.Path,
				"error", err.Error(),
			)
			httpx.WriteErr(w, err)
		})
	}
}
