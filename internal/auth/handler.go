package auth

import (
	"log/slog"
	"net/http"

	"github.com/sundayezeilo/bookmarker/internal/errx"
	"github.com/sundayezeilo/bookmarker/internal/httpx"
	"github.com/sundayezeilo/bookmarker/internal/user"
)

// HTTPRegisterRequest represents the JSON request body for sign-up.
type HTTPRegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HTTPLoginRequest represents the JSON request body for login.
type HTTPLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type LoginResponse struct {
	User LoginUser `json:"user"`
}

type LoginUser struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Username     string `json:"username"`
	Email        string `json:"email"`
}

type MeResponse struct {
	User UserResponse `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// Handler provides HTTP handlers for the account endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: cfg.Service, logger: logger}
}

// Register handles POST requests that create an account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	req, err := httpx.DecodeJSON[HTTPRegisterRequest](r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "failed to decode request", err)
		return
	}

	u, err := h.service.Register(ctx, RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httpx.Fail(ctx, w, logger, "registration failed", err)
		return
	}

	logger.InfoContext(ctx, "user registered", "user_id", u.ID.String())

	httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message: "User successfully created",
		User:    toUserResponse(u),
	})
}

// Login handles POST requests that exchange credentials for tokens.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "auth.Handler.Login"
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	req, err := httpx.DecodeJSON[HTTPLoginRequest](r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "failed to decode request", err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.Fail(ctx, w, logger, "request validation failed",
			errx.M(op, errx.Invalid, "email and password are required"))
		return
	}

	session, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		httpx.Fail(ctx, w, logger, "login failed", err)
		return
	}

	logger.InfoContext(ctx, "user logged in", "user_id", session.User.ID.String())

	httpx.WriteJSON(w, http.StatusOK, LoginResponse{User: LoginUser{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		Username:     session.User.Username,
		Email:        session.User.Email,
	}})
}

// Me handles GET requests for the caller's own account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	token, err := BearerToken(r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "missing bearer token", err)
		return
	}

	u, err := h.service.WhoAmI(ctx, token)
	if err != nil {
		httpx.Fail(ctx, w, logger, "whoami failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MeResponse{User: toUserResponse(u)})
}

// Refresh handles GET requests that trade a refresh token for a new access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := httpx.RequestLogger(h.logger, r)

	token, err := BearerToken(r)
	if err != nil {
		httpx.Fail(ctx, w, logger, "missing bearer token", err)
		return
	}

	access, err := h.service.Refresh(ctx, token)
	if err != nil {
		httpx.Fail(ctx, w, logger, "token refresh failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, RefreshResponse{AccessToken: access})
}

func toUserResponse(u user.User) UserResponse {
	return UserResponse{Username: u.Username, Email: u.Email}
}
