package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"vidtube/internal/auth"
	"vidtube/internal/constants"
	"vidtube/internal/db"
	"vidtube/internal/media"
	"vidtube/internal/models"
)

type AuthHandler struct {
	users      *db.UserRepository
	sessions   *auth.Sessions
	uploads    *uploadReader
	media      media.Uploader
	cookies    cookieConfig
	sanitizer  *textSanitizer
	bcryptCost int
}

func NewAuthHandler(
	users *db.UserRepository,
	sessions *auth.Sessions,
	uploads *uploadReader,
	uploader media.Uploader,
	cookies cookieConfig,
	sanitizer *textSanitizer,
	bcryptCost int,
) *AuthHandler {
	return &AuthHandler{
		users:      users,
		sessions:   sessions,
		uploads:    uploads,
		media:      uploader,
		cookies:    cookies,
		sanitizer:  sanitizer,
		bcryptCost: bcryptCost,
	}
}

type registerRequest struct {
	Username string `form:"username" validate:"required,username"`
	Email    string `form:"email" validate:"required,email,max=254"`
	FullName string `form:"fullName" validate:"required,max=100"`
	Password string `form:"password" validate:"required,min=8,max=72"`
}

// POST /api/v1/users/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	upload, cleanup, err := h.uploads.readRegister(w, r)
	defer cleanup()
	if err != nil {
		return err
	}

	req := registerRequest{
		Username: strings.ToLower(strings.TrimSpace(r.FormValue("username"))),
		Email:    strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		FullName: h.sanitizer.Clean(r.FormValue("fullName")),
		Password: r.FormValue("password"),
	}
	if err := validateRequest(&req); err != nil {
		return err
	}

	exists, err := h.users.ExistsByUsernameOrEmail(r.Context(), req.Username, req.Email)
	if err != nil {
		return internalError(err)
	}
	if exists {
		return conflict("User with username or email already exists")
	}

	if upload.Avatar == nil {
		return badRequest("Avatar file is required")
	}

	avatar, err := h.media.Upload(r.Context(), upload.Avatar.Path)
	if err != nil {
		return uploadError(err, "avatar")
	}
	hosted := []string{avatar.URL}

	coverImageURL := ""
	if upload.CoverImage != nil {
		coverImage, err := h.media.Upload(r.Context(), upload.CoverImage.Path)
		if err != nil {
			h.discardAssets(r.Context(), hosted...)
			return uploadError(err, "cover image")
		}
		coverImageURL = coverImage.URL
		hosted = append(hosted, coverImageURL)
	}

	passwordHash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		h.discardAssets(r.Context(), hosted...)
		return passwordError(err)
	}

	user, err := h.users.Create(r.Context(), db.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: passwordHash,
		Avatar:       avatar.URL,
		CoverImage:   coverImageURL,
	})
	if err != nil {
		h.discardAssets(r.Context(), hosted...)
		if errors.Is(err, db.ErrDuplicate) {
			return conflict("User with username or email already exists")
		}
		return &APIError{
			Status:  http.StatusInternalServerError,
			Message: "Something went wrong while registering the user",
			Err:     err,
		}
	}

	slog.Info("user registered", "user_id", user.ID)
	respond(w, http.StatusCreated, user, "User registered successfully")
	return nil
}

type loginRequest struct {
	Username string `json:"username" validate:"omitempty,max=32"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// POST /api/v1/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		return err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" && email == "" {
		return badRequest("username or email is required")
	}

	user, pair, err := h.sessions.Login(r.Context(), username, email, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		return notFound("User does not exist")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return unauthorized("Invalid user credentials")
	case err != nil:
		return internalError(err)
	}

	h.cookies.setAuthCookies(w, pair)
	respond(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
	return nil
}

// POST /api/v1/users/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	if err := h.sessions.Logout(r.Context(), userID); err != nil && !errors.Is(err, auth.ErrUserNotFound) {
		return internalError(err)
	}

	h.cookies.clearAuthCookies(w)
	respond(w, http.StatusOK, nil, "User logged out")
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// POST /api/v1/users/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) error {
	presented := ""
	if cookie, err := r.Cookie(constants.RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := decodeOptional(r.Body, &req); err != nil {
			return err
		}
		presented = req.RefreshToken
	}

	_, pair, err := h.sessions.Rotate(r.Context(), presented)
	if err != nil {
		return refreshError(err)
	}

	h.cookies.setAuthCookies(w, pair)
	respond(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed")
	return nil
}

func refreshError(err error) error {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return unauthorized("Unauthorized request")
	case errors.Is(err, auth.ErrTokenExpired):
		return unauthorized("Refresh token expired")
	case errors.Is(err, auth.ErrTokenReused):
		return unauthorized("Refresh token is expired or used")
	case errors.Is(err, auth.ErrInvalidToken):
		return unauthorized("Invalid refresh token")
	default:
		return internalError(fmt.Errorf("rotating refresh token: %w", err))
	}
}

// discardAssets removes hosted files orphaned by a failed request.
func (h *AuthHandler) discardAssets(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if err := h.media.Delete(ctx, url); err != nil {
			slog.Warn("error deleting orphaned media", "error", err, "url", url)
		}
	}
}
