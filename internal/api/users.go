package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vidtube/internal/auth"
	"vidtube/internal/constants"
	"vidtube/internal/db"
	"vidtube/internal/media"
	"vidtube/internal/models"
)

type UserHandler struct {
	users         *db.UserRepository
	subscriptions *db.SubscriptionRepository
	uploads       *uploadReader
	media         media.Uploader
	sanitizer     *textSanitizer
	bcryptCost    int
}

func NewUserHandler(
	users *db.UserRepository,
	subscriptions *db.SubscriptionRepository,
	uploads *uploadReader,
	uploader media.Uploader,
	sanitizer *textSanitizer,
	bcryptCost int,
) *UserHandler {
	return &UserHandler{
		users:         users,
		subscriptions: subscriptions,
		uploads:       uploads,
		media:         uploader,
		sanitizer:     sanitizer,
		bcryptCost:    bcryptCost,
	}
}

// GET /api/v1/users/current-user
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	user, err := h.currentUser(r)
	if err != nil {
		return err
	}

	respond(w, http.StatusOK, user, "Current user fetched successfully")
	return nil
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72,nefield=OldPassword"`
}

// POST /api/v1/users/change-password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	var req changePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		return err
	}

	user, err := h.currentUser(r)
	if err != nil {
		return err
	}

	if !auth.VerifyPassword(req.OldPassword, user.PasswordHash) {
		return badRequest("Invalid old password")
	}

	passwordHash, err := auth.HashPassword(req.NewPassword, h.bcryptCost)
	if err != nil {
		return passwordError(err)
	}

	if err := h.users.UpdatePassword(r.Context(), user.ID, passwordHash); err != nil {
		return userUpdateError(err)
	}

	respond(w, http.StatusOK, nil, "Password changed successfully")
	return nil
}

type updateAccountRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

// PATCH /api/v1/users/update-account
func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	var req updateAccountRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		return err
	}

	fullName := h.sanitizer.Clean(req.FullName)
	if fullName == "" {
		return badRequest("fullName is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := h.users.UpdateAccount(r.Context(), userID, fullName, email); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return conflict("Email is already in use")
		}
		return userUpdateError(err)
	}

	user, err := h.currentUser(r)
	if err != nil {
		return err
	}

	respond(w, http.StatusOK, user, "Account details updated successfully")
	return nil
}

// PATCH /api/v1/users/update-avatar
func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) error {
	return h.replaceImage(w, r, imageSlot{
		field: constants.FieldAvatar,
		label: "avatar",
		current: func(u *models.User) string {
			return u.Avatar
		},
		store: h.users.UpdateAvatar,
	})
}

// PATCH /api/v1/users/update-cover-image
func (h *UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) error {
	return h.replaceImage(w, r, imageSlot{
		field: constants.FieldCoverImage,
		label: "cover image",
		current: func(u *models.User) string {
			return u.CoverImage
		},
		store: h.users.UpdateCoverImage,
	})
}

// imageSlot describes one of the profile image columns.
type imageSlot struct {
	field   string
	label   string
	current func(*models.User) string
	store   func(ctx context.Context, userID, url string) error
}

// replaceImage uploads the new file, points the user at it and then removes
// the previous asset from the media host. Nothing is written before the
// upload has been staged and validated.
func (h *UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, slot imageSlot) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	upload, cleanup, err := h.uploads.readSingle(w, r, slot.field)
	defer cleanup()
	if err != nil {
		return err
	}

	user, err := h.currentUser(r)
	if err != nil {
		return err
	}
	previous := slot.current(user)

	asset, err := h.media.Upload(r.Context(), upload.File.Path)
	if err != nil {
		return uploadError(err, slot.label)
	}

	if err := slot.store(r.Context(), userID, asset.URL); err != nil {
		if delErr := h.media.Delete(r.Context(), asset.URL); delErr != nil {
			slog.Warn("error deleting unused media", "error", delErr, "url", asset.URL)
		}
		return userUpdateError(err)
	}

	if previous != "" && previous != asset.URL {
		if err := h.media.Delete(r.Context(), previous); err != nil {
			slog.Warn("error deleting replaced media", "error", err, "user_id", userID, "url", previous)
		}
	}

	updated, err := h.currentUser(r)
	if err != nil {
		return err
	}

	respond(w, http.StatusOK, updated, strings.ToUpper(slot.label[:1])+slot.label[1:]+" updated successfully")
	return nil
}

// GET /api/v1/users/c/{username}
func (h *UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) error {
	viewerID, err := requireUserID(r)
	if err != nil {
		return err
	}

	username := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "username")))
	if username == "" {
		return badRequest("username is missing")
	}

	profile, err := h.subscriptions.ChannelProfile(r.Context(), username, viewerID)
	if errors.Is(err, db.ErrNotFound) {
		return notFound("Channel does not exist")
	}
	if err != nil {
		return internalError(err)
	}

	respond(w, http.StatusOK, profile, "User channel fetched successfully")
	return nil
}

func (h *UserHandler) currentUser(r *http.Request) (*models.User, error) {
	userID, err := requireUserID(r)
	if err != nil {
		return nil, err
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, internalError(err)
	}
	return user, nil
}

func userUpdateError(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return notFound("User not found")
	}
	return internalError(err)
}

func passwordError(err error) error {
	if errors.Is(err, auth.ErrInvalidPassword) {
		return badRequest("password must be at most 72 bytes")
	}
	return internalError(err)
}
