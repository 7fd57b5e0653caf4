package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vidtube/internal/db"
)

type SubscriptionHandler struct {
	users         *db.UserRepository
	subscriptions *db.SubscriptionRepository
}

func NewSubscriptionHandler(users *db.UserRepository, subscriptions *db.SubscriptionRepository) *SubscriptionHandler {
	return &SubscriptionHandler{users: users, subscriptions: subscriptions}
}

// POST /api/v1/subscriptions/c/{channelID}
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	channelID := strings.TrimSpace(chi.URLParam(r, "channelID"))
	if channelID == userID {
		return badRequest("You cannot subscribe to your own channel")
	}

	sub, err := h.subscriptions.Create(r.Context(), userID, channelID)
	switch {
	case errors.Is(err, db.ErrDuplicate):
		return conflict("Already subscribed to this channel")
	case errors.Is(err, db.ErrNotFound):
		return notFound("Channel does not exist")
	case err != nil:
		return internalError(err)
	}

	respond(w, http.StatusCreated, sub, "Subscribed successfully")
	return nil
}

// DELETE /api/v1/subscriptions/c/{channelID}
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUserID(r)
	if err != nil {
		return err
	}

	channelID := strings.TrimSpace(chi.URLParam(r, "channelID"))
	err = h.subscriptions.Delete(r.Context(), userID, channelID)
	if errors.Is(err, db.ErrNotFound) {
		return notFound("Subscription not found")
	}
	if err != nil {
		return internalError(err)
	}

	respond(w, http.StatusOK, nil, "Unsubscribed successfully")
	return nil
}

// GET /api/v1/subscriptions/c/{channelID}
func (h *SubscriptionHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) error {
	channelID := strings.TrimSpace(chi.URLParam(r, "channelID"))
	if err := h.requireUser(r, channelID, "Channel does not exist"); err != nil {
		return err
	}

	subscribers, err := h.subscriptions.ListSubscribers(r.Context(), channelID)
	if err != nil {
		return internalError(err)
	}

	respond(w, http.StatusOK, subscribers, "Subscribers fetched successfully")
	return nil
}

// GET /api/v1/subscriptions/u/{subscriberID}
func (h *SubscriptionHandler) ListSubscribedChannels(w http.ResponseWriter, r *http.Request) error {
	subscriberID := strings.TrimSpace(chi.URLParam(r, "subscriberID"))
	if err := h.requireUser(r, subscriberID, "User not found"); err != nil {
		return err
	}

	channels, err := h.subscriptions.ListSubscribedChannels(r.Context(), subscriberID)
	if err != nil {
		return internalError(err)
	}

	respond(w, http.StatusOK, channels, "Subscribed channels fetched successfully")
	return nil
}

func (h *SubscriptionHandler) requireUser(r *http.Request, id, missing string) error {
	if id == "" {
		return notFound(missing)
	}

	_, err := h.users.FindByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return notFound(missing)
	}
	if err != nil {
		return internalError(err)
	}
	return nil
}
