package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"vidtube/internal/media"
)

// MediaHandler serves objects written by the local media store.
type MediaHandler struct {
	store *media.LocalStore
}

func NewMediaHandler(store *media.LocalStore) *MediaHandler {
	return &MediaHandler{store: store}
}

// GET /media/*
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) error {
	key := strings.TrimSpace(chi.URLParam(r, "*"))
	if key == "" {
		return notFound("Media not found")
	}

	file, err := h.store.Open(key)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, media.ErrInvalidPath) {
		return notFound("Media not found")
	}
	if err != nil {
		return internalError(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return internalError(err)
	}
	if info.IsDir() {
		return notFound("Media not found")
	}

	// Keys are random per upload, so content never changes under a URL.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Disposition", "inline")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	return nil
}
