package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/cx-tal-miterani/flight-surety/internal/repository"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

// NotificationArchive reads journaled notifications.
type NotificationArchive interface {
	ListNotifications(ctx context.Context, since uint64, limit int) ([]repository.StoredNotification, error)
	GetNotification(ctx context.Context, id uuid.UUID) (*repository.StoredNotification, error)
}

// JournalHandler serves the Postgres notification journal. Unlike
// GetNotifications it is not bounded by the in-memory notification window.
type JournalHandler struct {
	archive NotificationArchive
}

func NewJournalHandler(archive NotificationArchive) *JournalHandler {
	return &JournalHandler{archive: archive}
}

// ListJournal handles GET /api/journal?since=<seq>&limit=<n>
func (h *JournalHandler) ListJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since uint64
	if v := q.Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be a sequence number")
			return
		}
		since = n
	}
	limit := defaultJournalLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = min(n, maxJournalLimit)
	}

	notes, err := h.archive.ListNotifications(r.Context(), since, limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to list journal")
		respondError(w, http.StatusInternalServerError, "Failed to read journal")
		return
	}
	if notes == nil {
		notes = []repository.StoredNotification{}
	}
	respondJSON(w, http.StatusOK, notes)
}

// GetJournalEntry handles GET /api/journal/{id}
func (h *JournalHandler) GetJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}

	n, err := h.archive.GetNotification(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Notification not found")
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read journal entry")
		respondError(w, http.StatusInternalServerError, "Failed to read journal")
		return
	}
	respondJSON(w, http.StatusOK, n)
}
