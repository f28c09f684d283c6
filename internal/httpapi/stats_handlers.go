package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"example.com/numguess/internal/game"
	"example.com/numguess/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type StatsReader interface {
	Get(ctx context.Context, clientID string) (store.PlayerStats, error)
	Top(ctx context.Context, limit int) ([]store.PlayerStats, error)
}

type WinnersReader interface {
	Recent(ctx context.Context, n int) ([]game.WinEvent, error)
}

type ClientCounter interface {
	ClientCount() int
}

// StatsHandler serves read-only views of the game. Stats and Winners are
// optional; their routes answer 503 when the backing store is disabled.
type StatsHandler struct {
	Clients ClientCounter
	Stats   StatsReader
	Winners WinnersReader
	Log     *slog.Logger
}

func (h *StatsHandler) Routes(r chi.Router) {
	r.Get("/clients/count", h.ClientCount)
	r.Get("/stats/top", h.TopStats)
	r.Get("/stats/{clientID}", h.ClientStats)
	r.Get("/winners", h.RecentWinners)
}

func (h *StatsHandler) ClientCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": h.Clients.ClientCount()})
}

func (h *StatsHandler) ClientStats(w http.ResponseWriter, r *http.Request) {
	if h.Stats == nil {
		writeError(w, r, http.StatusServiceUnavailable, "disabled", "stats storage is not configured")
		return
	}

	clientID := chi.URLParam(r, "clientID")
	st, err := h.Stats.Get(r.Context(), clientID)
	if errors.Is(err, store.ErrStatsNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "no wins recorded for client")
		return
	}
	if err != nil {
		h.logError("load client stats", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StatsHandler) TopStats(w http.ResponseWriter, r *http.Request) {
	if h.Stats == nil {
		writeError(w, r, http.StatusServiceUnavailable, "disabled", "stats storage is not configured")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "bad_request", "limit must be an integer between 1 and 100")
		return
	}
	top, err := h.Stats.Top(r.Context(), limit)
	if err != nil {
		h.logError("load top stats", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": top})
}

func (h *StatsHandler) RecentWinners(w http.ResponseWriter, r *http.Request) {
	if h.Winners == nil {
		writeError(w, r, http.StatusServiceUnavailable, "disabled", "winners feed is not configured")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "bad_request", "limit must be an integer between 1 and 100")
		return
	}
	wins, err := h.Winners.Recent(r.Context(), limit)
	if err != nil {
		h.logError("load recent winners", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "failed to load winners")
		return
	}
	if wins == nil {
		wins = []game.WinEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"winners": wins})
}

func (h *StatsHandler) logError(msg string, err error) {
	if h.Log != nil {
		h.Log.Error(msg, "error", err)
	}
}

func parseLimit(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxLimit {
		return 0, false
	}
	return n, true
}
