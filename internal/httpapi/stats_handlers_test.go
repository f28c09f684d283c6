package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/numguess/internal/game"
	"example.com/numguess/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter int

func (c fakeCounter) ClientCount() int { return int(c) }

type fakeStats struct {
	byID     map[string]store.PlayerStats
	top      []store.PlayerStats
	err      error
	gotLimit int
}

func (f *fakeStats) Get(_ context.Context, clientID string) (store.PlayerStats, error) {
	if f.err != nil {
		return store.PlayerStats{}, f.err
	}
	st, ok := f.byID[clientID]
	if !ok {
		return store.PlayerStats{}, store.ErrStatsNotFound
	}
	return st, nil
}

func (f *fakeStats) Top(_ context.Context, limit int) ([]store.PlayerStats, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.top) {
		return f.top[:limit], nil
	}
	return f.top, nil
}

type fakeWinners struct {
	wins     []game.WinEvent
	gotLimit int
}

func (f *fakeWinners) Recent(_ context.Context, n int) ([]game.WinEvent, error) {
	f.gotLimit = n
	return f.wins, nil
}

func newRouter(h *StatsHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	r.Route("/api", h.Routes)
	return r
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestClientCount(t *testing.T) {
	r := newRouter(&StatsHandler{Clients: fakeCounter(3)})

	rec := doGet(t, r, "/api/clients/count")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]int{"count": 3}, decodeBody[map[string]int](t, rec))
}

func TestClientStats(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stats := &fakeStats{byID: map[string]store.PlayerStats{
		"alice": {ClientID: "alice", Wins: 2, TotalRefund: 30, BestScore: 140, LastWinAt: at, UpdatedAt: at},
	}}
	r := newRouter(&StatsHandler{Clients: fakeCounter(0), Stats: stats})

	rec := doGet(t, r, "/api/stats/alice")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[store.PlayerStats](t, rec)
	assert.Equal(t, 2, got.Wins)
	assert.Equal(t, 30, got.TotalRefund)
	assert.True(t, got.LastWinAt.Equal(at))

	rec = doGet(t, r, "/api/stats/bob")
	require.Equal(t, http.StatusNotFound, rec.Code)
	e := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "not_found", e.Code)
	assert.NotEmpty(t, e.RequestID)
}

func TestClientStats_StoreFailure(t *testing.T) {
	r := newRouter(&StatsHandler{Clients: fakeCounter(0), Stats: &fakeStats{err: errors.New("conn refused")}})

	rec := doGet(t, r, "/api/stats/alice")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeBody[ErrorResponse](t, rec).Code)
}

func TestTopStats_Limit(t *testing.T) {
	stats := &fakeStats{top: []store.PlayerStats{{ClientID: "a", Wins: 3}, {ClientID: "b", Wins: 1}}}
	r := newRouter(&StatsHandler{Clients: fakeCounter(0), Stats: stats})

	rec := doGet(t, r, "/api/stats/top")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultLimit, stats.gotLimit)
	body := decodeBody[struct {
		Players []store.PlayerStats `json:"players"`
	}](t, rec)
	require.Len(t, body.Players, 2)
	assert.Equal(t, "a", body.Players[0].ClientID)

	rec = doGet(t, r, "/api/stats/top?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stats.gotLimit)

	for _, bad := range []string{"0", "-1", "101", "ten"} {
		rec = doGet(t, r, "/api/stats/top?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}
}

func TestRecentWinners(t *testing.T) {
	winners := &fakeWinners{wins: []game.WinEvent{{Winner: "carol", Refund: 40, Generation: 2}}}
	r := newRouter(&StatsHandler{Clients: fakeCounter(0), Winners: winners})

	rec := doGet(t, r, "/api/winners?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, winners.gotLimit)
	body := decodeBody[struct {
		Winners []game.WinEvent `json:"winners"`
	}](t, rec)
	require.Len(t, body.Winners, 1)
	assert.Equal(t, "carol", body.Winners[0].Winner)
}

func TestRecentWinners_EmptyFeedIsArray(t *testing.T) {
	r := newRouter(&StatsHandler{Clients: fakeCounter(0), Winners: &fakeWinners{}})

	rec := doGet(t, r, "/api/winners")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"winners":[]}`, rec.Body.String())
}

func TestDisabledStoresAnswer503(t *testing.T) {
	r := newRouter(&StatsHandler{Clients: fakeCounter(0)})

	for _, path := range []string{"/api/stats/top", "/api/stats/alice", "/api/winners"} {
		rec := doGet(t, r, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, "disabled", decodeBody[ErrorResponse](t, rec).Code, path)
	}
}

func TestRouterErrorsAreJSON(t *testing.T) {
	r := newRouter(&StatsHandler{Clients: fakeCounter(0)})

	rec := doGet(t, r, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rec).Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clients/count", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", decodeBody[ErrorResponse](t, rec).Code)
}
