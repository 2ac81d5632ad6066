// Package handler exposes the HTTP surface: Battle.net sign-in, the OAuth
// callback that registers players and lazily fills their caches, and the
// read-only leaderboard query endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/johncmanuel/isabot/internal/bnet"
	"github.com/johncmanuel/isabot/internal/domain"
	"github.com/johncmanuel/isabot/internal/store"
)

const (
	sessionCookie = "isabot_session"
	stateCookie   = "isabot_oauth_state"
)

// PlayerService is the slice of the player sync the handler drives.
type PlayerService interface {
	Register(ctx context.Context, playerID, battleTag, accessToken string, expiresAt time.Time) (domain.PlayerRecord, error)
	RefreshCharacters(ctx context.Context, playerID string, ts oauth2.TokenSource, now time.Time) ([]domain.CharacterRecord, error)
	RefreshMounts(ctx context.Context, playerID string, ts oauth2.TokenSource) (domain.MountStat, error)
	Player(ctx context.Context, playerID string) (domain.PlayerRecord, error)
}

// Boards serves leaderboard retrieval.
type Boards interface {
	Entries(ctx context.Context) ([]domain.LeaderboardEntry, error)
	LatestEntry(ctx context.Context) (domain.LeaderboardEntry, error)
}

// IdentityClient resolves the authenticated player's identity.
type IdentityClient interface {
	UserInfo(ctx context.Context, ts oauth2.TokenSource) (*bnet.UserInfo, error)
}

// Handler provides the HTTP handlers.
type Handler struct {
	players    PlayerService
	boards     Boards
	identity   IdentityClient
	oauth      *oauth2.Config
	store      store.RecordStore
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(
	players PlayerService,
	boards Boards,
	identity IdentityClient,
	oauth *oauth2.Config,
	s store.RecordStore,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		players:    players,
		boards:     boards,
		identity:   identity,
		oauth:      oauth,
		store:      s,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.Home)
	r.Get("/health", h.HealthCheck)

	r.Get("/signin", h.SignIn)
	r.Get("/callback", h.Callback)
	r.Get("/signout", h.SignOut)

	r.Get("/lb", h.GetEntries)
	r.Get("/lb/latest", h.GetLatestEntry)

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{Success: false, Error: err.Error()})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// Home greets the visitor, with their battle tag if a session is active.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionFromRequest(r)
	if err != nil {
		fmt.Fprintln(w, "hi, welcome to isabot!")
		return
	}

	record, err := h.players.Player(r.Context(), session.PlayerID)
	if err != nil {
		fmt.Fprintln(w, "hi, welcome to isabot!")
		return
	}
	fmt.Fprintf(w, "welcome back, %s! you're signed in.\n", record.BattleTag)
}

// SignIn redirects to the Battle.net authorization endpoint with a fresh
// state token bound to a cookie.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the authorization-code exchange, registers the player
// (first write wins), and lazily fills their character and mount caches.
// Cache-fill failures are logged, not fatal: a later refresh completes
// whatever this request could not.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.writeError(w, http.StatusBadRequest, errors.New("oauth state mismatch"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, errors.New("missing authorization code"))
		return
	}

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("authorization code exchange failed", "error", err)
		h.writeError(w, http.StatusBadGateway, domain.ErrUpstreamUnavailable)
		return
	}

	ts := bnet.StaticTokenSource(token.AccessToken)
	info, err := h.identity.UserInfo(ctx, ts)
	if err != nil {
		h.logger.Error("failed to fetch user info", "error", err)
		h.writeError(w, http.StatusBadGateway, domain.ErrUpstreamUnavailable)
		return
	}

	record, err := h.players.Register(ctx, info.Sub, info.BattleTag, token.AccessToken, token.Expiry)
	if err != nil {
		h.logger.Error("failed to register player", "player_id", info.Sub, "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.New("registration failed"))
		return
	}

	now := time.Now()
	if _, err := h.players.RefreshCharacters(ctx, record.ID, ts, now); err != nil {
		h.logger.Error("character refresh failed on login", "player_id", record.ID, "error", err)
	}
	if _, err := h.players.RefreshMounts(ctx, record.ID, ts); err != nil {
		h.logger.Error("mount refresh failed on login", "player_id", record.ID, "error", err)
	}

	if err := h.createSession(ctx, w, r, record.ID, now); err != nil {
		h.logger.Error("failed to create session", "player_id", record.ID, "error", err)
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// SignOut expires the caller's session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if session, err := h.sessionFromRequest(r); err == nil {
		session.ExpiresAt = 0
		if value, err := json.Marshal(session); err == nil {
			if err := h.store.Set(r.Context(), store.SessionKey(session.ID), value); err != nil {
				h.logger.Error("failed to expire session", "session_id", session.ID, "error", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// GetEntries returns every leaderboard entry in ascending creation order.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.boards.Entries(r.Context())
	if err != nil {
		h.logger.Error("failed to list entries", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}
	h.writeSuccess(w, entries)
}

// entryResponse pairs an entry with its derived ranking.
type entryResponse struct {
	Entry    domain.LeaderboardEntry `json:"entry"`
	Rankings []domain.RankedRow      `json:"rankings"`
}

// GetLatestEntry returns the most recently created entry with its ranking.
func (h *Handler) GetLatestEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.boards.LatestEntry(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get latest entry", "error", err)
		h.writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}
	h.writeSuccess(w, entryResponse{Entry: entry, Rankings: entry.Rank()})
}

func (h *Handler) createSession(ctx context.Context, w http.ResponseWriter, r *http.Request, playerID string, now time.Time) error {
	session := domain.Session{
		SchemaVersion: domain.SchemaVersion,
		ID:            uuid.NewString(),
		PlayerID:      playerID,
		ExpiresAt:     now.Add(h.sessionTTL).Unix(),
	}

	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := h.store.Set(ctx, store.SessionKey(session.ID), value); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) sessionFromRequest(r *http.Request) (domain.Session, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	value, err := h.store.Get(r.Context(), store.SessionKey(cookie.Value))
	if err != nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	var session domain.Session
	if err := json.Unmarshal(value, &session); err != nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if session.ExpiresAt <= time.Now().Unix() {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}
