// Package api serves the reward store over HTTP.
//
// It is the remote side of the ledger client: the earn_coins and add_xp
// RPCs, profile reads and writes, and the Coin pool. Every grant route is
// idempotent on its key, and callers may only act on their own profile.
package api

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akinrinmade/jara-daily/internal/identity"
	"github.com/akinrinmade/jara-daily/internal/metrics"
	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/store"
)

// IdempotencyHeader may carry the grant key instead of the body.
const IdempotencyHeader = "Idempotency-Key"

// Handler holds all API handler state.
type Handler struct {
	store            *store.Store
	tokens           *identity.Manager
	logger           *slog.Logger
	metrics          *metrics.Metrics
	leaderboardLimit int
	rewards          map[reward.ActionKind]reward.Amount
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLeaderboardLimit sets the default leaderboard size.
func WithLeaderboardLimit(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.leaderboardLimit = n
		}
	}
}

// WithRewardTable sets the per-action ceiling for grant amounts. Kinds
// missing from t keep the default.
func WithRewardTable(t map[reward.ActionKind]reward.Amount) HandlerOption {
	return func(h *Handler) {
		for k, v := range t {
			h.rewards[k] = v
		}
	}
}

// NewHandler creates a new API handler.
func NewHandler(s *store.Store, tokens *identity.Manager, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:            s,
		tokens:           tokens,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		leaderboardLimit: 10,
		rewards:          maps.Clone(reward.DefaultTable),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/coin_pool", h.GetCoinPool)
	r.Get("/leaderboard", h.GetLeaderboard)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)

		r.Post("/rpc/earn_coins", h.EarnCoins)
		r.Post("/rpc/add_xp", h.AddXP)

		r.Route("/profiles/{id}", func(r chi.Router) {
			r.Use(h.ownerOnly)
			r.Get("/", h.GetProfile)
			r.Patch("/", h.PatchProfile)
			r.Post("/posts_read", h.IncrementPostsRead)
		})
	})
}

// NewRouter builds the full server router. When reg is non-nil its
// metrics are served on /metrics.
func NewRouter(h *Handler, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.requestLog)
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	h.Routes(r)
	return r
}

type ctxKey string

const identityKey ctxKey = "jara.identity"

func withIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller resolved by the auth middleware.
func IdentityFromContext(ctx context.Context) identity.Identity {
	id, _ := ctx.Value(identityKey).(identity.Identity)
	return id
}

// authMiddleware resolves the bearer token and rejects guests. The
// caller's profile is created on first sight.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.tokens.Resolve(identity.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			Error(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
			return
		}
		if id.IsGuest() {
			Error(w, http.StatusUnauthorized, CodeUnauthorized, "a bearer token is required")
			return
		}
		if err := h.store.EnsureProfile(r.Context(), id.UserID, id.Username); err != nil {
			h.logger.Error("ensure profile failed", "user", id.UserID, "error", err)
			storeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// ownerOnly restricts /profiles/{id} to the caller's own profile.
func (h *Handler) ownerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != IdentityFromContext(r.Context()).UserID {
			Error(w, http.StatusForbidden, CodeForbidden, "profile belongs to another user")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, CodeInternal, "database unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetCoinPool handles GET /coin_pool.
func (h *Handler) GetCoinPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.store.CoinPool(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	h.metrics.PoolRemaining(pool.Remaining)
	JSON(w, http.StatusOK, pool)
}

// GetLeaderboard handles GET /leaderboard?limit=N.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.leaderboardLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			Error(w, http.StatusBadRequest, CodeBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	entries, err := h.store.Leaderboard(r.Context(), limit)
	if err != nil {
		storeError(w, err)
		return
	}
	JSON(w, http.StatusOK, entries)
}
