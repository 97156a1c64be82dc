// Package http monta o roteador do portal e traduz as operações de cadastro
// e financeiro para a API JSON.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engrodrigo-prog/djt-quest/internal/config"
	"github.com/engrodrigo-prog/djt-quest/internal/finance"
	httpmiddleware "github.com/engrodrigo-prog/djt-quest/internal/http/middleware"
	"github.com/engrodrigo-prog/djt-quest/internal/registration"
	"github.com/engrodrigo-prog/djt-quest/internal/service"
)

const httpReadyTimeout = 2 * time.Second

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	authService   *service.AuthService
	registrations *registration.Service
	finance       *finance.Service
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, authService *service.AuthService, registrations *registration.Service, financeService *finance.Service) http.Handler {
	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		authService:   authService,
		registrations: registrations,
		finance:       financeService,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Post("/auth/login", h.Login)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)

		private.Route("/studio/registrations", func(reg chi.Router) {
			reg.Get("/", h.ListPendingRegistrations)
			reg.Post("/{id}/approve", h.ApproveRegistration)
			reg.Post("/{id}/reject", h.RejectRegistration)
		})

		private.Route("/finance/requests", func(fin chi.Router) {
			fin.Post("/", h.CreateFinanceRequest)
			fin.Post("/batch", h.CreateFinanceRequestBatch)
			fin.Get("/", h.ListFinanceRequests)
			fin.Get("/summary", h.FinanceSummary)
			fin.Get("/{id}", h.GetFinanceRequest)
			fin.Post("/{id}/cancel", h.CancelFinanceRequest)
			fin.Patch("/{id}/status", h.UpdateFinanceRequestStatus)
		})
	})

	return r
}

// Health responde liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready responde readiness checando o banco.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), httpReadyTimeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "DEPENDENCY", "banco indisponível", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
