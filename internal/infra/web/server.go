package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"signal-billing/internal/usecase"
)

// Server is the HTTP surface of the billing core: the SePay webhook that
// feeds the reconciler, and a JWT-guarded ops API over wallets, intents,
// orders and auto-renew subscriptions.
type Server struct {
	wallets    usecase.WalletUseCase
	intents    usecase.IntentUseCase
	orders     usecase.OrderUseCase
	renews     usecase.AutoRenewUseCase
	reconciler usecase.ReconcileUseCase

	auth       *AuthManager
	opsKey     string
	webhookKey string

	httpServer *http.Server
	log        *zerolog.Logger
}

func NewServer(
	wallets usecase.WalletUseCase,
	intents usecase.IntentUseCase,
	orders usecase.OrderUseCase,
	renews usecase.AutoRenewUseCase,
	reconciler usecase.ReconcileUseCase,
	auth *AuthManager,
	opsKey string,
	webhookKey string,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		wallets:    wallets,
		intents:    intents,
		orders:     orders,
		renews:     renews,
		reconciler: reconciler,
		auth:       auth,
		opsKey:     opsKey,
		webhookKey: webhookKey,
		log:        &srvLog,
	}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())

	// Webhook auth is the provider's static Apikey header, not a session.
	r.Post("/hooks/sepay", s.sepayWebhookHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.loginHandler())
		r.Post("/auth/logout", s.logoutHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.requireOps)

			r.Get("/wallets/{ownerID}", walletGetHandler(s.wallets))
			r.Get("/wallets/{ownerID}/ledger", walletLedgerHandler(s.wallets))

			r.Post("/topups", topupCreateHandler(s.intents))
			r.Get("/intents", intentListHandler(s.intents))
			r.Get("/intents/{id}", intentGetHandler(s.intents))
			r.Post("/intents/{id}/attempts", attemptCreateHandler(s.intents))
			r.Post("/intents/{id}/expire", intentExpireHandler(s.intents))

			r.Post("/orders", orderCreateHandler(s.orders))
			r.Get("/orders/{id}", orderGetHandler(s.orders))
			r.Post("/orders/{id}/pay", orderPayHandler(s.orders))
			r.Post("/orders/{id}/topup", orderTopupHandler(s.orders))

			r.Get("/subscriptions", subscriptionListHandler(s.renews))
			r.Get("/subscriptions/{id}/attempts", subscriptionAttemptsHandler(s.renews))
			r.Post("/subscriptions/{id}/pause", subscriptionTransitionHandler(s.renews.Pause))
			r.Post("/subscriptions/{id}/resume", subscriptionTransitionHandler(s.renews.Resume))
			r.Post("/subscriptions/{id}/cancel", subscriptionTransitionHandler(s.renews.Cancel))
		})
	})

	return r
}

func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("HTTP server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requireOps guards the ops API with a minted session token.
func (s *Server) requireOps(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			s.log.Error().Msg("auth manager is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil || claims.Role != "ops" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loginHandler exchanges the static ops API key for a short-lived session.
func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Key string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if s.opsKey == "" || req.Key != s.opsKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := s.auth.Mint(w); err != nil {
			s.log.Error().Err(err).Msg("failed to mint session token")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
