package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jbily/BANKS-MO/internal/handlers"
	appmw "github.com/jbily/BANKS-MO/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRoutes(h *handlers.Handler, jwtSecret string, registry *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	auth := appmw.Authenticated(jwtSecret)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.With(auth).Get("/auth/me", h.Me)

	r.Route("/accounts", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.CreateAccount)
		r.Get("/", h.GetAccounts)
		r.Get("/{accountID}", h.GetAccount)
		r.Get("/{accountID}/transactions", h.GetAccountTransactions)
		r.Post("/{accountID}/deposit", h.Deposit)
		r.Post("/{accountID}/withdraw", h.Withdraw)
		r.Post("/{accountID}/close", h.CloseAccount)
		r.Put("/{accountID}/limits", h.UpdateLimits)
	})

	r.With(auth).Post("/transfers", h.Transfer)
	r.With(auth).Post("/transactions/{reference}/refund", h.Refund)
	r.With(auth).Post("/transactions/{reference}/cancel", h.CancelTransaction)

	r.Route("/cards", func(r chi.Router) {
		r.Use(auth)
		r.Post("/", h.IssueCard)
		r.Get("/", h.GetCards)
		r.Get("/{cardID}", h.GetCard)
		r.Post("/{cardID}/freeze", h.FreezeCard)
		r.Post("/{cardID}/unfreeze", h.UnfreezeCard)
		r.Post("/{cardID}/purchase", h.CardPurchase)
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return r
}
