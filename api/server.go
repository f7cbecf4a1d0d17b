/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the storefront/backoffice UIs

ROUTE GROUPS:
  /api/batches/*      Batch registration, snapshots, corrections
  /api/delegations/*  Quota grants and revocation
  /api/offers/*       Offer creation and lifecycle verbs
  /api/reconcile      Full reconciled view

SECURITY NOTE:
  No authentication middleware. Auth is a host concern outside this
  service's scope.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/stone-ledger/ledger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.CreateBatch)
			r.Get("/{id}", h.GetBatch)
			r.Get("/{id}/snapshot", h.GetSnapshot)
			r.Post("/{id}/adjust", h.AdjustBatch)
			r.Get("/{id}/offers", h.ListBatchOffers)
			r.Get("/{id}/revenue", h.GetRevenue)
			r.Post("/{id}/delegations", h.CreateDelegation)
		})

		// Delegation routes
		r.Route("/delegations", func(r chi.Router) {
			r.Get("/{id}", h.GetDelegation)
			r.Delete("/{id}", h.RevokeDelegation)
		})

		// Offer routes
		r.Route("/offers", func(r chi.Router) {
			r.Post("/", h.CreateOffer)
			r.Get("/{id}", h.GetOffer)
			r.Post("/{id}/request-reservation", h.transitionHandler(ledger.OfferReservationPending))
			r.Post("/{id}/approve", h.transitionHandler(ledger.OfferReserved))
			r.Post("/{id}/reject", h.transitionHandler(ledger.OfferActive))
			r.Post("/{id}/finalize", h.transitionHandler(ledger.OfferSold))
			r.Post("/{id}/expire", h.transitionHandler(ledger.OfferExpired))
		})

		// Reconciliation
		r.Get("/reconcile", h.Reconcile)
	})

	return r
}
