/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/continuity, /api/carryover   Tenure and roll-forward reads
  /api/assignments/*                Assignment registration and work logs
  /api/work/*                       Work record approval lifecycle
  /api/settlement/*, /api/invoices, /api/summaries  Settlement
  /api/incentive/*                  Tenure incentive propagation
  /api/clients, /api/secretaries, /api/ranks  Reference data

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Continuity and carryover reads
		r.Get("/continuity", h.GetContinuity)
		r.Get("/carryover", h.GetCarryoverCandidates)

		// Assignment routes
		r.Route("/assignments", func(r chi.Router) {
			r.Post("/", h.RegisterAssignment)
			r.Delete("/{id}", h.DeleteAssignment)
			r.Post("/{id}/work", h.LogWork)
			r.Get("/{id}/work", h.ListWork)
		})

		// Work record lifecycle
		r.Route("/work", func(r chi.Router) {
			r.Post("/{id}/approve", h.ApproveWork)
			r.Post("/{id}/remand", h.RemandWork)
			r.Post("/{id}/dispute", h.DisputeWork)
		})

		// Settlement routes
		r.Post("/settlement/run", h.RunSettlement)
		r.Get("/invoices", h.ListInvoices)
		r.Get("/summaries", h.ListSummaries)

		// Incentive routes
		r.Post("/incentive/apply", h.ApplyIncentive)

		// Reference data
		r.Post("/clients", h.CreateClient)
		r.Post("/secretaries", h.CreateSecretary)
		r.Post("/ranks", h.CreateRank)

		// Utility
		r.Get("/months/clamp", h.ClampMonth)
	})

	return r
}
