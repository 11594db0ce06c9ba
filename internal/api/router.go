package api

import (
	"net/http"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/edi"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
	ws "github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps holds the services the API surfaces.
type Deps struct {
	Queue    *queue.Queue
	Claims   store.ClaimStore
	Audit    store.AuditStore
	Gateway  *edi.Gateway
	Registry *domain.InsurerRegistry
	Hub      *ws.Hub
	Sandbox  bool
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	jobHandler := NewJobHandler(deps.Queue)
	claimHandler := NewClaimHandler(deps.Claims)
	insurerHandler := NewInsurerHandler(deps.Registry)
	adminHandler := NewAdminHandler(deps.Gateway, deps.Audit)

	// WebSocket endpoint for the live job feed
	if deps.Hub != nil {
		r.Get("/ws", deps.Hub.HandleWebSocket)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(deps.Sandbox))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobHandler.Enqueue)
			r.Get("/", jobHandler.List)
			r.Get("/stats", jobHandler.Stats)
			r.Get("/{id}", jobHandler.Get)
			r.Post("/{id}/retry", jobHandler.Retry)
		})

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", claimHandler.Create)
			r.Get("/{id}", claimHandler.Get)
		})

		r.Get("/insurers", insurerHandler.List)

		r.Route("/blocked-attempts", func(r chi.Router) {
			r.Get("/", adminHandler.BlockedAttempts)
			r.Delete("/", adminHandler.ClearBlockedAttempts)
		})

		r.Get("/audit-events", adminHandler.AuditEvents)
	})

	return r
}
