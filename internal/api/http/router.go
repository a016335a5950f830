package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-engine/internal/api/http/handlers"
	"github.com/spec-kit/dispute-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Disputes       *handlers.DisputesHandler
	Offers         *handlers.OffersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	disputes := app.Group("/disputes", cfg.AuthMiddleware.Handle, auth.RequireParty())
	disputes.Post("", cfg.Disputes.CreateDispute)
	disputes.Get("", cfg.Disputes.ListDisputes)
	disputes.Get("/pending-response", cfg.Disputes.ListPendingResponse)
	disputes.Get("/:id", cfg.Disputes.GetDispute)
	disputes.Post("/:id/messages", cfg.Disputes.AddMessage)
	disputes.Post("/:id/evidence", cfg.Disputes.AddEvidence)
	disputes.Post("/:id/status", cfg.Disputes.SetStatus)
	disputes.Post("/:id/priority", cfg.Disputes.SetPriority)

	disputes.Post("/:id/offers", cfg.Offers.CreateOffer)
	disputes.Post("/:id/offers/:offerId/respond", cfg.Offers.RespondToOffer)
}
