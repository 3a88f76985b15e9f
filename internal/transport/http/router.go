package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/agrimarket/negotiation-api/internal/application/bid"
	"github.com/agrimarket/negotiation-api/internal/application/negotiation"
	"github.com/agrimarket/negotiation-api/internal/application/notification"
	"github.com/agrimarket/negotiation-api/internal/config"
	"github.com/agrimarket/negotiation-api/internal/domain"
	jwtinfra "github.com/agrimarket/negotiation-api/internal/infrastructure/jwt"
	"github.com/agrimarket/negotiation-api/internal/infrastructure/smtp"
	"github.com/agrimarket/negotiation-api/internal/infrastructure/sns"
	"github.com/agrimarket/negotiation-api/internal/realtime"
	"github.com/agrimarket/negotiation-api/internal/transport/http/handler"
	appmiddleware "github.com/agrimarket/negotiation-api/internal/transport/http/middleware"
	"github.com/agrimarket/negotiation-api/internal/transport/ws"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         UserRepository
	ProductRepo      ProductRepository
	NegotiationRepo  NegotiationRepository
	BidRepo          BidRepository
	NotificationRepo NotificationRepository
	Gateway          *realtime.Gateway
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	JWTProvider      *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider, deps.UserRepo)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to bid and negotiation writes.
	writeRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	notifSvc := notification.NewService(notification.ServiceDeps{
		NotificationRepo: deps.NotificationRepo,
		Gateway:          deps.Gateway,
		Mailer:           deps.Mailer,
		SMSSender:        deps.SMSSender,
	})
	negSvc := negotiation.NewService(negotiation.ServiceDeps{
		NegotiationRepo: deps.NegotiationRepo,
		ProductRepo:     deps.ProductRepo,
		UserRepo:        deps.UserRepo,
		Gateway:         deps.Gateway,
		Notifications:   notifSvc,
	})
	bidSvc := bid.NewService(bid.ServiceDeps{
		BidRepo:         deps.BidRepo,
		NegotiationRepo: deps.NegotiationRepo,
		ProductRepo:     deps.ProductRepo,
		UserRepo:        deps.UserRepo,
		Negotiations:    negSvc,
		Gateway:         deps.Gateway,
		Notifications:   notifSvc,
	})

	healthH := handler.NewHealthHandler()
	negH := handler.NewNegotiationHandler(negSvc)
	bidH := handler.NewBidHandler(bidSvc)
	notifH := handler.NewNotificationHandler(notifSvc)
	wsH := ws.NewHandler(deps.Gateway, deps.JWTProvider, deps.UserRepo)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Get("/ws", wsH.Serve)
		r.Get("/products/{productId}/bids", bidH.ListByProduct)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			// Reads: guests with a valid token may look, not touch.
			r.Get("/negotiations", negH.List)
			r.Get("/negotiations/{id}", negH.Get)
			r.Get("/negotiations/{id}/bids", bidH.ListByNegotiation)
			r.Get("/bids", bidH.ListMine)
			r.Get("/notifications", notifH.List)

			// Writes sit behind the guest block and the write rate limit.
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.BlockGuests)
				r.Use(writeRL.Limit)

				r.Post("/negotiations", negH.Create)
				r.Put("/negotiations/{id}/accept", negH.Accept)
				r.Put("/negotiations/{id}/reject", negH.Reject)

				r.Post("/bids", bidH.Place)
				r.Put("/bids/{id}/counter", bidH.Counter)
				r.Put("/bids/{id}/accept", bidH.Accept)
				r.Put("/bids/{id}/accept-counter", bidH.AcceptCounter)

				r.Put("/notifications/read-all", notifH.MarkAllRead)
			})

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users/{userId}/bids", bidH.ListForUser)
			})
		})
	})

	return r
}
