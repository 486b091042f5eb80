package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grupofy/grupofy-backend/api/controllers"
	webhookcontrollers "github.com/grupofy/grupofy-backend/api/controllers/webhooks"
	"github.com/grupofy/grupofy-backend/api/middleware"
	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs. RedisClient may be
// nil when Redis is not configured.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	RedisClient *redis.Client
	Manager     controllers.ConnectionManager
	Roster      controllers.GroupRosterService
	Projects    controllers.ProjectsService
	Membership  controllers.MembershipService
	Purchases   controllers.PurchasesService
	Webhook     webhookcontrollers.IngestService
	WebhookLogs controllers.WebhookLogReader
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		var cache controllers.Pinger
		if p.RedisClient != nil {
			cache = p.RedisClient
		}
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, cache))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Server-to-server entry point for sales platforms. Lives outside
	// /api/v1 so existing platform configurations keep working.
	r.Post("/webhook/{projectSlug}", webhookcontrollers.PurchaseWebhook(p.Webhook, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/messenger", func(r chi.Router) {
			r.Get("/status", controllers.MessengerStatus(p.Manager))
			r.Post("/connect", controllers.MessengerConnect(p.Manager))
			r.Post("/disconnect", controllers.MessengerDisconnect(p.Manager))
			r.Post("/force-pair", controllers.MessengerForcePair(p.Manager, logg))
			r.Get("/groups", controllers.MessengerGroups(p.Manager, logg))
			r.Get("/groups/{groupID}/members", controllers.MessengerGroupMembers(p.Roster, logg))
			r.Get("/groups/{groupID}/export", controllers.MessengerGroupExport(p.Roster, logg))
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", controllers.ProjectsList(p.Projects, logg))
			r.Post("/", controllers.ProjectsCreate(p.Projects, logg))

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", controllers.ProjectsGet(p.Projects, logg))
				r.Put("/", controllers.ProjectsUpdate(p.Projects, logg))
				r.Delete("/", controllers.ProjectsDelete(p.Projects, logg))
				r.Get("/stats", controllers.ProjectsStats(p.Projects, logg))
				r.Post("/sync", controllers.ProjectsSync(p.Membership, logg))
				r.Get("/members", controllers.ProjectsContacts(p.Membership, logg))

				r.Post("/groups", controllers.ProjectsAddGroup(p.Projects, logg))
				r.Delete("/groups/{groupID}", controllers.ProjectsRemoveGroup(p.Projects, logg))

				r.Route("/purchases", func(r chi.Router) {
					r.Get("/", controllers.PurchasesList(p.Purchases, logg))
					r.Post("/", controllers.PurchasesManual(p.Purchases, logg))
					r.Post("/import", controllers.PurchasesImport(p.Purchases, logg))
					r.Get("/export", controllers.PurchasesExport(p.Purchases, logg))
				})

				r.Route("/webhook-logs", func(r chi.Router) {
					r.Get("/", controllers.ProjectWebhookLogs(p.WebhookLogs, logg))
					r.Delete("/", controllers.ProjectWebhookLogsClear(p.WebhookLogs, logg))
				})
			})
		})
	})

	return r
}
