// Package app wires the desk's services from configuration.
package app

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-desk/internal/api/http"
	"github.com/spec-kit/ticket-desk/internal/api/http/handlers"
	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/clock"
	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/listing"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/persistence"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/session"
	"github.com/spec-kit/ticket-desk/internal/ticketbase"
	"github.com/spec-kit/ticket-desk/internal/worker"
)

// Options overrides process-level collaborators, mainly for tests.
type Options struct {
	Clock      clock.Clock
	HTTPClient *http.Client
}

// App holds every long-lived component of the desk process.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Redis         *persistence.Redis
	Cache         *cache.Cache
	Client        *ticketbase.Client
	Dispatcher    events.Dispatcher
	Auth          *service.AuthService
	Session       *session.Store
	Listing       *service.ListingService
	Tracker       *service.TimeTracker
	Notifications *service.NotificationService
	Poller        *worker.Poller
}

// New builds the component graph. Nothing here talks to the ticketing API.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) *App {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	var store cache.Store
	a.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	if a.Redis != nil {
		store = cache.NewRedisStore(a.Redis.Client)
	} else {
		store = cache.NewMemoryStore()
	}
	a.Cache = cache.New(store, cache.Options{Prefix: cfg.Cache.Prefix, Clock: clk, Logger: logger})

	var authService *service.AuthService
	a.Client = ticketbase.NewClient(ticketbase.Options{
		BaseURL:    cfg.Ticketbase.BaseURL,
		Timeout:    cfg.Ticketbase.Timeout(),
		UserAgent:  cfg.App.Name + "/" + cfg.App.Version,
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
		Recorder:   a.Metrics,
		Token: func() string {
			if authService == nil {
				return ""
			}
			return authService.Token()
		},
	})

	authService = service.NewAuthService(service.AuthDependencies{
		Remote: a.Client,
		Tokens: auth.NewFileTokenStore(cfg.Auth.TokenPath),
		Cache:  a.Cache,
		Clock:  clk,
		Logger: logger,
	})
	a.Auth = authService

	a.Dispatcher = events.NewInMemoryDispatcher()
	a.Notifications = service.NewNotificationService(a.Dispatcher, logger)
	a.Notifications.RegisterHandlers()

	loc := cfg.Listing.Location()
	a.Session = session.NewStore(cfg.Listing.PageSize)
	a.Listing = service.NewListingService(service.ListingDependencies{
		TicketRepo: repository.NewTicketRepository(a.Client, a.Cache, logger),
		Session:    a.Session,
		Engine:     listing.NewEngine(loc, listing.NewSorter(cfg.Listing.Locale)),
		Dispatcher: a.Dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	a.Tracker = service.NewTimeTracker(service.TimeTrackerDependencies{
		Remote:      a.Client,
		Dispatcher:  a.Dispatcher,
		Clock:       clk,
		Logger:      logger,
		ResyncDelay: cfg.Sync.TimerResyncDelay,
	})
	a.Poller = worker.NewPoller(worker.PollerDependencies{
		Tickets:       a.Listing,
		Timers:        a.Tracker,
		Sessions:      a.Auth,
		Clock:         clk,
		Logger:        logger,
		ListInterval:  cfg.Sync.TicketRefreshInterval,
		TimerInterval: cfg.Sync.TimerPollInterval,
	})

	a.Auth.OnLogout(a.Tracker.Reset)
	a.Auth.OnLogout(a.Listing.Reset)
	a.Auth.OnLogout(func() { a.Session.ResetFilters() })
	a.Auth.OnLogout(a.Notifications.Reset)
	return a
}

// HTTP builds the local API.
func (a *App) HTTP() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               a.Config.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, a.Logger, a.Metrics, a.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, a.Redis),
		Auth:           handlers.NewAuthHandler(a.Auth),
		Tickets:        handlers.NewTicketsHandler(a.Listing),
		Filters:        handlers.NewFiltersHandler(a.Session),
		Customers:      handlers.NewCustomersHandler(a.Listing),
		Timers:         handlers.NewTimersHandler(a.Tracker),
		Metrics:        handlers.NewMetricsHandler(a.Metrics),
		Notifications:  handlers.NewNotificationsHandler(a.Notifications),
		AuthMiddleware: auth.NewAuthMiddleware(a.Auth),
	})
	return server
}

// Close releases external connections.
func (a *App) Close() {
	a.Tracker.Reset()
	a.Redis.Close()
}
