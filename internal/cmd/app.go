package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/furfur/central/internal/auth"
	"github.com/furfur/central/internal/ban"
	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/discord"
	"github.com/furfur/central/internal/donation"
	"github.com/furfur/central/internal/httphelper"
	"github.com/furfur/central/internal/link"
	"github.com/furfur/central/internal/log"
	"github.com/furfur/central/internal/metrics"
	"github.com/furfur/central/internal/notification"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/whitelist"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

var (
	BuildVersion = "master" //nolint:gochecknoglobals
	BuildCommit  = ""       //nolint:gochecknoglobals
	BuildDate    = ""       //nolint:gochecknoglobals
)

type BuildInfo struct {
	BuildVersion string
	Commit       string
	Date         string
}

func Version() BuildInfo {
	return BuildInfo{
		BuildVersion: BuildVersion,
		Commit:       BuildCommit,
		Date:         BuildDate,
	}
}

// Central owns the long-lived services of a running api instance.
type Central struct {
	config    config.Config
	database  database.Database
	sentry    *sentry.Client
	logCloser func()
	publisher notification.Publisher
	metrics   *metrics.Metrics

	auth       auth.Authentication
	players    player.Players
	whitelists whitelist.Whitelists
	bans       ban.Bans
	donations  donation.Donations
	links      links
}

type links struct {
	service link.Links
	limiter *httphelper.IPRateLimiter
}

func NewCentral(configFile string) (*Central, error) {
	conf, errConfig := config.Read(configFile)
	if errConfig != nil {
		return nil, errConfig
	}

	return &Central{config: conf, logCloser: func() {}}, nil
}

// Init connects the backing services and constructs every domain service.
func (c *Central) Init(ctx context.Context) error {
	c.setupSentry()
	c.logCloser = log.MustCreateLogger(ctx, c.config.Log, c.sentry != nil, BuildVersion)

	slog.Info("Starting central",
		slog.String("version", BuildVersion),
		slog.String("commit", BuildCommit),
		slog.String("date", BuildDate),
		slog.String("mode", c.config.General.Mode.String()))

	c.database = database.New(c.config.Database.DSN, c.config.Database.AutoMigrate, c.config.Database.LogQueries)
	if errConnect := c.database.Connect(ctx); errConnect != nil {
		return errConnect
	}

	publisher, errPublisher := notification.New(ctx, c.config)
	if errPublisher != nil {
		return errPublisher
	}

	c.publisher = publisher
	c.metrics = metrics.New(prometheus.DefaultRegisterer)

	c.auth = auth.NewAuthentication(auth.NewRepository(c.database))
	c.players = player.NewPlayers(player.NewRepository(c.database), c.metrics)
	c.whitelists = whitelist.NewWhitelists(whitelist.NewRepository(c.database), c.players, c.config.Whitelist, c.metrics)
	c.bans = ban.NewBans(ban.NewRepository(c.database), c.players, c.metrics)
	c.donations = donation.NewDonations(
		donation.NewRepository(c.database),
		c.players,
		donation.NewBridge(c.whitelists, c.players, c.config.Donation),
		c.config.Donation,
		c.metrics)

	identity := discord.New(c.config.Discord, httphelper.NewHTTPClient(c.config.HTTP.ClientTimeout))
	c.links = links{
		service: link.NewLinks(link.NewRepository(c.database), c.players, identity, c.publisher,
			c.config.Link, c.config.Notification.Channel),
		limiter: httphelper.NewIPRateLimiter(c.config.HTTP.PublicRateLimit, c.config.HTTP.PublicRateBurst),
	}

	return nil
}

func (c *Central) setupSentry() {
	if c.config.Sentry.DSN == "" {
		return
	}

	sentryClient, err := log.NewSentryClient(c.config.Sentry.DSN, c.config.Sentry.Trace, c.config.Sentry.SampleRate,
		BuildVersion, c.config.General.Mode.String())
	if err != nil {
		slog.Error("Failed to setup sentry client", log.ErrAttr(err))

		return
	}

	c.sentry = sentryClient
}

func (c *Central) createRouter() (http.Handler, error) {
	router, errRouter := httphelper.CreateRouter(httphelper.RouterOpts{
		HTTPLogEnabled:    c.config.Log.HTTPEnabled,
		LogLevel:          c.config.Log.HTTPLevel,
		Mode:              c.config.General.Mode.String(),
		HTTPOtelEnabled:   c.config.Log.HTTPOtelEnabled,
		SentryDSN:         c.config.Sentry.DSN,
		Version:           BuildVersion,
		PProfEnabled:      c.config.HTTP.PProfEnabled,
		PrometheusEnabled: c.config.HTTP.PrometheusEnabled,
		CORSOrigins:       c.config.HTTP.CorsOrigins,
	})
	if errRouter != nil {
		return nil, errRouter
	}

	player.NewPlayerHandler(router, c.auth, c.players)
	whitelist.NewWhitelistHandler(router, c.auth, c.whitelists)
	ban.NewBanHandler(router, c.auth, c.bans)
	donation.NewDonationHandler(router, c.auth, c.donations)
	link.NewLinkHandler(router, c.auth, c.links.service, c.links.limiter)

	if c.config.HTTP.PrometheusEnabled {
		metrics.NewHandler(router, prometheus.DefaultGatherer)
	}

	return router, nil
}

// Serve runs the http service until the context is cancelled or a SIGINT/SIGTERM is received.
func (c *Central) Serve(rootCtx context.Context) error {
	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, errRouter := c.createRouter()
	if errRouter != nil {
		return errRouter
	}

	httpServer := httphelper.NewServer(c.config.HTTP.Addr(), router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("Service status changed", slog.String("state", "ready"), slog.String("addr", httpServer.Addr))

		if errServe := httpServer.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		slog.Info("Service status changed", slog.String("state", "stopping"))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		if errShutdown := httpServer.Shutdown(shutdownCtx); errShutdown != nil { //nolint:contextcheck
			slog.Error("Error shutting down http service", log.ErrAttr(errShutdown))

			return errShutdown
		}

		return nil
	})

	return group.Wait()
}

func (c *Central) Close() error {
	var err error

	if c.publisher != nil {
		if errPublisher := c.publisher.Close(); errPublisher != nil {
			err = errors.Join(err, errPublisher)
		}
	}

	if c.database != nil {
		if errClose := c.database.Close(); errClose != nil {
			err = errors.Join(err, errClose)
		}
	}

	if c.sentry != nil {
		c.sentry.Flush(2 * time.Second)
	}

	c.logCloser()

	return err
}
