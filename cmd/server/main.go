package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fxforge/platform/internal/affiliate"
	"github.com/fxforge/platform/internal/artifact"
	"github.com/fxforge/platform/internal/auth"
	"github.com/fxforge/platform/internal/billing"
	"github.com/fxforge/platform/internal/checkout"
	"github.com/fxforge/platform/internal/config"
	"github.com/fxforge/platform/internal/discount"
	"github.com/fxforge/platform/internal/eadev"
	"github.com/fxforge/platform/internal/edge"
	"github.com/fxforge/platform/internal/email"
	"github.com/fxforge/platform/internal/httpserver"
	"github.com/fxforge/platform/internal/license"
	"github.com/fxforge/platform/internal/logger"
	"github.com/fxforge/platform/internal/pg"
	"github.com/fxforge/platform/internal/plan"
	"github.com/fxforge/platform/internal/profile"
	"github.com/fxforge/platform/internal/ratelimit"
	"github.com/fxforge/platform/internal/redisconn"
	"github.com/fxforge/platform/internal/support"
	"github.com/fxforge/platform/internal/webhook"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	log := logger.New(logger.WithEnvironment(cfg.App.Env, cfg.App.Name))

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}

	rdb, err := redisconn.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close redis client", slog.Any("error", err))
		}
	}()

	authSvc, err := auth.NewService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	sender := newSender(ctx, cfg.Email, log)
	profiles := profile.NewStore(pool)
	plans := plan.NewStore(pool)

	licSvc, err := newLicenseService(ctx, cfg, pool, rdb, plans, sender, profiles, log)
	if err != nil {
		return err
	}

	providers := newBillingProviders(cfg)
	checkoutSvc := checkout.NewService(plans, cfg.App.BaseURL, log, providers...)

	affiliateSvc := affiliate.NewService(affiliate.NewStore(pool), sender, log)
	discountSvc := discount.NewService(discount.NewStore(pool))
	supportSvc := support.NewService(support.NewStore(pool), sender)
	eadevSvc := eadev.NewService(eadev.NewStore(pool), sender, profiles, log)

	artifactRouter, err := newArtifactRouter(ctx, cfg, pool, licSvc, log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", httpserver.HealthHandler(log,
		func(ctx context.Context) error { return pool.Ping(ctx) },
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	))

	// EA-facing endpoints authenticate by license key, not bearer token.
	r.Mount("/api/license", license.Router(licSvc, log))
	r.Mount("/api/webhooks", webhook.Router(licSvc, log, providers...))
	r.Mount("/api/support", support.Router(supportSvc, log))
	r.Mount("/api/campaigns", discount.Router(discountSvc, log))
	r.Mount("/api/referrals", affiliate.TrackRouter(affiliateSvc, log))

	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware)
		r.Mount("/api/licenses", license.UserRouter(licSvc, log))
		r.Mount("/api/checkout", checkout.Router(checkoutSvc, profiles, log))
		r.Mount("/api/artifacts", artifactRouter)
		r.Mount("/api/affiliate", affiliate.Router(affiliateSvc, log))
		r.Mount("/api/ea-development", eadev.Router(eadevSvc, log))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Mount("/api/admin/licenses", license.AdminRouter(licSvc, log))
			r.Mount("/api/admin/affiliate", affiliate.AdminRouter(affiliateSvc, log))
			r.Mount("/api/admin/campaigns", discount.AdminRouter(discountSvc, log))
			r.Mount("/api/admin/support", support.AdminRouter(supportSvc, log))
			r.Mount("/api/admin/ea-development", eadev.AdminRouter(eadevSvc, log))
		})
	})

	srv := httpserver.New(log,
		httpserver.WithAddr(cfg.HTTP.Addr),
		httpserver.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.IdleTimeout),
		httpserver.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
	)
	return srv.Run(ctx, r)
}

func newSender(ctx context.Context, cfg config.EmailConfig, log *slog.Logger) email.Sender {
	if cfg.PostmarkServerToken == "" {
		log.WarnContext(ctx, "postmark not configured, transactional email disabled")
		return nil
	}
	sender, err := email.NewPostmarkSender(email.Config{
		ServerToken:  cfg.PostmarkServerToken,
		AccountToken: cfg.PostmarkAccountToken,
		FromAddress:  cfg.FromAddress,
		ReplyTo:      cfg.SupportAddress,
	})
	if err != nil {
		log.WarnContext(ctx, "postmark sender unavailable", slog.Any("error", err))
		return nil
	}
	return sender
}

func newLicenseService(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client,
	plans plan.Store, sender email.Sender, profiles profile.Store, log *slog.Logger) (*license.Service, error) {

	opts := []license.Option{}

	limiter, err := ratelimit.New(rdb, "license:validate", 120, time.Minute)
	if err != nil {
		return nil, err
	}
	opts = append(opts, license.WithRateLimiter(limiter))

	edgeClient, err := edge.New(cfg.Edge.BaseURL, cfg.Edge.AccountID, cfg.Edge.NamespaceID, cfg.Edge.APIToken)
	switch {
	case errors.Is(err, edge.ErrNotConfigured):
		log.WarnContext(ctx, "edge cache not configured, license sync disabled")
	case err != nil:
		return nil, err
	default:
		opts = append(opts, license.WithEdgeSyncer(edgeClient))
	}

	if sender != nil {
		opts = append(opts, license.WithNotifier(email.NewLicenseNotifier(sender, profiles)))
	}

	return license.NewService(license.NewStore(pool), plans, log, opts...), nil
}

func newBillingProviders(cfg *config.Config) []billing.Provider {
	var providers []billing.Provider
	if cfg.Polar.AccessToken != "" {
		providers = append(providers, billing.NewPolar(cfg.Polar.BaseURL, cfg.Polar.AccessToken, cfg.Polar.WebhookSecret))
	}
	if cfg.Stripe.SecretKey != "" {
		providers = append(providers, billing.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret))
	}
	if cfg.Paystack.SecretKey != "" {
		providers = append(providers, billing.NewPaystack(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey,
			cfg.Paystack.WebhookSecret, cfg.Paystack.USDToNGNRate))
	}
	return providers
}

func newArtifactRouter(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool,
	licSvc *license.Service, log *slog.Logger) (chi.Router, error) {

	presigner, err := artifact.NewS3Presigner(ctx, artifact.S3Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	svc := artifact.NewService(artifact.NewStore(pool), licSvc, presigner, cfg.Storage.PresignTTL)
	return artifact.Router(svc, log), nil
}
