package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/davidahmann/cardkit/internal/api"
	"github.com/davidahmann/cardkit/internal/auth"
	"github.com/davidahmann/cardkit/internal/cardmanager"
	"github.com/davidahmann/cardkit/internal/config"
	"github.com/davidahmann/cardkit/internal/logger"
	"github.com/davidahmann/cardkit/internal/metrics"
	"github.com/davidahmann/cardkit/internal/policy"
	"github.com/davidahmann/cardkit/internal/slack"
	"github.com/davidahmann/cardkit/internal/tracking"
)

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(cfg config.Config, getenv envFn) (*http.Server, error)

var (
	runFn  = run
	fatalf = log.Fatalf
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("cardkit-gateway: %v", err)
	}
}

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("cardkit-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the gateway config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Resolve(firstNonEmpty(*configPath, getenv("CARDKIT_CONFIG")), getenv)
	if err != nil {
		return err
	}
	server, err := factory(cfg, getenv)
	if err != nil {
		return err
	}
	if err := listen(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newServer(cfg config.Config, getenv envFn) (*http.Server, error) {
	zl, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	pol := policy.Default()
	if cfg.PolicyPath != "" {
		if pol, err = policy.Load(cfg.PolicyPath); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	store, closeStore, err := cfg.Store.OpenStore(ctx, zl)
	if err != nil {
		cancel()
		return nil, err
	}

	var collectors *metrics.Collectors
	if disabled, _ := strconv.ParseBool(getenv("CARDKIT_METRICS_DISABLED")); !disabled {
		collectors = metrics.New()
	}

	tracker := tracking.NewTracker(store,
		tracking.WithLogger(zl),
		tracking.WithConflictHook(collectors.StoreConflict),
	)
	opts := []cardmanager.Option{
		cardmanager.WithLogger(zl),
		cardmanager.WithMetrics(collectors),
	}
	if cfg.Slack.Enabled() {
		opts = append(opts, cardmanager.WithChannel(&slack.Client{
			Token:   cfg.Slack.BotToken,
			BaseURL: cfg.Slack.BaseURL,
		}))
	}
	manager := cardmanager.New(tracker, pol, opts...)

	var slackHandler *slack.InteractionHandler
	if cfg.Slack.Enabled() {
		slackHandler = &slack.InteractionHandler{
			SigningSecret: cfg.Slack.SigningSecret,
			Turns:         manager.Middleware(&api.BotForwarder{URL: cfg.BotURL, Log: zl}),
			Log:           zl,
		}
		if cfg.Slack.SigningSecret == "" {
			zl.Warn("slack signing secret not set; interaction signatures are not verified")
		}
	}

	multi := &auth.MultiAuthenticator{DevToken: cfg.Auth.DevToken}
	if cfg.Auth.JWTIssuer != "" {
		multi.JWT = auth.NewJWTAuthenticator(cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.JWKSURL)
	}
	var authn auth.Authenticator
	if multi.Enabled() {
		authn = multi
	} else {
		zl.Warn("no api credentials configured; /v1 endpoints will reject every request")
	}

	var limiter *api.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	if cfg.WatchPolicy {
		w, err := policy.NewWatcher(cfg.PolicyPath, manager.SetPolicy, zl)
		if err != nil {
			cancel()
			_ = closeStore()
			return nil, err
		}
		go w.Run(ctx)
	}

	h := &api.Handler{
		Auth:    authn,
		Manager: manager,
		Slack:   slackHandler,
		Metrics: collectors,
		Limiter: limiter,
		Log:     zl,
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
	server.RegisterOnShutdown(func() {
		cancel()
		if err := closeStore(); err != nil {
			zl.Warn("close store", "error", err)
		}
		zl.Sync()
	})
	zl.Info("cardkit-gateway configured", "addr", cfg.ListenAddr, "store", cfg.Store.Driver, "slack", cfg.Slack.Enabled())
	return server, nil
}

// listenAndServe serves until the listener fails or the process is asked to
// stop, in which case in-flight requests get a grace period.
func listenAndServe(server *http.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
