package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ausbildung/nachweis/cmd/nachweis/cli"
	"github.com/ausbildung/nachweis/internal/app"
	"github.com/ausbildung/nachweis/internal/audit"
	audithttp "github.com/ausbildung/nachweis/internal/audit/http"
	"github.com/ausbildung/nachweis/internal/auth"
	"github.com/ausbildung/nachweis/internal/notifications"
	"github.com/ausbildung/nachweis/internal/observability"
	"github.com/ausbildung/nachweis/internal/platform/cache"
	"github.com/ausbildung/nachweis/internal/platform/db"
	"github.com/ausbildung/nachweis/internal/records"
	"github.com/ausbildung/nachweis/internal/revalidation"
	"github.com/ausbildung/nachweis/internal/shared"
	"github.com/ausbildung/nachweis/jobs"
	"github.com/ausbildung/nachweis/report"
)

const usage = `usage: nachweis <command> [flags]

commands:
  serve                          run the HTTP API (default)
  migrate up|down|status         manage the database schema
  jobs trigger|stats|scheduled   inspect and trigger background jobs
  token --role ROLE [--user ID] [--name NAME]
                                 print a signed access token
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	cmd, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	switch cmd {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "migrate":
		os.Exit(runMigrate(ctx, cfg, args))
	case "jobs":
		os.Exit(runJobs(ctx, cfg, args))
	case "token":
		os.Exit(runToken(cfg, args))
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	revalidationCache := revalidation.NewCache(redisClient, cfg.CacheTTL)
	if redisClient != nil {
		go func() {
			if err := revalidationCache.ListenForInvalidation(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("revalidation listener", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL)
	reportClient := report.NewClient(cfg.GotenbergURL)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	recordsService := records.NewService(records.NewRepository(dbpool), records.ServiceConfig{
		Cache:       revalidationCache,
		Notifier:    jobs.NewRecordNotifier(jobClient),
		Converter:   reportClient,
		Metrics:     metrics,
		Logger:      logger,
		Concurrency: cfg.BatchConcurrency,
	})
	recordsHandler := records.NewHandler(logger, recordsService, shared.NewIdempotencyStore(dbpool))

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audithttp.NewHandler(logger, auditService)

	notificationService := notifications.NewService(notifications.NewRepository(dbpool), logger)
	notificationHandler := notifications.NewHandler(logger, notificationService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Verifier:             jwtManager,
		Metrics:              metrics,
		RecordsHandler:       recordsHandler,
		AuditHandler:         auditHandler,
		NotificationsHandler: notificationHandler,
		JobHandler:           jobs.NewHandler(inspector, logger),
		ReportHandler:        report.NewHandler(reportClient, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runMigrate(ctx context.Context, cfg *app.Config, args []string) int {
	action := ""
	if len(args) > 0 {
		action = args[0]
	}
	migrator, err := db.NewMigrator(cfg.PGDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	defer migrator.Close()
	return cli.Migrate(ctx, migrator, action, os.Stdout, os.Stderr)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	name := fs.String("name", jobs.TaskTypeNotificationCleanup, "job to trigger")
	retention := fs.Duration("retention", 0, "retention override for cleanup jobs; 0 keeps the worker setting")
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	c := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = c.Close() }()
	return c.Run(ctx, cli.JobsOptions{
		Action:    args[0],
		Name:      *name,
		Retention: *retention,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	})
}

func runToken(cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user id (uuid); random when empty")
	role := fs.String("role", string(shared.RoleAzubi), "AZUBI, AUSBILDER or ADMIN")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	manager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL)
	return cli.Token(manager, cli.TokenOptions{
		UserID:   *user,
		Role:     *role,
		Username: *name,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
}
