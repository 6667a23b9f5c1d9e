package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gymmaster/internal/api"
	"gymmaster/internal/api/middleware"
	v1 "gymmaster/internal/api/v1"
	"gymmaster/internal/audit"
	"gymmaster/internal/config"
	"gymmaster/internal/event"
	"gymmaster/internal/mailer"
	"gymmaster/internal/repository/postgres"
	"gymmaster/internal/scheduler"
	schedulerjobs "gymmaster/internal/scheduler/jobs"
	"gymmaster/internal/service"
	"gymmaster/internal/sse"
	"gymmaster/internal/telemetry"
	jwtutil "gymmaster/pkg/jwt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scheduler and event fan-out",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	defer zap.ReplaceGlobals(logger)()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTel.Endpoint,
		ServiceName: cfg.OTel.ServiceName,
		Version:     Version,
	}, logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	dbPool, err := newDBPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbPool.Close()

	privateKey, err := jwtutil.LoadPrivateKey(cfg.JWT.PrivateKey, cfg.JWT.PrivateKeyFile)
	if err != nil {
		return fmt.Errorf("load jwt private key: %w", err)
	}
	publicKey, err := jwtutil.LoadPublicKey(cfg.JWT.PublicKey, cfg.JWT.PublicKeyFile, privateKey)
	if err != nil {
		return fmt.Errorf("load jwt public key: %w", err)
	}

	userRepo := postgres.NewUserRepository(dbPool)
	memberRepo := postgres.NewMemberRepository(dbPool)
	branchRepo := postgres.NewBranchRepository(dbPool)
	typeRepo := postgres.NewMembershipTypeRepository(dbPool)
	membershipRepo := postgres.NewMembershipRepository(dbPool)
	paymentRepo := postgres.NewPaymentRepository(dbPool)
	classRepo := postgres.NewClassRepository(dbPool)
	reservationRepo := postgres.NewReservationRepository(dbPool)
	checkInRepo := postgres.NewCheckInRepository(dbPool)
	auditRepo := postgres.NewAuditRepository(dbPool)
	reportRepo := postgres.NewReportRepository(dbPool)

	eventBus := event.NewBus()

	natsBridge, err := event.NewNATSBridge(ctx, event.NATSConfig{
		URL:           cfg.NATS.URL,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		Stream:        cfg.NATS.Stream,
	}, logger)
	if err != nil {
		logger.Warn("nats bridge disabled", zap.Error(err))
	}
	if natsBridge != nil {
		natsBridge.Attach(eventBus)
		defer natsBridge.Close()
	}

	sseHub := sse.NewHub(logger)
	defer sseHub.Close()
	sseHub.Subscribe(eventBus)

	sender, err := mailer.New(mailer.Config{
		Driver:           cfg.Mail.Driver,
		FromName:         cfg.Mail.FromName,
		FromEmail:        cfg.Mail.FromEmail,
		SMTPHost:         cfg.SMTP.Host,
		SMTPPort:         cfg.SMTP.Port,
		SMTPUser:         cfg.SMTP.User,
		SMTPPassword:     cfg.SMTP.Password,
		SMTPUseTLS:       cfg.SMTP.UseTLS,
		MailerSendAPIKey: cfg.MailerSend.APIKey,
	}, logger)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}
	notificationSvc := service.NewNotificationService(sender, userRepo, memberRepo, logger)
	notificationSvc.Subscribe(eventBus)
	defer notificationSvc.Wait()

	var gateway service.PaymentGateway
	if g := service.NewStripeGateway(cfg.Stripe.SecretKey); g != nil {
		gateway = g
	}

	memberSvc := service.NewMemberService(memberRepo, userRepo, membershipRepo, cfg.QRTTL())
	services := api.Services{
		Auth: service.NewAuthService(userRepo, memberSvc, dbPool, privateKey, notificationSvc, eventBus, service.AuthConfig{
			AccessTTL:  cfg.JWT.AccessTTL,
			RefreshTTL: cfg.JWT.RefreshTTL,
		}, logger),
		User:       service.NewUserService(userRepo),
		Member:     memberSvc,
		Branch:     service.NewBranchService(branchRepo),
		Membership: service.NewMembershipService(typeRepo, membershipRepo, memberRepo, eventBus, logger),
		Payment:    service.NewPaymentService(paymentRepo, memberRepo, membershipRepo, gateway, cfg.Stripe.Currency, logger),
		Class:      service.NewClassService(classRepo, reservationRepo, branchRepo, userRepo, memberRepo, membershipRepo, eventBus, logger),
		CheckIn:    service.NewCheckInService(memberRepo, membershipRepo, branchRepo, checkInRepo, eventBus, logger),
		Audit:      service.NewAuditService(auditRepo, cfg.Audit.RetentionDays, logger),
		Report:     service.NewReportService(reportRepo),
	}

	recorder := audit.NewRecorder(auditRepo, audit.RecorderConfig{
		QueueSize:    cfg.Audit.QueueSize,
		Workers:      cfg.Audit.Workers,
		WriteTimeout: cfg.Audit.WriteTimeout,
	}, logger)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Close(drainCtx); err != nil {
			logger.Warn("audit recorder drain incomplete", zap.Error(err))
		}
	}()

	rateStore, closeRateStore, err := newRateLimitStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRateStore()

	cronRunner := scheduler.NewScheduler(scheduler.Deps{
		CheckInJob:    schedulerjobs.NewCheckInJob(services.CheckIn, time.Duration(cfg.CheckIn.AutoCloseHours)*time.Hour, logger),
		MembershipJob: schedulerjobs.NewMembershipJob(services.Membership, logger),
		AuditJob:      schedulerjobs.NewAuditJob(services.Audit, logger),
		MetricsJob:    schedulerjobs.NewMetricsJob(services.Report, sseHub, logger),
	}, scheduler.Specs{
		AutoClose:        cfg.CheckIn.AutoCloseSchedule,
		MembershipExpiry: cfg.Membership.ExpirySchedule,
		AuditCleanup:     cfg.Audit.CleanupSchedule,
	}, logger)
	cronRunner.Start()
	defer func() {
		stopCtx := cronRunner.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(2 * time.Second):
		}
	}()

	router := api.NewRouter(services, api.RouterConfig{
		Routes: v1.RouteOptions{
			PublicKey:        publicKey,
			Recorder:         recorder,
			RateStore:        rateStore,
			LoginPerMinute:   cfg.RateLimit.LoginPerMinute,
			CheckInPerMinute: cfg.RateLimit.CheckInPerMinute,
			Logger:           logger,
		},
		RefreshTTL:     cfg.JWT.RefreshTTL,
		AutoCloseHours: cfg.CheckIn.AutoCloseHours,
		AllowOrigins:   cfg.CORS.AllowOrigins,
		InternalToken:  cfg.Security.InternalToken,
		DB:             dbPool,
		PingTimeout:    cfg.Database.PingTimeout,
		SSEHub:         sseHub,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      telemetry.Wrap(router, cfg.OTel.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	logger.Info("server started",
		zap.String("addr", srv.Addr),
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("build_time", BuildTime),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server exited unexpectedly: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server failed", zap.Error(err))
	}
	return nil
}

func newDBPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database.url failed: %w", err)
	}

	const maxInt32 = int(^uint32(0) >> 1)
	if cfg.Database.MaxConns > maxInt32 {
		return nil, fmt.Errorf("database.max_conns must be <= %d", maxInt32)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns) // #nosec G115 -- validated upper bound above.

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.PingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database failed: %w", err)
	}
	return pool, nil
}

// newRateLimitStore shares counters through Redis when redis.url is set and
// falls back to per-process memory otherwise.
func newRateLimitStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (middleware.RateLimitStore, func(), error) {
	url := strings.TrimSpace(cfg.Redis.URL)
	if url == "" {
		return middleware.NewMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis.url failed: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, rate limits fail open until it recovers", zap.Error(err))
	}

	return middleware.NewRedisStore(client), func() { _ = client.Close() }, nil
}
