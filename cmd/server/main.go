package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/audit"
	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/config"
	"github.com/coup-study/coup-api/internal/constants"
	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/handlers"
	"github.com/coup-study/coup-api/internal/logger"
	"github.com/coup-study/coup-api/internal/metrics"
	"github.com/coup-study/coup-api/internal/middleware"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/services"
	"github.com/coup-study/coup-api/internal/session"
	"github.com/coup-study/coup-api/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.MigrateDatabase(db, log); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	var publisher notify.Publisher = notify.NopPublisher{}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, real-time delivery disabled", zap.Error(err))
	} else {
		publisher = notify.NewRedisPublisher(redisClient)
	}
	cancel()

	var objects storage.ObjectStore
	if cfg.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, cfg)
		if err != nil {
			return err
		}
		objects = store
	} else {
		log.Warn("S3_BUCKET not set, file uploads disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	studyRepo := repository.NewStudyRepository(db)
	memberRepo := repository.NewMembershipRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	fileRepo := repository.NewFileRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	logRepo := repository.NewAdminLogRepository(db)

	// Core collaborators
	tokens := session.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	resolver := session.NewResolver(userRepo, tokens, log.Named("session"))
	guard := services.NewGuard(authz.NewEngine(cfg.InternalAPIKey), memberRepo, m, log)
	notifier := notify.NewNotifier(notificationRepo, publisher, log, m)
	auditor := audit.NewAuditor(logRepo, log, m)

	// Services
	membershipService := services.NewMembershipService(studyRepo, memberRepo, guard, notifier, auditor, log)
	notificationService := services.NewNotificationService(notificationRepo, userRepo, guard, notifier)

	h := &handlers.Handlers{
		Auth:         handlers.NewAuthHandler(services.NewAuthService(userRepo, tokens)),
		Users:        handlers.NewUserHandler(services.NewUserService(userRepo, guard)),
		Studies:      handlers.NewStudyHandler(services.NewStudyService(studyRepo, memberRepo, guard, auditor, log), membershipService),
		Memberships:  handlers.NewMembershipHandler(membershipService),
		Notices:      handlers.NewNoticeHandler(services.NewNoticeService(noticeRepo, studyRepo, memberRepo, guard, notifier, auditor)),
		Files:        handlers.NewFileHandler(services.NewFileService(fileRepo, studyRepo, memberRepo, objects, guard, notifier, log)),
		Messages:     handlers.NewMessageHandler(services.NewMessageService(messageRepo, studyRepo, guard, publisher, log)),
		Notification: handlers.NewNotificationHandler(notificationService),
		Reports:      handlers.NewReportHandler(services.NewReportService(reportRepo)),
		Admin:        handlers.NewAdminHandler(services.NewAdminService(userRepo, studyRepo, reportRepo, logRepo, guard, auditor, notifier)),
		Internal:     handlers.NewInternalHandler(membershipService, notificationService),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log, m))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID},
		ExposeHeaders:    []string{constants.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(sessions.Sessions(constants.SessionCookieName, newSessionStore(cfg, log)))
	r.Use(middleware.ClientIP())
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health check endpoint
	r.GET("/health", healthHandler(db))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	h.Register(r, middleware.RequireAuth(resolver))

	servers := []*http.Server{newServer(cfg.HTTPAddr, r)}
	requireInternalKey := middleware.RequireInternalKey(guard)
	if cfg.InternalHTTPAddr != "" {
		internal := gin.New()
		internal.Use(gin.Recovery())
		internal.Use(middleware.RequestID())
		internal.Use(middleware.RequestLogger(log.Named("internal"), m))
		internal.Use(middleware.Timeout(cfg.RequestTimeout))
		h.RegisterInternal(internal, requireInternalKey)
		servers = append(servers, newServer(cfg.InternalHTTPAddr, internal))
	} else {
		log.Warn("INTERNAL_HTTP_ADDR not set, /internal shares the public listener; block it at the proxy")
		h.RegisterInternal(r, requireInternalKey)
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Info("server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
			serveErr = err
		}
	}

	// Let detached last-seen writes land before the pool closes
	resolver.Wait()
	return serveErr
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newSessionStore prefers Redis-backed sessions and falls back to signed
// cookies when Redis cannot be reached.
func newSessionStore(cfg *config.Config, log *zap.Logger) sessions.Store {
	options := sessions.Options{
		Path:     "/",
		MaxAge:   constants.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}

	store, err := redisStore.NewStore(10, "tcp", cfg.RedisAddr(), "", cfg.RedisPassword, []byte(cfg.SessionSecret))
	if err != nil {
		log.Warn("redis session store unavailable, using cookie sessions", zap.Error(err))
		cookieStore := cookie.NewStore([]byte(cfg.SessionSecret))
		cookieStore.Options(options)
		return cookieStore
	}
	store.Options(options)
	return store
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "CoUp API is running",
		})
	}
}
