package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventpass/internal/auth"
	"eventpass/internal/config"
	"eventpass/internal/credential"
	"eventpass/internal/handler"
	"eventpass/internal/httpmiddleware"
	"eventpass/internal/metrics"
	"eventpass/internal/queue"
	"eventpass/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.StoreBackend, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Printf("store backend: %s", cfg.StoreBackend)

	health := map[string]handler.HealthCheck{
		"db": func(ctx context.Context) bool { return db.Ping(ctx) == nil },
	}

	q, redisClient := newQueue(cfg)
	if redisClient != nil {
		defer redisClient.Close()
		health["redis"] = redisClient.Healthy
	}

	signer, err := credential.NewHMACSigner(cfg.CredentialSigningKey, cfg.CredentialIssuer)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	if cfg.CoordinatorSecretKey == "" {
		log.Println("WARNING: COORDINATOR_SECRET_KEY not set, staff login disabled")
	}

	h := handler.New(handler.Deps{
		Store:        db,
		Signer:       signer,
		Codec:        credential.NewCodec(cfg.QRSize),
		Auth:         auth.NewService(db, cfg.CoordinatorSecretKey, cfg.SessionIssuer, cfg.SessionSigningKey, cfg.SessionTTL),
		Queue:        q,
		Metrics:      recorder,
		Health:       health,
		SecureCookie: cfg.Production(),
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	h.Routes(r,
		auth.CoordinatorAuth(cfg.SessionSigningKey, cfg.SessionIssuer),
		httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware(),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// newQueue returns the render-job queue, or nil when no worker can consume it:
// an in-process queue is invisible to the worker binary.
func newQueue(cfg config.App) (queue.Queue, *store.Redis) {
	if cfg.QueueBackend == config.QueueMemory {
		log.Println("QUEUE_BACKEND=memory: render jobs are not queued")
		return nil, nil
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	return nonBlocking{queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)}, redisClient
}

// nonBlocking keeps a slow redis from stalling registration.
type nonBlocking struct{ queue.Queue }

func (n nonBlocking) Publish(ctx context.Context, msg queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return n.Queue.Publish(ctx, msg)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
