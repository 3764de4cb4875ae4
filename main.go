package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/scholarseva/intake/handlers"
	"github.com/scholarseva/intake/internal/config"
	"github.com/scholarseva/intake/internal/database"
	"github.com/scholarseva/intake/internal/intake"
	"github.com/scholarseva/intake/internal/mailer"
	"github.com/scholarseva/intake/internal/storage"
	"github.com/scholarseva/intake/internal/tabular"
	"github.com/scholarseva/intake/internal/verifications"
	"github.com/scholarseva/intake/pkg/logger"
	"github.com/scholarseva/intake/pkg/metrics"
	"github.com/scholarseva/intake/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: reference=%s submitted=%s smtp=%v mongo=%v redis=%v",
		cfg.Tables.ReferencePath, cfg.Tables.SubmittedPath,
		cfg.Mail.Host != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early so the rate-limiter can use it when configured
	var importedRedis *redis.Client
	if cfg.Redis.Host != "" {
		importedRedis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password})
		if err := importedRedis.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			importedRedis = nil
		} else {
			logger.Infof("Connected to Redis for rate limiting: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && importedRedis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(importedRedis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	refStore := tabular.NewStore(cfg.Tables.ReferencePath)
	submittedStore := tabular.NewStore(cfg.Tables.SubmittedPath)

	// shared runtime var used by readiness; set once Mongo connects below
	var mongoClient *mongo.Client

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint — return 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		// the reference table may legitimately be absent before provisioning;
		// any other load error marks the service not ready
		if _, _, err := refStore.Load(); err == nil || errors.Is(err, tabular.ErrUnavailable) {
			deps["reference_table"] = true
		} else {
			deps["reference_table"] = false
			ready = false
		}

		if cfg.Redis.Host != "" && cfg.RateLimit.UseRedis {
			deps["redis"] = importedRedis != nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		// document-store sink readiness when configured
		if cfg.MongoDB.URI != "" {
			deps["mongodb"] = mongoClient != nil && mongoClient.Ping(c.Request.Context(), nil) == nil
			if !deps["mongodb"] {
				ready = false
			}
		} else {
			deps["mongodb"] = true
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": time.Since(startTime).String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// Mail forwarder: one delivery attempt per submission, failures degrade
	// the outcome instead of failing it
	forwarder := mailer.New(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		To:       cfg.Mail.To,
	})

	pipeline := intake.NewPipeline(intake.NewAssembler(cfg.Uploads.Dir), submittedStore, forwarder)
	pipeline.KeepUploads(cfg.Uploads.Keep)

	// Optional document-store sink (MongoDB). Retry/backoff tolerates
	// startup races against the database container.
	ctx := context.Background()
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v; document-store sink disabled", err)
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
			col := mongoClient.Database(cfg.MongoDB.Database).Collection(verifications.CollectionName)
			pipeline.WithRepository(verifications.NewMongoRepo(col))
			logger.Infof("document-store sink enabled: %s.%s", cfg.MongoDB.Database, verifications.CollectionName)
		}
	}

	// Optional artifact archive (MinIO)
	if mcfg := storage.LoadMinIOConfig(); mcfg.Endpoint != "" {
		archive, err := storage.NewArchive(mcfg)
		if err != nil {
			logger.Warnf("could not initialize artifact archive: %v; archiving disabled", err)
		} else {
			pipeline.WithArchive(archive)
			logger.Infof("artifact archive enabled: bucket %s", mcfg.Bucket)
		}
	}

	handlers.NewIntakeHandler(refStore, submittedStore, pipeline, cfg.DownloadToken).Register(r)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting intake service on %s", addr)
	// run server in goroutine and keep process alive so the container does
	// not exit silently if r.Run ever returns.
	go func() {
		if err := r.Run(addr); err != nil {
			logger.Fatalf("server failed: %v", err)
		}
	}()
	select {}
}
