package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
	"github.com/shrixloki/lokiai-biometrics/internal/cache"
	"github.com/shrixloki/lokiai-biometrics/internal/database"
	apierrors "github.com/shrixloki/lokiai-biometrics/internal/errors"
	"github.com/shrixloki/lokiai-biometrics/internal/monitoring"
	"github.com/shrixloki/lokiai-biometrics/internal/privacy"
	"github.com/shrixloki/lokiai-biometrics/internal/ratelimit"
	"github.com/shrixloki/lokiai-biometrics/internal/security"
	"github.com/shrixloki/lokiai-biometrics/internal/types"
)

const (
	serviceVersion = "1.0.0"

	// Enrollment minimums. Fewer samples produce thresholds too noisy to
	// calibrate against.
	minKeystrokeSamples = 5
	minVoiceSamples     = 3
)

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	port := getEnvOrDefault("PORT", "8080")
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	adminSecret := os.Getenv("ADMIN_JWT_SECRET")
	cacheTTL := getEnvDuration("MODEL_CACHE_TTL", 15*time.Minute)
	retentionDays := getEnvInt("ATTEMPT_RETENTION_DAYS", privacy.DefaultRetentionDays)
	similarityThreshold := getEnvFloat("SIMILARITY_THRESHOLD", biometric.DefaultSimilarityThreshold)

	if adminSecret == "" {
		slog.Warn("ADMIN_JWT_SECRET not set, admin endpoints are disabled")
	}

	// Initialize database
	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Monitoring
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	// Model cache and scoring engines
	modelCache := cache.NewModelCache(cacheTTL)
	attemptWriter := database.NewAttemptWriter(repo)
	engine := biometric.NewEngine(attemptWriter, slog.Default())
	voiceEngine := biometric.NewSimilarityEngine(biometric.DefaultSimilarityWeights(), similarityThreshold)

	// Privacy service with scheduled retention sweeps
	privacyService := privacy.NewService(repo, modelCache, retentionDays, slog.Default())
	retentionCtx, stopRetention := context.WithCancel(context.Background())
	defer stopRetention()
	go privacyService.Run(retentionCtx, 6*time.Hour)

	// Rate limiting with Redis and in-memory fallback
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, 0)
	if err != nil {
		slog.Warn("Redis initialization failed, continuing with fallback", "error", err)
	}
	defer redisClient.Close()
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	r := gin.New()

	// Monitoring first so every request is captured
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))

	// Error handling middleware
	r.Use(apierrors.ErrorHandler())
	r.Use(apierrors.RecoveryHandler())

	// Security middleware
	securityConfig := security.DefaultSecurityConfig()
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)
	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(securityMiddleware.BodySizeLimit)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     securityConfig.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(ratelimit.IPMiddleware(limiter, appMetrics))

	// Operational endpoints
	r.GET("/health", func(c *gin.Context) {
		redisStatus := "disabled"
		if redisClient.IsEnabled() {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			if err := redisClient.HealthCheck(ctx); err != nil {
				redisStatus = "unreachable"
			} else {
				redisStatus = "ok"
			}
			cancel()
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "biometric-auth",
			"version":   serviceVersion,
			"redis":     redisStatus,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, modelCache.Stats())
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": db.GetPoolStats(),
		})
	})

	r.GET("/pools/ratelimit", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "ratelimit",
			"stats": limiter.GetStats(),
		})
	})

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Performance profiling endpoints (development only)
	if os.Getenv("ENABLE_PROFILING") == "true" {
		slog.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/*filepath", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	}

	api := r.Group("/api/biometrics")

	// Enrollment status for one user
	api.GET("/status", func(c *gin.Context) {
		username := c.Query("username")
		if !types.ValidUsername(username) {
			appErr := apierrors.NewValidationError("username query parameter is required")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		status, err := repo.GetUserStatus(c.Request.Context(), username)
		if err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, status)
	})

	api.POST("/keystroke/enroll", func(c *gin.Context) {
		start := time.Now()

		var req types.KeystrokeEnrollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := apierrors.NewValidationError("invalid request body: " + err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if !types.ValidUsername(req.Username) {
			appErr := apierrors.NewValidationError("invalid username")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		var stored *biometric.StoredModel
		sampleCount := len(req.Samples)

		switch {
		case req.Model != nil:
			// Client-trained autoencoder export
			if err := req.Model.Validate(); err != nil {
				appErr := apierrors.ToAppError(err)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			stored = &biometric.StoredModel{
				Type:        biometric.ModelTypeAutoencoder,
				Autoencoder: req.Model,
			}

		default:
			if sampleCount < minKeystrokeSamples {
				appErr := apierrors.NewValidationError(
					"at least " + strconv.Itoa(minKeystrokeSamples) + " keystroke samples are required")
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}

			samples := make([][]float64, len(req.Samples))
			for i, s := range req.Samples {
				samples[i] = biometric.Canonicalize(s)
			}

			model, err := biometric.FitStatisticalModel(samples, req.Percentile)
			if err != nil {
				appErr := apierrors.ToAppError(err)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
			stored = &biometric.StoredModel{
				Type:        biometric.ModelTypeStatistical,
				Statistical: model,
			}
		}

		if err := repo.SaveKeystrokeModel(c.Request.Context(), req.Username, stored, sampleCount); err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		modelCache.InvalidateUser(req.Username)
		appMetrics.IncrementEnrollment()
		appLogger.EnrollmentLogger(req.Username, string(stored.Type), sampleCount, time.Since(start))

		c.JSON(http.StatusOK, types.EnrollResponse{
			Success:     true,
			Username:    req.Username,
			Method:      string(stored.Type),
			SampleCount: sampleCount,
			Message:     "keystroke model enrolled",
		})
	})

	api.POST("/keystroke/verify", func(c *gin.Context) {
		start := time.Now()

		var req types.KeystrokeVerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := apierrors.NewValidationError("invalid request body: " + err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if !types.ValidUsername(req.Username) {
			appErr := apierrors.NewValidationError("invalid username")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if appErr := ratelimit.UserLimit(c, limiter, appMetrics, req.Username); appErr != nil {
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		features := req.ResolveFeatures()

		model, cacheHit, err := loadKeystrokeModel(c.Request.Context(), repo, modelCache, appMetrics, req.Username)
		if err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		result := engine.Authenticate(req.Username, features, model, biometric.RequestMeta{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})

		appMetrics.RecordAuthResult(result.Method, result.Authenticated)
		appLogger.AuthLogger(req.Username, result.Method, result.Authenticated,
			result.Score, result.Threshold, time.Since(start), cacheHit)

		c.JSON(http.StatusOK, gin.H{
			"username": req.Username,
			"result":   result,
		})
	})

	api.POST("/voice/enroll", func(c *gin.Context) {
		start := time.Now()

		var req types.VoiceEnrollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := apierrors.NewValidationError("invalid request body: " + err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if !types.ValidUsername(req.Username) {
			appErr := apierrors.NewValidationError("invalid username")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if len(req.Samples) < minVoiceSamples {
			appErr := apierrors.NewValidationError(
				"at least " + strconv.Itoa(minVoiceSamples) + " voice samples are required")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		reference, err := biometric.BuildReference(req.Samples)
		if err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if err := repo.SaveVoiceReference(c.Request.Context(), req.Username, reference, len(req.Samples)); err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		modelCache.InvalidateUser(req.Username)
		appMetrics.IncrementEnrollment()
		appLogger.EnrollmentLogger(req.Username, "voice", len(req.Samples), time.Since(start))

		c.JSON(http.StatusOK, types.EnrollResponse{
			Success:     true,
			Username:    req.Username,
			Method:      "voice",
			SampleCount: len(req.Samples),
			Message:     "voice reference enrolled",
		})
	})

	api.POST("/voice/verify", func(c *gin.Context) {
		start := time.Now()

		var req types.VoiceVerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := apierrors.NewValidationError("invalid request body: " + err.Error())
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if !types.ValidUsername(req.Username) {
			appErr := apierrors.NewValidationError("invalid username")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		if appErr := ratelimit.UserLimit(c, limiter, appMetrics, req.Username); appErr != nil {
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		reference, cacheHit, err := loadVoiceReference(c.Request.Context(), repo, modelCache, appMetrics, req.Username)
		if err != nil {
			appErr := apierrors.ToAppError(err)
			if appErr.Category == apierrors.CategoryModelMissing {
				appErr = apierrors.NewModelMissingError(req.Username)
			}
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		result, err := voiceEngine.Similarity(req.Features, reference)
		if err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// Fire-and-forget audit write, same contract as the keystroke path.
		attempt := biometric.Attempt{
			Timestamp: time.Now(),
			Username:  req.Username,
			Method:    "voice",
			Passed:    result.Authenticated,
			Score:     result.OverallSimilarity,
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			Reason:    "similarity " + strconv.FormatFloat(result.OverallSimilarity, 'f', 6, 64),
		}
		go func() {
			if err := attemptWriter.RecordAttempt(attempt); err != nil {
				appMetrics.IncrementAttemptLogFailure()
			}
		}()

		appMetrics.RecordAuthResult("voice", result.Authenticated)
		appLogger.AuthLogger(req.Username, "voice", result.Authenticated,
			result.OverallSimilarity, result.Threshold, time.Since(start), cacheHit)

		c.JSON(http.StatusOK, types.VoiceVerifyResponse{
			Success:  true,
			Username: req.Username,
			Result:   result,
		})
	})

	api.GET("/users", func(c *gin.Context) {
		users, err := repo.ListUsers(c.Request.Context())
		if err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
	})

	api.GET("/attempts/:username", func(c *gin.Context) {
		username := c.Param("username")
		if !types.ValidUsername(username) {
			appErr := apierrors.NewValidationError("invalid username")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		limit := 50
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
				limit = l
			}
		}

		attempts, err := repo.RecentAttempts(c.Request.Context(), username, limit)
		if err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"username": username, "attempts": attempts})
	})

	// Administrative endpoints, bearer-token protected
	admin := r.Group("/api/admin", security.AdminAuth(adminSecret))

	admin.DELETE("/users/:username", func(c *gin.Context) {
		username := c.Param("username")
		if !types.ValidUsername(username) {
			appErr := apierrors.NewValidationError("invalid username")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		deleted, err := privacyService.DeleteUserData(c.Request.Context(), username)
		if err != nil {
			appErr := apierrors.ToAppError(err)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":        "user data deleted",
			"models_deleted": deleted,
		})
	})

	admin.PUT("/config/voice-threshold", func(c *gin.Context) {
		var body struct {
			Threshold float64 `json:"threshold"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			appErr := apierrors.NewValidationError("invalid request body")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if body.Threshold <= 0 || body.Threshold > 1 {
			appErr := apierrors.NewValidationError("threshold must be in (0, 1]")
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		voiceEngine.SetThreshold(body.Threshold)
		slog.Info("voice similarity threshold updated", "threshold", body.Threshold)

		c.JSON(http.StatusOK, gin.H{"threshold": voiceEngine.Threshold()})
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	stopRetention()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// loadKeystrokeModel resolves a user's keystroke model through the cache. A
// missing model is not an error here; the engine turns it into a definite
// rejection with guidance to enroll.
func loadKeystrokeModel(ctx context.Context, repo *database.Repository, models *cache.ModelCache, metrics *monitoring.Metrics, username string) (*biometric.StoredModel, bool, error) {
	if cached, ok := models.Get(cache.KeystrokeKey(username)); ok {
		metrics.IncrementCacheHit()
		return cached.(*biometric.StoredModel), true, nil
	}
	metrics.IncrementCacheMiss()

	model, err := repo.LoadKeystrokeModel(ctx, username)
	if errors.Is(err, biometric.ErrModelMissing) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	models.Set(cache.KeystrokeKey(username), model)
	return model, false, nil
}

// loadVoiceReference resolves a user's voice reference through the cache.
func loadVoiceReference(ctx context.Context, repo *database.Repository, models *cache.ModelCache, metrics *monitoring.Metrics, username string) (biometric.VoiceFeatureSet, bool, error) {
	if cached, ok := models.Get(cache.VoiceKey(username)); ok {
		metrics.IncrementCacheHit()
		return cached.(biometric.VoiceFeatureSet), true, nil
	}
	metrics.IncrementCacheMiss()

	reference, err := repo.LoadVoiceReference(ctx, username)
	if err != nil {
		return biometric.VoiceFeatureSet{}, false, err
	}

	models.Set(cache.VoiceKey(username), reference)
	return reference, false, nil
}

// Helper function for environment variables with defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
