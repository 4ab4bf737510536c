// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"offer-estimation/internal/catalog"
	"offer-estimation/internal/common/aws"
	"offer-estimation/internal/common/camunda"
	"offer-estimation/internal/common/config"
	"offer-estimation/internal/common/database"
	"offer-estimation/internal/common/logger"
	"offer-estimation/internal/common/observability"
	"offer-estimation/internal/estimation/calculation"
	"offer-estimation/internal/estimation/interpreter"
	"offer-estimation/internal/estimation/learning"
	"offer-estimation/internal/estimation/matcher"
	"offer-estimation/internal/estimation/offertext"
	"offer-estimation/internal/estimation/risk"
	"offer-estimation/internal/estimation/rules"
	"offer-estimation/internal/store"
	"offer-estimation/pkg/registry"

	// Estimation Workers (5)
	aor "offer-estimation/internal/workers/estimation/analyze-offer-risks"
	aot "offer-estimation/internal/workers/estimation/assemble-offer-text"
	cop "offer-estimation/internal/workers/estimation/calculate-offer-price"
	id "offer-estimation/internal/workers/estimation/interpret-description"
	mc "offer-estimation/internal/workers/estimation/match-components"

	// Learning Workers (3)
	ace "offer-estimation/internal/workers/learning/auto-calibrate-estimates"
	cpf "offer-estimation/internal/workers/learning/collect-project-feedback"
	rca "offer-estimation/internal/workers/learning/record-calibration-adjustment"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// workerTimeout prefers the worker config, then the activity registry.
func workerTimeout(cfg *config.Config, activities *registry.ActivityRegistry, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	if activities != nil {
		if a, ok := activities.Lookup(taskType); ok {
			if d, err := a.TimeoutDuration(); err == nil && d > 0 {
				return d
			}
		}
	}
	return fallback
}

func loadActivityRegistry(path string, log *zap.Logger) *registry.ActivityRegistry {
	if path == "" {
		return nil
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("Activity registry unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}
	if err := reg.Validate(); err != nil {
		log.Warn("Activity registry invalid, ignoring it", zap.String("path", path), zap.Error(err))
		return nil
	}
	log.Info("Activity registry loaded", zap.String("path", path), zap.Int("activities", len(reg.Activities)))
	return reg
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	if err := config.RequireWorkerInfrastructure(cfg); err != nil {
		zapLog.Fatal("worker infrastructure config invalid", zap.Error(err))
	}

	obs := observability.New("worker-manager", cfg.Observability, log)
	defer obs.Shutdown(context.Background())

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda)
		if err != nil {
			return err
		}
		return zeebe.HealthCheck(ctx)
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(ctx, cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if err := store.EnsureSchema(ctx, pg.DB, store.DialectPostgres); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	sqlStore := store.New(pg.DB, log, store.WithQueryTimeout(config.GetDuration(cfg.Database.Postgres.QueryTimeout)))

	// --- Init Catalog ---
	lookup, closeCatalog, err := newCatalogLookup(ctx, cfg, pg, zapLog, log)
	if err != nil {
		zapLog.Fatal("catalog initialization failed", zap.Error(err))
	}
	defer closeCatalog()
	zapLog.Info("Catalog ready", zap.String("source", cfg.Estimation.Catalog.Source))

	// --- Init Notification Client ---
	var publisher *aws.SNSClient
	if cfg.Notifications.SNS.Enabled {
		publisher, err = aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		zapLog.Info("SNS publisher ready", zap.String("topicArn", publisher.TopicARN()))
	}

	// --- Init Engines ---
	base := cfg.Estimation.Coefficients
	learner := learning.NewEngine(sqlStore, base, cfg.Learning, log)

	coefficients, err := learner.CurrentCoefficients(ctx, base)
	if err != nil {
		zapLog.Warn("calibration trail unavailable, using configured coefficients", zap.Error(err))
		coefficients = base
	}

	ruleSet, err := loadRules(cfg.Estimation.RulesPath)
	if err != nil {
		zapLog.Fatal("rule tables invalid", zap.Error(err))
	}
	interp, err := interpreter.New(ruleSet, interpreter.WithLogger(log))
	if err != nil {
		zapLog.Fatal("interpreter initialization failed", zap.Error(err))
	}

	texts := offertext.NewDefaultEngine(log)
	if cfg.Estimation.TemplatesPath != "" {
		templates, err := offertext.LoadTemplatesOverDefaults(cfg.Estimation.TemplatesPath)
		if err != nil {
			zapLog.Fatal("offer text templates invalid", zap.Error(err))
		}
		texts = offertext.NewEngine(templates, log)
	}

	calculator := calculation.NewEngine(coefficients, log)
	risks := risk.NewEngine(risk.DefaultRules(), cfg.Risk.WithMinimumMargin(coefficients.MinimumMarginPct), log)
	components := matcher.New(lookup, coefficients, log)

	activities := loadActivityRegistry(cfg.App.ActivityRegistry, zapLog)

	// --- START: Register the 8 estimation and learning workers ---
	var (
		workers   []*camunda.CamundaWorker
		taskTypes []string
	)
	register := func(taskType string, handler camunda.JobHandler) {
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handler, obs, log))
		taskTypes = append(taskTypes, taskType)
	}

	// --- 1. Estimation Workers (5) ---
	if config.IsWorkerEnabled(cfg, id.TaskType) {
		wcfg := id.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, id.TaskType, wcfg.Timeout)
		register(id.TaskType, id.NewHandler(wcfg, interp, log))
	}

	if config.IsWorkerEnabled(cfg, mc.TaskType) {
		wcfg := mc.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, mc.TaskType, wcfg.Timeout)
		register(mc.TaskType, mc.NewHandler(wcfg, components, log))
	}

	if config.IsWorkerEnabled(cfg, cop.TaskType) {
		wcfg := cop.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, cop.TaskType, wcfg.Timeout)
		register(cop.TaskType, cop.NewHandler(wcfg, calculator, sqlStore, learner, log))
	}

	if config.IsWorkerEnabled(cfg, aor.TaskType) {
		wcfg := aor.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, aor.TaskType, wcfg.Timeout)
		register(aor.TaskType, aor.NewHandler(wcfg, risks, log))
	}

	if config.IsWorkerEnabled(cfg, aot.TaskType) {
		wcfg := aot.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, aot.TaskType, wcfg.Timeout)
		register(aot.TaskType, aot.NewHandler(wcfg, texts, sqlStore, log))
	}

	// --- 2. Learning Workers (3) ---
	if config.IsWorkerEnabled(cfg, cpf.TaskType) {
		wcfg := cpf.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, cpf.TaskType, wcfg.Timeout)
		register(cpf.TaskType, cpf.NewHandler(wcfg, learner, log))
	}

	if config.IsWorkerEnabled(cfg, ace.TaskType) {
		wcfg := ace.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, ace.TaskType, wcfg.Timeout)
		var p ace.Publisher
		if publisher != nil {
			p = publisher
		}
		register(ace.TaskType, ace.NewHandler(wcfg, learner, p, log))
	}

	if config.IsWorkerEnabled(cfg, rca.TaskType) {
		wcfg := rca.LoadConfig()
		wcfg.Timeout = workerTimeout(cfg, activities, rca.TaskType, wcfg.Timeout)
		register(rca.TaskType, rca.NewHandler(wcfg, learner, base, log))
	}
	zapLog.Info("Workers registered successfully", zap.Int("count", len(workers)))
	if activities != nil {
		if missing := activities.Missing(taskTypes); len(missing) > 0 {
			zapLog.Warn("Workers without activity registry entry", zap.Strings("taskTypes", missing))
		}
	}

	// --- Health & Metrics Server ---
	addr := cfg.Observability.MetricsAddr
	if addr == "" {
		addr = ":8080"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if err := pg.Ping(r.Context()); err != nil {
			status, code = "postgres unavailable", http.StatusServiceUnavailable
		} else if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "zeebe unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/activities", func(w http.ResponseWriter, r *http.Request) {
		if activities == nil {
			http.Error(w, "activity registry not loaded", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(activities)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func loadRules(path string) (*rules.RuleSet, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.Load(path)
}

// newCatalogLookup builds the configured catalog source and puts the Redis
// cache in front of it when a TTL is set.
func newCatalogLookup(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, zapLog *zap.Logger, log logger.Logger) (catalog.Lookup, func(), error) {
	var lookup catalog.Lookup
	closeFn := func() {}

	switch cfg.Estimation.Catalog.Source {
	case config.CatalogSQL:
		lookup = catalog.NewSQLLookup(pg.DB)

	case config.CatalogElasticsearch:
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, closeFn, err
		}
		lookup = catalog.NewElasticLookup(esClient.Client, cfg.Estimation.Catalog.Index)

	default:
		var static *catalog.StaticLookup
		var err error
		if cfg.Estimation.Catalog.Path != "" {
			static, err = catalog.LoadStatic(cfg.Estimation.Catalog.Path)
		} else {
			static, err = catalog.DefaultStatic()
		}
		if err != nil {
			return nil, closeFn, err
		}
		lookup = static
	}

	if cfg.Estimation.Catalog.CacheTTL <= 0 {
		return lookup, closeFn, nil
	}

	redis := database.NewRedis(cfg.Database.Redis)
	err := retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		redis.Close()
		return nil, closeFn, err
	}
	ttl := time.Duration(cfg.Estimation.Catalog.CacheTTL) * time.Second
	return catalog.NewCachedLookup(lookup, redis.Client, ttl, log), func() { redis.Close() }, nil
}
