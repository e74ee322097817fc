// =============================================================================
// 🌐 ConfigTrail 服务装配
// =============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/configtrail/api/handlers"
	"github.com/BaSui01/configtrail/config"
	"github.com/BaSui01/configtrail/ingest"
	"github.com/BaSui01/configtrail/internal/cache"
	"github.com/BaSui01/configtrail/internal/metrics"
	"github.com/BaSui01/configtrail/internal/server"
	"github.com/BaSui01/configtrail/rollback"
	"github.com/BaSui01/configtrail/store"
	"github.com/BaSui01/configtrail/watch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server 组装并持有服务的全部组件：存储、文件监听、
// 摄取管道、回滚协调器、缓存、HTTP 与指标服务器。
type Server struct {
	cfg     *config.Config
	secrets *config.Secrets
	logger  *zap.Logger

	collector   *metrics.Collector
	store       store.Store
	cacheClient *cache.LatestCache
	pipeline    *ingest.Pipeline
	watcher     *watch.Watcher
	coordinator *rollback.Coordinator

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
	watcherCancel     context.CancelFunc
}

// NewServer 创建未启动的服务实例
func NewServer(cfg *config.Config, secrets *config.Secrets, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		secrets: secrets,
		logger:  logger,
	}
}

// Start 按依赖顺序启动所有组件:
// 指标收集器 → 存储 → 缓存 → 摄取管道 → 文件监听 → HTTP 服务
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("configtrail", s.logger)

	if err := s.openStore(); err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if s.cfg.Cache.Enabled {
		c, err := cache.NewLatestCache(cache.Config{
			Addr:     s.cfg.Cache.Addr,
			Password: s.secrets.Redis.Password,
			DB:       s.cfg.Cache.DB,
			TTL:      s.cfg.Cache.TTL,
			PoolSize: s.cfg.Cache.PoolSize,
		}, s.logger)
		if err != nil {
			// 缓存不可用不阻止启动，读路径直接回退存储
			s.logger.Warn("latest-version cache unavailable, continuing without it", zap.Error(err))
		} else {
			s.cacheClient = c
		}
	}

	pipelineOpts := []ingest.PipelineOption{
		ingest.WithMetrics(s.collector),
		ingest.WithLogger(s.logger),
	}
	if s.cacheClient != nil {
		// 每个新版本写穿缓存，读路径才不会吐出过期的最新版本
		pipelineOpts = append(pipelineOpts, ingest.WithLatestCache(s.cacheClient))
	}
	pipeline, err := ingest.NewPipeline(s.cfg.Watcher.Path, s.store, pipelineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ingest pipeline: %w", err)
	}
	s.pipeline = pipeline

	// 启动时先吸收文件当前内容，已入库的内容会被去重
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := s.pipeline.LoadInitial(startCtx); err != nil {
		s.logger.Warn("initial ingest failed, waiting for file changes", zap.Error(err))
	}

	if err := s.startWatcher(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	writer := rollback.NewAtomicFileWriter(s.pipeline.Path(), s.logger)
	s.coordinator = rollback.NewCoordinator(s.store, writer, s.logger)

	if err := s.startHTTPServer(); err != nil {
		return err
	}
	s.startMetricsServer()

	s.logger.Info("configtrail started",
		zap.String("addr", s.httpManager.Addr()),
		zap.String("watched_path", s.pipeline.Path()),
	)
	return nil
}

// openStore 按配置的驱动打开版本存储
func (s *Server) openStore() error {
	timeout := s.cfg.Store.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	switch s.cfg.Store.Driver {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:        s.secrets.Mongo.URI,
			Database:   s.cfg.Store.Database,
			Collection: s.cfg.Store.Collection,
			Timeout:    timeout,
		}, s.logger)
		if err != nil {
			return err
		}
		s.store = st

	case "sqlite":
		st, err := store.NewGormStore(store.GormConfig{
			Driver: "sqlite",
			DSN:    s.cfg.Store.SQLitePath,
		}, s.logger)
		if err != nil {
			return err
		}
		s.store = st

	case "postgres":
		st, err := store.NewGormStore(store.GormConfig{
			Driver: "postgres",
			DSN:    s.secrets.Postgres.DSN,
		}, s.logger)
		if err != nil {
			return err
		}
		s.store = st

	case "memory":
		s.store = store.NewMemoryStore(s.logger)

	default:
		return fmt.Errorf("unsupported store driver: %s", s.cfg.Store.Driver)
	}

	return nil
}

// startWatcher 启动文件监听并接入摄取管道
func (s *Server) startWatcher() error {
	w, err := watch.NewWatcher([]string{s.cfg.Watcher.Path},
		watch.WithPollInterval(s.cfg.Watcher.PollInterval),
		watch.WithDebounceDelay(s.cfg.Watcher.DebounceDelay),
		watch.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.watcherCancel = cancel

	w.OnChange(func(event watch.Event) {
		s.pipeline.HandleEvent(ctx, event)
	})

	if err := w.Start(ctx); err != nil {
		cancel()
		return err
	}
	s.watcher = w
	return nil
}

// startHTTPServer 组装路由与中间件并启动 HTTP 服务
func (s *Server) startHTTPServer() error {
	configOpts := []handlers.ConfigHandlerOption{}
	if s.cacheClient != nil {
		configOpts = append(configOpts, handlers.WithLatestCache(s.cacheClient))
	}
	configOpts = append(configOpts, handlers.WithMetricsCollector(s.collector))

	configHandler := handlers.NewConfigHandler(s.store, s.coordinator, s.logger, configOpts...)
	watchHandler := handlers.NewWatchHandler(s.pipeline, s.collector, s.logger)

	healthHandler := handlers.NewHealthHandler(s.logger)
	healthHandler.RegisterCheck(handlers.NewStoreHealthCheck("store", s.store.Ping))
	if s.cacheClient != nil {
		healthHandler.RegisterCheck(handlers.NewCacheHealthCheck("cache", s.cacheClient.Ping))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", healthHandler.HandleReady)
	mux.HandleFunc("/readyz", healthHandler.HandleReady)
	mux.HandleFunc("/version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/api/v1/config", configHandler.HandleLatest)
	mux.HandleFunc("/api/v1/config/history", configHandler.HandleHistory)
	mux.HandleFunc("/api/v1/config/all", configHandler.HandleAll)
	mux.HandleFunc("/api/v1/config/versions/", configHandler.HandleByVersion)
	mux.HandleFunc("/api/v1/config/rollback/", configHandler.HandleRollback)
	mux.HandleFunc("/api/v1/config/watch", watchHandler.HandleWatch)

	rlCtx, rlCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rlCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSOrigins),
		RateLimiter(rlCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Server.AuthEnabled {
		skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
		middlewares = append(middlewares,
			APIKeyAuth([]string{s.secrets.API.Key}, skipAuthPaths, false, s.logger))
	}

	handler := Chain(mux, middlewares...)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	serverCfg.ReadTimeout = s.cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = s.cfg.Server.WriteTimeout
	serverCfg.IdleTimeout = 2 * s.cfg.Server.ReadTimeout
	serverCfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.httpManager = server.NewManager(handler, serverCfg, s.logger)
	if err := s.httpManager.Start(); err != nil {
		rlCancel()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// startMetricsServer 在独立端口暴露 Prometheus 指标
func (s *Server) startMetricsServer() {
	if s.cfg.Server.MetricsPort <= 0 {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	cfg := server.DefaultConfig()
	cfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)

	s.metricsManager = server.NewManager(mux, cfg, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		s.logger.Warn("failed to start metrics server", zap.Error(err))
		s.metricsManager = nil
		return
	}
	s.logger.Info("metrics server started", zap.String("addr", cfg.Addr))
}

// WaitForShutdown 阻塞等待退出信号，随后关停所有组件
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.shutdownComponents()
}

// Shutdown 立即关停所有组件
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP server shutdown error", zap.Error(err))
		}
	}
	s.shutdownComponents()
}

// shutdownComponents 按启动的逆序关闭 HTTP 之外的组件
func (s *Server) shutdownComponents() {
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn("watcher stop error", zap.Error(err))
		}
	}
	if s.watcherCancel != nil {
		s.watcherCancel()
	}

	if s.metricsManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics server shutdown error", zap.Error(err))
		}
		cancel()
	}

	if s.cacheClient != nil {
		if err := s.cacheClient.Close(); err != nil {
			s.logger.Warn("cache close error", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(context.Background()); err != nil {
			s.logger.Warn("store close error", zap.Error(err))
		}
	}

	s.logger.Info("configtrail stopped")
}
