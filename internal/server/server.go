package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/kpireport/internal/clock"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/dashboard"
	"github.com/smallbiznis/kpireport/internal/instant"
	kpiservice "github.com/smallbiznis/kpireport/internal/kpi/service"
	"github.com/smallbiznis/kpireport/internal/observability"
	obsmiddleware "github.com/smallbiznis/kpireport/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kpireport/internal/observability/metrics"
	obstracing "github.com/smallbiznis/kpireport/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(config.NewReportHolder),
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log, obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// Server serves the dashboard site and the KPI API over the latest run's
// output directory.
type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	clock        clock.Clock
	times        *instant.Normalizer
	report       *config.ReportHolder
	aggregator   *kpiservice.Aggregator
	registry     *prometheus.Registry
	metrics      *obsmetrics.RunMetrics
	dashboardDir string
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Times      *instant.Normalizer
	Report     *config.ReportHolder
	Aggregator *kpiservice.Aggregator
	Registry   *prometheus.Registry
	Metrics    *obsmetrics.RunMetrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.handler"),
		clock:        p.Clock,
		times:        p.Times,
		report:       p.Report,
		aggregator:   p.Aggregator,
		registry:     p.Registry,
		metrics:      p.Metrics,
		dashboardDir: p.Cfg.DashboardDir,
	}

	svc.registerAPIRoutes()
	svc.registerMetricsRoute()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/cohort", s.GetCohort)

		kpis := api.Group("/kpis")
		{
			kpis.GET("/global", s.GetGlobalKPIs)
		}
	}
}

func (s *Server) registerMetricsRoute() {
	if s.registry == nil {
		return
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			AbortWithError(c, ErrNotFound)
			return
		}

		if fileExists(s.dashboardDir, c.Request.URL.Path) {
			c.File(filepath.Join(s.dashboardDir, filepath.Clean(c.Request.URL.Path)))
			return
		}

		if c.Request.URL.Path == "/" && fileExists(s.dashboardDir, "/"+dashboard.IndexFile) {
			c.File(filepath.Join(s.dashboardDir, dashboard.IndexFile))
			return
		}

		AbortWithError(c, ErrNotFound)
	})
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean("/" + reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || clean == ".." {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
