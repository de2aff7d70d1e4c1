package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/billingportal/internal/accesslog"
	"github.com/smallbiznis/billingportal/internal/auth"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	"github.com/smallbiznis/billingportal/internal/auth/session"
	"github.com/smallbiznis/billingportal/internal/config"
	"github.com/smallbiznis/billingportal/internal/customerref"
	"github.com/smallbiznis/billingportal/internal/documents"
	documentsdomain "github.com/smallbiznis/billingportal/internal/documents/domain"
	"github.com/smallbiznis/billingportal/internal/gateway"
	"github.com/smallbiznis/billingportal/internal/observability"
	obsmiddleware "github.com/smallbiznis/billingportal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/billingportal/internal/observability/metrics"
	obstracing "github.com/smallbiznis/billingportal/internal/observability/tracing"
	"github.com/smallbiznis/billingportal/internal/profile"
	profiledomain "github.com/smallbiznis/billingportal/internal/profile/domain"
	"github.com/smallbiznis/billingportal/internal/ratelimit"
	"github.com/smallbiznis/billingportal/internal/signup"
	signupdomain "github.com/smallbiznis/billingportal/internal/signup/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	profile.Module,
	signup.Module,
	customerref.Module,
	gateway.Module,
	accesslog.Module,
	documents.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
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

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	authsvc         authdomain.Service
	sessions        *session.Manager
	resolver        *session.Resolver
	profilesvc      profiledomain.Service
	signupsvc       signupdomain.Service
	documentsvc     documentsdomain.Service
	downloadLimiter *ratelimit.DownloadLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Authsvc         authdomain.Service
	Sessions        *session.Manager
	Resolver        *session.Resolver
	Profilesvc      profiledomain.Service
	Signupsvc       signupdomain.Service
	Documentsvc     documentsdomain.Service
	DownloadLimiter *ratelimit.DownloadLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		resolver:        p.Resolver,
		profilesvc:      p.Profilesvc,
		signupsvc:       p.Signupsvc,
		documentsvc:     p.Documentsvc,
		downloadLimiter: p.DownloadLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerUIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Profile --------
	api.GET("/profile", s.GetProfile)
	api.PATCH("/profile", s.UpdateProfile)

	// -------- Dashboard --------
	api.GET("/dashboard", s.GetDashboard)

	// -------- Documents --------
	api.GET("/documents", s.ListDocuments)
	api.GET("/documents/:id/pdf", s.DownloadRateLimit(), s.DownloadPDF)
	api.GET("/documents/:id/xml", s.DownloadRateLimit(), s.DownloadXML)
}

func (s *Server) registerUIRoutes() {
	r := s.engine.Group("/")

	r.GET("/", s.redirectIfLoggedIn(), s.serveIndex)
	r.GET("/login", s.redirectIfLoggedIn(), s.serveIndex)
	r.GET("/register", s.redirectIfLoggedIn(), s.serveIndex)

	r.GET("/dashboard", s.PageAuthRequired(), s.serveIndex)
	r.GET("/documents", s.PageAuthRequired(), s.serveIndex)
	r.GET("/profile", s.PageAuthRequired(), s.serveIndex)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		// static assets
		if fileExists(s.publicDir(), c.Request.URL.Path) {
			c.File(filepath.Join(s.publicDir(), filepath.Clean(c.Request.URL.Path)))
			return
		}
		AbortWithError(c, ErrNotFound)
	})
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

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
