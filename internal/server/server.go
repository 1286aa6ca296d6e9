package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/girderhq/girder/internal/auth"
	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/config"
	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/girderhq/girder/internal/credential"
	"github.com/girderhq/girder/internal/provider"
	"github.com/girderhq/girder/internal/ratelimit"
	"github.com/girderhq/girder/internal/webhook"
	"github.com/girderhq/girder/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type (
	// Server hosts girder's HTTP surface: the OAuth2 authorization
	// endpoints, the provider connect flow, webhook intake and the
	// connection status API.
	Server struct {
		logger *zap.Logger
		cfg    *config.GirderConfig
		router *gin.Engine

		auth     *auth.Server
		vault    *credential.Vault
		registry *provider.Registry
		limiter  *ratelimit.Limiter
		metrics  *metrics.Metrics
		errors   *errorx.ErrorHandler

		// webhooks maps provider name to its signature verifier
		webhooks map[string]*webhook.Verifier
		// pending holds connect states awaiting their OAuth callback
		pending *ttlcache.Cache[string, *pendingConnect]

		ipLimiters *ttlcache.Cache[string, *rate.Limiter]
		throttleMu sync.Mutex

		client  *http.Client
		httpSrv *http.Server
	}
)

// NewServer assembles the HTTP server. Routes are not registered until
// RegisterRoutes runs; gin resolves handler chains at route-registration
// time, so all middleware must be installed here first.
func NewServer(logger *zap.Logger, cfg *config.GirderConfig, authSrv *auth.Server,
	vault *credential.Vault, registry *provider.Registry, limiter *ratelimit.Limiter,
	m *metrics.Metrics) (*Server, error) {
	cfg.Server.SetServerDefaults()
	cfg.Webhook.SetWebhookDefaults()

	s := &Server{
		logger:   logger.Named("server"),
		cfg:      cfg,
		router:   gin.New(),
		auth:     authSrv,
		vault:    vault,
		registry: registry,
		limiter:  limiter,
		metrics:  m,
		errors:   errorx.NewErrorHandler(logger),
		webhooks: make(map[string]*webhook.Verifier),
		pending: ttlcache.New(
			ttlcache.WithTTL[string, *pendingConnect](connectStateTTL),
			ttlcache.WithDisableTouchOnHit[string, *pendingConnect](),
		),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	go s.pending.Start()

	for _, name := range registry.Names() {
		prov, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		s.webhooks[name] = webhook.NewVerifier(prov.WebhookSecret, cfg.Webhook.Tolerance)
	}

	if cfg.Server.Throttle.Enabled {
		s.ipLimiters = ttlcache.New(
			ttlcache.WithTTL[string, *rate.Limiter](throttleIdleTTL),
		)
		go s.ipLimiters.Start()
	}

	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.recoveryMiddleware())
	if cfg.Metrics.Enabled {
		s.router.Use(m.Middleware())
	}
	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(cnst.AppName))
	}

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: s.router,
	}
	return s, nil
}

// RegisterRoutes registers all HTTP routes.
func (s *Server) RegisterRoutes() {
	s.router.GET("/health_check", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Health check passed.",
		})
	})

	if s.cfg.Metrics.Enabled {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	throttle := s.throttleMiddleware()

	// Create OAuth group with optional CORS middleware
	oauthGroup := s.router.Group("")
	if cors := s.cfg.Auth.CORS; cors != nil {
		oauthCorsMiddleware := s.corsMiddleware(cors)
		s.router.OPTIONS("/*path", oauthCorsMiddleware)
		oauthGroup.Use(oauthCorsMiddleware)
	}

	oauthGroup.GET("/.well-known/oauth-authorization-server", s.handleOAuthServerMetadata)
	oauthGroup.GET("/authorize", s.handleOAuthAuthorize)
	oauthGroup.POST("/token", throttle, s.handleOAuthToken)
	oauthGroup.POST("/register", throttle, s.handleOAuthRegister)
	oauthGroup.POST("/revoke", throttle, s.handleOAuthRevoke)

	s.router.GET("/connect", throttle, s.handleConnect)
	s.router.GET("/connect/callback", s.handleConnectCallback)

	s.router.POST("/webhooks/:provider", s.handleWebhook)

	api := s.router.Group("/api", s.requireBearer())
	api.GET("/connections/:provider/:identity", s.handleConnectionStatus)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpSrv.Addr))
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server terminated", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests and stops the background caches.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.pending.Stop()
	if s.ipLimiters != nil {
		s.ipLimiters.Stop()
	}
	return s.httpSrv.Shutdown(ctx)
}
