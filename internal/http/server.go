package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/jmehdipour/satisfaction-predictor/internal/config"
	"github.com/jmehdipour/satisfaction-predictor/internal/http/middleware"
	"github.com/jmehdipour/satisfaction-predictor/internal/service/prediction"
	"github.com/jmehdipour/satisfaction-predictor/internal/util"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

// NewServer wires routes around an already bootstrapped prediction service.
// rds may be nil, which disables rate limiting.
func NewServer(cfg config.Config, svc *prediction.Service, rds *redis.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Renderer = newTemplateRenderer()
	e.Server.ReadTimeout = cfg.HTTP.ReadTimeout
	e.Server.WriteTimeout = cfg.HTTP.WriteTimeout

	extractor, err := ipExtractor(cfg.HTTP.TrustedProxies)
	if err != nil {
		logger.Warn("ignoring trusted proxies, using peer address", zap.Error(err))
		extractor = echo.ExtractIPDirect()
	}
	e.IPExtractor = extractor

	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.New}),
		requestLogger(logger),
	)
	if cfg.HTTP.BodyLimit != "" {
		e.Use(echoMid.BodyLimit(cfg.HTTP.BodyLimit))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/readyz", readyHandler(svc))

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      cfg.RateLimit.KeyPrefix,
		Window:         cfg.RateLimit.Window,
		RetryAfterHint: true,
		Logger:         logger,
	})

	// form
	e.GET("/", formHandler(svc))
	e.POST("/", formSubmitHandler(svc, logger), rlMW)

	// routes
	v1 := e.Group("/v1")
	v1.POST("/predict", predictHandler(svc, logger), rlMW)
	v1.GET("/vocabulary", vocabularyHandler(svc))
	v1.GET("/models", modelsHandler(svc))

	return &Server{e: e, log: logger}
}

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ServeHTTP lets the server be driven directly, mostly by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

// ipExtractor reads X-Forwarded-For only when the peer is one of the given
// proxies; otherwise the TCP peer address is the client IP.
func ipExtractor(proxies []string) (echo.IPExtractor, error) {
	if len(proxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}

	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: not an IP or CIDR", p)
			}
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			p = fmt.Sprintf("%s/%d", p, bits)
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}

func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
