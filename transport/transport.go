package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"temporal-sa/rsa-oaep-codec/auth"
	"temporal-sa/rsa-oaep-codec/codec"
	"temporal-sa/rsa-oaep-codec/config"

	"go.temporal.io/sdk/converter"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	HealthPath      = "/health"
	NamespaceHeader = "X-Namespace"
)

type (
	TransportProvider interface {
		Start() error
		Stop() error
	}

	HandlerOptions struct {
		Codec       converter.PayloadCodec
		CorsOrigins []string
		// AuthManager is nil when the codec endpoints are unauthenticated
		AuthManager *auth.AuthManager
		AuthType    string
		Logger      *zap.Logger
	}

	httpTransportProvider struct {
		host     string
		port     int
		server   *http.Server
		listener net.Listener
		logger   *zap.Logger
	}
)

func newTransportProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger,
	payloadCodec *codec.Codec, authManager *auth.AuthManager) (TransportProvider, error) {

	cfg := configProvider.GetCodecConfig()

	options := HandlerOptions{
		Codec:       payloadCodec,
		CorsOrigins: cfg.Server.CorsOrigins,
		Logger:      logger,
	}
	if cfg.Authentication != nil && authManager != nil {
		options.AuthManager = authManager
		options.AuthType = cfg.Authentication.Type
	}

	transportManager := &httpTransportProvider{
		host:   cfg.Server.Host,
		port:   cfg.Server.Port,
		logger: logger,
	}
	transportManager.server = &http.Server{
		Handler:           NewHandler(options),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return transportManager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return transportManager.Stop()
		},
	})

	return transportManager, nil
}

// NewHandler serves POST /encode and POST /decode for the Temporal UI and CLI
func NewHandler(options HandlerOptions) http.Handler {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var codecHandler http.Handler = converter.NewPayloadCodecHTTPHandler(options.Codec)
	if options.AuthManager != nil {
		codecHandler = options.AuthManager.Middleware(options.AuthType, logger, codecHandler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", logRequests(logger, codecHandler))

	return withCors(options.CorsOrigins, mux)
}

func withCors(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && originAllowed(origins, origin)

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				strings.Join([]string{"Authorization", "Content-Type", NamespaceHeader}, ", "))
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(origins []string, origin string) bool {
	for _, o := range origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		logger.Debug("codec request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("namespace", r.Header.Get(NamespaceHeader)),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (t *httpTransportProvider) Start() error {
	lis, err := net.Listen("tcp", t.getHostPort())
	if err != nil {
		return err
	}
	t.listener = lis

	t.logger.Info(
		"codec server started",
		zap.String("host", t.host),
		zap.Int("port", t.port),
	)

	go func() {
		if err := t.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("codec server stopped", zap.Error(err))
		}
	}()

	return nil
}

func (t *httpTransportProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return t.server.Shutdown(ctx)
}

func (t *httpTransportProvider) getHostPort() string {
	return fmt.Sprintf("%s:%d", t.host, t.port)
}
