// Package api is the app-facing HTTP surface: dashboard reads and edits,
// OTA requests, the app websocket and the metrics endpoint.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ilievs/pinhub/ota"
	"github.com/ilievs/pinhub/session"
	"github.com/ilievs/pinhub/store"
)

type Options struct {
	Address      string
	APIKey       string
	AppQueueSize int
}

type Server struct {
	e        *echo.Echo
	opts     Options
	store    *store.Store
	sessions *session.Registry
	ota      *ota.Manager
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewServer(opts Options, st *store.Store, sessions *session.Registry, otaManager *ota.Manager, log *slog.Logger) *Server {
	if opts.AppQueueSize <= 0 {
		opts.AppQueueSize = 256
	}
	s := &Server{
		e:        echo.New(),
		opts:     opts,
		store:    st,
		sessions: sessions,
		ota:      otaManager,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		log:      log,
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.HTTPErrorHandler = s.errorHandler

	// Middleware
	s.e.Use(middleware.Logger())
	s.e.Use(middleware.Recover())

	// Routes
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
	})
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := s.e.Group("/api/:user")
	if opts.APIKey != "" {
		g.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:Authorization,query:key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(opts.APIKey)) == 1, nil
			},
		}))
	}
	g.GET("/ws", s.handleAppSocket)
	g.GET("/dashboards", s.handleListDashboards)

	d := g.Group("/dashboards/:dash")
	d.GET("", s.handleGetDashboard)
	d.POST("/activate", s.handleActivate)
	d.POST("/deactivate", s.handleDeactivate)
	d.POST("/widgets", s.handleCreateWidget)
	d.PUT("/widgets/:id", s.handleUpdateWidget)
	d.DELETE("/widgets/:id", s.handleDeleteWidget)
	d.POST("/widgets/:id/property", s.handleSetWidgetProperty)
	d.POST("/devices", s.handleAddDevice)
	d.DELETE("/devices/:device", s.handleRemoveDevice)
	d.POST("/devices/:device/ota", s.handleInitiateOTA)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "address", s.opts.Address)
		if err := s.e.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.e.Shutdown(shutdownCtx)
}

func (s *Server) handleAppSocket(c echo.Context) error {
	user, err := s.user(c)
	if err != nil {
		return err
	}
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		s.log.Debug("websocket upgrade failed", "error", err)
		return nil
	}

	conn := newAppConn(ws, s.opts.AppQueueSize, s.log)
	sess := s.sessions.GetOrCreate(user)
	sess.AddApp(conn)
	s.log.Info("app connected", "user", user, "app", conn.ID())

	go conn.writePump()
	conn.readPump()

	sess.RemoveApp(conn)
	s.log.Info("app disconnected", "user", user, "app", conn.ID())
	return nil
}
