// Package server is an HTTP API for keeping a roster and choosing the
// next speaker from it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/selector"
	"go.nextspeaker.dev/nextspeaker/store"
)

const maxBodySize = 1 << 20

type Server struct {
	log      *slog.Logger
	store    store.Store
	selector *selector.Selector
	metrics  *Metrics
	echo     *echo.Echo

	// runs simulations without touching the choice metrics
	simulator *selector.Selector

	// serializes read-modify-write of the stored roster
	lock sync.Mutex
}

// New sets up the routes. metrics may be nil.
func New(log *slog.Logger, st store.Store, sl *selector.Selector, metrics *Metrics) *Server {
	srv := &Server{
		log:       log,
		store:     st,
		selector:  sl,
		metrics:   metrics,
		simulator: selector.New(selector.WithLogger(log)),
	}
	srv.setupEcho()
	return srv
}

func (srv *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = srv.errorHandler

	e.Use(otelecho.Middleware("nextspeaker"))
	e.Use(slogecho.New(srv.log))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok\n")
	})

	e.GET("/state", srv.getState)
	e.PATCH("/state", srv.patchState)
	e.PUT("/candidates", srv.putCandidates)
	e.PUT("/history", srv.putHistory)
	e.DELETE("/history", srv.deleteHistory)
	e.PUT("/halflife", srv.putHalflife)
	e.POST("/choose", srv.choose)
	e.GET("/simulate", srv.simulate)

	srv.echo = e
}

// Handler returns the HTTP handler for the API.
func (srv *Server) Handler() http.Handler {
	return srv.echo
}

// Run serves the API on listen until ctx is done.
func (srv *Server) Run(ctx context.Context, listen string) error {
	hs := &http.Server{
		Addr:              listen,
		Handler:           srv.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.log.InfoContext(ctx, "http server listening", "addr", listen)
		err := hs.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Observe updates the roster gauges, for example after the state was
// changed outside the server.
func (srv *Server) Observe(ctx context.Context) {
	r, err := store.LoadOrNew(ctx, srv.store)
	if err != nil {
		srv.log.WarnContext(ctx, "could not load state", "err", err)
		return
	}
	srv.log.InfoContext(ctx, "state loaded",
		"candidates", len(r.Candidates), "history", len(r.History), "halflife", r.Halflife)
	srv.observe(r)
}

func (srv *Server) observe(r roster.Roster) {
	if srv.metrics != nil {
		srv.metrics.TrackRoster(r)
	}
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		switch {
		case errors.Is(err, selector.ErrInvalidInput):
			he = echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrSchemaMismatch):
			he = echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			srv.log.ErrorContext(c.Request().Context(), "request failed", "err", err)
			he = echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	srv.echo.DefaultHTTPErrorHandler(he, c)
}
