package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/simulate"
	"go.nextspeaker.dev/nextspeaker/store"
)

// Selection is the response to POST /choose.
type Selection struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

type simulationResponse struct {
	Runs    int              `json:"runs"`
	Results simulate.Results `json:"results"`
}

func readBody(c echo.Context) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "could not read body")
	}
	return b, nil
}

func (srv *Server) getState(c echo.Context) error {
	ctx := c.Request().Context()

	r, err := store.LoadOrNew(ctx, srv.store)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// update applies fn to the stored roster and saves the result.
func (srv *Server) update(ctx context.Context, fn func(r *roster.Roster) error) (roster.Roster, error) {
	srv.lock.Lock()
	defer srv.lock.Unlock()

	r, err := store.LoadOrNew(ctx, srv.store)
	if err != nil {
		return roster.Roster{}, err
	}
	if err := fn(&r); err != nil {
		return roster.Roster{}, err
	}
	if err := srv.store.Save(ctx, r); err != nil {
		return roster.Roster{}, err
	}
	srv.observe(r)
	return r, nil
}

func (srv *Server) patchState(c echo.Context) error {
	patch, err := readBody(c)
	if err != nil {
		return err
	}

	r, err := srv.update(c.Request().Context(), func(r *roster.Roster) error {
		patched, err := store.Patch(*r, patch)
		if err != nil {
			return err
		}
		*r = patched
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (srv *Server) putCandidates(c echo.Context) error {
	b, err := readBody(c)
	if err != nil {
		return err
	}

	r, err := srv.update(c.Request().Context(), func(r *roster.Roster) error {
		r.Candidates = roster.ParseLines(string(b))
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (srv *Server) putHistory(c echo.Context) error {
	b, err := readBody(c)
	if err != nil {
		return err
	}

	r, err := srv.update(c.Request().Context(), func(r *roster.Roster) error {
		r.History = roster.ParseLines(string(b))
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (srv *Server) deleteHistory(c echo.Context) error {
	r, err := srv.update(c.Request().Context(), func(r *roster.Roster) error {
		r.History = nil
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (srv *Server) putHalflife(c echo.Context) error {
	b, err := readBody(c)
	if err != nil {
		return err
	}
	h, err := roster.ParseHalflife(string(b))
	if err != nil {
		return err
	}

	r, err := srv.update(c.Request().Context(), func(r *roster.Roster) error {
		r.Halflife = h
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (srv *Server) choose(c echo.Context) error {
	ctx := c.Request().Context()
	span := trace.SpanFromContext(ctx)

	srv.lock.Lock()
	defer srv.lock.Unlock()

	r, err := store.LoadOrNew(ctx, srv.store)
	if err != nil {
		return err
	}
	candidates, history, halflife, err := r.Eligible()
	if err != nil {
		return err
	}

	span.SetAttributes(
		attribute.Int("nextspeaker.candidates", len(candidates)),
		attribute.Int("nextspeaker.history", len(history)),
		attribute.Float64("nextspeaker.halflife", halflife),
	)

	name, err := srv.selector.Choose(ctx, candidates, history, halflife)
	if err != nil {
		return err
	}

	if err := store.Record(ctx, srv.store, name); err != nil {
		return fmt.Errorf("recording selection: %w", err)
	}
	r.Record(name)
	srv.observe(r)

	now := time.Now()
	id, err := makeULID(now)
	if err != nil {
		return fmt.Errorf("could not make selection id: %w", err)
	}

	srv.log.InfoContext(ctx, "chose next speaker", "name", name, "id", id.String())

	return c.JSON(http.StatusOK, Selection{
		ID:   id.String(),
		Name: name,
		Time: now,
	})
}

func (srv *Server) simulate(c echo.Context) error {
	ctx := c.Request().Context()

	runs := simulate.DefaultRuns
	if n := c.QueryParam("n"); n != "" {
		var err error
		runs, err = strconv.Atoi(n)
		if err != nil || runs <= 0 || runs > 1_000_000 {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be between 1 and 1000000")
		}
	}

	r, err := store.LoadOrNew(ctx, srv.store)
	if err != nil {
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("nextspeaker.simulation_runs", runs))

	results, err := simulate.Run(ctx, srv.simulator, r, simulate.Options{Runs: runs})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, simulationResponse{Runs: runs, Results: results})
}
