package cli

import (
	"context"

	"github.com/MakeNowJust/heredoc"
	"go.ntppool.org/common/logger"
	"go.ntppool.org/common/metricsserver"
	"golang.org/x/sync/errgroup"

	"go.nextspeaker.dev/nextspeaker/selector"
	"go.nextspeaker.dev/nextspeaker/server"
	"go.nextspeaker.dev/nextspeaker/store"
	"go.nextspeaker.dev/nextspeaker/version"
)

type ServeCmd struct {
	Listen      string `default:":8080" env:"NEXTSPEAKER_LISTEN" help:"HTTP API listen address"`
	MetricsPort int    `name:"metrics-port" default:"9000" env:"NEXTSPEAKER_METRICS_PORT" help:"Prometheus metrics port (0 to disable)"`
	Watch       bool   `help:"Reload the state file when it changes on disk (file store only)"`
	Environment string `name:"environment" env:"DEPLOYMENT_MODE" help:"Deployment environment reported in traces"`
}

func (cmd *ServeCmd) Run(ctx context.Context, cli *CLI) error {
	log := logger.FromContext(ctx)

	log.InfoContext(ctx, heredoc.Docf(`
		nextspeaker %s
		  api:   %s
		  store: %s`,
		version.Version(), cmd.Listen, cli.Store))

	shutdownTracing, err := initTracing(ctx, cmd.Environment)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.WithoutCancel(ctx))

	st, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	metricssrv := metricsserver.New()
	reg := metricssrv.Registry()
	version.RegisterMetric("nextspeaker", reg)

	sl := selector.New(
		selector.WithLogger(log),
		selector.WithMetrics(selector.NewMetrics(reg)),
	)
	srv := server.New(log, st, sl, server.NewMetrics(reg))
	srv.Observe(ctx)

	g, ctx := errgroup.WithContext(ctx)

	if cmd.MetricsPort > 0 {
		go func() {
			if err := metricssrv.ListenAndServe(ctx, cmd.MetricsPort); err != nil {
				log.Error("metrics server error", "err", err)
			}
		}()
	}

	g.Go(func() error {
		return srv.Run(ctx, cmd.Listen)
	})

	if cmd.Watch {
		f, ok := st.(*store.File)
		if !ok {
			log.WarnContext(ctx, "--watch only works with the file store", "store", cli.Store)
		} else {
			g.Go(func() error {
				return store.Watch(ctx, f.Path(), srv.Observe)
			})
		}
	}

	return g.Wait()
}
