package cli

import (
	"context"
	"os"
	"time"

	"go.ntppool.org/common/logger"
	"go.ntppool.org/common/tracing"
)

// initTracing sets up the OTLP trace exporter when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. The returned function is never nil.
func initTracing(ctx context.Context, environment string) (tracing.TpShutdownFunc, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		logger.FromContext(ctx).DebugContext(ctx, "tracing not configured")
		return func(context.Context) error { return nil }, nil
	}

	tpShutdownFn, err := tracing.InitTracer(ctx,
		&tracing.TracerConfig{
			ServiceName: appName,
			Environment: environment,
		},
	)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		logger.FromContext(ctx).Debug("shutting down trace provider")
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tpShutdownFn(shutdownCtx)
	}, nil
}
