// Package otel builds the OpenTelemetry log pipeline the slog bridge writes to.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/hordenight/siege/internal/config"
)

const defaultBatchTimeout = 5 * time.Second

// ErrNoExporter is returned when otel is enabled with neither a log file nor
// an OTLP endpoint to export to.
var ErrNoExporter = errors.New("otel enabled but no log writer or endpoint configured")

// Instance identifies the running director in exported records.
type Instance struct {
	Version string
	Started time.Time
}

// Pipeline owns the logger provider records are batched through. Every record
// carries the director's resource: service name, version and a per-process
// instance id, plus the session start so restarts of the same world can be
// told apart.
type Pipeline struct {
	logs       *sdklog.LoggerProvider
	instanceID string
}

// NewPipeline builds the pipeline for the otel config section. Records are
// pretty-printed to logWriter and additionally shipped over OTLP/HTTP when an
// endpoint is set. A disabled section yields a nil pipeline.
func NewPipeline(ctx context.Context, c config.OTelConfig, logWriter io.Writer, inst Instance) (*Pipeline, error) {
	if !c.Enabled {
		return nil, nil
	}
	timeout := c.BatchTimeout
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	p := &Pipeline{instanceID: uuid.NewString()}
	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(inst.Version),
			semconv.ServiceInstanceID(p.instanceID),
			attribute.String("siege.session.start", inst.Started.UTC().Format(time.RFC3339)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	exporters, err := exportersFor(ctx, c, logWriter)
	if err != nil {
		return nil, err
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(timeout))))
	}
	p.logs = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

func exportersFor(ctx context.Context, c config.OTelConfig, logWriter io.Writer) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if logWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(logWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("file log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if c.Endpoint != "" {
		httpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			httpOpts = append(httpOpts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, ErrNoExporter
	}
	return out, nil
}

// LoggerProvider is handed to the otelslog bridge. Nil on a nil pipeline.
func (p *Pipeline) LoggerProvider() *sdklog.LoggerProvider {
	if p == nil {
		return nil
	}
	return p.logs
}

// InstanceID is the service.instance.id stamped on every record.
func (p *Pipeline) InstanceID() string {
	if p == nil {
		return ""
	}
	return p.instanceID
}

// Shutdown flushes pending records and stops the exporters.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel log shutdown: %w", err)
	}
	return nil
}
