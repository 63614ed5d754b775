package observability

import (
	"strings"

	"github.com/smallbiznis/garageflow/internal/config"
	"github.com/smallbiznis/garageflow/internal/observability/logger"
	"github.com/smallbiznis/garageflow/internal/observability/metrics"
	"github.com/smallbiznis/garageflow/internal/observability/tracing"
)

const defaultServiceName = "garageflow"

// Config is the slice of application config the logging, tracing and
// metrics providers read.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	debug       bool

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	tel := cfg.Telemetry
	protocol := "grpc"
	if strings.HasPrefix(tel.OTLPProtocol, "http") {
		protocol = "http"
	}
	ratio := tel.OtelSamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}

	return Config{
		ServiceName:          name,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		debug:                tel.LogLevel == "debug" || cfg.IsDevelopment(),
		LogLevel:             tel.LogLevel,
		LogFormat:            tel.LogFormat,
		OtelEnabled:          tel.OtelEnabled,
		OtelExporterEndpoint: tel.OTLPEndpoint,
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug turns on console-friendly request logs and stack traces.
func (c Config) Debug() bool {
	return c.debug
}

func (c Config) loggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.debug,
		IncludeCaller:       true,
		IncludeStackOnError: c.debug,
	}
}

func (c Config) tracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
