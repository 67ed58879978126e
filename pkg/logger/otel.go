/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	maxAttributeLen     = 4096
	defaultServiceName  = "blockscan"
	defaultBatchTimeout = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// OTelConfig enables export of log lines to an OTLP/gRPC collector.
type OTelConfig struct {
	Enabled      bool              `json:"enabled"`
	Endpoint     string            `json:"endpoint"`
	Headers      map[string]string `json:"headers,omitempty"`
	ServiceName  string            `json:"service_name"`
	BatchTimeout Duration          `json:"batch_timeout"`
	Insecure     bool              `json:"insecure"`
	CAFile       string            `json:"ca_file,omitempty"`
	ServerName   string            `json:"server_name,omitempty"`
}

// OTLPWriter turns zerolog JSON lines into OTLP log records. Each distinct
// "component" field gets its own instrumentation scope.
type OTLPWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu     sync.Mutex
	scopes map[string]otellog.Logger
}

//nolint:gochecknoglobals // flushed by Shutdown
var (
	activeProvider   *sdklog.LoggerProvider
	activeProviderMu sync.Mutex
)

func NewOTLPWriter(ctx context.Context, cfg OTelConfig) (*OTLPWriter, error) {
	if !cfg.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if cfg.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts, err := exporterOptions(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	timeout := time.Duration(cfg.BatchTimeout)
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(name))),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(timeout))),
	)

	activeProviderMu.Lock()
	activeProvider = provider
	activeProviderMu.Unlock()

	return &OTLPWriter{
		ctx:      ctx,
		provider: provider,
		scopes:   make(map[string]otellog.Logger),
	}, nil
}

func exporterOptions(cfg OTelConfig) ([]otlploggrpc.Option, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}

	switch {
	case cfg.Insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case cfg.CAFile != "":
		creds, err := credentials.NewClientTLSFromFile(cfg.CAFile, cfg.ServerName)
		if err != nil {
			return nil, fmt.Errorf("failed to load OTLP CA file: %w", err)
		}

		opts = append(opts, otlploggrpc.WithTLSCredentials(creds))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}

	return opts, nil
}

// Write never fails; lines that are not JSON objects are dropped.
func (w *OTLPWriter) Write(p []byte) (int, error) {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		return len(p), nil
	}

	w.scope(takeString(fields, "component")).Emit(w.ctx, buildRecord(fields))

	return len(p), nil
}

func (w *OTLPWriter) scope(component string) otellog.Logger {
	if component == "" {
		component = defaultServiceName
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.scopes[component]
	if !ok {
		l = w.provider.Logger(component)
		w.scopes[component] = l
	}

	return l
}

func buildRecord(fields map[string]any) otellog.Record {
	var rec otellog.Record

	rec.SetObservedTimestamp(time.Now())

	if ts := takeString(fields, zerolog.TimestampFieldName); ts != "" {
		if parsed, err := time.Parse(zerolog.TimeFieldFormat, ts); err == nil {
			rec.SetTimestamp(parsed)
		} else {
			fields[zerolog.TimestampFieldName] = ts
		}
	}

	if level := takeString(fields, zerolog.LevelFieldName); level != "" {
		rec.SetSeverity(severity(level))
		rec.SetSeverityText(level)
	}

	rec.SetBody(otellog.StringValue(takeString(fields, zerolog.MessageFieldName)))

	for key, value := range fields {
		rec.AddAttributes(attribute(key, value))
	}

	return rec
}

func takeString(fields map[string]any, key string) string {
	s, ok := fields[key].(string)
	if ok {
		delete(fields, key)
	}

	return s
}

func attribute(key string, value any) otellog.KeyValue {
	switch v := value.(type) {
	case nil:
		return otellog.Empty(key)
	case string:
		return otellog.String(key, clip(v))
	case bool:
		return otellog.Bool(key, v)
	case float64:
		return otellog.Float64(key, v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return otellog.String(key, clip(fmt.Sprint(v)))
		}

		return otellog.String(key, clip(string(b)))
	}
}

// clip truncates s to maxAttributeLen bytes on a rune boundary.
func clip(s string) string {
	if len(s) <= maxAttributeLen {
		return s
	}

	cut := maxAttributeLen - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}

func severity(level string) otellog.Severity {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return otellog.SeverityInfo
	}

	switch parsed {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

func shutdownOTLP(ctx context.Context) error {
	activeProviderMu.Lock()
	provider := activeProvider
	activeProvider = nil
	activeProviderMu.Unlock()

	if provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return provider.Shutdown(ctx)
}
