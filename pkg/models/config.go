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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/blockscan/pkg/logger"
)

var (
	errInvalidDuration   = errors.New("invalid duration")
	errQueueFileRequired = errors.New("queue_file is required")
	errInvalidPort       = errors.New("default_port must be between 1 and 65535")
	errInvalidPool       = errors.New("pool.min_workers must not exceed pool.max_workers")
	errInvalidAttempts   = errors.New("retry max_attempts must be positive")
	errProviderURL       = errors.New("resolver provider url is required")
	errUnknownStoreType  = errors.New("unknown store type")
	errNATSURLRequired   = errors.New("store.nats_url is required for the nats store")
	errPostgresRequired  = errors.New("store.postgres_url is required for the postgres store")
)

// Duration is a time.Duration that decodes from "1.5s" style strings or
// integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

const (
	defaultQueueFile       = "ips.txt"
	defaultProtocolVersion = 47
	defaultProbeTimeout    = 1600 * time.Millisecond
	defaultScaleFactor     = 30
	defaultMinWorkers      = 32
	defaultMaxWorkers      = 500
	defaultLockAttempts    = 300
	defaultLockDelay       = 10 * time.Millisecond
	defaultOpenAttempts    = 10
	defaultOpenDelay       = 10 * time.Millisecond
	defaultPassDelay       = 500 * time.Millisecond
	defaultResolveTimeout  = 6 * time.Second
	defaultBucket          = "servers"
	defaultTable           = "servers"

	StoreMemory   = "memory"
	StoreNATS     = "nats"
	StorePostgres = "postgres"
)

// DefaultForbiddenKeywords are the banner substrings skipped by default.
var DefaultForbiddenKeywords = []string{"protect", "docs", "refer", "invalid", "be"}

// DefaultProviders is the lookup chain used when none is configured.
var DefaultProviders = []ProviderConfig{
	{Name: "mcsrvstat", URL: "https://api.mcsrvstat.us/2/{name}"},
}

// PoolConfig sizes the per-block probe pool as clamp(cpus*scale, min, max).
type PoolConfig struct {
	ScaleFactor int `json:"scale_factor"`
	MinWorkers  int `json:"min_workers"`
	MaxWorkers  int `json:"max_workers"`
}

// RetryConfig bounds a retried operation.
type RetryConfig struct {
	MaxAttempts int      `json:"max_attempts"`
	RetryDelay  Duration `json:"retry_delay"`
}

// ProviderConfig is one HTTP lookup endpoint. A "{name}" placeholder in URL
// is replaced by the escaped target; otherwise the target is appended as a
// path segment.
type ProviderConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ResolverConfig configures target resolution.
type ResolverConfig struct {
	Timeout    Duration         `json:"timeout"`
	Providers  []ProviderConfig `json:"providers"`
	DNSServers []string         `json:"dns_servers"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Type        string   `json:"type"`
	NATSURL     string   `json:"nats_url,omitempty"`
	Bucket      string   `json:"bucket,omitempty"`
	TTL         Duration `json:"ttl,omitempty"`
	PostgresURL string   `json:"postgres_url,omitempty" sensitive:"true"`
	Table       string   `json:"table,omitempty"`
}

// ScannerConfig is the top-level configuration document.
type ScannerConfig struct {
	QueueFile         string         `json:"queue_file"`
	DefaultPort       int            `json:"default_port"`
	ProtocolVersion   int            `json:"protocol_version"`
	ProbeTimeout      Duration       `json:"probe_timeout"`
	VersionFilter     string         `json:"version_filter"`
	ForbiddenKeywords []string       `json:"forbidden_keywords"`
	Pool              PoolConfig     `json:"pool"`
	Lock              RetryConfig    `json:"lock"`
	Open              RetryConfig    `json:"open"`
	Workers           int            `json:"workers"`
	PassDelay         Duration       `json:"pass_delay"`
	Resolver          ResolverConfig `json:"resolver"`
	Store             StoreConfig    `json:"store"`
	GeoIPDB           string         `json:"geoip_db,omitempty"`
	Logging           *logger.Config `json:"logging,omitempty"`
}

// ApplyDefaults fills every unset field.
func (c *ScannerConfig) ApplyDefaults() {
	if c.QueueFile == "" {
		c.QueueFile = defaultQueueFile
	}

	if c.DefaultPort == 0 {
		c.DefaultPort = int(DefaultPort)
	}

	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = defaultProtocolVersion
	}

	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = Duration(defaultProbeTimeout)
	}

	if c.ForbiddenKeywords == nil {
		c.ForbiddenKeywords = append([]string(nil), DefaultForbiddenKeywords...)
	}

	if c.Resolver.Providers == nil {
		c.Resolver.Providers = append([]ProviderConfig(nil), DefaultProviders...)
	}

	if c.Pool.ScaleFactor == 0 {
		c.Pool.ScaleFactor = defaultScaleFactor
	}

	if c.Pool.MinWorkers == 0 {
		c.Pool.MinWorkers = defaultMinWorkers
	}

	if c.Pool.MaxWorkers == 0 {
		c.Pool.MaxWorkers = defaultMaxWorkers
	}

	c.Lock.applyDefaults(defaultLockAttempts, defaultLockDelay)
	c.Open.applyDefaults(defaultOpenAttempts, defaultOpenDelay)

	if c.PassDelay == 0 {
		c.PassDelay = Duration(defaultPassDelay)
	}

	if c.Resolver.Timeout == 0 {
		c.Resolver.Timeout = Duration(defaultResolveTimeout)
	}

	if c.Store.Type == "" {
		c.Store.Type = StoreMemory
	}

	if c.Store.Bucket == "" {
		c.Store.Bucket = defaultBucket
	}

	if c.Store.Table == "" {
		c.Store.Table = defaultTable
	}
}

func (r *RetryConfig) applyDefaults(attempts int, delay time.Duration) {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = attempts
	}

	if r.RetryDelay == 0 {
		r.RetryDelay = Duration(delay)
	}
}

// Validate implements config.Validator.
func (c *ScannerConfig) Validate() error {
	if c.QueueFile == "" {
		return errQueueFileRequired
	}

	if c.DefaultPort < 1 || c.DefaultPort > 65535 {
		return errInvalidPort
	}

	if c.Pool.MinWorkers > c.Pool.MaxWorkers {
		return errInvalidPool
	}

	if c.Lock.MaxAttempts <= 0 || c.Open.MaxAttempts <= 0 {
		return errInvalidAttempts
	}

	for _, p := range c.Resolver.Providers {
		if p.URL == "" {
			return fmt.Errorf("%w (provider %q)", errProviderURL, p.Name)
		}
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreNATS:
		if c.Store.NATSURL == "" {
			return errNATSURLRequired
		}
	case StorePostgres:
		if c.Store.PostgresURL == "" {
			return errPostgresRequired
		}
	default:
		return fmt.Errorf("%w: %s", errUnknownStoreType, c.Store.Type)
	}

	return nil
}
