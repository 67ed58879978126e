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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/carverauto/blockscan/pkg/config"
	"github.com/carverauto/blockscan/pkg/dispatch"
	"github.com/carverauto/blockscan/pkg/lifecycle"
	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
	"github.com/carverauto/blockscan/pkg/probe"
	"github.com/carverauto/blockscan/pkg/queue"
	"github.com/carverauto/blockscan/pkg/resolver"
	"github.com/carverauto/blockscan/pkg/results"
	"github.com/carverauto/blockscan/pkg/retry"
	"github.com/carverauto/blockscan/pkg/scan"
	"github.com/carverauto/blockscan/pkg/store"
)

const defaultConfigPath = "/etc/blockscan/scanner.json"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath, "Path to scanner config file")
	queuePath := flag.String("queue", "", "Queue file (overrides queue_file)")
	once := flag.Bool("once", false, "Run a single pass and exit")
	dryRun := flag.Bool("dry-run", false, "Keep results in memory instead of the configured store")
	flag.Parse()

	ctx := context.Background()

	cfg, err := loadConfig(ctx, *configPath, isFlagSet("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *queuePath != "" {
		cfg.QueueFile = *queuePath
	}

	if *dryRun {
		cfg.Store.Type = models.StoreMemory
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "scanner", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := lifecycle.ShutdownLogger(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	if sanitized, err := config.Sanitized(cfg); err == nil {
		mainLogger.Debug().RawJSON("config", sanitized).Msg("Effective configuration")
	}

	ctx, stop := lifecycle.SignalContext(ctx, mainLogger)
	defer stop()

	d, closeAll, err := build(ctx, cfg, *once, mainLogger)
	if err != nil {
		return err
	}
	defer closeAll()

	return d.Run(ctx)
}

func isFlagSet(name string) bool {
	set := false

	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})

	return set
}

// loadConfig falls back to built-in defaults when the default config file
// is absent; an explicitly named file must exist.
func loadConfig(ctx context.Context, path string, explicit bool) (*models.ScannerConfig, error) {
	var cfg models.ScannerConfig

	err := config.NewConfig(nil).LoadAndValidate(ctx, path, &cfg)
	if err == nil {
		return &cfg, nil
	}

	if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = models.ScannerConfig{}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func build(ctx context.Context, cfg *models.ScannerConfig, once bool, log logger.Logger) (*dispatch.Dispatcher, func(), error) {
	st, err := store.New(ctx, cfg.Store, log.WithComponent("store"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Type, err)
	}

	closers := []func() error{st.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn().Err(err).Msg("Close failed")
			}
		}
	}

	var recorderOpts []results.Option

	if cfg.GeoIPDB != "" {
		geo, err := results.OpenGeoIP(cfg.GeoIPDB)
		if err != nil {
			closeAll()

			return nil, nil, err
		}

		closers = append(closers, geo.Close)
		recorderOpts = append(recorderOpts, results.WithGeoIP(geo))
	}

	recorder := results.NewRecorder(st, cfg.ForbiddenKeywords, log.WithComponent("results"), recorderOpts...)

	prober := probe.NewProber(time.Duration(cfg.ProbeTimeout), log.WithComponent("probe"),
		probe.WithProtocolVersion(uint32(cfg.ProtocolVersion)),
		probe.WithVersionFilter(cfg.VersionFilter),
	)

	poolSize := scan.PoolSize(scan.CPUCount(), cfg.Pool)
	blockScanner := scan.NewBlockScanner(prober, recorder, poolSize, log.WithComponent("scan"))

	res, err := buildResolver(cfg, log.WithComponent("resolver"))
	if err != nil {
		closeAll()

		return nil, nil, err
	}

	coord, err := buildQueue(cfg, log.WithComponent("queue"))
	if err != nil {
		closeAll()

		return nil, nil, err
	}

	log.Info().
		Str("queue", cfg.QueueFile).
		Str("store", cfg.Store.Type).
		Int("pool", poolSize).
		Msg("Scanner configured")

	d := dispatch.New(coord, res, blockScanner, dispatch.Config{
		Workers:   cfg.Workers,
		PassDelay: time.Duration(cfg.PassDelay),
		Once:      once,
	}, log.WithComponent("dispatch"))

	return d, closeAll, nil
}

func buildResolver(cfg *models.ScannerConfig, log logger.Logger) (*resolver.Resolver, error) {
	timeout := time.Duration(cfg.Resolver.Timeout)
	client := &http.Client{Timeout: timeout}

	providers := make([]resolver.Provider, 0, len(cfg.Resolver.Providers))
	for _, p := range cfg.Resolver.Providers {
		providers = append(providers, resolver.NewHTTPProvider(p, client))
	}

	var hosts resolver.HostResolver = resolver.NewSystemResolver()

	if len(cfg.Resolver.DNSServers) > 0 {
		dnsResolver, err := resolver.NewDNSResolver(cfg.Resolver.DNSServers, timeout)
		if err != nil {
			return nil, err
		}

		hosts = dnsResolver
	}

	return resolver.New(providers, hosts, uint16(cfg.DefaultPort), timeout, log), nil
}

func buildQueue(cfg *models.ScannerConfig, log logger.Logger) (*queue.Coordinator, error) {
	locker, err := queue.DetectLocker(filepath.Dir(cfg.QueueFile))
	if err != nil {
		return nil, fmt.Errorf("failed to select a file lock: %w", err)
	}

	log.Debug().Str("locker", locker.Name()).Msg("Selected queue lock")

	return queue.NewCoordinator(cfg.QueueFile, locker,
		retry.Policy{MaxAttempts: cfg.Lock.MaxAttempts, Delay: time.Duration(cfg.Lock.RetryDelay)},
		retry.Policy{MaxAttempts: cfg.Open.MaxAttempts, Delay: time.Duration(cfg.Open.RetryDelay)},
		log,
	), nil
}
