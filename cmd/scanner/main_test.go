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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	cfg, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.json"), false)
	require.NoError(t, err)

	assert.Equal(t, "ips.txt", cfg.QueueFile)
	assert.Equal(t, models.Duration(1600*time.Millisecond), cfg.ProbeTimeout)
	assert.Equal(t, models.DefaultProviders, cfg.Resolver.Providers)
}

func TestLoadConfigExplicitMissingFails(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	_, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.json"), true)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildWiresComponents(t *testing.T) {
	dir := t.TempDir()

	cfg := &models.ScannerConfig{
		QueueFile: filepath.Join(dir, "ips.txt"),
		Resolver: models.ResolverConfig{
			Providers:  []models.ProviderConfig{{Name: "local", URL: "http://127.0.0.1:1/{name}"}},
			DNSServers: []string{"127.0.0.1"},
		},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	d, closeAll, err := build(context.Background(), cfg, true, logger.NewTestLogger())
	require.NoError(t, err)
	require.NotNil(t, d)

	defer closeAll()

	// Missing queue file ends the run without error.
	require.NoError(t, d.Run(context.Background()))
}

func TestBuildRejectsMissingGeoIP(t *testing.T) {
	cfg := &models.ScannerConfig{QueueFile: filepath.Join(t.TempDir(), "ips.txt"), GeoIPDB: "/nonexistent/geo.mmdb"}
	cfg.ApplyDefaults()

	_, _, err := build(context.Background(), cfg, true, logger.NewTestLogger())
	require.Error(t, err)
}
