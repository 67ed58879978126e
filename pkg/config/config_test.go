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

package config

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

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scanner.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadAndValidateFileAppliesDefaults(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfig(t, `{
		"queue_file": "/var/lib/blockscan/ips.txt",
		"probe_timeout": "2s",
		"resolver": {"providers": [{"name": "mcsrvstat", "url": "https://api.mcsrvstat.us/2/{name}"}]}
	}`)

	var cfg models.ScannerConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "/var/lib/blockscan/ips.txt", cfg.QueueFile)
	assert.Equal(t, models.Duration(2*time.Second), cfg.ProbeTimeout)
	assert.Equal(t, 25565, cfg.DefaultPort)
	assert.Equal(t, 47, cfg.ProtocolVersion)
	assert.Equal(t, 300, cfg.Lock.MaxAttempts)
	assert.Equal(t, models.Duration(10*time.Millisecond), cfg.Lock.RetryDelay)
	assert.Equal(t, models.DefaultForbiddenKeywords, cfg.ForbiddenKeywords)
	assert.Equal(t, models.StoreMemory, cfg.Store.Type)
	require.Len(t, cfg.Resolver.Providers, 1)
	assert.Equal(t, "mcsrvstat", cfg.Resolver.Providers[0].Name)
}

func TestLoadAndValidateRejectsInvalid(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"store": {"type": "nats"}}`)

	var cfg models.ScannerConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats_url")
}

func TestLoadAndValidateUnknownField(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfig(t, `{"queue_flie": "typo.txt"}`)

	var cfg models.ScannerConfig
	require.Error(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	var cfg models.ScannerConfig
	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "nope.json"), &cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadAndValidateBadSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg models.ScannerConfig
	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestLoadAndValidateEnvSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "")
	t.Setenv("BLOCKSCAN_QUEUE_FILE", "/tmp/queue.txt")
	t.Setenv("BLOCKSCAN_DEFAULT_PORT", "25570")
	t.Setenv("BLOCKSCAN_PROBE_TIMEOUT", "750ms")
	t.Setenv("BLOCKSCAN_FORBIDDEN_KEYWORDS", "spam, scam")
	t.Setenv("BLOCKSCAN_POOL_MAX_WORKERS", "64")
	t.Setenv("BLOCKSCAN_STORE_TYPE", "nats")
	t.Setenv("BLOCKSCAN_STORE_NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("BLOCKSCAN_RESOLVER_PROVIDERS", `[{"name":"a","url":"http://a/{name}"}]`)
	t.Setenv("BLOCKSCAN_RESOLVER_DNS_SERVERS", "1.1.1.1,8.8.8.8:53")

	var cfg models.ScannerConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "/tmp/queue.txt", cfg.QueueFile)
	assert.Equal(t, 25570, cfg.DefaultPort)
	assert.Equal(t, models.Duration(750*time.Millisecond), cfg.ProbeTimeout)
	assert.Equal(t, []string{"spam", "scam"}, cfg.ForbiddenKeywords)
	assert.Equal(t, 64, cfg.Pool.MaxWorkers)
	assert.Equal(t, 32, cfg.Pool.MinWorkers)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Store.NATSURL)
	assert.Equal(t, []models.ProviderConfig{{Name: "a", URL: "http://a/{name}"}}, cfg.Resolver.Providers)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8:53"}, cfg.Resolver.DNSServers)
	assert.Nil(t, cfg.Logging)
}

func TestEnvLoaderNestedPointer(t *testing.T) {
	t.Setenv("TEST_LOGGING_LEVEL", "debug")
	t.Setenv("TEST_LOGGING_OTEL_ENABLED", "true")

	var cfg models.ScannerConfig
	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "TEST_").Load(context.Background(), "", &cfg))

	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.OTel.Enabled)
}

func TestEnvLoaderConfigJSON(t *testing.T) {
	t.Setenv("JSONTEST_CONFIG_JSON", `{"queue_file":"a.txt","workers":3}`)

	var cfg models.ScannerConfig
	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "JSONTEST_").Load(context.Background(), "", &cfg))

	assert.Equal(t, "a.txt", cfg.QueueFile)
	assert.Equal(t, 3, cfg.Workers)
}

func TestEnvLoaderBadValue(t *testing.T) {
	t.Setenv("BADTEST_WORKERS", "many")

	var cfg models.ScannerConfig
	err := NewEnvConfigLoader(logger.NewTestLogger(), "BADTEST_").Load(context.Background(), "", &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BADTEST_WORKERS")
}

func TestEnvLoaderRejectsNonPointer(t *testing.T) {
	loader := NewEnvConfigLoader(logger.NewTestLogger(), "NOPE_")

	require.ErrorIs(t, loader.Load(context.Background(), "", models.ScannerConfig{}), ErrDstMustBeNonNilPointer)

	s := "x"
	require.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
}
