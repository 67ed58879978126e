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

package store

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, srv.JetStreamEnabled, 5*time.Second, 50*time.Millisecond)

	t.Cleanup(srv.Shutdown)

	return srv
}

func TestNATSStoreUpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)

	s, err := NewNATSStore(ctx, srv.ClientURL(), "servers", time.Hour, logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { require.NoError(t, s.Close()) }()

	_, found, err := s.Get(ctx, "1.2.3.4:25565")
	require.NoError(t, err)
	assert.False(t, found)

	r := sampleRecord()
	require.NoError(t, s.Upsert(ctx, "1.2.3.4:25565", r))

	r.PlayersOnline = 11
	r.Players = "11/20"
	require.NoError(t, s.Upsert(ctx, "1.2.3.4:25565", r))

	got, found, err := s.Get(ctx, "1.2.3.4:25565")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r, got)
}

func TestNATSStoreReopenExistingBucket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)

	first, err := New(ctx, models.StoreConfig{Type: models.StoreNATS, NATSURL: srv.ClientURL(), Bucket: "servers"}, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, first.Upsert(ctx, "5.6.7.8:25566", sampleRecord()))
	require.NoError(t, first.Close())

	second, err := NewNATSStore(ctx, srv.ClientURL(), "servers", 0, logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { require.NoError(t, second.Close()) }()

	_, found, err := second.Get(ctx, "5.6.7.8:25566")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestNATSStoreConnectFailure(t *testing.T) {
	_, err := NewNATSStore(context.Background(), "nats://127.0.0.1:1", "servers", 0, logger.NewTestLogger())
	require.Error(t, err)
}
