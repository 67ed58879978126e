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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

const natsClientName = "blockscan"

// NATSStore writes records as JSON into a JetStream key-value bucket.
type NATSStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	logger logger.Logger
}

// NewNATSStore connects and creates the bucket if needed. A positive ttl
// expires entries that are not rediscovered.
func NewNATSStore(ctx context.Context, natsURL, bucket string, ttl time.Duration, log logger.Logger) (*NATSStore, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(natsClientName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	config := jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "discovered status endpoints",
	}

	if ttl > 0 {
		config.TTL = ttl
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, config)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	log.Info().Str("bucket", bucket).Msg("Connected to NATS KV")

	return &NATSStore{nc: nc, kv: kv, logger: log}, nil
}

// Upsert implements Store.
func (n *NATSStore) Upsert(ctx context.Context, key string, record models.ServerRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, key, err)
	}

	if _, err := n.kv.Put(ctx, EncodeKey(key), value); err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrPersistence, key, err)
	}

	return nil
}

// Get returns the record stored under key.
func (n *NATSStore) Get(ctx context.Context, key string) (models.ServerRecord, bool, error) {
	entry, err := n.kv.Get(ctx, EncodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return models.ServerRecord{}, false, nil
	}

	if err != nil {
		return models.ServerRecord{}, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var record models.ServerRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return models.ServerRecord{}, false, fmt.Errorf("failed to decode key %s: %w", key, err)
	}

	return record, true, nil
}

// Close drains the connection.
func (n *NATSStore) Close() error {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()

		return err
	}

	return nil
}
