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

// Package store persists discovered servers.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/models"
)

//go:generate mockgen -destination=mock_store.go -package=store github.com/carverauto/blockscan/pkg/store Store

var (
	ErrPersistence = errors.New("persistence failed")
	ErrUnknownType = errors.New("unknown store type")
	ErrInvalidKey  = errors.New("invalid record key")
)

// Store upserts one record per "address:port" key. Implementations are safe
// for concurrent use.
type Store interface {
	Upsert(ctx context.Context, key string, record models.ServerRecord) error
	Close() error
}

// EncodeKey maps "address:port" to a form accepted by every backend.
// NATS subjects reject ':' so it becomes '_'.
func EncodeKey(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}

// DecodeKey reverses EncodeKey for IPv4 keys.
func DecodeKey(encoded string) (string, error) {
	i := strings.LastIndexByte(encoded, '_')
	if i <= 0 || i == len(encoded)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, encoded)
	}

	return encoded[:i] + ":" + encoded[i+1:], nil
}

// New opens the backend selected by cfg.Type.
func New(ctx context.Context, cfg models.StoreConfig, log logger.Logger) (Store, error) {
	switch cfg.Type {
	case "", models.StoreMemory:
		return NewMemoryStore(), nil
	case models.StoreNATS:
		return NewNATSStore(ctx, cfg.NATSURL, cfg.Bucket, time.Duration(cfg.TTL), log)
	case models.StorePostgres:
		return NewPostgresStore(ctx, cfg.PostgresURL, cfg.Table, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}
