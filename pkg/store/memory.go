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
	"sync"

	"github.com/carverauto/blockscan/pkg/models"
)

// MemoryStore keeps records in a map. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.ServerRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.ServerRecord)}
}

func (m *MemoryStore) Upsert(_ context.Context, key string, record models.ServerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = record

	return nil
}

// Get returns the record stored under key.
func (m *MemoryStore) Get(key string) (models.ServerRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]

	return r, ok
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

// Keys returns every stored key in no particular order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}

	return keys
}

func (*MemoryStore) Close() error { return nil }
