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

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/blockscan/pkg/models"
)

func TestPoolSize(t *testing.T) {
	cfg := models.PoolConfig{ScaleFactor: 30, MinWorkers: 32, MaxWorkers: 500}

	tests := []struct {
		name string
		cpus int
		want int
	}{
		{"single core gets the floor", 1, 32},
		{"zero cpus treated as one", 0, 32},
		{"mid range scales", 4, 120},
		{"many cores hit the ceiling", 64, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PoolSize(tt.cpus, cfg))
		})
	}
}

func TestPoolSizeUnbounded(t *testing.T) {
	assert.Equal(t, 1, PoolSize(1, models.PoolConfig{}))
	assert.Equal(t, 800, PoolSize(8, models.PoolConfig{ScaleFactor: 100}))
}

func TestCPUCount(t *testing.T) {
	assert.GreaterOrEqual(t, CPUCount(), 1)
}
