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
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/carverauto/blockscan/pkg/models"
)

// CPUCount returns the number of logical CPUs, falling back to the Go
// runtime's view when the host cannot be inspected.
func CPUCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}

	return n
}

// PoolSize returns clamp(cpus*scale, min, max).
func PoolSize(cpus int, cfg models.PoolConfig) int {
	if cpus < 1 {
		cpus = 1
	}

	n := cpus * cfg.ScaleFactor

	if n < cfg.MinWorkers {
		n = cfg.MinWorkers
	}

	if cfg.MaxWorkers > 0 && n > cfg.MaxWorkers {
		n = cfg.MaxWorkers
	}

	if n < 1 {
		n = 1
	}

	return n
}
