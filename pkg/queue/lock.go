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

package queue

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrWouldBlock reports that another holder owns the lock right now.
	ErrWouldBlock = errors.New("file lock held elsewhere")
	// ErrNoLocker is returned when no lock primitive works on the queue's filesystem.
	ErrNoLocker = errors.New("no usable file lock primitive")
)

// Locker is an exclusive, whole-file, cooperative lock primitive. TryLock
// never blocks: it returns ErrWouldBlock when the lock is contended.
type Locker interface {
	Name() string
	TryLock(f *os.File) error
	Unlock(f *os.File) error
}

// DetectLocker picks the first lock primitive that works on a scratch file in
// dir. It is meant to run once at startup; the result is shared by every claim.
func DetectLocker(dir string) (Locker, error) {
	probe, err := os.CreateTemp(dir, ".blockscan-lockprobe-*")
	if err != nil {
		return nil, fmt.Errorf("create lock probe in %s: %w", dir, err)
	}

	defer func() {
		_ = probe.Close()
		_ = os.Remove(probe.Name())
	}()

	var errs []error

	for _, candidate := range lockCandidates() {
		if err := candidate.TryLock(probe); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", candidate.Name(), err))
			continue
		}

		if err := candidate.Unlock(probe); err != nil {
			errs = append(errs, fmt.Errorf("%s unlock: %w", candidate.Name(), err))
			continue
		}

		return candidate, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrNoLocker, errors.Join(errs...))
}
