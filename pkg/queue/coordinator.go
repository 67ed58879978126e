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

// Package queue coordinates independent workers consuming one shared queue
// file. Every read or rewrite happens under an exclusive advisory lock; a
// claim removes the first matching line and syncs the file before the lock
// is released.
package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/carverauto/blockscan/pkg/logger"
	"github.com/carverauto/blockscan/pkg/retry"
)

var (
	// ErrLockTimeout is returned when the lock retry budget is exhausted.
	ErrLockTimeout = errors.New("timed out acquiring queue lock")
	// ErrQueueUnavailable is returned when the queue file cannot be opened.
	ErrQueueUnavailable = errors.New("queue file unavailable")
	// ErrQueueNotFound is returned by Snapshot when the queue file is missing.
	ErrQueueNotFound = errors.New("queue file not found")
)

const queueFileMode = 0o666

// Coordinator serializes access to one queue file across goroutines and
// processes.
type Coordinator struct {
	path       string
	locker     Locker
	lockPolicy retry.Policy
	openPolicy retry.Policy
	logger     logger.Logger

	// fcntl locks are per process, so in-process callers also take mu.
	mu sync.Mutex
}

// NewCoordinator builds a coordinator. The policies' terminal errors are
// replaced with ErrLockTimeout and ErrQueueUnavailable.
func NewCoordinator(path string, locker Locker, lockPolicy, openPolicy retry.Policy, log logger.Logger) *Coordinator {
	lockPolicy.Exhausted = ErrLockTimeout
	openPolicy.Exhausted = ErrQueueUnavailable

	return &Coordinator{
		path:       path,
		locker:     locker,
		lockPolicy: lockPolicy,
		openPolicy: openPolicy,
		logger:     log,
	}
}

// Path returns the queue file path.
func (c *Coordinator) Path() string {
	return c.path
}

// Claim removes the first line whose trimmed content equals target. It
// reports false, with a nil error, when no such line exists.
func (c *Coordinator) Claim(ctx context.Context, target string) (bool, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return false, nil
	}

	claimed := false

	err := c.withLock(ctx, os.O_RDWR|os.O_CREATE, func(f *os.File) error {
		content, err := readAll(f)
		if err != nil {
			return err
		}

		rewritten, found := RemoveLine(content, target)
		if !found {
			return nil
		}

		if err := rewrite(f, rewritten); err != nil {
			return err
		}

		claimed = true

		return nil
	})
	if err != nil {
		return false, err
	}

	c.logger.Debug().Str("target", target).Bool("claimed", claimed).Msg("Claim attempt finished")

	return claimed, nil
}

// Snapshot returns every non-blank trimmed line, in file order, read under
// the same lock discipline as Claim.
func (c *Coordinator) Snapshot(ctx context.Context) ([]string, error) {
	var targets []string

	err := c.withLock(ctx, os.O_RDWR, func(f *os.File) error {
		content, err := readAll(f)
		if err != nil {
			return err
		}

		targets = ParseTargets(content)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return targets, nil
}

// withLock opens the queue file, takes the exclusive lock, runs fn and
// releases everything. The lock is never held outside fn.
func (c *Coordinator) withLock(ctx context.Context, flags int, fn func(f *os.File) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var f *os.File

	err := c.openPolicy.Do(ctx, func() error {
		var openErr error

		f, openErr = os.OpenFile(c.path, flags, queueFileMode)

		switch {
		case openErr == nil:
			return nil
		case errors.Is(openErr, os.ErrNotExist):
			return retry.Permanent(fmt.Errorf("%w: %s", ErrQueueNotFound, c.path))
		default:
			return openErr
		}
	})
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Str("path", c.path).Msg("Failed to close queue file")
		}
	}()

	err = c.lockPolicy.Do(ctx, func() error {
		lockErr := c.locker.TryLock(f)
		if lockErr == nil || errors.Is(lockErr, ErrWouldBlock) {
			return lockErr
		}

		return retry.Permanent(fmt.Errorf("%s lock: %w", c.locker.Name(), lockErr))
	})
	if err != nil {
		return err
	}

	defer func() {
		if unlockErr := c.locker.Unlock(f); unlockErr != nil {
			c.logger.Error().Err(unlockErr).Str("path", c.path).Msg("Failed to release queue lock")
		}
	}()

	return fn(f)
}

func readAll(f *os.File) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek queue file: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read queue file: %w", err)
	}

	return content, nil
}

type rewriter interface {
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync() error
}

// rewrite replaces the file content in place. The new content is never
// longer than the old, so it is written before the tail is cut: a crash in
// between leaves a stale tail rather than an empty queue.
func rewrite(f rewriter, content []byte) error {
	if _, err := f.WriteAt(content, 0); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}

	if err := f.Truncate(int64(len(content))); err != nil {
		return fmt.Errorf("truncate queue file: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync queue file: %w", err)
	}

	return nil
}

// RemoveLine drops the first line whose trimmed text equals target. All
// other bytes, line terminators included, are preserved.
func RemoveLine(content []byte, target string) ([]byte, bool) {
	offset := 0

	for _, line := range bytes.SplitAfter(content, []byte("\n")) {
		if len(line) > 0 && string(bytes.TrimSpace(line)) == target {
			out := make([]byte, 0, len(content)-len(line))
			out = append(out, content[:offset]...)

			return append(out, content[offset+len(line):]...), true
		}

		offset += len(line)
	}

	return content, false
}

// ParseTargets splits queue file content into trimmed, non-blank entries.
func ParseTargets(content []byte) []string {
	var targets []string

	for _, line := range strings.Split(string(content), "\n") {
		if t := strings.TrimSpace(line); t != "" {
			targets = append(targets, t)
		}
	}

	return targets
}
