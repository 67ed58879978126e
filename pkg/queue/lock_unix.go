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

//go:build unix

package queue

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// flockLocker uses BSD flock(2). Locks belong to the open file description,
// so separate opens in one process exclude each other too.
type flockLocker struct{}

func (flockLocker) Name() string { return "flock" }

func (flockLocker) TryLock(f *os.File) error {
	err := ignoringEINTR(func() error {
		return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	})
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrWouldBlock
	}

	return err
}

func (flockLocker) Unlock(f *os.File) error {
	return ignoringEINTR(func() error {
		return unix.Flock(int(f.Fd()), unix.LOCK_UN)
	})
}

// fcntlLocker uses POSIX record locks over the whole file. It works on
// network filesystems where flock is emulated or missing, but the lock is
// owned by the process: callers must serialize in-process access themselves.
type fcntlLocker struct{}

func (fcntlLocker) Name() string { return "fcntl" }

func (fcntlLocker) TryLock(f *os.File) error {
	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: io.SeekStart}

	err := ignoringEINTR(func() error {
		return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk)
	})
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EACCES) {
		return ErrWouldBlock
	}

	return err
}

func (fcntlLocker) Unlock(f *os.File) error {
	lk := unix.Flock_t{Type: unix.F_UNLCK, Whence: io.SeekStart}

	return ignoringEINTR(func() error {
		return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk)
	})
}

func lockCandidates() []Locker {
	return []Locker{flockLocker{}, fcntlLocker{}}
}

func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
