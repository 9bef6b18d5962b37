// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrPIDFileExists is returned when trying to create a PID file that already exists.
	ErrPIDFileExists = errors.New("PID file already exists")

	// ErrPIDFileLocked is returned when another devctl holds the PID file lock.
	ErrPIDFileLocked = errors.New("PID file is locked by another process")

	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrUnsafeDirectory is returned when the PID file parent is world-writable.
	ErrUnsafeDirectory = errors.New("PID file directory is world-writable")
)

// PIDFileManager records the managed child's PID. The file stays locked
// for as long as the owning devctl holds it, so a file that exists but is
// unlocked was left behind by a host that died.
type PIDFileManager struct {
	path     string
	lockFile *os.File
}

// NewPIDFileManager creates a new PID file manager for the given path.
func NewPIDFileManager(path string) *PIDFileManager {
	return &PIDFileManager{
		path: path,
	}
}

// Path returns the PID file location.
func (m *PIDFileManager) Path() string {
	return m.path
}

// Create writes pid to the file and holds an exclusive lock on it until
// Remove. The parent directory is created with restrictive permissions.
func (m *PIDFileManager) Create(pid int) error {
	parentDir := filepath.Dir(m.path)
	if err := m.verifyDirectorySafety(parentDir); err != nil {
		return fmt.Errorf("unsafe PID file location: %w", err)
	}
	if err := os.MkdirAll(parentDir, 0700); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	// O_EXCL refuses symlinks and races; O_RDWR is needed for flock.
	f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return ErrPIDFileExists
		}
		return fmt.Errorf("failed to create PID file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		os.Remove(m.path)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrPIDFileLocked
		}
		return fmt.Errorf("failed to lock PID file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		f.Close()
		os.Remove(m.path)
		return fmt.Errorf("failed to write PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(m.path)
		return fmt.Errorf("failed to sync PID file: %w", err)
	}

	// Keep file open to maintain lock
	m.lockFile = f
	return nil
}

// Read reads the PID from the file.
// Returns ErrInvalidPID if the file contains non-numeric data.
func (m *PIDFileManager) Read() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPID, pidStr)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}

	return pid, nil
}

// Locked reports whether another open descriptor holds the file's lock.
// A missing file is not locked.
func (m *PIDFileManager) Locked() bool {
	if m.lockFile != nil {
		return true
	}

	f, err := os.OpenFile(m.path, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return errors.Is(err, unix.EWOULDBLOCK)
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false
}

// Remove deletes the PID file and releases the lock.
func (m *PIDFileManager) Remove() error {
	if m.lockFile != nil {
		unix.Flock(int(m.lockFile.Fd()), unix.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}

	// Remove file (ignore errors if already removed)
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	return nil
}

// Exists returns true if the PID file exists.
func (m *PIDFileManager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// verifyDirectorySafety rejects world-writable directories, where another
// user could plant a symlink at the PID file path.
func (m *PIDFileManager) verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	mode := info.Mode()
	if mode&0002 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}

	return nil
}
