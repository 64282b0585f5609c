package queue

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// freeBytes reports the free disk space on the filesystem holding path.
func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(path), &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// hasCapacity reports whether the store may accept another payload of the
// given size without dropping below the configured free-space floor. When
// the filesystem cannot be queried the store stays optimistic and accepts
// the write; the subsequent INSERT surfaces any real failure.
func (s *Store) hasCapacity(payloadSize int) bool {
	if s.minFreeBytes == 0 {
		return true
	}
	free, err := s.statFreeBytes(s.path)
	if err != nil {
		return true
	}
	return free >= s.minFreeBytes+uint64(payloadSize)
}
