package repo

import (
	"os"
)

// HostHandle wraps a host file or directory. Flush syncs it to stable
// storage.
type HostHandle struct {
	*os.File
}

// OpenHost opens a host path for use as an inode backing. Regular files are
// opened read-write when permitted and read-only otherwise.
func OpenHost(name string) (*HostHandle, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		f, err = os.Open(name)
		if err != nil {
			return nil, err
		}
	}
	return &HostHandle{File: f}, nil
}

// Flush commits the file to stable storage.
func (h *HostHandle) Flush() error {
	return h.Sync()
}
