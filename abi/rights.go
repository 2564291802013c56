package abi

import (
	"math/bits"
	"strconv"
	"strings"
)

// Rights is the 64-bit capability mask attached to every descriptor.
type Rights uint64

const (
	RightFdDatasync Rights = 1 << iota
	RightFdRead
	RightFdSeek
	RightFdFdstatSetFlags
	RightFdSync
	RightFdTell
	RightFdWrite
	RightFdAdvise
	RightFdAllocate
	RightPathCreateDirectory
	RightPathCreateFile
	RightPathLinkSource
	RightPathLinkTarget
	RightPathOpen
	RightFdReaddir
	RightPathReadlink
	RightPathRenameSource
	RightPathRenameTarget
	RightPathFilestatGet
	RightPathFilestatSetSize
	RightPathFilestatSetTimes
	RightFdFilestatGet
	RightFdFilestatSetSize
	RightFdFilestatSetTimes
	RightPathSymlink
	RightPathRemoveDirectory
	RightPathUnlinkFile
	RightPollFdReadwrite
	RightSockShutdown
)

// DefaultRights is granted to preopened directories: every right defined by
// preview1 up to and including sock_shutdown.
const DefaultRights Rights = 0x1FFFFFFF

// DirectoryStripRights are removed when a directory is opened through a
// derived descriptor; byte-stream operations make no sense on a directory.
const DirectoryStripRights = RightFdRead | RightFdWrite | RightFdSeek | RightFdTell

var rightNames = [...]string{
	"fd_datasync", "fd_read", "fd_seek", "fd_fdstat_set_flags", "fd_sync",
	"fd_tell", "fd_write", "fd_advise", "fd_allocate", "path_create_directory",
	"path_create_file", "path_link_source", "path_link_target", "path_open",
	"fd_readdir", "path_readlink", "path_rename_source", "path_rename_target",
	"path_filestat_get", "path_filestat_set_size", "path_filestat_set_times",
	"fd_filestat_get", "fd_filestat_set_size", "fd_filestat_set_times",
	"path_symlink", "path_remove_directory", "path_unlink_file",
	"poll_fd_readwrite", "sock_shutdown",
}

// Has reports whether every bit of need is present in r.
func (r Rights) Has(need Rights) bool {
	return r&need == need
}

// Require returns nil when r carries need, and the supplied errno otherwise.
// It is the single guard every privileged operation goes through.
func (r Rights) Require(need Rights, denied Errno) error {
	if r.Has(need) {
		return nil
	}
	return denied
}

// Contains reports whether sub is a subset of r.
func (r Rights) Contains(sub Rights) bool {
	return sub&^r == 0
}

func (r Rights) String() string {
	if r == 0 {
		return "none"
	}
	var names []string
	for v := uint64(r); v != 0; v &= v - 1 {
		bit := bits.TrailingZeros64(v)
		if bit < len(rightNames) {
			names = append(names, rightNames[bit])
		} else {
			names = append(names, "bit"+strconv.Itoa(bit))
		}
	}
	return strings.Join(names, "|")
}
