package vfs

import (
	"errors"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-vfs/abi"
)

type truncater interface {
	Truncate(size int64) error
}

// PathOpen opens path relative to the directory behind dirfd and returns a
// new descriptor.
//
// dirfd needs RightPathOpen, and rights and inheriting must both be subsets
// of dirfd's inheriting rights. Directories are opened without the byte
// stream rights. A trailing symlink is only followed with
// LookupSymlinkFollow; otherwise opening it fails with ErrnoLoop.
func (fs *Filesystem) PathOpen(dirfd uint32, lookup abi.Lookupflags, path string, oflags abi.Oflags,
	rights, inheriting abi.Rights, fdflags abi.Fdflags,
) (fd uint32, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("path_open", err) }()

	d, parent, err := fs.descriptor(dirfd)
	if err != nil {
		return 0, err
	}
	if err := d.Rights.Require(abi.RightPathOpen, abi.ErrnoNotcapable); err != nil {
		return 0, err
	}
	if _, ok := parent.Kind.(*Directory); !ok {
		return 0, abi.ErrnoNotdir
	}
	if !d.RightsInheriting.Contains(rights) || !d.RightsInheriting.Contains(inheriting) {
		return 0, abi.ErrnoNotcapable
	}

	dir, name, err := fs.walk(d.Inode, path)
	if err != nil {
		return 0, err
	}

	idx := dir
	if name != "." {
		idx, err = fs.child(dir, name)
		switch {
		case err == nil:
			if oflags&(abi.OflagCreat|abi.OflagExcl) == abi.OflagCreat|abi.OflagExcl {
				return 0, abi.ErrnoExist
			}
		case errors.Is(err, abi.ErrnoNoent) && oflags&abi.OflagCreat != 0:
			if err := d.Rights.Require(abi.RightPathCreateFile, abi.ErrnoNotcapable); err != nil {
				return 0, err
			}
			if idx, err = fs.createFile(dir, name); err != nil {
				return 0, err
			}
			fs.log.Debug("created", zap.String("path", path), zap.Stringer("inode", idx))
		default:
			return 0, err
		}

		if idx, err = fs.follow(idx, lookup&abi.LookupSymlinkFollow != 0); err != nil {
			return 0, err
		}
	}

	n := fs.node(idx)
	_, isDir := n.Kind.(*Directory)
	switch n.Kind.(type) {
	case *Symlink:
		return 0, abi.ErrnoLoop
	case *Directory:
		if oflags&abi.OflagTrunc != 0 {
			return 0, abi.ErrnoIsdir
		}
	default:
		if oflags&abi.OflagDirectory != 0 {
			return 0, abi.ErrnoNotdir
		}
	}

	if oflags&abi.OflagTrunc != 0 {
		if err := d.Rights.Require(abi.RightPathFilestatSetSize, abi.ErrnoNotcapable); err != nil {
			return 0, err
		}
		if err := fs.truncate(n); err != nil {
			return 0, err
		}
	}

	if isDir {
		rights &^= abi.DirectoryStripRights
	}
	return fs.fds.Allocate(rights, inheriting, fdflags, idx)
}

func (fs *Filesystem) truncate(n *Inode) error {
	switch k := n.Kind.(type) {
	case *Buffer:
		k.Bytes = nil
	case *File:
		t, ok := k.Handle.(truncater)
		if !ok {
			return abi.ErrnoNotsup
		}
		if err := t.Truncate(0); err != nil {
			return abi.ErrnoIo
		}
	}
	n.Stat.Size = 0
	n.Stat.Mtim = uint64(fs.now().UnixNano())
	return nil
}

// StatAt is FilestatPath scoped to the directory behind dirfd, which needs
// RightPathFilestatGet.
func (fs *Filesystem) StatAt(dirfd uint32, flags abi.Lookupflags, path string) (st abi.Filestat, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("stat_at", err) }()

	d, err := fs.fds.Get(dirfd)
	if err != nil {
		return abi.Filestat{}, err
	}
	if err := d.Rights.Require(abi.RightPathFilestatGet, abi.ErrnoNotcapable); err != nil {
		return abi.Filestat{}, err
	}
	idx, err := fs.resolve(d.Inode, path, flags&abi.LookupSymlinkFollow != 0)
	if err != nil {
		return abi.Filestat{}, err
	}
	return fs.node(idx).Stat, nil
}
