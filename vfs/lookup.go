package vfs

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/moby/sys/symlink"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/arena"
	"github.com/wippyai/wasi-vfs/repo"
)

// LookupTimeout bounds each repository round trip made during a lookup.
var LookupTimeout = 30 * time.Second

// lookupTop resolves a path in the top-level cache. A miss is looked up in
// the repository and cached under a fresh synthetic inode.
func (fs *Filesystem) lookupTop(p string) (arena.Index, error) {
	key := repo.Clean(p)
	if idx, ok := fs.names[key]; ok {
		return idx, nil
	}

	idx, err := fs.loadRepo(key, key)
	if err != nil {
		return arena.Index{}, err
	}
	fs.names[key] = idx
	fs.log.Debug("cached", zap.String("path", key), zap.Stringer("inode", idx))
	return idx, nil
}

func (fs *Filesystem) loadRepo(p, name string) (arena.Index, error) {
	ctx, cancel := context.WithTimeout(context.Background(), LookupTimeout)
	defer cancel()

	md, err := fs.repo.Stat(ctx, p)
	if err != nil {
		return arena.Index{}, repoErrno(err)
	}

	var kind Kind
	if md.IsDir {
		dir := NewDirectory()
		dir.src = source{repo: p, inRepo: true}
		kind = dir
	} else {
		h, err := fs.repo.Open(ctx, p)
		if err != nil {
			return arena.Index{}, repoErrno(err)
		}
		kind = &File{Handle: h}
	}

	fs.log.Debug("repository lookup", zap.String("path", p), zap.Bool("dir", md.IsDir))
	return fs.insert(&Inode{Name: name, Kind: kind}, fs.repoStat(md)), nil
}

func repoErrno(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return abi.ErrnoNoent
	case errors.Is(err, repo.ErrNotDir):
		return abi.ErrnoNotdir
	case errors.Is(err, repo.ErrIsDirectory):
		return abi.ErrnoIsdir
	case errors.Is(err, repo.ErrExist):
		return abi.ErrnoExist
	default:
		return abi.ErrnoIo
	}
}

func (fs *Filesystem) loadHost(src source, name string) (arena.Index, error) {
	target, err := symlink.FollowSymlinkInScope(filepath.Join(src.host, name), src.root)
	if err != nil {
		return arena.Index{}, abi.FromHostError(err)
	}
	fi, err := os.Stat(target)
	if err != nil {
		return arena.Index{}, abi.FromHostError(err)
	}
	if !fi.IsDir() && !fi.Mode().IsRegular() {
		return arena.Index{}, abi.ErrnoNotsup
	}
	h, err := repo.OpenHost(target)
	if err != nil {
		return arena.Index{}, abi.FromHostError(err)
	}

	var kind Kind
	if fi.IsDir() {
		dir := NewDirectory()
		dir.Handle = h
		dir.src = source{host: target, root: src.root}
		kind = dir
	} else {
		kind = &File{Handle: h}
	}

	fs.log.Debug("host lookup", zap.String("path", target), zap.Bool("dir", fi.IsDir()))
	return fs.insert(&Inode{Name: name, Kind: kind}, fs.hostStat(fi)), nil
}

// child returns the entry name of directory idx, populating it from the
// directory's backing on a miss.
func (fs *Filesystem) child(idx arena.Index, name string) (arena.Index, error) {
	dir, ok := fs.node(idx).Kind.(*Directory)
	if !ok {
		return arena.Index{}, abi.ErrnoNotdir
	}
	if e, ok := dir.Entries[name]; ok {
		return e, nil
	}

	var (
		e   arena.Index
		err error
	)
	switch {
	case dir.src.host != "":
		e, err = fs.loadHost(dir.src, name)
	case dir.src.inRepo:
		e, err = fs.loadRepo(path.Join(dir.src.repo, name), name)
	default:
		return arena.Index{}, abi.ErrnoNoent
	}
	if err != nil {
		return arena.Index{}, err
	}
	dir.Entries[name] = e
	return e, nil
}

// createFile makes an empty regular file name inside directory idx, on the
// same backing as the directory.
func (fs *Filesystem) createFile(idx arena.Index, name string) (arena.Index, error) {
	dir := fs.node(idx).Kind.(*Directory)

	switch {
	case dir.src.host != "":
		f, err := os.OpenFile(filepath.Join(dir.src.host, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return arena.Index{}, abi.FromHostError(err)
		}
		f.Close()
	case dir.src.inRepo:
		ctx, cancel := context.WithTimeout(context.Background(), LookupTimeout)
		defer cancel()
		if err := fs.repo.Create(ctx, path.Join(dir.src.repo, name), nil); err != nil {
			return arena.Index{}, repoErrno(err)
		}
	default:
		e := fs.insert(&Inode{Name: name, Kind: &Buffer{}}, fs.syntheticStat(0))
		dir.Entries[name] = e
		return e, nil
	}
	return fs.child(idx, name)
}

// Link inserts a new inode of the given kind. With a zero parent the inode
// is registered in the top-level cache under the cleaned name; otherwise it
// becomes entry name of the directory parent. A symlink must target a live
// inode.
func (fs *Filesystem) Link(parent arena.Index, name string, kind Kind) (arena.Index, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var size uint64
	switch k := kind.(type) {
	case *Buffer:
		size = uint64(len(k.Bytes))
	case *Symlink:
		if !fs.inodes.Contains(k.Target) {
			return arena.Index{}, abi.ErrnoInval
		}
	}

	if parent.IsZero() {
		key := repo.Clean(name)
		if key == "" {
			return arena.Index{}, abi.ErrnoInval
		}
		if _, ok := fs.names[key]; ok {
			return arena.Index{}, abi.ErrnoExist
		}
		idx := fs.insert(&Inode{Name: key, Kind: kind}, fs.syntheticStat(size))
		fs.names[key] = idx
		return idx, nil
	}

	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return arena.Index{}, abi.ErrnoInval
	}
	if !fs.inodes.Contains(parent) {
		return arena.Index{}, abi.ErrnoBadf
	}
	dir, ok := fs.node(parent).Kind.(*Directory)
	if !ok {
		return arena.Index{}, abi.ErrnoNotdir
	}
	if _, ok := dir.Entries[name]; ok {
		return arena.Index{}, abi.ErrnoExist
	}
	idx := fs.insert(&Inode{Name: name, Kind: kind}, fs.syntheticStat(size))
	dir.Entries[name] = idx
	return idx, nil
}

// Relink points the symlink inode link at target. Both must be live.
func (fs *Filesystem) Relink(link, target arena.Index) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.inodes.Contains(link) || !fs.inodes.Contains(target) {
		return abi.ErrnoInval
	}
	sl, ok := fs.node(link).Kind.(*Symlink)
	if !ok {
		return abi.ErrnoInval
	}
	sl.Target = target
	return nil
}

// List returns the sorted entry names of the directory behind fd, loading
// every entry from the backing first. It needs RightFdReaddir.
func (fs *Filesystem) List(fd uint32) (names []string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("list", err) }()

	d, n, err := fs.descriptor(fd)
	if err != nil {
		return nil, err
	}
	if err := d.Rights.Require(abi.RightFdReaddir, abi.ErrnoNotcapable); err != nil {
		return nil, err
	}
	dir, ok := n.Kind.(*Directory)
	if !ok {
		return nil, abi.ErrnoNotdir
	}

	var backing []string
	switch {
	case dir.src.host != "":
		ents, err := os.ReadDir(dir.src.host)
		if err != nil {
			return nil, abi.FromHostError(err)
		}
		for _, e := range ents {
			backing = append(backing, e.Name())
		}
	case dir.src.inRepo:
		ctx, cancel := context.WithTimeout(context.Background(), LookupTimeout)
		defer cancel()
		backing, err = fs.repo.List(ctx, dir.src.repo)
		if err != nil {
			return nil, repoErrno(err)
		}
	}

	for _, name := range backing {
		if _, err := fs.child(d.Inode, name); err != nil {
			fs.log.Debug("skipping entry", zap.String("name", name), zap.Error(err))
		}
	}

	names = make([]string, 0, len(dir.Entries))
	for name := range dir.Entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
