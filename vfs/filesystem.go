package vfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/arena"
	fserrors "github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/fdtable"
	"github.com/wippyai/wasi-vfs/repo"
)

// FirstSyntheticIno is the first inode number assigned by the filesystem.
const FirstSyntheticIno uint64 = 1000

// Filesystem is the guest-visible filesystem state of one module instance:
// the inode arena, the descriptor table and the top-level name cache. All
// methods are safe for concurrent use; one mutex serialises every operation.
type Filesystem struct {
	repo       repo.Repository
	stdout     io.Writer
	stderr     io.Writer
	registerer prometheus.Registerer
	inodes     *arena.Arena[*Inode]
	fds        *fdtable.Table
	names      map[string]arena.Index
	log        *zap.Logger
	metrics    *metrics
	now        func() time.Time
	id         string
	preopens   []uint32
	nextIno    uint64
	mu         sync.Mutex
	closed     bool
}

// New mounts each preopen path as a directory with a descriptor carrying
// abi.DefaultRights. The first failing preopen aborts construction; nothing
// opened so far is leaked.
func New(preopens []string, opts ...Option) (*Filesystem, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	log := o.logger
	if log == nil {
		log = Logger()
	}
	log = log.With(zap.String("fs", id))
	log.Debug("init")

	r := o.repository
	if r == nil {
		ns := o.namespace
		if ns == "" {
			ns = id
		}
		r = repo.New(repo.NewMemoryStore(), ns)
	}

	fs := &Filesystem{
		repo:    r,
		stdout:  o.stdout,
		stderr:  o.stderr,
		inodes:  arena.New[*Inode](),
		fds:     fdtable.New(),
		names:   make(map[string]arena.Index),
		log:     log,
		metrics: newMetrics(id),
		now:     o.now,
		id:      id,
		nextIno: FirstSyntheticIno,
	}
	fs.fds.Subscribe(fs.metrics)
	fs.fds.Subscribe(fdtable.ObserverFunc(fs.logDescriptor))

	for _, p := range preopens {
		if err := fs.preopen(p); err != nil {
			log.Debug("init failed", zap.Error(err))
			_ = fs.release()
			return nil, err
		}
	}

	if o.registerer != nil {
		if err := fs.metrics.register(o.registerer); err != nil {
			_ = fs.release()
			return nil, fserrors.Wrap(fserrors.PhaseInit, fserrors.KindRegistration, err, "register metrics")
		}
		fs.registerer = o.registerer
	}

	log.Debug("ready", zap.Int("preopens", len(preopens)))
	return fs, nil
}

// ID returns the instance identifier used in logs and metrics.
func (fs *Filesystem) ID() string {
	return fs.id
}

// Preopens returns the descriptors created for preopened directories, in
// mount order.
func (fs *Filesystem) Preopens() []uint32 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]uint32(nil), fs.preopens...)
}

func (fs *Filesystem) preopen(p string) error {
	host, err := filepath.Abs(p)
	if err != nil {
		return fserrors.Preopen(p, err)
	}
	fi, err := os.Stat(host)
	if err != nil {
		return fserrors.Preopen(p, err)
	}
	if !fi.IsDir() {
		return fserrors.NotDirectory(fserrors.PhasePreopen, p)
	}
	h, err := repo.OpenHost(host)
	if err != nil {
		return fserrors.Preopen(p, err)
	}

	dir := NewDirectory()
	dir.Handle = h
	dir.src = source{host: host, root: host}
	idx := fs.insert(&Inode{Name: p, Preopened: true, Kind: dir}, fs.hostStat(fi))

	fd, err := fs.fds.Allocate(abi.DefaultRights, abi.DefaultRights, 0, idx)
	if err != nil {
		return fserrors.Wrap(fserrors.PhasePreopen, fserrors.KindIO, err, "allocate preopen descriptor")
	}
	fs.preopens = append(fs.preopens, fd)
	fs.log.Debug("preopened", zap.String("path", p), zap.Uint32("fd", fd), zap.Stringer("inode", idx))
	return nil
}

// insert stores n under a fresh synthetic inode number. stat supplies the
// timestamps and size; its filetype is taken from n.Kind.
func (fs *Filesystem) insert(n *Inode, stat abi.Filestat) arena.Index {
	stat.Ino = fs.nextIno
	fs.nextIno++
	stat.Filetype = n.Kind.Filetype()
	if stat.Nlink == 0 {
		stat.Nlink = 1
	}
	n.Stat = stat
	return fs.inodes.Insert(n)
}

func (fs *Filesystem) syntheticStat(size uint64) abi.Filestat {
	now := uint64(fs.now().UnixNano())
	return abi.Filestat{Size: size, Atim: now, Mtim: now, Ctim: now}
}

func (fs *Filesystem) hostStat(fi os.FileInfo) abi.Filestat {
	mtim := uint64(fi.ModTime().UnixNano())
	return abi.Filestat{
		Size: uint64(fi.Size()),
		Atim: uint64(fs.now().UnixNano()),
		Mtim: mtim,
		Ctim: mtim,
	}
}

func (fs *Filesystem) repoStat(md repo.Metadata) abi.Filestat {
	return abi.Filestat{
		Size: md.Size,
		Atim: uint64(fs.now().UnixNano()),
		Mtim: uint64(md.Mtime.UnixNano()),
		Ctim: uint64(md.Ctime.UnixNano()),
	}
}

// node returns the inode at idx. A dead index reached through a descriptor
// or directory entry is a host bug, not a guest error.
func (fs *Filesystem) node(idx arena.Index) *Inode {
	n, err := fs.inodes.Get(idx)
	if err != nil {
		panic(fmt.Sprintf("vfs: dangling inode reference %s: %v", idx, err))
	}
	return n
}

func (fs *Filesystem) descriptor(fd uint32) (*fdtable.Descriptor, *Inode, error) {
	d, err := fs.fds.Get(fd)
	if err != nil {
		return nil, nil, err
	}
	return d, fs.node(d.Inode), nil
}

// FilestatFd returns the stat block of the inode behind fd.
func (fs *Filesystem) FilestatFd(fd uint32) (st abi.Filestat, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("filestat_fd", err) }()

	_, n, err := fs.descriptor(fd)
	if err != nil {
		return abi.Filestat{}, err
	}
	return n.Stat, nil
}

// FilestatPath resolves path through the top-level cache, falling back to
// the repository, and returns the stat of the result. With
// LookupSymlinkFollow a trailing symlink chain is dereferenced.
//
// preopenFd is not used to scope the lookup.
func (fs *Filesystem) FilestatPath(preopenFd uint32, flags abi.Lookupflags, path string) (st abi.Filestat, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("filestat_path", err) }()

	fs.log.Warn("lookup not scoped to preopen", zap.Uint32("fd", preopenFd), zap.String("path", path))

	idx, err := fs.lookupTop(path)
	if err != nil {
		return abi.Filestat{}, err
	}
	idx, err = fs.follow(idx, flags&abi.LookupSymlinkFollow != 0)
	if err != nil {
		return abi.Filestat{}, err
	}
	return fs.node(idx).Stat, nil
}

// Fdstat reports the filetype, flags and rights of fd.
func (fs *Filesystem) Fdstat(fd uint32) (st abi.Fdstat, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("fdstat", err) }()

	d, n, err := fs.descriptor(fd)
	if err != nil {
		return abi.Fdstat{}, err
	}
	return abi.Fdstat{
		Filetype:         n.Kind.Filetype(),
		Flags:            d.Flags,
		RightsBase:       d.Rights,
		RightsInheriting: d.RightsInheriting,
	}, nil
}

// Prestat describes a preopened directory. Any other descriptor is EBADF.
func (fs *Filesystem) Prestat(fd uint32) (st abi.Prestat, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("prestat", err) }()

	_, n, err := fs.descriptor(fd)
	if err != nil {
		return abi.Prestat{}, err
	}
	if !n.Preopened {
		return abi.Prestat{}, abi.ErrnoBadf
	}
	return abi.Prestat{Tag: abi.PreopentypeDir, NameLen: uint32(len(n.Name))}, nil
}

// PrestatDirName returns the name a preopened directory was mounted under.
func (fs *Filesystem) PrestatDirName(fd uint32) (name string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("prestat_dir_name", err) }()

	_, n, err := fs.descriptor(fd)
	if err != nil {
		return "", err
	}
	if !n.Preopened {
		return "", abi.ErrnoBadf
	}
	return n.Name, nil
}

type flusher interface {
	Flush() error
}

// Flush commits buffered data for fd. Standard output and error are flushed
// without a rights check and standard input is a no-op. Every other
// descriptor needs RightFdDatasync.
func (fs *Filesystem) Flush(fd uint32) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("flush", err) }()

	switch fd {
	case abi.FdStdin:
		return nil
	case abi.FdStdout:
		return flushStream(fs.stdout)
	case abi.FdStderr:
		return flushStream(fs.stderr)
	}

	d, n, err := fs.descriptor(fd)
	if err != nil {
		return err
	}
	if err := d.Rights.Require(abi.RightFdDatasync, abi.ErrnoAcces); err != nil {
		return err
	}

	switch k := n.Kind.(type) {
	case *File:
		if err := k.Handle.Flush(); err != nil {
			fs.log.Debug("flush failed", zap.Uint32("fd", fd), zap.Error(err))
			return abi.ErrnoIo
		}
		return nil
	case *Directory:
		return abi.ErrnoIsdir
	case *Buffer:
		return nil
	case *Symlink:
		panic(fmt.Sprintf("vfs: descriptor %d references symlink inode %s", fd, d.Inode))
	default:
		panic(fmt.Sprintf("vfs: unknown inode kind %T", k))
	}
}

func flushStream(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		return abi.ErrnoIo
	}
	return nil
}

// CreateFd allocates a descriptor for an existing inode. Several descriptors
// may share one inode.
func (fs *Filesystem) CreateFd(rights, inheriting abi.Rights, flags abi.Fdflags, inode arena.Index) (fd uint32, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("create_fd", err) }()

	if !fs.inodes.Contains(inode) {
		return 0, abi.ErrnoInval
	}
	return fs.fds.Allocate(rights, inheriting, flags, inode)
}

// Close releases fd. Its number is never handed out again and the inode
// stays alive. The standard streams cannot be closed.
func (fs *Filesystem) Close(fd uint32) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.metrics.observe("close", err) }()

	if fd <= abi.FdStderr {
		return abi.ErrnoBadf
	}
	_, err = fs.fds.Remove(fd)
	return err
}

// Inode returns the inode referenced by fd.
func (fs *Filesystem) Inode(fd uint32) (arena.Index, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, err := fs.fds.Get(fd)
	if err != nil {
		return arena.Index{}, err
	}
	return d.Inode, nil
}

// Descriptors calls fn for every open descriptor in ascending order.
func (fs *Filesystem) Descriptors(fn func(fd uint32, d fdtable.Descriptor, n Inode) bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.fds.Each(func(fd uint32, d fdtable.Descriptor) bool {
		return fn(fd, d, *fs.node(d.Inode))
	})
}

// Shutdown closes every backing handle and the repository. The filesystem
// must not be used afterwards.
func (fs *Filesystem) Shutdown() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil
	}
	if fs.registerer != nil {
		fs.metrics.unregister(fs.registerer)
	}
	fs.log.Debug("shutdown", zap.Int("inodes", fs.inodes.Len()), zap.Int("descriptors", fs.fds.Len()))
	return fs.release()
}

func (fs *Filesystem) release() error {
	fs.closed = true

	var err error
	fs.inodes.Each(func(_ arena.Index, n *Inode) bool {
		if h := n.handle(); h != nil {
			err = multierr.Append(err, h.Close())
		}
		return true
	})
	return multierr.Append(err, fs.repo.Close())
}

func (fs *Filesystem) logDescriptor(e fdtable.Event) {
	fs.log.Debug("descriptor "+e.Type.String(),
		zap.Uint32("fd", e.Fd),
		zap.Stringer("inode", e.Descriptor.Inode),
		zap.Stringer("rights", e.Descriptor.Rights))
}
