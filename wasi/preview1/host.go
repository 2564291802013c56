package preview1

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasivfs "github.com/wippyai/wasi-vfs"
	"github.com/wippyai/wasi-vfs/abi"
	fserrors "github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/vfs"
)

// ModuleName is the import module guests link against.
const ModuleName = "wasi_snapshot_preview1"

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

type function struct {
	handler    func(mem wasivfs.Memory, stack []uint64) abi.Errno
	name       string
	params     []api.ValueType
	paramNames []string
}

// Host binds one filesystem to the preview1 filesystem functions.
type Host struct {
	fs    *vfs.Filesystem
	log   *zap.Logger
	funcs []function
}

// NewHost creates a host for fs.
func NewHost(fs *vfs.Filesystem) *Host {
	h := &Host{
		fs:  fs,
		log: Logger().With(zap.String("fs", fs.ID())),
	}
	h.funcs = []function{
		{h.fdFilestatGet, "fd_filestat_get", []api.ValueType{i32, i32}, []string{"fd", "buf"}},
		{h.pathFilestatGet, "path_filestat_get", []api.ValueType{i32, i32, i32, i32, i32}, []string{"fd", "flags", "path", "path_len", "buf"}},
		{h.fdFdstatGet, "fd_fdstat_get", []api.ValueType{i32, i32}, []string{"fd", "buf"}},
		{h.fdPrestatGet, "fd_prestat_get", []api.ValueType{i32, i32}, []string{"fd", "buf"}},
		{h.fdPrestatDirName, "fd_prestat_dir_name", []api.ValueType{i32, i32, i32}, []string{"fd", "path", "path_len"}},
		{h.fdSync, "fd_datasync", []api.ValueType{i32}, []string{"fd"}},
		{h.fdSync, "fd_sync", []api.ValueType{i32}, []string{"fd"}},
		{h.fdClose, "fd_close", []api.ValueType{i32}, []string{"fd"}},
		{h.pathOpen, "path_open", []api.ValueType{i32, i32, i32, i32, i32, i64, i64, i32, i32},
			[]string{"fd", "dirflags", "path", "path_len", "oflags", "fs_rights_base", "fs_rights_inheriting", "fdflags", "result.opened_fd"}},
	}
	return h
}

// Names returns the exported function names in registration order.
func (h *Host) Names() []string {
	names := make([]string, len(h.funcs))
	for i, f := range h.funcs {
		names[i] = f.name
	}
	return names
}

// Signature returns the parameter types of the named function. Every
// function returns a single i32 errno.
func (h *Host) Signature(name string) ([]api.ValueType, bool) {
	for _, f := range h.funcs {
		if f.name == name {
			return f.params, true
		}
	}
	return nil, false
}

// Instantiate registers the host module in rt. Guests instantiated in rt
// afterwards can import the functions from ModuleName.
func (h *Host) Instantiate(ctx context.Context, rt wazero.Runtime) (api.Module, error) {
	builder := rt.NewHostModuleBuilder(ModuleName)
	for _, f := range h.funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(h.wrap(f), f.params, []api.ValueType{i32}).
			WithParameterNames(f.paramNames...).
			Export(f.name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, fserrors.Registration(ModuleName, "instantiate", err)
	}
	h.log.Debug("host module instantiated", zap.Int("functions", len(h.funcs)))
	return mod, nil
}

func (h *Host) wrap(f function) api.GoModuleFunc {
	return func(_ context.Context, mod api.Module, stack []uint64) {
		errno := abi.ErrnoFault
		if mem := mod.Memory(); mem != nil {
			errno = f.handler(NewMemory(mem), stack)
		}
		if errno != abi.ErrnoSuccess {
			h.log.Debug("call failed", zap.String("func", f.name), zap.String("errno", errno.Name()))
		}
		stack[0] = uint64(errno)
	}
}

func readString(mem wasivfs.Memory, ptr, length uint32) (string, abi.Errno) {
	data, err := mem.Read(ptr, length)
	if err != nil {
		return "", abi.ErrnoFault
	}
	return string(data), abi.ErrnoSuccess
}

func write(mem wasivfs.Memory, ptr uint32, data []byte) abi.Errno {
	if err := mem.Write(ptr, data); err != nil {
		return abi.ErrnoFault
	}
	return abi.ErrnoSuccess
}

func (h *Host) fdFilestatGet(mem wasivfs.Memory, stack []uint64) abi.Errno {
	fd, buf := uint32(stack[0]), uint32(stack[1])

	st, err := h.fs.FilestatFd(fd)
	if err != nil {
		return abi.ToErrno(err)
	}
	var b [abi.FilestatSize]byte
	st.Marshal(b[:])
	return write(mem, buf, b[:])
}

// pathFilestatGet resolves relative to fd first. A miss falls back to the
// filesystem's top-level cache and repository.
func (h *Host) pathFilestatGet(mem wasivfs.Memory, stack []uint64) abi.Errno {
	fd := uint32(stack[0])
	flags := abi.Lookupflags(stack[1])
	pathPtr, pathLen, buf := uint32(stack[2]), uint32(stack[3]), uint32(stack[4])

	path, errno := readString(mem, pathPtr, pathLen)
	if errno != abi.ErrnoSuccess {
		return errno
	}

	st, err := h.fs.StatAt(fd, flags, path)
	if errors.Is(err, abi.ErrnoNoent) {
		st, err = h.fs.FilestatPath(fd, flags, path)
	}
	if err != nil {
		return abi.ToErrno(err)
	}
	var b [abi.FilestatSize]byte
	st.Marshal(b[:])
	return write(mem, buf, b[:])
}

func (h *Host) fdFdstatGet(mem wasivfs.Memory, stack []uint64) abi.Errno {
	fd, buf := uint32(stack[0]), uint32(stack[1])

	st, err := h.fs.Fdstat(fd)
	if err != nil {
		return abi.ToErrno(err)
	}
	var b [abi.FdstatSize]byte
	st.Marshal(b[:])
	return write(mem, buf, b[:])
}

func (h *Host) fdPrestatGet(mem wasivfs.Memory, stack []uint64) abi.Errno {
	fd, buf := uint32(stack[0]), uint32(stack[1])

	st, err := h.fs.Prestat(fd)
	if err != nil {
		return abi.ToErrno(err)
	}
	var b [abi.PrestatSize]byte
	st.Marshal(b[:])
	return write(mem, buf, b[:])
}

func (h *Host) fdPrestatDirName(mem wasivfs.Memory, stack []uint64) abi.Errno {
	fd, pathPtr, pathLen := uint32(stack[0]), uint32(stack[1]), uint32(stack[2])

	name, err := h.fs.PrestatDirName(fd)
	if err != nil {
		return abi.ToErrno(err)
	}
	if uint32(len(name)) > pathLen {
		return abi.ErrnoNametoolong
	}
	return write(mem, pathPtr, []byte(name))
}

// fdSync serves both fd_sync and fd_datasync: handles expose a single flush.
func (h *Host) fdSync(_ wasivfs.Memory, stack []uint64) abi.Errno {
	return abi.ToErrno(h.fs.Flush(uint32(stack[0])))
}

func (h *Host) fdClose(_ wasivfs.Memory, stack []uint64) abi.Errno {
	return abi.ToErrno(h.fs.Close(uint32(stack[0])))
}

func (h *Host) pathOpen(mem wasivfs.Memory, stack []uint64) abi.Errno {
	dirfd := uint32(stack[0])
	lookup := abi.Lookupflags(stack[1])
	pathPtr, pathLen := uint32(stack[2]), uint32(stack[3])
	oflags := abi.Oflags(stack[4])
	rights, inheriting := abi.Rights(stack[5]), abi.Rights(stack[6])
	fdflags := abi.Fdflags(stack[7])
	resultPtr := uint32(stack[8])

	path, errno := readString(mem, pathPtr, pathLen)
	if errno != abi.ErrnoSuccess {
		return errno
	}

	fd, err := h.fs.PathOpen(dirfd, lookup, path, oflags, rights, inheriting, fdflags)
	if err != nil {
		return abi.ToErrno(err)
	}
	if err := mem.WriteU32(resultPtr, fd); err != nil {
		h.fs.Close(fd)
		return abi.ErrnoFault
	}
	return abi.ErrnoSuccess
}
