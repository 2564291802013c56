package vfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"pgregory.net/rapid"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/arena"
	fserrors "github.com/wippyai/wasi-vfs/errors"
	"github.com/wippyai/wasi-vfs/repo"
)

func TestNew_Preopen(t *testing.T) {
	dir := sandbox(t)
	clock := time.Unix(1700000000, 0)
	fs := newTestFS(t, []string{dir}, WithClock(func() time.Time { return clock }))

	if got := fs.Preopens(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("Preopens() = %v, want [3]", got)
	}

	pre, err := fs.Prestat(3)
	if err != nil {
		t.Fatalf("Prestat failed: %v", err)
	}
	want := abi.Prestat{Tag: abi.PreopentypeDir, NameLen: uint32(len(dir))}
	if diff := cmp.Diff(want, pre); diff != "" {
		t.Errorf("prestat mismatch (-want +got):\n%s", diff)
	}

	name, err := fs.PrestatDirName(3)
	if err != nil || name != dir {
		t.Errorf("PrestatDirName = %q, %v", name, err)
	}

	st, err := fs.Fdstat(3)
	if err != nil {
		t.Fatalf("Fdstat failed: %v", err)
	}
	wantFd := abi.Fdstat{
		Filetype:         abi.FiletypeDirectory,
		RightsBase:       abi.DefaultRights,
		RightsInheriting: abi.DefaultRights,
	}
	if diff := cmp.Diff(wantFd, st); diff != "" {
		t.Errorf("fdstat mismatch (-want +got):\n%s", diff)
	}

	fst, err := fs.FilestatFd(3)
	if err != nil {
		t.Fatalf("FilestatFd failed: %v", err)
	}
	if fst.Filetype != abi.FiletypeDirectory || fst.Ino != FirstSyntheticIno || fst.Nlink != 1 {
		t.Errorf("unexpected filestat %+v", fst)
	}
	if fst.Atim != uint64(clock.UnixNano()) {
		t.Errorf("atim = %d, want clock", fst.Atim)
	}
}

// A preopen named like "/sandbox" yields fd 3 with an 8-byte name. The
// host root is not writable in tests, so the same-length relative name
// "sandbox/" is mounted instead.
func TestNew_SandboxScenario(t *testing.T) {
	parent := t.TempDir()
	if err := os.Mkdir(filepath.Join(parent, "sandbox"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(parent)

	fs := newTestFS(t, []string{"sandbox/"})

	if fs.fds.Len() != 1 {
		t.Fatalf("descriptors = %d, want 1", fs.fds.Len())
	}
	pre, err := fs.Prestat(3)
	if err != nil {
		t.Fatalf("Prestat failed: %v", err)
	}
	if pre.Tag != abi.PreopentypeDir || pre.NameLen != 8 {
		t.Errorf("prestat = %+v, want dir with name length 8", pre)
	}
	name, err := fs.PrestatDirName(3)
	if err != nil {
		t.Fatalf("PrestatDirName failed: %v", err)
	}
	if name != "sandbox/" || uint32(len(name)) != pre.NameLen {
		t.Errorf("dir name = %q, want %q matching name length", name, "sandbox/")
	}
}

func TestNew_MultiplePreopens(t *testing.T) {
	fs := newTestFS(t, []string{t.TempDir(), t.TempDir()})

	if diff := cmp.Diff([]uint32{3, 4}, fs.Preopens()); diff != "" {
		t.Errorf("preopens mismatch (-want +got):\n%s", diff)
	}
	a, _ := fs.FilestatFd(3)
	b, _ := fs.FilestatFd(4)
	if a.Ino == b.Ino {
		t.Error("preopens share an inode number")
	}
}

func TestNew_PreopenErrors(t *testing.T) {
	dir := sandbox(t)

	tests := []struct {
		name string
		path string
		want *fserrors.Error
	}{
		{"regular file", filepath.Join(dir, "a.txt"), &fserrors.Error{Phase: fserrors.PhasePreopen, Kind: fserrors.KindNotDirectory}},
		{"missing", filepath.Join(dir, "missing"), &fserrors.Error{Phase: fserrors.PhasePreopen, Kind: fserrors.KindIO}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := New([]string{dir, tt.path})
			if err == nil {
				t.Fatal("expected initialization to fail")
			}
			if fs != nil {
				t.Error("no filesystem should be returned")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want [%s] %s", err, tt.want.Phase, tt.want.Kind)
			}
			var fe *fserrors.Error
			if !errors.As(err, &fe) || fe.Path != tt.path {
				t.Errorf("error path = %v, want %q", err, tt.path)
			}
		})
	}
}

func TestNew_PreopenFailureClosesRepository(t *testing.T) {
	store := &closeCountStore{Store: repo.NewMemoryStore()}
	_, err := New([]string{"/definitely/not/here"}, WithRepository(repo.New(store, "x")))
	if err == nil {
		t.Fatal("expected failure")
	}
	if store.closes != 1 {
		t.Errorf("repository closed %d times, want 1", store.closes)
	}
}

type closeCountStore struct {
	repo.Store
	closes int
}

func (s *closeCountStore) Close() error {
	s.closes++
	return s.Store.Close()
}

func TestFdstat_FiletypeMatchesKind(t *testing.T) {
	fs := newTestFS(t, nil)

	target, _ := fs.Link(arena.Index{}, "buf", &Buffer{Bytes: []byte("x")})
	tests := []struct {
		name string
		kind Kind
		want abi.Filetype
	}{
		{"file", &File{Handle: &fakeHandle{}}, abi.FiletypeRegularFile},
		{"directory", NewDirectory(), abi.FiletypeDirectory},
		{"symlink", &Symlink{Target: target}, abi.FiletypeSymbolicLink},
		{"buffer", &Buffer{}, abi.FiletypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := fs.Link(arena.Index{}, tt.name, tt.kind)
			if err != nil {
				t.Fatalf("Link failed: %v", err)
			}
			fd, err := fs.CreateFd(abi.DefaultRights, 0, 0, idx)
			if err != nil {
				t.Fatalf("CreateFd failed: %v", err)
			}
			st, err := fs.Fdstat(fd)
			if err != nil {
				t.Fatalf("Fdstat failed: %v", err)
			}
			if st.Filetype != tt.want {
				t.Errorf("fdstat filetype = %s, want %s", st.Filetype, tt.want)
			}
			fst, _ := fs.FilestatFd(fd)
			if fst.Filetype != tt.want {
				t.Errorf("filestat filetype = %s, want %s", fst.Filetype, tt.want)
			}
		})
	}
}

func TestFdstat_ReportsInheritingRights(t *testing.T) {
	fs := newTestFS(t, nil)
	idx, _ := fs.Link(arena.Index{}, "f", &Buffer{})

	fd, _ := fs.CreateFd(abi.RightFdRead|abi.RightFdWrite, abi.RightFdRead, abi.FdflagAppend, idx)
	st, err := fs.Fdstat(fd)
	if err != nil {
		t.Fatalf("Fdstat failed: %v", err)
	}
	if st.RightsBase != abi.RightFdRead|abi.RightFdWrite || st.RightsInheriting != abi.RightFdRead {
		t.Errorf("rights = %s / %s", st.RightsBase, st.RightsInheriting)
	}
	if st.Flags != abi.FdflagAppend {
		t.Errorf("flags = %d", st.Flags)
	}
}

func TestBadDescriptor(t *testing.T) {
	fs := newTestFS(t, nil)

	for _, fd := range []uint32{3, 42} {
		_, err := fs.FilestatFd(fd)
		wantErrno(t, err, abi.ErrnoBadf)
		_, err = fs.Fdstat(fd)
		wantErrno(t, err, abi.ErrnoBadf)
		_, err = fs.Prestat(fd)
		wantErrno(t, err, abi.ErrnoBadf)
		wantErrno(t, fs.Flush(fd), abi.ErrnoBadf)
		wantErrno(t, fs.Close(fd), abi.ErrnoBadf)
	}
}

func TestPrestat_OnlyPreopened(t *testing.T) {
	fs := newTestFS(t, []string{sandbox(t)})

	fd, err := fs.PathOpen(3, 0, "sub", abi.OflagDirectory, abi.DefaultRights, abi.DefaultRights, 0)
	if err != nil {
		t.Fatalf("PathOpen failed: %v", err)
	}
	_, err = fs.Prestat(fd)
	wantErrno(t, err, abi.ErrnoBadf)
	_, err = fs.PrestatDirName(fd)
	wantErrno(t, err, abi.ErrnoBadf)
}

func TestFlush_Stdio(t *testing.T) {
	stdout := &flushWriter{}
	stderr := &flushWriter{}
	fs := newTestFS(t, nil, WithStdout(stdout), WithStderr(stderr))

	if err := fs.Flush(0); err != nil {
		t.Errorf("Flush(0) = %v", err)
	}
	if err := fs.Flush(1); err != nil {
		t.Errorf("Flush(1) = %v", err)
	}
	if err := fs.Flush(2); err != nil {
		t.Errorf("Flush(2) = %v", err)
	}
	if stdout.flushes != 1 || stderr.flushes != 1 {
		t.Errorf("flushes stdout=%d stderr=%d, want 1 each", stdout.flushes, stderr.flushes)
	}

	stderr.err = errors.New("broken pipe")
	wantErrno(t, fs.Flush(2), abi.ErrnoIo)
}

func TestFlush_RequiresDatasync(t *testing.T) {
	fs := newTestFS(t, nil)
	h := &fakeHandle{}
	idx, _ := fs.Link(arena.Index{}, "f", &File{Handle: h})

	denied, _ := fs.CreateFd(abi.DefaultRights&^abi.RightFdDatasync, 0, 0, idx)
	wantErrno(t, fs.Flush(denied), abi.ErrnoAcces)
	if h.flushes != 0 {
		t.Fatalf("handle flushed %d times without datasync right", h.flushes)
	}

	allowed, _ := fs.CreateFd(abi.RightFdDatasync, 0, 0, idx)
	if err := fs.Flush(allowed); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if h.flushes != 1 {
		t.Errorf("handle flushed %d times, want 1", h.flushes)
	}

	h.flushErr = errors.New("disk gone")
	wantErrno(t, fs.Flush(allowed), abi.ErrnoIo)
}

func TestFlush_NeverTouchesHandleWithoutRight(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fs, err := New(nil)
		if err != nil {
			rt.Fatalf("New: %v", err)
		}
		defer fs.Shutdown()

		h := &fakeHandle{}
		idx, _ := fs.Link(arena.Index{}, "f", &File{Handle: h})
		rights := abi.Rights(rapid.Uint64().Draw(rt, "rights")) &^ abi.RightFdDatasync

		fd, _ := fs.CreateFd(rights, 0, 0, idx)
		if err := fs.Flush(fd); !errors.Is(err, abi.ErrnoAcces) {
			rt.Fatalf("Flush = %v, want acces", err)
		}
		if h.flushes != 0 {
			rt.Fatalf("handle flushed")
		}
	})
}

func TestFlush_ByKind(t *testing.T) {
	fs := newTestFS(t, []string{t.TempDir()})

	wantErrno(t, fs.Flush(3), abi.ErrnoIsdir)

	buf, _ := fs.Link(arena.Index{}, "buf", &Buffer{Bytes: []byte("data")})
	fd, _ := fs.CreateFd(abi.RightFdDatasync, 0, 0, buf)
	if err := fs.Flush(fd); err != nil {
		t.Errorf("Flush(buffer) = %v", err)
	}
}

func TestFlush_SymlinkPanics(t *testing.T) {
	fs := newTestFS(t, nil)
	target, _ := fs.Link(arena.Index{}, "t", &Buffer{})
	link, _ := fs.Link(arena.Index{}, "l", &Symlink{Target: target})
	fd, _ := fs.CreateFd(abi.RightFdDatasync, 0, 0, link)

	defer func() {
		if recover() == nil {
			t.Error("flushing a symlink descriptor should panic")
		}
	}()
	fs.Flush(fd)
}

func TestCreateFd_DistinctIds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fs, err := New(nil)
		if err != nil {
			rt.Fatalf("New: %v", err)
		}
		defer fs.Shutdown()

		idx, _ := fs.Link(arena.Index{}, "shared", &Buffer{})
		n := rapid.IntRange(1, 200).Draw(rt, "n")
		for i := 0; i < n; i++ {
			fd, err := fs.CreateFd(0, 0, 0, idx)
			if err != nil {
				rt.Fatalf("CreateFd: %v", err)
			}
			if fd != uint32(3+i) {
				rt.Fatalf("allocation %d got fd %d", i, fd)
			}
		}
	})
}

func TestCreateFd_DeadInode(t *testing.T) {
	fs := newTestFS(t, nil)

	_, err := fs.CreateFd(0, 0, 0, arena.Index{Slot: 7, Gen: 1})
	wantErrno(t, err, abi.ErrnoInval)
}

func TestCreateFd_Concurrent(t *testing.T) {
	fs := newTestFS(t, nil)
	idx, _ := fs.Link(arena.Index{}, "shared", &Buffer{})

	const workers, per = 8, 50
	results := make(chan uint32, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				fd, err := fs.CreateFd(abi.RightFdRead, 0, 0, idx)
				if err != nil {
					t.Errorf("CreateFd failed: %v", err)
					return
				}
				results <- fd
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint32]bool)
	for fd := range results {
		if seen[fd] {
			t.Fatalf("fd %d allocated twice", fd)
		}
		seen[fd] = true
	}
	if len(seen) != workers*per {
		t.Errorf("allocated %d fds, want %d", len(seen), workers*per)
	}
}

func TestClose(t *testing.T) {
	fs := newTestFS(t, []string{t.TempDir()})

	for _, fd := range []uint32{0, 1, 2} {
		wantErrno(t, fs.Close(fd), abi.ErrnoBadf)
	}

	idx, err := fs.Inode(3)
	if err != nil {
		t.Fatalf("Inode failed: %v", err)
	}
	if err := fs.Close(3); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	_, err = fs.Fdstat(3)
	wantErrno(t, err, abi.ErrnoBadf)

	fd, err := fs.CreateFd(abi.DefaultRights, abi.DefaultRights, 0, idx)
	if err != nil {
		t.Fatalf("CreateFd on retained inode failed: %v", err)
	}
	if fd == 3 {
		t.Error("closed fd number was reused")
	}
}

func TestFilestatPath_Symlinks(t *testing.T) {
	tests := []struct {
		name string
		hops int
		want error
	}{
		{"single", 1, nil},
		{"at bound", MaxSymlinks, nil},
		{"past bound", MaxSymlinks + 1, abi.ErrnoMlink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTestFS(t, nil)
			prev, _ := fs.Link(arena.Index{}, "file", &Buffer{Bytes: []byte("abc")})
			for i := 0; i < tt.hops; i++ {
				prev, _ = fs.Link(arena.Index{}, "link"+strconv.Itoa(i), &Symlink{Target: prev})
			}
			head := "link" + strconv.Itoa(tt.hops-1)

			st, err := fs.FilestatPath(3, abi.LookupSymlinkFollow, head)
			if tt.want != nil {
				wantErrno(t, err, tt.want)
				return
			}
			if err != nil {
				t.Fatalf("FilestatPath failed: %v", err)
			}
			if st.Filetype != abi.FiletypeUnknown || st.Size != 3 {
				t.Errorf("resolved to %+v, want the buffer", st)
			}

			st, err = fs.FilestatPath(3, 0, head)
			if err != nil {
				t.Fatalf("FilestatPath without follow failed: %v", err)
			}
			if st.Filetype != abi.FiletypeSymbolicLink {
				t.Errorf("filetype without follow = %s, want symlink", st.Filetype)
			}
		})
	}
}

func TestFilestatPath_Cycle(t *testing.T) {
	fs := newTestFS(t, nil)

	seed, _ := fs.Link(arena.Index{}, "seed", &Buffer{})

	self, _ := fs.Link(arena.Index{}, "self", &Symlink{Target: seed})
	if err := fs.Relink(self, self); err != nil {
		t.Fatalf("Relink failed: %v", err)
	}

	a, _ := fs.Link(arena.Index{}, "a", &Symlink{Target: seed})
	b, _ := fs.Link(arena.Index{}, "b", &Symlink{Target: a})
	if err := fs.Relink(a, b); err != nil {
		t.Fatalf("Relink failed: %v", err)
	}

	for _, name := range []string{"self", "a", "b"} {
		_, err := fs.FilestatPath(3, abi.LookupSymlinkFollow, name)
		wantErrno(t, err, abi.ErrnoMlink)
	}

	st, err := fs.FilestatPath(3, 0, "self")
	if err != nil || st.Filetype != abi.FiletypeSymbolicLink {
		t.Errorf("unfollowed cycle = %+v, %v", st, err)
	}
}

func TestLink_SymlinkTargetMustBeLive(t *testing.T) {
	fs := newTestFS(t, nil)

	_, err := fs.Link(arena.Index{}, "zero", &Symlink{})
	wantErrno(t, err, abi.ErrnoInval)

	gone, _ := fs.Link(arena.Index{}, "gone", &Buffer{})
	fs.inodes.Remove(gone)
	_, err = fs.Link(arena.Index{}, "stale", &Symlink{Target: gone})
	wantErrno(t, err, abi.ErrnoInval)

	// Nothing was registered, so a follow lookup reports a miss, not a panic.
	_, err = fs.FilestatPath(3, abi.LookupSymlinkFollow, "stale")
	wantErrno(t, err, abi.ErrnoNoent)

	buf, _ := fs.Link(arena.Index{}, "buf", &Buffer{})
	link, err := fs.Link(arena.Index{}, "link", &Symlink{Target: buf})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	wantErrno(t, fs.Relink(link, gone), abi.ErrnoInval)
	wantErrno(t, fs.Relink(buf, link), abi.ErrnoInval)
}

func TestFilestatPath_Repository(t *testing.T) {
	ctx := context.Background()
	r := repo.New(repo.NewMemoryStore(), "test")
	if err := r.Mkdir(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	if err := r.Create(ctx, "docs/a.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	fs := newTestFS(t, nil, WithRepository(r))

	st, err := fs.FilestatPath(3, 0, "docs/a.txt")
	if err != nil {
		t.Fatalf("FilestatPath failed: %v", err)
	}
	if st.Filetype != abi.FiletypeRegularFile || st.Size != 5 || st.Ino < FirstSyntheticIno {
		t.Errorf("unexpected stat %+v", st)
	}

	again, _ := fs.FilestatPath(3, 0, "/docs/a.txt")
	if again.Ino != st.Ino {
		t.Errorf("second lookup ino %d, want cached %d", again.Ino, st.Ino)
	}

	dir, err := fs.FilestatPath(3, 0, "docs")
	if err != nil || dir.Filetype != abi.FiletypeDirectory {
		t.Errorf("docs = %+v, %v", dir, err)
	}

	_, err = fs.FilestatPath(3, 0, "docs/missing.txt")
	wantErrno(t, err, abi.ErrnoNoent)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	fs := newTestFS(t, []string{t.TempDir()}, WithRegisterer(reg))

	if got := testutil.ToFloat64(fs.metrics.descriptors); got != 1 {
		t.Errorf("open descriptors = %v, want 1", got)
	}

	fs.Fdstat(3)
	fs.Fdstat(99)
	fs.Close(3)

	if got := testutil.ToFloat64(fs.metrics.ops.WithLabelValues("fdstat", "success")); got != 1 {
		t.Errorf("fdstat success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(fs.metrics.ops.WithLabelValues("fdstat", "badf")); got != 1 {
		t.Errorf("fdstat badf = %v, want 1", got)
	}
	if got := testutil.ToFloat64(fs.metrics.descriptors); got != 0 {
		t.Errorf("open descriptors after close = %v, want 0", got)
	}
}

func TestShutdown_ClosesHandles(t *testing.T) {
	fs, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	h := &fakeHandle{}
	dh := &fakeHandle{}
	fs.Link(arena.Index{}, "f", &File{Handle: h})
	dir := NewDirectory()
	dir.Handle = dh
	fs.Link(arena.Index{}, "d", dir)

	if err := fs.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if h.closes != 1 || dh.closes != 1 {
		t.Errorf("closes file=%d dir=%d, want 1 each", h.closes, dh.closes)
	}
	if err := fs.Shutdown(); err != nil {
		t.Errorf("second Shutdown = %v", err)
	}
	if h.closes != 1 {
		t.Error("second Shutdown closed handles again")
	}
}
