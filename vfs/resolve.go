package vfs

import (
	"strings"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/arena"
)

// MaxSymlinks is the most symlink hops a single resolution may take.
const MaxSymlinks = 100

// follow dereferences idx while it names a symlink. Without deref the
// symlink itself is returned. Exceeding MaxSymlinks hops fails with
// ErrnoMlink, so a cycle fails after exactly MaxSymlinks+1 hops.
func (fs *Filesystem) follow(idx arena.Index, deref bool) (arena.Index, error) {
	if !deref {
		return idx, nil
	}
	hops := 0
	for {
		link, ok := fs.node(idx).Kind.(*Symlink)
		if !ok {
			return idx, nil
		}
		idx = link.Target
		hops++
		if hops > MaxSymlinks {
			return arena.Index{}, abi.ErrnoMlink
		}
	}
}

func components(p string) ([]string, error) {
	if p == "" {
		return nil, abi.ErrnoNoent
	}
	if strings.HasPrefix(p, "/") {
		return nil, abi.ErrnoNotcapable
	}
	var out []string
	for _, c := range strings.Split(p, "/") {
		if c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []string{"."}, nil
	}
	return out, nil
}

// walk resolves every component of p but the last, starting at the
// directory start. Intermediate symlinks are always followed. ".." is
// lexical and may not climb above start. The returned name is "." when p
// denotes the returned directory itself.
func (fs *Filesystem) walk(start arena.Index, p string) (arena.Index, string, error) {
	comps, err := components(p)
	if err != nil {
		return arena.Index{}, "", err
	}

	stack := []arena.Index{start}
	for _, c := range comps[:len(comps)-1] {
		switch c {
		case ".":
			continue
		case "..":
			if len(stack) == 1 {
				return arena.Index{}, "", abi.ErrnoNotcapable
			}
			stack = stack[:len(stack)-1]
			continue
		}

		idx, err := fs.child(stack[len(stack)-1], c)
		if err != nil {
			return arena.Index{}, "", err
		}
		idx, err = fs.follow(idx, true)
		if err != nil {
			return arena.Index{}, "", err
		}
		if _, ok := fs.node(idx).Kind.(*Directory); !ok {
			return arena.Index{}, "", abi.ErrnoNotdir
		}
		stack = append(stack, idx)
	}

	last := comps[len(comps)-1]
	if last == ".." {
		if len(stack) == 1 {
			return arena.Index{}, "", abi.ErrnoNotcapable
		}
		stack = stack[:len(stack)-1]
		last = "."
	}
	return stack[len(stack)-1], last, nil
}

// Resolve looks p up relative to the directory inode start, dereferencing a
// trailing symlink when follow is set.
func (fs *Filesystem) Resolve(start arena.Index, p string, follow bool) (arena.Index, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.resolve(start, p, follow)
}

func (fs *Filesystem) resolve(start arena.Index, p string, follow bool) (arena.Index, error) {
	if !fs.inodes.Contains(start) {
		return arena.Index{}, abi.ErrnoBadf
	}
	if _, ok := fs.node(start).Kind.(*Directory); !ok {
		return arena.Index{}, abi.ErrnoNotdir
	}

	dir, name, err := fs.walk(start, p)
	if err != nil {
		return arena.Index{}, err
	}
	if name == "." {
		return dir, nil
	}
	idx, err := fs.child(dir, name)
	if err != nil {
		return arena.Index{}, err
	}
	return fs.follow(idx, follow)
}
