// Package vfs implements the guest-facing filesystem state of a WASI
// preview1 module instance.
//
// A Filesystem owns an arena of inodes, a descriptor table and a name cache.
// It is created from a list of host directories to preopen; each becomes a
// directory inode with a descriptor carrying every preview1 right:
//
//	fs, err := vfs.New([]string{"/srv/sandbox"}, vfs.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer fs.Shutdown()
//
//	st, err := fs.Prestat(3) // preopened directory, NameLen 12
//
// Operations return abi.Errno values as errors. Children of preopened
// directories are discovered lazily on first lookup, confined to the
// preopen's host root. Paths missing from the top-level cache are looked up
// in the backing repository.
//
// Symlink chains are followed at most MaxSymlinks hops.
package vfs
