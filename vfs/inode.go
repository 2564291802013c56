package vfs

import (
	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/arena"
	"github.com/wippyai/wasi-vfs/repo"
)

// Inode is one filesystem node. Inodes live in the filesystem's arena and
// are only reachable through arena indices.
type Inode struct {
	Kind      Kind
	Name      string
	Stat      abi.Filestat
	Preopened bool
}

// Kind is the node variant: *File, *Directory, *Symlink or *Buffer.
type Kind interface {
	Filetype() abi.Filetype
}

// File is a regular file backed by a handle.
type File struct {
	Handle repo.Handle
}

// Directory holds named references to child inodes. Entries are filled
// lazily from the directory's backing on first lookup.
type Directory struct {
	Handle  repo.Handle
	Entries map[string]arena.Index
	src     source
}

// Symlink forwards to another inode.
type Symlink struct {
	Target arena.Index
}

// Buffer is an in-memory file with no backing handle.
type Buffer struct {
	Bytes []byte
}

func (*File) Filetype() abi.Filetype      { return abi.FiletypeRegularFile }
func (*Directory) Filetype() abi.Filetype { return abi.FiletypeDirectory }
func (*Symlink) Filetype() abi.Filetype   { return abi.FiletypeSymbolicLink }
func (*Buffer) Filetype() abi.Filetype    { return abi.FiletypeUnknown }

// NewDirectory returns an empty in-memory directory.
func NewDirectory() *Directory {
	return &Directory{Entries: make(map[string]arena.Index)}
}

// source records where a directory's children come from.
type source struct {
	// host is the absolute host path of the directory; root bounds every
	// host lookup beneath it.
	host string
	root string
	// repo is the repository path when repository-backed.
	repo   string
	inRepo bool
}

func (n *Inode) handle() repo.Handle {
	switch k := n.Kind.(type) {
	case *File:
		return k.Handle
	case *Directory:
		return k.Handle
	}
	return nil
}
