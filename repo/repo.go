package repo

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	fserrors "github.com/wippyai/wasi-vfs/errors"
)

var (
	ErrNotFound    = errors.New("repo: not found")
	ErrExist       = errors.New("repo: already exists")
	ErrNotDir      = errors.New("repo: not a directory")
	ErrIsDirectory = errors.New("repo: is a directory")
	ErrClosed      = errors.New("repo: handle closed")
)

// Metadata describes one repository entry.
type Metadata struct {
	Mtime time.Time
	Ctime time.Time
	Path  string
	Size  uint64
	IsDir bool
}

// Handle is an open byte stream backing a file or directory inode.
type Handle interface {
	io.ReadWriteSeeker
	Flush() error
	Close() error
}

// Repository is a tree of files and directories.
type Repository interface {
	Stat(ctx context.Context, name string) (Metadata, error)
	Open(ctx context.Context, name string) (Handle, error)
	Create(ctx context.Context, name string, data []byte) error
	Mkdir(ctx context.Context, name string) error
	List(ctx context.Context, dir string) ([]string, error)
	Close() error
}

// Open selects a backend by URI scheme and returns a repository scoped to
// namespace.
func Open(ctx context.Context, uri, namespace string) (Repository, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fserrors.Repository(uri, err)
	}

	var store Store
	switch u.Scheme {
	case "mem":
		store = NewMemoryStore()
	case "bolt":
		file := u.Path
		if u.Host != "" {
			file = u.Host + u.Path
		}
		if file == "" {
			return nil, fserrors.New(fserrors.PhaseRepository, fserrors.KindInvalidInput).
				Path(uri).
				Detail("bolt repository needs a database path").
				Build()
		}
		store, err = OpenBoltStore(file)
	case "postgres", "postgresql":
		store, err = OpenPostgresStore(ctx, uri)
	default:
		return nil, fserrors.Unsupported(fserrors.PhaseRepository, "repository scheme "+u.Scheme)
	}
	if err != nil {
		return nil, fserrors.Repository(u.Redacted(), err)
	}

	Logger().Debug("repository opened",
		zap.String("scheme", u.Scheme),
		zap.String("namespace", namespace))
	return New(store, namespace), nil
}

// Clean normalises a repository path: slash separated, no leading slash,
// "" for the root.
func Clean(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(name, "/")
}

func parent(name string) string {
	dir := path.Dir("/" + name)
	return strings.TrimPrefix(dir, "/")
}
