package repo

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type storeRepository struct {
	store     Store
	namespace string
}

// New returns a Repository over store, scoped to namespace. The root
// directory always exists.
func New(store Store, namespace string) Repository {
	return &storeRepository{store: store, namespace: namespace}
}

func (r *storeRepository) Stat(ctx context.Context, name string) (Metadata, error) {
	const op = "repo.Stat"

	name = Clean(name)
	if name == "" {
		return Metadata{Path: "", IsDir: true}, nil
	}
	e, err := r.store.Load(ctx, r.namespace, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Metadata{}, err
		}
		return Metadata{}, fmt.Errorf("%s: %w", op, err)
	}
	return metadataOf(e), nil
}

func (r *storeRepository) Open(ctx context.Context, name string) (Handle, error) {
	const op = "repo.Open"

	name = Clean(name)
	if name == "" {
		return nil, ErrIsDirectory
	}
	e, err := r.store.Load(ctx, r.namespace, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if e.IsDir {
		return nil, ErrIsDirectory
	}
	return newBufferedHandle(r, e), nil
}

func (r *storeRepository) Create(ctx context.Context, name string, data []byte) error {
	const op = "repo.Create"

	name = Clean(name)
	if name == "" {
		return ErrIsDirectory
	}
	if err := r.requireDir(ctx, parent(name)); err != nil {
		return err
	}

	now := time.Now()
	e := Entry{Path: name, Parent: parent(name), Data: data, Mtime: now, Ctime: now}
	if old, err := r.store.Load(ctx, r.namespace, name); err == nil {
		if old.IsDir {
			return ErrIsDirectory
		}
		e.Ctime = old.Ctime
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.store.Save(ctx, r.namespace, e); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *storeRepository) Mkdir(ctx context.Context, name string) error {
	const op = "repo.Mkdir"

	name = Clean(name)
	if name == "" {
		return ErrExist
	}
	if err := r.requireDir(ctx, parent(name)); err != nil {
		return err
	}
	if _, err := r.store.Load(ctx, r.namespace, name); err == nil {
		return ErrExist
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	e := Entry{Path: name, Parent: parent(name), IsDir: true, Mtime: now, Ctime: now}
	if err := r.store.Save(ctx, r.namespace, e); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *storeRepository) List(ctx context.Context, dir string) ([]string, error) {
	const op = "repo.List"

	dir = Clean(dir)
	if err := r.requireDir(ctx, dir); err != nil {
		return nil, err
	}
	names, err := r.store.Children(ctx, r.namespace, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return names, nil
}

func (r *storeRepository) Close() error {
	return r.store.Close()
}

func (r *storeRepository) requireDir(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	e, err := r.store.Load(ctx, r.namespace, name)
	if err != nil {
		return err
	}
	if !e.IsDir {
		return ErrNotDir
	}
	return nil
}

func (r *storeRepository) save(ctx context.Context, e Entry) error {
	return r.store.Save(ctx, r.namespace, e)
}

func metadataOf(e Entry) Metadata {
	return Metadata{
		Path:  e.Path,
		IsDir: e.IsDir,
		Size:  uint64(len(e.Data)),
		Mtime: e.Mtime,
		Ctime: e.Ctime,
	}
}
