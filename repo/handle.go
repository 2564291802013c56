package repo

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// FlushTimeout bounds how long a buffered handle waits for its store.
var FlushTimeout = 30 * time.Second

type bufferedHandle struct {
	repo   *storeRepository
	entry  Entry
	offset int64
	mu     sync.Mutex
	dirty  bool
	closed bool
}

func newBufferedHandle(r *storeRepository, e Entry) *bufferedHandle {
	return &bufferedHandle{repo: r, entry: e}
}

func (h *bufferedHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrClosed
	}
	if h.offset >= int64(len(h.entry.Data)) {
		return 0, io.EOF
	}
	n := copy(p, h.entry.Data[h.offset:])
	h.offset += int64(n)
	return n, nil
}

func (h *bufferedHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrClosed
	}
	end := h.offset + int64(len(p))
	if end > int64(len(h.entry.Data)) {
		h.entry.Data = append(h.entry.Data, make([]byte, int(end)-len(h.entry.Data))...)
	}
	copy(h.entry.Data[h.offset:], p)
	h.offset = end
	h.dirty = true
	return len(p), nil
}

func (h *bufferedHandle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = h.offset + offset
	case io.SeekEnd:
		abs = int64(len(h.entry.Data)) + offset
	default:
		return 0, errors.New("repo: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("repo: negative position")
	}
	h.offset = abs
	return abs, nil
}

// Truncate resizes the buffered content. The change is persisted on Flush.
func (h *bufferedHandle) Truncate(size int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if size < 0 {
		return errors.New("repo: negative size")
	}
	if size <= int64(len(h.entry.Data)) {
		h.entry.Data = h.entry.Data[:size]
	} else {
		h.entry.Data = append(h.entry.Data, make([]byte, int(size)-len(h.entry.Data))...)
	}
	h.dirty = true
	return nil
}

// Flush persists buffered writes. A clean handle does not touch the store.
func (h *bufferedHandle) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	return h.flushLocked()
}

func (h *bufferedHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	err := h.flushLocked()
	h.closed = true
	return err
}

func (h *bufferedHandle) flushLocked() error {
	if !h.dirty {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
	defer cancel()

	h.entry.Mtime = time.Now()
	if err := h.repo.save(ctx, h.entry); err != nil {
		return err
	}
	h.dirty = false
	return nil
}
