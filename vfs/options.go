package vfs

import (
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-vfs/repo"
)

type options struct {
	logger     *zap.Logger
	repository repo.Repository
	namespace  string
	stdout     io.Writer
	stderr     io.Writer
	registerer prometheus.Registerer
	now        func() time.Time
}

// Option configures a Filesystem.
type Option func(*options)

// WithLogger sets the logger for one filesystem instance.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRepository sets the backing repository. The filesystem takes ownership
// and closes it on Shutdown. Without this option an in-memory repository is used.
func WithRepository(r repo.Repository) Option {
	return func(o *options) { o.repository = r }
}

// WithNamespace sets the namespace of the default in-memory repository.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithStdout sets the writer flushed for descriptor 1.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithStderr sets the writer flushed for descriptor 2.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

// WithRegisterer registers operation metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithClock overrides the time source used for synthetic timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func defaultOptions() options {
	return options{
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}
}
