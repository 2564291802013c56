// Command wasifs builds a preview1 filesystem from configuration and lets
// an operator inspect what a guest would see.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasi-vfs/config"
	"github.com/wippyai/wasi-vfs/repo"
	"github.com/wippyai/wasi-vfs/vfs"
)

// openTimeout bounds connecting to the repository.
const openTimeout = 10 * time.Second

type options struct {
	configPath string
	preopens   []string
	repository string
	logLevel   string
	dev        bool
	metrics    string
}

// session is the filesystem shared by one command invocation.
type session struct {
	cfg      *config.Config
	log      *zap.Logger
	fs       *vfs.Filesystem
	registry *prometheus.Registry
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "wasifs",
		Short:         "Inspect a WASI preview1 filesystem",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				color.NoColor = true
			}
		},
	}
	cmd.SetHelpTemplate(cmd.HelpTemplate() + "\nEnvironment:\n" + config.Usage())

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringSliceVarP(&opts.preopens, "preopen", "p", nil, "Preopened host directory (repeatable)")
	flags.StringVar(&opts.repository, "repository", "", "Repository URI (mem://, bolt://, postgres://)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level")
	flags.BoolVar(&opts.dev, "dev", false, "Development logging")
	flags.StringVar(&opts.metrics, "metrics-file", "", "Write metrics to this file on exit")

	cmd.AddCommand(
		newInspectCommand(&opts),
		newStatCommand(&opts),
		newBrowseCommand(&opts),
	)
	return cmd
}

func (o *options) apply(cmd *cobra.Command) func(*config.Config) {
	return func(c *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("preopen") {
			c.Preopens = o.preopens
		}
		if flags.Changed("repository") {
			c.Repository = o.repository
		}
		if flags.Changed("log-level") {
			c.Log.Level = o.logLevel
		}
		if flags.Changed("dev") {
			c.Log.Development = o.dev
		}
		if flags.Changed("metrics-file") {
			c.Metrics.Enabled = true
			c.Metrics.File = o.metrics
		}
	}
}

// open loads configuration and builds the filesystem. The caller must call
// close on the returned session.
func (o *options) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.configPath, o.apply(cmd))
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), openTimeout)
	defer cancel()

	r, err := repo.Open(ctx, cfg.Repository, cfg.Namespace)
	if err != nil {
		log.Sync()
		return nil, err
	}

	s := &session{cfg: cfg, log: log}
	fsOpts := []vfs.Option{
		vfs.WithLogger(log),
		vfs.WithRepository(r),
		vfs.WithNamespace(cfg.Namespace),
	}
	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		fsOpts = append(fsOpts, vfs.WithRegisterer(s.registry))
	}

	s.fs, err = vfs.New(cfg.Preopens, fsOpts...)
	if err != nil {
		log.Sync()
		return nil, err
	}
	log.Debug("filesystem ready",
		zap.String("fs", s.fs.ID()),
		zap.Strings("preopens", cfg.Preopens),
		zap.String("namespace", cfg.Namespace))
	return s, nil
}

func (s *session) close() error {
	if s.registry != nil && s.cfg.Metrics.File != "" {
		if err := prometheus.WriteToTextfile(s.cfg.Metrics.File, s.registry); err != nil {
			s.log.Warn("cannot write metrics", zap.String("file", s.cfg.Metrics.File), zap.Error(err))
		}
	}
	err := s.fs.Shutdown()
	s.log.Sync()
	return err
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
