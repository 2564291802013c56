package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/vfs"
)

func newStatCommand(opts *options) *cobra.Command {
	var (
		fd     uint32
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "stat PATH...",
		Short: "Print the filestat a guest would get for each path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, s.close())
			}()

			var flags abi.Lookupflags
			if follow {
				flags |= abi.LookupSymlinkFollow
			}
			return stat(cmd.OutOrStdout(), s.fs, fd, flags, args)
		},
	}
	cmd.Flags().Uint32Var(&fd, "fd", 3, "Directory descriptor paths are relative to")
	cmd.Flags().BoolVarP(&follow, "follow", "L", false, "Follow a trailing symlink")
	return cmd
}

// stat mirrors path_filestat_get: descriptor-relative first, then the
// top-level cache.
func stat(w io.Writer, fs *vfs.Filesystem, fd uint32, flags abi.Lookupflags, paths []string) error {
	var errs error
	for _, p := range paths {
		st, err := fs.StatAt(fd, flags, p)
		if errors.Is(err, abi.ErrnoNoent) {
			st, err = fs.FilestatPath(fd, flags, p)
		}
		if err != nil {
			errColor.Fprintf(w, "%s: %s\n", p, abi.ToErrno(err).Name())
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		printFilestat(w, p, st)
	}
	return errs
}

func printFilestat(w io.Writer, name string, st abi.Filestat) {
	fdColor.Fprintln(w, name)
	fmt.Fprintf(w, "  type   %s\n", st.Filetype)
	fmt.Fprintf(w, "  dev    %d\n", st.Dev)
	fmt.Fprintf(w, "  ino    %d\n", st.Ino)
	fmt.Fprintf(w, "  nlink  %d\n", st.Nlink)
	fmt.Fprintf(w, "  size   %d\n", st.Size)
	fmt.Fprintf(w, "  atim   %s\n", formatNanos(st.Atim))
	fmt.Fprintf(w, "  mtim   %s\n", formatNanos(st.Mtim))
	fmt.Fprintf(w, "  ctim   %s\n", formatNanos(st.Ctim))
}

func formatNanos(ns uint64) string {
	if ns == 0 {
		return dimColor.Sprint("-")
	}
	return time.Unix(0, int64(ns)).UTC().Format(time.RFC3339Nano)
}
