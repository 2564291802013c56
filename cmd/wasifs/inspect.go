package main

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/wippyai/wasi-vfs/abi"
	"github.com/wippyai/wasi-vfs/fdtable"
	"github.com/wippyai/wasi-vfs/vfs"
	"github.com/wippyai/wasi-vfs/wasi/preview1"
)

var (
	headerColor = color.New(color.FgMagenta, color.Bold)
	fdColor     = color.New(color.FgCyan)
	okColor     = color.New(color.FgGreen)
	errColor    = color.New(color.FgRed)
	dimColor    = color.New(color.Faint)
)

func newInspectCommand(opts *options) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the descriptor table a guest starts with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, s.close())
			}()
			return inspect(cmd.OutOrStdout(), s.fs, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List rights by name")
	return cmd
}

func inspect(w io.Writer, fs *vfs.Filesystem, verbose bool) error {
	headerColor.Fprintf(w, "Filesystem %s\n\n", fs.ID())

	fs.Descriptors(func(fd uint32, d fdtable.Descriptor, n vfs.Inode) bool {
		fdColor.Fprintf(w, "fd %-3d", fd)
		fmt.Fprintf(w, " %-16s %s\n", n.Kind.Filetype(), n.Name)
		printRights(w, "rights", d.Rights, verbose)
		printRights(w, "inheriting", d.RightsInheriting, verbose)
		if n.Preopened {
			fmt.Fprintf(w, "       %s ino=%d\n", dimColor.Sprint("preopen"), n.Stat.Ino)
		}
		return true
	})

	fmt.Fprintln(w)
	headerColor.Fprintf(w, "Module %s\n", preview1.ModuleName)
	host := preview1.NewHost(fs)
	for _, name := range host.Names() {
		params, _ := host.Signature(name)
		fmt.Fprintf(w, "  %s(%d params) -> errno\n", okColor.Sprint(name), len(params))
	}
	return nil
}

func printRights(w io.Writer, label string, r abi.Rights, verbose bool) {
	if verbose {
		fmt.Fprintf(w, "       %-10s %s\n", label, r)
		return
	}
	fmt.Fprintf(w, "       %-10s %#x (%d)\n", label, uint64(r), bits.OnesCount64(uint64(r)))
}
