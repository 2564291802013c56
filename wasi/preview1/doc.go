// Package preview1 exposes a vfs.Filesystem to guests as the filesystem part
// of the wasi_snapshot_preview1 host module.
//
// Each host function decodes its arguments from the wazero value stack,
// calls into the filesystem and encodes the result records into the calling
// module's linear memory. The return value is always a preview1 errno.
// Guest pointers outside linear memory yield ErrnoFault.
//
//	host := preview1.NewHost(fs)
//	if _, err := host.Instantiate(ctx, rt); err != nil {
//	    return err
//	}
package preview1
