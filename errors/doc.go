// Package errors provides the structured host-side errors of the filesystem.
//
// Guest-visible failures are plain abi.Errno values. Everything that goes
// wrong before a guest ever runs (mounting preopens, opening the backing
// repository, loading configuration, registering host functions) is reported
// as an *Error categorized by Phase (where it happened) and Kind (what went
// wrong).
//
//	err := errors.New(errors.PhasePreopen, errors.KindNotDirectory).
//		Path("/sandbox/file.txt").
//		Detail("preopen must be a directory").
//		Build()
//
// Or with the convenience constructors:
//
//	err := errors.NotDirectory(errors.PhasePreopen, "/sandbox/file.txt")
//	err := errors.Repository("bolt:///var/lib/fs.db", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
