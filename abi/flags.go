package abi

// Fdflags are the descriptor flags reported by fdstat.
type Fdflags uint16

const (
	FdflagAppend Fdflags = 1 << iota
	FdflagDsync
	FdflagNonblock
	FdflagRsync
	FdflagSync
)

// Lookupflags control path resolution.
type Lookupflags uint32

// LookupSymlinkFollow asks the resolver to dereference a trailing symlink.
const LookupSymlinkFollow Lookupflags = 1

// Oflags are the open flags accepted by path_open.
type Oflags uint16

const (
	OflagCreat Oflags = 1 << iota
	OflagDirectory
	OflagExcl
	OflagTrunc
)

// Preopentype tags a prestat record.
type Preopentype uint8

// PreopentypeDir is the only tag preview1 defines.
const PreopentypeDir Preopentype = 0

// Reserved descriptor numbers for the standard streams.
const (
	FdStdin  uint32 = 0
	FdStdout uint32 = 1
	FdStderr uint32 = 2
)
