package abi

import (
	"errors"
	"os"
	"strconv"
	"syscall"
)

// Errno is a WASI preview1 error code. It implements error so the filesystem
// core can return it through ordinary error results.
type Errno uint16

const (
	ErrnoSuccess Errno = iota
	Errno2big
	ErrnoAcces
	ErrnoAddrinuse
	ErrnoAddrnotavail
	ErrnoAfnosupport
	ErrnoAgain
	ErrnoAlready
	ErrnoBadf
	ErrnoBadmsg
	ErrnoBusy
	ErrnoCanceled
	ErrnoChild
	ErrnoConnaborted
	ErrnoConnrefused
	ErrnoConnreset
	ErrnoDeadlk
	ErrnoDestaddrreq
	ErrnoDom
	ErrnoDquot
	ErrnoExist
	ErrnoFault
	ErrnoFbig
	ErrnoHostunreach
	ErrnoIdrm
	ErrnoIlseq
	ErrnoInprogress
	ErrnoIntr
	ErrnoInval
	ErrnoIo
	ErrnoIsconn
	ErrnoIsdir
	ErrnoLoop
	ErrnoMfile
	ErrnoMlink
	ErrnoMsgsize
	ErrnoMultihop
	ErrnoNametoolong
	ErrnoNetdown
	ErrnoNetreset
	ErrnoNetunreach
	ErrnoNfile
	ErrnoNobufs
	ErrnoNodev
	ErrnoNoent
	ErrnoNoexec
	ErrnoNolck
	ErrnoNolink
	ErrnoNomem
	ErrnoNomsg
	ErrnoNoprotoopt
	ErrnoNospc
	ErrnoNosys
	ErrnoNotconn
	ErrnoNotdir
	ErrnoNotempty
	ErrnoNotrecoverable
	ErrnoNotsock
	ErrnoNotsup
	ErrnoNotty
	ErrnoNxio
	ErrnoOverflow
	ErrnoOwnerdead
	ErrnoPerm
	ErrnoPipe
	ErrnoProto
	ErrnoProtonosupport
	ErrnoPrototype
	ErrnoRange
	ErrnoRofs
	ErrnoSpipe
	ErrnoSrch
	ErrnoStale
	ErrnoTimedout
	ErrnoTxtbsy
	ErrnoXdev
	ErrnoNotcapable
)

var errnoNames = [...]string{
	"success", "2big", "acces", "addrinuse", "addrnotavail", "afnosupport",
	"again", "already", "badf", "badmsg", "busy", "canceled", "child",
	"connaborted", "connrefused", "connreset", "deadlk", "destaddrreq", "dom",
	"dquot", "exist", "fault", "fbig", "hostunreach", "idrm", "ilseq",
	"inprogress", "intr", "inval", "io", "isconn", "isdir", "loop", "mfile",
	"mlink", "msgsize", "multihop", "nametoolong", "netdown", "netreset",
	"netunreach", "nfile", "nobufs", "nodev", "noent", "noexec", "nolck",
	"nolink", "nomem", "nomsg", "noprotoopt", "nospc", "nosys", "notconn",
	"notdir", "notempty", "notrecoverable", "notsock", "notsup", "notty",
	"nxio", "overflow", "ownerdead", "perm", "pipe", "proto", "protonosupport",
	"prototype", "range", "rofs", "spipe", "srch", "stale", "timedout",
	"txtbsy", "xdev", "notcapable",
}

// Name returns the lower-case preview1 name, e.g. "badf".
func (e Errno) Name() string {
	if int(e) < len(errnoNames) {
		return errnoNames[e]
	}
	return "errno(" + strconv.Itoa(int(e)) + ")"
}

func (e Errno) Error() string {
	return "wasi: " + e.Name()
}

// ToErrno extracts the errno carried by err. A nil error is ErrnoSuccess;
// anything that is not an Errno and not a recognised host error is ErrnoIo.
func ToErrno(err error) Errno {
	if err == nil {
		return ErrnoSuccess
	}
	var errno Errno
	if errors.As(err, &errno) {
		return errno
	}
	return FromHostError(err)
}

// FromHostError maps an error returned by the os package onto the closest
// preview1 errno.
func FromHostError(err error) Errno {
	if err == nil {
		return ErrnoSuccess
	}
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		return fromSyscall(sysErr)
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrnoNoent
	case errors.Is(err, os.ErrPermission):
		return ErrnoAcces
	case errors.Is(err, os.ErrExist):
		return ErrnoExist
	case errors.Is(err, os.ErrClosed):
		return ErrnoBadf
	default:
		return ErrnoIo
	}
}

func fromSyscall(errno syscall.Errno) Errno {
	switch errno {
	case syscall.EACCES:
		return ErrnoAcces
	case syscall.EPERM:
		return ErrnoPerm
	case syscall.ENOENT:
		return ErrnoNoent
	case syscall.EEXIST:
		return ErrnoExist
	case syscall.ENOTDIR:
		return ErrnoNotdir
	case syscall.EISDIR:
		return ErrnoIsdir
	case syscall.ENOTEMPTY:
		return ErrnoNotempty
	case syscall.ENAMETOOLONG:
		return ErrnoNametoolong
	case syscall.ENOSPC:
		return ErrnoNospc
	case syscall.EROFS:
		return ErrnoRofs
	case syscall.EXDEV:
		return ErrnoXdev
	case syscall.ELOOP:
		return ErrnoLoop
	case syscall.EMLINK:
		return ErrnoMlink
	case syscall.EBUSY:
		return ErrnoBusy
	case syscall.EINVAL:
		return ErrnoInval
	case syscall.EBADF:
		return ErrnoBadf
	default:
		return ErrnoIo
	}
}
