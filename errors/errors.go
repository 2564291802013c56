package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where the error occurred
type Phase string

const (
	PhaseInit       Phase = "init"       // filesystem construction
	PhasePreopen    Phase = "preopen"    // mounting a host directory
	PhaseRepository Phase = "repository" // backing store access
	PhaseLookup     Phase = "lookup"     // lazy entry population
	PhaseConfig     Phase = "config"     // configuration loading
	PhaseHost       Phase = "host"       // host function registration
)

// Kind categorizes the error
type Kind string

const (
	KindNotDirectory Kind = "not_directory"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindIO           Kind = "io"
	KindUnsupported  Kind = "unsupported"
	KindRegistration Kind = "registration"
)

// Error is the structured error type returned by host-side operations
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the filesystem path involved
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Preopen creates an error for a host directory that could not be mounted
func Preopen(path string, cause error) *Error {
	return &Error{
		Phase:  PhasePreopen,
		Kind:   KindIO,
		Path:   path,
		Detail: "cannot open preopened directory",
		Cause:  cause,
	}
}

// NotDirectory creates an error for a path that must be a directory
func NotDirectory(phase Phase, path string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotDirectory,
		Path:   path,
		Detail: "not a directory",
	}
}

// Repository creates an error for a backing store that could not be used
func Repository(uri string, cause error) *Error {
	return &Error{
		Phase:  PhaseRepository,
		Kind:   KindIO,
		Path:   uri,
		Detail: "repository unavailable",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
