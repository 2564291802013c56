// Package repo provides the backing storage consumed by the filesystem.
//
// A Repository is a tree of files and directories addressed by slash
// separated paths relative to its root. Files are opened as Handles: byte
// streams that can be read, written, seeked and flushed. Content written to a
// handle is buffered and persisted to the store on Flush or Close.
//
// Repositories are selected by URI:
//
//	mem://scratch                  in-process map, lost on Close
//	bolt:///var/lib/wasifs.db      embedded bbolt database
//	postgres://user@host/db        PostgreSQL via pgx
//
// Every backend stores entries under a namespace so several filesystems can
// share one database without seeing each other's files.
package repo
