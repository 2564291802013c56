// Package abi defines the WASI preview1 values shared by the filesystem core
// and the syscall binding: errno codes, rights bits, file types, descriptor
// and lookup flags, and the filestat/fdstat/prestat records with their
// little-endian wire layouts.
//
// Values match wasi_snapshot_preview1 bit-for-bit. Rights masks carry every
// bit they were given, including bits this package has no name for.
package abi
