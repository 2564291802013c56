package abi

import "encoding/binary"

// Wire sizes of the records written into guest memory.
const (
	FilestatSize = 64
	FdstatSize   = 24
	PrestatSize  = 8
)

// Filestat is the preview1 filestat record.
type Filestat struct {
	Dev      uint64
	Ino      uint64
	Filetype Filetype
	Nlink    uint64
	Size     uint64
	Atim     uint64
	Mtim     uint64
	Ctim     uint64
}

// Marshal writes the 64-byte little-endian layout into buf.
func (s *Filestat) Marshal(buf []byte) {
	_ = buf[FilestatSize-1]
	binary.LittleEndian.PutUint64(buf[0:], s.Dev)
	binary.LittleEndian.PutUint64(buf[8:], s.Ino)
	buf[16] = byte(s.Filetype)
	clear(buf[17:24])
	binary.LittleEndian.PutUint64(buf[24:], s.Nlink)
	binary.LittleEndian.PutUint64(buf[32:], s.Size)
	binary.LittleEndian.PutUint64(buf[40:], s.Atim)
	binary.LittleEndian.PutUint64(buf[48:], s.Mtim)
	binary.LittleEndian.PutUint64(buf[56:], s.Ctim)
}

// Fdstat is the preview1 fdstat record.
type Fdstat struct {
	Filetype         Filetype
	Flags            Fdflags
	RightsBase       Rights
	RightsInheriting Rights
}

// Marshal writes the 24-byte little-endian layout into buf:
// filetype at 0, flags at 2, base rights at 8, inheriting rights at 16.
func (s *Fdstat) Marshal(buf []byte) {
	_ = buf[FdstatSize-1]
	buf[0] = byte(s.Filetype)
	buf[1] = 0
	binary.LittleEndian.PutUint16(buf[2:], uint16(s.Flags))
	clear(buf[4:8])
	binary.LittleEndian.PutUint64(buf[8:], uint64(s.RightsBase))
	binary.LittleEndian.PutUint64(buf[16:], uint64(s.RightsInheriting))
}

// Prestat is the preview1 prestat tagged union. Only the directory variant
// exists, carrying the byte length of the preopen name.
type Prestat struct {
	Tag     Preopentype
	NameLen uint32
}

// Marshal writes the 8-byte layout into buf.
func (s *Prestat) Marshal(buf []byte) {
	_ = buf[PrestatSize-1]
	buf[0] = byte(s.Tag)
	clear(buf[1:4])
	binary.LittleEndian.PutUint32(buf[4:], s.NameLen)
}
