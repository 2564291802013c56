package abi

import "strconv"

// Filetype is the preview1 file type enumeration.
type Filetype uint8

const (
	FiletypeUnknown Filetype = iota
	FiletypeBlockDevice
	FiletypeCharacterDevice
	FiletypeDirectory
	FiletypeRegularFile
	FiletypeSocketDgram
	FiletypeSocketStream
	FiletypeSymbolicLink
)

var filetypeNames = [...]string{
	"unknown", "block_device", "character_device", "directory",
	"regular_file", "socket_dgram", "socket_stream", "symbolic_link",
}

func (t Filetype) String() string {
	if int(t) < len(filetypeNames) {
		return filetypeNames[t]
	}
	return "filetype(" + strconv.Itoa(int(t)) + ")"
}
