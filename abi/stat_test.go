package abi

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFilestat_Marshal(t *testing.T) {
	buf := bytes.Repeat([]byte{0xAA}, FilestatSize)
	st := Filestat{
		Dev:      1,
		Ino:      1000,
		Filetype: FiletypeDirectory,
		Nlink:    2,
		Size:     4096,
		Atim:     11,
		Mtim:     22,
		Ctim:     33,
	}
	st.Marshal(buf)

	le := binary.LittleEndian
	if le.Uint64(buf[8:]) != 1000 {
		t.Errorf("ino = %d", le.Uint64(buf[8:]))
	}
	if buf[16] != byte(FiletypeDirectory) {
		t.Errorf("filetype = %d", buf[16])
	}
	for i := 17; i < 24; i++ {
		if buf[i] != 0 {
			t.Fatalf("padding byte %d = %#x, want 0", i, buf[i])
		}
	}
	if le.Uint64(buf[32:]) != 4096 || le.Uint64(buf[56:]) != 33 {
		t.Errorf("size/ctim = %d/%d", le.Uint64(buf[32:]), le.Uint64(buf[56:]))
	}
}

func TestFdstat_Marshal(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF}, FdstatSize)
	st := Fdstat{
		Filetype:         FiletypeRegularFile,
		Flags:            FdflagAppend | FdflagSync,
		RightsBase:       RightFdRead | RightFdWrite,
		RightsInheriting: RightFdRead,
	}
	st.Marshal(buf)

	want := []byte{
		4, 0, 0x11, 0, 0, 0, 0, 0,
		0x42, 0, 0, 0, 0, 0, 0, 0,
		0x02, 0, 0, 0, 0, 0, 0, 0,
	}
	if !bytes.Equal(buf, want) {
		t.Errorf("fdstat bytes = %v, want %v", buf, want)
	}
}

func TestPrestat_Marshal(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF}, PrestatSize)
	st := Prestat{Tag: PreopentypeDir, NameLen: 8}
	st.Marshal(buf)

	want := []byte{0, 0, 0, 0, 8, 0, 0, 0}
	if !bytes.Equal(buf, want) {
		t.Errorf("prestat bytes = %v, want %v", buf, want)
	}
}
