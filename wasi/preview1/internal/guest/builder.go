// Package guest builds minimal guest modules for exercising host functions.
package guest

import (
	"github.com/tetratelabs/wazero/api"
)

// MemoryExport is the export name of the guest's linear memory.
const MemoryExport = "memory"

// Builder assembles a module that imports host functions and re-exports each
// one under the same name through a trampoline, so tests can call host
// functions with the guest as the calling module. The module defines and
// exports one linear memory.
type Builder struct {
	hostModule  string
	funcs       []guestFunc
	memoryPages uint32
}

type guestFunc struct {
	name        string
	paramTypes  []api.ValueType
	resultTypes []api.ValueType
}

// NewBuilder creates a builder importing from hostModule.
func NewBuilder(hostModule string) *Builder {
	return &Builder{hostModule: hostModule, memoryPages: 1}
}

// AddFunc adds a function to import and re-export.
func (b *Builder) AddFunc(name string, params, results []api.ValueType) *Builder {
	b.funcs = append(b.funcs, guestFunc{
		name:        name,
		paramTypes:  params,
		resultTypes: results,
	})
	return b
}

// SetMemoryPages sets the initial memory size in 64KiB pages.
func (b *Builder) SetMemoryPages(pages uint32) *Builder {
	b.memoryPages = pages
	return b
}

// Build generates the WASM module bytes.
func (b *Builder) Build() []byte {
	var wasm []byte

	// Magic and version
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	if len(b.funcs) > 0 {
		wasm = append(wasm, section(0x01, b.buildTypeSection())...)
		wasm = append(wasm, section(0x02, b.buildImportSection())...)
		wasm = append(wasm, section(0x03, b.buildFuncSection())...)
	}
	wasm = append(wasm, section(0x05, b.buildMemorySection())...)
	wasm = append(wasm, section(0x07, b.buildExportSection())...)
	if len(b.funcs) > 0 {
		wasm = append(wasm, section(0x0a, b.buildCodeSection())...)
	}
	return wasm
}

// One type per function; function i uses type i.
func (b *Builder) buildTypeSection() []byte {
	out := EncodeULEB128(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		out = append(out, 0x60)
		out = append(out, EncodeULEB128(uint32(len(f.paramTypes)))...)
		for _, p := range f.paramTypes {
			out = append(out, ValTypeToWasm(p))
		}
		out = append(out, EncodeULEB128(uint32(len(f.resultTypes)))...)
		for _, r := range f.resultTypes {
			out = append(out, ValTypeToWasm(r))
		}
	}
	return out
}

func (b *Builder) buildImportSection() []byte {
	out := EncodeULEB128(uint32(len(b.funcs)))
	for i, f := range b.funcs {
		out = append(out, encodeName(b.hostModule)...)
		out = append(out, encodeName(f.name)...)
		out = append(out, 0x00) // func
		out = append(out, EncodeULEB128(uint32(i))...)
	}
	return out
}

func (b *Builder) buildFuncSection() []byte {
	out := EncodeULEB128(uint32(len(b.funcs)))
	for i := range b.funcs {
		out = append(out, EncodeULEB128(uint32(i))...)
	}
	return out
}

func (b *Builder) buildMemorySection() []byte {
	out := EncodeULEB128(1)
	out = append(out, 0x00) // min only
	return append(out, EncodeULEB128(b.memoryPages)...)
}

// Trampolines follow the imports in the function index space.
func (b *Builder) buildExportSection() []byte {
	out := EncodeULEB128(uint32(len(b.funcs) + 1))
	for i, f := range b.funcs {
		out = append(out, encodeName(f.name)...)
		out = append(out, 0x00) // func
		out = append(out, EncodeULEB128(uint32(len(b.funcs)+i))...)
	}
	out = append(out, encodeName(MemoryExport)...)
	out = append(out, 0x02) // memory
	return append(out, 0x00)
}

func (b *Builder) buildCodeSection() []byte {
	out := EncodeULEB128(uint32(len(b.funcs)))
	for i, f := range b.funcs {
		var body []byte
		body = append(body, 0x00) // no locals
		for p := range f.paramTypes {
			body = append(body, 0x20) // local.get
			body = append(body, EncodeULEB128(uint32(p))...)
		}
		body = append(body, 0x10) // call
		body = append(body, EncodeULEB128(uint32(i))...)
		body = append(body, 0x0b) // end

		out = append(out, EncodeULEB128(uint32(len(body)))...)
		out = append(out, body...)
	}
	return out
}
