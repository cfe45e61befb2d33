package zcore

import (
	"encoding/binary"
	"fmt"
)

const (
	headerSize    = 0x40
	maxStoryBytes = 128 * 1024
)

// Core owns the story file bytes and the header record parsed from the fixed
// 64 byte prefix. All memory access in the interpreter flows through it.
type Core struct {
	bytes                 []uint8
	Version               uint8
	FlagByte1             uint8
	StatusBarTimeBased    bool
	ReleaseNumber         uint16
	HighMemoryBase        uint16
	FirstInstruction      uint16
	DictionaryBase        uint16
	ObjectTableBase       uint16
	GlobalVariableBase    uint16
	StaticMemoryBase      uint16
	SerialCode            []uint8
	AbbreviationTableBase uint16
	FileChecksum          uint16
}

// LoadCore parses the header and announces this interpreter's capabilities by
// rewriting flags1. It also fills in the interpreter number, interpreter
// version and standard revision fields; these are the only writes to the
// header region at load that don't come from the game itself.
func LoadCore(bytes []uint8) (Core, error) {
	if len(bytes) < headerSize {
		return Core{}, fmt.Errorf("story file too small: %d bytes", len(bytes))
	}
	if len(bytes) > maxStoryBytes {
		return Core{}, fmt.Errorf("story file too large: %d bytes", len(bytes))
	}

	if bytes[0x00] != 3 {
		return Core{}, Fault{Kind: UnsupportedVersion, Detail: fmt.Sprintf("story file is version %d, only version 3 is supported", bytes[0x00])}
	}

	// Status line is available, screen splitting is available, font is not
	// variable pitch by default
	bytes[0x01] &= 0b1000_1111
	bytes[0x01] |= 0b0010_0000

	bytes[0x1e] = 0x6 // Interpreter number - IBM PC chosen as closest match
	bytes[0x1f] = 0x1 // Interpreter version - nobody cares

	// Claim conformance with v1.0 of the standard
	bytes[0x32] = 0x1
	bytes[0x33] = 0x0

	core := Core{
		bytes:                 bytes,
		Version:               bytes[0x00],
		FlagByte1:             bytes[0x01],
		StatusBarTimeBased:    bytes[0x01]&0b0000_0010 == 0b0000_0010,
		ReleaseNumber:         binary.BigEndian.Uint16(bytes[0x02:0x04]),
		HighMemoryBase:        binary.BigEndian.Uint16(bytes[0x04:0x06]),
		FirstInstruction:      binary.BigEndian.Uint16(bytes[0x06:0x08]),
		DictionaryBase:        binary.BigEndian.Uint16(bytes[0x08:0x0a]),
		ObjectTableBase:       binary.BigEndian.Uint16(bytes[0x0a:0x0c]),
		GlobalVariableBase:    binary.BigEndian.Uint16(bytes[0x0c:0x0e]),
		StaticMemoryBase:      binary.BigEndian.Uint16(bytes[0x0e:0x10]),
		SerialCode:            bytes[0x12:0x18],
		AbbreviationTableBase: binary.BigEndian.Uint16(bytes[0x18:0x1a]),
		FileChecksum:          binary.BigEndian.Uint16(bytes[0x1c:0x1e]),
	}

	if core.StaticMemoryBase < headerSize {
		return Core{}, fmt.Errorf("static memory base 0x%x overlaps header", core.StaticMemoryBase)
	}
	if uint32(core.StaticMemoryBase) > core.MemoryLength() {
		return Core{}, fmt.Errorf("static memory base 0x%x beyond end of file", core.StaticMemoryBase)
	}

	return core, nil
}

// FileLength - the header stores the length in words on v3
func (core *Core) FileLength() uint32 {
	return uint32(binary.BigEndian.Uint16(core.bytes[0x1a:0x1c])) * 2
}

// Checksum is the sum of every byte past the header, modulo 0x10000. The
// verify opcode compares it against the header field.
func (core *Core) Checksum() uint16 {
	length := core.FileLength()
	if length > core.MemoryLength() {
		length = core.MemoryLength()
	}

	checksum := uint16(0)
	for ix := uint32(headerSize); ix < length; ix++ {
		checksum += uint16(core.bytes[ix])
	}

	return checksum
}

func (core *Core) ReadByte(address uint32) uint8 {
	if address >= core.MemoryLength() {
		Raise(FaultOutOfBounds, "read of byte at 0x%x, memory ends at 0x%x", address, core.MemoryLength())
	}
	return core.bytes[address]
}

func (core *Core) ReadHalfWord(address uint32) uint16 {
	if address+1 >= core.MemoryLength() {
		Raise(FaultOutOfBounds, "read of half word at 0x%x, memory ends at 0x%x", address, core.MemoryLength())
	}
	return binary.BigEndian.Uint16(core.bytes[address : address+2])
}

func (core *Core) ReadSlice(startAddress uint32, endAddress uint32) []uint8 {
	if startAddress > endAddress || endAddress > core.MemoryLength() {
		Raise(FaultOutOfBounds, "read of range 0x%x-0x%x, memory ends at 0x%x", startAddress, endAddress, core.MemoryLength())
	}
	return core.bytes[startAddress:endAddress]
}

func (core *Core) WriteByte(address uint32, value uint8) {
	core.checkWritable(address, 1)
	core.bytes[address] = value
}

func (core *Core) WriteHalfWord(address uint32, value uint16) {
	core.checkWritable(address, 2)
	binary.BigEndian.PutUint16(core.bytes[address:address+2], value)
}

func (core *Core) checkWritable(address uint32, size uint32) {
	if address+size > core.MemoryLength() {
		Raise(FaultOutOfBounds, "write at 0x%x, memory ends at 0x%x", address, core.MemoryLength())
	}
	if address+size > uint32(core.StaticMemoryBase) {
		Raise(FaultReadOnly, "write at 0x%x, static memory starts at 0x%x", address, core.StaticMemoryBase)
	}
}

// ResetDynamicMemory overwrites dynamic memory with the supplied image. Used
// by restart and restore, which bypass the read-only check but must preserve
// the transcript and fixed-pitch bits of flags2.
func (core *Core) ResetDynamicMemory(image []uint8) bool {
	if len(image) != int(core.StaticMemoryBase) {
		return false
	}

	preservedFlags2 := core.bytes[0x10] & 0b0000_0011
	copy(core.bytes[:core.StaticMemoryBase], image)
	core.bytes[0x10] = (core.bytes[0x10] &^ 0b0000_0011) | preservedFlags2
	return true
}

// DynamicMemory - a defensive copy, used for save states and restart
func (core *Core) DynamicMemory() []uint8 {
	snapshot := make([]uint8, core.StaticMemoryBase)
	copy(snapshot, core.bytes[:core.StaticMemoryBase])
	return snapshot
}

func (core *Core) MemoryLength() uint32 {
	return uint32(len(core.bytes))
}
