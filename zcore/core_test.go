package zcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putHalfWord(mem []uint8, addr int, v uint16) {
	mem[addr] = uint8(v >> 8)
	mem[addr+1] = uint8(v)
}

func minimalStory() []uint8 {
	mem := make([]uint8, 0x400)
	mem[0x00] = 3
	putHalfWord(mem, 0x02, 12)     // release
	putHalfWord(mem, 0x04, 0x0300) // high memory base
	putHalfWord(mem, 0x06, 0x0300) // initial pc
	putHalfWord(mem, 0x08, 0x0280) // dictionary
	putHalfWord(mem, 0x0a, 0x0100) // object table
	putHalfWord(mem, 0x0c, 0x0180) // globals
	putHalfWord(mem, 0x0e, 0x0280) // static memory base
	putHalfWord(mem, 0x18, 0x0048) // abbreviations
	putHalfWord(mem, 0x1a, 0x0200) // file length in words
	copy(mem[0x12:0x18], "860131")
	return mem
}

func requireFault(t *testing.T, kind FaultKind, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fault")
		fault, ok := r.(Fault)
		require.True(t, ok, "panic value should be a Fault, got %v", r)
		assert.Equal(t, kind, fault.Kind)
	}()
	f()
}

func TestLoadCoreParsesHeader(t *testing.T) {
	core, err := LoadCore(minimalStory())
	require.NoError(t, err)

	assert.Equal(t, uint8(3), core.Version)
	assert.Equal(t, uint16(12), core.ReleaseNumber)
	assert.Equal(t, uint16(0x0300), core.HighMemoryBase)
	assert.Equal(t, uint16(0x0300), core.FirstInstruction)
	assert.Equal(t, uint16(0x0280), core.DictionaryBase)
	assert.Equal(t, uint16(0x0100), core.ObjectTableBase)
	assert.Equal(t, uint16(0x0180), core.GlobalVariableBase)
	assert.Equal(t, uint16(0x0280), core.StaticMemoryBase)
	assert.Equal(t, uint16(0x0048), core.AbbreviationTableBase)
	assert.Equal(t, "860131", string(core.SerialCode))
	assert.Equal(t, uint32(0x0400), core.FileLength())
}

func TestLoadCoreRejectsOtherVersions(t *testing.T) {
	for _, version := range []uint8{1, 2, 4, 5, 6, 7, 8} {
		mem := minimalStory()
		mem[0] = version

		_, err := LoadCore(mem)
		require.Error(t, err)

		var fault Fault
		require.True(t, errors.As(err, &fault))
		assert.Equal(t, UnsupportedVersion, fault.Kind)
	}
}

func TestLoadCoreRejectsTruncatedFile(t *testing.T) {
	_, err := LoadCore(make([]uint8, 0x20))
	assert.Error(t, err)
}

func TestLoadCoreAnnouncesCapabilities(t *testing.T) {
	mem := minimalStory()
	mem[0x01] = 0b1101_0010 // Game claims time-based status and a castle of flags

	core, err := LoadCore(mem)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), mem[0x01]&0b0001_0000, "status line not available flag should be clear")
	assert.Equal(t, uint8(0b0010_0000), mem[0x01]&0b0010_0000, "screen splitting flag should be set")
	assert.True(t, core.StatusBarTimeBased)
}

func TestReadWriteBigEndian(t *testing.T) {
	core, err := LoadCore(minimalStory())
	require.NoError(t, err)

	core.WriteHalfWord(0x200, 0xBEEF)
	assert.Equal(t, uint8(0xBE), core.ReadByte(0x200))
	assert.Equal(t, uint8(0xEF), core.ReadByte(0x201))
	assert.Equal(t, uint16(0xBEEF), core.ReadHalfWord(0x200))

	core.WriteByte(0x202, 0x12)
	assert.Equal(t, uint16(0xEF12), core.ReadHalfWord(0x201))
}

func TestOutOfBoundsReadsFault(t *testing.T) {
	core, err := LoadCore(minimalStory())
	require.NoError(t, err)

	requireFault(t, FaultOutOfBounds, func() { core.ReadByte(0x400) })
	requireFault(t, FaultOutOfBounds, func() { core.ReadHalfWord(0x3FF) })
	requireFault(t, FaultOutOfBounds, func() { core.ReadSlice(0x100, 0x401) })
}

func TestWritesAboveStaticMemoryFault(t *testing.T) {
	core, err := LoadCore(minimalStory())
	require.NoError(t, err)

	// Last writable byte is just below the static memory base
	core.WriteByte(0x27F, 1)
	requireFault(t, FaultReadOnly, func() { core.WriteByte(0x280, 1) })
	requireFault(t, FaultReadOnly, func() { core.WriteHalfWord(0x27F, 1) })
	requireFault(t, FaultOutOfBounds, func() { core.WriteByte(0x1000, 1) })
}

func TestChecksum(t *testing.T) {
	mem := minimalStory()
	for ix := 0x40; ix < len(mem); ix++ {
		mem[ix] = uint8(ix)
	}

	core, err := LoadCore(mem)
	require.NoError(t, err)

	expected := uint16(0)
	for ix := 0x40; ix < 0x400; ix++ {
		expected += uint16(mem[ix])
	}

	assert.Equal(t, expected, core.Checksum())
}

func TestResetDynamicMemoryPreservesFlags2(t *testing.T) {
	core, err := LoadCore(minimalStory())
	require.NoError(t, err)

	pristine := core.DynamicMemory()

	core.WriteByte(0x200, 0x55)
	core.WriteByte(0x10, core.ReadByte(0x10)|0b01) // Transcript bit stays on through a reset

	require.True(t, core.ResetDynamicMemory(pristine))
	assert.Equal(t, uint8(0), core.ReadByte(0x200))
	assert.Equal(t, uint8(0b01), core.ReadByte(0x10)&0b11)

	assert.False(t, core.ResetDynamicMemory(pristine[:10]), "wrong-sized image should be rejected")
}

func TestReaderCursor(t *testing.T) {
	core, err := LoadCore(minimalStory())
	require.NoError(t, err)

	core.WriteByte(0x100, 0xAB)
	core.WriteHalfWord(0x101, 0xCDEF)

	reader := core.NewReader(0x100)
	assert.Equal(t, uint8(0xAB), reader.Peek())
	assert.Equal(t, uint8(0xAB), reader.NextByte())
	assert.Equal(t, uint16(0xCDEF), reader.NextHalfWord())
	assert.Equal(t, uint32(0x103), reader.Addr())

	reader.Seek(0x100)
	assert.Equal(t, uint8(0xAB), reader.NextByte())
}

func TestWriterCursor(t *testing.T) {
	core, err := LoadCore(minimalStory())
	require.NoError(t, err)

	writer := core.NewWriter(0x100)
	writer.WriteByte(0x01)
	writer.WriteHalfWord(0x2345)

	assert.Equal(t, uint32(0x103), writer.Addr())
	assert.Equal(t, uint8(0x01), core.ReadByte(0x100))
	assert.Equal(t, uint16(0x2345), core.ReadHalfWord(0x101))
}
