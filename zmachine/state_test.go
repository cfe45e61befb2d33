package zmachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStateRoundTrip(t *testing.T) {
	z, _ := newTestMachine(t)
	z.writeVariable(16, 0x1111, false)
	z.callStack.peek().push(0xAAAA)

	state := z.captureState()

	z.writeVariable(16, 0x2222, false)
	require.True(t, z.applyState(state))
	assert.Equal(t, uint16(0x1111), global(z, 0))
	assert.Equal(t, uint16(0xAAAA), z.callStack.peek().peekStack())
}

func TestSaveStateSerialization(t *testing.T) {
	z, _ := newTestMachine(t)
	z.writeVariable(16, 0x1234, false)
	z.callStack.push(CallStackFrame{
		pc:              0x1000,
		locals:          []uint16{1, 2, 3},
		routineStack:    []uint16{9},
		numValuesPassed: 2,
	})

	blob := z.captureState().serialize()
	state, ok := deserializeSaveState(blob)
	require.True(t, ok)

	assert.Equal(t, z.Core.StaticMemoryBase, state.staticMemoryBase)
	assert.Equal(t, z.Core.DynamicMemory(), state.dynamicMemory)
	require.Len(t, state.callStack.frames, 2)
	top := state.callStack.frames[1]
	assert.Equal(t, uint32(0x1000), top.pc)
	assert.Equal(t, []uint16{1, 2, 3}, top.locals)
	assert.Equal(t, []uint16{9}, top.routineStack)
	assert.Equal(t, 2, top.numValuesPassed)
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, ok := deserializeSaveState([]byte("not a save file"))
	assert.False(t, ok)

	_, ok = deserializeSaveState(nil)
	assert.False(t, ok)

	// Valid magic but truncated payload
	z, _ := newTestMachine(t)
	blob := z.captureState().serialize()
	_, ok = deserializeSaveState(blob[:len(blob)/2])
	assert.False(t, ok)
}

func TestSaveOpcodeBranchesOnHostResponse(t *testing.T) {
	z, ch := newTestMachine(t, 0xB5, 0xC4) // save, branch-true offset 4
	ch.saveRestore <- SaveResponse{Success: true}

	require.True(t, z.StepMachine())
	assert.Equal(t, uint32(codeBase+2+4-2), z.callStack.peek().pc)

	var saved *Save
	for len(ch.output) > 0 {
		if msg, ok := (<-ch.output).(Save); ok {
			saved = &msg
		}
	}
	require.NotNil(t, saved)
	assert.NotEmpty(t, saved.Data)

	// A failed save just falls through
	z, ch = newTestMachine(t, 0xB5, 0xC4)
	ch.saveRestore <- SaveResponse{Success: false}
	require.True(t, z.StepMachine())
	assert.Equal(t, uint32(codeBase+2), z.callStack.peek().pc)
}

func TestRestoreOpcodeResumesAtTheSavePoint(t *testing.T) {
	// Machine A executes save; the captured blob has its PC parked on the
	// save instruction's branch bytes
	a, chA := newTestMachine(t, 0xB5, 0xC4)
	chA.saveRestore <- SaveResponse{Success: true}
	require.True(t, a.StepMachine())

	var blob []byte
	for len(chA.output) > 0 {
		if msg, ok := (<-chA.output).(Save); ok {
			blob = msg.Data
		}
	}
	require.NotEmpty(t, blob)

	// Machine B restores it; execution lands past the save's branch as if
	// the save had just succeeded
	b, chB := newTestMachine(t, 0xB5, 0xC4, 0xB6, 0xC5)
	b.callStack.peek().pc = codeBase + 2 // At the restore instruction
	b.writeVariable(16, 0x5555, false)
	chB.saveRestore <- RestoreResponse{Success: true, Data: blob}

	require.True(t, b.StepMachine())
	assert.Equal(t, uint32(codeBase+2+4-2), b.callStack.peek().pc)
	assert.Equal(t, uint16(0), global(b, 0), "dynamic memory reverts to the saved image")
}

func TestRestoreFailureFallsThrough(t *testing.T) {
	z, ch := newTestMachine(t, 0xB6, 0xC4)
	ch.saveRestore <- RestoreResponse{Success: false}

	require.True(t, z.StepMachine())
	assert.Equal(t, uint32(codeBase+2), z.callStack.peek().pc)

	// A corrupt blob is also a failure
	z, ch = newTestMachine(t, 0xB6, 0xC4)
	ch.saveRestore <- RestoreResponse{Success: true, Data: []byte("junk")}
	require.True(t, z.StepMachine())
	assert.Equal(t, uint32(codeBase+2), z.callStack.peek().pc)
}

func TestRestartResetsTheMachine(t *testing.T) {
	z, _ := newTestMachine(t, 0xB7) // restart
	z.writeVariable(16, 0x1234, false)
	// Fake a deep call stack; the top frame still executes the restart
	z.callStack.push(CallStackFrame{pc: codeBase, locals: []uint16{1}})
	z.Core.WriteByte(0x10, z.Core.ReadByte(0x10)|0b01) // Transcript bit survives restart

	require.True(t, z.StepMachine())

	assert.Equal(t, uint16(0), global(z, 0))
	assert.Equal(t, 1, z.callStack.depth())
	assert.Equal(t, uint32(codeBase), z.callStack.peek().pc)
	assert.Equal(t, uint8(0b01), z.Core.ReadByte(0x10)&0b11)
}
