package zmachine

import "encoding/binary"

// SaveState is everything needed to resume a game: the dynamic memory image
// and the full call stack. The serialized form is host-defined (the standard
// permits this for v3); the host just sees an opaque blob.
type SaveState struct {
	staticMemoryBase uint16
	dynamicMemory    []uint8
	callStack        CallStack
}

func (z *ZMachine) captureState() SaveState {
	return SaveState{
		staticMemoryBase: z.Core.StaticMemoryBase,
		dynamicMemory:    z.Core.DynamicMemory(),
		callStack:        z.callStack.copy(),
	}
}

func (z *ZMachine) applyState(state SaveState) bool {
	if state.staticMemoryBase != z.Core.StaticMemoryBase {
		return false
	}
	if !z.Core.ResetDynamicMemory(state.dynamicMemory) {
		return false
	}

	z.callStack = state.callStack.copy()
	return true
}

func (z *ZMachine) exportSaveState() []byte {
	return z.captureState().serialize()
}

func (z *ZMachine) importSaveState(data []byte) bool {
	state, ok := deserializeSaveState(data)
	if !ok {
		return false
	}
	return z.applyState(state)
}

const saveMagic = "ZEDS"

// Save format: magic(4) + staticBase(2) + dynamicMem + frameCount(2) + frames
func (s SaveState) serialize() []byte {
	frameData := s.callStack.serialize()
	data := make([]byte, 0, 4+2+len(s.dynamicMemory)+2+len(frameData))

	data = append(data, saveMagic...)
	data = binary.BigEndian.AppendUint16(data, s.staticMemoryBase)
	data = append(data, s.dynamicMemory...)
	data = binary.BigEndian.AppendUint16(data, uint16(len(s.callStack.frames)))
	data = append(data, frameData...)

	return data
}

func deserializeSaveState(data []byte) (SaveState, bool) {
	if len(data) < 8 || string(data[0:4]) != saveMagic {
		return SaveState{}, false
	}

	offset := 4
	staticBase := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2

	if len(data) < offset+int(staticBase)+2 {
		return SaveState{}, false
	}

	dynamicMem := make([]uint8, staticBase)
	copy(dynamicMem, data[offset:offset+int(staticBase)])
	offset += int(staticBase)

	frameCount := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2

	frames := deserializeCallStack(data[offset:], frameCount)
	if frames == nil {
		return SaveState{}, false
	}

	return SaveState{
		staticMemoryBase: staticBase,
		dynamicMemory:    dynamicMem,
		callStack:        CallStack{frames: frames},
	}, true
}

func (s *CallStack) serialize() []byte {
	var result []byte
	for _, frame := range s.frames {
		result = append(result, frame.serialize()...)
	}
	return result
}

// Frame format: pc(4) + numValuesPassed(2) + localsCount(2) + locals +
// stackSize(2) + stack
func (f *CallStackFrame) serialize() []byte {
	data := make([]byte, 0, 4+2+2+len(f.locals)*2+2+len(f.routineStack)*2)

	data = binary.BigEndian.AppendUint32(data, f.pc)
	data = binary.BigEndian.AppendUint16(data, uint16(f.numValuesPassed))

	data = binary.BigEndian.AppendUint16(data, uint16(len(f.locals)))
	for _, local := range f.locals {
		data = binary.BigEndian.AppendUint16(data, local)
	}

	data = binary.BigEndian.AppendUint16(data, uint16(len(f.routineStack)))
	for _, val := range f.routineStack {
		data = binary.BigEndian.AppendUint16(data, val)
	}

	return data
}

func deserializeCallStack(data []byte, frameCount int) []CallStackFrame {
	frames := make([]CallStackFrame, 0, frameCount)
	offset := 0

	for range frameCount {
		if offset+8 > len(data) {
			return nil
		}

		frame := CallStackFrame{}

		frame.pc = binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4

		frame.numValuesPassed = int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2

		localCount := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+localCount*2+2 > len(data) {
			return nil
		}
		frame.locals = make([]uint16, localCount)
		for j := range localCount {
			frame.locals[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}

		stackSize := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+stackSize*2 > len(data) {
			return nil
		}
		frame.routineStack = make([]uint16, stackSize)
		for j := range stackSize {
			frame.routineStack[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}

		frames = append(frames, frame)
	}

	return frames
}
