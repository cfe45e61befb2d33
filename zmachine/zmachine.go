package zmachine

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"zed/dictionary"
	"zed/zcore"
	"zed/zobject"
	"zed/zstring"
)

type MemoryStreamData struct {
	baseAddress uint32
	ptr         uint32
}

type Streams struct {
	Screen           bool
	Transcript       bool
	Memory           bool
	MemoryStreamData []MemoryStreamData
}

// ZMachine is the single owner of all runtime state: memory, call stack,
// PRNG, stream selection and the host channels. Opcodes execute strictly
// sequentially; the machine waits on the host only in sread and in the
// save/restore exchanges.
type ZMachine struct {
	callStack            CallStack
	Core                 zcore.Core
	dictionary           *dictionary.Dictionary
	streams              Streams
	rng                  *rand.Rand
	outputChannel        chan<- any
	inputChannel         <-chan InputResponse
	saveRestoreChannel   <-chan SaveRestoreResponse
	initialMemory        []uint8
	upperWindowHeight    int
	upperWindowActive    bool
	currentInstructionPC uint32
	warned               map[string]bool
}

func LoadRom(storyFile []uint8, inputChannel <-chan InputResponse, saveRestoreChannel <-chan SaveRestoreResponse, outputChannel chan<- any) (*ZMachine, error) {
	core, err := zcore.LoadCore(storyFile)
	if err != nil {
		return nil, err
	}

	machine := ZMachine{
		Core:               core,
		inputChannel:       inputChannel,
		saveRestoreChannel: saveRestoreChannel,
		outputChannel:      outputChannel,
		streams: Streams{
			Screen:     true,
			Transcript: false,
			Memory:     false,
		},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		warned: make(map[string]bool),
	}

	machine.dictionary, err = dictionary.Parse(uint32(core.DictionaryBase), &machine.Core)
	if err != nil {
		return nil, err
	}

	// Pristine dynamic memory so restart doesn't need the host to reload
	machine.initialMemory = machine.Core.DynamicMemory()

	machine.callStack.push(initialFrame(&machine.Core))

	return &machine, nil
}

func initialFrame(core *zcore.Core) CallStackFrame {
	return CallStackFrame{
		pc:     uint32(core.FirstInstruction),
		locals: make([]uint16, 0),
	}
}

// SeedRandom switches the PRNG to a deterministic sequence, for reproducible
// playthroughs and regression tests.
func (z *ZMachine) SeedRandom(seed int64) {
	z.rng = rand.New(rand.NewSource(seed))
}

// packedAddress - routine and string targets are stored halved on v3
func (z *ZMachine) packedAddress(originalAddress uint32) uint32 {
	return 2 * originalAddress
}

func (z *ZMachine) readIncPC(frame *CallStackFrame) uint8 {
	v := z.Core.ReadByte(frame.pc)
	frame.pc++
	return v
}

func (z *ZMachine) readHalfWordIncPC(frame *CallStackFrame) uint16 {
	v := z.Core.ReadHalfWord(frame.pc)
	frame.pc += 2
	return v
}

func (z *ZMachine) readVariable(variable uint8, indirect bool) uint16 {
	currentCallFrame := z.callStack.peek()

	switch {
	case variable == 0: // Magic stack variable
		// "In the opcodes that take indirect variable references (inc, dec,
		// inc_chk, dec_chk, load, store, pull), an indirect reference to the
		// stack pointer does not push or pull the top item of the stack -
		// it is read or written in place."
		if indirect {
			return currentCallFrame.peekStack()
		}
		return currentCallFrame.pop()
	case variable < 16: // Routine local variables
		if int(variable) > len(currentCallFrame.locals) {
			zcore.Raise(zcore.FaultOutOfBounds, "read of local variable %d, routine has %d", variable, len(currentCallFrame.locals))
		}
		return currentCallFrame.locals[variable-1]
	default: // Global variables
		return z.Core.ReadHalfWord(uint32(z.Core.GlobalVariableBase) + 2*(uint32(variable)-16))
	}
}

func (z *ZMachine) writeVariable(variable uint8, value uint16, indirect bool) {
	currentCallFrame := z.callStack.peek()

	switch {
	case variable == 0: // Magic stack variable
		// Indirect writes happen in place at the top of the stack
		if indirect {
			_ = currentCallFrame.pop()
		}

		currentCallFrame.push(value)
	case variable < 16: // Routine local variables
		if int(variable) > len(currentCallFrame.locals) {
			zcore.Raise(zcore.FaultOutOfBounds, "write of local variable %d, routine has %d", variable, len(currentCallFrame.locals))
		}
		currentCallFrame.locals[variable-1] = value
	default: // Global variables
		z.Core.WriteHalfWord(uint32(z.Core.GlobalVariableBase)+2*(uint32(variable)-16), value)
	}
}

func (z *ZMachine) call(opcode *Opcode) {
	routineAddress := z.packedAddress(uint32(opcode.operands[0].Value(z)))

	// Special case, calling address 0 makes no call and stores 0
	if routineAddress == 0 {
		z.writeVariable(z.readIncPC(z.callStack.peek()), 0, false)
		return
	}

	localVariableCount := z.Core.ReadByte(routineAddress)
	if localVariableCount > 15 {
		zcore.Raise(zcore.FaultOutOfBounds, "routine at 0x%x claims %d locals", routineAddress, localVariableCount)
	}
	routineAddress++

	locals := make([]uint16, localVariableCount)

	for i := 0; i < int(localVariableCount); i++ {
		if i+1 < len(opcode.operands) {
			// Value passed to routine, override default
			locals[i] = opcode.operands[i+1].Value(z)
		} else {
			// No value passed to routine, use default
			locals[i] = z.Core.ReadHalfWord(routineAddress)
		}

		routineAddress += 2
	}

	z.callStack.push(CallStackFrame{
		pc:              routineAddress,
		locals:          locals,
		routineStack:    make([]uint16, 0),
		numValuesPassed: len(opcode.operands) - 1,
	})
}

// retValue pops the current frame and writes the return value to the store
// byte waiting in the caller's instruction stream. Every v3 call stores.
func (z *ZMachine) retValue(val uint16) {
	z.callStack.pop()
	newFrame := z.callStack.peek()

	destination := z.readIncPC(newFrame)
	z.writeVariable(destination, val, false)
}

func (z *ZMachine) handleBranch(frame *CallStackFrame, result bool) {
	branchArg1 := z.readIncPC(frame)

	branchReversed := (branchArg1>>7)&1 == 0
	singleByte := (branchArg1>>6)&1 == 1
	offset := int32(branchArg1 & 0b11_1111)

	if !singleByte {
		// 14 bit signed offset, sign extended from the top bit
		offset = int32(int16((uint16(branchArg1&0b11_1111)<<8|uint16(z.readIncPC(frame)))<<2) >> 2)
	}

	if result != branchReversed {
		switch offset {
		case 0: // Not an address, means return false
			z.retValue(0)
		case 1: // Not an address, means return true
			z.retValue(1)
		default:
			frame.pc = uint32(int32(frame.pc) + offset - 2)
		}
	}
}

func (z *ZMachine) removeObject(objId uint16) {
	if objId == 0 {
		zcore.Raise(zcore.FaultNullObject, "remove_obj on object 0")
	}

	object := zobject.GetObject(objId, &z.Core)
	if object.Parent != 0 {
		oldParent := zobject.GetObject(object.Parent, &z.Core)

		// Remove from old location in the sibling chain
		if oldParent.Child == object.Id {
			oldParent.SetChild(object.Sibling, &z.Core)
		} else {
			currObjId := oldParent.Child
			for currObjId != 0 {
				currObj := zobject.GetObject(currObjId, &z.Core)
				if currObj.Sibling == object.Id {
					currObj.SetSibling(object.Sibling, &z.Core)
					break
				}
				currObjId = currObj.Sibling
			}
		}

		object.SetParent(0, &z.Core)
	}

	object.SetSibling(0, &z.Core)
}

func (z *ZMachine) insertObject(objId uint16, newParent uint16) {
	if objId == 0 || newParent == 0 {
		zcore.Raise(zcore.FaultNullObject, "insert_obj %d into %d", objId, newParent)
	}

	object := zobject.GetObject(objId, &z.Core)
	destinationObject := zobject.GetObject(newParent, &z.Core)

	if object.Parent == destinationObject.Id {
		return
	}

	// Detach from the current place in the tree, then push on the front of
	// the destination's child chain
	z.removeObject(object.Id)

	object.SetSibling(destinationObject.Child, &z.Core)
	object.SetParent(destinationObject.Id, &z.Core)
	destinationObject.SetChild(object.Id, &z.Core)
}

func (z *ZMachine) appendText(s string) {
	if z.streams.Memory {
		// While stream 3 is selected no text goes anywhere else, although
		// other streams stay selected
		currentMemoryStream := &z.streams.MemoryStreamData[len(z.streams.MemoryStreamData)-1]
		for _, r := range s {
			code, ok := zstring.UnicodeToZscii(r)
			if !ok {
				code = '?'
			}
			z.Core.WriteByte(currentMemoryStream.ptr, uint8(code))
			currentMemoryStream.ptr++
		}
		return
	}

	if z.streams.Screen {
		if z.upperWindowActive {
			z.outputChannel <- UpperWindowText(s)
		} else {
			z.outputChannel <- s
		}
	}
}

func (z *ZMachine) sendStatusBar() {
	placeName := ""
	if location := z.readVariable(16, false); location != 0 {
		placeName = zobject.GetObject(location, &z.Core).Name
	}

	z.outputChannel <- StatusBar{
		PlaceName:   placeName,
		Score:       int(int16(z.readVariable(17, false))),
		Moves:       int(z.readVariable(18, false)),
		IsTimeBased: z.Core.StatusBarTimeBased,
	}
}

// read implements sread, which blocks until the host answers with a line.
// Returns false when the host cancelled input, which shuts the machine down
// like quit.
func (z *ZMachine) read(opcode *Opcode) bool {
	textBufferPtr := uint32(opcode.operands[0].Value(z))
	parseBufferPtr := uint32(opcode.operands[1].Value(z))

	// The status bar redraws just before input on v3
	z.sendStatusBar()

	z.outputChannel <- WaitForInput
	response, ok := <-z.inputChannel
	if !ok || response.Quit {
		return false
	}
	z.outputChannel <- Running

	rawTextBytes := []byte(strings.ToLower(response.Text))
	bufferSize := z.Core.ReadByte(textBufferPtr)

	writer := z.Core.NewWriter(textBufferPtr + 1)
	written := uint8(0)
	for _, chr := range rawTextBytes {
		if written >= bufferSize {
			break
		}

		if chr >= 32 && chr <= 126 {
			writer.WriteByte(chr)
		} else {
			writer.WriteByte(' ')
		}
		written++
	}
	writer.WriteByte(0) // Terminate with a null byte

	if parseBufferPtr != 0 {
		z.Tokenise(textBufferPtr, parseBufferPtr)
	}

	return true
}

func (z *ZMachine) save(frame *CallStackFrame) {
	// Capture with the PC at the branch bytes: a later restore resumes here
	// and re-runs this branch with the success result
	state := z.exportSaveState()

	z.outputChannel <- Save{Data: state}
	response, ok := (<-z.saveRestoreChannel).(SaveResponse)

	z.handleBranch(frame, ok && response.Success)
}

func (z *ZMachine) restore(frame *CallStackFrame) {
	z.outputChannel <- Restore{}
	response, ok := (<-z.saveRestoreChannel).(RestoreResponse)

	if ok && response.Success && z.importSaveState(response.Data) {
		// The restored PC points at the save instruction's branch bytes;
		// take that branch as a success
		z.handleBranch(z.callStack.peek(), true)
		return
	}

	z.handleBranch(frame, false)
}

func (z *ZMachine) restart() {
	z.Core.ResetDynamicMemory(z.initialMemory)
	z.callStack = CallStack{}
	z.callStack.push(initialFrame(&z.Core))
	z.streams = Streams{Screen: true}
	z.upperWindowActive = false
	z.upperWindowHeight = 0
}

func (z *ZMachine) handleOutputStream(opcode *Opcode) {
	stream := int16(opcode.operands[0].Value(z))

	switch stream {
	case 1, -1:
		z.streams.Screen = stream > 0
	case 2, -2:
		z.streams.Transcript = stream > 0
		if stream > 0 {
			z.warnOnce("transcript", "Warning: transcript stream requested but not supported by this host")
		}
		// The game watches flags2 bit 0 to know whether transcription is on
		flags2 := z.Core.ReadByte(0x10)
		if stream > 0 {
			z.Core.WriteByte(0x10, flags2|0b1)
		} else {
			z.Core.WriteByte(0x10, flags2&^uint8(0b1))
		}
	case 3:
		if len(opcode.operands) < 2 {
			z.warnOnce("stream3_no_table", "Warning: output_stream 3 with no table operand ignored")
			return
		}
		baseAddress := uint32(opcode.operands[1].Value(z))
		z.streams.Memory = true
		z.streams.MemoryStreamData = append(z.streams.MemoryStreamData, MemoryStreamData{
			baseAddress: baseAddress,
			ptr:         baseAddress + 2, // Skip size word
		})
	case -3:
		if z.streams.Memory {
			// Store the amount of data written into the size word, then pop;
			// nested streams act as a stack
			currentActiveStream := z.streams.MemoryStreamData[len(z.streams.MemoryStreamData)-1]
			z.Core.WriteHalfWord(currentActiveStream.baseAddress, uint16(currentActiveStream.ptr-currentActiveStream.baseAddress-2))

			z.streams.MemoryStreamData = z.streams.MemoryStreamData[:len(z.streams.MemoryStreamData)-1]
			if len(z.streams.MemoryStreamData) == 0 {
				z.streams.Memory = false
			}
		}
	case 4, -4:
		z.warnOnce("command_stream", "Warning: command script stream not supported")
	}
}

func (z *ZMachine) warnOnce(key string, format string, args ...any) {
	if z.warned[key] {
		return
	}
	z.warned[key] = true
	z.outputChannel <- Warning(fmt.Sprintf(format, args...))
}

// Run drives the machine until quit, cancelled input or a fault. Faults
// surface as a RuntimeError message followed by Quit.
func (z *ZMachine) Run() {
	defer func() {
		if r := recover(); r != nil {
			switch fault := r.(type) {
			case zcore.Fault:
				z.outputChannel <- RuntimeError(fmt.Sprintf("fault at pc 0x%x: %v", z.currentInstructionPC, fault))
			default:
				z.outputChannel <- RuntimeError(fmt.Sprintf("internal error at pc 0x%x: %v", z.currentInstructionPC, r))
			}
		}

		z.outputChannel <- Quit(true)
	}()

	for z.StepMachine() {
	}
}

// StepMachine executes a single instruction, returning false once the
// machine should halt.
func (z *ZMachine) StepMachine() bool {
	z.currentInstructionPC = z.callStack.peek().pc
	opcode := ParseOpcode(z)
	frame := z.callStack.peek()

	switch opcode.operandCount {
	case OP0:
		return z.step0OP(&opcode, frame)
	case OP1:
		z.step1OP(&opcode, frame)
	case OP2:
		z.step2OP(&opcode, frame)
	case VAR:
		return z.stepVAR(&opcode, frame)
	}

	return true
}

func (z *ZMachine) step0OP(opcode *Opcode, frame *CallStackFrame) bool {
	switch opcode.opcodeNumber {
	case 0: // RTRUE
		z.retValue(1)

	case 1: // RFALSE
		z.retValue(0)

	case 2: // PRINT
		text, bytesRead := zstring.Decode(&z.Core, frame.pc)
		frame.pc += bytesRead
		z.appendText(text)

	case 3: // PRINT_RET
		text, bytesRead := zstring.Decode(&z.Core, frame.pc)
		frame.pc += bytesRead
		z.appendText(text)
		z.appendText("\n")
		z.retValue(1)

	case 4: // NOP

	case 5: // SAVE
		z.save(frame)

	case 6: // RESTORE
		z.restore(frame)

	case 7: // RESTART
		z.restart()

	case 8: // RET_POPPED
		v := frame.pop()
		z.retValue(v)

	case 9: // POP
		frame.pop()

	case 10: // QUIT
		return false

	case 11: // NEW_LINE
		z.appendText("\n")

	case 12: // SHOW_STATUS
		z.sendStatusBar()

	case 13: // VERIFY
		z.handleBranch(frame, z.Core.Checksum() == z.Core.FileChecksum)

	default:
		zcore.Raise(zcore.UnsupportedOpcode, "0OP opcode %d at 0x%x", opcode.opcodeNumber, opcode.address)
	}

	return true
}

func (z *ZMachine) step1OP(opcode *Opcode, frame *CallStackFrame) {
	switch opcode.opcodeNumber {
	case 0: // JZ
		z.handleBranch(frame, opcode.operands[0].Value(z) == 0)

	case 1: // GET_SIBLING
		sibling := z.objectLink(opcode.operands[0].Value(z), "get_sibling", func(o zobject.Object) uint16 { return o.Sibling })
		z.writeVariable(z.readIncPC(frame), sibling, false)
		z.handleBranch(frame, sibling != 0)

	case 2: // GET_CHILD
		child := z.objectLink(opcode.operands[0].Value(z), "get_child", func(o zobject.Object) uint16 { return o.Child })
		z.writeVariable(z.readIncPC(frame), child, false)
		z.handleBranch(frame, child != 0)

	case 3: // GET_PARENT
		parent := z.objectLink(opcode.operands[0].Value(z), "get_parent", func(o zobject.Object) uint16 { return o.Parent })
		z.writeVariable(z.readIncPC(frame), parent, false)

	case 4: // GET_PROP_LEN
		addr := opcode.operands[0].Value(z)
		z.writeVariable(z.readIncPC(frame), zobject.GetPropertyLength(&z.Core, uint32(addr)), false)

	case 5: // INC
		variable := uint8(opcode.operands[0].Value(z))
		z.writeVariable(variable, z.readVariable(variable, true)+1, true)

	case 6: // DEC
		variable := uint8(opcode.operands[0].Value(z))
		z.writeVariable(variable, z.readVariable(variable, true)-1, true)

	case 7: // PRINT_ADDR
		str, _ := zstring.Decode(&z.Core, uint32(opcode.operands[0].Value(z)))
		z.appendText(str)

	case 9: // REMOVE_OBJ
		z.removeObject(opcode.operands[0].Value(z))

	case 10: // PRINT_OBJ
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		z.appendText(obj.Name)

	case 11: // RET
		z.retValue(opcode.operands[0].Value(z))

	case 12: // JUMP
		offset := int16(opcode.operands[0].Value(z))
		frame.pc = uint32(int32(frame.pc) + int32(offset) - 2)

	case 13: // PRINT_PADDR
		addr := z.packedAddress(uint32(opcode.operands[0].Value(z)))
		text, _ := zstring.Decode(&z.Core, addr)
		z.appendText(text)

	case 14: // LOAD
		value := opcode.operands[0].Value(z)
		z.writeVariable(z.readIncPC(frame), z.readVariable(uint8(value), true), false)

	case 15: // NOT
		val := opcode.operands[0].Value(z)
		z.writeVariable(z.readIncPC(frame), ^val, false)

	default:
		zcore.Raise(zcore.UnsupportedOpcode, "1OP opcode %d at 0x%x", opcode.opcodeNumber, opcode.address)
	}
}

func (z *ZMachine) step2OP(opcode *Opcode, frame *CallStackFrame) {
	switch opcode.opcodeNumber {
	case 1: // JE - variadic via the VAR form, branch if first equals any other
		a := opcode.operands[0].Value(z)
		branch := false
		for _, b := range opcode.operands[1:] {
			if a == b.Value(z) {
				branch = true
			}
		}

		z.handleBranch(frame, branch)

	case 2: // JL
		a := int16(opcode.operands[0].Value(z))
		b := int16(opcode.operands[1].Value(z))
		z.handleBranch(frame, a < b)

	case 3: // JG
		a := int16(opcode.operands[0].Value(z))
		b := int16(opcode.operands[1].Value(z))
		z.handleBranch(frame, a > b)

	case 4: // DEC_CHK
		variable := uint8(opcode.operands[0].Value(z))
		newValue := int16(z.readVariable(variable, true)) - 1
		z.writeVariable(variable, uint16(newValue), true)

		z.handleBranch(frame, newValue < int16(opcode.operands[1].Value(z)))

	case 5: // INC_CHK
		variable := uint8(opcode.operands[0].Value(z))
		newValue := int16(z.readVariable(variable, true)) + 1
		z.writeVariable(variable, uint16(newValue), true)

		z.handleBranch(frame, newValue > int16(opcode.operands[1].Value(z)))

	case 6: // JIN
		parent := z.objectLink(opcode.operands[0].Value(z), "jin", func(o zobject.Object) uint16 { return o.Parent })
		z.handleBranch(frame, parent == opcode.operands[1].Value(z))

	case 7: // TEST
		bitmap := opcode.operands[0].Value(z)
		flags := opcode.operands[1].Value(z)
		z.handleBranch(frame, bitmap&flags == flags)

	case 8: // OR
		z.writeVariable(z.readIncPC(frame), opcode.operands[0].Value(z)|opcode.operands[1].Value(z), false)

	case 9: // AND
		z.writeVariable(z.readIncPC(frame), opcode.operands[0].Value(z)&opcode.operands[1].Value(z), false)

	case 10: // TEST_ATTR
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		z.handleBranch(frame, obj.TestAttribute(opcode.operands[1].Value(z)))

	case 11: // SET_ATTR
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		obj.SetAttribute(opcode.operands[1].Value(z), &z.Core)

	case 12: // CLEAR_ATTR
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		obj.ClearAttribute(opcode.operands[1].Value(z), &z.Core)

	case 13: // STORE
		z.writeVariable(uint8(opcode.operands[0].Value(z)), opcode.operands[1].Value(z), true)

	case 14: // INSERT_OBJ
		z.insertObject(opcode.operands[0].Value(z), opcode.operands[1].Value(z))

	case 15: // LOADW
		z.writeVariable(z.readIncPC(frame), z.Core.ReadHalfWord(uint32(opcode.operands[0].Value(z)+2*opcode.operands[1].Value(z))), false)

	case 16: // LOADB
		z.writeVariable(z.readIncPC(frame), uint16(z.Core.ReadByte(uint32(opcode.operands[0].Value(z)+opcode.operands[1].Value(z)))), false)

	case 17: // GET_PROP
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		prop := obj.GetProperty(uint8(opcode.operands[1].Value(z)), &z.Core)
		z.writeVariable(z.readIncPC(frame), prop.Word(), false)

	case 18: // GET_PROP_ADDR
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		prop := obj.GetProperty(uint8(opcode.operands[1].Value(z)), &z.Core)
		z.writeVariable(z.readIncPC(frame), uint16(prop.DataAddress), false)

	case 19: // GET_NEXT_PROP
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		nextProp := obj.GetNextProperty(uint8(opcode.operands[1].Value(z)), &z.Core)
		z.writeVariable(z.readIncPC(frame), uint16(nextProp), false)

	case 20: // ADD
		z.writeVariable(z.readIncPC(frame), opcode.operands[0].Value(z)+opcode.operands[1].Value(z), false)

	case 21: // SUB
		z.writeVariable(z.readIncPC(frame), opcode.operands[0].Value(z)-opcode.operands[1].Value(z), false)

	case 22: // MUL
		z.writeVariable(z.readIncPC(frame), opcode.operands[0].Value(z)*opcode.operands[1].Value(z), false)

	case 23: // DIV
		numerator := int16(opcode.operands[0].Value(z))
		denominator := int16(opcode.operands[1].Value(z))
		if denominator == 0 {
			zcore.Raise(zcore.FaultDivZero, "div at 0x%x", opcode.address)
		}
		z.writeVariable(z.readIncPC(frame), uint16(numerator/denominator), false)

	case 24: // MOD
		numerator := int16(opcode.operands[0].Value(z))
		denominator := int16(opcode.operands[1].Value(z))
		if denominator == 0 {
			zcore.Raise(zcore.FaultDivZero, "mod at 0x%x", opcode.address)
		}
		z.writeVariable(z.readIncPC(frame), uint16(numerator%denominator), false)

	default:
		zcore.Raise(zcore.UnsupportedOpcode, "2OP opcode %d at 0x%x", opcode.opcodeNumber, opcode.address)
	}
}

func (z *ZMachine) stepVAR(opcode *Opcode, frame *CallStackFrame) bool {
	switch opcode.opcodeNumber {
	case 0: // CALL
		z.call(opcode)

	case 1: // STOREW
		address := opcode.operands[0].Value(z) + 2*opcode.operands[1].Value(z)
		z.Core.WriteHalfWord(uint32(address), opcode.operands[2].Value(z))

	case 2: // STOREB
		address := opcode.operands[0].Value(z) + opcode.operands[1].Value(z)
		z.Core.WriteByte(uint32(address), uint8(opcode.operands[2].Value(z)))

	case 3: // PUT_PROP
		obj := zobject.GetObject(opcode.operands[0].Value(z), &z.Core)
		obj.SetProperty(uint8(opcode.operands[1].Value(z)), opcode.operands[2].Value(z), &z.Core)

	case 4: // SREAD
		if !z.read(opcode) {
			return false
		}

	case 5: // PRINT_CHAR
		if code := opcode.operands[0].Value(z); code != 0 {
			if r, ok := zstring.ZsciiToUnicode(code); ok {
				z.appendText(string(r))
			}
		}

	case 6: // PRINT_NUM
		z.appendText(strconv.Itoa(int(int16(opcode.operands[0].Value(z)))))

	case 7: // RANDOM
		n := int16(opcode.operands[0].Value(z))
		result := uint16(0)

		switch {
		case n < 0: // Deterministic reseed
			z.SeedRandom(int64(-n))
		case n == 0: // Unpredictable reseed
			z.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		default: // Uniform in 1..n inclusive
			result = uint16(z.rng.Int31n(int32(n))) + 1
		}

		z.writeVariable(z.readIncPC(frame), result, false)

	case 8: // PUSH
		frame.push(opcode.operands[0].Value(z))

	case 9: // PULL
		z.writeVariable(uint8(opcode.operands[0].Value(z)), frame.pop(), true)

	case 10: // SPLIT_WINDOW
		lines := opcode.operands[0].Value(z)
		z.upperWindowHeight = int(lines)
		if lines == 0 {
			z.upperWindowActive = false
		}
		z.outputChannel <- SplitWindow(lines)

	case 11: // SET_WINDOW
		window := opcode.operands[0].Value(z)
		z.upperWindowActive = window == 1
		z.outputChannel <- SetWindow(window)

	case 19: // OUTPUT_STREAM
		z.handleOutputStream(opcode)

	case 20: // INPUT_STREAM
		z.warnOnce("input_stream", "Warning: input_stream not supported, keyboard input stays selected")

	case 21: // SOUND_EFFECT
		request := SoundEffectRequest{Number: 1}
		if len(opcode.operands) > 0 {
			request.Number = opcode.operands[0].Value(z)
		}
		if len(opcode.operands) > 1 {
			request.Effect = opcode.operands[1].Value(z)
		}
		if len(opcode.operands) > 2 {
			request.Volume = opcode.operands[2].Value(z)
		}
		z.outputChannel <- request

	default:
		zcore.Raise(zcore.UnsupportedOpcode, "VAR opcode %d at 0x%x", opcode.opcodeNumber, opcode.address)
	}

	return true
}

// objectLink reads a link field, treating object 0 as having no links. Some
// story files do probe object 0; that gets a warning rather than a fault.
func (z *ZMachine) objectLink(objId uint16, opName string, link func(zobject.Object) uint16) uint16 {
	if objId == 0 {
		z.warnOnce(opName+"_0", "Warning: %s called with object 0", opName)
		return 0
	}
	return link(zobject.GetObject(objId, &z.Core))
}
