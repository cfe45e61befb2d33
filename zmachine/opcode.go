package zmachine

import "zed/zcore"

type OperandType int
type OpcodeForm int
type OperandCount int

const (
	largeConstant OperandType = 0b00
	smallConstant OperandType = 0b01
	variable      OperandType = 0b10
	omitted       OperandType = 0b11
)

const (
	longForm  OpcodeForm = iota
	shortForm OpcodeForm = iota
	varForm   OpcodeForm = iota
)

const (
	OP0 OperandCount = iota
	OP1 OperandCount = iota
	OP2 OperandCount = iota
	VAR OperandCount = iota
)

type Operand struct {
	operandType OperandType
	value       uint16 // Constant value or variable number depending on type
}

func (operand *Operand) Value(z *ZMachine) uint16 {
	switch operand.operandType {
	case largeConstant, smallConstant:
		return operand.value
	case variable:
		return z.readVariable(uint8(operand.value), false)
	default:
		return 0
	}
}

type Opcode struct {
	address      uint32
	opcodeByte   uint8
	operandCount OperandCount
	opcodeForm   OpcodeForm
	opcodeNumber uint8
	operands     []Operand
}

func parseVariableOperands(z *ZMachine, frame *CallStackFrame, opcode *Opcode) {
	operandTypeByte := z.readIncPC(frame)

	for varIx := 0; varIx < 4; varIx++ {
		operandType := OperandType((operandTypeByte >> (2 * (3 - varIx))) & 0b11)

		if operandType == omitted { // No more operands
			break
		}

		switch operandType {
		case smallConstant, variable:
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: uint16(z.readIncPC(frame))})
		case largeConstant:
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: z.readHalfWordIncPC(frame)})
		}
	}
}

// ParseOpcode decodes the instruction at the current PC, leaving the PC just
// past the operands. Store and branch bytes are consumed by the handlers,
// which know their own conventions.
func ParseOpcode(z *ZMachine) Opcode {
	frame := z.callStack.peek()
	address := frame.pc
	opcodeByte := z.readIncPC(frame)
	opcode := Opcode{
		address:    address,
		opcodeByte: opcodeByte,
	}

	// 0xbe introduces the extended form on v5+, never valid in a v3 story
	if opcodeByte == 0xbe {
		zcore.Raise(zcore.UnsupportedOpcode, "extended form opcode at 0x%x", address)
	}

	switch opcodeByte >> 6 {
	case 0b11: // VAR form
		opcode.opcodeForm = varForm
		opcode.opcodeNumber = opcodeByte & 0b1_1111 // 5 bits
		opcode.operandCount = VAR
		if (opcodeByte>>5)&1 == 0 {
			opcode.operandCount = OP2
		}

		parseVariableOperands(z, frame, &opcode)

	case 0b10: // SHORT form
		opcode.opcodeForm = shortForm
		opcode.opcodeNumber = opcodeByte & 0b1111 // 4 bits
		operandType := OperandType((opcodeByte >> 4) & 0b11)

		switch operandType {
		case largeConstant:
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: z.readHalfWordIncPC(frame)})
			opcode.operandCount = OP1
		case smallConstant, variable:
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: uint16(z.readIncPC(frame))})
			opcode.operandCount = OP1
		case omitted:
			opcode.operandCount = OP0
		}

	default: // LONG form
		opcode.opcodeForm = longForm
		opcode.opcodeNumber = opcodeByte & 0b1_1111 // 5 bits
		opcode.operandCount = OP2

		operand1Type := smallConstant
		operand2Type := smallConstant
		if (opcodeByte>>6)&0b1 == 0b1 {
			operand1Type = variable
		}
		if (opcodeByte>>5)&0b1 == 0b1 {
			operand2Type = variable
		}

		for _, operandType := range []OperandType{operand1Type, operand2Type} {
			opcode.operands = append(opcode.operands, Operand{operandType: operandType, value: uint16(z.readIncPC(frame))})
		}
	}

	return opcode
}
