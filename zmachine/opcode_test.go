package zmachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLongForm(t *testing.T) {
	// Bit 6 makes the first operand a variable, bit 5 the second
	z, _ := newTestMachine(t, 0x41, 0x10, 0x09)
	opcode := ParseOpcode(z)

	assert.Equal(t, longForm, opcode.opcodeForm)
	assert.Equal(t, OP2, opcode.operandCount)
	assert.Equal(t, uint8(1), opcode.opcodeNumber)
	require.Len(t, opcode.operands, 2)
	assert.Equal(t, variable, opcode.operands[0].operandType)
	assert.Equal(t, uint16(0x10), opcode.operands[0].value)
	assert.Equal(t, smallConstant, opcode.operands[1].operandType)
	assert.Equal(t, uint16(9), opcode.operands[1].value)
	assert.Equal(t, uint32(codeBase+3), z.callStack.peek().pc)
}

func TestParseShortForm(t *testing.T) {
	// Large constant operand
	z, _ := newTestMachine(t, 0x8C, 0x12, 0x34)
	opcode := ParseOpcode(z)
	assert.Equal(t, shortForm, opcode.opcodeForm)
	assert.Equal(t, OP1, opcode.operandCount)
	assert.Equal(t, uint8(12), opcode.opcodeNumber)
	require.Len(t, opcode.operands, 1)
	assert.Equal(t, largeConstant, opcode.operands[0].operandType)
	assert.Equal(t, uint16(0x1234), opcode.operands[0].value)

	// Operand type 0b11 means no operand at all
	z, _ = newTestMachine(t, 0xB2)
	opcode = ParseOpcode(z)
	assert.Equal(t, OP0, opcode.operandCount)
	assert.Equal(t, uint8(2), opcode.opcodeNumber)
	assert.Empty(t, opcode.operands)
}

func TestParseVarForm(t *testing.T) {
	// The type byte reads left to right, stopping at the first omitted slot
	z, _ := newTestMachine(t, 0xE0, 0x2F, 0x12, 0x34, 0x05)
	opcode := ParseOpcode(z)

	assert.Equal(t, varForm, opcode.opcodeForm)
	assert.Equal(t, VAR, opcode.operandCount)
	assert.Equal(t, uint8(0), opcode.opcodeNumber)
	require.Len(t, opcode.operands, 2)
	assert.Equal(t, largeConstant, opcode.operands[0].operandType)
	assert.Equal(t, uint16(0x1234), opcode.operands[0].value)
	assert.Equal(t, variable, opcode.operands[1].operandType)
	assert.Equal(t, uint16(5), opcode.operands[1].value)
}

func TestParseVarFormWithTwoOperandOpcode(t *testing.T) {
	// Bit 5 clear means a 2OP opcode encoded with a variable operand list
	z, _ := newTestMachine(t, 0xC1, 0x57, 1, 2, 3)
	opcode := ParseOpcode(z)

	assert.Equal(t, varForm, opcode.opcodeForm)
	assert.Equal(t, OP2, opcode.operandCount)
	assert.Equal(t, uint8(1), opcode.opcodeNumber)
	assert.Len(t, opcode.operands, 3)
}

func TestParseStopsAtOmittedOperand(t *testing.T) {
	// Types small, omitted - anything after the first omitted is ignored
	z, _ := newTestMachine(t, 0xE0, 0x7F, 0x42)
	opcode := ParseOpcode(z)

	require.Len(t, opcode.operands, 1)
	assert.Equal(t, uint16(0x42), opcode.operands[0].value)
	assert.Equal(t, uint32(codeBase+3), z.callStack.peek().pc)
}
