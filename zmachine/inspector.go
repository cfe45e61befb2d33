package zmachine

import "zed/zobject"

// Inspector is the read-only view of a running machine handed to hosts and
// debugging tools. Nothing reached through it mutates machine state.
type Inspector interface {
	Version() uint8
	ReleaseNumber() uint16
	SerialCode() string
	CurrentPC() uint32
	CallDepth() int
	GlobalVariable(n uint8) uint16
	ObjectCount() uint16
	ObjectName(objId uint16) string
}

func (z *ZMachine) Version() uint8 {
	return z.Core.Version
}

func (z *ZMachine) ReleaseNumber() uint16 {
	return z.Core.ReleaseNumber
}

func (z *ZMachine) SerialCode() string {
	return string(z.Core.SerialCode)
}

func (z *ZMachine) CurrentPC() uint32 {
	return z.currentInstructionPC
}

func (z *ZMachine) CallDepth() int {
	return z.callStack.depth()
}

func (z *ZMachine) GlobalVariable(n uint8) uint16 {
	return z.Core.ReadHalfWord(uint32(z.Core.GlobalVariableBase) + 2*uint32(n))
}

func (z *ZMachine) ObjectCount() uint16 {
	return zobject.CountObjects(&z.Core)
}

// ObjectName never faults: the object count is a heuristic and a bad entry
// should render as nothing, not kill the caller.
func (z *ZMachine) ObjectName(objId uint16) (name string) {
	defer func() {
		if recover() != nil {
			name = ""
		}
	}()

	if objId == 0 {
		return ""
	}
	return zobject.GetObject(objId, &z.Core).Name
}
