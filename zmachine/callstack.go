package zmachine

import "zed/zcore"

// maxCallDepth bounds the call stack; no real story file gets anywhere close
// and runaway recursion should fault rather than exhaust memory.
const maxCallDepth = 1024

type CallStackFrame struct {
	pc              uint32
	routineStack    []uint16
	locals          []uint16
	numValuesPassed int
}

func (f *CallStackFrame) push(i uint16) {
	f.routineStack = append(f.routineStack, i)
}

func (f *CallStackFrame) pop() uint16 {
	if len(f.routineStack) == 0 {
		zcore.Raise(zcore.FaultStackUnderflow, "pop from empty routine stack")
	}
	i := f.routineStack[len(f.routineStack)-1]
	f.routineStack = f.routineStack[:len(f.routineStack)-1]
	return i
}

func (f *CallStackFrame) peekStack() uint16 {
	if len(f.routineStack) == 0 {
		zcore.Raise(zcore.FaultStackUnderflow, "peek of empty routine stack")
	}
	return f.routineStack[len(f.routineStack)-1]
}

type CallStack struct {
	frames []CallStackFrame
}

func (s *CallStack) push(frame CallStackFrame) {
	if len(s.frames) >= maxCallDepth {
		zcore.Raise(zcore.FaultStackOverflow, "call stack deeper than %d frames", maxCallDepth)
	}
	s.frames = append(s.frames, frame)
}

func (s *CallStack) pop() CallStackFrame {
	if len(s.frames) <= 1 {
		zcore.Raise(zcore.FaultStackUnderflow, "return with no caller frame")
	}
	stackSize := len(s.frames)
	frame := s.frames[stackSize-1]
	s.frames = s.frames[:stackSize-1]

	return frame
}

func (s *CallStack) peek() *CallStackFrame {
	if len(s.frames) == 0 {
		zcore.Raise(zcore.FaultStackUnderflow, "peek of empty call stack")
	}
	return &s.frames[len(s.frames)-1]
}

func (s *CallStack) depth() int {
	return len(s.frames)
}

// copy - deep copy of the stack and all frames, used for save states
func (s *CallStack) copy() CallStack {
	callStack := CallStack{
		frames: make([]CallStackFrame, len(s.frames)),
	}

	for fx, frame := range s.frames {
		copiedFrame := CallStackFrame{
			pc:              frame.pc,
			numValuesPassed: frame.numValuesPassed,
			routineStack:    make([]uint16, len(frame.routineStack)),
			locals:          make([]uint16, len(frame.locals)),
		}

		copy(copiedFrame.routineStack, frame.routineStack)
		copy(copiedFrame.locals, frame.locals)

		callStack.frames[fx] = copiedFrame
	}

	return callStack
}
