package machine

import (
	"fmt"
	"io"

	"github.com/miltonvm/milton/pkg/isa"
)

// decoded is the full control word for one tick: the data-path signals
// plus the instruction-pointer controls owned by the control unit.
type decoded struct {
	Signals
	latchIP bool
	ifZero  bool
	jmp     bool
	halt    bool
	absJump bool
}

// decoder turns an instruction word into control signals. Its steps
// counter is the only intra-opcode state: a nonzero value means the same
// word is re-decoded on following ticks with a different micro-step.
type decoder struct {
	steps uint8
}

var aluFor = [8]AluOp{AluSign, AluAnd, AluOr, AluAdd, AluSub, AluMul, AluDiv, AluRem}

func (dec *decoder) decode(word isa.Word, ip uint16, tempReg uint32) (decoded, error) {
	op := word.Op()
	res := decoded{
		Signals: Signals{
			Arg:       word.Arg(),
			StackRel:  word.StackRelBit(),
			ImmSrc:    word.ImmBit(),
			Op:        AluAdd,
			ExtendArg: true,
		},
		latchIP: true,
	}

	switch {
	case op <= isa.Rem:
		res.LatchAcc = true
		res.Op = aluFor[op]
		if op == isa.And || op == isa.Or {
			res.ExtendArg = false
		}

	case op == isa.Jump || op == isa.Jifz:
		res.jmp = true
		res.ifZero = op == isa.Jifz

	case op == isa.Call:
		// Four ticks: grow the stack, form the return address, push it,
		// then jump absolutely.
		res.latchIP = false
		res.Op = AluRight
		switch dec.steps {
		case 0:
			dec.steps = 3
			res.Arg = uint16(0x10000 - 4) // -4
			res.StackRel, res.ImmSrc = false, true
			res.LatchStack = true
		case 3:
			dec.steps--
			res.Arg = ip + 1
			res.StackRel, res.ImmSrc = false, true
			res.LatchAcc = true
		case 2:
			dec.steps--
			res.Arg = 0
			res.StackRel, res.ImmSrc = true, false
			res.Write = true
		case 1:
			dec.steps--
			res.StackRel, res.ImmSrc = false, true
			res.latchIP = true
			res.absJump = true
		}

	case op == isa.Ret:
		res.Op = AluRight
		switch dec.steps {
		case 0:
			dec.steps = 1
			res.Arg = 4
			res.StackRel, res.ImmSrc = false, true
			res.LatchStack = true
			res.latchIP = false
		case 1:
			dec.steps--
			res.Arg = uint16(0x10000 - 4) // the slot just popped
			res.StackRel, res.ImmSrc = true, false
			res.absJump = true
		}

	case op == isa.Spadd:
		res.LatchStack = true
		res.Op = AluRight

	case op == isa.Load:
		res.Op = AluRight
		res.LatchAcc = true
		res.IO = res.Arg == 0 && !res.ImmSrc

	case op == isa.Save:
		if res.ImmSrc {
			return decoded{}, fmt.Errorf("save: addressing mode must be direct or stack-relative")
		}
		res.Write = true
		res.IO = res.Arg == 4

	case op == isa.Ldrel:
		switch dec.steps {
		case 0:
			dec.steps = 1
			res.Op = AluRight
			res.latchIP = false
		case 1:
			dec.steps--
			res.Arg = uint16(tempReg)
			res.IO = res.Arg == 0
			res.StackRel, res.ImmSrc = false, false
			res.Op = AluRight
			res.LatchAcc = true
		}

	case op == isa.Svrel:
		switch dec.steps {
		case 0:
			dec.steps = 1
			res.Op = AluRight
			res.latchIP = false
		case 1:
			dec.steps--
			res.Arg = uint16(tempReg)
			res.IO = res.Arg == 4
			res.StackRel, res.ImmSrc = false, false
			res.Write = true
		}

	case op == isa.Halt:
		res.halt = true

	default:
		return decoded{}, fmt.Errorf("unknown opcode 0x%02X", uint8(op))
	}

	return res, nil
}

// ControlUnit couples the decoder with the data path and a parallel
// instruction memory.
type ControlUnit struct {
	DataPath
	IMem    [MemSize]uint32
	IP      uint16
	TempReg uint32
	dec     decoder

	Ticks        int
	Instructions int // completed opcodes, not ticks
}

// New builds a control unit with the given memory images. Both are
// zero-padded to their full extent.
func New(data []byte, instrs []uint32) *ControlUnit {
	cu := &ControlUnit{DataPath: DataPath{SP: spInit}}
	copy(cu.Mem[:], data)
	copy(cu.IMem[:], instrs)
	return cu
}

// Tick executes one machine tick. It reports true once the halt opcode is
// reached. A fault (unknown opcode, invalid save mode, divide by zero)
// aborts the run with an error.
func (cu *ControlUnit) Tick() (bool, error) {
	word := isa.Word(cu.IMem[cu.IP])
	res, err := cu.dec.decode(word, cu.IP, cu.TempReg)
	if err != nil {
		return false, fmt.Errorf("ip %d: %w", cu.IP, err)
	}

	cu.Ticks++
	if res.latchIP {
		cu.Instructions++
	}
	if res.halt {
		return true, nil
	}

	result, zero, err := cu.DataPath.Process(res.Signals)
	if err != nil {
		return false, fmt.Errorf("ip %d: %w", cu.IP, err)
	}

	// temp_reg latches every tick; the second step of call/ret and the
	// relative load/store depend on it surviving to the next tick.
	cu.TempReg = result

	next := cu.IP + 1
	if res.jmp && (!res.ifZero || zero) {
		next = cu.IP + word.Arg()
	}
	if res.absJump {
		next = uint16(result)
	}
	if res.latchIP {
		cu.IP = next
	}

	return false, nil
}

// Run ticks the machine until it halts or faults. When trace is non-nil a
// line is written after every tick except the halting one: the
// disassembly of the word at the new instruction pointer and a register
// snapshot.
func (cu *ControlUnit) Run(trace io.Writer) error {
	for {
		halted, err := cu.Tick()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
		if trace != nil {
			fmt.Fprintf(trace, "%s        ip: %d, acc: %d, sp: %d\n",
				isa.Disassemble(isa.Word(cu.IMem[cu.IP])), cu.IP, cu.Acc, cu.SP)
		}
	}
}
