package isa

import "fmt"

// operand rendering styles for the disassembler
type operandKind uint8

const (
	operandModed  operandKind = iota // honours the addressing-mode prefix
	operandOffset                    // bare signed arg (jump targets)
	operandNone                      // no operand at all
)

// Info holds static metadata for an opcode.
type Info struct {
	Mnemonic string
	operand  operandKind
}

// Catalog maps each Opcode to its Info.
var Catalog = [OpcodeCount]Info{
	Sign:  {"sign", operandModed},
	And:   {"and", operandModed},
	Or:    {"or", operandModed},
	Add:   {"add", operandModed},
	Sub:   {"sub", operandModed},
	Mul:   {"mul", operandModed},
	Div:   {"div", operandModed},
	Rem:   {"rem", operandModed},
	Jump:  {"jump", operandOffset},
	Jifz:  {"jifz", operandOffset},
	Call:  {"call", operandOffset},
	Ret:   {"ret", operandNone},
	Spadd: {"spadd", operandModed},
	Load:  {"load", operandModed},
	Save:  {"save", operandModed},
	Ldrel: {"ldrel", operandModed},
	Svrel: {"svrel", operandModed},
	Halt:  {"halt", operandNone},
}

// Disassemble renders one instruction word as assembly text, for tracing.
// Unknown opcodes render as a placeholder; rejecting them is the control
// unit's job.
func Disassemble(w Word) string {
	op := w.Op()
	if int(op) >= len(Catalog) || Catalog[op].Mnemonic == "" {
		return fmt.Sprintf("?? 0x%08X", uint32(w))
	}
	info := Catalog[op]
	switch info.operand {
	case operandNone:
		return info.Mnemonic
	case operandOffset:
		return fmt.Sprintf("%s %d", info.Mnemonic, int16(w.Arg()))
	}
	switch w.Mode() {
	case Direct:
		return fmt.Sprintf("%s # %d", info.Mnemonic, int16(w.Arg()))
	case StackRel:
		return fmt.Sprintf("%s ~ %d", info.Mnemonic, int16(w.Arg()))
	case Imm:
		return fmt.Sprintf("%s %d", info.Mnemonic, int16(w.Arg()))
	default:
		return info.Mnemonic + " acc"
	}
}
