package nlisp

import (
	"fmt"
	"io"

	"github.com/miltonvm/milton/pkg/bytecode"
	"github.com/miltonvm/milton/pkg/isa"
)

// loc is where a bound name lives at run time.
type loc struct {
	kind locKind
	arg  uint16
}

type locKind uint8

const (
	locMemory locKind = iota // absolute data-segment address
	locStack                 // byte offset above sp, rebased as sp moves
	locInWord                // small literal carried in the arg field
)

// mode maps the location onto the instruction word's addressing bits.
func (l loc) mode() isa.Mode {
	switch l.kind {
	case locStack:
		return isa.StackRel
	case locInWord:
		return isa.Imm
	default:
		return isa.Direct
	}
}

// gen carries the state shared by every translation: the function address
// table and the growing data segment. The variable table is threaded per
// scope.
type gen struct {
	fnAddrs map[string]uint16
	data    []byte
}

// alloc reserves n bytes in the data segment and returns their absolute
// machine address.
func (g *gen) alloc(n int) uint16 {
	addr := uint16(len(g.data) + bytecode.HeaderSize)
	g.data = append(g.data, make([]byte, n)...)
	return addr
}

// rebase shifts every stack-resident variable by delta bytes. It must
// bracket any emitted instruction that moves the stack pointer, and it
// applies to the whole table, not just the names the current expression
// touches.
func rebase(vars map[string]loc, delta int) {
	for name, l := range vars {
		if l.kind == locStack {
			l.arg = uint16(int(l.arg) + delta)
			vars[name] = l
		}
	}
}

func (g *gen) translate(e Expr, vars map[string]loc) ([]uint32, error) {
	switch e := e.(type) {
	case *FnDef:
		// Parameters sit above the pushed return address: the last
		// argument at sp+4, the first one deepest. Enclosing variables
		// are not visible.
		fnVars := make(map[string]loc, len(e.Args))
		for i, name := range e.Args {
			fnVars[name] = loc{kind: locStack, arg: uint16(4 * (len(e.Args) - i))}
		}
		body, err := g.translate(e.Body, fnVars)
		if err != nil {
			return nil, err
		}
		return append(body, word(isa.Ret, isa.Direct, 0)), nil

	case *Case:
		cond, err := g.translate(e.Cond, vars)
		if err != nil {
			return nil, err
		}
		t, err := g.translate(e.Then, vars)
		if err != nil {
			return nil, err
		}
		f, err := g.translate(e.Else, vars)
		if err != nil {
			return nil, err
		}
		t = append(t, word(isa.Jump, isa.Direct, uint16(len(f)+1)))
		out := append(cond, word(isa.Jifz, isa.Direct, uint16(len(t)+1)))
		out = append(out, t...)
		return append(out, f...), nil

	case *For:
		return g.translateFor(e, vars)

	case *Call:
		return g.translateCall(e, vars)

	case *Let:
		addr := g.alloc(4)
		vars[e.Name] = loc{kind: locMemory, arg: addr}
		out, err := g.translate(e.Init, vars)
		if err != nil {
			return nil, err
		}
		out = append(out, word(isa.Save, isa.Direct, addr))
		body, err := g.translate(e.Body, vars)
		if err != nil {
			return nil, err
		}
		delete(vars, e.Name)
		return append(out, body...), nil

	case VarRef:
		l, ok := vars[string(e)]
		if !ok {
			return nil, fmt.Errorf("compile: variable '%s' has no location", string(e))
		}
		return []uint32{word(isa.Load, l.mode(), l.arg)}, nil

	case Str:
		ptr := uint16(len(g.data) + bytecode.HeaderSize)
		g.data = append(g.data, e...)
		g.data = append(g.data, 0)
		return []uint32{word(isa.Load, isa.Imm, ptr)}, nil

	case Value:
		if int32(e) == int32(int16(e)) {
			return []uint32{word(isa.Load, isa.Imm, uint16(e))}, nil
		}
		addr := uint16(len(g.data) + bytecode.HeaderSize)
		v := uint32(e)
		g.data = append(g.data, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		return []uint32{word(isa.Load, isa.Direct, addr)}, nil

	default:
		return nil, fmt.Errorf("compile: unexpected expression %T", e)
	}
}

// translateCall emits the calling sequence: reserve one stack slot per
// argument, fill them last-to-first so the first argument ends up
// deepest, call, release. Stack-resident variables are rebased around
// both stack moves.
func (g *gen) translateCall(e *Call, vars map[string]loc) ([]uint32, error) {
	n := len(e.Args)
	out := []uint32{word(isa.Spadd, isa.Imm, uint16(-4 * n))}
	rebase(vars, 4*n)

	for i := range e.Args {
		slot := n - i - 1
		arg, err := g.translate(e.Args[i], vars)
		if err != nil {
			return nil, err
		}
		out = append(out, arg...)
		out = append(out, word(isa.Save, isa.StackRel, uint16(4*slot)))
	}

	addr, ok := g.fnAddrs[e.Name]
	if !ok {
		return nil, fmt.Errorf("compile: function '%s' has no address", e.Name)
	}
	out = append(out, word(isa.Call, isa.Direct, addr))
	out = append(out, word(isa.Spadd, isa.Imm, uint16(4*n)))
	rebase(vars, -4*n)

	return out, nil
}

// translateFor emits the loop: the induction variable in a fresh data
// slot, a hidden running total on the stack, and the head/epilogue branch
// arithmetic. The loop's value is the total.
func (g *gen) translateFor(e *For, vars map[string]loc) ([]uint32, error) {
	addr := g.alloc(4)
	vars[e.Var] = loc{kind: locMemory, arg: addr}

	out := []uint32{
		word(isa.Load, isa.Imm, 0),
		word(isa.Save, isa.Direct, addr),
		word(isa.Spadd, isa.Imm, uint16(0x10000-4)), // room for the total
		word(isa.Save, isa.StackRel, 0),             // total starts at zero
	}
	rebase(vars, 4)
	head := len(out)

	next, err := g.translate(e.Next, vars)
	if err != nil {
		return nil, err
	}
	out = append(out, next...)
	out = append(out, word(isa.Save, isa.Direct, addr))

	while, err := g.translate(e.While, vars)
	if err != nil {
		return nil, err
	}
	out = append(out, while...)

	body, err := g.translate(e.Body, vars)
	if err != nil {
		return nil, err
	}
	out = append(out, word(isa.Jifz, isa.Direct, uint16(len(body)+4)))
	out = append(out, body...)
	out = append(out,
		word(isa.Add, isa.StackRel, 0),
		word(isa.Save, isa.StackRel, 0),
	)
	out = append(out, word(isa.Jump, isa.Direct, uint16(head-len(out))))
	out = append(out,
		word(isa.Load, isa.StackRel, 0),
		word(isa.Spadd, isa.Imm, 4),
	)

	rebase(vars, -4)
	delete(vars, e.Var)
	return out, nil
}

func word(op isa.Opcode, mode isa.Mode, arg uint16) uint32 {
	return uint32(isa.Encode(op, mode, arg))
}

// Stats summarizes a compilation for the CLI report.
type Stats struct {
	SourceLines  int
	Instructions int
	Bytes        int
}

// Compile translates a preprocessed program into a packaged image. The
// built-in functions occupy the front of the instruction stream; slot 0
// is patched to jump over every function body so execution starts at the
// entry code. When listing is non-nil each emitted instruction is written
// as `index hexword disassembly`.
func Compile(prog *Program, listing io.Writer) (*bytecode.Image, Stats, error) {
	instrs, fnAddrs, err := builtinInstructions()
	if err != nil {
		return nil, Stats{}, err
	}
	g := &gen{fnAddrs: fnAddrs}
	vars := make(map[string]loc)

	for _, fd := range prog.FnDefs {
		body, err := g.translate(fd, vars)
		if err != nil {
			return nil, Stats{}, err
		}
		g.fnAddrs[fd.Name] = uint16(len(instrs))
		instrs = append(instrs, body...)
	}
	instrs[0] = word(isa.Jump, isa.Direct, uint16(len(instrs)))

	for _, e := range prog.Main {
		code, err := g.translate(e, vars)
		if err != nil {
			return nil, Stats{}, err
		}
		instrs = append(instrs, code...)
	}
	instrs = append(instrs, word(isa.Halt, isa.Direct, 0))

	if listing != nil {
		for i, w := range instrs {
			fmt.Fprintf(listing, "%d %08x %s\n", i, w, isa.Disassemble(isa.Word(w)))
		}
	}

	img := &bytecode.Image{Data: g.data, Instructions: instrs}
	stats := Stats{
		Instructions: len(instrs),
		Bytes:        bytecode.HeaderSize + len(g.data) + 4*len(instrs),
	}
	return img, stats, nil
}

// CompileSource runs the whole front end: prelude, parse, lift, compile.
// Prelude definitions are prepended to the user's so they are addressed
// before any user code refers to them.
func CompileSource(src string, listing io.Writer) (*bytecode.Image, Stats, error) {
	stdDefs, decl, err := loadStd()
	if err != nil {
		return nil, Stats{}, err
	}
	exprs, err := Parse(src, decl)
	if err != nil {
		return nil, Stats{}, err
	}
	prog := Preprocess(exprs)
	prog.FnDefs = append(stdDefs, prog.FnDefs...)

	img, stats, err := Compile(prog, listing)
	if err != nil {
		return nil, Stats{}, err
	}
	stats.SourceLines = 1 + countNewlines(src)
	return img, stats, nil
}

func countNewlines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
		}
	}
	return n
}
