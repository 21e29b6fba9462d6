package nlisp

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

// The prelude ships in three pieces: arity declarations and instruction
// words for the hand-assembled primitives, and an nlisp-level library
// compiled ahead of user code.

//go:embed resources/builtin
var builtinDecls string

//go:embed resources/builtin-asm
var builtinAsm string

//go:embed resources/std.nl
var stdSource string

// builtinInstructions loads the hand-assembled primitives into the front
// of the instruction stream. Slot 0 is reserved for the jump over all
// function bodies. Listing format: a `name count` header per function,
// then count lines whose first token is the hex instruction word.
func builtinInstructions() ([]uint32, map[string]uint16, error) {
	instrs := []uint32{0}
	addrs := make(map[string]uint16)

	lines := strings.Split(builtinAsm, "\n")
	for i := 0; i < len(lines); i++ {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, nil, fmt.Errorf("prelude: bad header line %q", lines[i])
		}
		name := fields[0]
		count, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, nil, fmt.Errorf("prelude: bad instruction count in %q", lines[i])
		}
		addrs[name] = uint16(len(instrs))
		for j := 0; j < count; j++ {
			i++
			if i >= len(lines) {
				return nil, nil, fmt.Errorf("prelude: truncated listing for '%s'", name)
			}
			tok := strings.Fields(lines[i])
			if len(tok) == 0 {
				return nil, nil, fmt.Errorf("prelude: empty instruction line for '%s'", name)
			}
			w, err := strconv.ParseUint(tok[0], 16, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("prelude: bad instruction word %q: %w", tok[0], err)
			}
			instrs = append(instrs, uint32(w))
		}
	}
	return instrs, addrs, nil
}

// builtinDeclared seeds the declaration table: one line per primitive,
// the name followed by its parameter names.
func builtinDeclared() (*Declared, error) {
	decl := NewDeclared()
	for _, line := range strings.Split(builtinDecls, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := decl.DeclareFn(fields[0], len(fields)-1); err != nil {
			return nil, fmt.Errorf("prelude: %w", err)
		}
	}
	return decl, nil
}

// loadStd parses the nlisp-level prelude under the primitive
// declarations and returns its function definitions together with the
// declaration table user code is parsed against.
func loadStd() ([]*FnDef, *Declared, error) {
	decl, err := builtinDeclared()
	if err != nil {
		return nil, nil, err
	}
	exprs, err := Parse(stdSource, decl)
	if err != nil {
		return nil, nil, fmt.Errorf("prelude: %w", err)
	}
	prog := Preprocess(exprs)
	for _, e := range prog.Main {
		if v, ok := e.(Value); !ok || v != 0 {
			return nil, nil, fmt.Errorf("prelude: declaration in an unexpected slot")
		}
	}
	return prog.FnDefs, decl, nil
}
