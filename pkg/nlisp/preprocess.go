package nlisp

// Program is the preprocessor's output: every function definition lifted
// to the top level, and the remaining expressions forming the entry code.
type Program struct {
	FnDefs []*FnDef
	Main   []Expr
}

// Preprocess hoists nested function definitions into a flat list,
// leaving a constant zero in their place, so the code generator never
// meets a nested function form. Inner definitions are lifted before the
// definition that contains them.
func Preprocess(exprs []Expr) *Program {
	prog := &Program{}
	for _, e := range exprs {
		prog.Main = append(prog.Main, prog.lift(e))
	}
	return prog
}

func (prog *Program) lift(e Expr) Expr {
	switch e := e.(type) {
	case *FnDef:
		body := prog.lift(e.Body)
		prog.FnDefs = append(prog.FnDefs, &FnDef{Name: e.Name, Args: e.Args, Body: body})
		return Value(0)
	case *Case:
		return &Case{
			Cond: prog.lift(e.Cond),
			Then: prog.lift(e.Then),
			Else: prog.lift(e.Else),
		}
	case *For:
		return &For{
			Var:   e.Var,
			Next:  prog.lift(e.Next),
			While: prog.lift(e.While),
			Body:  prog.lift(e.Body),
		}
	case *Call:
		args := make([]Expr, len(e.Args))
		for i, a := range e.Args {
			args[i] = prog.lift(a)
		}
		return &Call{Name: e.Name, Args: args}
	case *Let:
		return &Let{
			Name: e.Name,
			Init: prog.lift(e.Init),
			Body: prog.lift(e.Body),
		}
	default:
		return e
	}
}
