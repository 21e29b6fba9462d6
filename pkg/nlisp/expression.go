// Package nlisp implements the S-expression surface language and its
// compiler targeting the Milton instruction set.
package nlisp

// Expr is one node of the abstract syntax tree.
type Expr interface {
	expr()
}

// FnDef declares a function. Its body sees only the parameters and the
// function table, never enclosing variables.
type FnDef struct {
	Name string
	Args []string
	Body Expr
}

// Case evaluates Then when the condition is nonzero, Else otherwise.
type Case struct {
	Cond, Then, Else Expr
}

// For is the accumulating loop: Var starts at zero, Next recomputes it
// each iteration, While gates the iteration, and the values of Body are
// summed into the loop's result.
type For struct {
	Var   string
	Next  Expr
	While Expr
	Body  Expr
}

// Call invokes a declared function with its declared number of arguments.
type Call struct {
	Name string
	Args []Expr
}

// Let binds Name to Init over Body; the result is Body's value.
type Let struct {
	Name string
	Init Expr
	Body Expr
}

// VarRef references a bound variable.
type VarRef string

// Str is a string literal; it compiles to a pointer into the data
// segment, NUL-terminated.
type Str string

// Value is a 32-bit integer literal.
type Value int32

func (*FnDef) expr() {}
func (*Case) expr()  {}
func (*For) expr()   {}
func (*Call) expr()  {}
func (*Let) expr()   {}
func (VarRef) expr() {}
func (Str) expr()    {}
func (Value) expr()  {}
