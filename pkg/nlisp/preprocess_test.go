package nlisp

import (
	"reflect"
	"testing"
)

func TestPreprocessLiftsNestedDefs(t *testing.T) {
	// (fn outer (x) (let z (fn inner (y) y) x))
	src := []Expr{
		&FnDef{Name: "outer", Args: []string{"x"},
			Body: &Let{Name: "z",
				Init: &FnDef{Name: "inner", Args: []string{"y"}, Body: VarRef("y")},
				Body: VarRef("x")}},
		Value(7),
	}
	prog := Preprocess(src)

	if len(prog.FnDefs) != 2 {
		t.Fatalf("lifted %d definitions, want 2", len(prog.FnDefs))
	}
	// inner definitions come out first
	if prog.FnDefs[0].Name != "inner" || prog.FnDefs[1].Name != "outer" {
		t.Errorf("definition order = %s, %s; want inner, outer", prog.FnDefs[0].Name, prog.FnDefs[1].Name)
	}

	// the nested definition left a zero behind
	outerBody, ok := prog.FnDefs[1].Body.(*Let)
	if !ok {
		t.Fatalf("outer body is %T, want *Let", prog.FnDefs[1].Body)
	}
	if outerBody.Init != Value(0) {
		t.Errorf("lifted definition replaced by %#v, want Value(0)", outerBody.Init)
	}

	// main keeps everything else, with the top-level def zeroed
	want := []Expr{Value(0), Value(7)}
	if !reflect.DeepEqual(prog.Main, want) {
		t.Errorf("main = %#v, want %#v", prog.Main, want)
	}
}

func TestPreprocessWalksAllForms(t *testing.T) {
	inner := &FnDef{Name: "g", Args: nil, Body: Value(1)}
	src := []Expr{
		&Case{Cond: inner, Then: Value(1), Else: Value(2)},
		&For{Var: "i", Next: Value(1), While: Value(0), Body: &FnDef{Name: "h", Args: nil, Body: Value(2)}},
		&Call{Name: "f", Args: []Expr{&FnDef{Name: "k", Args: nil, Body: Value(3)}}},
	}
	prog := Preprocess(src)
	if len(prog.FnDefs) != 3 {
		t.Fatalf("lifted %d definitions, want 3", len(prog.FnDefs))
	}
	for i, name := range []string{"g", "h", "k"} {
		if prog.FnDefs[i].Name != name {
			t.Errorf("fnDefs[%d] = %s, want %s", i, prog.FnDefs[i].Name, name)
		}
	}
}
