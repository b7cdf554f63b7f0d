package driver

import (
	"context"
	"testing"

	"hirmir/internal/config"
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/resolver"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

func newPipeline(t *testing.T) (*Pipeline, *types.Interner) {
	t.Helper()
	in := types.NewInterner()
	return &Pipeline{
		Resolver: resolver.NewStatic(in),
		Types:    in,
		Symbols:  symbols.NewTable(),
		Reporter: diag.NewBag(0),
		Config:   config.Default(),
	}, in
}

func addOneFunc(in *types.Interner, name string) *hir.Func {
	i32 := in.Builtins().Int32
	return &hir.Func{
		Name:   name,
		Locals: []hir.LocalDecl{{Name: "x", Type: i32}},
		Params: []hir.ParamDecl{{
			Pattern: &hir.Pattern{Kind: hir.PatBinding, Type: i32, Data: hir.BindingPatData{Local: 0, Mode: hir.BindByValue}},
			Type:    i32,
		}},
		Result: i32,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprBinaryOp, Type: i32,
			Data: hir.BinaryOpData{
				Op:   hir.BinAdd,
				Left: &hir.Expr{Kind: hir.ExprVarRef, Type: i32, Data: hir.VarRefData{Local: 0}},
				Right: &hir.Expr{Kind: hir.ExprLiteral, Type: i32,
					Data: hir.LiteralData{Kind: hir.LitInt, Int: 1}},
			},
		}},
	}
}

func TestPipelineLowersModuleInParallel(t *testing.T) {
	p, in := newPipeline(t)
	p.Config.Jobs = 4

	hirMod := &hir.Module{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		hirMod.Funcs = append(hirMod.Funcs, addOneFunc(in, name))
	}

	mod, err := p.Lower(context.Background(), hirMod)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(mod.Funcs) != 8 {
		t.Fatalf("want 8 lowered functions, got %d", len(mod.Funcs))
	}
	for _, f := range mod.Funcs {
		if len(f.Blocks) != 1 || f.Blocks[0].Term.Kind != mir.TermReturn {
			t.Errorf("function %q lowered to unexpected shape", f.Name)
		}
	}
}

// a generator yielding 1 then returning 2 becomes a dispatch state
// machine with variants Known0, Known1, End.
func TestPipelineGeneratorStateMachine(t *testing.T) {
	p, in := newPipeline(t)
	i32 := in.Builtins().Int32

	gen := &hir.Func{
		Name:      "counter",
		Generator: true,
		Locals:    []hir.LocalDecl{{Name: "self", Type: types.NoTypeID}},
		Params: []hir.ParamDecl{{
			Pattern: &hir.Pattern{Kind: hir.PatBinding, Data: hir.BindingPatData{Local: 0, Mode: hir.BindByValue}},
		}},
		Body: &hir.Block{
			Stmts: []hir.Stmt{{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: &hir.Expr{
				Kind: hir.ExprYield,
				Data: hir.YieldData{Value: &hir.Expr{Kind: hir.ExprLiteral, Type: i32,
					Data: hir.LiteralData{Kind: hir.LitInt, Int: 1}}},
			}}}},
			Tail: &hir.Expr{Kind: hir.ExprLiteral, Type: i32, Data: hir.LiteralData{Kind: hir.LitInt, Int: 2}},
		},
	}

	mod, err := p.Lower(context.Background(), &hir.Module{Funcs: []*hir.Func{gen}})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var f *mir.Function
	for _, fn := range mod.Funcs {
		if fn.Name == "counter" {
			f = fn
		}
	}
	if f == nil || !f.IsGenerator {
		t.Fatalf("generator function missing or not transformed")
	}

	wantVariants := []string{"Known0", "Known1", "End"}
	if len(f.GeneratorVariants) != len(wantVariants) {
		t.Fatalf("variants = %v, want %v", f.GeneratorVariants, wantVariants)
	}
	for i, name := range wantVariants {
		if f.GeneratorVariants[i].Name != name {
			t.Errorf("variant %d = %q, want %q", i, f.GeneratorVariants[i].Name, name)
		}
	}

	entry := f.Blocks[f.Entry]
	if entry.Term.Kind != mir.TermSwitch || len(entry.Term.SwitchTargets) != 3 {
		t.Fatalf("dispatch block should Switch over 3 states, got %+v", entry.Term)
	}
	sc := entry.Term.SwitchValue
	if sc.Root != mir.RootArgument || sc.Argument != 0 ||
		len(sc.Wrappers) != 2 || sc.Wrappers[0].Kind != mir.WrapDeref || sc.Wrappers[1] != mir.FieldWrapper(0) {
		t.Fatalf("dispatch scrutinee should be (*arg0).0, got %v", sc)
	}
	endBB := entry.Term.SwitchTargets[2]
	if f.Blocks[endBB].Term.Kind != mir.TermDiverge {
		t.Errorf("re-entering a completed generator should diverge, got %v", f.Blocks[endBB].Term.Kind)
	}

	// The yield wraps 1 in poll variant 0, the completion wraps 2 in
	// variant 1, both written to the return place.
	sawYield, sawComplete := false, false
	for i := range f.Blocks {
		for _, st := range f.Blocks[i].Statements {
			if st.Kind != mir.StmtAssign || st.AssignDest.Root != mir.RootReturn {
				continue
			}
			rv := st.AssignSrc
			if rv.Kind != mir.RValueEnumVariant || len(rv.Fields) != 1 {
				continue
			}
			switch rv.VariantIdx {
			case 0:
				if p := rv.Fields[0]; p.Kind == mir.ParamConst && p.Constant.IntValue == 1 {
					sawYield = true
				}
			case 1:
				sawComplete = true
			}
		}
	}
	if !sawYield || !sawComplete {
		t.Errorf("missing Yielded(1) / Complete writes: yield=%v complete=%v", sawYield, sawComplete)
	}

	// The synthesized drop glue is registered alongside.
	if _, ok := mod.Funcs[f.DropFuncID]; !ok {
		t.Errorf("drop-glue function %d not present in module", f.DropFuncID)
	}
}

func TestPipelineSurfacesUserErrors(t *testing.T) {
	p, _ := newPipeline(t)
	bad := &hir.Func{
		Name: "stray",
		Body: &hir.Block{Stmts: []hir.Stmt{{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: &hir.Expr{
			Kind: hir.ExprBreak, Data: hir.BreakData{},
		}}}}},
	}
	_, err := p.Lower(context.Background(), &hir.Module{Funcs: []*hir.Func{bad}})
	if err == nil {
		t.Fatalf("break outside loop should fail the pipeline")
	}
}

func TestPipelineEmptyModule(t *testing.T) {
	p, _ := newPipeline(t)
	mod, err := p.Lower(context.Background(), nil)
	if err != nil {
		t.Fatalf("nil module should lower to an empty module, got %v", err)
	}
	if len(mod.Funcs) != 0 {
		t.Fatalf("want empty module, got %d funcs", len(mod.Funcs))
	}
}
