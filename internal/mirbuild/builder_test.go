package mirbuild

import (
	"testing"

	"hirmir/internal/mir"
	"hirmir/internal/resolver"
	"hirmir/internal/source"
	"hirmir/internal/types"
)

func newTestBuilder(t *testing.T) (*MirBuilder, *types.Interner) {
	t.Helper()
	in := types.NewInterner()
	f := &mir.Function{Name: "test", Result: in.Builtins().Int32, Entry: mir.NoBlockID}
	b := New(resolver.NewStatic(in), in, f, nil)
	entry := b.NewBlock(false)
	f.Entry = entry
	b.SetCurrentBlock(entry)
	return b, in
}

func TestNewBlockLinkedEmitsGoto(t *testing.T) {
	b, _ := newTestBuilder(t)
	next := b.NewBlock(true)

	f := b.Function()
	if f.Blocks[0].Term.Kind != mir.TermGoto || f.Blocks[0].Term.GotoTarget != next {
		t.Fatalf("linked NewBlock should seal the current block with Goto bb%d, got %+v", next, f.Blocks[0].Term)
	}
	b.SetCurrentBlock(next)
	if b.BlockTerminated() {
		t.Fatalf("fresh block should not be terminated")
	}
}

func TestTerminateIsIdempotentOnSealedBlock(t *testing.T) {
	b, _ := newTestBuilder(t)
	b.Terminate(source.NoSpan, mir.DivergeTerm())
	b.Terminate(source.NoSpan, mir.ReturnTerm())
	if got := b.Function().Blocks[0].Term.Kind; got != mir.TermDiverge {
		t.Fatalf("second Terminate must not overwrite the first, got %v", got)
	}
	// Emission into a sealed block is a no-op too.
	b.EmitAssign(source.NoSpan, mir.Return(), mir.RValue{Kind: mir.RValueTuple}, false)
	if len(b.Function().Blocks[0].Statements) != 0 {
		t.Fatalf("statement emitted into a sealed block")
	}
}

func TestTakeResultAsParamReusesPureRValues(t *testing.T) {
	b, in := newTestBuilder(t)
	i32 := in.Builtins().Int32

	c := mir.Constant{Kind: mir.ConstInt, Type: i32, IntValue: 7}
	b.SetResultRValue(mir.ConstantRValue(c), i32)
	p := b.TakeResultAsParam(source.NoSpan)
	if p.Kind != mir.ParamConst || p.Constant.IntValue != 7 {
		t.Fatalf("constant result should pass through as ParamConst, got %+v", p)
	}
	if len(b.Function().Locals) != 0 {
		t.Fatalf("pure result must not allocate a temporary")
	}

	// A computed RValue must be materialised.
	b.SetResultRValue(mir.RValue{
		Kind: mir.RValueBinOp, BinOp: mir.BinOpAdd,
		BinOpLeft: mir.ConstParam(c), BinOpRight: mir.ConstParam(c),
	}, i32)
	p = b.TakeResultAsParam(source.NoSpan)
	if p.Kind != mir.ParamUse || p.LValue.Root != mir.RootLocal {
		t.Fatalf("impure result should materialise into a temp, got %+v", p)
	}
	if len(b.Function().Locals) != 1 || len(b.Function().Blocks[0].Statements) != 1 {
		t.Fatalf("materialisation should allocate one temp and one assign")
	}
}

func TestMaterializeParamForCallArgPinsEvaluationOrder(t *testing.T) {
	b, in := newTestBuilder(t)
	i32 := in.Builtins().Int32
	x := b.DeclareLocal("x", i32, source.NoSpan)

	// Non-last argument: even a bare local use is copied into its own
	// temporary.
	b.SetResultLValue(mir.LocalLV(x), i32)
	p := b.MaterializeParamForCallArg(source.NoSpan, false)
	if p.Kind != mir.ParamUse || p.LValue.Local == x {
		t.Fatalf("non-last arg should be copied into a fresh temp, got %+v", p)
	}

	// Last argument: the bare use passes through untouched.
	b.SetResultLValue(mir.LocalLV(x), i32)
	p = b.MaterializeParamForCallArg(source.NoSpan, true)
	if p.Kind != mir.ParamUse || p.LValue.Local != x {
		t.Fatalf("last arg should reuse the place directly, got %+v", p)
	}
}

func TestTakeResultAsLValueMaterialises(t *testing.T) {
	b, in := newTestBuilder(t)
	i32 := in.Builtins().Int32

	b.SetResultRValue(mir.ConstantRValue(mir.Constant{Kind: mir.ConstInt, Type: i32, IntValue: 3}), i32)
	lv := b.TakeResultAsLValue(source.NoSpan)
	if lv.Root != mir.RootLocal {
		t.Fatalf("rvalue result should land in a local, got %+v", lv)
	}
	if got := b.Function().LocalType(lv.Local); got != i32 {
		t.Fatalf("materialised temp has type %d, want %d", got, i32)
	}
}

func TestAllocFreshTempIfDiverged(t *testing.T) {
	b, in := newTestBuilder(t)
	i32 := in.Builtins().Int32

	b.Terminate(source.NoSpan, mir.DivergeTerm())
	b.ClearResult()
	p := b.AllocFreshTempIfDiverged(source.NoSpan, i32)
	if p.Kind != mir.ParamUse || p.LValue.Root != mir.RootLocal {
		t.Fatalf("diverged path should still hand back a fresh temp, got %+v", p)
	}
}

func TestConsumingNonCopyResultMarksItMoved(t *testing.T) {
	b, in := newTestBuilder(t)
	structTy := in.Struct("S", []string{"a"}, []types.TypeID{in.Builtins().Int32})

	b.Scopes.PushVariable()
	tmp := b.NewTemporary(structTy, source.NoSpan)
	b.SetResultLValue(tmp, structTy)
	_ = b.TakeResultAsRValue()

	// The scope must not drop a value that was just moved out.
	b.Scopes.Pop(source.NoSpan, true)
	for _, st := range b.Function().Blocks[0].Statements {
		if st.Kind == mir.StmtDrop {
			t.Fatalf("moved-from temporary still dropped: %+v", st)
		}
	}
}
