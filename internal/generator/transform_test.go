package generator

import (
	"testing"

	"hirmir/internal/lower"
	"hirmir/internal/mir"
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// buildFixture hand-assembles a tiny generator body: one capture
// (local 0), one body local live across a single yield (local 1).
// Block shape:
//
//	bb0 (entry): dest=local1 <- Use(local0); Return
//	bb1 (resume): Return() <- Use(local1); Return
func buildFixture() (*mir.Module, *mir.Function, *lower.GeneratorInfo) {
	fn := &mir.Function{
		ID:     1,
		Sym:    symbols.NoSymbolID,
		Name:   "counter",
		Result: types.NoTypeID,
		Args:   []mir.ArgInfo{{Type: types.NoTypeID}},
		Locals: []mir.LocalDecl{
			{Type: types.NoTypeID}, // local 0: capture
			{Type: types.NoTypeID}, // local 1: saved across yield
		},
		Blocks: []mir.BasicBlock{
			{
				Statements: []mir.Statement{
					mir.Assign(source.NoSpan, mir.LocalLV(1), mir.UseRValue(mir.LocalLV(0)), false),
				},
				Term: mir.ReturnTerm(),
			},
			{
				Statements: []mir.Statement{
					mir.Assign(source.NoSpan, mir.Return(), mir.UseRValue(mir.LocalLV(1)), false),
				},
				Term: mir.ReturnTerm(),
			},
		},
		Entry: 0,
	}

	info := &lower.GeneratorInfo{
		StateEnumSym:  symbols.SymbolID(10),
		PollEnumSym:   symbols.SymbolID(11),
		DataStructSym: symbols.SymbolID(12),
		YieldSites: []lower.YieldSite{
			{State: 0, ResumeBB: 1, LiveLocals: []mir.Local{1}},
		},
		CaptureLocals: []mir.Local{0},
	}

	mod := mir.NewModule()
	mod.Add(fn)
	return mod, fn, info
}

func TestTransformLiftsFieldsAndDispatch(t *testing.T) {
	mod, fn, info := buildFixture()

	if err := Transform(mod, fn, info); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	if !fn.IsGenerator {
		t.Fatalf("IsGenerator not set")
	}
	if fn.GeneratorEnum != info.StateEnumSym || fn.GeneratorStruct != info.DataStructSym {
		t.Fatalf("generator symbols not propagated")
	}

	if len(fn.GeneratorFields) != 2 {
		t.Fatalf("want 2 lifted fields, got %d", len(fn.GeneratorFields))
	}
	if fn.GeneratorFields[0].Local != 0 {
		t.Errorf("field 0 should be capture local 0, got local %d", fn.GeneratorFields[0].Local)
	}
	if fn.GeneratorFields[1].Local != 1 {
		t.Errorf("field 1 should be saved local 1, got local %d", fn.GeneratorFields[1].Local)
	}

	wantVariants := []string{"Known0", "Known1", "End"}
	if len(fn.GeneratorVariants) != len(wantVariants) {
		t.Fatalf("want %d variants, got %d", len(wantVariants), len(fn.GeneratorVariants))
	}
	for i, name := range wantVariants {
		if fn.GeneratorVariants[i].Name != name {
			t.Errorf("variant %d: want %q, got %q", i, name, fn.GeneratorVariants[i].Name)
		}
	}

	entry := fn.Blocks[fn.Entry]
	if entry.Term.Kind != mir.TermSwitch {
		t.Fatalf("entry block should dispatch via Switch, got %v", entry.Term.Kind)
	}
	wantTargets := []mir.BlockID{0, 1, mir.BlockID(len(fn.Blocks) - 2)}
	// endBB is the block created just before the new entry block, i.e.
	// len(fn.Blocks)-2 once both newBlock calls have run.
	if len(entry.Term.SwitchTargets) != 3 {
		t.Fatalf("want 3 switch targets, got %d", len(entry.Term.SwitchTargets))
	}
	if entry.Term.SwitchTargets[0] != wantTargets[0] || entry.Term.SwitchTargets[1] != wantTargets[1] {
		t.Errorf("switch targets = %v, want known-state prefix %v", entry.Term.SwitchTargets, wantTargets[:2])
	}
	endBB := entry.Term.SwitchTargets[2]
	if fn.Blocks[endBB].Term.Kind != mir.TermDiverge {
		t.Errorf("End target block should Diverge, got %v", fn.Blocks[endBB].Term.Kind)
	}

	stateField := entry.Term.SwitchValue
	if stateField.Root != mir.RootArgument || stateField.Argument != 0 {
		t.Fatalf("switch scrutinee should read through argument 0, got %+v", stateField)
	}
	if len(stateField.Wrappers) != 2 || stateField.Wrappers[0].Kind != mir.WrapDeref || stateField.Wrappers[1].Kind != mir.WrapField || stateField.Wrappers[1].Index != 0 {
		t.Fatalf("switch scrutinee should be *self.field(0), got %+v", stateField.Wrappers)
	}
}

func TestTransformRewritesLiftedLocals(t *testing.T) {
	mod, fn, info := buildFixture()
	if err := Transform(mod, fn, info); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	// Original bb0's Assign: dest (local1, saved) should now read through
	// the saved-locals slot's two wrapper layers — field(2) is the slot
	// itself (one past the single capture), then value.value.field(0);
	// src (local0, a capture) is a single field projection of *self.
	savedPlace := []mir.Wrapper{
		mir.DerefWrapper(), mir.FieldWrapper(2), mir.FieldWrapper(0), mir.FieldWrapper(0), mir.FieldWrapper(0),
	}
	capturePlace := []mir.Wrapper{mir.DerefWrapper(), mir.FieldWrapper(1)}

	bb0 := fn.Blocks[0]
	if len(bb0.Statements) != 1 {
		t.Fatalf("bb0 should still have exactly one statement, got %d", len(bb0.Statements))
	}
	st := bb0.Statements[0]
	if st.AssignDest.Root != mir.RootArgument || !wrappersEqual(st.AssignDest.Wrappers, savedPlace) {
		t.Errorf("assign dest not rewritten to the saved-local place: %+v", st.AssignDest)
	}
	if st.AssignSrc.Kind != mir.RValueUse || st.AssignSrc.Use.Root != mir.RootArgument || !wrappersEqual(st.AssignSrc.Use.Wrappers, capturePlace) {
		t.Errorf("assign src not rewritten to the capture place: %+v", st.AssignSrc.Use)
	}

	bb1 := fn.Blocks[1]
	st1 := bb1.Statements[0]
	if st1.AssignSrc.Use.Root != mir.RootArgument || !wrappersEqual(st1.AssignSrc.Use.Wrappers, savedPlace) {
		t.Errorf("resume block's read of the saved local not rewritten: %+v", st1.AssignSrc.Use)
	}
	// The Return() destination is untouched: it is not a Local root.
	if st1.AssignDest.Root != mir.RootReturn {
		t.Errorf("assign dest of resume block should remain the return place, got %+v", st1.AssignDest)
	}
}

func wrappersEqual(got, want []mir.Wrapper) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestTransformBuildsDropGlue(t *testing.T) {
	mod, fn, info := buildFixture()
	if err := Transform(mod, fn, info); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	df, ok := mod.Funcs[fn.DropFuncID]
	if !ok {
		t.Fatalf("drop-glue function %d not registered in module", fn.DropFuncID)
	}
	if df.Name != "counter::drop" {
		t.Errorf("drop-glue name = %q, want %q", df.Name, "counter::drop")
	}

	entry := df.Blocks[df.Entry]
	if entry.Term.Kind != mir.TermSwitch {
		t.Fatalf("drop-glue entry should dispatch on state, got %v", entry.Term.Kind)
	}
	if len(entry.Term.SwitchTargets) != 3 {
		t.Fatalf("drop-glue should have 3 dispatch targets (Known0, Known1, End), got %d", len(entry.Term.SwitchTargets))
	}

	// Known0 (never yielded): drops only the capture, a single field
	// projection of *self.
	state0 := df.Blocks[entry.Term.SwitchTargets[0]]
	if len(state0.Statements) != 1 || state0.Statements[0].Kind != mir.StmtDrop {
		t.Fatalf("Known0 drop block should drop exactly the capture field, got %+v", state0.Statements)
	}
	if !wrappersEqual(state0.Statements[0].DropPlace.Wrappers, []mir.Wrapper{mir.DerefWrapper(), mir.FieldWrapper(1)}) {
		t.Errorf("Known0 should drop the capture place, got %+v", state0.Statements[0].DropPlace)
	}

	// Known1 (suspended at the one yield site): drops the saved local
	// through the saved-slot's wrapper layers.
	state1 := df.Blocks[entry.Term.SwitchTargets[1]]
	wantSaved := []mir.Wrapper{
		mir.DerefWrapper(), mir.FieldWrapper(2), mir.FieldWrapper(0), mir.FieldWrapper(0), mir.FieldWrapper(0),
	}
	if len(state1.Statements) != 1 || !wrappersEqual(state1.Statements[0].DropPlace.Wrappers, wantSaved) {
		t.Fatalf("Known1 drop block should drop the saved-local place, got %+v", state1.Statements)
	}

	// End: nothing to drop, goes straight to the shared return block.
	endTarget := entry.Term.SwitchTargets[2]
	endBlock := df.Blocks[endTarget]
	if len(endBlock.Statements) != 0 || endBlock.Term.Kind != mir.TermReturn {
		t.Errorf("End dispatch target should be the bare return block, got %+v", endBlock)
	}
}

func TestTransformNoGeneratorInfoIsNoop(t *testing.T) {
	mod, fn, _ := buildFixture()
	if err := Transform(mod, fn, nil); err != nil {
		t.Fatalf("Transform with nil info should be a no-op, got error: %v", err)
	}
	if fn.IsGenerator {
		t.Errorf("fn should not be marked a generator when info is nil")
	}
}

func TestTransformRequiresModule(t *testing.T) {
	_, fn, info := buildFixture()
	if err := Transform(nil, fn, info); err == nil {
		t.Fatalf("Transform without a module should report an error, got nil")
	}
}
