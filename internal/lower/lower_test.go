package lower

import (
	"reflect"
	"strings"
	"testing"

	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/mirbuild"
	"hirmir/internal/resolver"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// harness bundles the shared tables a lowering test needs and a couple
// of HIR node constructors so fixtures read like the source they stand
// in for.
type harness struct {
	in   *types.Interner
	res  *resolver.Static
	syms *symbols.Table
}

func newHarness() *harness {
	in := types.NewInterner()
	return &harness{in: in, res: resolver.NewStatic(in), syms: symbols.NewTable()}
}

func (h *harness) lower(t *testing.T, fn *hir.Func) *mir.Function {
	t.Helper()
	f, err := mirbuild.LowerFunction(h.res, h.in, 1, fn, func(b *mirbuild.MirBuilder, fn *hir.Func) error {
		v := NewVisitor(b, h.res, h.in, h.syms, nil)
		return v.LowerFunction(fn)
	}, nil)
	if err != nil {
		t.Fatalf("LowerFunction: %v", err)
	}
	if err := mir.ValidateFunc(f, mir.ValidateOptions{}); err != nil {
		t.Fatalf("emitted MIR fails validation: %v\n%s", err, dump(f, h.in))
	}
	return f
}

func dump(f *mir.Function, in *types.Interner) string {
	var b strings.Builder
	mod := mir.NewModule()
	mod.Add(f)
	_ = mir.DumpModule(&b, mod, in)
	return b.String()
}

func intLit(v int64, ty types.TypeID) *hir.Expr {
	return &hir.Expr{Kind: hir.ExprLiteral, Type: ty, Data: hir.LiteralData{Kind: hir.LitInt, Int: v}}
}

func varRef(local hir.LocalID, ty types.TypeID) *hir.Expr {
	return &hir.Expr{Kind: hir.ExprVarRef, Type: ty, Data: hir.VarRefData{Local: local}}
}

func bindPat(local hir.LocalID, ty types.TypeID) *hir.Pattern {
	return &hir.Pattern{Kind: hir.PatBinding, Type: ty, Data: hir.BindingPatData{Local: local, Mode: hir.BindByValue}}
}

func blockExpr(blk *hir.Block, ty types.TypeID) *hir.Expr {
	return &hir.Expr{Kind: hir.ExprBlock, Type: ty, Data: hir.BlockExprData{Block: blk}}
}

func (h *harness) callExpr(name string, ty types.TypeID, args ...*hir.Expr) *hir.Expr {
	sym := h.syms.New(symbols.Symbol{Kind: symbols.KindFunc, Name: name})
	return &hir.Expr{Kind: hir.ExprCall, Type: ty, Data: hir.CallData{Sym: sym, Name: name, Args: args}}
}

func allStatements(f *mir.Function) []mir.Statement {
	var out []mir.Statement
	for i := range f.Blocks {
		out = append(out, f.Blocks[i].Statements...)
	}
	return out
}

func countTermKind(f *mir.Function, kind mir.TermKind) int {
	n := 0
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == kind {
			n++
		}
	}
	return n
}

// fn f(x: i32) -> i32 { x + 1 }
func TestLowerAddOne(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32

	fn := &hir.Func{
		Name:   "f",
		Locals: []hir.LocalDecl{{Name: "x", Type: i32}},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, i32), Type: i32}},
		Result: i32,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprBinaryOp, Type: i32,
			Data: hir.BinaryOpData{Op: hir.BinAdd, Left: varRef(0, i32), Right: intLit(1, i32)},
		}},
	}
	f := h.lower(t, fn)

	if len(f.Blocks) != 1 {
		t.Fatalf("want a single straight-line block, got %d", len(f.Blocks))
	}
	if f.Blocks[0].Term.Kind != mir.TermReturn {
		t.Fatalf("want Return terminator, got %v", f.Blocks[0].Term.Kind)
	}

	var sawBinOp, sawReturnAssign bool
	for _, st := range f.Blocks[0].Statements {
		if st.Kind != mir.StmtAssign {
			continue
		}
		if st.AssignSrc.Kind == mir.RValueBinOp {
			if st.AssignSrc.BinOp != mir.BinOpAdd {
				t.Errorf("binop = %v, want Add", st.AssignSrc.BinOp)
			}
			r := st.AssignSrc.BinOpRight
			if r.Kind != mir.ParamConst || r.Constant.IntValue != 1 {
				t.Errorf("right operand = %+v, want const 1", r)
			}
			sawBinOp = true
		}
		if st.AssignDest.Root == mir.RootReturn {
			sawReturnAssign = true
		}
	}
	if !sawBinOp || !sawReturnAssign {
		t.Errorf("missing binop or return assignment:\n%s", dump(f, h.in))
	}
}

// if c { 1 } else { 2 } with c: bool in local 0, result i32.
func TestLowerIfElse(t *testing.T) {
	h := newHarness()
	i32, boolTy := h.in.Builtins().Int32, h.in.Builtins().Bool

	fn := &hir.Func{
		Name:   "pick",
		Locals: []hir.LocalDecl{{Name: "c", Type: boolTy}},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, boolTy), Type: boolTy}},
		Result: i32,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprIf, Type: i32,
			Data: hir.IfData{Cond: varRef(0, boolTy), Then: intLit(1, i32), Else: intLit(2, i32)},
		}},
	}
	f := h.lower(t, fn)

	if len(f.Blocks) != 4 {
		t.Fatalf("want 4 blocks (entry, then, else, join), got %d:\n%s", len(f.Blocks), dump(f, h.in))
	}
	entry := f.Blocks[0].Term
	if entry.Kind != mir.TermIf {
		t.Fatalf("entry should end in If, got %v", entry.Kind)
	}
	if entry.IfCond.Root != mir.RootLocal || entry.IfCond.Local != 0 {
		t.Errorf("condition should read local 0, got %v", entry.IfCond)
	}

	join := mir.BlockID(-1)
	for _, arm := range []mir.BlockID{entry.IfTrue, entry.IfFalse} {
		bb := f.Blocks[arm]
		if bb.Term.Kind != mir.TermGoto {
			t.Fatalf("arm bb%d should Goto the join, got %v", arm, bb.Term.Kind)
		}
		if join == -1 {
			join = bb.Term.GotoTarget
		} else if bb.Term.GotoTarget != join {
			t.Errorf("arms join at different blocks: bb%d vs bb%d", bb.Term.GotoTarget, join)
		}
		var sawConst bool
		for _, st := range bb.Statements {
			if st.Kind == mir.StmtAssign && st.AssignSrc.Kind == mir.RValueConstant {
				sawConst = true
			}
		}
		if !sawConst {
			t.Errorf("arm bb%d assigns no constant into the result slot", arm)
		}
	}
	if f.Blocks[join].Term.Kind != mir.TermReturn {
		t.Errorf("join block should return, got %v", f.Blocks[join].Term.Kind)
	}
}

func (h *harness) optionType() types.TypeID {
	i32 := h.in.Builtins().Int32
	return h.in.Enum("Option", []types.EnumVariant{
		{Name: "Some", Fields: []types.TypeID{i32}},
		{Name: "None"},
	})
}

// match v { Some(x) => x, None => 0 }.
func TestLowerMatchOption(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	opt := h.optionType()

	fn := &hir.Func{
		Name: "unwrap_or_zero",
		Locals: []hir.LocalDecl{
			{Name: "v", Type: opt},
			{Name: "x", Type: i32},
		},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, opt), Type: opt}},
		Result: i32,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprMatch, Type: i32,
			Data: hir.MatchData{
				Scrutinee: varRef(0, opt),
				Arms: []hir.MatchArm{
					{
						Patterns: []*hir.Pattern{{
							Kind: hir.PatEnumVariant, Type: opt,
							Data: hir.EnumVariantPatData{VariantIdx: 0, Elems: []*hir.Pattern{bindPat(1, i32)}},
						}},
						Body: varRef(1, i32),
					},
					{
						Patterns: []*hir.Pattern{{
							Kind: hir.PatEnumVariant, Type: opt,
							Data: hir.EnumVariantPatData{VariantIdx: 1},
						}},
						Body: intLit(0, i32),
					},
				},
			},
		}},
	}
	f := h.lower(t, fn)

	if f.Blocks[0].Term.Kind != mir.TermSwitch {
		t.Fatalf("scrutinee dispatch should be a Switch, got %v", f.Blocks[0].Term.Kind)
	}
	if n := len(f.Blocks[0].Term.SwitchTargets); n != 2 {
		t.Fatalf("Option switch should have one target per variant, got %d", n)
	}

	var sawPayloadBind bool
	for _, st := range allStatements(f) {
		if st.Kind != mir.StmtAssign || st.AssignSrc.Kind != mir.RValueUse {
			continue
		}
		w := st.AssignSrc.Use.Wrappers
		if len(w) == 2 && w[0] == mir.DowncastWrapper(0) && w[1] == mir.FieldWrapper(0) {
			sawPayloadBind = true
		}
	}
	if !sawPayloadBind {
		t.Errorf("Some arm should bind through Downcast(0).Field(0):\n%s", dump(f, h.in))
	}
	if n := countTermKind(f, mir.TermDiverge); n != 1 {
		t.Errorf("exactly the fall-off-the-arms block should diverge, got %d", n)
	}
}

// let (a, b) = (1, 2); — plain Field projections, no Downcast.
func TestLowerTupleDestructure(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	pair := h.in.Tuple(i32, i32)

	fn := &hir.Func{
		Name: "split",
		Locals: []hir.LocalDecl{
			{Name: "a", Type: i32},
			{Name: "b", Type: i32},
		},
		Result: i32,
		Body: &hir.Block{
			Stmts: []hir.Stmt{{
				Kind: hir.StmtLet,
				Data: hir.LetStmtData{
					Pattern: &hir.Pattern{Kind: hir.PatTuple, Type: pair, Data: hir.TuplePatData{
						Elems: []*hir.Pattern{bindPat(0, i32), bindPat(1, i32)},
					}},
					Init: &hir.Expr{Kind: hir.ExprTupleLit, Type: pair, Data: hir.TupleLitData{
						Elems: []*hir.Expr{intLit(1, i32), intLit(2, i32)},
					}},
				},
			}},
			Tail: varRef(0, i32),
		},
	}
	f := h.lower(t, fn)

	if len(f.Blocks) != 1 {
		t.Fatalf("want a single block, got %d", len(f.Blocks))
	}
	var gotA, gotB bool
	for _, st := range f.Blocks[0].Statements {
		if st.Kind != mir.StmtAssign || st.AssignSrc.Kind != mir.RValueUse {
			continue
		}
		w := st.AssignSrc.Use.Wrappers
		for _, wr := range w {
			if wr.Kind == mir.WrapDowncast {
				t.Fatalf("tuple destructure must not use Downcast: %+v", st.AssignSrc.Use)
			}
		}
		if st.AssignDest.Root == mir.RootLocal && len(w) == 1 && w[0].Kind == mir.WrapField {
			switch {
			case st.AssignDest.Local == 0 && w[0].Index == 0:
				gotA = true
			case st.AssignDest.Local == 1 && w[0].Index == 1:
				gotB = true
			}
		}
	}
	if !gotA || !gotB {
		t.Errorf("missing field-wise bindings a/b:\n%s", dump(f, h.in))
	}
}

// while let Some(x) = next() { f(x) }, desugared to loop+match.
func TestLowerWhileLet(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	opt := h.optionType()

	next := h.callExpr("next", opt)
	fx := h.callExpr("f", types.NoTypeID, varRef(1, i32))

	matchExpr := &hir.Expr{
		Kind: hir.ExprMatch,
		Data: hir.MatchData{
			Scrutinee: next,
			Arms: []hir.MatchArm{
				{
					Patterns: []*hir.Pattern{{
						Kind: hir.PatEnumVariant, Type: opt,
						Data: hir.EnumVariantPatData{VariantIdx: 0, Elems: []*hir.Pattern{bindPat(1, i32)}},
					}},
					Body: fx,
				},
				{
					Patterns: []*hir.Pattern{{
						Kind: hir.PatEnumVariant, Type: opt,
						Data: hir.EnumVariantPatData{VariantIdx: 1},
					}},
					Body: &hir.Expr{Kind: hir.ExprBreak, Data: hir.BreakData{}},
				},
			},
		},
	}

	fn := &hir.Func{
		Name: "drain",
		Locals: []hir.LocalDecl{
			{Name: "it", Type: opt},
			{Name: "x", Type: i32},
		},
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprLoop,
			Data: hir.LoopData{Body: blockExpr(&hir.Block{
				Stmts: []hir.Stmt{{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: matchExpr}}},
			}, types.NoTypeID)},
		}},
	}
	f := h.lower(t, fn)

	// The entry links into the loop head; the loop bottom jumps back.
	head := f.Blocks[0].Term.GotoTarget
	if f.Blocks[0].Term.Kind != mir.TermGoto {
		t.Fatalf("entry should Goto the loop head, got %v", f.Blocks[0].Term.Kind)
	}
	backEdges := 0
	for i := range f.Blocks {
		if i != 0 && f.Blocks[i].Term.Kind == mir.TermGoto && f.Blocks[i].Term.GotoTarget == head {
			backEdges++
		}
	}
	if backEdges == 0 {
		t.Errorf("no back edge to the loop head bb%d:\n%s", head, dump(f, h.in))
	}

	calls := 0
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == mir.TermCall {
			calls++
		}
	}
	if calls != 2 {
		t.Errorf("want calls to next and f, got %d call terminators", calls)
	}
	if countTermKind(f, mir.TermSwitch) != 2 {
		t.Errorf("want one Switch per enum pattern test, got %d", countTermKind(f, mir.TermSwitch))
	}
	if countTermKind(f, mir.TermReturn) != 1 {
		t.Errorf("loop exit should reach exactly one Return, got %d", countTermKind(f, mir.TermReturn))
	}
}

// an empty function body yields no statements and a bare Return.
func TestLowerEmptyBlock(t *testing.T) {
	h := newHarness()
	fn := &hir.Func{Name: "nop", Body: &hir.Block{}}
	f := h.lower(t, fn)

	if len(f.Blocks) != 1 || len(f.Blocks[0].Statements) != 0 {
		t.Fatalf("empty body should lower to one empty block:\n%s", dump(f, h.in))
	}
	if f.Blocks[0].Term.Kind != mir.TermReturn {
		t.Fatalf("want Return, got %v", f.Blocks[0].Term.Kind)
	}
}

// loop { } — only Goto-to-head on the loop path, Diverge on the
// unreachable exit.
func TestLowerInfiniteLoop(t *testing.T) {
	h := newHarness()
	fn := &hir.Func{Name: "spin", Body: &hir.Block{Tail: &hir.Expr{
		Kind: hir.ExprLoop,
		Data: hir.LoopData{Body: blockExpr(&hir.Block{}, types.NoTypeID), Diverging: true},
	}}}
	f := h.lower(t, fn)

	if countTermKind(f, mir.TermReturn) != 0 {
		t.Errorf("loop{} must not reach a Return:\n%s", dump(f, h.in))
	}
	if countTermKind(f, mir.TermDiverge) != 1 {
		t.Errorf("exactly the unreachable exit should Diverge, got %d", countTermKind(f, mir.TermDiverge))
	}
	head := f.Blocks[0].Term.GotoTarget
	if f.Blocks[head].Term.Kind != mir.TermGoto || f.Blocks[head].Term.GotoTarget != head {
		t.Errorf("loop body should Goto its own head, got %+v", f.Blocks[head].Term)
	}
}

// guardType interns a struct with drop glue, for drop-ordering fixtures.
func (h *harness) guardType() types.TypeID {
	return h.in.Struct("Guard", []string{"fd"}, []types.TypeID{h.in.Builtins().Int32})
}

// return through three nested scopes drops live locals
// innermost-first before the Return.
func TestLowerReturnDropsNestedScopesInnermostFirst(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	guard := h.guardType()

	let := func(local hir.LocalID) hir.Stmt {
		return hir.Stmt{Kind: hir.StmtLet, Data: hir.LetStmtData{
			Pattern: bindPat(local, guard),
			Init:    h.callExpr("mk", guard),
		}}
	}
	ret := hir.Stmt{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: &hir.Expr{
		Kind: hir.ExprReturn, Data: hir.ReturnData{Value: intLit(0, i32)},
	}}}

	inner := hir.Stmt{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: blockExpr(&hir.Block{
		Stmts: []hir.Stmt{let(2), ret},
	}, types.NoTypeID)}}
	middle := hir.Stmt{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: blockExpr(&hir.Block{
		Stmts: []hir.Stmt{let(1), inner},
	}, types.NoTypeID)}}

	fn := &hir.Func{
		Name: "bail",
		Locals: []hir.LocalDecl{
			{Name: "a", Type: guard},
			{Name: "b", Type: guard},
			{Name: "c", Type: guard},
		},
		Result: i32,
		Body:   &hir.Block{Stmts: []hir.Stmt{let(0), middle}},
	}
	f := h.lower(t, fn)

	// Find the block holding the Return terminator and read its drops.
	var order []mir.Local
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind != mir.TermReturn {
			continue
		}
		for _, st := range f.Blocks[i].Statements {
			if st.Kind == mir.StmtDrop {
				order = append(order, st.DropPlace.Local)
			}
		}
	}
	want := []mir.Local{2, 1, 0}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("drop order on the return path = %v, want %v (innermost first)\n%s", order, want, dump(f, h.in))
	}
}

// `let r = &mk();` raises the call's temporary into the variable
// scope — it is dropped at block exit, after r's later use, not at the
// let statement's end.
func TestLowerBorrowInLetRaisesTemporary(t *testing.T) {
	h := newHarness()
	guard := h.guardType()
	ref := h.in.Reference(guard, false)

	fn := &hir.Func{
		Name: "hold",
		Locals: []hir.LocalDecl{
			{Name: "r", Type: ref},
		},
		Body: &hir.Block{Stmts: []hir.Stmt{
			{Kind: hir.StmtLet, Data: hir.LetStmtData{
				Pattern: bindPat(0, ref),
				Init: &hir.Expr{Kind: hir.ExprBorrow, Type: ref, Data: hir.BorrowData{
					Operand: h.callExpr("mk", guard),
				}},
			}},
			{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: h.callExpr("use_ref", types.NoTypeID, varRef(0, ref))}},
		}},
	}
	f := h.lower(t, fn)

	var borrowed mir.Local
	var foundBorrow bool
	for _, st := range allStatements(f) {
		if st.Kind == mir.StmtAssign && st.AssignSrc.Kind == mir.RValueBorrow {
			borrowed = st.AssignSrc.BorrowOf.Local
			foundBorrow = true
		}
	}
	if !foundBorrow {
		t.Fatalf("no borrow emitted:\n%s", dump(f, h.in))
	}

	dropBlock := mir.NoBlockID
	for i := range f.Blocks {
		for _, st := range f.Blocks[i].Statements {
			if st.Kind == mir.StmtDrop && st.DropPlace.Root == mir.RootLocal && st.DropPlace.Local == borrowed {
				dropBlock = mir.BlockID(i)
			}
		}
	}
	if dropBlock == mir.NoBlockID {
		t.Fatalf("raised temporary is never dropped:\n%s", dump(f, h.in))
	}
	if f.Blocks[dropBlock].Term.Kind != mir.TermReturn {
		t.Errorf("raised temporary should be dropped at function exit, but its drop is in bb%d (%v)\n%s",
			dropBlock, f.Blocks[dropBlock].Term.Kind, dump(f, h.in))
	}
}

// Short-circuit: && lowers to nested Ifs, never a single BinOp.
func TestLowerLogicalAndShortCircuits(t *testing.T) {
	h := newHarness()
	boolTy := h.in.Builtins().Bool

	fn := &hir.Func{
		Name: "both",
		Locals: []hir.LocalDecl{
			{Name: "a", Type: boolTy},
			{Name: "b", Type: boolTy},
		},
		Params: []hir.ParamDecl{
			{Pattern: bindPat(0, boolTy), Type: boolTy},
			{Pattern: bindPat(1, boolTy), Type: boolTy},
		},
		Result: boolTy,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprLogicalAnd, Type: boolTy,
			Data: hir.LogicalData{Left: varRef(0, boolTy), Right: varRef(1, boolTy)},
		}},
	}
	f := h.lower(t, fn)

	for _, st := range allStatements(f) {
		if st.Kind == mir.StmtAssign && st.AssignSrc.Kind == mir.RValueBinOp {
			t.Fatalf("short-circuit && must not emit a BinOp: %+v", st.AssignSrc)
		}
	}
	if countTermKind(f, mir.TermIf) == 0 {
		t.Fatalf("short-circuit && should branch via If:\n%s", dump(f, h.in))
	}
	// The short path assigns the constant `false` for &&.
	var sawFalse bool
	for _, st := range allStatements(f) {
		if st.Kind == mir.StmtAssign && st.AssignSrc.Kind == mir.RValueConstant &&
			st.AssignSrc.Constant.Kind == mir.ConstBool && !st.AssignSrc.Constant.BoolValue {
			sawFalse = true
		}
	}
	if !sawFalse {
		t.Errorf("missing constant-false assignment on the short path")
	}
}

// lowering the same function twice yields structurally identical MIR.
func TestLowerIsDeterministic(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	opt := h.optionType()

	build := func() *hir.Func {
		return &hir.Func{
			Name: "unwrap_or_zero",
			Locals: []hir.LocalDecl{
				{Name: "v", Type: opt},
				{Name: "x", Type: i32},
			},
			Params: []hir.ParamDecl{{Pattern: bindPat(0, opt), Type: opt}},
			Result: i32,
			Body: &hir.Block{Tail: &hir.Expr{
				Kind: hir.ExprMatch, Type: i32,
				Data: hir.MatchData{
					Scrutinee: varRef(0, opt),
					Arms: []hir.MatchArm{
						{
							Patterns: []*hir.Pattern{{
								Kind: hir.PatEnumVariant, Type: opt,
								Data: hir.EnumVariantPatData{VariantIdx: 0, Elems: []*hir.Pattern{bindPat(1, i32)}},
							}},
							Body: varRef(1, i32),
						},
						{
							Patterns: []*hir.Pattern{{
								Kind: hir.PatEnumVariant, Type: opt,
								Data: hir.EnumVariantPatData{VariantIdx: 1},
							}},
							Body: intLit(0, i32),
						},
					},
				},
			}},
		}
	}

	f1 := h.lower(t, build())
	f2 := h.lower(t, build())
	if !reflect.DeepEqual(f1, f2) {
		t.Fatalf("two lowerings of the same HIR differ:\n%s\nvs\n%s", dump(f1, h.in), dump(f2, h.in))
	}
}

// destructuring an enum whose only variant is V emits exactly one
// Downcast(V) projection.
func TestLowerSingleVariantDestructure(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	wrapped := h.in.Enum("Wrapped", []types.EnumVariant{{Name: "V", Fields: []types.TypeID{i32}}})

	fn := &hir.Func{
		Name: "unwrap",
		Locals: []hir.LocalDecl{
			{Name: "w", Type: wrapped},
			{Name: "x", Type: i32},
		},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, wrapped), Type: wrapped}},
		Result: i32,
		Body: &hir.Block{
			Stmts: []hir.Stmt{{Kind: hir.StmtLet, Data: hir.LetStmtData{
				Pattern: &hir.Pattern{Kind: hir.PatEnumVariant, Type: wrapped, Data: hir.EnumVariantPatData{
					VariantIdx: 0, Elems: []*hir.Pattern{bindPat(1, i32)},
				}},
				Init: varRef(0, wrapped),
			}}},
			Tail: varRef(1, i32),
		},
	}
	f := h.lower(t, fn)

	downcasts := 0
	for _, st := range allStatements(f) {
		if st.Kind != mir.StmtAssign || st.AssignSrc.Kind != mir.RValueUse {
			continue
		}
		for _, w := range st.AssignSrc.Use.Wrappers {
			if w.Kind == mir.WrapDowncast {
				if w.Index != 0 {
					t.Errorf("downcast to variant %d, want 0", w.Index)
				}
				downcasts++
			}
		}
	}
	if downcasts != 1 {
		t.Fatalf("want exactly one Downcast projection, got %d:\n%s", downcasts, dump(f, h.in))
	}
	if countTermKind(f, mir.TermSwitch) != 0 {
		t.Errorf("irrefutable destructure must not emit a Switch")
	}
}

// Destructuring a variant of an enum whose other variants are inhabited
// is refutable and must be rejected as a user error, not lowered to a
// bare Downcast.
func TestLowerRefutableEnumDestructureIsUserError(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	opt := h.optionType()

	fn := &hir.Func{
		Name: "oops",
		Locals: []hir.LocalDecl{
			{Name: "v", Type: opt},
			{Name: "x", Type: i32},
		},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, opt), Type: opt}},
		Result: i32,
		Body: &hir.Block{
			Stmts: []hir.Stmt{{Kind: hir.StmtLet, Data: hir.LetStmtData{
				Pattern: &hir.Pattern{Kind: hir.PatEnumVariant, Type: opt, Data: hir.EnumVariantPatData{
					VariantIdx: 0, Elems: []*hir.Pattern{bindPat(1, i32)},
				}},
				Init: varRef(0, opt),
			}}},
			Tail: varRef(1, i32),
		},
	}
	_, err := mirbuild.LowerFunction(h.res, h.in, 1, fn, func(b *mirbuild.MirBuilder, fn *hir.Func) error {
		v := NewVisitor(b, h.res, h.in, h.syms, nil)
		return v.LowerFunction(fn)
	}, nil)
	if err == nil {
		t.Fatalf("destructuring Some out of a live Option should be a user error")
	}
	d, ok := err.(*diag.Diagnostic)
	if !ok || d.Code != diag.ErrNonExhaustiveDestructure {
		t.Fatalf("want ErrNonExhaustiveDestructure, got %v", err)
	}
}

// The same destructure becomes irrefutable once the resolver certifies
// every other variant's payload as uninhabited.
func TestLowerDestructureAcceptsImpossibleVariants(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32
	never := h.in.Builtins().Never
	h.res.MarkImpossible(never)
	either := h.in.Enum("Either", []types.EnumVariant{
		{Name: "V", Fields: []types.TypeID{i32}},
		{Name: "Nope", Fields: []types.TypeID{never}},
	})

	fn := &hir.Func{
		Name: "unwrap_either",
		Locals: []hir.LocalDecl{
			{Name: "e", Type: either},
			{Name: "x", Type: i32},
		},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, either), Type: either}},
		Result: i32,
		Body: &hir.Block{
			Stmts: []hir.Stmt{{Kind: hir.StmtLet, Data: hir.LetStmtData{
				Pattern: &hir.Pattern{Kind: hir.PatEnumVariant, Type: either, Data: hir.EnumVariantPatData{
					VariantIdx: 0, Elems: []*hir.Pattern{bindPat(1, i32)},
				}},
				Init: varRef(0, either),
			}}},
			Tail: varRef(1, i32),
		},
	}
	f := h.lower(t, fn)

	downcasts := 0
	for _, st := range allStatements(f) {
		if st.Kind != mir.StmtAssign || st.AssignSrc.Kind != mir.RValueUse {
			continue
		}
		for _, w := range st.AssignSrc.Use.Wrappers {
			if w.Kind == mir.WrapDowncast {
				downcasts++
			}
		}
	}
	if downcasts != 1 {
		t.Fatalf("want exactly one Downcast projection, got %d:\n%s", downcasts, dump(f, h.in))
	}
}

// A literal pattern can never be irrefutable in a `let`.
func TestLowerLiteralPatternInLetIsUserError(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32

	fn := &hir.Func{
		Name: "lit_let",
		Body: &hir.Block{Stmts: []hir.Stmt{{Kind: hir.StmtLet, Data: hir.LetStmtData{
			Pattern: &hir.Pattern{Kind: hir.PatLiteral, Type: i32, Data: hir.LiteralPatData{
				Lit: hir.LiteralData{Kind: hir.LitInt, Int: 1},
			}},
			Init: intLit(1, i32),
		}}}},
	}
	_, err := mirbuild.LowerFunction(h.res, h.in, 1, fn, func(b *mirbuild.MirBuilder, fn *hir.Func) error {
		v := NewVisitor(b, h.res, h.in, h.syms, nil)
		return v.LowerFunction(fn)
	}, nil)
	if err == nil {
		t.Fatalf("literal pattern in let should be a user error")
	}
	d, ok := err.(*diag.Diagnostic)
	if !ok || d.Code != diag.ErrRefutablePatternInLet {
		t.Fatalf("want ErrRefutablePatternInLet, got %v", err)
	}
}

// Break with a value lands in the loop's result slot before the loop's
// exit drops run.
func TestLowerLoopBreakWithValue(t *testing.T) {
	h := newHarness()
	i32 := h.in.Builtins().Int32

	fn := &hir.Func{
		Name: "once",
		Result: i32,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprLoop, Type: i32,
			Data: hir.LoopData{Body: blockExpr(&hir.Block{
				Stmts: []hir.Stmt{{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: &hir.Expr{
					Kind: hir.ExprBreak, Data: hir.BreakData{Value: intLit(7, i32)},
				}}}},
			}, types.NoTypeID)},
		}},
	}
	f := h.lower(t, fn)

	var resultLocal mir.Local = -1
	for _, st := range allStatements(f) {
		if st.Kind == mir.StmtAssign && st.AssignSrc.Kind == mir.RValueConstant && st.AssignSrc.Constant.IntValue == 7 {
			resultLocal = st.AssignDest.Local
		}
	}
	if resultLocal < 0 {
		t.Fatalf("break value never assigned:\n%s", dump(f, h.in))
	}
	var returned bool
	for _, st := range allStatements(f) {
		if st.Kind == mir.StmtAssign && st.AssignDest.Root == mir.RootReturn &&
			st.AssignSrc.Kind == mir.RValueUse && st.AssignSrc.Use.Local == resultLocal {
			returned = true
		}
	}
	if !returned {
		t.Fatalf("loop result slot never flows into the return place:\n%s", dump(f, h.in))
	}
}

// A legal cast lowers to a Cast RValue; an illegal one is a user error
// with a span, not a panic.
func TestLowerCastLegality(t *testing.T) {
	h := newHarness()
	i32, i64 := h.in.Builtins().Int32, h.in.Builtins().Int64
	boolTy := h.in.Builtins().Bool

	widen := &hir.Func{
		Name:   "widen",
		Locals: []hir.LocalDecl{{Name: "x", Type: i32}},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, i32), Type: i32}},
		Result: i64,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprCast, Type: i64, Data: hir.CastData{Operand: varRef(0, i32)},
		}},
	}
	f := h.lower(t, widen)
	var sawCast bool
	for _, st := range allStatements(f) {
		if st.Kind == mir.StmtAssign && st.AssignSrc.Kind == mir.RValueCast && st.AssignSrc.CastTarget == i64 {
			sawCast = true
		}
	}
	if !sawCast {
		t.Fatalf("numeric widening should emit a Cast RValue:\n%s", dump(f, h.in))
	}

	bad := &hir.Func{
		Name:   "bad",
		Locals: []hir.LocalDecl{{Name: "b", Type: boolTy}},
		Params: []hir.ParamDecl{{Pattern: bindPat(0, boolTy), Type: boolTy}},
		Result: i32,
		Body: &hir.Block{Tail: &hir.Expr{
			Kind: hir.ExprCast, Type: i32, Data: hir.CastData{Operand: varRef(0, boolTy)},
		}},
	}
	_, err := mirbuild.LowerFunction(h.res, h.in, 2, bad, func(b *mirbuild.MirBuilder, fn *hir.Func) error {
		v := NewVisitor(b, h.res, h.in, h.syms, nil)
		return v.LowerFunction(fn)
	}, nil)
	if err == nil {
		t.Fatalf("bool-source cast should be a user error")
	}
}

// A call whose return type is the never type is followed by Diverge;
// the next block stays allocated to satisfy the Call contract.
func TestLowerNeverCallDiverges(t *testing.T) {
	h := newHarness()
	never := h.in.Builtins().Never

	fn := &hir.Func{
		Name:   "abort_wrapper",
		Result: h.in.Builtins().Int32,
		Body:   &hir.Block{Tail: h.callExpr("abort", never)},
	}
	f := h.lower(t, fn)

	if countTermKind(f, mir.TermReturn) != 0 {
		t.Errorf("never-call should make the return path unreachable:\n%s", dump(f, h.in))
	}
	// Both the panic edge and the post-call block diverge.
	if countTermKind(f, mir.TermDiverge) != 2 {
		t.Errorf("want Diverge on panic edge and after the call, got %d", countTermKind(f, mir.TermDiverge))
	}
	var call *mir.Terminator
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == mir.TermCall {
			call = &f.Blocks[i].Term
		}
	}
	if call == nil {
		t.Fatalf("no call terminator emitted")
	}
	if !f.ValidBlock(call.CallNext) || !f.ValidBlock(call.CallPanic) {
		t.Errorf("call must keep both successors allocated: %+v", call)
	}
}

// break outside any loop is a user error, not a panic.
func TestLowerBreakOutsideLoopIsUserError(t *testing.T) {
	h := newHarness()
	fn := &hir.Func{
		Name: "stray",
		Body: &hir.Block{Stmts: []hir.Stmt{{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: &hir.Expr{
			Kind: hir.ExprBreak, Data: hir.BreakData{},
		}}}}},
	}
	_, err := mirbuild.LowerFunction(h.res, h.in, 1, fn, func(b *mirbuild.MirBuilder, fn *hir.Func) error {
		v := NewVisitor(b, h.res, h.in, h.syms, nil)
		return v.LowerFunction(fn)
	}, nil)
	if err == nil {
		t.Fatalf("break outside loop should fail lowering")
	}
}
