package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/mirbuild"
	"hirmir/internal/source"
	"hirmir/internal/types"
)

// visitStmt dispatches one Block statement.
func (v *Visitor) visitStmt(stmt hir.Stmt) error {
	switch stmt.Kind {
	case hir.StmtLet:
		return v.visitLetStmt(stmt)
	case hir.StmtExpr:
		d := stmt.Data.(hir.ExprStmtData)
		return v.VisitExpr(d.Expr)
	default:
		diag.Bug(stmt.Span, "unhandled statement kind %d", stmt.Kind)
		return nil
	}
}

// topLevelBorrowInit reports whether e is a bare `&expr` / `&mut expr` —
// the shape the Let lowering inspects *before* visiting the initializer
// so the scope-raise can be pushed ahead of the borrow itself.
func topLevelBorrowInit(e *hir.Expr) bool {
	return e != nil && e.Kind == hir.ExprBorrow
}

func (v *Visitor) visitLetStmt(stmt hir.Stmt) error {
	d := stmt.Data.(hir.LetStmtData)
	if d.Init == nil {
		return nil
	}

	raised := topLevelBorrowInit(d.Init)
	if raised {
		v.B.Scopes.PushRaiseTarget(v.B.Scopes.NearestVariableScopeID())
	}

	if bp, ok := simpleMoveBinding(d.Pattern); ok {
		err := v.VisitExpr(d.Init)
		if raised {
			v.B.Scopes.PopRaiseTarget()
		}
		if err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			return nil
		}
		local := v.localFor(bp.Local)
		rv := v.B.TakeResultAsRValue()
		v.B.EmitAssign(stmt.Span, mir.LocalLV(local), rv, false)
		v.B.Scopes.DeclareVar(local, d.Pattern.Type)
		return nil
	}

	err := v.VisitExpr(d.Init)
	if raised {
		v.B.Scopes.PopRaiseTarget()
	}
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	srcLV := v.B.TakeResultAsLValue(stmt.Span)
	if err := v.destructurePattern(d.Pattern, srcLV, true, stmt.Span); err != nil {
		return err
	}
	// Every part of the source has been moved into a binding or dropped
	// field-wise by the destructure; the backing temporary itself must
	// not be deep-dropped again at statement end.
	if srcLV.Root == mir.RootLocal && len(srcLV.Wrappers) == 0 {
		v.B.Scopes.MarkMoved(srcLV.Local)
	}
	return nil
}

// simpleMoveBinding reports whether pat is a bare `var` binding with
// move (by-value) semantics and no `@` sub-pattern, the shape Let
// assigns directly rather than destructuring.
func simpleMoveBinding(pat *hir.Pattern) (hir.BindingPatData, bool) {
	if pat.Kind != hir.PatBinding {
		return hir.BindingPatData{}, false
	}
	bp := pat.Data.(hir.BindingPatData)
	if bp.Mode != hir.BindByValue || bp.Sub != nil {
		return hir.BindingPatData{}, false
	}
	return bp, true
}

// lowerBlockBody lowers blk's statements and optional tail expression
// into the current block, WITHOUT pushing a variable scope of its own
// (the caller owns that) — each statement gets its own temporary scope.
func (v *Visitor) lowerBlockBody(blk *hir.Block) error {
	for i := range blk.Stmts {
		stmt := blk.Stmts[i]
		v.B.Scopes.PushTemporary()
		prevStmtScope := v.stmtTempScope
		v.stmtTempScope = v.B.Scopes.Top()
		err := v.visitStmt(stmt)
		v.stmtTempScope = prevStmtScope
		if err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			v.B.Scopes.Pop(stmt.Span, false)
			return nil
		}
		v.B.ClearResult()
		v.B.Scopes.Pop(stmt.Span, true)
	}

	if blk.Tail == nil {
		// an empty block yields Tuple{} as its result.
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple}, types.NoTypeID)
		return nil
	}

	v.B.Scopes.PushTemporary()
	prevStmtScope := v.stmtTempScope
	v.stmtTempScope = v.B.Scopes.Top()
	err := v.VisitExpr(blk.Tail)
	v.stmtTempScope = prevStmtScope
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		v.B.Scopes.Pop(blk.Tail.Span, false)
		return nil
	}
	// The tail's temporary scope is raised into the enclosing scope by
	// marking its result moved before popping, so the value survives
	// the pop instead of being dropped out from under its user.
	if v.B.HasResult() {
		lv := v.B.TakeResultAsLValue(blk.Tail.Span)
		if lv.Root == mir.RootLocal {
			v.B.Scopes.MarkMoved(lv.Local)
		}
		v.B.Scopes.Pop(blk.Tail.Span, true)
		v.B.SetResultLValue(lv, blk.Tail.Type)
	} else {
		v.B.Scopes.Pop(blk.Tail.Span, true)
	}
	return nil
}

// visitBlockInto lowers blk as a full nested scope (variable scope +
// statement temp scopes), leaving the block's value as the pending
// result. resultType is always recorded as the result's type (the
// caller passes the block expression's static type).
func (v *Visitor) visitBlockInto(blk *hir.Block, span source.Span, resultType types.TypeID) error {
	v.B.Scopes.PushVariable()
	if err := v.lowerBlockBody(blk); err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		v.B.Scopes.Pop(span, false)
		return nil
	}
	if v.B.HasResult() {
		lv := v.B.TakeResultAsLValue(span)
		if lv.Root == mir.RootLocal {
			v.B.Scopes.MarkMoved(lv.Local)
		}
		v.B.Scopes.Pop(span, true)
		ty := resultType
		v.B.SetResultLValue(lv, ty)
	} else {
		v.B.Scopes.Pop(span, true)
	}
	return nil
}

// visitBlockExprDiscard lowers e (always an ExprBlock for a loop
// body) and discards its value — used for loop bodies, whose
// tail value (if any) is never consumed.
func (v *Visitor) visitBlockExprDiscard(e *hir.Expr) error {
	blk := e.Data.(hir.BlockExprData).Block
	v.B.Scopes.PushVariable()
	if err := v.lowerBlockBody(blk); err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		v.B.Scopes.Pop(e.Span, false)
		return nil
	}
	v.B.ClearResult()
	v.B.Scopes.Pop(e.Span, true)
	return nil
}

func (v *Visitor) visitBlockExpr(e *hir.Expr) error {
	d := e.Data.(hir.BlockExprData)
	return v.visitBlockInto(d.Block, e.Span, e.Type)
}

// visitIf lowers an if/else: a split scope wrapping a two-arm join, with
// short-circuit-free evaluation of the condition (the condition itself
// is never && / || at this node — those desugar via ExprLogicalAnd/Or).
func (v *Visitor) visitIf(e *hir.Expr) error {
	d := e.Data.(hir.IfData)
	condLV, err := v.visitAsLValue(d.Cond)
	if err != nil {
		return err
	}

	thenBB := v.B.NewBlock(false)
	elseBB := v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.IfTerm(condLV, thenBB, elseBB))

	// The result slot is allocated before the split opens so its drop
	// belongs to the enclosing scope, not to either arm.
	var result mir.LValue
	hasResult := e.Type != types.NoTypeID
	if hasResult {
		result = v.B.NewTemporary(e.Type, e.Span)
	}

	split := v.B.Scopes.PushSplit(2)

	armReachable := make([]bool, 2)
	arms := [2]*hir.Expr{d.Then, d.Else}
	targets := [2]mir.BlockID{thenBB, elseBB}
	joinBB := v.B.NewBlock(false)

	for i := 0; i < 2; i++ {
		v.B.SetCurrentBlock(targets[i])
		split.BeginArm(i)
		v.B.Scopes.PushTemporary()
		err := v.VisitExpr(arms[i])
		if err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			split.EndArm(i, false)
			v.B.Scopes.Pop(arms[i].Span, false)
			armReachable[i] = false
			continue
		}
		armReachable[i] = true
		if hasResult && v.B.HasResult() {
			rv := v.B.TakeResultAsRValue()
			v.B.EmitAssign(arms[i].Span, result, rv, false)
		} else {
			v.B.ClearResult()
		}
		split.EndArm(i, true)
		v.B.Scopes.Pop(arms[i].Span, true)
		v.B.Terminate(arms[i].Span, mir.GotoTerm(joinBB))
	}

	v.propagateSplitMerge(split)
	v.B.Scopes.Pop(e.Span, false) // the split scope itself owns no locals

	v.B.SetCurrentBlock(joinBB)
	if !armReachable[0] && !armReachable[1] {
		// Both arms diverged; the join block is unreachable dead code.
		// Leave it unterminated-but-unused is illegal, so it
		// diverges too.
		v.B.Terminate(e.Span, mir.DivergeTerm())
		v.B.ClearResult()
		return nil
	}
	if hasResult {
		v.B.SetResultLValue(result, e.Type)
	} else {
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple}, types.NoTypeID)
	}
	return nil
}

// propagateSplitMerge folds a completed split scope's per-arm
// initialization state back into the enclosing scope's bookkeeping:
// a local is initialized after the join iff
// every reachable arm initialized it.
func (v *Visitor) propagateSplitMerge(split *mirbuild.Scope) {
	merged := split.Merge()
	for local, init := range merged {
		if init {
			v.B.Scopes.DeclareLocal(v.B.Scopes.Top(), local, v.localTypeOf(local))
		} else {
			v.B.Scopes.MarkMoved(local)
		}
	}
}

// visitLoop lowers a loop expression.
func (v *Visitor) visitLoop(e *hir.Expr) error {
	d := e.Data.(hir.LoopData)

	// The break-result slot lives in the enclosing scope, not the loop's
	// own (its value must survive the loop scope's exit drops).
	var resultSlot mir.LValue
	hasResult := e.Type != types.NoTypeID && !d.Diverging
	if hasResult {
		resultSlot = v.B.NewTemporary(e.Type, e.Span)
	}

	headBB := v.B.NewBlock(true)
	v.B.SetCurrentBlock(headBB)
	breakBB := v.B.NewBlock(false)

	loopScope := v.B.Scopes.PushLoop(d.Label, d.Label != "", headBB, breakBB)
	if hasResult {
		loopScope.ResultSlot = resultSlot
		loopScope.HasResult = true
		loopScope.ResultType = e.Type
	}

	v.loops = append(v.loops, loopDescriptor{
		scope: loopScope, label: d.Label, requireLabel: d.Label != "",
		continueBB: headBB, breakBB: breakBB,
	})
	err := v.visitBlockExprDiscard(d.Body)
	v.loops = v.loops[:len(v.loops)-1]
	if err != nil {
		return err
	}

	if !v.B.BlockTerminated() {
		v.B.Terminate(e.Span, mir.GotoTerm(headBB))
	}
	v.B.Scopes.Pop(e.Span, true)

	v.B.SetCurrentBlock(breakBB)
	if d.Diverging {
		// loop{} with no break — the exit block is unreachable and
		// must still be terminated; it diverges.
		v.B.Terminate(e.Span, mir.DivergeTerm())
		v.B.ClearResult()
		return nil
	}
	if loopScope.HasResult {
		v.B.SetResultLValue(loopScope.ResultSlot, loopScope.ResultType)
	} else {
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple}, types.NoTypeID)
	}
	return nil
}

func (v *Visitor) visitBreak(e *hir.Expr) error {
	d := e.Data.(hir.BreakData)
	loopScope := v.B.Scopes.FindLoop(d.Label)
	if loopScope == nil {
		return diag.UserError(diag.ErrBreakOutsideLoop, e.Span, "break outside of any loop")
	}
	if d.Value != nil {
		if err := v.VisitExpr(d.Value); err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			return nil
		}
		rv := v.B.TakeResultAsRValue()
		if rv.Kind == mir.RValueUse && rv.Use.Root == mir.RootLocal && len(rv.Use.Wrappers) == 0 {
			v.B.Scopes.MarkMoved(rv.Use.Local)
		}
		if loopScope.HasResult {
			v.B.EmitAssign(e.Span, loopScope.ResultSlot, rv, false)
		}
	}
	v.B.Scopes.EarlyTerminate(e.Span, loopScope.ID, true)
	v.B.Terminate(e.Span, mir.GotoTerm(loopScope.BreakBB))
	v.B.ClearResult()
	return nil
}

func (v *Visitor) visitContinue(e *hir.Expr) error {
	d := e.Data.(hir.ContinueData)
	loopScope := v.B.Scopes.FindLoop(d.Label)
	if loopScope == nil {
		return diag.UserError(diag.ErrContinueOutsideLoop, e.Span, "continue outside of any loop")
	}
	v.B.Scopes.EarlyTerminate(e.Span, loopScope.ID, true)
	v.B.Terminate(e.Span, mir.GotoTerm(loopScope.ContinueBB))
	v.B.ClearResult()
	return nil
}

func (v *Visitor) visitReturn(e *hir.Expr) error {
	d := e.Data.(hir.ReturnData)
	if v.gen != nil {
		return v.visitGeneratorReturn(e, d)
	}
	if d.Value != nil {
		if err := v.VisitExpr(d.Value); err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			return nil
		}
		rv := v.B.TakeResultAsRValue()
		if rv.Kind == mir.RValueUse && rv.Use.Root == mir.RootLocal && len(rv.Use.Wrappers) == 0 {
			v.B.Scopes.MarkMoved(rv.Use.Local)
		}
		v.B.EmitAssign(e.Span, mir.Return(), rv, false)
	}
	v.B.Scopes.EarlyTerminate(e.Span, v.B.Scopes.FunctionScopeID(), true)
	v.B.Terminate(e.Span, mir.ReturnTerm())
	v.B.ClearResult()
	return nil
}

// localTypeOf resolves a local's declared type via the builder, used
// when the split-merge propagation needs to re-declare a local in the
// enclosing scope's bookkeeping.
func (v *Visitor) localTypeOf(l mir.Local) types.TypeID {
	return v.B.Function().LocalType(l)
}
