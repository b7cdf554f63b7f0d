package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/resolver"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

func (v *Visitor) visitFieldAccess(e *hir.Expr) error {
	d := e.Data.(hir.FieldAccessData)
	lv, err := v.visitAsLValue(d.Object)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	if d.IsUnion {
		// A union field read selects the active payload by variant index,
		// the same Downcast wrapper an enum match arm uses.
		v.B.SetResultLValue(lv.Downcast(d.FieldIdx).Field(0), e.Type)
		return nil
	}
	v.B.SetResultLValue(lv.Field(d.FieldIdx), e.Type)
	return nil
}

// materializeLocal visits e and returns the Local its value ends up in,
// reusing a bare local use directly and materialising anything else
// into a fresh temporary — the shape an Index wrapper's index-holding
// Local requires, so that evaluation order stays explicit.
func (v *Visitor) materializeLocal(e *hir.Expr) (mir.Local, error) {
	if err := v.VisitExpr(e); err != nil {
		return 0, err
	}
	if v.B.BlockTerminated() {
		return 0, nil
	}
	rv := v.B.TakeResultAsRValue()
	if rv.Kind == mir.RValueUse && rv.Use.Root == mir.RootLocal && len(rv.Use.Wrappers) == 0 {
		return rv.Use.Local, nil
	}
	tmp := v.B.NewTemporary(e.Type, e.Span)
	v.B.EmitAssign(e.Span, tmp, rv, false)
	return tmp.Local, nil
}

// visitIndex lowers an index expression: the index is evaluated into its own
// local, a length is obtained (the array's static length, or a DstMeta
// read for a slice), and an explicit compare-and-panic_bounds_check
// sequence guards the projection (the resolved Open Question on array
// bounds checks: these are not deferred to a later pass).
func (v *Visitor) visitIndex(e *hir.Expr) error {
	d := e.Data.(hir.IndexData)
	objLV, err := v.visitAsLValue(d.Object)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	idxLocal, err := v.materializeLocal(d.Index)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}

	usize := v.Types.Builtins().Usize
	lenTmp := v.B.NewTemporary(usize, e.Span)
	objTy, _ := v.Types.Lookup(d.Object.Type)
	if objTy.Kind == types.KindArray {
		v.B.EmitAssign(e.Span, lenTmp, mir.ConstantRValue(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(objTy.Len)}), false)
	} else {
		v.B.EmitAssign(e.Span, lenTmp, mir.RValue{Kind: mir.RValueDstMeta, DstMetaOf: objLV}, false)
	}

	inBoundsTmp := v.B.NewTemporary(v.Types.Builtins().Bool, e.Span)
	v.B.EmitAssign(e.Span, inBoundsTmp, mir.RValue{
		Kind: mir.RValueBinOp, BinOp: mir.BinOpLt,
		BinOpLeft: mir.UseParam(mir.LocalLV(idxLocal)), BinOpRight: mir.UseParam(lenTmp),
	}, false)

	okBB := v.B.NewBlock(false)
	panicBB := v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.IfTerm(inBoundsTmp, okBB, panicBB))

	v.B.SetCurrentBlock(panicBB)
	checkSym, ok := v.Resolver.CrateLookup(resolver.LangPanicBoundsCheck)
	if !ok {
		diag.Bug(e.Span, "panic_bounds_check lang item is not registered with the resolver")
	}
	unreachBB := v.B.NewBlock(false)
	discardDest := v.B.NewTemporary(types.NoTypeID, e.Span)
	v.B.Terminate(e.Span, mir.CallTerm(unreachBB, unreachBB, discardDest,
		mir.CallTarget{Kind: mir.CallTargetPath, Path: checkSym},
		[]mir.Param{mir.UseParam(mir.LocalLV(idxLocal)), mir.UseParam(lenTmp)}))
	v.B.SetCurrentBlock(unreachBB)
	v.B.Terminate(e.Span, mir.DivergeTerm())

	v.B.SetCurrentBlock(okBB)
	v.B.SetResultLValue(objLV.Index(idxLocal), e.Type)
	return nil
}

// visitBorrow lowers `&expr` / `&mut expr`. Scope-raising for the
// `let x = &EXPR;` shape is handled by the caller (visitLetStmt) before
// this visitor runs; any other borrow raises its operand's temporaries
// to the enclosing statement scope so the referent outlives the
// borrowing expression.
func (v *Visitor) visitBorrow(e *hir.Expr) error {
	d := e.Data.(hir.BorrowData)

	prevIn, prevMut := v.inBorrow, v.borrowMut
	v.inBorrow, v.borrowMut = true, d.Mutable
	raised := false
	if v.stmtTempScope != nil && !v.B.Scopes.HasRaiseTarget() {
		v.B.Scopes.PushRaiseTarget(v.stmtTempScope.ID)
		raised = true
	}
	lv, err := v.visitAsLValue(d.Operand)
	if raised {
		v.B.Scopes.PopRaiseTarget()
	}
	v.inBorrow, v.borrowMut = prevIn, prevMut

	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	kind := mir.BorrowShared
	if d.Mutable {
		kind = mir.BorrowUnique
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueBorrow, BorrowKind: kind, BorrowOf: lv}, e.Type)
	return nil
}

func (v *Visitor) visitDeref(e *hir.Expr) error {
	d := e.Data.(hir.DerefData)
	if d.Overloaded {
		return v.visitOverloadedDeref(e, d)
	}
	lv, err := v.visitAsLValue(d.Operand)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	v.B.SetResultLValue(lv.Deref(), e.Type)
	return nil
}

// visitOverloadedDeref implements a user-defined Deref dereference: call
// the deref lang item on the receiver, then project through the
// reference it returns. Inside a `&mut` operand the unique-access
// flavour (deref_mut) is dispatched instead.
func (v *Visitor) visitOverloadedDeref(e *hir.Expr, d hir.DerefData) error {
	recv, err := v.visitAsParam(d.Operand)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	mutable := v.inBorrow && v.borrowMut
	lang := resolver.LangDeref
	if mutable {
		lang = resolver.LangDerefMut
	}
	sym, ok := v.Resolver.CrateLookup(lang)
	if !ok {
		diag.Bug(e.Span, "%s lang item is not registered with the resolver", lang)
	}
	refTy := v.Types.Reference(e.Type, mutable)
	refTmp := v.B.NewTemporary(refTy, e.Span)
	nextBB, panicBB := v.B.NewBlock(false), v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB, panicBB, refTmp,
		mir.CallTarget{Kind: mir.CallTargetPath, Path: sym}, []mir.Param{recv}))
	v.B.SetCurrentBlock(panicBB)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB)
	v.B.SetResultLValue(refTmp.Deref(), e.Type)
	return nil
}

func (v *Visitor) visitCast(e *hir.Expr) error {
	d := e.Data.(hir.CastData)
	lv, err := v.visitAsLValue(d.Operand)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	if !castLegal(v.Types, d.Operand.Type, e.Type) {
		return diag.UserError(diag.ErrInvalidCast, e.Span,
			"cannot cast between these types")
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueCast, CastOf: lv, CastTarget: e.Type}, e.Type)
	return nil
}

// castLegal is the cast legality table: numeric↔numeric
// (str/bool on neither side; char as a target only from u8),
// pointer↔pointer, reference→pointer with matching inner types,
// fnptr→pointer to unit/u8/i8, integer↔enum, pointer→integer.
func castLegal(interner *types.Interner, from, to types.TypeID) bool {
	if interner == nil {
		return false
	}
	f, ok1 := interner.Lookup(from)
	t, ok2 := interner.Lookup(to)
	if !ok1 || !ok2 {
		return false
	}
	numeric := func(k types.Kind) bool {
		return k == types.KindInt || k == types.KindUint || k == types.KindFloat
	}
	isInt := func(k types.Kind) bool {
		return k == types.KindInt || k == types.KindUint
	}
	switch {
	case numeric(f.Kind) && numeric(t.Kind):
		return true
	case f.Kind == types.KindChar && numeric(t.Kind):
		return true
	case t.Kind == types.KindChar:
		// char only from u8.
		return f.Kind == types.KindUint && f.Width == types.Width8
	case f.Kind == types.KindPointer && t.Kind == types.KindPointer:
		return true
	case f.Kind == types.KindReference && t.Kind == types.KindPointer:
		return f.Elem == t.Elem
	case f.Kind == types.KindFnPtr && t.Kind == types.KindPointer:
		elem, ok := interner.Lookup(t.Elem)
		if !ok {
			return false
		}
		return elem.Kind == types.KindUnit ||
			(elem.Kind == types.KindUint && elem.Width == types.Width8) ||
			(elem.Kind == types.KindInt && elem.Width == types.Width8)
	case isInt(f.Kind) && t.Kind == types.KindEnum:
		return true
	case f.Kind == types.KindEnum && isInt(t.Kind):
		return true
	case f.Kind == types.KindPointer && isInt(t.Kind):
		return true
	default:
		return false
	}
}

// visitUnsize lowers an unsizing coercion. For `&T → &U`: an array widens to
// a slice with its static length as the fat-pointer metadata, a generic
// source forwards the existing metadata via DstMeta, and a trait-object
// target (or anything the resolver certifies with an Unsize impl) is a
// plain Cast whose metadata a later pass supplies. Non-reference
// (CoerceUnsized) unsizes are Casts outright.
func (v *Visitor) visitUnsize(e *hir.Expr) error {
	d := e.Data.(hir.UnsizeData)
	lv, err := v.visitAsLValue(d.Operand)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	cast := func() {
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueCast, CastOf: lv, CastTarget: e.Type}, e.Type)
	}

	dstTy, _ := v.Types.Lookup(e.Type)
	srcTy, _ := v.Types.Lookup(d.Operand.Type)
	if dstTy.Kind != types.KindReference || srcTy.Kind != types.KindReference {
		// CoerceUnsized on a non-reference smart pointer: defer to later
		// passes.
		cast()
		return nil
	}

	dstInner, _ := v.Types.Lookup(dstTy.Elem)
	srcInner, _ := v.Types.Lookup(srcTy.Elem)
	switch {
	case dstInner.Kind == types.KindSlice && srcInner.Kind == types.KindArray:
		meta := mir.ConstParam(mir.Constant{Kind: mir.ConstInt, Type: v.Types.Builtins().Usize, IntValue: int64(srcInner.Len)})
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueMakeDst, MakeDstPtr: mir.UseParam(lv), MakeDstMeta: meta}, e.Type)
	case dstInner.Kind == types.KindSlice && srcInner.Kind == types.KindGenericParam:
		metaTmp := v.B.NewTemporary(v.Types.Builtins().Usize, e.Span)
		v.B.EmitAssign(e.Span, metaTmp, mir.RValue{Kind: mir.RValueDstMeta, DstMetaOf: lv}, false)
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueMakeDst, MakeDstPtr: mir.UseParam(lv), MakeDstMeta: mir.UseParam(metaTmp)}, e.Type)
	case dstInner.Kind == types.KindTraitObject:
		cast()
	default:
		// Ask the resolver whether an Unsize impl exists; either way the
		// lowering is a Cast, the check just surfaces internal bugs early.
		if unsizeSym, ok := v.Resolver.CrateLookup(resolver.LangUnsize); ok {
			v.Resolver.FindImpl(e.Span, unsizeSym, []types.TypeID{dstTy.Elem}, srcTy.Elem, nil)
		}
		cast()
	}
	return nil
}

// visitAssign lowers a plain assignment: the target place is evaluated
// first, then the value, then the statement's dropDest flag is set so
// the old value at the target is dropped before the new one lands.
func (v *Visitor) visitAssign(e *hir.Expr) error {
	d := e.Data.(hir.AssignData)
	targetLV, err := v.visitAsLValue(d.Target)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
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
	v.B.EmitAssign(e.Span, targetLV, rv, true)
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple}, types.NoTypeID)
	return nil
}

// visitCompoundAssign lowers `+=` and friends: the binary op
// reads the target in place, so the assignment itself must not drop it
// as a destination first.
func (v *Visitor) visitCompoundAssign(e *hir.Expr) error {
	d := e.Data.(hir.CompoundAssignData)
	targetLV, err := v.visitAsLValue(d.Target)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	rhs, err := v.visitAsParam(d.Value)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	op := binOpOf(d.Op)
	if !binOpLegal(v.Types, op, d.Target.Type, d.Value.Type) {
		diag.Bug(e.Span, "illegal compound-assignment operator %d", d.Op)
	}
	v.B.EmitAssign(e.Span, targetLV, mir.RValue{
		Kind: mir.RValueBinOp, BinOp: op,
		BinOpLeft: mir.UseParam(targetLV), BinOpRight: rhs,
	}, false)
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple}, types.NoTypeID)
	return nil
}

// visitCall lowers a direct call: every argument but the last is
// materialised into its own temporary so evaluation order survives
// being flattened into a flat Param list.
func (v *Visitor) visitCall(e *hir.Expr) error {
	d := e.Data.(hir.CallData)
	args := make([]mir.Param, len(d.Args))
	for i, a := range d.Args {
		if err := v.VisitExpr(a); err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			return nil
		}
		args[i] = v.B.MaterializeParamForCallArg(a.Span, i == len(d.Args)-1)
	}

	var target mir.CallTarget
	switch {
	case d.Intrinsic != "":
		target = mir.CallTarget{Kind: mir.CallTargetIntrinsic, IntrinsicName: d.Intrinsic}
	case v.isDropInPlace(d.Sym):
		// The drop-in-place lang item is rewritten to an intrinsic call.
		target = mir.CallTarget{Kind: mir.CallTargetIntrinsic, IntrinsicName: "drop_in_place"}
	default:
		target = mir.CallTarget{Kind: mir.CallTargetPath, Path: d.Sym}
	}

	dest := v.B.NewTemporary(e.Type, e.Span)
	nextBB, panicBB := v.B.NewBlock(false), v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB, panicBB, dest, target, args))
	v.B.SetCurrentBlock(panicBB)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB)
	v.finishCall(e, dest)
	return nil
}

// isDropInPlace reports whether sym resolves the drop_in_place lang item.
func (v *Visitor) isDropInPlace(sym symbols.SymbolID) bool {
	dip, ok := v.Resolver.CrateLookup(resolver.LangDropInPlace)
	return ok && sym == dip
}

// finishCall leaves the call's destination as the pending result — or,
// when the callee's return type is the never type, seals the next block
// with Diverge (the block stays allocated to satisfy the Call contract,
// Call path).
func (v *Visitor) finishCall(e *hir.Expr, dest mir.LValue) {
	if t, ok := v.Types.Lookup(e.Type); ok && t.Kind == types.KindNever {
		v.B.Terminate(e.Span, mir.DivergeTerm())
		v.B.ClearResult()
		return
	}
	v.B.SetResultLValue(dest, e.Type)
}

// visitCallValue lowers a call through a value: the callee is itself a
// value (a function pointer), so it is materialised exactly like any
// non-last call argument before the intrinsic call-through dispatch.
func (v *Visitor) visitCallValue(e *hir.Expr) error {
	d := e.Data.(hir.CallValueData)
	if t, ok := v.Types.Lookup(d.Callee.Type); !ok || t.Kind != types.KindFnPtr {
		diag.Bug(d.Callee.Span, "value call through a non-function-pointer type %d", d.Callee.Type)
	}
	if err := v.VisitExpr(d.Callee); err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	calleeParam := v.B.MaterializeParamForCallArg(d.Callee.Span, false)

	args := make([]mir.Param, 0, len(d.Args)+1)
	args = append(args, calleeParam)
	for i, a := range d.Args {
		if err := v.VisitExpr(a); err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			return nil
		}
		args = append(args, v.B.MaterializeParamForCallArg(a.Span, i == len(d.Args)-1))
	}

	dest := v.B.NewTemporary(e.Type, e.Span)
	nextBB, panicBB := v.B.NewBlock(false), v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB, panicBB, dest,
		mir.CallTarget{Kind: mir.CallTargetIntrinsic, IntrinsicName: "call_value"}, args))
	v.B.SetCurrentBlock(panicBB)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB)
	v.finishCall(e, dest)
	return nil
}
