package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/resolver"
)

// visitStructLit lowers a named-field struct literal: evaluate each
// named field into a Param at its declaration index; fields omitted
// from Fields are sourced by projection from Base when one exists.
func (v *Visitor) visitStructLit(e *hir.Expr) error {
	d := e.Data.(hir.StructLitData)
	t, ok := v.Types.Lookup(e.Type)
	if !ok {
		diag.Bug(e.Span, "struct literal %q has an unresolved type", t.Name)
	}
	n := len(t.Fields)
	fields := make([]mir.Param, n)
	set := make([]bool, n)
	for _, fi := range d.Fields {
		p, err := v.visitAsParam(fi.Value)
		if err != nil {
			return err
		}
		fields[fi.Idx] = p
		set[fi.Idx] = true
	}
	if d.Base != nil {
		baseLV, err := v.visitAsLValue(d.Base)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if !set[i] {
				fields[i] = mir.UseParam(baseLV.Field(i))
				set[i] = true
			}
		}
	}
	for i := 0; i < n; i++ {
		if !set[i] {
			return diag.UserError(diag.ErrMissingFieldNoBase, e.Span,
				"missing field %d in struct literal with no base", i)
		}
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueStruct, AggPath: d.Sym, Fields: fields}, e.Type)
	return nil
}

func (v *Visitor) visitTupleStructLit(e *hir.Expr) error {
	d := e.Data.(hir.TupleStructLitData)
	fields, err := v.visitAsParamList(d.Values)
	if err != nil {
		return err
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueStruct, AggPath: d.Sym, Fields: fields}, e.Type)
	return nil
}

// visitEnumVariantLit: the variant index has already been found by
// name in the enum definition by the name resolver, upstream of this
// core.
func (v *Visitor) visitEnumVariantLit(e *hir.Expr) error {
	d := e.Data.(hir.EnumVariantLitData)
	fields, err := v.visitAsParamList(d.Values)
	if err != nil {
		return err
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueEnumVariant, AggPath: d.Sym, VariantIdx: d.VariantIdx, Fields: fields}, e.Type)
	return nil
}

func (v *Visitor) visitUnionLit(e *hir.Expr) error {
	d := e.Data.(hir.UnionLitData)
	p, err := v.visitAsParam(d.Value)
	if err != nil {
		return err
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueUnionVariant, AggPath: d.Sym, VariantIdx: d.VariantIdx, UnionField: p}, e.Type)
	return nil
}

func (v *Visitor) visitArrayLit(e *hir.Expr) error {
	d := e.Data.(hir.ArrayLitData)
	elems, err := v.visitAsParamList(d.Elems)
	if err != nil {
		return err
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueArray, Elems: elems}, e.Type)
	return nil
}

func (v *Visitor) visitTupleLit(e *hir.Expr) error {
	d := e.Data.(hir.TupleLitData)
	elems, err := v.visitAsParamList(d.Elems)
	if err != nil {
		return err
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple, Elems: elems}, e.Type)
	return nil
}

// visitClosureLit implements Closure literal: captures that are
// by-reference already carry &T-typed HIR nodes, so no special-casing
// is needed here beyond evaluating each capture in order.
func (v *Visitor) visitClosureLit(e *hir.Expr) error {
	d := e.Data.(hir.ClosureLitData)
	fields := make([]mir.Param, len(d.Captures))
	for i, c := range d.Captures {
		p, err := v.visitAsParam(c.Value)
		if err != nil {
			return err
		}
		fields[i] = p
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueStruct, AggPath: d.Sym, Fields: fields}, e.Type)
	return nil
}

// visitAsParamList visits each expr in order (required for the
// call-argument evaluation-order family of rules: aggregate field
// evaluation order matters the same way) and returns its Param.
func (v *Visitor) visitAsParamList(exprs []*hir.Expr) ([]mir.Param, error) {
	out := make([]mir.Param, len(exprs))
	for i, e := range exprs {
		p, err := v.visitAsParam(e)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// visitBox dispatches between the two emplace protocols.
func (v *Visitor) visitBox(e *hir.Expr) error {
	d := e.Data.(hir.BoxData)
	style := d.Style
	if v.PlacerEmplace {
		style = hir.EmplacePlacer
	}
	switch style {
	case hir.EmplaceExchangeMalloc:
		return v.lowerBoxExchangeMalloc(e, d)
	case hir.EmplacePlacer:
		return v.lowerBoxPlacer(e, d)
	default:
		diag.Bug(e.Span, "unhandled box emplace style %d", d.Style)
		return nil
	}
}

// lowerBoxExchangeMalloc implements the newer exchange-malloc protocol:
// size/align from the target layout, a call to the exchange_malloc
// lang item for a raw *mut u8, a cast to *mut T, an in-place write
// (without dropping the destination), and a final cast standing in for
// the transmute into owned_box<T>.
func (v *Visitor) lowerBoxExchangeMalloc(e *hir.Expr, d hir.BoxData) error {
	sa := v.Resolver.GetSizeAndAlign(e.Span, d.Value.Type)
	usize := v.Types.Builtins().Usize

	sizeTmp := v.B.NewTemporary(usize, e.Span)
	v.B.EmitAssign(e.Span, sizeTmp, mir.ConstantRValue(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(sa.Size)}), false)
	alignTmp := v.B.NewTemporary(usize, e.Span)
	v.B.EmitAssign(e.Span, alignTmp, mir.ConstantRValue(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(sa.Align)}), false)

	mallocSym, ok := v.Resolver.CrateLookup(resolver.LangExchangeMalloc)
	if !ok {
		diag.Bug(e.Span, "exchange_malloc lang item is not registered with the resolver")
	}
	rawPtrTy := v.Types.Pointer(v.Types.Builtins().Uint8, true)
	rawTmp := v.B.NewTemporary(rawPtrTy, e.Span)
	nextBB, panicBB := v.B.NewBlock(false), v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB, panicBB, rawTmp,
		mir.CallTarget{Kind: mir.CallTargetPath, Path: mallocSym},
		[]mir.Param{mir.UseParam(sizeTmp), mir.UseParam(alignTmp)}))
	v.B.SetCurrentBlock(panicBB)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB)

	typedPtrTy := v.Types.Pointer(d.Value.Type, true)
	typedTmp := v.B.NewTemporary(typedPtrTy, e.Span)
	v.B.EmitAssign(e.Span, typedTmp, mir.RValue{Kind: mir.RValueCast, CastOf: rawTmp, CastTarget: typedPtrTy}, false)

	if err := v.VisitExpr(d.Value); err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	rv := v.B.TakeResultAsRValue()
	v.B.EmitAssign(e.Span, typedTmp.Deref(), rv, false)

	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueCast, CastOf: typedTmp, CastTarget: e.Type}, e.Type)
	return nil
}

// lowerBoxPlacer implements the older placer-based protocol: acquire a
// place, obtain its raw pointer, evaluate the value and write through
// the pointer (without dropping the destination), then finalize. A
// panic during the write or the finalize call uses the ordinary
// Call-terminator panic edge; no extra drop is synthesized for the
// half-built place, which has no valid drop glue yet.
func (v *Visitor) lowerBoxPlacer(e *hir.Expr, d hir.BoxData) error {
	boxPlaceSym, _ := v.Resolver.CrateLookup(resolver.LangBoxPlaceTrait)
	placerSym, _ := v.Resolver.CrateLookup(resolver.LangPlacerTrait)
	boxedSym, _ := v.Resolver.CrateLookup(resolver.LangBoxedTrait)

	placeTmp := v.B.NewTemporary(0, e.Span)
	nextBB1, panicBB1 := v.B.NewBlock(false), v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB1, panicBB1, placeTmp,
		mir.CallTarget{Kind: mir.CallTargetPath, Path: boxPlaceSym}, nil))
	v.B.SetCurrentBlock(panicBB1)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB1)

	ptrTy := v.Types.Pointer(d.Value.Type, true)
	ptrTmp := v.B.NewTemporary(ptrTy, e.Span)
	nextBB2, panicBB2 := v.B.NewBlock(false), v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB2, panicBB2, ptrTmp,
		mir.CallTarget{Kind: mir.CallTargetPath, Path: placerSym}, []mir.Param{mir.UseParam(placeTmp)}))
	v.B.SetCurrentBlock(panicBB2)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB2)

	if err := v.VisitExpr(d.Value); err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	rv := v.B.TakeResultAsRValue()
	v.B.EmitAssign(e.Span, ptrTmp.Deref(), rv, false)

	resultTmp := v.B.NewTemporary(e.Type, e.Span)
	nextBB3, panicBB3 := v.B.NewBlock(false), v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB3, panicBB3, resultTmp,
		mir.CallTarget{Kind: mir.CallTargetPath, Path: boxedSym}, []mir.Param{mir.UseParam(placeTmp)}))
	v.B.SetCurrentBlock(panicBB3)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB3)

	v.B.SetResultLValue(resultTmp, e.Type)
	return nil
}
