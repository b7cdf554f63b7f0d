package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/source"
	"hirmir/internal/types"
)

// destructurePattern emits the binding assignments for a `let`
// binding: src names the place already holding the matched value.
// topLevelMove marks whether this call owns consuming src (always true
// for the outermost call from visitLetStmt; projections into src carry
// it along since a move of the whole still moves each part). The
// pattern must be irrefutable in this context: literal and range
// shapes are rejected outright, and an enum-variant shape is accepted
// only when every other variant of the enum is uninhabited (checked
// against the resolver). Both rejections are user errors, not internal
// bugs — the type checker does not rule them out before lowering.
func (v *Visitor) destructurePattern(pat *hir.Pattern, src mir.LValue, topLevelMove bool, span source.Span) error {
	switch pat.Kind {
	case hir.PatWildcard:
		if topLevelMove {
			v.B.EmitDrop(span, src, mir.DropDeep)
		}
		return nil

	case hir.PatBinding:
		d := pat.Data.(hir.BindingPatData)
		if d.Mode != hir.BindByValue {
			// ref / ref mut bindings alias directly to src; the HIR
			// builder has already wired reads of this binding through
			// VarRefData.Alias, so no place is materialised here.
			if d.Sub != nil {
				return v.destructurePattern(d.Sub, src, false, span)
			}
			return nil
		}
		local := v.localFor(d.Local)
		v.B.EmitAssign(pat.Span, mir.LocalLV(local), mir.UseRValue(src), false)
		v.B.Scopes.DeclareVar(local, pat.Type)
		if src.Root == mir.RootLocal && len(src.Wrappers) == 0 {
			v.B.Scopes.MarkMoved(src.Local)
		}
		if d.Sub != nil {
			return v.destructurePattern(d.Sub, mir.LocalLV(local), false, span)
		}
		return nil

	case hir.PatTuple:
		d := pat.Data.(hir.TuplePatData)
		for i, elem := range d.Elems {
			if err := v.destructurePattern(elem, src.Field(i), topLevelMove, span); err != nil {
				return err
			}
		}
		return nil

	case hir.PatStruct:
		d := pat.Data.(hir.StructPatData)
		for _, f := range d.Fields {
			if f.Sub == nil {
				continue
			}
			if err := v.destructurePattern(f.Sub, src.Field(f.Idx), topLevelMove, span); err != nil {
				return err
			}
		}
		return nil

	case hir.PatTupleStruct:
		d := pat.Data.(hir.TupleStructPatData)
		for i, elem := range d.Elems {
			if err := v.destructurePattern(elem, src.Field(i), topLevelMove, span); err != nil {
				return err
			}
		}
		return nil

	case hir.PatLiteral, hir.PatRange:
		return diag.UserError(diag.ErrRefutablePatternInLet, pat.Span,
			"refutable pattern in `let` binding")

	case hir.PatEnumVariant:
		// Irrefutable only when every OTHER variant of the enum is
		// uninhabited; match arms destructure variants through the
		// decision tree in match.go instead.
		d := pat.Data.(hir.EnumVariantPatData)
		if t, ok := v.Types.Lookup(pat.Type); ok && t.Kind == types.KindEnum {
			for i, variant := range t.Variants {
				if i == d.VariantIdx || v.variantImpossible(variant, pat.Span) {
					continue
				}
				return diag.UserError(diag.ErrNonExhaustiveDestructure, pat.Span,
					"cannot irrefutably destructure enum %s: variant %s is inhabited", t.Name, variant.Name)
			}
		}
		payload := src.Downcast(d.VariantIdx)
		for i, elem := range d.Elems {
			if err := v.destructurePattern(elem, payload.Field(i), topLevelMove, span); err != nil {
				return err
			}
		}
		return nil

	case hir.PatSlice:
		return v.destructureSlicePattern(pat.Data.(hir.SlicePatData), src, span)

	case hir.PatBoxDeref:
		d := pat.Data.(hir.BoxDerefPatData)
		return v.destructurePattern(d.Inner, src.Deref(), topLevelMove, span)

	case hir.PatReference:
		d := pat.Data.(hir.ReferencePatData)
		return v.destructurePattern(d.Inner, src.Deref(), false, span)

	case hir.PatOr:
		// Only irrefutable when every alternative binds identically;
		// any single alternative destructures the same way as the whole.
		d := pat.Data.(hir.OrPatData)
		if len(d.Alts) == 0 {
			diag.Bug(pat.Span, "or-pattern with no alternatives")
			return nil
		}
		return v.destructurePattern(d.Alts[0], src, topLevelMove, span)

	default:
		diag.Bug(pat.Span, "refutable pattern kind %d reached let destructure", pat.Kind)
		return nil
	}
}

// variantImpossible reports whether an enum variant can never be
// constructed: a payload variant is impossible when any of its field
// types is uninhabited according to the resolver. A unit variant has no
// payload to be impossible through and is always inhabited.
func (v *Visitor) variantImpossible(variant types.EnumVariant, span source.Span) bool {
	if len(variant.Fields) == 0 {
		return false
	}
	for _, f := range variant.Fields {
		if v.Resolver.TypeIsImpossible(span, f) {
			return true
		}
	}
	return false
}

// constIndexLocal materialises n as a usize constant in a fresh local,
// the shape an Index wrapper's index-holding local requires even for a
// compile-time-known position.
func (v *Visitor) constIndexLocal(n int, span source.Span) mir.Local {
	usize := v.Types.Builtins().Usize
	tmp := v.B.NewTemporary(usize, span)
	v.B.EmitAssign(span, tmp, mir.ConstantRValue(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(n)}), false)
	return tmp.Local
}

// destructureSlicePattern handles slice patterns: fixed leading
// and trailing positions project through constant Index wrappers; an
// optional `..rest` binding captures the middle as a fresh dynamically
// sized slice built from the runtime length (read via DstMeta) and an
// offset pointer.
func (v *Visitor) destructureSlicePattern(d hir.SlicePatData, src mir.LValue, span source.Span) error {
	for i, elem := range d.Before {
		idx := v.constIndexLocal(i, span)
		if err := v.destructurePattern(elem, src.Index(idx), false, span); err != nil {
			return err
		}
	}

	if d.Rest == nil {
		for i, elem := range d.After {
			idx := v.constIndexLocal(len(d.Before)+i, span)
			if err := v.destructurePattern(elem, src.Index(idx), false, span); err != nil {
				return err
			}
		}
		return nil
	}

	usize := v.Types.Builtins().Usize
	lenTmp := v.B.NewTemporary(usize, span)
	v.B.EmitAssign(span, lenTmp, mir.RValue{Kind: mir.RValueDstMeta, DstMetaOf: src}, false)

	if bp, ok := simpleMoveBinding(d.Rest); ok {
		restLenTmp := v.B.NewTemporary(usize, span)
		v.B.EmitAssign(span, restLenTmp, mir.RValue{
			Kind: mir.RValueBinOp, BinOp: mir.BinOpSub,
			BinOpLeft:  mir.UseParam(lenTmp),
			BinOpRight: mir.ConstParam(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(len(d.Before) + len(d.After))}),
		}, false)
		startIdx := v.constIndexLocal(len(d.Before), span)
		ptrTmp := v.B.NewTemporary(0, span)
		v.B.EmitAssign(span, ptrTmp, mir.RValue{Kind: mir.RValueDstPtr, DstPtrOf: src.Index(startIdx)}, false)

		local := v.localFor(bp.Local)
		v.B.EmitAssign(span, mir.LocalLV(local), mir.RValue{
			Kind: mir.RValueMakeDst, MakeDstPtr: mir.UseParam(ptrTmp), MakeDstMeta: mir.UseParam(restLenTmp),
		}, false)
		v.B.Scopes.DeclareVar(local, d.Rest.Type)
	}

	for i, elem := range d.After {
		offTmp := v.B.NewTemporary(usize, span)
		v.B.EmitAssign(span, offTmp, mir.RValue{
			Kind: mir.RValueBinOp, BinOp: mir.BinOpSub,
			BinOpLeft:  mir.UseParam(lenTmp),
			BinOpRight: mir.ConstParam(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(len(d.After) - i)}),
		}, false)
		if err := v.destructurePattern(elem, src.Index(offTmp.Local), false, span); err != nil {
			return err
		}
	}
	return nil
}
