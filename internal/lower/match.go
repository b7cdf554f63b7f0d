package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/source"
	"hirmir/internal/types"
)

// visitMatch lowers a match expression: each arm is tried in declaration order, a
// chain of pattern/guard tests branches into the arm's body block on
// success or falls through to the next arm on failure. The scrutinee's
// drop-scope is a Split scope exactly like If's two-arm join, widened to
// one arm per match arm.
func (v *Visitor) visitMatch(e *hir.Expr) error {
	d := e.Data.(hir.MatchData)
	scrutLV, err := v.visitAsLValue(d.Scrutinee)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}

	joinBB := v.B.NewBlock(false)
	hasResult := e.Type != types.NoTypeID
	var result mir.LValue
	if hasResult {
		result = v.B.NewTemporary(e.Type, e.Span)
	}

	n := len(d.Arms)
	split := v.B.Scopes.PushSplit(n)
	armReachable := make([]bool, n)

	for i, arm := range d.Arms {
		split.BeginArm(i)
		armMiss := v.B.NewBlock(false)
		reached, err := v.lowerMatchArm(arm, scrutLV, armMiss, e.Span, result, hasResult, joinBB)
		if err != nil {
			return err
		}
		split.EndArm(i, reached)
		armReachable[i] = reached
		v.B.SetCurrentBlock(armMiss)
	}
	// Exhaustiveness is assumed checked upstream (a Non-goal here): control
	// reaching past the last arm's miss edge cannot happen for a
	// well-typed match, so it diverges.
	v.B.Terminate(e.Span, mir.DivergeTerm())

	v.propagateSplitMerge(split)
	v.B.Scopes.Pop(e.Span, false)

	v.B.SetCurrentBlock(joinBB)
	anyReachable := false
	for _, r := range armReachable {
		if r {
			anyReachable = true
		}
	}
	if !anyReachable {
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

// lowerMatchArm builds one arm's pattern/guard test chain and, on
// success, lowers its body; it reports whether the body was reachable
// (i.e. did not itself unconditionally terminate the block).
func (v *Visitor) lowerMatchArm(arm hir.MatchArm, scrut mir.LValue, armMiss mir.BlockID, span source.Span, result mir.LValue, hasResult bool, joinBB mir.BlockID) (bool, error) {
	// The arm's temporary scope opens before the pattern tests run so
	// the arm's bindings land in it: the arm's own exit drops exactly
	// the locals initialised on that arm, not the enclosing block's.
	v.B.Scopes.PushTemporary()
	bodyBB := v.B.NewBlock(false)
	if err := v.lowerArmAlternatives(arm, scrut, armMiss, span, bodyBB); err != nil {
		return false, err
	}

	v.B.SetCurrentBlock(bodyBB)
	if err := v.VisitExpr(arm.Body); err != nil {
		return false, err
	}
	if v.B.BlockTerminated() {
		v.B.Scopes.Pop(arm.Body.Span, false)
		return false, nil
	}
	if hasResult && v.B.HasResult() {
		rv := v.B.TakeResultAsRValue()
		v.B.EmitAssign(arm.Body.Span, result, rv, false)
	} else {
		v.B.ClearResult()
	}
	v.B.Scopes.Pop(arm.Body.Span, true)
	v.B.Terminate(arm.Body.Span, mir.GotoTerm(joinBB))
	return true, nil
}

// lowerArmAlternatives chains the arm's or-pattern alternatives
// (multiple only for `P1 | P2 => ...`): a guard failure after any
// alternative matches skips the whole arm rather than retrying the next
// alternative, since the guard applies once to the arm as a whole.
func (v *Visitor) lowerArmAlternatives(arm hir.MatchArm, scrut mir.LValue, armMiss mir.BlockID, span source.Span, bodyBB mir.BlockID) error {
	var step func(i int) error
	step = func(i int) error {
		isLast := i == len(arm.Patterns)-1
		altMiss := armMiss
		if !isLast {
			altMiss = v.B.NewBlock(false)
		}
		err := v.lowerPatternTest(arm.Patterns[i], scrut, altMiss, span, func() error {
			return v.lowerArmGuard(arm, armMiss, bodyBB, span)
		})
		if err != nil {
			return err
		}
		if !isLast {
			v.B.SetCurrentBlock(altMiss)
			return step(i + 1)
		}
		return nil
	}
	return step(0)
}

func (v *Visitor) lowerArmGuard(arm hir.MatchArm, missBB, bodyBB mir.BlockID, span source.Span) error {
	if arm.Guard == nil {
		v.B.Terminate(span, mir.GotoTerm(bodyBB))
		return nil
	}
	condLV, err := v.visitAsLValue(arm.Guard)
	if err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		return nil
	}
	v.B.Terminate(arm.Guard.Span, mir.IfTerm(condLV, bodyBB, missBB))
	return nil
}

// lowerPatternTest emits the structural test for pat against src,
// invoking onMatch once every sub-test (and any variable binding along
// the way) has succeeded, or branching to missBB the moment any part of
// pat fails to match src's value.
func (v *Visitor) lowerPatternTest(pat *hir.Pattern, src mir.LValue, missBB mir.BlockID, span source.Span, onMatch func() error) error {
	switch pat.Kind {
	case hir.PatWildcard:
		return onMatch()

	case hir.PatBinding:
		d := pat.Data.(hir.BindingPatData)
		v.bindPatternVar(d, pat.Type, src, pat.Span, false)
		if d.Sub != nil {
			return v.lowerPatternTest(d.Sub, src, missBB, span, onMatch)
		}
		return onMatch()

	case hir.PatLiteral:
		d := pat.Data.(hir.LiteralPatData)
		c := literalConstant(d.Lit, pat.Type)
		eqTmp := v.B.NewTemporary(v.Types.Builtins().Bool, pat.Span)
		v.B.EmitAssign(pat.Span, eqTmp, mir.RValue{Kind: mir.RValueBinOp, BinOp: mir.BinOpEq, BinOpLeft: mir.UseParam(src), BinOpRight: mir.ConstParam(c)}, false)
		okBB := v.B.NewBlock(false)
		v.B.Terminate(pat.Span, mir.IfTerm(eqTmp, okBB, missBB))
		v.B.SetCurrentBlock(okBB)
		return onMatch()

	case hir.PatRange:
		d := pat.Data.(hir.RangePatData)
		lo := literalConstant(d.Lo, pat.Type)
		hi := literalConstant(d.Hi, pat.Type)
		geTmp := v.B.NewTemporary(v.Types.Builtins().Bool, pat.Span)
		v.B.EmitAssign(pat.Span, geTmp, mir.RValue{Kind: mir.RValueBinOp, BinOp: mir.BinOpGe, BinOpLeft: mir.UseParam(src), BinOpRight: mir.ConstParam(lo)}, false)
		loOkBB := v.B.NewBlock(false)
		v.B.Terminate(pat.Span, mir.IfTerm(geTmp, loOkBB, missBB))
		v.B.SetCurrentBlock(loOkBB)

		hiOp := mir.BinOpLt
		if d.Inclusive {
			hiOp = mir.BinOpLe
		}
		hiTmp := v.B.NewTemporary(v.Types.Builtins().Bool, pat.Span)
		v.B.EmitAssign(pat.Span, hiTmp, mir.RValue{Kind: mir.RValueBinOp, BinOp: hiOp, BinOpLeft: mir.UseParam(src), BinOpRight: mir.ConstParam(hi)}, false)
		hiOkBB := v.B.NewBlock(false)
		v.B.Terminate(pat.Span, mir.IfTerm(hiTmp, hiOkBB, missBB))
		v.B.SetCurrentBlock(hiOkBB)
		return onMatch()

	case hir.PatTuple:
		d := pat.Data.(hir.TuplePatData)
		return v.lowerPatternSeq(d.Elems, func(i int) mir.LValue { return src.Field(i) }, missBB, span, onMatch)

	case hir.PatStruct:
		d := pat.Data.(hir.StructPatData)
		subs := make([]*hir.Pattern, 0, len(d.Fields))
		idxs := make([]int, 0, len(d.Fields))
		for _, f := range d.Fields {
			if f.Sub != nil {
				subs = append(subs, f.Sub)
				idxs = append(idxs, f.Idx)
			}
		}
		return v.lowerPatternSeq(subs, func(i int) mir.LValue { return src.Field(idxs[i]) }, missBB, span, onMatch)

	case hir.PatTupleStruct:
		d := pat.Data.(hir.TupleStructPatData)
		return v.lowerPatternSeq(d.Elems, func(i int) mir.LValue { return src.Field(i) }, missBB, span, onMatch)

	case hir.PatEnumVariant:
		d := pat.Data.(hir.EnumVariantPatData)
		matchBB := v.B.NewBlock(false)
		if t, ok := v.Types.Lookup(pat.Type); ok && t.Kind == types.KindEnum && d.VariantIdx < len(t.Variants) {
			// The enum's variant count is known: a Switch with one target
			// per variant, all-but-one falling to the miss edge.
			targets := make([]mir.BlockID, len(t.Variants))
			for i := range targets {
				targets[i] = missBB
			}
			targets[d.VariantIdx] = matchBB
			v.B.Terminate(pat.Span, mir.SwitchTerm(src, targets))
		} else {
			v.B.Terminate(pat.Span, mir.SwitchValueTerm(src, []mir.SwitchValueCase{
				{Value: mir.Constant{Kind: mir.ConstInt, Type: v.Types.Builtins().Uint, IntValue: int64(d.VariantIdx)}, Target: matchBB},
			}, missBB))
		}
		v.B.SetCurrentBlock(matchBB)
		payload := src.Downcast(d.VariantIdx)
		return v.lowerPatternSeq(d.Elems, func(i int) mir.LValue { return payload.Field(i) }, missBB, span, onMatch)

	case hir.PatBoxDeref:
		d := pat.Data.(hir.BoxDerefPatData)
		return v.lowerPatternTest(d.Inner, src.Deref(), missBB, span, onMatch)

	case hir.PatReference:
		d := pat.Data.(hir.ReferencePatData)
		return v.lowerPatternTest(d.Inner, src.Deref(), missBB, span, onMatch)

	case hir.PatOr:
		return v.lowerOrPattern(pat.Data.(hir.OrPatData).Alts, src, missBB, span, onMatch)

	case hir.PatSlice:
		return v.lowerSliceTest(pat.Data.(hir.SlicePatData), src, missBB, span, onMatch)

	default:
		diag.Bug(pat.Span, "unhandled pattern kind %d in match", pat.Kind)
		return onMatch()
	}
}

// lowerPatternSeq tests elems in order against proj(i), short-circuiting
// to missBB on the first failure.
func (v *Visitor) lowerPatternSeq(elems []*hir.Pattern, proj func(int) mir.LValue, missBB mir.BlockID, span source.Span, onMatch func() error) error {
	var step func(i int) error
	step = func(i int) error {
		if i >= len(elems) {
			return onMatch()
		}
		return v.lowerPatternTest(elems[i], proj(i), missBB, span, func() error {
			return step(i + 1)
		})
	}
	return step(0)
}

// lowerOrPattern tries each alternative in turn, falling through its own
// fresh miss block to the next alternative, with the final alternative
// falling through to the arm-level missBB.
func (v *Visitor) lowerOrPattern(alts []*hir.Pattern, src mir.LValue, missBB mir.BlockID, span source.Span, onMatch func() error) error {
	if len(alts) == 0 {
		diag.Bug(span, "or-pattern with no alternatives")
		return nil
	}
	var step func(i int) error
	step = func(i int) error {
		isLast := i == len(alts)-1
		altMiss := missBB
		if !isLast {
			altMiss = v.B.NewBlock(false)
		}
		if err := v.lowerPatternTest(alts[i], src, altMiss, span, onMatch); err != nil {
			return err
		}
		if !isLast {
			v.B.SetCurrentBlock(altMiss)
			return step(i + 1)
		}
		return nil
	}
	return step(0)
}

// lowerSliceTest implements slice patterns inside match: the
// runtime length (DstMeta) is compared against the required count
// (exact match with no `..rest`, at-least with one), then each fixed
// position is tested via a constant Index projection.
func (v *Visitor) lowerSliceTest(d hir.SlicePatData, src mir.LValue, missBB mir.BlockID, span source.Span, onMatch func() error) error {
	usize := v.Types.Builtins().Usize
	lenTmp := v.B.NewTemporary(usize, span)
	v.B.EmitAssign(span, lenTmp, mir.RValue{Kind: mir.RValueDstMeta, DstMetaOf: src}, false)

	need := len(d.Before) + len(d.After)
	cmpOp := mir.BinOpEq
	if d.Rest != nil {
		cmpOp = mir.BinOpGe
	}
	okTmp := v.B.NewTemporary(v.Types.Builtins().Bool, span)
	v.B.EmitAssign(span, okTmp, mir.RValue{
		Kind: mir.RValueBinOp, BinOp: cmpOp,
		BinOpLeft:  mir.UseParam(lenTmp),
		BinOpRight: mir.ConstParam(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(need)}),
	}, false)
	lenOkBB := v.B.NewBlock(false)
	v.B.Terminate(span, mir.IfTerm(okTmp, lenOkBB, missBB))
	v.B.SetCurrentBlock(lenOkBB)

	var step func(i int) error
	step = func(i int) error {
		if i < len(d.Before) {
			idx := v.constIndexLocal(i, span)
			return v.lowerPatternTest(d.Before[i], src.Index(idx), missBB, span, func() error { return step(i + 1) })
		}
		j := i - len(d.Before)
		if j < len(d.After) {
			offTmp := v.B.NewTemporary(usize, span)
			v.B.EmitAssign(span, offTmp, mir.RValue{
				Kind: mir.RValueBinOp, BinOp: mir.BinOpSub,
				BinOpLeft:  mir.UseParam(lenTmp),
				BinOpRight: mir.ConstParam(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(len(d.After) - j)}),
			}, false)
			return v.lowerPatternTest(d.After[j], src.Index(offTmp.Local), missBB, span, func() error { return step(i + 1) })
		}
		if d.Rest != nil {
			if bp, ok := simpleMoveBinding(d.Rest); ok {
				restLenTmp := v.B.NewTemporary(usize, span)
				v.B.EmitAssign(span, restLenTmp, mir.RValue{
					Kind: mir.RValueBinOp, BinOp: mir.BinOpSub,
					BinOpLeft:  mir.UseParam(lenTmp),
					BinOpRight: mir.ConstParam(mir.Constant{Kind: mir.ConstInt, Type: usize, IntValue: int64(need)}),
				}, false)
				startIdx := v.constIndexLocal(len(d.Before), span)
				ptrTmp := v.B.NewTemporary(0, span)
				v.B.EmitAssign(span, ptrTmp, mir.RValue{Kind: mir.RValueDstPtr, DstPtrOf: src.Index(startIdx)}, false)
				local := v.localFor(bp.Local)
				v.B.EmitAssign(span, mir.LocalLV(local), mir.RValue{
					Kind: mir.RValueMakeDst, MakeDstPtr: mir.UseParam(ptrTmp), MakeDstMeta: mir.UseParam(restLenTmp),
				}, false)
				v.B.Scopes.DeclareLocal(v.B.Scopes.Top(), local, d.Rest.Type)
			}
		}
		return onMatch()
	}
	return step(0)
}

// bindPatternVar binds a by-value PatBinding leaf to src; ref/ref-mut
// bindings alias directly (already wired through VarRefData.Alias by
// the HIR builder) and need no MIR place here. markMoved additionally
// flags src's whole-local root as moved-from, appropriate for `let`
// destructure but not for a match arm binding (which may share the
// scrutinee's storage with sibling arms that never ran).
func (v *Visitor) bindPatternVar(d hir.BindingPatData, ty types.TypeID, src mir.LValue, span source.Span, markMoved bool) {
	if d.Mode != hir.BindByValue {
		return
	}
	local := v.localFor(d.Local)
	v.B.EmitAssign(span, mir.LocalLV(local), mir.UseRValue(src), false)
	v.B.Scopes.DeclareLocal(v.B.Scopes.Top(), local, ty)
	if markMoved && src.Root == mir.RootLocal && len(src.Wrappers) == 0 {
		v.B.Scopes.MarkMoved(src.Local)
	}
}

// literalConstant converts a HIR literal pattern payload into a MIR
// Constant, mirroring visitLiteral's literal-kind mapping.
func literalConstant(lit hir.LiteralData, ty types.TypeID) mir.Constant {
	c := mir.Constant{Type: ty}
	switch lit.Kind {
	case hir.LitInt, hir.LitChar:
		c.Kind = mir.ConstInt
		c.IntValue = lit.Int
	case hir.LitFloat:
		c.Kind = mir.ConstFloat
		c.FloatValue = lit.Float
	case hir.LitBool:
		c.Kind = mir.ConstBool
		c.BoolValue = lit.Bool
	case hir.LitString:
		c.Kind = mir.ConstString
		c.StrValue = lit.Str
	case hir.LitByteString:
		c.Kind = mir.ConstByteString
		c.ByteValue = lit.Bytes
	}
	return c
}
