package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// lowerGeneratorFunction lowers a generator body. It
// runs the same statement/tail lowering as an ordinary function body,
// but every `return` (via visitGeneratorReturn) and `yield` wraps its
// value in the synthesized poll enum instead of assigning the bare
// value, and yield additionally threads the resume-state machinery the
// internal/generator post-pass finishes wiring.
func (v *Visitor) lowerGeneratorFunction(fn *hir.Func) error {
	v.gen = &genState{
		stateEnumSym:  v.Symbols.New(symbols.Symbol{Kind: symbols.KindEnum, Name: fn.Name + "::State"}),
		pollEnumSym:   v.Symbols.New(symbols.Symbol{Kind: symbols.KindEnum, Name: fn.Name + "::Poll"}),
		dataStructSym: v.Symbols.New(symbols.Symbol{Kind: symbols.KindStruct, Name: fn.Name + "::Locals"}),
	}

	v.B.Scopes.PushVariable()
	if err := v.lowerBlockBody(fn.Body); err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		v.B.Scopes.Pop(fn.Span, false)
	} else {
		// Falling off the end of a generator body completes it with the
		// tail value, exactly as if `return <tail>;` had been written
		// there.
		rv := v.B.TakeResultAsRValue()
		wrapped := v.wrapGeneratorResult(fn.Span, rv)
		v.B.EmitAssign(fn.Span, mir.Return(), wrapped, false)
		v.B.Scopes.Pop(fn.Span, true)
		v.B.Terminate(fn.Span, mir.ReturnTerm())
	}

	captureLocals := make([]mir.Local, len(fn.CaptureLocals))
	for i, id := range fn.CaptureLocals {
		captureLocals[i] = v.localFor(id)
	}

	v.Generator = &GeneratorInfo{
		StateEnumSym:  v.gen.stateEnumSym,
		PollEnumSym:   v.gen.pollEnumSym,
		DataStructSym: v.gen.dataStructSym,
		YieldSites:    v.gen.yieldSites,
		CaptureLocals: captureLocals,
	}
	return nil
}

// wrapGeneratorResult materialises rv into a Param (if needed) and
// wraps it as variant 1 (Complete) of the poll enum.
func (v *Visitor) wrapGeneratorResult(span source.Span, rv mir.RValue) mir.RValue {
	var p mir.Param
	if rv.IsPure() {
		p = rv.AsParam()
	} else {
		tmp := v.B.NewTemporary(types.NoTypeID, span)
		v.B.EmitAssign(span, tmp, rv, false)
		p = mir.UseParam(tmp)
	}
	return mir.RValue{Kind: mir.RValueEnumVariant, AggPath: v.gen.pollEnumSym, VariantIdx: 1, Fields: []mir.Param{p}}
}

// visitGeneratorReturn lowers a return inside a generator body: the
// value is wrapped in the poll enum's Complete variant and the
// surrounding scopes are early-terminated exactly as an ordinary Return
// would be.
func (v *Visitor) visitGeneratorReturn(e *hir.Expr, d hir.ReturnData) error {
	var rv mir.RValue
	if d.Value != nil {
		if err := v.VisitExpr(d.Value); err != nil {
			return err
		}
		if v.B.BlockTerminated() {
			return nil
		}
		rv = v.wrapGeneratorResult(e.Span, v.B.TakeResultAsRValue())
	} else {
		rv = v.wrapGeneratorResult(e.Span, mir.RValue{Kind: mir.RValueTuple})
	}
	v.B.EmitAssign(e.Span, mir.Return(), rv, false)
	v.B.Scopes.EarlyTerminate(e.Span, v.B.Scopes.FunctionScopeID(), true)
	v.B.Terminate(e.Span, mir.ReturnTerm())
	v.B.ClearResult()
	return nil
}

// visitYield lowers a yield: the value is wrapped in the poll
// enum's Yielded variant, the next resume state's discriminant is
// written, and the current set of live locals is snapshotted before a
// fresh resume block is opened for control to fall into on the next
// poll.
func (v *Visitor) visitYield(e *hir.Expr) error {
	if v.gen == nil {
		return diag.UserError(diag.ErrYieldOutsideGenerator, e.Span, "yield outside of a generator body")
	}
	d := e.Data.(hir.YieldData)

	var valRV mir.RValue
	if d.Value != nil {
		p, err := v.visitAsParam(d.Value)
		if err != nil {
			return err
		}
		valRV = mir.RValue{Kind: mir.RValueEnumVariant, AggPath: v.gen.pollEnumSym, VariantIdx: 0, Fields: []mir.Param{p}}
	} else {
		tmp := v.B.NewTemporary(types.NoTypeID, e.Span)
		v.B.EmitAssign(e.Span, tmp, mir.RValue{Kind: mir.RValueTuple}, false)
		valRV = mir.RValue{Kind: mir.RValueEnumVariant, AggPath: v.gen.pollEnumSym, VariantIdx: 0, Fields: []mir.Param{mir.UseParam(tmp)}}
	}
	v.B.EmitAssign(e.Span, mir.Return(), valRV, false)

	state := v.gen.nextState
	v.gen.nextState++

	nextDiscriminant := mir.RValue{Kind: mir.RValueEnumVariant, AggPath: v.gen.stateEnumSym, VariantIdx: state + 1}
	v.B.EmitAssign(e.Span, v.gen.stateLValue(), nextDiscriminant, false)

	live := v.B.Scopes.LiveLocals()
	resumeBB := v.B.NewBlock(false)
	v.gen.yieldSites = append(v.gen.yieldSites, YieldSite{State: state, ResumeBB: resumeBB, LiveLocals: live})

	v.B.Terminate(e.Span, mir.ReturnTerm())
	v.B.SetCurrentBlock(resumeBB)
	// A yield expression's own value (what a resumed coroutine would be
	// handed back) is unit: resume arguments are a Non-goal here.
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple}, types.NoTypeID)
	return nil
}

// visitGeneratorLit lowers a generator literal like a closure literal,
// but prepends a zero-initialized state-discriminant slot produced via
// the `init` intrinsic.
func (v *Visitor) visitGeneratorLit(e *hir.Expr) error {
	d := e.Data.(hir.GeneratorLitData)

	stateTmp := v.B.NewTemporary(types.NoTypeID, e.Span)
	nextBB := v.B.NewBlock(false)
	panicBB := v.B.NewBlock(false)
	v.B.Terminate(e.Span, mir.CallTerm(nextBB, panicBB, stateTmp,
		mir.CallTarget{Kind: mir.CallTargetIntrinsic, IntrinsicName: "init"}, nil))
	v.B.SetCurrentBlock(panicBB)
	v.B.Terminate(e.Span, mir.DivergeTerm())
	v.B.SetCurrentBlock(nextBB)

	fields := make([]mir.Param, 0, len(d.Captures)+1)
	fields = append(fields, mir.UseParam(stateTmp))
	for _, c := range d.Captures {
		p, err := v.visitAsParam(c.Value)
		if err != nil {
			return err
		}
		fields = append(fields, p)
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueStruct, AggPath: d.Sym, Fields: fields}, e.Type)
	return nil
}
