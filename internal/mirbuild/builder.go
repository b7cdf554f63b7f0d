// Package mirbuild implements the MirBuilder and, in scope.go, the
// drop-scope manager — the imperative CFG construction API the
// expression lowering visitor drives.
package mirbuild

import (
	"fmt"

	"fortio.org/safecast"

	"hirmir/internal/diag"
	"hirmir/internal/mir"
	"hirmir/internal/resolver"
	"hirmir/internal/source"
	"hirmir/internal/types"
)

// resultKind distinguishes what the builder is currently holding as the
// last-visited expression's result.
type resultKind uint8

const (
	resultNone resultKind = iota
	resultRValue
	resultLValue
)

// pendingResult is the builder's "current result" slot.
type pendingResult struct {
	kind   resultKind
	rvalue mir.RValue
	lvalue mir.LValue
	typ    types.TypeID
}

// MirBuilder is the CFG construction API for one function lowering.
// It is not safe for concurrent use; each
// worker lowering a different function owns its own builder.
type MirBuilder struct {
	Resolver resolver.Resolver
	Types    *types.Interner
	Reporter diag.Reporter

	f   *mir.Function
	cur mir.BlockID

	nextTempSeq int
	result      pendingResult

	// Scopes holds the live drop-scope stack (scope.go).
	Scopes *ScopeStack
}

// New constructs a MirBuilder for a function whose signature has already
// been used to seed f.Result and f.Args.
func New(res resolver.Resolver, interner *types.Interner, f *mir.Function, reporter diag.Reporter) *MirBuilder {
	b := &MirBuilder{Resolver: res, Types: interner, Reporter: reporter, f: f, cur: mir.NoBlockID, nextTempSeq: 1}
	b.Scopes = newScopeStack(b)
	return b
}

// Function returns the function under construction.
func (b *MirBuilder) Function() *mir.Function { return b.f }

// CurrentBlock returns the block currently receiving statements.
func (b *MirBuilder) CurrentBlock() mir.BlockID { return b.cur }

func (b *MirBuilder) block() *mir.BasicBlock {
	idx := int(b.cur)
	if idx < 0 || idx >= len(b.f.Blocks) {
		return nil
	}
	return &b.f.Blocks[idx]
}

// BlockTerminated reports whether the current block already has a
// terminator (further emission into it is a no-op, matching dead-code
// suppression after a Diverge/Return).
func (b *MirBuilder) BlockTerminated() bool {
	bb := b.block()
	return bb == nil || bb.Terminated()
}

// NewBlock creates a fresh block. If linked, the current block is sealed
// with a Goto into the new block before the insertion point moves.
func (b *MirBuilder) NewBlock(linked bool) mir.BlockID {
	raw, err := safecast.Conv[int32](len(b.f.Blocks))
	if err != nil {
		panic(fmt.Errorf("mirbuild: block id overflow: %w", err))
	}
	id := mir.BlockID(raw)
	b.f.Blocks = append(b.f.Blocks, mir.BasicBlock{Term: mir.Terminator{Kind: mir.TermNone}})
	if linked && !b.BlockTerminated() {
		b.Terminate(source.NoSpan, mir.GotoTerm(id))
	}
	return id
}

// SetCurrentBlock moves the insertion point.
func (b *MirBuilder) SetCurrentBlock(bb mir.BlockID) { b.cur = bb }

// PauseCurrentBlock returns the insertion point without changing it,
// for callers that need to remember and later restore it (e.g. around
// a nested scope whose drops target a different block).
func (b *MirBuilder) PauseCurrentBlock() mir.BlockID { return b.cur }

// NewTemporary allocates a fresh compiler-introduced local of type ty
// and returns an LValue naming it. Temporaries with drop glue are
// registered in the innermost
// open scope so scope exit drops them — or in the active raise target,
// which is how `let x = &expr;` extends the borrowed temporary's
// lifetime.
func (b *MirBuilder) NewTemporary(ty types.TypeID, span source.Span) mir.LValue {
	raw, err := safecast.Conv[int32](len(b.f.Locals))
	if err != nil {
		panic(fmt.Errorf("mirbuild: local id overflow: %w", err))
	}
	local := mir.Local(raw)
	name := fmt.Sprintf("_tmp%d", b.nextTempSeq)
	b.nextTempSeq++
	b.f.Locals = append(b.f.Locals, mir.LocalDecl{Type: ty, Name: name, Span: span})
	if sc := b.Scopes.Top(); sc != nil && b.Scopes.needsDrop(ty) {
		b.Scopes.DeclareLocal(sc, local, ty)
	}
	return mir.LocalLV(local)
}

// DeclareLocal adds a named, source-declared local (used by Let/pattern
// destructure bindings and function parameters) and returns its id.
func (b *MirBuilder) DeclareLocal(name string, ty types.TypeID, span source.Span) mir.Local {
	raw, err := safecast.Conv[int32](len(b.f.Locals))
	if err != nil {
		panic(fmt.Errorf("mirbuild: local id overflow: %w", err))
	}
	local := mir.Local(raw)
	b.f.Locals = append(b.f.Locals, mir.LocalDecl{Type: ty, Name: name, Span: span})
	return local
}

// EmitAssign appends an Assign statement to the current block.
func (b *MirBuilder) EmitAssign(span source.Span, dest mir.LValue, rv mir.RValue, dropDest bool) {
	bb := b.block()
	if bb == nil || bb.Terminated() {
		return
	}
	bb.Statements = append(bb.Statements, mir.Assign(span, dest, rv, dropDest))
}

// EmitDrop appends a Drop statement to the current block.
func (b *MirBuilder) EmitDrop(span source.Span, place mir.LValue, kind mir.DropKind) {
	bb := b.block()
	if bb == nil || bb.Terminated() {
		return
	}
	bb.Statements = append(bb.Statements, mir.Drop(span, place, kind))
}

// EmitAsm appends an inline-asm statement to the current block.
func (b *MirBuilder) EmitAsm(span source.Span, template string, outputs, inputs []mir.AsmOperand, clobbers, flags []string) {
	bb := b.block()
	if bb == nil || bb.Terminated() {
		return
	}
	bb.Statements = append(bb.Statements, mir.Statement{
		Kind: mir.StmtAsm, Span: span,
		AsmTemplate: template, AsmOutputs: outputs, AsmInputs: inputs,
		AsmClobbers: clobbers, AsmFlags: flags,
	})
}

// Terminate seals the current block with t, unless it is already
// terminated (dead-code guard — a block reached only via an already
// emitted Diverge/Return never receives a second terminator).
func (b *MirBuilder) Terminate(span source.Span, t mir.Terminator) {
	bb := b.block()
	if bb == nil || bb.Terminated() {
		return
	}
	bb.Term = t
}

// SetResultRValue records rv as the current expression's result,
// keeping the current block active.
func (b *MirBuilder) SetResultRValue(rv mir.RValue, ty types.TypeID) {
	b.result = pendingResult{kind: resultRValue, rvalue: rv, typ: ty}
}

// SetResultLValue records lv as the current expression's result.
func (b *MirBuilder) SetResultLValue(lv mir.LValue, ty types.TypeID) {
	b.result = pendingResult{kind: resultLValue, lvalue: lv, typ: ty}
}

// ClearResult drops the pending result (used after a diverging
// terminator, per the handoff protocol's second branch).
func (b *MirBuilder) ClearResult() { b.result = pendingResult{} }

// HasResult reports whether a pending result is available.
func (b *MirBuilder) HasResult() bool { return b.result.kind != resultNone }

// markConsumed flags a bare non-Copy local as moved-from when its value
// is consumed by value: the scope that owned the temporary must not also
// drop it.
func (b *MirBuilder) markConsumed(lv mir.LValue) {
	if lv.Root != mir.RootLocal || len(lv.Wrappers) != 0 {
		return
	}
	if !b.Scopes.needsDrop(b.f.LocalType(lv.Local)) {
		return
	}
	b.Scopes.MarkMoved(lv.Local)
}

// TakeResultAsRValue consumes the pending result as an RValue, wrapping
// an LValue result in a Use. Consuming a bare non-Copy local counts as
// moving out of it.
func (b *MirBuilder) TakeResultAsRValue() mir.RValue {
	r := b.result
	b.ClearResult()
	switch r.kind {
	case resultRValue:
		if r.rvalue.Kind == mir.RValueUse {
			b.markConsumed(r.rvalue.Use)
		}
		return r.rvalue
	case resultLValue:
		b.markConsumed(r.lvalue)
		return mir.UseRValue(r.lvalue)
	default:
		diag.Bug(source.NoSpan, "TakeResultAsRValue called with no pending result")
		return mir.RValue{}
	}
}

// TakeResultAsLValue consumes the pending result as an LValue,
// materialising a non-lvalue RValue into a fresh temporary first.
func (b *MirBuilder) TakeResultAsLValue(span source.Span) mir.LValue {
	r := b.result
	b.ClearResult()
	switch r.kind {
	case resultLValue:
		return r.lvalue
	case resultRValue:
		tmp := b.NewTemporary(r.typ, span)
		b.EmitAssign(span, tmp, r.rvalue, false)
		return tmp
	default:
		diag.Bug(span, "TakeResultAsLValue called with no pending result")
		return mir.LValue{}
	}
}

// TakeResultAsParam consumes the pending result as a Param, applying the
// materialisation rule: a pure Use/Constant RValue is reused directly,
// otherwise it is materialised into a temporary.
func (b *MirBuilder) TakeResultAsParam(span source.Span) mir.Param {
	r := b.result
	b.ClearResult()
	switch r.kind {
	case resultLValue:
		b.markConsumed(r.lvalue)
		return mir.UseParam(r.lvalue)
	case resultRValue:
		if r.rvalue.IsPure() {
			if r.rvalue.Kind == mir.RValueUse {
				b.markConsumed(r.rvalue.Use)
			}
			return r.rvalue.AsParam()
		}
		tmp := b.NewTemporary(r.typ, span)
		b.EmitAssign(span, tmp, r.rvalue, false)
		b.markConsumed(tmp)
		return mir.UseParam(tmp)
	default:
		diag.Bug(span, "TakeResultAsParam called with no pending result")
		return mir.Param{}
	}
}

// MaterializeParamForCallArg implements the call-argument evaluation
// order rule: every argument except the last is materialised into a
// distinct temporary even when already a simple use, so evaluation
// order survives later reorderings.
func (b *MirBuilder) MaterializeParamForCallArg(span source.Span, isLast bool) mir.Param {
	if isLast {
		return b.TakeResultAsParam(span)
	}
	r := b.result
	b.ClearResult()
	switch r.kind {
	case resultLValue:
		b.markConsumed(r.lvalue)
		tmp := b.NewTemporary(r.typ, span)
		b.EmitAssign(span, tmp, mir.UseRValue(r.lvalue), false)
		b.markConsumed(tmp)
		return mir.UseParam(tmp)
	case resultRValue:
		if r.rvalue.Kind == mir.RValueUse {
			b.markConsumed(r.rvalue.Use)
		}
		tmp := b.NewTemporary(r.typ, span)
		b.EmitAssign(span, tmp, r.rvalue, false)
		b.markConsumed(tmp)
		return mir.UseParam(tmp)
	default:
		diag.Bug(span, "MaterializeParamForCallArg called with no pending result")
		return mir.Param{}
	}
}

// WithValueType looks up lv's static type and invokes f with it, the
// callback-style type inspection the visitor uses for legality checks.
func (b *MirBuilder) WithValueType(lv mir.LValue, f func(types.TypeID)) {
	f(b.lvalueType(lv))
}

// lvalueType resolves an LValue's static type by walking its root and
// wrapper chain against the function's local table / interner.
func (b *MirBuilder) lvalueType(lv mir.LValue) types.TypeID {
	var ty types.TypeID
	switch lv.Root {
	case mir.RootReturn:
		ty = b.f.Result
	case mir.RootArgument:
		if lv.Argument >= 0 && lv.Argument < len(b.f.Args) {
			ty = b.f.Args[lv.Argument].Type
		}
	case mir.RootLocal:
		ty = b.f.LocalType(lv.Local)
	case mir.RootStatic:
		// Statics are resolved through the symbol table by the caller;
		// the builder itself has no symbol-to-type mapping.
		return types.NoTypeID
	}
	if b.Types == nil {
		return ty
	}
	for _, w := range lv.Wrappers {
		switch w.Kind {
		case mir.WrapDeref:
			t, ok := b.Types.Lookup(ty)
			if !ok {
				return types.NoTypeID
			}
			ty = t.Elem
		case mir.WrapField:
			t, ok := b.Types.Lookup(ty)
			if !ok || w.Index < 0 || w.Index >= len(t.Fields) {
				return types.NoTypeID
			}
			ty = t.Fields[w.Index]
		case mir.WrapDowncast:
			t, ok := b.Types.Lookup(ty)
			if !ok || w.Index < 0 || w.Index >= len(t.Variants) {
				return types.NoTypeID
			}
			// A downcast's "type" for further projection purposes is the
			// variant's field tuple; Field(i) wrappers after a Downcast
			// are resolved relative to that variant by the caller.
			_ = t.Variants[w.Index]
		case mir.WrapIndex:
			t, ok := b.Types.Lookup(ty)
			if !ok {
				return types.NoTypeID
			}
			ty = t.Elem
		}
	}
	return ty
}

// AllocFreshTempIfDiverged implements the "result or allocate fresh
// temporary if diverged" helper mentioned in the Result handoff
// protocol, for callers that must hand a value to their parent
// regardless of whether the current block already diverged.
func (b *MirBuilder) AllocFreshTempIfDiverged(span source.Span, ty types.TypeID) mir.Param {
	if b.HasResult() {
		return b.TakeResultAsParam(span)
	}
	return mir.UseParam(b.NewTemporary(ty, span))
}
