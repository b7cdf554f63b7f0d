// Package lower implements the expression lowering visitor: a
// depth-first walk over internal/hir that drives an
// internal/mirbuild.MirBuilder to produce MIR.
package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/mirbuild"
	"hirmir/internal/resolver"
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// loopDescriptor is one entry of the visitor's loop-descriptor stack:
// the loop's scope, label, and break/continue targets.
type loopDescriptor struct {
	scope        *mirbuild.Scope
	label        string
	requireLabel bool
	continueBB   mir.BlockID
	breakBB      mir.BlockID
}

// genState tracks the generator-specific lowering state the visitor
// threads through a generator body. Two synthetic
// enums are involved: stateEnumSym is the resume-dispatch discriminant
// (Known0..KnownN for N yield sites, then End) that the generator transform post-pass
// switches on; pollEnumSym is the function's own two-variant return
// type (Yielded(T) / Complete(U)) that Yield/Return wrap their value
// in before emitting a plain Return terminator.
type genState struct {
	stateEnumSym  symbols.SymbolID
	pollEnumSym   symbols.SymbolID
	dataStructSym symbols.SymbolID
	nextState     int
	yieldSites    []YieldSite
}

// stateLValue names the generator's resume-state discriminant field,
// reached through the receiver (argument 0, a pinned self-reference)
// and a single deref — the post-pass dispatch block switches on exactly
// this place.
func (g *genState) stateLValue() mir.LValue {
	return mir.Argument(0).Deref().Field(0)
}

// YieldSite records one yield point's resume block and the set of
// locals live at that point, the per-yield snapshot the generator
// transform consumes.
type YieldSite struct {
	State      int
	ResumeBB   mir.BlockID
	LiveLocals []mir.Local
}

// GeneratorInfo is what LowerFunction hands back for a generator body:
// the two synthesized symbols, the yield-site snapshots, and the
// capture-to-local mapping the internal/generator post-pass consumes.
type GeneratorInfo struct {
	StateEnumSym  symbols.SymbolID
	PollEnumSym   symbols.SymbolID
	DataStructSym symbols.SymbolID
	YieldSites    []YieldSite
	// CaptureLocals mirrors hir.Func.CaptureLocals, translated into the
	// mir.Local each was declared as (captures occupy the
	// generator struct's first lifted fields, in this order).
	CaptureLocals []mir.Local
}

// Visitor walks a hir.Func's body, invoking a mirbuild.MirBuilder to
// emit MIR. One Visitor lowers exactly one function; it is not
// reused across functions.
type Visitor struct {
	B        *mirbuild.MirBuilder
	Types    *types.Interner
	Symbols  *symbols.Table
	Resolver resolver.Resolver
	Reporter diag.Reporter

	loops []loopDescriptor

	// stmtTempScope is the current statement-level temporary scope, when
	// open. A borrow raises its operand's temporaries into it so the
	// referent outlives the borrowing expression.
	stmtTempScope *mirbuild.Scope

	// inBorrow marks that the operand currently being visited sits under
	// a & / &mut; borrowMut carries that borrow's mutability so an
	// overloaded deref in that position dispatches to deref_mut.
	inBorrow  bool
	borrowMut bool

	// PlacerEmplace forces every `box` expression through the older
	// placer protocol regardless of the HIR node's own style tag — set
	// by the driver when the configured target version predates
	// exchange_malloc.
	PlacerEmplace bool

	// locals maps a hir.LocalID to the mir.Local it was declared as.
	locals map[hir.LocalID]mir.Local

	gen *genState // non-nil only while lowering a generator body

	// Generator is populated by LowerFunction after lowerGeneratorFunction
	// returns, for the caller to feed into internal/generator.Transform.
	Generator *GeneratorInfo
}

// NewVisitor constructs a Visitor over an already-seeded MirBuilder.
func NewVisitor(b *mirbuild.MirBuilder, res resolver.Resolver, interner *types.Interner, symTable *symbols.Table, reporter diag.Reporter) *Visitor {
	return &Visitor{
		B: b, Resolver: res, Types: interner, Symbols: symTable, Reporter: reporter,
		locals: make(map[hir.LocalID]mir.Local),
	}
}

// LowerFunction lowers fn's body into v.B's function, declaring
// parameters as locals before visiting the body.
func (v *Visitor) LowerFunction(fn *hir.Func) error {
	for i, decl := range fn.Locals {
		local := v.B.DeclareLocal(decl.Name, decl.Type, decl.Span)
		v.locals[hir.LocalID(i)] = local
	}
	for i, p := range fn.Params {
		if p.Pattern != nil && p.Pattern.Kind == hir.PatBinding {
			bd := p.Pattern.Data.(hir.BindingPatData)
			if bd.Local >= 0 {
				// Parameter already has a declared local slot; copy the
				// argument value into it so later reads go through the
				// ordinary local, not the argument root directly.
				local := v.localFor(bd.Local)
				v.B.EmitAssign(p.Span, mir.LocalLV(local), mir.UseRValue(mir.Argument(i)), false)
			}
		}
	}

	if fn.Generator {
		return v.lowerGeneratorFunction(fn)
	}

	v.B.Scopes.PushVariable()
	if err := v.lowerBlockBody(fn.Body); err != nil {
		return err
	}
	if v.B.BlockTerminated() {
		v.B.Scopes.Pop(fn.Span, false)
		return nil
	}
	if fn.Result == types.NoTypeID {
		v.B.ClearResult()
		v.B.Scopes.Pop(fn.Span, true)
		v.B.Terminate(fn.Span, mir.ReturnTerm())
		return nil
	}
	rv := v.B.TakeResultAsRValue()
	if rv.Kind == mir.RValueUse && rv.Use.Root == mir.RootLocal && len(rv.Use.Wrappers) == 0 {
		v.B.Scopes.MarkMoved(rv.Use.Local)
	}
	v.B.EmitAssign(fn.Span, mir.Return(), rv, false)
	v.B.Scopes.Pop(fn.Span, true)
	v.B.Terminate(fn.Span, mir.ReturnTerm())
	return nil
}

func (v *Visitor) localFor(id hir.LocalID) mir.Local {
	if l, ok := v.locals[id]; ok {
		return l
	}
	diag.Bug(source.NoSpan, "reference to undeclared hir local %d", id)
	return 0
}

// VisitExpr dispatches on e.Kind, leaving a result in v.B per the
// result handoff protocol.
func (v *Visitor) VisitExpr(e *hir.Expr) error {
	if e == nil {
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueTuple}, types.NoTypeID)
		return nil
	}
	switch e.Kind {
	case hir.ExprLiteral:
		return v.visitLiteral(e)
	case hir.ExprVarRef:
		return v.visitVarRef(e)
	case hir.ExprPath:
		return v.visitPath(e)
	case hir.ExprUnaryOp:
		return v.visitUnaryOp(e)
	case hir.ExprBinaryOp:
		return v.visitBinaryOp(e)
	case hir.ExprLogicalAnd, hir.ExprLogicalOr:
		return v.visitLogical(e)
	case hir.ExprAssign:
		return v.visitAssign(e)
	case hir.ExprCompoundAssign:
		return v.visitCompoundAssign(e)
	case hir.ExprCall:
		return v.visitCall(e)
	case hir.ExprCallValue:
		return v.visitCallValue(e)
	case hir.ExprFieldAccess:
		return v.visitFieldAccess(e)
	case hir.ExprIndex:
		return v.visitIndex(e)
	case hir.ExprBorrow:
		return v.visitBorrow(e)
	case hir.ExprDeref:
		return v.visitDeref(e)
	case hir.ExprCast:
		return v.visitCast(e)
	case hir.ExprUnsize:
		return v.visitUnsize(e)
	case hir.ExprBox:
		return v.visitBox(e)
	case hir.ExprStructLit:
		return v.visitStructLit(e)
	case hir.ExprTupleStructLit:
		return v.visitTupleStructLit(e)
	case hir.ExprEnumVariantLit:
		return v.visitEnumVariantLit(e)
	case hir.ExprUnionLit:
		return v.visitUnionLit(e)
	case hir.ExprArrayLit:
		return v.visitArrayLit(e)
	case hir.ExprTupleLit:
		return v.visitTupleLit(e)
	case hir.ExprClosureLit:
		return v.visitClosureLit(e)
	case hir.ExprGeneratorLit:
		return v.visitGeneratorLit(e)
	case hir.ExprBlock:
		return v.visitBlockExpr(e)
	case hir.ExprIf:
		return v.visitIf(e)
	case hir.ExprMatch:
		return v.visitMatch(e)
	case hir.ExprLoop:
		return v.visitLoop(e)
	case hir.ExprBreak:
		return v.visitBreak(e)
	case hir.ExprContinue:
		return v.visitContinue(e)
	case hir.ExprReturn:
		return v.visitReturn(e)
	case hir.ExprYield:
		return v.visitYield(e)
	default:
		diag.Bug(e.Span, "unhandled expression kind %s", e.Kind)
		return nil
	}
}

// visitAsLValue visits e and forces the result to an LValue, for
// lowering contexts that need a place (field access base, borrow
// operand, assignment target).
func (v *Visitor) visitAsLValue(e *hir.Expr) (mir.LValue, error) {
	if err := v.VisitExpr(e); err != nil {
		return mir.LValue{}, err
	}
	return v.B.TakeResultAsLValue(e.Span), nil
}

// visitAsParam visits e and forces the result to a Param.
func (v *Visitor) visitAsParam(e *hir.Expr) (mir.Param, error) {
	if err := v.VisitExpr(e); err != nil {
		return mir.Param{}, err
	}
	return v.B.TakeResultAsParam(e.Span), nil
}
