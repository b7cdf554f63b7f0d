package lower

import (
	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/types"
)

func (v *Visitor) visitLiteral(e *hir.Expr) error {
	d := e.Data.(hir.LiteralData)
	var c mir.Constant
	c.Type = e.Type
	switch d.Kind {
	case hir.LitInt:
		// Integer literals are emitted as ConstInt whether the inferred
		// primitive type is signed or unsigned; mir has no separate
		// unsigned constant kind, and only c.Type carries the signedness.
		if v.typeIsUnsigned(e.Type) {
			c.Kind = mir.ConstInt
			c.IntValue = d.Int
		} else {
			c.Kind = mir.ConstInt
			c.IntValue = d.Int
		}
	case hir.LitFloat:
		c.Kind = mir.ConstFloat
		c.FloatValue = d.Float
	case hir.LitBool:
		c.Kind = mir.ConstBool
		c.BoolValue = d.Bool
	case hir.LitChar:
		// char literals become ConstInt with type char.
		c.Kind = mir.ConstInt
		c.IntValue = d.Int
	case hir.LitString:
		c.Kind = mir.ConstString
		c.StrValue = d.Str
	case hir.LitByteString:
		c.Kind = mir.ConstByteString
		c.ByteValue = d.Bytes
	default:
		diag.Bug(e.Span, "unhandled literal kind %d", d.Kind)
	}
	v.B.SetResultRValue(mir.ConstantRValue(c), e.Type)
	return nil
}

func (v *Visitor) typeIsUnsigned(id types.TypeID) bool {
	if v.Types == nil {
		return false
	}
	t, ok := v.Types.Lookup(id)
	return ok && t.Kind == types.KindUint
}

func (v *Visitor) visitVarRef(e *hir.Expr) error {
	d := e.Data.(hir.VarRefData)
	if d.Alias != nil {
		// An alias exists (set by ref/ref mut bindings in pattern
		// destructure): emit that alias, possibly with an implicit borrow.
		base := mir.LocalLV(v.localFor(d.Alias.Base))
		for _, step := range d.Alias.Path {
			base = base.Field(step.Index)
		}
		kind := mir.BorrowShared
		if d.Alias.IsMut {
			kind = mir.BorrowUnique
		}
		v.B.SetResultRValue(mir.RValue{Kind: mir.RValueBorrow, BorrowKind: kind, BorrowOf: base}, e.Type)
		return nil
	}
	v.B.SetResultLValue(mir.LocalLV(v.localFor(d.Local)), e.Type)
	return nil
}

func (v *Visitor) visitPath(e *hir.Expr) error {
	d := e.Data.(hir.PathData)
	switch d.Kind {
	case hir.PathFunc, hir.PathEnumVariantCtor, hir.PathStructCtor:
		v.B.SetResultRValue(mir.ConstantRValue(mir.Constant{Kind: mir.ConstItemAddr, Type: e.Type, Path: d.Sym}), e.Type)
	case hir.PathStatic:
		v.B.SetResultLValue(mir.StaticLV(d.Sym), e.Type)
	case hir.PathConst, hir.PathAssocConst:
		v.B.SetResultRValue(mir.ConstantRValue(mir.Constant{Kind: mir.ConstAssocConst, Type: e.Type, Path: d.Sym}), e.Type)
	default:
		diag.Bug(e.Span, "unhandled path kind %d", d.Kind)
	}
	return nil
}

func (v *Visitor) visitUnaryOp(e *hir.Expr) error {
	d := e.Data.(hir.UnaryOpData)
	lv, err := v.visitAsLValue(d.Operand)
	if err != nil {
		return err
	}
	op, ok := unOpLegal(v.Types, d.Op, d.Operand.Type)
	if !ok {
		diag.Bug(e.Span, "illegal unary operator %d on operand type %d", d.Op, d.Operand.Type)
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueUniOp, UniOp: op, UniOpVal: lv}, e.Type)
	return nil
}

// unOpLegal enforces the unary operand rule: "! on bool or integer; - on
// signed integer or float — reject others with a programmer-error
// diagnostic."
func unOpLegal(interner *types.Interner, op hir.UnaryOp, operand types.TypeID) (mir.UnOp, bool) {
	if interner == nil {
		return 0, false
	}
	t, ok := interner.Lookup(operand)
	if !ok {
		return 0, false
	}
	switch op {
	case hir.UnaryNot:
		return mir.UnOpNot, t.Kind == types.KindBool || t.Kind == types.KindInt || t.Kind == types.KindUint
	case hir.UnaryNeg:
		return mir.UnOpNeg, t.Kind == types.KindFloat || t.Kind == types.KindInt
	default:
		return 0, false
	}
}

func (v *Visitor) visitBinaryOp(e *hir.Expr) error {
	d := e.Data.(hir.BinaryOpData)
	left, err := v.visitAsParam(d.Left)
	if err != nil {
		return err
	}
	right, err := v.visitAsParam(d.Right)
	if err != nil {
		return err
	}
	op := binOpOf(d.Op)
	if !binOpLegal(v.Types, op, d.Left.Type, d.Right.Type) {
		diag.Bug(e.Span, "illegal binary operator %d between operand types %d and %d", d.Op, d.Left.Type, d.Right.Type)
	}
	v.B.SetResultRValue(mir.RValue{Kind: mir.RValueBinOp, BinOp: op, BinOpLeft: left, BinOpRight: right}, e.Type)
	return nil
}

func binOpOf(op hir.BinaryOp) mir.BinOp {
	switch op {
	case hir.BinAdd:
		return mir.BinOpAdd
	case hir.BinSub:
		return mir.BinOpSub
	case hir.BinMul:
		return mir.BinOpMul
	case hir.BinDiv:
		return mir.BinOpDiv
	case hir.BinRem:
		return mir.BinOpRem
	case hir.BinBitAnd:
		return mir.BinOpBitAnd
	case hir.BinBitOr:
		return mir.BinOpBitOr
	case hir.BinBitXor:
		return mir.BinOpBitXor
	case hir.BinShl:
		return mir.BinOpShl
	case hir.BinShr:
		return mir.BinOpShr
	case hir.BinEq:
		return mir.BinOpEq
	case hir.BinNe:
		return mir.BinOpNe
	case hir.BinLt:
		return mir.BinOpLt
	case hir.BinLe:
		return mir.BinOpLe
	case hir.BinGt:
		return mir.BinOpGt
	default:
		return mir.BinOpGe
	}
}

// binOpLegal enforces the binary operand-legality table:
// comparisons require identical operand types; bitwise ops require
// integer-or-bool on both sides; arithmetic rejects string/char/bool;
// shifts require integer-typed operands (two possibly different
// integer types allowed).
func binOpLegal(interner *types.Interner, op mir.BinOp, lt, rt types.TypeID) bool {
	if interner == nil {
		return false
	}
	l, ok1 := interner.Lookup(lt)
	r, ok2 := interner.Lookup(rt)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case mir.BinOpEq, mir.BinOpNe, mir.BinOpLt, mir.BinOpLe, mir.BinOpGt, mir.BinOpGe:
		return lt == rt
	case mir.BinOpBitAnd, mir.BinOpBitOr, mir.BinOpBitXor:
		intOrBool := func(t types.Type) bool {
			return t.Kind == types.KindInt || t.Kind == types.KindUint || t.Kind == types.KindBool
		}
		return intOrBool(l) && intOrBool(r)
	case mir.BinOpShl, mir.BinOpShr:
		isInt := func(t types.Type) bool { return t.Kind == types.KindInt || t.Kind == types.KindUint }
		return isInt(l) && isInt(r)
	default: // arithmetic
		bad := func(t types.Type) bool {
			return t.Kind == types.KindStr || t.Kind == types.KindChar || t.Kind == types.KindBool
		}
		return !bad(l) && !bad(r)
	}
}

// visitLogical lowers && / || as nested If terminators rather than a
// single BinOp.
func (v *Visitor) visitLogical(e *hir.Expr) error {
	d := e.Data.(hir.LogicalData)
	isAnd := e.Kind == hir.ExprLogicalAnd

	leftLV, err := v.visitAsLValue(d.Left)
	if err != nil {
		return err
	}

	result := v.B.NewTemporary(e.Type, e.Span)
	rightBB := v.B.NewBlock(false)
	shortBB := v.B.NewBlock(false)
	joinBB := v.B.NewBlock(false)

	if isAnd {
		v.B.Terminate(e.Span, mir.IfTerm(leftLV, rightBB, shortBB))
	} else {
		v.B.Terminate(e.Span, mir.IfTerm(leftLV, shortBB, rightBB))
	}

	v.B.SetCurrentBlock(shortBB)
	v.B.EmitAssign(e.Span, result, mir.ConstantRValue(mir.Constant{Kind: mir.ConstBool, Type: e.Type, BoolValue: !isAnd}), false)
	v.B.Terminate(e.Span, mir.GotoTerm(joinBB))

	v.B.SetCurrentBlock(rightBB)
	rightLV, err := v.visitAsLValue(d.Right)
	if err != nil {
		return err
	}
	if !v.B.BlockTerminated() {
		v.B.EmitAssign(e.Span, result, mir.UseRValue(rightLV), false)
		v.B.Terminate(e.Span, mir.GotoTerm(joinBB))
	}

	v.B.SetCurrentBlock(joinBB)
	v.B.SetResultLValue(result, e.Type)
	return nil
}
