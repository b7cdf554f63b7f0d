package mir

import (
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// ConstKind distinguishes Constant payload shapes.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstBool
	ConstString
	ConstByteString
	ConstItemAddr    // address of a function/static/struct-or-enum-ctor
	ConstAssocConst  // reference to a trait-associated constant
	ConstGenericParam // generic-parameter placeholder (pre-monomorphization)
)

// Constant is a compile-time-known value.
type Constant struct {
	Kind ConstKind
	Type types.TypeID

	IntValue   int64
	FloatValue float64
	BoolValue  bool
	StrValue   string
	ByteValue  []byte

	// Path names the item for ConstItemAddr / ConstAssocConst.
	Path symbols.SymbolID
	// ParamIdx names the generic parameter for ConstGenericParam.
	ParamIdx uint32
}

// ParamKind distinguishes the two Param shapes.
type ParamKind uint8

const (
	ParamUse ParamKind = iota
	ParamConst
)

// Param is either a use of an LValue (consuming/copying it) or a
// Constant literal — the operand shape that tolerates both without
// forcing a load.
type Param struct {
	Kind     ParamKind
	LValue   LValue
	Constant Constant
}

// UseParam wraps an LValue as a Param.
func UseParam(lv LValue) Param { return Param{Kind: ParamUse, LValue: lv} }

// ConstParam wraps a Constant as a Param.
func ConstParam(c Constant) Param { return Param{Kind: ParamConst, Constant: c} }

// BorrowKind distinguishes a Borrow RValue's aliasing mode, matching the
// two-way BorrowType distinction the source type system exposes (no
// separate raw "Move" borrow kind exists at the HIR/MIR boundary).
type BorrowKind uint8

const (
	BorrowShared BorrowKind = iota
	BorrowUnique
)

// UnOp enumerates the unary operators legal at the MIR layer (`!` on bool/integer, `-` on signed integer/float).
type UnOp uint8

const (
	UnOpNot UnOp = iota
	UnOpNeg
)

// BinOp enumerates the binary operators legal at the MIR layer.
type BinOp uint8

const (
	BinOpAdd BinOp = iota
	BinOpSub
	BinOpMul
	BinOpDiv
	BinOpRem
	BinOpBitAnd
	BinOpBitOr
	BinOpBitXor
	BinOpShl
	BinOpShr
	BinOpEq
	BinOpNe
	BinOpLt
	BinOpLe
	BinOpGt
	BinOpGe
)

// RValueKind enumerates the RValue variants of Values.
type RValueKind uint8

const (
	RValueUse RValueKind = iota
	RValueConstant
	RValueBorrow
	RValueCast
	RValueBinOp
	RValueUniOp
	RValueDstMeta
	RValueDstPtr
	RValueMakeDst
	RValueTuple
	RValueArray
	RValueSizedArray
	RValueStruct
	RValueEnumVariant
	RValueUnionVariant
)

// RValue is a computed value assignable to an LValue. Only
// the fields relevant to Kind are meaningful.
type RValue struct {
	Kind RValueKind

	Use      LValue   // RValueUse
	Constant Constant // RValueConstant

	BorrowKind BorrowKind // RValueBorrow
	BorrowOf   LValue     // RValueBorrow

	CastOf     LValue     // RValueCast
	CastTarget types.TypeID // RValueCast

	BinOp       BinOp // RValueBinOp
	BinOpLeft   Param
	BinOpRight  Param

	UniOp    UnOp   // RValueUniOp
	UniOpVal LValue // RValueUniOp

	DstMetaOf LValue // RValueDstMeta
	DstPtrOf  LValue // RValueDstPtr

	MakeDstPtr  Param // RValueMakeDst
	MakeDstMeta Param // RValueMakeDst

	Elems []Param // RValueTuple / RValueArray

	SizedArrayElem Param // RValueSizedArray
	SizedArrayLen  uint64

	AggPath    symbols.SymbolID // RValueStruct / RValueEnumVariant / RValueUnionVariant
	VariantIdx int              // RValueEnumVariant / RValueUnionVariant
	Fields     []Param          // RValueStruct / RValueEnumVariant
	UnionField Param            // RValueUnionVariant
}

// UseRValue wraps an LValue use.
func UseRValue(lv LValue) RValue { return RValue{Kind: RValueUse, Use: lv} }

// ConstantRValue wraps a literal.
func ConstantRValue(c Constant) RValue { return RValue{Kind: RValueConstant, Constant: c} }

// IsPure reports whether rv is a plain Use or Constant — the only
// RValue kinds the materialisation rule may reuse directly without
// allocating a temporary.
func (rv RValue) IsPure() bool {
	return rv.Kind == RValueUse || rv.Kind == RValueConstant
}

// AsParam converts a pure RValue directly into a Param, panicking if rv
// is not pure — callers must check IsPure first.
func (rv RValue) AsParam() Param {
	switch rv.Kind {
	case RValueUse:
		return UseParam(rv.Use)
	case RValueConstant:
		return ConstParam(rv.Constant)
	default:
		panic("mir: AsParam called on a non-pure RValue")
	}
}
