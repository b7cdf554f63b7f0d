// Package hir models the typed, high-level expression tree the lowering
// core consumes. It is a read-only input contract:
// the name resolver, type inference pass, and borrow checker are
// external collaborators that would normally produce this tree; here it
// is built directly (by tests, or by a CLI fixture loader) since those
// passes are out of scope.
package hir

import (
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// ExprKind enumerates HIR expression kinds.
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	ExprVarRef
	ExprPath // item/static/const/function/struct-ctor/enum-ctor reference
	ExprUnaryOp
	ExprBinaryOp
	ExprLogicalAnd // short-circuit &&
	ExprLogicalOr  // short-circuit ||
	ExprAssign
	ExprCompoundAssign
	ExprCall
	ExprCallValue // call through a function-pointer-typed value
	ExprFieldAccess
	ExprIndex
	ExprBorrow
	ExprDeref
	ExprCast
	ExprUnsize
	ExprBox // emplace / box new
	ExprStructLit
	ExprTupleStructLit
	ExprEnumVariantLit
	ExprUnionLit
	ExprArrayLit
	ExprTupleLit
	ExprClosureLit
	ExprGeneratorLit
	ExprBlock
	ExprIf
	ExprMatch
	ExprLoop
	ExprBreak
	ExprContinue
	ExprReturn
	ExprYield
)

func (k ExprKind) String() string {
	names := [...]string{
		"Literal", "VarRef", "Path", "UnaryOp", "BinaryOp", "LogicalAnd", "LogicalOr",
		"Assign", "CompoundAssign", "Call", "CallValue", "FieldAccess", "Index",
		"Borrow", "Deref", "Cast", "Unsize", "Box", "StructLit", "TupleStructLit",
		"EnumVariantLit", "UnionLit", "ArrayLit", "TupleLit", "ClosureLit",
		"GeneratorLit", "Block", "If", "Match", "Loop", "Break", "Continue",
		"Return", "Yield",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Expr is a single HIR expression node: kind-tagged, fully typed, and
// span-carrying for diagnostics.
type Expr struct {
	Kind ExprKind
	Type types.TypeID
	Span source.Span
	Data ExprData
}

// ExprData is the marker interface every kind-specific payload implements.
type ExprData interface{ exprData() }

// --- literals ---------------------------------------------------------

type LiteralKind uint8

const (
	LitInt LiteralKind = iota
	LitFloat
	LitBool
	LitChar
	LitString
	LitByteString
)

type LiteralData struct {
	Kind   LiteralKind
	Int    int64
	Float  float64
	Bool   bool
	Str    string
	Bytes  []byte
}

func (LiteralData) exprData() {}

// --- names --------------------------------------------------------------

type VarRefData struct {
	Local LocalID
	Name  string
	// Alias is set when a `ref`/`ref mut` pattern binding aliased this
	// variable to another LValue rather than its own local.
	Alias *AliasedPlace
}

func (VarRefData) exprData() {}

// AliasedPlace names a place a `ref`/`ref mut` binding was bound to
// instead of allocating its own local.
type AliasedPlace struct {
	Base  LocalID
	Path  []FieldStep
	IsMut bool
}

// FieldStep names one projection step used when building an aliased
// place or a base-relative struct-literal field copy.
type FieldStep struct {
	Index int
	Name  string
}

// PathKind distinguishes the different things a bare path can resolve to.
type PathKind uint8

const (
	PathFunc PathKind = iota
	PathEnumVariantCtor
	PathStructCtor
	PathStatic
	PathConst
	PathAssocConst
)

type PathData struct {
	Kind PathKind
	Sym  symbols.SymbolID
	Name string
}

func (PathData) exprData() {}

// --- operators ------------------------------------------------------------

type UnaryOp uint8

const (
	UnaryNot UnaryOp = iota // !
	UnaryNeg                // -
)

type UnaryOpData struct {
	Op      UnaryOp
	Operand *Expr
}

func (UnaryOpData) exprData() {}

type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

type BinaryOpData struct {
	Op          BinaryOp
	Left, Right *Expr
}

func (BinaryOpData) exprData() {}

// LogicalData backs ExprLogicalAnd / ExprLogicalOr.
type LogicalData struct {
	Left, Right *Expr
}

func (LogicalData) exprData() {}

// --- assignment -------------------------------------------------------

type AssignData struct {
	Target *Expr
	Value  *Expr
}

func (AssignData) exprData() {}

type CompoundAssignData struct {
	Op     BinaryOp
	Target *Expr
	Value  *Expr
}

func (CompoundAssignData) exprData() {}

// --- calls --------------------------------------------------------------

type CallData struct {
	Sym    symbols.SymbolID
	Name   string
	Args   []*Expr
	Intrinsic string // non-empty marks a lang-item intrinsic call
}

func (CallData) exprData() {}

type CallValueData struct {
	Callee *Expr
	Args   []*Expr
}

func (CallValueData) exprData() {}

// --- places / conversions -----------------------------------------------

type FieldAccessData struct {
	Object    *Expr
	FieldName string
	FieldIdx  int
	IsUnion   bool
}

func (FieldAccessData) exprData() {}

type IndexData struct {
	Object *Expr
	Index  *Expr
}

func (IndexData) exprData() {}

type BorrowData struct {
	Mutable bool
	Operand *Expr
}

func (BorrowData) exprData() {}

type DerefData struct {
	Operand *Expr
	// Overloaded marks a user-defined Deref/DerefMut trait call rather
	// than a built-in pointer/reference/box dereference.
	Overloaded bool
}

func (DerefData) exprData() {}

type CastData struct {
	Operand *Expr
}

func (CastData) exprData() {}

type UnsizeData struct {
	Operand *Expr
}

func (UnsizeData) exprData() {}

// EmplaceStyle selects between the two box-lowering protocols.
type EmplaceStyle uint8

const (
	EmplaceExchangeMalloc EmplaceStyle = iota
	EmplacePlacer
)

type BoxData struct {
	Style EmplaceStyle
	Value *Expr
}

func (BoxData) exprData() {}

// --- aggregate literals ---------------------------------------------------

type FieldInit struct {
	Name  string
	Idx   int
	Value *Expr
}

type StructLitData struct {
	Sym    symbols.SymbolID
	Fields []FieldInit
	// Base supplies values for fields omitted from Fields (functional
	// update syntax); nil if every field is listed explicitly.
	Base *Expr
}

func (StructLitData) exprData() {}

type TupleStructLitData struct {
	Sym    symbols.SymbolID
	Values []*Expr
}

func (TupleStructLitData) exprData() {}

type EnumVariantLitData struct {
	Sym        symbols.SymbolID
	VariantIdx int
	Values     []*Expr
}

func (EnumVariantLitData) exprData() {}

type UnionLitData struct {
	Sym        symbols.SymbolID
	VariantIdx int
	Value      *Expr
}

func (UnionLitData) exprData() {}

type ArrayLitData struct {
	Elems []*Expr
}

func (ArrayLitData) exprData() {}

type TupleLitData struct {
	Elems []*Expr
}

func (TupleLitData) exprData() {}

// Capture describes one closure/generator capture.
type Capture struct {
	Name     string
	Value    *Expr
	ByRef    bool
	FieldIdx int
}

type ClosureLitData struct {
	Sym      symbols.SymbolID
	Captures []Capture
}

func (ClosureLitData) exprData() {}

type GeneratorLitData struct {
	Sym      symbols.SymbolID
	Captures []Capture
	Body     *Block
	Result   types.TypeID
}

func (GeneratorLitData) exprData() {}

// --- control flow ---------------------------------------------------------

type BlockExprData struct {
	Block *Block
}

func (BlockExprData) exprData() {}

type IfData struct {
	Cond       *Expr
	Then, Else *Expr // both required; a missing `else` has a synthetic `()` Else
}

func (IfData) exprData() {}

// MatchArm is one arm of a match expression.
type MatchArm struct {
	Patterns []*Pattern // multiple only for or-patterns `P1 | P2 => ...`
	Guard    *Expr
	Body     *Expr
}

type MatchData struct {
	Scrutinee *Expr
	Arms      []MatchArm
}

func (MatchData) exprData() {}

type LoopData struct {
	Label     string
	Body      *Expr // always an ExprBlock
	Diverging bool  // true if there is no reachable break (`loop {}` with no break)
}

func (LoopData) exprData() {}

type BreakData struct {
	Label string
	Value *Expr // nil for a valueless break
}

func (BreakData) exprData() {}

type ContinueData struct {
	Label string
}

func (ContinueData) exprData() {}

type ReturnData struct {
	Value *Expr // nil for a valueless return
}

func (ReturnData) exprData() {}

// YieldData backs a generator `yield expr`.
type YieldData struct {
	Value *Expr
}

func (YieldData) exprData() {}
