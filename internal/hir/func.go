package hir

import (
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// LocalID indexes into a Func's declared local table. It is distinct
// from mir.Local: a HIR LocalID names a *source-level* binding with a
// stable index; a MirBuilder allocates further Local indices beyond this
// table for compiler-introduced temporaries.
type LocalID int32

// NoLocalID marks the absence of a declared local.
const NoLocalID LocalID = -1

// LocalDecl is one function-local variable binding declared by a `let`,
// a function parameter, or a pattern binding.
type LocalDecl struct {
	Name string
	Type types.TypeID
	Span source.Span
	// Mutable records whether the binding was declared `mut`. Lowering
	// does not read it; compound assignment is not checked against it.
	Mutable bool
}

// ParamDecl is one function parameter.
type ParamDecl struct {
	Pattern *Pattern
	Type    types.TypeID
	Span    source.Span
}

// Block is a brace-delimited sequence of statements with an optional
// tail expression supplying the block's value.
type Block struct {
	Stmts []Stmt
	Tail  *Expr // nil when the block evaluates to unit
	Span  source.Span
}

// Func is a single function/closure-body/generator-body HIR tree, fully
// typed and span-tagged, ready for lowering.
type Func struct {
	Sym    symbols.SymbolID
	Name   string
	Locals []LocalDecl // pre-declared, stably indexed by LocalID
	Params []ParamDecl
	Result types.TypeID
	Body   *Block
	// Generator marks a function body that contains `yield` expressions
	// and must go through internal/generator's state-machine transform
	// after ordinary lowering.
	Generator bool
	// CaptureLocals names, for Generator==true, which of Locals stand for
	// the enclosing GeneratorLitData.Captures slots (same order) rather
	// than an ordinary `let`-declared binding — the only free variables
	// the body refers to that the generator transform must lift into the
	// generator's own struct instead of leaving as plain locals.
	CaptureLocals []LocalID
	Span          source.Span
}

// Module is a set of HIR functions ready for lowering, sharing one
// symbol table and type interner. It is the unit internal/mirbuild's
// LowerModule fans work out across.
type Module struct {
	Funcs []*Func
}
