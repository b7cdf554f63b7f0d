package hir

import (
	"hirmir/internal/source"
	"hirmir/internal/types"
)

// StmtKind enumerates HIR statement kinds. Deliberately minimal: unlike a
// pass that bakes ownership decisions into an explicit drop statement,
// drops here are emitted live by the scope manager during lowering,
// so there is no StmtDrop node to carry.
type StmtKind uint8

const (
	StmtLet StmtKind = iota
	StmtExpr
)

// Stmt is one statement inside a Block.
type Stmt struct {
	Kind StmtKind
	Span source.Span
	Data StmtData
}

type StmtData interface{ stmtData() }

// LetStmtData backs `let pat[: ty] = init;` and `let pat: ty;` (no
// initializer — the binding starts uninitialized and must be assigned to
// before first use, or the type checker would have already rejected it).
type LetStmtData struct {
	Pattern *Pattern
	Type    types.TypeID
	Init    *Expr // nil when there is no initializer
	ElseBlk *Block // non-nil for `let pat = init else { ... };` refutable-let
}

func (LetStmtData) stmtData() {}

// ExprStmtData backs a bare expression statement (its value, if any, is
// discarded — e.g. `foo();` or a tail-less `if c { ... }`).
type ExprStmtData struct {
	Expr *Expr
}

func (ExprStmtData) stmtData() {}
