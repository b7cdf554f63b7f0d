package mir

import "hirmir/internal/source"

// DropKind distinguishes a deep (recursive, drop-glue-calling) drop from
// a shallow one (only the top-level value's own destructor, used e.g.
// when fields were already moved out individually).
type DropKind uint8

const (
	DropDeep DropKind = iota
	DropShallow
)

// StmtKind enumerates the three MIR statement shapes.
type StmtKind uint8

const (
	StmtAssign StmtKind = iota
	StmtDrop
	StmtAsm
)

// AsmOperand is one inline-asm input/output operand.
type AsmOperand struct {
	Constraint string
	Place      LValue
}

// Statement is one instruction inside a basic block.
type Statement struct {
	Kind StmtKind
	Span source.Span

	// StmtAssign
	AssignDest     LValue
	AssignSrc      RValue
	AssignDropDest bool // whether codegen must first drop the destination

	// StmtDrop
	DropPlace LValue
	DropKind  DropKind

	// StmtAsm
	AsmTemplate string
	AsmOutputs  []AsmOperand
	AsmInputs   []AsmOperand
	AsmClobbers []string
	AsmFlags    []string
}

// Assign constructs a StmtAssign statement.
func Assign(span source.Span, dest LValue, src RValue, dropDest bool) Statement {
	return Statement{Kind: StmtAssign, Span: span, AssignDest: dest, AssignSrc: src, AssignDropDest: dropDest}
}

// Drop constructs a StmtDrop statement.
func Drop(span source.Span, place LValue, kind DropKind) Statement {
	return Statement{Kind: StmtDrop, Span: span, DropPlace: place, DropKind: kind}
}
