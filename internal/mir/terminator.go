package mir

import (
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// TermKind enumerates the seven terminator shapes.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermDiverge
	TermGoto
	TermIf
	TermSwitch
	TermSwitchValue
	TermCall
)

func (k TermKind) String() string {
	names := [...]string{"None", "Return", "Diverge", "Goto", "If", "Switch", "SwitchValue", "Call"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// CallTargetKind distinguishes a direct item-path call from an intrinsic
// call recognised by ABI string.
type CallTargetKind uint8

const (
	CallTargetPath CallTargetKind = iota
	CallTargetIntrinsic
)

// CallTarget is the callee of a Call terminator.
type CallTarget struct {
	Kind           CallTargetKind
	Path           symbols.SymbolID // CallTargetPath
	IntrinsicName  string           // CallTargetIntrinsic
	IntrinsicTypes []types.TypeID   // CallTargetIntrinsic type params
}

// SwitchValueCase pairs one constant discriminant with its target block.
type SwitchValueCase struct {
	Value Constant
	Target BlockID
}

// Terminator seals a basic block. Only the fields relevant to Kind are
// meaningful.
type Terminator struct {
	Kind TermKind

	// TermGoto
	GotoTarget BlockID

	// TermIf
	IfCond  LValue
	IfTrue  BlockID
	IfFalse BlockID

	// TermSwitch — one target per enum variant, in declaration order.
	SwitchValue    LValue
	SwitchTargets  []BlockID

	// TermSwitchValue — arbitrary constant→block mapping plus a default.
	SwitchValValue   LValue
	SwitchValCases   []SwitchValueCase
	SwitchValDefault BlockID

	// TermCall
	CallNext   BlockID
	CallPanic  BlockID
	CallDest   LValue
	CallTarget CallTarget
	CallArgs   []Param
}

// GotoTerm constructs a Goto terminator.
func GotoTerm(target BlockID) Terminator {
	return Terminator{Kind: TermGoto, GotoTarget: target}
}

// IfTerm constructs an If terminator.
func IfTerm(cond LValue, then, els BlockID) Terminator {
	return Terminator{Kind: TermIf, IfCond: cond, IfTrue: then, IfFalse: els}
}

// SwitchTerm constructs a Switch terminator over an enum discriminant.
func SwitchTerm(scrutinee LValue, targets []BlockID) Terminator {
	return Terminator{Kind: TermSwitch, SwitchValue: scrutinee, SwitchTargets: targets}
}

// SwitchValueTerm constructs a SwitchValue terminator.
func SwitchValueTerm(scrutinee LValue, cases []SwitchValueCase, def BlockID) Terminator {
	return Terminator{Kind: TermSwitchValue, SwitchValValue: scrutinee, SwitchValCases: cases, SwitchValDefault: def}
}

// CallTerm constructs a Call terminator.
func CallTerm(next, panicBB BlockID, dest LValue, target CallTarget, args []Param) Terminator {
	return Terminator{Kind: TermCall, CallNext: next, CallPanic: panicBB, CallDest: dest, CallTarget: target, CallArgs: args}
}

// ReturnTerm constructs a Return terminator.
func ReturnTerm() Terminator { return Terminator{Kind: TermReturn} }

// DivergeTerm constructs a Diverge terminator.
func DivergeTerm() Terminator { return Terminator{Kind: TermDiverge} }
