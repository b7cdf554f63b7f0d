// Package mir implements the MIR data model: an algebraic representation
// of locations (LValue), values (RValue/Constant/Param), statements,
// terminators, basic blocks, and functions. MIR is produced
// exclusively by internal/mirbuild during one function's lowering and is
// treated as immutable once validated.
package mir

import (
	"fmt"

	"hirmir/internal/symbols"
)

// FuncID identifies a function in a Module.
type FuncID int32

// BlockID identifies a basic block within a Function.
type BlockID int32

// Local indexes a Function's ordered local-type list. Local 0 is never
// reserved for anything special — the Return root is a distinct LValue
// root kind, not local 0 (unlike some lowering implementations).
type Local int32

// NoBlockID marks the absence of a block reference.
const NoBlockID BlockID = -1

// RootKind distinguishes the four LValue roots.
type RootKind uint8

const (
	RootReturn RootKind = iota
	RootArgument
	RootLocal
	RootStatic
)

func (k RootKind) String() string {
	switch k {
	case RootReturn:
		return "Return"
	case RootArgument:
		return "Argument"
	case RootLocal:
		return "Local"
	case RootStatic:
		return "Static"
	default:
		return "UnknownRoot"
	}
}

// WrapperKind distinguishes the four LValue wrapper kinds.
type WrapperKind uint8

const (
	WrapDeref WrapperKind = iota
	WrapField
	WrapDowncast
	WrapIndex
)

func (k WrapperKind) String() string {
	switch k {
	case WrapDeref:
		return "Deref"
	case WrapField:
		return "Field"
	case WrapDowncast:
		return "Downcast"
	case WrapIndex:
		return "Index"
	default:
		return "UnknownWrapper"
	}
}

// Wrapper is a single LValue projection step. Field/Downcast carry a
// constant index; Index names a Local (never a constant) so that
// evaluation order of the index expression stays explicit in the CFG.
type Wrapper struct {
	Kind  WrapperKind
	Index int   // Field index / Downcast variant index
	Local Local // Index wrapper's index-holding local
}

func FieldWrapper(idx int) Wrapper    { return Wrapper{Kind: WrapField, Index: idx} }
func DowncastWrapper(v int) Wrapper   { return Wrapper{Kind: WrapDowncast, Index: v} }
func DerefWrapper() Wrapper           { return Wrapper{Kind: WrapDeref} }
func IndexWrapper(l Local) Wrapper    { return Wrapper{Kind: WrapIndex, Local: l} }

// LValue names a memory place: a root plus an ordered list of wrappers
// applied left to right.
type LValue struct {
	Root     RootKind
	Argument int              // meaningful when Root == RootArgument
	Local    Local            // meaningful when Root == RootLocal
	Static   symbols.SymbolID // meaningful when Root == RootStatic
	Wrappers []Wrapper
}

// Return is the LValue naming the function's return slot.
func Return() LValue { return LValue{Root: RootReturn} }

// Argument names function argument i.
func Argument(i int) LValue { return LValue{Root: RootArgument, Argument: i} }

// LocalLV names local l.
func LocalLV(l Local) LValue { return LValue{Root: RootLocal, Local: l} }

// StaticLV names a static/const item by symbol.
func StaticLV(sym symbols.SymbolID) LValue { return LValue{Root: RootStatic, Static: sym} }

// Project returns a copy of lv with w appended as its outermost wrapper.
func (lv LValue) Project(w Wrapper) LValue {
	out := lv
	out.Wrappers = append(append([]Wrapper(nil), lv.Wrappers...), w)
	return out
}

// Field projects a named/numeric struct or tuple field.
func (lv LValue) Field(idx int) LValue { return lv.Project(FieldWrapper(idx)) }

// Downcast projects into a specific enum variant's payload.
func (lv LValue) Downcast(variant int) LValue { return lv.Project(DowncastWrapper(variant)) }

// Deref projects through a pointer/reference/box.
func (lv LValue) Deref() LValue { return lv.Project(DerefWrapper()) }

// Index projects a dynamic index held in local idxLocal.
func (lv LValue) Index(idxLocal Local) LValue { return lv.Project(IndexWrapper(idxLocal)) }

// Equal reports structural equality.
func (lv LValue) Equal(other LValue) bool {
	if lv.Root != other.Root || lv.Argument != other.Argument ||
		lv.Local != other.Local || lv.Static != other.Static {
		return false
	}
	if len(lv.Wrappers) != len(other.Wrappers) {
		return false
	}
	for i := range lv.Wrappers {
		if lv.Wrappers[i] != other.Wrappers[i] {
			return false
		}
	}
	return true
}

func (lv LValue) String() string {
	var root string
	switch lv.Root {
	case RootReturn:
		root = "Return"
	case RootArgument:
		root = fmt.Sprintf("Argument(%d)", lv.Argument)
	case RootLocal:
		root = fmt.Sprintf("Local(%d)", lv.Local)
	case RootStatic:
		root = fmt.Sprintf("Static(%d)", lv.Static)
	}
	for _, w := range lv.Wrappers {
		switch w.Kind {
		case WrapDeref:
			root = "*" + root
		case WrapField:
			root = fmt.Sprintf("%s.%d", root, w.Index)
		case WrapDowncast:
			root = fmt.Sprintf("(%s as #%d)", root, w.Index)
		case WrapIndex:
			root = fmt.Sprintf("%s[Local(%d)]", root, w.Local)
		}
	}
	return root
}
