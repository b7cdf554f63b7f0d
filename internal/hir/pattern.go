package hir

import (
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// PatternKind enumerates the pattern forms a `let`/`match` arm/function
// parameter can destructure.
type PatternKind uint8

const (
	PatWildcard PatternKind = iota
	PatBinding
	PatLiteral
	PatRange
	PatTuple
	PatStruct
	PatTupleStruct
	PatEnumVariant
	PatSlice
	PatBoxDeref
	PatOr
	PatReference // `&pat` / `&mut pat` — strips one implicit deref level
)

// BindMode selects how a PatBinding captures its matched value.
type BindMode uint8

const (
	BindByValue BindMode = iota
	BindByRef
	BindByRefMut
)

// Pattern is a single node of a destructuring pattern tree.
type Pattern struct {
	Kind PatternKind
	Type types.TypeID
	Span source.Span
	Data PatternData
}

// PatternData is implemented by one XxxData struct per PatternKind.
type PatternData interface{ patternData() }

type WildcardPatData struct{}

func (WildcardPatData) patternData() {}

type BindingPatData struct {
	Local LocalID
	Name  string
	Mode  BindMode
	// Sub is the optional `@` sub-pattern (`n @ 1..=5`); nil if absent.
	Sub *Pattern
}

func (BindingPatData) patternData() {}

type LiteralPatData struct {
	Lit LiteralData
}

func (LiteralPatData) patternData() {}

type RangePatData struct {
	Lo, Hi    LiteralData
	Inclusive bool
}

func (RangePatData) patternData() {}

type TuplePatData struct {
	Elems []*Pattern
}

func (TuplePatData) patternData() {}

// FieldPat binds one named field of a struct pattern.
type FieldPat struct {
	Name  string
	Idx   int
	Sub   *Pattern
}

type StructPatData struct {
	Sym    symbols.SymbolID
	Fields []FieldPat
	// HasRest records a trailing `..` that allows omitted fields.
	HasRest bool
}

func (StructPatData) patternData() {}

type TupleStructPatData struct {
	Sym   symbols.SymbolID
	Elems []*Pattern
}

func (TupleStructPatData) patternData() {}

// EnumVariantPatData matches a specific enum variant (by index) and
// destructures its payload, the way a Switch terminator case is derived
// during match lowering.
type EnumVariantPatData struct {
	Sym        symbols.SymbolID
	VariantIdx int
	Elems      []*Pattern
}

func (EnumVariantPatData) patternData() {}

// SlicePatData matches a fixed or variable-length slice/array, optionally
// with a single `..rest` capturing the middle.
type SlicePatData struct {
	Before []*Pattern
	Rest   *Pattern // nil if there is no `..` rest binding
	After  []*Pattern
}

func (SlicePatData) patternData() {}

type BoxDerefPatData struct {
	Inner *Pattern
}

func (BoxDerefPatData) patternData() {}

type OrPatData struct {
	Alts []*Pattern
}

func (OrPatData) patternData() {}

type ReferencePatData struct {
	Mutable bool
	Inner   *Pattern
}

func (ReferencePatData) patternData() {}

// Refutable reports whether this pattern can fail to match some value of
// its static type — used to reject refutable patterns in `let` bindings
// and function parameters (ErrRefutablePatternInLet).
func (p *Pattern) Refutable() bool {
	switch p.Kind {
	case PatWildcard:
		return false
	case PatBinding:
		d := p.Data.(BindingPatData)
		return d.Sub != nil && d.Sub.Refutable()
	case PatLiteral, PatRange, PatEnumVariant:
		return true
	case PatTuple:
		for _, e := range p.Data.(TuplePatData).Elems {
			if e.Refutable() {
				return true
			}
		}
		return false
	case PatStruct:
		d := p.Data.(StructPatData)
		for _, f := range d.Fields {
			if f.Sub != nil && f.Sub.Refutable() {
				return true
			}
		}
		return false
	case PatTupleStruct:
		for _, e := range p.Data.(TupleStructPatData).Elems {
			if e.Refutable() {
				return true
			}
		}
		return false
	case PatSlice:
		d := p.Data.(SlicePatData)
		// A slice pattern without a rest binding is only irrefutable
		// against a fixed-length array whose length matches exactly;
		// callers that know the scrutinee type make that exception.
		if d.Rest == nil {
			return true
		}
		for _, e := range d.Before {
			if e.Refutable() {
				return true
			}
		}
		for _, e := range d.After {
			if e.Refutable() {
				return true
			}
		}
		return false
	case PatBoxDeref:
		return p.Data.(BoxDerefPatData).Inner.Refutable()
	case PatOr:
		return true
	case PatReference:
		return p.Data.(ReferencePatData).Inner.Refutable()
	default:
		return true
	}
}
