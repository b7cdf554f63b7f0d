// Package types implements the minimal structural type interner the
// lowering core needs: enough kinds to type LValues/RValues/Constants
// and to drive the cast/operator/unsize legality checks, without
// reimplementing a full Rust type checker (that is an external
// collaborator of this core).
package types

import "fmt"

// TypeID uniquely identifies an interned Type.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the type kinds the core needs to discriminate.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNever        // the `!` / never type
	KindUnit         // zero-sized tuple `()`
	KindBool
	KindChar
	KindStr // unsized `str`
	KindInt
	KindUint
	KindFloat
	KindTuple
	KindArray     // [T; N], fixed size
	KindSlice     // [T], unsized
	KindReference // &T / &mut T
	KindPointer   // *const T / *mut T
	KindBox       // owned_box<T>
	KindFnPtr
	KindStruct
	KindEnum // tagged union: Rust enum
	KindUnion
	KindTraitObject
	KindGenericParam
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNever:
		return "never"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindStr:
		return "str"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindReference:
		return "reference"
	case KindPointer:
		return "pointer"
	case KindBox:
		return "box"
	case KindFnPtr:
		return "fnptr"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindUnion:
		return "union"
	case KindTraitObject:
		return "trait_object"
	case KindGenericParam:
		return "generic_param"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Width captures integer/float precision; WidthPtr means pointer-sized.
type Width uint8

const (
	WidthPtr Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a compact structural descriptor. Only the fields relevant to
// Kind are meaningful.
type Type struct {
	Kind    Kind
	Elem    TypeID // reference/pointer/box/array/slice element
	Len     uint32 // array length
	Width   Width  // int/uint/float precision
	Mutable bool   // reference/pointer mutability

	Name       string   // struct/enum/union/trait-object/generic-param display name
	Fields     []TypeID // tuple elements, struct field types (declaration order), fn params
	FieldNames []string // struct/union field names, parallel to Fields
	Ret        TypeID   // fn pointer return type

	Variants []EnumVariant // enum-only
	ParamIdx uint32        // generic-param-only
}

// EnumVariant describes one variant of a KindEnum type.
type EnumVariant struct {
	Name   string
	Fields []TypeID // empty for unit variants
}

// FieldIndexOf returns the index of name within fieldNames, or -1 if
// fieldNames has no such entry.
func (t Type) FieldIndexOf(fieldNames []string, name string) int {
	for i, n := range fieldNames {
		if n == name {
			return i
		}
	}
	return -1
}

// VariantIndex returns the declaration index of a named enum variant, or
// -1 if not found.
func (t Type) VariantIndex(name string) int {
	for i, v := range t.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}
