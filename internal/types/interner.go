package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for the primitive types every module needs.
type Builtins struct {
	Never  TypeID
	Unit   TypeID
	Bool   TypeID
	Char   TypeID
	Str    TypeID
	Int    TypeID
	Int8   TypeID
	Int16  TypeID
	Int32  TypeID
	Int64  TypeID
	Uint   TypeID
	Uint8  TypeID
	Uint16 TypeID
	Uint32 TypeID
	Uint64 TypeID
	Usize  TypeID
	Float32 TypeID
	Float64 TypeID
}

// Interner provides stable TypeIDs for structurally-equal types.
type Interner struct {
	types []Type
	index map[string]TypeID

	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		types: make([]Type, 1, 64), // reserve 0 as NoTypeID/invalid
		index: make(map[string]TypeID, 64),
	}
	in.builtins.Never = in.Intern(Type{Kind: KindNever})
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.Str = in.Intern(Type{Kind: KindStr})
	in.builtins.Int = in.Intern(Type{Kind: KindInt, Width: WidthPtr})
	in.builtins.Int8 = in.Intern(Type{Kind: KindInt, Width: Width8})
	in.builtins.Int16 = in.Intern(Type{Kind: KindInt, Width: Width16})
	in.builtins.Int32 = in.Intern(Type{Kind: KindInt, Width: Width32})
	in.builtins.Int64 = in.Intern(Type{Kind: KindInt, Width: Width64})
	in.builtins.Uint = in.Intern(Type{Kind: KindUint, Width: WidthPtr})
	in.builtins.Uint8 = in.Intern(Type{Kind: KindUint, Width: Width8})
	in.builtins.Uint16 = in.Intern(Type{Kind: KindUint, Width: Width16})
	in.builtins.Uint32 = in.Intern(Type{Kind: KindUint, Width: Width32})
	in.builtins.Uint64 = in.Intern(Type{Kind: KindUint, Width: Width64})
	in.builtins.Usize = in.builtins.Uint
	in.builtins.Float32 = in.Intern(Type{Kind: KindFloat, Width: Width32})
	in.builtins.Float64 = in.Intern(Type{Kind: KindFloat, Width: Width64})
	return in
}

// Builtins returns the interner's cached primitive TypeIDs.
func (in *Interner) Builtins() Builtins {
	if in == nil {
		return Builtins{}
	}
	return in.builtins
}

// Intern returns the canonical TypeID for t, allocating a new one if this
// exact structural shape has not been seen before.
func (in *Interner) Intern(t Type) TypeID {
	key := structKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("types: interner overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[key] = id
	return id
}

// Lookup resolves a TypeID to its descriptor. ok is false for NoTypeID or
// an out-of-range id.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	idx := int(id)
	if in == nil || idx <= 0 || idx >= len(in.types) {
		return Type{}, false
	}
	return in.types[idx], true
}

// MustLookup is Lookup but returns the zero Type on failure instead of a
// bool, for call sites that have already validated id.
func (in *Interner) MustLookup(id TypeID) Type {
	t, _ := in.Lookup(id)
	return t
}

// Reference interns &T (mutable indicates &mut T).
func (in *Interner) Reference(elem TypeID, mutable bool) TypeID {
	return in.Intern(Type{Kind: KindReference, Elem: elem, Mutable: mutable})
}

// Pointer interns *const T / *mut T.
func (in *Interner) Pointer(elem TypeID, mutable bool) TypeID {
	return in.Intern(Type{Kind: KindPointer, Elem: elem, Mutable: mutable})
}

// Box interns owned_box<T>.
func (in *Interner) Box(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindBox, Elem: elem})
}

// Array interns a fixed-size array [T; N].
func (in *Interner) Array(elem TypeID, length uint32) TypeID {
	return in.Intern(Type{Kind: KindArray, Elem: elem, Len: length})
}

// Slice interns an unsized slice [T].
func (in *Interner) Slice(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindSlice, Elem: elem})
}

// Tuple interns a tuple type.
func (in *Interner) Tuple(fields ...TypeID) TypeID {
	return in.Intern(Type{Kind: KindTuple, Fields: append([]TypeID(nil), fields...)})
}

// FnPtr interns a function-pointer type.
func (in *Interner) FnPtr(params []TypeID, ret TypeID) TypeID {
	return in.Intern(Type{Kind: KindFnPtr, Fields: append([]TypeID(nil), params...), Ret: ret})
}

// Struct interns a named struct with ordered, named fields.
func (in *Interner) Struct(name string, fieldNames []string, fieldTypes []TypeID) TypeID {
	return in.Intern(Type{
		Kind:       KindStruct,
		Name:       name,
		Fields:     append([]TypeID(nil), fieldTypes...),
		FieldNames: append([]string(nil), fieldNames...),
	})
}

// Union interns a named C-style union (payload-selecting Downcast).
func (in *Interner) Union(name string, fieldNames []string, fieldTypes []TypeID) TypeID {
	return in.Intern(Type{
		Kind:       KindUnion,
		Name:       name,
		Fields:     append([]TypeID(nil), fieldTypes...),
		FieldNames: append([]string(nil), fieldNames...),
	})
}

// Enum interns a named tagged-union enum.
func (in *Interner) Enum(name string, variants []EnumVariant) TypeID {
	return in.Intern(Type{Kind: KindEnum, Name: name, Variants: append([]EnumVariant(nil), variants...)})
}

// TraitObject interns dyn Trait.
func (in *Interner) TraitObject(name string) TypeID {
	return in.Intern(Type{Kind: KindTraitObject, Name: name})
}

// GenericParam interns a placeholder for an unresolved generic parameter
// (monomorphization is out of scope; the core only needs to recognise
// these to reject them from cast/operator legality checks).
func (in *Interner) GenericParam(name string, idx uint32) TypeID {
	return in.Intern(Type{Kind: KindGenericParam, Name: name, ParamIdx: idx})
}

// IsInteger reports whether id names a signed or unsigned integer type.
func (in *Interner) IsInteger(id TypeID) bool {
	t, ok := in.Lookup(id)
	return ok && (t.Kind == KindInt || t.Kind == KindUint)
}

// IsNumeric reports whether id names an integer or float type.
func (in *Interner) IsNumeric(id TypeID) bool {
	t, ok := in.Lookup(id)
	return ok && (t.Kind == KindInt || t.Kind == KindUint || t.Kind == KindFloat)
}

// IsCopy reports whether values of this type are implicitly copied
// rather than moved: all scalar kinds, plus references and raw
// pointers. Aggregates (struct/enum/union/tuple/array/box) are move-only
// in this model unless the caller has other evidence (out of scope).
func (in *Interner) IsCopy(id TypeID) bool {
	t, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch t.Kind {
	case KindBool, KindChar, KindInt, KindUint, KindFloat, KindReference, KindPointer, KindFnPtr:
		return true
	default:
		return false
	}
}

func structKey(t Type) string {
	return fmt.Sprintf("%d|%d|%d|%d|%v|%s|%v|%d|%v", t.Kind, t.Elem, t.Len, t.Width, t.Mutable, t.Name, t.Fields, t.Ret, t.ParamIdx)
}
