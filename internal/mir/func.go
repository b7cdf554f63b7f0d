package mir

import (
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// LocalDecl describes one entry of a Function's local-type table.
type LocalDecl struct {
	Type types.TypeID
	Name string // empty for compiler-introduced temporaries
	Span source.Span
}

// ArgInfo is one entry of argument metadata inherited from the HIR
// signature.
type ArgInfo struct {
	Type types.TypeID
	Span source.Span
}

// GeneratorVariant is one state-discriminant enum variant written back
// by the generator transform.
type GeneratorVariant struct {
	Name string // "Known0".."KnownN" for N yield sites, then "End"
}

// GeneratorField is one entry of the generator's lifted state-data
// struct.
type GeneratorField struct {
	Name  string
	Type  types.TypeID
	Local Local // originating saved/captured local, for drop-glue synthesis
}

// Function is a fully lowered MIR function.
type Function struct {
	ID     FuncID
	Sym    symbols.SymbolID
	Name   string
	Span   source.Span

	Result types.TypeID
	Args   []ArgInfo

	Locals []LocalDecl
	Blocks []BasicBlock
	Entry  BlockID

	// IsGenerator marks a function whose body went through the
	// generator transform. The following fields are populated
	// only when true.
	IsGenerator      bool
	GeneratorEnum    symbols.SymbolID // the state-discriminant enum's symbol
	GeneratorVariants []GeneratorVariant
	GeneratorStruct  symbols.SymbolID // the state-data struct's symbol
	GeneratorFields  []GeneratorField
	// DropFuncID names the synthesised drop-glue function,
	// itself a plain Function living in the same Module.
	DropFuncID FuncID
}

// LocalType returns the declared type of local l, or types.NoTypeID if
// out of range (local refs must be < locals.len()).
func (f *Function) LocalType(l Local) types.TypeID {
	if int(l) < 0 || int(l) >= len(f.Locals) {
		return types.NoTypeID
	}
	return f.Locals[l].Type
}

// ValidLocal reports whether l indexes an existing local.
func (f *Function) ValidLocal(l Local) bool {
	return int(l) >= 0 && int(l) < len(f.Locals)
}

// ValidBlock reports whether id indexes an existing block.
func (f *Function) ValidBlock(id BlockID) bool {
	return int(id) >= 0 && int(id) < len(f.Blocks)
}
