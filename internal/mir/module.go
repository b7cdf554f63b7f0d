package mir

import "hirmir/internal/symbols"

// Module is the set of Functions produced by lowering, the unit
// internal/mirwire (de)serializes and internal/mirbuild.LowerModule
// fans work out across.
type Module struct {
	Funcs     map[FuncID]*Function
	FuncBySym map[symbols.SymbolID]FuncID
}

// NewModule creates an empty Module.
func NewModule() *Module {
	return &Module{Funcs: make(map[FuncID]*Function), FuncBySym: make(map[symbols.SymbolID]FuncID)}
}

// Add registers f in the module, indexing it by symbol.
func (m *Module) Add(f *Function) {
	m.Funcs[f.ID] = f
	m.FuncBySym[f.Sym] = f.ID
}
