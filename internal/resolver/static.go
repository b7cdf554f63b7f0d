package resolver

import (
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// Static is a minimal in-memory Resolver implementation: a fixed table
// of impls, lang items, and layouts supplied up front. It performs no
// trait solving or inference of its own — callers populate exactly the
// facts a fixture needs, which is the deliberate boundary described in
// the Non-goals section (no trait-selection engine lives in this repo).
type Static struct {
	interner *types.Interner
	langs    map[string]symbols.SymbolID
	impls    []ImplRef
	assoc    map[types.TypeID]types.TypeID
	impossible map[types.TypeID]bool
	layouts  map[types.TypeID]SizeAndAlign
}

// NewStatic creates an empty Static resolver backed by interner for
// default layout fallback (GetSizeAndAlign falls back to a scalar
// estimate derived from types.Width when no explicit layout was set).
func NewStatic(interner *types.Interner) *Static {
	return &Static{
		interner:   interner,
		langs:      make(map[string]symbols.SymbolID),
		assoc:      make(map[types.TypeID]types.TypeID),
		impossible: make(map[types.TypeID]bool),
		layouts:    make(map[types.TypeID]SizeAndAlign),
	}
}

// SetLangItem registers a lang item's resolving symbol for CrateLookup.
func (s *Static) SetLangItem(name string, sym symbols.SymbolID) {
	s.langs[name] = sym
}

// AddImpl registers an impl FindImpl can return.
func (s *Static) AddImpl(impl ImplRef) {
	s.impls = append(s.impls, impl)
}

// SetAssociatedType fixes the expansion of a projection type.
func (s *Static) SetAssociatedType(projection, concrete types.TypeID) {
	s.assoc[projection] = concrete
}

// MarkImpossible flags ty as uninhabited.
func (s *Static) MarkImpossible(ty types.TypeID) {
	s.impossible[ty] = true
}

// SetLayout fixes an explicit layout for ty, overriding the scalar
// fallback GetSizeAndAlign otherwise computes.
func (s *Static) SetLayout(ty types.TypeID, sa SizeAndAlign) {
	s.layouts[ty] = sa
}

func (s *Static) FindImpl(span source.Span, traitSym symbols.SymbolID, params []types.TypeID, ty types.TypeID, pred ImplPredicate) (ImplRef, bool) {
	for _, impl := range s.impls {
		if impl.TraitSym != traitSym || impl.ForType != ty {
			continue
		}
		if pred != nil && !pred(impl, false) {
			continue
		}
		return impl, true
	}
	return ImplRef{}, false
}

func (s *Static) ExpandAssociatedTypes(span source.Span, ty types.TypeID) types.TypeID {
	if concrete, ok := s.assoc[ty]; ok {
		return concrete
	}
	return ty
}

func (s *Static) TypeIsImpossible(span source.Span, ty types.TypeID) bool {
	return s.impossible[ty]
}

func (s *Static) CrateLookup(langItem string) (symbols.SymbolID, bool) {
	sym, ok := s.langs[langItem]
	return sym, ok
}

func (s *Static) GetSizeAndAlign(span source.Span, ty types.TypeID) SizeAndAlign {
	if sa, ok := s.layouts[ty]; ok {
		return sa
	}
	if s.interner == nil {
		return SizeAndAlign{}
	}
	t, _ := s.interner.Lookup(ty)
	switch t.Kind {
	case types.KindSlice, types.KindStr, types.KindTraitObject:
		return SizeAndAlign{IsDynSize: true}
	default:
		w := widthBytes(t.Width)
		return SizeAndAlign{Size: w, Align: w}
	}
}

func widthBytes(w types.Width) uint64 {
	switch w {
	case types.WidthPtr:
		return 8
	case types.Width8:
		return 1
	case types.Width16:
		return 2
	case types.Width32:
		return 4
	case types.Width64:
		return 8
	case types.Width128:
		return 16
	default:
		return 0
	}
}
