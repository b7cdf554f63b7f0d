// Package resolver models the trait/type resolution contract the
// lowering core consumes as an external collaborator. The core
// never performs trait selection, associated-type expansion, or layout
// computation itself — it asks a Resolver. Trait selection and const
// evaluation remain Non-goals here; this package ships only
// the interface plus a minimal in-memory test-double (Static) so the
// core can be driven end-to-end against fixtures without a real
// resolver implementation.
package resolver

import (
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// ImplPredicate filters candidate impls during FindImpl, letting a
// call site reject impls it cannot use (wrong mutability, fuzzy match)
// without the resolver growing a query language.
type ImplPredicate func(impl ImplRef, fuzzy bool) bool

// ImplRef names a single trait impl a resolver found.
type ImplRef struct {
	TraitSym symbols.SymbolID
	ForType  types.TypeID
}

// SizeAndAlign is a target-dependent layout result.
type SizeAndAlign struct {
	Size      uint64
	Align     uint64
	IsDynSize bool // true for an unsized tail (slice/str/trait-object)
}

// Resolver is the trait/type resolution contract the lowering core and
// generator transform call into. It is intentionally narrow: only the
// operations the HIR→MIR visitor itself needs, not a general
// trait-solving API.
type Resolver interface {
	// FindImpl reports whether some impl of traitSym (with the given
	// params) exists for ty, subject to pred; used for Unsize legality
	// and overloaded-deref/operator dispatch.
	FindImpl(span source.Span, traitSym symbols.SymbolID, params []types.TypeID, ty types.TypeID, pred ImplPredicate) (ImplRef, bool)

	// ExpandAssociatedTypes resolves a projection type (`<T as Trait>::Assoc`)
	// down to a concrete TypeID, if it is currently resolvable.
	ExpandAssociatedTypes(span source.Span, ty types.TypeID) types.TypeID

	// TypeIsImpossible reports whether ty has no possible value (e.g. an
	// empty enum, or a generic bound that cannot be satisfied) — used to
	// justify a Diverge terminator instead of a normal return.
	TypeIsImpossible(span source.Span, ty types.TypeID) bool

	// CrateLookup resolves a lang-item name (e.g. "owned_box",
	// "exchange_malloc", "placer_trait", "maybe_uninit") to the symbol
	// implementing it in the current crate graph.
	CrateLookup(langItem string) (symbols.SymbolID, bool)

	// GetSizeAndAlign computes a target-dependent layout for ty.
	GetSizeAndAlign(span source.Span, ty types.TypeID) SizeAndAlign
}

// LangItems is the conventional set of lang-item names the lowering core
// looks up by name, matching the original
// compiler's string literals at its `get_lang_item_path` call sites.
const (
	LangOwnedBox       = "owned_box"
	LangExchangeMalloc = "exchange_malloc"
	LangPlacerTrait    = "placer_trait"
	LangBoxedTrait     = "boxed_trait"
	LangPlaceTrait     = "place_trait"
	LangBoxPlaceTrait  = "box_place_trait"
	LangInPlaceTrait   = "in_place_trait"
	LangUnsize         = "unsize"
	LangDeref          = "deref"
	LangDerefMut       = "deref_mut"
	LangMaybeUninit    = "maybe_uninit"
	LangDropInPlace    = "drop_in_place"
	LangPanicBoundsCheck = "panic_bounds_check"
)
