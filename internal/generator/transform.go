// Package generator implements the generator transform: the post-pass
// that turns the yield-site bookkeeping
// internal/lower's generator-body visitor produced into an actual
// resumable state machine. It never runs concurrently with the
// expression-lowering visitor — Transform runs as a discrete pass once
// a generator body's Function has been fully built by
// internal/mirbuild, never interleaved with expression lowering
// itself.
package generator

import (
	"fmt"
	"sort"

	"fortio.org/safecast"

	"hirmir/internal/lower"
	"hirmir/internal/mir"
)

// Transform finishes lowering fn (already IsGenerator-eligible per the
// GeneratorInfo a generator-body lowering produced) into a state
// machine:
//
//  1. lifts fn's captures and every local ever live across a yield into
//     fn.GeneratorFields — one flat, deduplicated field table shared by
//     every resume state;
//  2. rewrites every access to one of those locals, throughout the
//     whole function, into a projection through the generator's own
//     struct (argument 0, the self reference) instead of a plain local
//     slot — captures as a direct field of *self, saved locals through
//     the deeper MaybeUninit/ManuallyDrop path (see liftMap in
//     rewrite.go for the field layout);
//  3. replaces fn.Entry with a dispatch block that switches on the
//     state discriminant already written by internal/lower's Yield
//     handling, routing state 0 to the original body entry, each
//     Known_i to the matching yield's resume block, and End to an
//     unconditional Diverge (resuming an exhausted generator is a bug,
//     not a user error, at this layer);
//  4. synthesizes a sibling drop-glue Function recorded as
//     fn.DropFuncID.
//
// mod is required so the drop-glue function has somewhere to live.
func Transform(mod *mir.Module, fn *mir.Function, info *lower.GeneratorInfo) error {
	if fn == nil || info == nil {
		return nil
	}
	if mod == nil {
		return fmt.Errorf("generator: Transform requires a module to host the drop-glue function")
	}

	lm := newLiftMap()
	var fields []mir.GeneratorField
	fieldName := func(l mir.Local, prefix string) string {
		if int(l) >= 0 && int(l) < len(fn.Locals) && fn.Locals[l].Name != "" {
			return fn.Locals[l].Name
		}
		return fmt.Sprintf("%s%d", prefix, len(fields))
	}

	// Captures occupy the struct fields right after the discriminant,
	// one field each, and are reached by a single projection of *self.
	slot := 1
	for _, l := range info.CaptureLocals {
		if lm.lifted(l) {
			continue
		}
		lm.add(l, mir.Argument(0).Deref().Field(slot))
		fields = append(fields, mir.GeneratorField{Name: fieldName(l, "capture"), Type: fn.LocalType(l), Local: l})
		slot++
	}

	// Saved locals share one further field: a tuple of every local ever
	// live across a yield, wrapped so the runtime controls its
	// initialisation and drop explicitly. Access goes through the two
	// wrapper layers, then the local's slot in the tuple.
	stateField := slot
	sites := append([]lower.YieldSite(nil), info.YieldSites...)
	sort.Slice(sites, func(i, j int) bool { return sites[i].State < sites[j].State })
	saved := 0
	for _, site := range sites {
		locs := append([]mir.Local(nil), site.LiveLocals...)
		sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
		for _, l := range locs {
			if lm.lifted(l) {
				continue
			}
			lm.add(l, mir.Argument(0).Deref().Field(stateField).Field(0).Field(0).Field(saved))
			fields = append(fields, mir.GeneratorField{Name: fieldName(l, "save"), Type: fn.LocalType(l), Local: l})
			saved++
		}
	}

	fn.GeneratorFields = fields
	fn.IsGenerator = true
	fn.GeneratorEnum = info.StateEnumSym
	fn.GeneratorStruct = info.DataStructSym

	variants := make([]mir.GeneratorVariant, 0, len(sites)+2)
	for i := 0; i <= len(sites); i++ {
		variants = append(variants, mir.GeneratorVariant{Name: fmt.Sprintf("Known%d", i)})
	}
	variants = append(variants, mir.GeneratorVariant{Name: "End"})
	fn.GeneratorVariants = variants

	rewriteFunctionLocals(fn, lm)

	oldEntry := fn.Entry
	endBB := newBlock(fn)
	fn.Blocks[endBB].Term = mir.DivergeTerm()

	targets := make([]mir.BlockID, 0, len(sites)+2)
	targets = append(targets, oldEntry)
	for _, site := range sites {
		targets = append(targets, site.ResumeBB)
	}
	targets = append(targets, endBB)

	entryBB := newBlock(fn)
	fn.Blocks[entryBB].Term = mir.SwitchTerm(mir.Argument(0).Deref().Field(0), targets)
	fn.Entry = entryBB

	fn.DropFuncID = buildDropGlue(mod, fn, lm, info.CaptureLocals, sites)
	return nil
}

func newBlock(f *mir.Function) mir.BlockID {
	raw, err := safecast.Conv[int32](len(f.Blocks))
	if err != nil {
		panic(fmt.Errorf("generator: block id overflow: %w", err))
	}
	id := mir.BlockID(raw)
	f.Blocks = append(f.Blocks, mir.BasicBlock{})
	return id
}

func nextFuncID(mod *mir.Module) mir.FuncID {
	var max mir.FuncID
	for id := range mod.Funcs {
		if id > max {
			max = id
		}
	}
	return max + 1
}
