package generator

import (
	"sort"

	"hirmir/internal/lower"
	"hirmir/internal/mir"
	"hirmir/internal/source"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// buildDropGlue synthesizes the drop-glue Function for a generator:
// dropping a generator mid-flight must only destroy the fields actually
// populated in its current state — captures if it was never polled, a
// yield's snapshot if suspended there, nothing once it has completed.
// It is itself a plain Function sharing the same argument-0/self
// convention and field layout as fn (see liftMap), registered in mod
// under a fresh FuncID.
func buildDropGlue(mod *mir.Module, fn *mir.Function, lm *liftMap, captureLocals []mir.Local, sites []lower.YieldSite) mir.FuncID {
	id := nextFuncID(mod)
	df := &mir.Function{
		ID:     id,
		Sym:    symbols.NoSymbolID,
		Name:   fn.Name + "::drop",
		Span:   fn.Span,
		Result: types.NoTypeID,
		Args:   []mir.ArgInfo{{Type: types.NoTypeID}},
	}

	retBB := newBlock(df)
	df.Blocks[retBB].Term = mir.ReturnTerm()

	targets := make([]mir.BlockID, 0, len(sites)+2)
	targets = append(targets, dropStateBlock(df, lm, captureLocals, retBB))
	for _, site := range sites {
		targets = append(targets, dropStateBlock(df, lm, site.LiveLocals, retBB))
	}
	targets = append(targets, retBB) // End: already complete, nothing to drop.

	entry := newBlock(df)
	df.Entry = entry
	df.Blocks[entry].Term = mir.SwitchTerm(mir.Argument(0).Deref().Field(0), targets)

	mod.Add(df)
	return id
}

// dropStateBlock emits a Drop for each distinct lifted place one of
// locals maps to, innermost (highest lift order) first — the same
// declaration-reverse order Scope.Pop uses for an ordinary scope exit.
func dropStateBlock(df *mir.Function, lm *liftMap, locals []mir.Local, retBB mir.BlockID) mir.BlockID {
	bb := newBlock(df)

	seen := make(map[int]bool, len(locals))
	ordered := make([]mir.Local, 0, len(locals))
	for _, l := range locals {
		idx, ok := lm.order[l]
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		ordered = append(ordered, l)
	}
	sort.Slice(ordered, func(i, j int) bool { return lm.order[ordered[i]] > lm.order[ordered[j]] })

	for _, l := range ordered {
		df.Blocks[bb].Statements = append(df.Blocks[bb].Statements, mir.Drop(source.NoSpan, lm.place[l], mir.DropDeep))
	}
	df.Blocks[bb].Term = mir.GotoTerm(retBB)
	return bb
}
