// Package driver wires the lowering pipeline end to end: HIR module in,
// validated MIR module out. It owns the per-function visitor setup, the
// generator post-pass, and the final validation gate, kept here so the
// CLI and tests share one pipeline instead of each re-wiring the core
// by hand.
package driver

import (
	"context"
	"fmt"
	"sync"

	"hirmir/internal/config"
	"hirmir/internal/diag"
	"hirmir/internal/generator"
	"hirmir/internal/hir"
	"hirmir/internal/lower"
	"hirmir/internal/mir"
	"hirmir/internal/mirbuild"
	"hirmir/internal/resolver"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// Pipeline bundles the shared collaborators one lowering run needs;
// the trait resolver and HIR are treated as immutable for its whole
// duration.
type Pipeline struct {
	Resolver resolver.Resolver
	Types    *types.Interner
	Symbols  *symbols.Table
	Reporter diag.Reporter
	Config   config.Config
}

// Lower runs the whole pipeline over hirMod: parallel per-function
// lowering, the generator transform for every generator body, then
// validation. A user-level lowering failure in any function fails the
// whole call (the Reporter still sees every diagnostic produced up to
// that point).
func (p *Pipeline) Lower(ctx context.Context, hirMod *hir.Module) (*mir.Module, error) {
	var mu sync.Mutex
	genInfos := make(map[*mir.Function]*lower.GeneratorInfo)

	visit := func(b *mirbuild.MirBuilder, fn *hir.Func) error {
		v := lower.NewVisitor(b, p.Resolver, p.Types, p.Symbols, p.Reporter)
		v.PlacerEmplace = p.Config.TargetVersion.UsesPlacer()
		if err := v.LowerFunction(fn); err != nil {
			if d, ok := err.(*diag.Diagnostic); ok && p.Reporter != nil {
				p.Reporter.Report(*d)
			}
			return err
		}
		if v.Generator != nil {
			mu.Lock()
			genInfos[b.Function()] = v.Generator
			mu.Unlock()
		}
		return nil
	}

	mod, err := mirbuild.LowerModule(ctx, hirMod, p.Resolver, p.Types, visit, p.Reporter, p.Config.Jobs)
	if err != nil {
		return nil, err
	}

	for _, f := range moduleFuncs(mod) {
		info, ok := genInfos[f]
		if !ok {
			continue
		}
		if err := generator.Transform(mod, f, info); err != nil {
			return nil, fmt.Errorf("generator transform for %q: %w", f.Name, err)
		}
	}

	if err := mir.Validate(mod, mir.ValidateOptions{FullInit: p.Config.FullValidation}); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	return mod, nil
}

// moduleFuncs snapshots mod.Funcs into a slice so the generator loop can
// add drop-glue functions to the map while iterating.
func moduleFuncs(mod *mir.Module) []*mir.Function {
	out := make([]*mir.Function, 0, len(mod.Funcs))
	for _, f := range mod.Funcs {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
