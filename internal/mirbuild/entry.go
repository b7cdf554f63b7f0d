package mirbuild

import (
	"context"
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"hirmir/internal/diag"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/resolver"
	"hirmir/internal/types"
)

// LowerFunction runs the expression visitor (internal/lower) over fn via a fresh
// MirBuilder, recovering an internal diag.ICE panic into a returned
// error rather than letting it escape the caller (internal bugs are
// "programmer-facing assertions"; they still must not crash a driver
// lowering many functions).
func LowerFunction(res resolver.Resolver, interner *types.Interner, id mir.FuncID, fn *hir.Func, visit func(*MirBuilder, *hir.Func) error, reporter diag.Reporter) (f *mir.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ice, ok := r.(diag.ICE); ok {
				err = fmt.Errorf("%w", ice)
				return
			}
			panic(r)
		}
	}()

	f = &mir.Function{
		ID:     id,
		Sym:    fn.Sym,
		Name:   fn.Name,
		Span:   fn.Span,
		Result: fn.Result,
		Entry:  mir.NoBlockID,
	}
	for _, p := range fn.Params {
		f.Args = append(f.Args, mir.ArgInfo{Type: p.Type, Span: p.Span})
	}

	b := New(res, interner, f, reporter)
	entry := b.NewBlock(false)
	f.Entry = entry
	b.SetCurrentBlock(entry)

	if err := visit(b, fn); err != nil {
		return nil, err
	}

	if !b.BlockTerminated() {
		if fn.Result == types.NoTypeID {
			b.Terminate(fn.Span, mir.ReturnTerm())
		} else {
			diag.Bug(fn.Span, "function %q falls off the end without a terminator", fn.Name)
		}
	}
	return f, nil
}

// LowerModule fans independent LowerFunction calls out across a worker
// pool. Each worker owns its own MirBuilder; hirMod, res, and the type
// interner are read-only for the whole call.
func LowerModule(ctx context.Context, hirMod *hir.Module, res resolver.Resolver, interner *types.Interner, visit func(*MirBuilder, *hir.Func) error, reporter diag.Reporter, jobs int) (*mir.Module, error) {
	out := mir.NewModule()
	if hirMod == nil {
		return out, nil
	}

	type result struct {
		idx int
		f   *mir.Function
	}
	results := make([]result, len(hirMod.Funcs))

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, fn := range hirMod.Funcs {
		i, fn := i, fn
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			id, err := safecast.Conv[int32](i + 1)
			if err != nil {
				return fmt.Errorf("mirbuild: function id overflow: %w", err)
			}
			f, err := LowerFunction(res, interner, mir.FuncID(id), fn, visit, reporter)
			if err != nil {
				return fmt.Errorf("lowering %q: %w", fn.Name, err)
			}
			results[i] = result{idx: i, f: f}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.f != nil {
			out.Add(r.f)
		}
	}
	return out, nil
}
