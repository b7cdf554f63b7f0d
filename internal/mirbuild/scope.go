package mirbuild

import (
	"hirmir/internal/mir"
	"hirmir/internal/source"
	"hirmir/internal/types"
)

// ScopeKind enumerates the four drop-scope kinds.
type ScopeKind uint8

const (
	ScopeVariable ScopeKind = iota
	ScopeTemporary
	ScopeLoop
	ScopeSplit
)

// ScopeID stably identifies a scope for the lifetime of one function
// lowering: scopes live in an explicit vector owned by the builder and
// are addressed by id, never by pointer arithmetic on the stack.
type ScopeID int32

// NoScopeID marks the absence of a scope reference.
const NoScopeID ScopeID = -1

// liveEntry tracks one local's drop responsibility within a scope.
type liveEntry struct {
	local mir.Local
	typ   types.TypeID
	moved bool
}

// splitArm accumulates the per-local initialization state observed
// while lowering one arm of a Split scope.
type splitArm struct {
	reachable bool
	init      map[mir.Local]bool
}

// Scope is one entry of the drop-scope stack.
type Scope struct {
	ID   ScopeID
	Kind ScopeKind
	Live []liveEntry

	// ScopeLoop fields: break/continue targets and a result slot.
	Label        string
	RequireLabel bool
	ContinueBB   mir.BlockID
	BreakBB      mir.BlockID
	ResultSlot   mir.LValue
	HasResult    bool
	ResultType   types.TypeID

	// ScopeSplit fields.
	arms        []splitArm
	currentArm  int
	baseInit    map[mir.Local]bool
}

// ScopeStack is the LIFO drop-scope stack owned by one MirBuilder.
type ScopeStack struct {
	b            *MirBuilder
	scopes       []*Scope
	nextID       ScopeID
	raiseTargets []ScopeID
}

func newScopeStack(b *MirBuilder) *ScopeStack {
	return &ScopeStack{b: b}
}

func (s *ScopeStack) alloc(kind ScopeKind) *Scope {
	sc := &Scope{ID: s.nextID, Kind: kind}
	s.nextID++
	s.scopes = append(s.scopes, sc)
	return sc
}

// PushVariable opens a new variable scope: it owns named locals bound
// by patterns and drops them on exit.
func (s *ScopeStack) PushVariable() *Scope { return s.alloc(ScopeVariable) }

// PushTemporary opens a new temporary scope tracking the temporaries
// allocated while evaluating an expression.
func (s *ScopeStack) PushTemporary() *Scope { return s.alloc(ScopeTemporary) }

// PushLoop opens a new loop scope with its break/continue targets and
// optional result slot.
func (s *ScopeStack) PushLoop(label string, requireLabel bool, continueBB, breakBB mir.BlockID) *Scope {
	sc := s.alloc(ScopeLoop)
	sc.Label = label
	sc.RequireLabel = requireLabel
	sc.ContinueBB = continueBB
	sc.BreakBB = breakBB
	return sc
}

// PushSplit opens a new split scope with nArms arms, each initialized
// from the current live-local initialization state.
func (s *ScopeStack) PushSplit(nArms int) *Scope {
	sc := s.alloc(ScopeSplit)
	base := s.currentInitSnapshot()
	sc.baseInit = base
	sc.arms = make([]splitArm, nArms)
	for i := range sc.arms {
		sc.arms[i] = splitArm{init: cloneInitMap(base)}
	}
	return sc
}

// currentInitSnapshot returns the set of locals currently considered
// live (initialized) across the whole stack, used to seed a new split
// scope's per-arm baseline.
func (s *ScopeStack) currentInitSnapshot() map[mir.Local]bool {
	out := make(map[mir.Local]bool)
	for _, sc := range s.scopes {
		for _, e := range sc.Live {
			if !e.moved {
				out[e.local] = true
			}
		}
	}
	return out
}

func cloneInitMap(m map[mir.Local]bool) map[mir.Local]bool {
	out := make(map[mir.Local]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Top returns the innermost scope, or nil if the stack is empty.
func (s *ScopeStack) Top() *Scope {
	if len(s.scopes) == 0 {
		return nil
	}
	return s.scopes[len(s.scopes)-1]
}

// ByID returns the scope with the given id, or nil.
func (s *ScopeStack) ByID(id ScopeID) *Scope {
	for _, sc := range s.scopes {
		if sc.ID == id {
			return sc
		}
	}
	return nil
}

// DeclareLocal records local as live within scope (or, if a raise
// target is currently active, within the raise target scope instead).
// Re-declaring an already-live local is a no-op;
// re-declaring a moved-from local re-initialises it in place (the value
// lives again, in whichever scope first owned it). Returns the scope
// that actually ends up owning the drop.
func (s *ScopeStack) DeclareLocal(scope *Scope, local mir.Local, ty types.TypeID) *Scope {
	for _, sc := range s.scopes {
		for i := range sc.Live {
			if sc.Live[i].local == local {
				sc.Live[i].moved = false
				s.recordInit(local, true)
				return sc
			}
		}
	}
	owner := scope
	if len(s.raiseTargets) > 0 {
		target := s.raiseTargets[len(s.raiseTargets)-1]
		if t := s.ByID(target); t != nil {
			owner = t
		}
	}
	owner.Live = append(owner.Live, liveEntry{local: local, typ: ty})
	s.recordInit(local, true)
	return owner
}

// DeclareVar records a named binding in the innermost Variable scope —
// the scope that owns `let`-introduced locals regardless of how many
// temporary scopes the initialiser expression opened in between. Falls
// back to the innermost scope when no variable scope is open.
func (s *ScopeStack) DeclareVar(local mir.Local, ty types.TypeID) *Scope {
	sc := s.ByID(s.NearestVariableScopeID())
	if sc == nil {
		sc = s.Top()
	}
	if sc == nil {
		return nil
	}
	return s.DeclareLocal(sc, local, ty)
}

// PushRaiseTarget designates target as the scope that newly declared
// temporaries should be raised into, for the duration of visiting the
// operand of `&`/`&mut` or a deref inside a borrow.
func (s *ScopeStack) PushRaiseTarget(target ScopeID) {
	s.raiseTargets = append(s.raiseTargets, target)
}

// HasRaiseTarget reports whether a raise target is currently active.
func (s *ScopeStack) HasRaiseTarget() bool {
	return len(s.raiseTargets) > 0
}

// PopRaiseTarget removes the most recently pushed raise target.
func (s *ScopeStack) PopRaiseTarget() {
	if len(s.raiseTargets) == 0 {
		return
	}
	s.raiseTargets = s.raiseTargets[:len(s.raiseTargets)-1]
}

// Raise moves local's live-entry from its current owning scope directly
// to target, regardless of any active raise-target stack — used when
// the visitor has already allocated the temporary in the innermost
// scope and only later discovers (via a `let x = &expr;` initializer)
// that it must outlive that scope.
func (s *ScopeStack) Raise(local mir.Local, target ScopeID) {
	dst := s.ByID(target)
	if dst == nil {
		return
	}
	for _, sc := range s.scopes {
		if sc.ID == target {
			continue
		}
		for i, e := range sc.Live {
			if e.local == local {
				sc.Live = append(sc.Live[:i], sc.Live[i+1:]...)
				dst.Live = append(dst.Live, e)
				return
			}
		}
	}
}

// MarkMoved marks local as moved-from on the current path: no scope
// will emit a drop for it on exit.
func (s *ScopeStack) MarkMoved(local mir.Local) {
	for _, sc := range s.scopes {
		for i := range sc.Live {
			if sc.Live[i].local == local {
				sc.Live[i].moved = true
			}
		}
	}
	s.recordInit(local, false)
}

func (s *ScopeStack) recordInit(local mir.Local, initialized bool) {
	for _, sc := range s.scopes {
		if sc.Kind != ScopeSplit || sc.currentArm >= len(sc.arms) {
			continue
		}
		sc.arms[sc.currentArm].init[local] = initialized
	}
}

// BeginArm marks arm i of split scope sc as the one currently being
// lowered, so subsequent DeclareLocal/MarkMoved calls update its
// per-local initialization map.
func (sc *Scope) BeginArm(i int) {
	sc.currentArm = i
}

// EndArm records whether arm i was reachable (i.e. control did not
// unconditionally diverge within it) — an unreachable arm does not
// constrain the merged initialization state: if one arm diverges, only
// the other contributes initialisation.
func (sc *Scope) EndArm(i int, reachable bool) {
	if i >= 0 && i < len(sc.arms) {
		sc.arms[i].reachable = reachable
	}
}

// Merge computes the post-join initialization set: a local is
// considered initialized iff it is initialized on every reachable arm.
// The merged set is propagated back into the
// enclosing scope's initialization bookkeeping by the caller (the
// visitor), which knows which locals are in scope after the join.
func (sc *Scope) Merge() map[mir.Local]bool {
	merged := make(map[mir.Local]bool)
	any := false
	for _, arm := range sc.arms {
		if !arm.reachable {
			continue
		}
		any = true
		if len(merged) == 0 {
			for k, v := range arm.init {
				if v {
					merged[k] = true
				}
			}
			continue
		}
		for k := range merged {
			if !arm.init[k] {
				delete(merged, k)
			}
		}
	}
	if !any {
		return map[mir.Local]bool{}
	}
	return merged
}

// needsDrop reports whether a value of ty has a destructor worth
// emitting a Drop for. Copy types (scalars, references, pointers) have
// none, and an unknown type is a compiler-internal temporary (generator
// plumbing) that no drop glue exists for.
func (s *ScopeStack) needsDrop(ty types.TypeID) bool {
	if ty == types.NoTypeID || s.b.Types == nil {
		return false
	}
	t, ok := s.b.Types.Lookup(ty)
	if !ok {
		return false
	}
	switch t.Kind {
	case types.KindNever, types.KindUnit:
		return false
	}
	return !s.b.Types.IsCopy(ty)
}

// Pop emits drops for scope's live, non-moved locals (innermost
// declaration first, i.e. reverse of declaration order) unless
// emitCleanup is false, then removes it from the stack. This is the
// ordinary (non-early-termination) scope exit.
func (s *ScopeStack) Pop(span source.Span, emitCleanup bool) {
	sc := s.Top()
	if sc == nil {
		return
	}
	if emitCleanup {
		for i := len(sc.Live) - 1; i >= 0; i-- {
			e := sc.Live[i]
			if e.moved || !s.needsDrop(e.typ) {
				continue
			}
			s.b.EmitDrop(span, mir.LocalLV(e.local), mir.DropDeep)
		}
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// FindLoop returns the innermost loop scope matching label (or, if
// label is empty, the innermost loop scope regardless of its own
// label) — the lookup rule break/continue use.
func (s *ScopeStack) FindLoop(label string) *Scope {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		sc := s.scopes[i]
		if sc.Kind != ScopeLoop {
			continue
		}
		if label == "" || sc.Label == label {
			return sc
		}
	}
	return nil
}

// EarlyTerminate emits drops for every live, non-moved local in every
// scope from the top of the stack down to and including target,
// innermost first, WITHOUT popping any of them — the scopes remain on
// the logical stack so normal control resumes where the early exit
// diverged from.
// If emitCleanup is false, no drops are emitted for any scope in the
// range (the caller has already taken responsibility, e.g. a nested
// early-return whose drops were emitted by an even-earlier exit).
func (s *ScopeStack) EarlyTerminate(span source.Span, target ScopeID, emitCleanup bool) {
	if !emitCleanup {
		return
	}
	for i := len(s.scopes) - 1; i >= 0; i-- {
		sc := s.scopes[i]
		for j := len(sc.Live) - 1; j >= 0; j-- {
			e := sc.Live[j]
			if e.moved || !s.needsDrop(e.typ) {
				continue
			}
			s.b.EmitDrop(span, mir.LocalLV(e.local), mir.DropDeep)
		}
		if sc.ID == target {
			return
		}
	}
}

// LiveLocals returns every local currently considered live (declared and
// not moved-from) across the whole scope stack, innermost scopes first —
// the yield-site snapshot the generator transform consumes.
func (s *ScopeStack) LiveLocals() []mir.Local {
	var out []mir.Local
	for i := len(s.scopes) - 1; i >= 0; i-- {
		for _, e := range s.scopes[i].Live {
			if !e.moved {
				out = append(out, e.local)
			}
		}
	}
	return out
}

// NearestVariableScopeID returns the id of the innermost Variable scope
// on the stack, or NoScopeID if there is none — the default raise
// target for a `let x = &EXPR;` initializer, since the
// binding `x` itself lives in that scope.
func (s *ScopeStack) NearestVariableScopeID() ScopeID {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i].Kind == ScopeVariable {
			return s.scopes[i].ID
		}
	}
	return NoScopeID
}

// FunctionScopeID returns the id of the outermost (function-body)
// scope, or NoScopeID if the stack is empty — Return's early
// termination target.
func (s *ScopeStack) FunctionScopeID() ScopeID {
	if len(s.scopes) == 0 {
		return NoScopeID
	}
	return s.scopes[0].ID
}
