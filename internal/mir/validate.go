package mir

import (
	"errors"
	"fmt"
)

// ValidateOptions tunes the post-construction check: the basic
// structural invariants always run; the initialisation-consistency
// dataflow pass is opt-in because it is quadratic-ish in CFG size and a
// driver lowering a large module normally only wants it under a
// diagnostic flag.
type ValidateOptions struct {
	FullInit bool
}

// Validate checks MIR module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module, opts ValidateOptions) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := ValidateFunc(f, opts); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunc runs the single-pass verification over one function:
// block termination, block-id validity, local-index validity, call
// shape, and — under opts.FullInit — assigned-before-use
// consistency.
func ValidateFunc(f *Function, opts ValidateOptions) error {
	if f == nil {
		return nil
	}

	var errs []error

	if err := validateBlocksTerminated(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateLocalIDs(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateCallShape(f); err != nil {
		errs = append(errs, err)
	}
	if opts.FullInit {
		if err := validateInitConsistency(f); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// validateBlocksTerminated checks that every block ends with a terminator.
func validateBlocksTerminated(f *Function) error {
	var errs []error
	for i := range f.Blocks {
		if f.Blocks[i].Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

// validateBlockTargets checks that all block target IDs exist.
func validateBlockTargets(f *Function) error {
	var errs []error

	check := func(bb int, what string, id BlockID) {
		if !f.ValidBlock(id) {
			errs = append(errs, fmt.Errorf("bb%d: %s target bb%d does not exist", bb, what, id))
		}
	}

	for i := range f.Blocks {
		t := &f.Blocks[i].Term
		switch t.Kind {
		case TermGoto:
			check(i, "goto", t.GotoTarget)
		case TermIf:
			check(i, "if then", t.IfTrue)
			check(i, "if else", t.IfFalse)
		case TermSwitch:
			for j, target := range t.SwitchTargets {
				if !f.ValidBlock(target) {
					errs = append(errs, fmt.Errorf("bb%d: switch arm %d target bb%d does not exist", i, j, target))
				}
			}
		case TermSwitchValue:
			for j, c := range t.SwitchValCases {
				if !f.ValidBlock(c.Target) {
					errs = append(errs, fmt.Errorf("bb%d: switch_value case %d target bb%d does not exist", i, j, c.Target))
				}
			}
			check(i, "switch_value default", t.SwitchValDefault)
		case TermCall:
			check(i, "call next", t.CallNext)
			check(i, "call panic", t.CallPanic)
		}
	}
	return errors.Join(errs...)
}

// validateLocalIDs checks that all Local references are valid,
// including Index wrappers' index-holding locals.
func validateLocalIDs(f *Function) error {
	var errs []error

	checkLValue := func(lv LValue, context string) {
		if lv.Root == RootLocal && !f.ValidLocal(lv.Local) {
			errs = append(errs, fmt.Errorf("%s: local L%d does not exist", context, lv.Local))
		}
		if lv.Root == RootArgument && (lv.Argument < 0 || lv.Argument >= len(f.Args)) {
			errs = append(errs, fmt.Errorf("%s: argument %d does not exist", context, lv.Argument))
		}
		for _, w := range lv.Wrappers {
			if w.Kind == WrapIndex && !f.ValidLocal(w.Local) {
				errs = append(errs, fmt.Errorf("%s: index local L%d does not exist", context, w.Local))
			}
		}
	}

	checkParam := func(p Param, context string) {
		if p.Kind == ParamUse {
			checkLValue(p.LValue, context)
		}
	}

	checkRValue := func(rv RValue, context string) {
		switch rv.Kind {
		case RValueUse:
			checkLValue(rv.Use, context)
		case RValueBorrow:
			checkLValue(rv.BorrowOf, context)
		case RValueCast:
			checkLValue(rv.CastOf, context)
		case RValueBinOp:
			checkParam(rv.BinOpLeft, context)
			checkParam(rv.BinOpRight, context)
		case RValueUniOp:
			checkLValue(rv.UniOpVal, context)
		case RValueDstMeta:
			checkLValue(rv.DstMetaOf, context)
		case RValueDstPtr:
			checkLValue(rv.DstPtrOf, context)
		case RValueMakeDst:
			checkParam(rv.MakeDstPtr, context)
			checkParam(rv.MakeDstMeta, context)
		case RValueTuple, RValueArray:
			for _, e := range rv.Elems {
				checkParam(e, context)
			}
		case RValueSizedArray:
			checkParam(rv.SizedArrayElem, context)
		case RValueStruct, RValueEnumVariant:
			for _, p := range rv.Fields {
				checkParam(p, context)
			}
		case RValueUnionVariant:
			checkParam(rv.UnionField, context)
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Statements {
			st := &bb.Statements[j]
			ctx := fmt.Sprintf("bb%d stmt %d", i, j)
			switch st.Kind {
			case StmtAssign:
				checkLValue(st.AssignDest, ctx)
				checkRValue(st.AssignSrc, ctx)
			case StmtDrop:
				checkLValue(st.DropPlace, ctx)
			case StmtAsm:
				for _, op := range st.AsmOutputs {
					checkLValue(op.Place, ctx)
				}
				for _, op := range st.AsmInputs {
					checkLValue(op.Place, ctx)
				}
			}
		}

		ctx := fmt.Sprintf("bb%d terminator", i)
		t := &bb.Term
		switch t.Kind {
		case TermIf:
			checkLValue(t.IfCond, ctx)
		case TermSwitch:
			checkLValue(t.SwitchValue, ctx)
		case TermSwitchValue:
			checkLValue(t.SwitchValValue, ctx)
		case TermCall:
			checkLValue(t.CallDest, ctx)
			for _, a := range t.CallArgs {
				checkParam(a, ctx)
			}
		}
	}

	return errors.Join(errs...)
}

// validateCallShape checks that every Call terminator has both a next and
// a panic successor, and the panic successor unconditionally Diverges.
// (Richer unwind is a future extension; at this layer a panic edge that
// does anything else is a construction bug.)
func validateCallShape(f *Function) error {
	var errs []error
	for i := range f.Blocks {
		t := &f.Blocks[i].Term
		if t.Kind != TermCall {
			continue
		}
		if !f.ValidBlock(t.CallNext) || !f.ValidBlock(t.CallPanic) {
			continue // already reported by validateBlockTargets
		}
		if f.Blocks[t.CallPanic].Term.Kind != TermDiverge {
			errs = append(errs, fmt.Errorf("bb%d: call panic successor bb%d does not diverge", i, t.CallPanic))
		}
	}
	return errors.Join(errs...)
}

// successors lists the block ids a terminator can transfer control to.
func successors(t *Terminator) []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.GotoTarget}
	case TermIf:
		return []BlockID{t.IfTrue, t.IfFalse}
	case TermSwitch:
		return t.SwitchTargets
	case TermSwitchValue:
		out := make([]BlockID, 0, len(t.SwitchValCases)+1)
		for _, c := range t.SwitchValCases {
			out = append(out, c.Target)
		}
		return append(out, t.SwitchValDefault)
	case TermCall:
		return []BlockID{t.CallNext, t.CallPanic}
	default:
		return nil
	}
}

// validateInitConsistency is the optional assigned-before-use dataflow pass: a forward
// must-analysis computing, per block, the set of locals definitely
// assigned on every path from entry; any read of a local outside that
// set is a violation. Drops are treated as reads (dropping a
// never-assigned local is equally a construction bug). Arguments and
// the return place are always-initialised roots and exempt.
func validateInitConsistency(f *Function) error {
	if len(f.Blocks) == 0 {
		return nil
	}

	n := len(f.Locals)
	full := func() []bool {
		s := make([]bool, n)
		for i := range s {
			s[i] = true
		}
		return s
	}
	intersect := func(dst, src []bool) bool {
		changed := false
		for i := range dst {
			if dst[i] && !src[i] {
				dst[i] = false
				changed = true
			}
		}
		return changed
	}

	entry := f.Entry
	if !f.ValidBlock(entry) {
		entry = 0
	}

	// in[b] starts at "everything" for all blocks except entry (the
	// standard must-analysis top), then iterates to a fixed point.
	in := make([][]bool, len(f.Blocks))
	reached := make([]bool, len(f.Blocks))
	for i := range in {
		in[i] = full()
	}
	in[entry] = make([]bool, n)
	reached[entry] = true

	outOf := func(b int) []bool {
		state := append([]bool(nil), in[b]...)
		for _, st := range f.Blocks[b].Statements {
			if st.Kind == StmtAssign && st.AssignDest.Root == RootLocal && len(st.AssignDest.Wrappers) == 0 {
				if int(st.AssignDest.Local) < n {
					state[st.AssignDest.Local] = true
				}
			}
		}
		if f.Blocks[b].Term.Kind == TermCall {
			dest := f.Blocks[b].Term.CallDest
			if dest.Root == RootLocal && len(dest.Wrappers) == 0 && int(dest.Local) < n {
				state[dest.Local] = true
			}
		}
		return state
	}

	for changed := true; changed; {
		changed = false
		for b := range f.Blocks {
			if !reached[b] {
				continue
			}
			out := outOf(b)
			for _, succ := range successors(&f.Blocks[b].Term) {
				if !f.ValidBlock(succ) {
					continue
				}
				if !reached[succ] {
					reached[succ] = true
					in[succ] = append([]bool(nil), out...)
					changed = true
					continue
				}
				if intersect(in[succ], out) {
					changed = true
				}
			}
		}
	}

	var errs []error
	for b := range f.Blocks {
		if !reached[b] {
			continue // dead blocks after a Diverge are not errors
		}
		state := append([]bool(nil), in[b]...)
		requireInit := func(lv LValue, context string) {
			if lv.Root == RootLocal && len(lv.Wrappers) == 0 && int(lv.Local) < n && !state[lv.Local] {
				errs = append(errs, fmt.Errorf("%s: local L%d used before assignment", context, lv.Local))
			}
			for _, w := range lv.Wrappers {
				if w.Kind == WrapIndex && int(w.Local) < n && !state[w.Local] {
					errs = append(errs, fmt.Errorf("%s: index local L%d used before assignment", context, w.Local))
				}
			}
		}
		requireParam := func(p Param, context string) {
			if p.Kind == ParamUse {
				requireInit(p.LValue, context)
			}
		}
		requireRValue := func(rv RValue, context string) {
			switch rv.Kind {
			case RValueUse:
				requireInit(rv.Use, context)
			case RValueBorrow:
				requireInit(rv.BorrowOf, context)
			case RValueCast:
				requireInit(rv.CastOf, context)
			case RValueBinOp:
				requireParam(rv.BinOpLeft, context)
				requireParam(rv.BinOpRight, context)
			case RValueUniOp:
				requireInit(rv.UniOpVal, context)
			case RValueDstMeta:
				requireInit(rv.DstMetaOf, context)
			case RValueDstPtr:
				requireInit(rv.DstPtrOf, context)
			case RValueMakeDst:
				requireParam(rv.MakeDstPtr, context)
				requireParam(rv.MakeDstMeta, context)
			case RValueTuple, RValueArray:
				for _, e := range rv.Elems {
					requireParam(e, context)
				}
			case RValueSizedArray:
				requireParam(rv.SizedArrayElem, context)
			case RValueStruct, RValueEnumVariant:
				for _, p := range rv.Fields {
					requireParam(p, context)
				}
			case RValueUnionVariant:
				requireParam(rv.UnionField, context)
			}
		}

		for j, st := range f.Blocks[b].Statements {
			ctx := fmt.Sprintf("bb%d stmt %d", b, j)
			switch st.Kind {
			case StmtAssign:
				requireRValue(st.AssignSrc, ctx)
				// Projected destinations read their base before writing.
				if len(st.AssignDest.Wrappers) > 0 {
					requireInit(st.AssignDest, ctx)
				}
				if st.AssignDest.Root == RootLocal && len(st.AssignDest.Wrappers) == 0 && int(st.AssignDest.Local) < n {
					state[st.AssignDest.Local] = true
				}
			case StmtDrop:
				requireInit(st.DropPlace, ctx)
			case StmtAsm:
				for _, op := range st.AsmInputs {
					requireInit(op.Place, ctx)
				}
			}
		}
		ctx := fmt.Sprintf("bb%d terminator", b)
		t := f.Blocks[b].Term
		switch t.Kind {
		case TermIf:
			requireInit(t.IfCond, ctx)
		case TermSwitch:
			requireInit(t.SwitchValue, ctx)
		case TermSwitchValue:
			requireInit(t.SwitchValValue, ctx)
		case TermCall:
			for _, a := range t.CallArgs {
				requireParam(a, ctx)
			}
		}
	}
	return errors.Join(errs...)
}
