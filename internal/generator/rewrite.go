package generator

import "hirmir/internal/mir"

// liftMap records, for every lifted local, the generator-struct place
// its accesses are rewritten to, plus a stable ordering index used by
// the drop glue. The struct layout behind the places is:
//
//	field 0                    resume-state discriminant
//	fields 1..K                captures, one field each
//	field K+1                  saved-locals slot, a
//	                           MaybeUninit<ManuallyDrop<(T0, T1, ...)>>
//
// A capture therefore rewrites to the single projection
// `(*arg0).field(k+1)`, while a saved local rewrites through the two
// wrapper layers as `(*arg0).field(K+1).value.value.field(i)` — the
// extra depth exists because the runtime controls the saved tuple's
// initialisation and drop explicitly across suspensions.
type liftMap struct {
	place map[mir.Local]mir.LValue
	order map[mir.Local]int
}

func newLiftMap() *liftMap {
	return &liftMap{place: make(map[mir.Local]mir.LValue), order: make(map[mir.Local]int)}
}

func (m *liftMap) add(l mir.Local, place mir.LValue) {
	if _, ok := m.place[l]; ok {
		return
	}
	m.order[l] = len(m.place)
	m.place[l] = place
}

func (m *liftMap) lifted(l mir.Local) bool {
	_, ok := m.place[l]
	return ok
}

// rewriteLValue redirects a reference to a lifted local onto its
// generator-struct place, keeping any further projection the original
// LValue carried (e.g. `Local(x).Field(2)` becomes the lifted place
// with `.Field(2)` appended).
func rewriteLValue(lv mir.LValue, m *liftMap) mir.LValue {
	if lv.Root != mir.RootLocal {
		return lv
	}
	base, ok := m.place[lv.Local]
	if !ok {
		return lv
	}
	out := base
	out.Wrappers = append(append([]mir.Wrapper(nil), base.Wrappers...), lv.Wrappers...)
	return out
}

func rewriteParam(p mir.Param, m *liftMap) mir.Param {
	if p.Kind == mir.ParamUse {
		p.LValue = rewriteLValue(p.LValue, m)
	}
	return p
}

func rewriteParams(ps []mir.Param, m *liftMap) []mir.Param {
	if len(ps) == 0 {
		return ps
	}
	out := make([]mir.Param, len(ps))
	for i, p := range ps {
		out[i] = rewriteParam(p, m)
	}
	return out
}

func rewriteRValue(rv mir.RValue, m *liftMap) mir.RValue {
	switch rv.Kind {
	case mir.RValueUse:
		rv.Use = rewriteLValue(rv.Use, m)
	case mir.RValueBorrow:
		rv.BorrowOf = rewriteLValue(rv.BorrowOf, m)
	case mir.RValueCast:
		rv.CastOf = rewriteLValue(rv.CastOf, m)
	case mir.RValueBinOp:
		rv.BinOpLeft = rewriteParam(rv.BinOpLeft, m)
		rv.BinOpRight = rewriteParam(rv.BinOpRight, m)
	case mir.RValueUniOp:
		rv.UniOpVal = rewriteLValue(rv.UniOpVal, m)
	case mir.RValueDstMeta:
		rv.DstMetaOf = rewriteLValue(rv.DstMetaOf, m)
	case mir.RValueDstPtr:
		rv.DstPtrOf = rewriteLValue(rv.DstPtrOf, m)
	case mir.RValueMakeDst:
		rv.MakeDstPtr = rewriteParam(rv.MakeDstPtr, m)
		rv.MakeDstMeta = rewriteParam(rv.MakeDstMeta, m)
	case mir.RValueTuple, mir.RValueArray:
		rv.Elems = rewriteParams(rv.Elems, m)
	case mir.RValueSizedArray:
		rv.SizedArrayElem = rewriteParam(rv.SizedArrayElem, m)
	case mir.RValueStruct, mir.RValueEnumVariant:
		rv.Fields = rewriteParams(rv.Fields, m)
	case mir.RValueUnionVariant:
		rv.UnionField = rewriteParam(rv.UnionField, m)
	}
	return rv
}

func rewriteStatement(s mir.Statement, m *liftMap) mir.Statement {
	switch s.Kind {
	case mir.StmtAssign:
		s.AssignDest = rewriteLValue(s.AssignDest, m)
		s.AssignSrc = rewriteRValue(s.AssignSrc, m)
	case mir.StmtDrop:
		s.DropPlace = rewriteLValue(s.DropPlace, m)
	case mir.StmtAsm:
		for i := range s.AsmOutputs {
			s.AsmOutputs[i].Place = rewriteLValue(s.AsmOutputs[i].Place, m)
		}
		for i := range s.AsmInputs {
			s.AsmInputs[i].Place = rewriteLValue(s.AsmInputs[i].Place, m)
		}
	}
	return s
}

func rewriteTerminator(t mir.Terminator, m *liftMap) mir.Terminator {
	switch t.Kind {
	case mir.TermIf:
		t.IfCond = rewriteLValue(t.IfCond, m)
	case mir.TermSwitch:
		t.SwitchValue = rewriteLValue(t.SwitchValue, m)
	case mir.TermSwitchValue:
		t.SwitchValValue = rewriteLValue(t.SwitchValValue, m)
	case mir.TermCall:
		t.CallDest = rewriteLValue(t.CallDest, m)
		t.CallArgs = rewriteParams(t.CallArgs, m)
	}
	return t
}

// rewriteFunctionLocals applies rewriteLValue to every statement and
// terminator in fn, in place.
func rewriteFunctionLocals(fn *mir.Function, m *liftMap) {
	if len(m.place) == 0 {
		return
	}
	for bi := range fn.Blocks {
		bb := &fn.Blocks[bi]
		for si := range bb.Statements {
			bb.Statements[si] = rewriteStatement(bb.Statements[si], m)
		}
		bb.Term = rewriteTerminator(bb.Term, m)
	}
}
