package mir

import (
	"fmt"
	"io"
	"slices"

	"hirmir/internal/types"
)

// DumpModule writes a human-readable representation of a MIR module,
// used by the CLI's default `lower` output and by tests asserting on
// emitted shape.
func DumpModule(w io.Writer, m *Module, typesIn *types.Interner) error {
	if w == nil || m == nil {
		return nil
	}
	funcs := make([]*Function, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		if f != nil {
			funcs = append(funcs, f)
		}
	}
	slices.SortFunc(funcs, func(a, b *Function) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		return int(a.ID - b.ID)
	})

	fmt.Fprintf(w, "funcs=%d\n", len(funcs))
	for _, f := range funcs {
		dumpFunc(w, f, typesIn)
	}
	return nil
}

func dumpFunc(w io.Writer, f *Function, typesIn *types.Interner) {
	fmt.Fprintf(w, "\nfn %s:\n", f.Name)
	fmt.Fprintf(w, "  locals:\n")
	for i, l := range f.Locals {
		name := l.Name
		if name == "" {
			name = "_"
		}
		fmt.Fprintf(w, "    L%d: %s name=%s\n", i, typeStr(typesIn, l.Type), name)
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(w, "  bb%d:\n", i)
		for _, s := range bb.Statements {
			fmt.Fprintf(w, "    %s\n", stmtStr(s))
		}
		fmt.Fprintf(w, "    %s\n", termStr(bb.Term))
	}
	if f.IsGenerator {
		fmt.Fprintf(w, "  generator: enum=%d struct=%d drop_fn=%d\n", f.GeneratorEnum, f.GeneratorStruct, f.DropFuncID)
	}
}

func typeStr(typesIn *types.Interner, id types.TypeID) string {
	if typesIn == nil {
		return fmt.Sprintf("T%d", id)
	}
	t, ok := typesIn.Lookup(id)
	if !ok {
		return fmt.Sprintf("T%d", id)
	}
	if t.Name != "" {
		return t.Name
	}
	return t.Kind.String()
}

func stmtStr(s Statement) string {
	switch s.Kind {
	case StmtAssign:
		flag := ""
		if s.AssignDropDest {
			flag = " [drop-dest]"
		}
		return fmt.Sprintf("%s = %s%s", s.AssignDest, rvalueStr(s.AssignSrc), flag)
	case StmtDrop:
		kind := "deep"
		if s.DropKind == DropShallow {
			kind = "shallow"
		}
		return fmt.Sprintf("drop(%s, %s)", s.DropPlace, kind)
	case StmtAsm:
		return fmt.Sprintf("asm(%q)", s.AsmTemplate)
	default:
		return "?stmt"
	}
}

func paramStr(p Param) string {
	if p.Kind == ParamUse {
		return p.LValue.String()
	}
	return constStr(p.Constant)
}

func constStr(c Constant) string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.IntValue)
	case ConstFloat:
		return fmt.Sprintf("%g", c.FloatValue)
	case ConstBool:
		return fmt.Sprintf("%t", c.BoolValue)
	case ConstString:
		return fmt.Sprintf("%q", c.StrValue)
	case ConstByteString:
		return fmt.Sprintf("b%q", c.ByteValue)
	case ConstItemAddr:
		return fmt.Sprintf("&item(%d)", c.Path)
	case ConstAssocConst:
		return fmt.Sprintf("assoc_const(%d)", c.Path)
	case ConstGenericParam:
		return fmt.Sprintf("genparam(%d)", c.ParamIdx)
	default:
		return "?const"
	}
}

func rvalueStr(rv RValue) string {
	switch rv.Kind {
	case RValueUse:
		return rv.Use.String()
	case RValueConstant:
		return constStr(rv.Constant)
	case RValueBorrow:
		mode := "&"
		if rv.BorrowKind == BorrowUnique {
			mode = "&mut "
		}
		return mode + rv.BorrowOf.String()
	case RValueCast:
		return fmt.Sprintf("cast(%s, T%d)", rv.CastOf, rv.CastTarget)
	case RValueBinOp:
		return fmt.Sprintf("binop(%s, %d, %s)", paramStr(rv.BinOpLeft), rv.BinOp, paramStr(rv.BinOpRight))
	case RValueUniOp:
		return fmt.Sprintf("uniop(%d, %s)", rv.UniOp, rv.UniOpVal)
	case RValueDstMeta:
		return fmt.Sprintf("dst_meta(%s)", rv.DstMetaOf)
	case RValueDstPtr:
		return fmt.Sprintf("dst_ptr(%s)", rv.DstPtrOf)
	case RValueMakeDst:
		return fmt.Sprintf("make_dst(%s, %s)", paramStr(rv.MakeDstPtr), paramStr(rv.MakeDstMeta))
	case RValueTuple:
		return fmt.Sprintf("tuple%s", paramListStr(rv.Elems))
	case RValueArray:
		return fmt.Sprintf("array%s", paramListStr(rv.Elems))
	case RValueSizedArray:
		return fmt.Sprintf("sized_array(%s; %d)", paramStr(rv.SizedArrayElem), rv.SizedArrayLen)
	case RValueStruct:
		return fmt.Sprintf("struct(%d)%s", rv.AggPath, paramListStr(rv.Fields))
	case RValueEnumVariant:
		return fmt.Sprintf("enum(%d)#%d%s", rv.AggPath, rv.VariantIdx, paramListStr(rv.Fields))
	case RValueUnionVariant:
		return fmt.Sprintf("union(%d)#%d(%s)", rv.AggPath, rv.VariantIdx, paramStr(rv.UnionField))
	default:
		return "?rvalue"
	}
}

func paramListStr(ps []Param) string {
	out := "("
	for i, p := range ps {
		if i > 0 {
			out += ", "
		}
		out += paramStr(p)
	}
	return out + ")"
}

func termStr(t Terminator) string {
	switch t.Kind {
	case TermReturn:
		return "return"
	case TermDiverge:
		return "diverge"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.GotoTarget)
	case TermIf:
		return fmt.Sprintf("if %s -> bb%d else bb%d", t.IfCond, t.IfTrue, t.IfFalse)
	case TermSwitch:
		return fmt.Sprintf("switch %s -> %v", t.SwitchValue, t.SwitchTargets)
	case TermSwitchValue:
		return fmt.Sprintf("switch_value %s -> %v default bb%d", t.SwitchValValue, t.SwitchValCases, t.SwitchValDefault)
	case TermCall:
		return fmt.Sprintf("%s = call %v%s -> [next bb%d, panic bb%d]", t.CallDest, t.CallTarget, paramListStr(t.CallArgs), t.CallNext, t.CallPanic)
	default:
		return "?term"
	}
}
