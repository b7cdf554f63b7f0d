// Package hirfixture decodes a JSON-encoded HIR fixture into the typed
// tree the lowering core consumes. The real front end (parser, name
// resolver, type inference) is an external collaborator and out of
// scope; fixtures are how the CLI and integration tests feed the core a
// fully typed function without one. The vocabulary deliberately covers
// the constructs a fixture author actually reaches for — it is a test
// harness surface, not a second parser.
package hirfixture

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hirmir/internal/hir"
	"hirmir/internal/resolver"
	"hirmir/internal/symbols"
	"hirmir/internal/types"
)

// Fixture is the decoded result: the HIR module plus the shared tables
// and the Static resolver seeded from the fixture's lang-item section.
type Fixture struct {
	Module   *hir.Module
	Types    *types.Interner
	Symbols  *symbols.Table
	Resolver *resolver.Static
}

type fileDoc struct {
	Types     []typeDoc         `json:"types"`
	LangItems map[string]string `json:"lang_items"`
	Funcs     []funcDoc         `json:"funcs"`
}

type typeDoc struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"` // struct | enum | union
	Fields   []fieldDoc   `json:"fields"`
	Variants []variantDoc `json:"variants"`
}

type fieldDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type variantDoc struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

type funcDoc struct {
	Name      string     `json:"name"`
	Result    string     `json:"result"`
	Generator bool       `json:"generator"`
	Locals    []fieldDoc `json:"locals"`
	Params    []paramDoc `json:"params"`
	Body      *blockDoc  `json:"body"`
}

type paramDoc struct {
	Local int    `json:"local"`
	Type  string `json:"type"`
}

type blockDoc struct {
	Stmts []stmtDoc `json:"stmts"`
	Tail  *exprDoc  `json:"tail"`
}

type stmtDoc struct {
	Kind    string   `json:"kind"` // let | expr
	Pattern *patDoc  `json:"pattern"`
	Init    *exprDoc `json:"init"`
	Expr    *exprDoc `json:"expr"`
}

type exprDoc struct {
	Kind string `json:"kind"`
	Type string `json:"type"`

	// literals
	Int   int64   `json:"int"`
	Float float64 `json:"float"`
	Bool  bool    `json:"bool"`
	Str   string  `json:"str"`

	// operators / operands
	Op      string    `json:"op"`
	Operand *exprDoc  `json:"operand"`
	Left    *exprDoc  `json:"left"`
	Right   *exprDoc  `json:"right"`
	Mutable bool      `json:"mutable"`
	Elems   []exprDoc `json:"elems"`

	// names
	Local int    `json:"local"`
	Name  string `json:"name"`
	Args  []exprDoc `json:"args"`

	// control flow
	Cond      *exprDoc  `json:"cond"`
	Then      *exprDoc  `json:"then"`
	Else      *exprDoc  `json:"else"`
	Block     *blockDoc `json:"block"`
	Label     string    `json:"label"`
	Diverging bool      `json:"diverging"`
	Value     *exprDoc  `json:"value"`

	// places
	Object *exprDoc `json:"object"`
	Index  *exprDoc `json:"index"`
	Field  int      `json:"field"`

	// match
	Scrutinee *exprDoc `json:"scrutinee"`
	Arms      []armDoc `json:"arms"`

	// aggregates
	Variant string `json:"variant"`
}

type armDoc struct {
	Patterns []patDoc `json:"patterns"`
	Guard    *exprDoc `json:"guard"`
	Body     exprDoc  `json:"body"`
}

type patDoc struct {
	Kind    string   `json:"kind"` // wildcard | bind | lit | tuple | variant | ref
	Type    string   `json:"type"`
	Local   int      `json:"local"`
	Int     int64    `json:"int"`
	Bool    bool     `json:"bool"`
	Elems   []patDoc `json:"elems"`
	Variant string   `json:"variant"`
	Inner   *patDoc  `json:"inner"`
}

// decoder carries the tables being populated while walking the document.
type decoder struct {
	interner *types.Interner
	syms     *symbols.Table
	res      *resolver.Static

	named   map[string]types.TypeID
	funcSym map[string]symbols.SymbolID
}

// Decode reads a fixture document from r.
func Decode(r io.Reader) (*Fixture, error) {
	var doc fileDoc
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("hirfixture: %w", err)
	}

	d := &decoder{
		interner: types.NewInterner(),
		named:    make(map[string]types.TypeID),
		funcSym:  make(map[string]symbols.SymbolID),
	}
	d.syms = symbols.NewTable()
	d.res = resolver.NewStatic(d.interner)

	for _, td := range doc.Types {
		if err := d.declareType(td); err != nil {
			return nil, err
		}
	}
	for name, path := range doc.LangItems {
		sym := d.syms.New(symbols.Symbol{Kind: symbols.KindFunc, Name: path})
		d.res.SetLangItem(name, sym)
	}

	mod := &hir.Module{}
	for _, fd := range doc.Funcs {
		fn, err := d.decodeFunc(fd)
		if err != nil {
			return nil, fmt.Errorf("hirfixture: func %q: %w", fd.Name, err)
		}
		mod.Funcs = append(mod.Funcs, fn)
	}

	return &Fixture{Module: mod, Types: d.interner, Symbols: d.syms, Resolver: d.res}, nil
}

func (d *decoder) declareType(td typeDoc) error {
	switch td.Kind {
	case "struct", "union":
		names := make([]string, len(td.Fields))
		tys := make([]types.TypeID, len(td.Fields))
		for i, f := range td.Fields {
			ty, err := d.typeOf(f.Type)
			if err != nil {
				return err
			}
			names[i] = f.Name
			tys[i] = ty
		}
		if td.Kind == "struct" {
			d.named[td.Name] = d.interner.Struct(td.Name, names, tys)
		} else {
			d.named[td.Name] = d.interner.Union(td.Name, names, tys)
		}
	case "enum":
		variants := make([]types.EnumVariant, len(td.Variants))
		for i, vd := range td.Variants {
			fields := make([]types.TypeID, len(vd.Fields))
			for j, fs := range vd.Fields {
				ty, err := d.typeOf(fs)
				if err != nil {
					return err
				}
				fields[j] = ty
			}
			variants[i] = types.EnumVariant{Name: vd.Name, Fields: fields}
		}
		d.named[td.Name] = d.interner.Enum(td.Name, variants)
	default:
		return fmt.Errorf("hirfixture: type %q: unknown kind %q", td.Name, td.Kind)
	}
	return nil
}

// typeOf parses a type expression: primitives by name, "&T", "&mut T",
// "*T", "[T]", "[T; N]", "(T, U)", or a declared type's name.
func (d *decoder) typeOf(s string) (types.TypeID, error) {
	s = strings.TrimSpace(s)
	b := d.interner.Builtins()
	switch s {
	case "":
		return types.NoTypeID, nil
	case "unit", "()":
		return b.Unit, nil
	case "!":
		return b.Never, nil
	case "bool":
		return b.Bool, nil
	case "char":
		return b.Char, nil
	case "str":
		return b.Str, nil
	case "isize":
		return b.Int, nil
	case "i8":
		return b.Int8, nil
	case "i16":
		return b.Int16, nil
	case "i32":
		return b.Int32, nil
	case "i64":
		return b.Int64, nil
	case "usize":
		return b.Usize, nil
	case "u8":
		return b.Uint8, nil
	case "u16":
		return b.Uint16, nil
	case "u32":
		return b.Uint32, nil
	case "u64":
		return b.Uint64, nil
	case "f32":
		return b.Float32, nil
	case "f64":
		return b.Float64, nil
	}
	switch {
	case strings.HasPrefix(s, "&mut "):
		elem, err := d.typeOf(s[len("&mut "):])
		if err != nil {
			return 0, err
		}
		return d.interner.Reference(elem, true), nil
	case strings.HasPrefix(s, "&"):
		elem, err := d.typeOf(s[1:])
		if err != nil {
			return 0, err
		}
		return d.interner.Reference(elem, false), nil
	case strings.HasPrefix(s, "*"):
		elem, err := d.typeOf(s[1:])
		if err != nil {
			return 0, err
		}
		return d.interner.Pointer(elem, false), nil
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		inner := s[1 : len(s)-1]
		if i := strings.LastIndex(inner, ";"); i >= 0 {
			elem, err := d.typeOf(inner[:i])
			if err != nil {
				return 0, err
			}
			n, err := strconv.ParseUint(strings.TrimSpace(inner[i+1:]), 10, 32)
			if err != nil {
				return 0, fmt.Errorf("hirfixture: bad array length in %q: %w", s, err)
			}
			return d.interner.Array(elem, uint32(n)), nil
		}
		elem, err := d.typeOf(inner)
		if err != nil {
			return 0, err
		}
		return d.interner.Slice(elem), nil
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		parts := splitTopLevel(s[1 : len(s)-1])
		fields := make([]types.TypeID, len(parts))
		for i, p := range parts {
			ty, err := d.typeOf(p)
			if err != nil {
				return 0, err
			}
			fields[i] = ty
		}
		return d.interner.Tuple(fields...), nil
	}
	if id, ok := d.named[s]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("hirfixture: unknown type %q", s)
}

// splitTopLevel splits a comma-separated list, ignoring commas nested
// inside brackets/parens.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		out = append(out, s[start:])
	}
	return out
}

func (d *decoder) symbolFor(name string) symbols.SymbolID {
	if sym, ok := d.funcSym[name]; ok {
		return sym
	}
	sym := d.syms.New(symbols.Symbol{Kind: symbols.KindFunc, Name: name})
	d.funcSym[name] = sym
	return sym
}

func (d *decoder) decodeFunc(fd funcDoc) (*hir.Func, error) {
	result, err := d.typeOf(fd.Result)
	if err != nil {
		return nil, err
	}
	fn := &hir.Func{
		Sym:       d.symbolFor(fd.Name),
		Name:      fd.Name,
		Result:    result,
		Generator: fd.Generator,
	}
	for _, ld := range fd.Locals {
		ty, err := d.typeOf(ld.Type)
		if err != nil {
			return nil, err
		}
		fn.Locals = append(fn.Locals, hir.LocalDecl{Name: ld.Name, Type: ty})
	}
	for _, pd := range fd.Params {
		ty, err := d.typeOf(pd.Type)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, hir.ParamDecl{
			Pattern: &hir.Pattern{Kind: hir.PatBinding, Type: ty, Data: hir.BindingPatData{
				Local: hir.LocalID(pd.Local), Mode: hir.BindByValue,
			}},
			Type: ty,
		})
	}
	if fd.Body == nil {
		return nil, fmt.Errorf("missing body")
	}
	body, err := d.decodeBlock(fd.Body)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (d *decoder) decodeBlock(bd *blockDoc) (*hir.Block, error) {
	blk := &hir.Block{}
	if bd == nil {
		return blk, nil
	}
	for i := range bd.Stmts {
		sd := bd.Stmts[i]
		switch sd.Kind {
		case "let":
			pat, err := d.decodePattern(sd.Pattern)
			if err != nil {
				return nil, err
			}
			var init *hir.Expr
			if sd.Init != nil {
				init, err = d.decodeExpr(sd.Init)
				if err != nil {
					return nil, err
				}
			}
			blk.Stmts = append(blk.Stmts, hir.Stmt{Kind: hir.StmtLet, Data: hir.LetStmtData{Pattern: pat, Init: init}})
		case "expr":
			e, err := d.decodeExpr(sd.Expr)
			if err != nil {
				return nil, err
			}
			blk.Stmts = append(blk.Stmts, hir.Stmt{Kind: hir.StmtExpr, Data: hir.ExprStmtData{Expr: e}})
		default:
			return nil, fmt.Errorf("unknown statement kind %q", sd.Kind)
		}
	}
	if bd.Tail != nil {
		tail, err := d.decodeExpr(bd.Tail)
		if err != nil {
			return nil, err
		}
		blk.Tail = tail
	}
	return blk, nil
}

func (d *decoder) decodePattern(pd *patDoc) (*hir.Pattern, error) {
	if pd == nil {
		return nil, fmt.Errorf("missing pattern")
	}
	ty, err := d.typeOf(pd.Type)
	if err != nil {
		return nil, err
	}
	switch pd.Kind {
	case "wildcard":
		return &hir.Pattern{Kind: hir.PatWildcard, Type: ty, Data: hir.WildcardPatData{}}, nil
	case "bind":
		return &hir.Pattern{Kind: hir.PatBinding, Type: ty, Data: hir.BindingPatData{
			Local: hir.LocalID(pd.Local), Mode: hir.BindByValue,
		}}, nil
	case "lit":
		return &hir.Pattern{Kind: hir.PatLiteral, Type: ty, Data: hir.LiteralPatData{
			Lit: hir.LiteralData{Kind: hir.LitInt, Int: pd.Int},
		}}, nil
	case "tuple":
		elems, err := d.decodePatterns(pd.Elems)
		if err != nil {
			return nil, err
		}
		return &hir.Pattern{Kind: hir.PatTuple, Type: ty, Data: hir.TuplePatData{Elems: elems}}, nil
	case "variant":
		t, ok := d.interner.Lookup(ty)
		if !ok || t.Kind != types.KindEnum {
			return nil, fmt.Errorf("variant pattern type %q is not an enum", pd.Type)
		}
		idx := t.VariantIndex(pd.Variant)
		if idx < 0 {
			return nil, fmt.Errorf("enum %q has no variant %q", pd.Type, pd.Variant)
		}
		elems, err := d.decodePatterns(pd.Elems)
		if err != nil {
			return nil, err
		}
		return &hir.Pattern{Kind: hir.PatEnumVariant, Type: ty, Data: hir.EnumVariantPatData{
			VariantIdx: idx, Elems: elems,
		}}, nil
	case "ref":
		inner, err := d.decodePattern(pd.Inner)
		if err != nil {
			return nil, err
		}
		return &hir.Pattern{Kind: hir.PatReference, Type: ty, Data: hir.ReferencePatData{Inner: inner}}, nil
	default:
		return nil, fmt.Errorf("unknown pattern kind %q", pd.Kind)
	}
}

func (d *decoder) decodePatterns(pds []patDoc) ([]*hir.Pattern, error) {
	out := make([]*hir.Pattern, len(pds))
	for i := range pds {
		p, err := d.decodePattern(&pds[i])
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

var unaryOps = map[string]hir.UnaryOp{"not": hir.UnaryNot, "neg": hir.UnaryNeg}

var binaryOps = map[string]hir.BinaryOp{
	"add": hir.BinAdd, "sub": hir.BinSub, "mul": hir.BinMul, "div": hir.BinDiv, "rem": hir.BinRem,
	"bitand": hir.BinBitAnd, "bitor": hir.BinBitOr, "bitxor": hir.BinBitXor,
	"shl": hir.BinShl, "shr": hir.BinShr,
	"eq": hir.BinEq, "ne": hir.BinNe, "lt": hir.BinLt, "le": hir.BinLe, "gt": hir.BinGt, "ge": hir.BinGe,
}

func (d *decoder) decodeExpr(ed *exprDoc) (*hir.Expr, error) {
	if ed == nil {
		return nil, fmt.Errorf("missing expression")
	}
	ty, err := d.typeOf(ed.Type)
	if err != nil {
		return nil, err
	}
	e := &hir.Expr{Type: ty}

	switch ed.Kind {
	case "int":
		e.Kind, e.Data = hir.ExprLiteral, hir.LiteralData{Kind: hir.LitInt, Int: ed.Int}
	case "float":
		e.Kind, e.Data = hir.ExprLiteral, hir.LiteralData{Kind: hir.LitFloat, Float: ed.Float}
	case "bool":
		e.Kind, e.Data = hir.ExprLiteral, hir.LiteralData{Kind: hir.LitBool, Bool: ed.Bool}
	case "str":
		e.Kind, e.Data = hir.ExprLiteral, hir.LiteralData{Kind: hir.LitString, Str: ed.Str}
	case "var":
		e.Kind, e.Data = hir.ExprVarRef, hir.VarRefData{Local: hir.LocalID(ed.Local), Name: ed.Name}
	case "unop":
		op, ok := unaryOps[ed.Op]
		if !ok {
			return nil, fmt.Errorf("unknown unary op %q", ed.Op)
		}
		operand, err := d.decodeExpr(ed.Operand)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprUnaryOp, hir.UnaryOpData{Op: op, Operand: operand}
	case "binop":
		op, ok := binaryOps[ed.Op]
		if !ok {
			return nil, fmt.Errorf("unknown binary op %q", ed.Op)
		}
		left, err := d.decodeExpr(ed.Left)
		if err != nil {
			return nil, err
		}
		right, err := d.decodeExpr(ed.Right)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprBinaryOp, hir.BinaryOpData{Op: op, Left: left, Right: right}
	case "and", "or":
		left, err := d.decodeExpr(ed.Left)
		if err != nil {
			return nil, err
		}
		right, err := d.decodeExpr(ed.Right)
		if err != nil {
			return nil, err
		}
		if ed.Kind == "and" {
			e.Kind = hir.ExprLogicalAnd
		} else {
			e.Kind = hir.ExprLogicalOr
		}
		e.Data = hir.LogicalData{Left: left, Right: right}
	case "assign":
		target, err := d.decodeExpr(ed.Left)
		if err != nil {
			return nil, err
		}
		value, err := d.decodeExpr(ed.Right)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprAssign, hir.AssignData{Target: target, Value: value}
	case "call":
		args, err := d.decodeExprs(ed.Args)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprCall, hir.CallData{Sym: d.symbolFor(ed.Name), Name: ed.Name, Args: args}
	case "field":
		obj, err := d.decodeExpr(ed.Object)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprFieldAccess, hir.FieldAccessData{Object: obj, FieldIdx: ed.Field}
	case "index":
		obj, err := d.decodeExpr(ed.Object)
		if err != nil {
			return nil, err
		}
		idx, err := d.decodeExpr(ed.Index)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprIndex, hir.IndexData{Object: obj, Index: idx}
	case "borrow":
		operand, err := d.decodeExpr(ed.Operand)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprBorrow, hir.BorrowData{Mutable: ed.Mutable, Operand: operand}
	case "deref":
		operand, err := d.decodeExpr(ed.Operand)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprDeref, hir.DerefData{Operand: operand}
	case "cast":
		operand, err := d.decodeExpr(ed.Operand)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprCast, hir.CastData{Operand: operand}
	case "tuple":
		elems, err := d.decodeExprs(ed.Elems)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprTupleLit, hir.TupleLitData{Elems: elems}
	case "array":
		elems, err := d.decodeExprs(ed.Elems)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprArrayLit, hir.ArrayLitData{Elems: elems}
	case "variant":
		t, ok := d.interner.Lookup(ty)
		if !ok || t.Kind != types.KindEnum {
			return nil, fmt.Errorf("variant literal type %q is not an enum", ed.Type)
		}
		idx := t.VariantIndex(ed.Variant)
		if idx < 0 {
			return nil, fmt.Errorf("enum %q has no variant %q", ed.Type, ed.Variant)
		}
		values, err := d.decodeExprs(ed.Elems)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprEnumVariantLit, hir.EnumVariantLitData{
			Sym: d.symbolFor(ed.Type + "::" + ed.Variant), VariantIdx: idx, Values: values,
		}
	case "block":
		blk, err := d.decodeBlock(ed.Block)
		if err != nil {
			return nil, err
		}
		e.Kind, e.Data = hir.ExprBlock, hir.BlockExprData{Block: blk}
	case "if":
		cond, err := d.decodeExpr(ed.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.decodeExpr(ed.Then)
		if err != nil {
			return nil, err
		}
		els := &hir.Expr{Kind: hir.ExprBlock, Data: hir.BlockExprData{Block: &hir.Block{}}}
		if ed.Else != nil {
			els, err = d.decodeExpr(ed.Else)
			if err != nil {
				return nil, err
			}
		}
		e.Kind, e.Data = hir.ExprIf, hir.IfData{Cond: cond, Then: then, Else: els}
	case "match":
		scrut, err := d.decodeExpr(ed.Scrutinee)
		if err != nil {
			return nil, err
		}
		arms := make([]hir.MatchArm, len(ed.Arms))
		for i, ad := range ed.Arms {
			pats, err := d.decodePatterns(ad.Patterns)
			if err != nil {
				return nil, err
			}
			var guard *hir.Expr
			if ad.Guard != nil {
				guard, err = d.decodeExpr(ad.Guard)
				if err != nil {
					return nil, err
				}
			}
			body, err := d.decodeExpr(&ad.Body)
			if err != nil {
				return nil, err
			}
			arms[i] = hir.MatchArm{Patterns: pats, Guard: guard, Body: body}
		}
		e.Kind, e.Data = hir.ExprMatch, hir.MatchData{Scrutinee: scrut, Arms: arms}
	case "loop":
		blk, err := d.decodeBlock(ed.Block)
		if err != nil {
			return nil, err
		}
		body := &hir.Expr{Kind: hir.ExprBlock, Data: hir.BlockExprData{Block: blk}}
		e.Kind, e.Data = hir.ExprLoop, hir.LoopData{Label: ed.Label, Body: body, Diverging: ed.Diverging}
	case "break":
		var value *hir.Expr
		if ed.Value != nil {
			value, err = d.decodeExpr(ed.Value)
			if err != nil {
				return nil, err
			}
		}
		e.Kind, e.Data = hir.ExprBreak, hir.BreakData{Label: ed.Label, Value: value}
	case "continue":
		e.Kind, e.Data = hir.ExprContinue, hir.ContinueData{Label: ed.Label}
	case "return":
		var value *hir.Expr
		if ed.Value != nil {
			value, err = d.decodeExpr(ed.Value)
			if err != nil {
				return nil, err
			}
		}
		e.Kind, e.Data = hir.ExprReturn, hir.ReturnData{Value: value}
	case "yield":
		var value *hir.Expr
		if ed.Value != nil {
			value, err = d.decodeExpr(ed.Value)
			if err != nil {
				return nil, err
			}
		}
		e.Kind, e.Data = hir.ExprYield, hir.YieldData{Value: value}
	default:
		return nil, fmt.Errorf("unknown expression kind %q", ed.Kind)
	}
	return e, nil
}

func (d *decoder) decodeExprs(eds []exprDoc) ([]*hir.Expr, error) {
	out := make([]*hir.Expr, len(eds))
	for i := range eds {
		e, err := d.decodeExpr(&eds[i])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
