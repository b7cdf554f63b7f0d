package hirfixture

import (
	"context"
	"strings"
	"testing"

	"hirmir/internal/config"
	"hirmir/internal/diag"
	"hirmir/internal/driver"
	"hirmir/internal/hir"
	"hirmir/internal/mir"
	"hirmir/internal/types"
)

const addOneFixture = `{
  "funcs": [
    {
      "name": "add_one",
      "result": "i32",
      "locals": [{"name": "x", "type": "i32"}],
      "params": [{"local": 0, "type": "i32"}],
      "body": {
        "tail": {
          "kind": "binop", "op": "add", "type": "i32",
          "left": {"kind": "var", "local": 0, "type": "i32"},
          "right": {"kind": "int", "int": 1, "type": "i32"}
        }
      }
    }
  ]
}`

func TestDecodeAddOne(t *testing.T) {
	fx, err := Decode(strings.NewReader(addOneFixture))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(fx.Module.Funcs) != 1 {
		t.Fatalf("want 1 func, got %d", len(fx.Module.Funcs))
	}
	fn := fx.Module.Funcs[0]
	if fn.Name != "add_one" || len(fn.Params) != 1 || fn.Body.Tail == nil {
		t.Fatalf("decoded func shape off: %+v", fn)
	}
	if fn.Body.Tail.Kind != hir.ExprBinaryOp {
		t.Fatalf("tail kind = %v, want BinaryOp", fn.Body.Tail.Kind)
	}
}

// A decoded fixture must drive the whole pipeline.
func TestDecodedFixtureLowers(t *testing.T) {
	fx, err := Decode(strings.NewReader(addOneFixture))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p := &driver.Pipeline{
		Resolver: fx.Resolver,
		Types:    fx.Types,
		Symbols:  fx.Symbols,
		Reporter: diag.NewBag(0),
		Config:   config.Default(),
	}
	mod, err := p.Lower(context.Background(), fx.Module)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(mod.Funcs) != 1 {
		t.Fatalf("want 1 lowered func, got %d", len(mod.Funcs))
	}
	for _, f := range mod.Funcs {
		if f.Blocks[0].Term.Kind != mir.TermReturn {
			t.Errorf("fixture func should lower to a single returning block")
		}
	}
}

func TestDecodeEnumAndMatch(t *testing.T) {
	doc := `{
	  "types": [
	    {"name": "Option", "kind": "enum", "variants": [
	      {"name": "Some", "fields": ["i32"]},
	      {"name": "None"}
	    ]}
	  ],
	  "funcs": [
	    {
	      "name": "unwrap_or_zero",
	      "result": "i32",
	      "locals": [{"name": "v", "type": "Option"}, {"name": "x", "type": "i32"}],
	      "params": [{"local": 0, "type": "Option"}],
	      "body": {
	        "tail": {
	          "kind": "match", "type": "i32",
	          "scrutinee": {"kind": "var", "local": 0, "type": "Option"},
	          "arms": [
	            {
	              "patterns": [{"kind": "variant", "type": "Option", "variant": "Some",
	                            "elems": [{"kind": "bind", "local": 1, "type": "i32"}]}],
	              "body": {"kind": "var", "local": 1, "type": "i32"}
	            },
	            {
	              "patterns": [{"kind": "variant", "type": "Option", "variant": "None"}],
	              "body": {"kind": "int", "int": 0, "type": "i32"}
	            }
	          ]
	        }
	      }
	    }
	  ]
	}`
	fx, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	md := fx.Module.Funcs[0].Body.Tail.Data.(hir.MatchData)
	if len(md.Arms) != 2 {
		t.Fatalf("want 2 arms, got %d", len(md.Arms))
	}
	pd := md.Arms[0].Patterns[0].Data.(hir.EnumVariantPatData)
	if pd.VariantIdx != 0 || len(pd.Elems) != 1 {
		t.Fatalf("Some pattern decoded wrong: %+v", pd)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	doc := `{"funcs": [{"name": "f", "result": "Mystery", "body": {}}]}`
	if _, err := Decode(strings.NewReader(doc)); err == nil {
		t.Fatalf("unknown type name should be rejected")
	}
}

func TestDecodeRejectsUnknownExprKind(t *testing.T) {
	doc := `{"funcs": [{"name": "f", "body": {"tail": {"kind": "telepathy"}}}]}`
	if _, err := Decode(strings.NewReader(doc)); err == nil {
		t.Fatalf("unknown expression kind should be rejected")
	}
}

func TestTypeExpressionParsing(t *testing.T) {
	d := &decoder{interner: types.NewInterner(), named: map[string]types.TypeID{}}

	ref, err := d.typeOf("&mut [i32; 4]")
	if err != nil {
		t.Fatalf("typeOf: %v", err)
	}
	rt, _ := d.interner.Lookup(ref)
	if rt.Kind != types.KindReference || !rt.Mutable {
		t.Fatalf("outer type = %+v, want &mut", rt)
	}
	at, _ := d.interner.Lookup(rt.Elem)
	if at.Kind != types.KindArray || at.Len != 4 || at.Elem != d.interner.Builtins().Int32 {
		t.Fatalf("inner type = %+v, want [i32; 4]", at)
	}

	tup, err := d.typeOf("(bool, (u8, u8))")
	if err != nil {
		t.Fatalf("typeOf tuple: %v", err)
	}
	tt, _ := d.interner.Lookup(tup)
	if tt.Kind != types.KindTuple || len(tt.Fields) != 2 {
		t.Fatalf("tuple type = %+v", tt)
	}
	nested, _ := d.interner.Lookup(tt.Fields[1])
	if nested.Kind != types.KindTuple || len(nested.Fields) != 2 {
		t.Fatalf("nested tuple not parsed: %+v", nested)
	}

	if _, err := d.typeOf("[i32; many]"); err == nil {
		t.Fatalf("bad array length should be rejected")
	}
}
