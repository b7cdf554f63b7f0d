package mirwire

import (
	"bytes"
	"reflect"
	"testing"

	"hirmir/internal/mir"
	"hirmir/internal/source"
)

func sampleModule() *mir.Module {
	mod := mir.NewModule()
	mod.Add(&mir.Function{
		ID:     1,
		Name:   "f",
		Locals: []mir.LocalDecl{{Type: 3, Name: "x"}},
		Blocks: []mir.BasicBlock{
			{
				Statements: []mir.Statement{
					mir.Assign(source.NoSpan, mir.Return(), mir.UseRValue(mir.LocalLV(0)), false),
				},
				Term: mir.ReturnTerm(),
			},
		},
	})
	return mod
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := sampleModule()
	if err := Encode(&buf, in); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed the module:\n%+v\nvs\n%+v", in, out)
	}
}

func TestDecodeRejectsWrongSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleModule()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Re-encode under a bumped schema tag by hand.
	var wrong bytes.Buffer
	if err := encodeWithSchema(&wrong, sampleModule(), schemaVersion+1); err != nil {
		t.Fatalf("encodeWithSchema: %v", err)
	}
	if _, err := Decode(&wrong); err == nil {
		t.Fatalf("decoding a future schema should fail")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not msgpack at all"))); err == nil {
		t.Fatalf("garbage input should fail to decode")
	}
}
