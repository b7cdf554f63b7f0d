// Package mirwire (de)serializes a *mir.Module for the --emit=mir.bin
// CLI output.
package mirwire

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"hirmir/internal/mir"
)

// schemaVersion guards against decoding a module encoded by an
// incompatible build; bump it whenever Payload's shape changes.
const schemaVersion uint16 = 1

// Payload is the wire envelope: a schema tag plus the module itself.
// mir's types are already plain exported-field structs, so msgpack
// serializes them without a separate flattened representation.
type Payload struct {
	Schema uint16
	Module *mir.Module
}

// Encode writes mod to w.
func Encode(w io.Writer, mod *mir.Module) error {
	return encodeWithSchema(w, mod, schemaVersion)
}

func encodeWithSchema(w io.Writer, mod *mir.Module, schema uint16) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&Payload{Schema: schema, Module: mod})
}

// Decode reads a Module previously written by Encode.
func Decode(r io.Reader) (*mir.Module, error) {
	var p Payload
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("mirwire: decode: %w", err)
	}
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("mirwire: schema version %d unsupported (want %d)", p.Schema, schemaVersion)
	}
	if p.Module == nil {
		return nil, fmt.Errorf("mirwire: payload carries no module")
	}
	return p.Module, nil
}
