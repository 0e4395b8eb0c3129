package dsapi

import (
	"embed"
	"fmt"

	_ "github.com/ipld/go-ipld-prime/codec/json" // side-effecting import; registers a codec.
	"github.com/ipld/go-ipld-prime/schema"
	schemadmt "github.com/ipld/go-ipld-prime/schema/dmt"
	schemadsl "github.com/ipld/go-ipld-prime/schema/dsl"
)

// TypeSystem describes the documents the CLI reads and prints, in IPLD Schema form.
// This is parsed from the dsapi.ipldsch file, which is embedded into the binary at build time.

//go:embed dsapi.ipldsch
var schFs embed.FS

var SchemaDMT, TypeSystem = func() (*schemadmt.Schema, *schema.TypeSystem) {
	r, err := schFs.Open("dsapi.ipldsch")
	if err != nil {
		panic(fmt.Sprintf("failed to open embedded dsapi.ipldsch: %s", err))
	}
	schemaDmt, err := schemadsl.Parse("dsapi.ipldsch", r)
	if err != nil {
		panic(fmt.Sprintf("failed to parse api schema: %s", err))
	}
	ts := new(schema.TypeSystem)
	ts.Init()
	if err := schemadmt.Compile(ts, schemaDmt); err != nil {
		panic(fmt.Sprintf("failed to compile api schema: %s", err))
	}
	return schemaDmt, ts
}()
