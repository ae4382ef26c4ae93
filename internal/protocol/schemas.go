package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://voxelcore.ai/schemas/"

var schemaByType = map[string]string{
	TypeHello:     "hello.schema.json",
	TypeSetType:   "set_type.schema.json",
	TypeSetHealth: "set_health.schema.json",
	TypeSetWater:  "set_water.schema.json",
	TypeGetVoxel:  "get_voxel.schema.json",
	TypeGetSlice:  "get_slice.schema.json",
	TypeSetView:   "set_view.schema.json",
}

var inboundSchemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	files, err := fs.Glob(schemaFS, "schemas/*.schema.json")
	if err != nil {
		panic(err)
	}
	for _, f := range files {
		b, err := schemaFS.ReadFile(f)
		if err != nil {
			panic(err)
		}
		if err := c.AddResource(schemaBase+path.Base(f), bytes.NewReader(b)); err != nil {
			panic(fmt.Sprintf("schema %s: %v", f, err))
		}
	}
	out := make(map[string]*jsonschema.Schema, len(schemaByType))
	for typ, name := range schemaByType {
		out[typ] = c.MustCompile(schemaBase + name)
	}
	return out
}

// ValidateInbound decodes the routing header of raw and validates the whole
// message against the schema registered for its type.
func ValidateInbound(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, err
	}
	s, ok := inboundSchemas[base.Type]
	if !ok {
		return base, fmt.Errorf("unknown message type %q", base.Type)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return base, err
	}
	if err := s.Validate(doc); err != nil {
		return base, err
	}
	return base, nil
}
