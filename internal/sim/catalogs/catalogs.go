package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// EmptyID is the palette id of EMPTY. Chunks are zero-filled, so a fresh
// chunk is all EMPTY.
const (
	EmptyID   byte = 0
	EmptyName      = "EMPTY"
)

var ErrUnknownType = errors.New("unknown voxel type")

type Catalogs struct {
	Voxels VoxelCatalog
}

type VoxelCatalog struct {
	Palette       []string
	Index         map[string]byte
	Defs          []VoxelType // indexed by palette id
	PaletteDigest string
	DefsDigest    string
}

type VoxelType struct {
	ID             byte   `json:"-"`
	Name           string `json:"id"`
	StartingHealth byte   `json:"starting_health"`
	Invincible     bool   `json:"invincible,omitempty"`
	Soil           bool   `json:"soil,omitempty"`
	Transparent    bool   `json:"transparent,omitempty"`
}

func (t VoxelType) IsEmpty() bool { return t.ID == EmptyID }

const voxelTypesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "maxItems": 256,
  "items": {
    "type": "object",
    "required": ["id", "starting_health"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
      "starting_health": {"type": "integer", "minimum": 0, "maximum": 255},
      "invincible": {"type": "boolean"},
      "soil": {"type": "boolean"},
      "transparent": {"type": "boolean"}
    }
  }
}`

var voxelTypesValidator = jsonschema.MustCompileString("voxel_types.schema.json", voxelTypesSchema)

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadVoxels(filepath.Join(configDir, "voxel_types.json"), &c.Voxels); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadVoxels(path string, out *VoxelCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cat, err := ParseVoxelTypes(raw)
	if err != nil {
		return fmt.Errorf("voxel_types.json: %w", err)
	}
	*out = *cat
	return nil
}

// ParseVoxelTypes validates raw against the catalog schema and builds the
// palette. EMPTY is always id 0; the rest are numbered in name order.
func ParseVoxelTypes(raw []byte) (*VoxelCatalog, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := voxelTypesValidator.Validate(doc); err != nil {
		return nil, err
	}

	var defs []VoxelType
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, err
	}
	byName := make(map[string]VoxelType, len(defs))
	for _, d := range defs {
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate id %q", d.Name)
		}
		byName[d.Name] = d
	}
	if _, ok := byName[EmptyName]; !ok {
		return nil, fmt.Errorf("missing %s", EmptyName)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		if name != EmptyName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append([]string{EmptyName}, names...)

	out := &VoxelCatalog{
		Palette:    names,
		Index:      make(map[string]byte, len(names)),
		Defs:       make([]VoxelType, len(names)),
		DefsDigest: sha256Hex(raw),
	}
	for i, name := range names {
		d := byName[name]
		d.ID = byte(i)
		out.Index[name] = d.ID
		out.Defs[i] = d
	}
	palJSON, _ := json.Marshal(names)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

// NewVoxelCatalog builds a catalog from definitions whose IDs are already
// assigned. Gaps are filled with unnamed placeholders.
func NewVoxelCatalog(defs ...VoxelType) (*VoxelCatalog, error) {
	maxID := 0
	for _, d := range defs {
		if int(d.ID) > maxID {
			maxID = int(d.ID)
		}
	}
	out := &VoxelCatalog{
		Palette: make([]string, maxID+1),
		Index:   make(map[string]byte, len(defs)),
		Defs:    make([]VoxelType, maxID+1),
	}
	for i := range out.Defs {
		out.Defs[i].ID = byte(i)
	}
	out.Defs[EmptyID].Name = EmptyName
	out.Palette[EmptyID] = EmptyName
	for _, d := range defs {
		if d.ID == EmptyID && d.Name != "" && d.Name != EmptyName {
			return nil, fmt.Errorf("id 0 is reserved for %s, got %q", EmptyName, d.Name)
		}
		if d.ID == EmptyID {
			d.Name = EmptyName
		}
		out.Defs[d.ID] = d
		out.Palette[d.ID] = d.Name
		if d.Name != "" {
			out.Index[d.Name] = d.ID
		}
	}
	out.Index[EmptyName] = EmptyID
	palJSON, _ := json.Marshal(out.Palette)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

func (c *VoxelCatalog) ByID(id byte) (VoxelType, error) {
	if c == nil || int(id) >= len(c.Defs) {
		return VoxelType{}, fmt.Errorf("%w: id %d", ErrUnknownType, id)
	}
	return c.Defs[id], nil
}

func (c *VoxelCatalog) ByName(name string) (VoxelType, error) {
	if c == nil {
		return VoxelType{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	id, ok := c.Index[name]
	if !ok {
		return VoxelType{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return c.Defs[id], nil
}

func (c *VoxelCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Defs)
}
