package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelcore.ai/internal/sim/voxel/coord"
)

type Tuning struct {
	ChunkSize       []int `yaml:"chunk_size"`
	MaxViewingLevel int   `yaml:"max_viewing_level"`
	FogOfWar        bool  `yaml:"fog_of_war"`

	// World loop queues.
	InboxSize        int `yaml:"inbox_size"`
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

func Defaults() Tuning {
	return Tuning{
		ChunkSize:        []int{coord.Default.X, coord.Default.Y, coord.Default.Z},
		MaxViewingLevel:  coord.Default.Y,
		FogOfWar:         true,
		InboxSize:        1024,
		SubscriberBuffer: 256,
	}
}

// Load reads path over Defaults, so omitted keys keep their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Dims() coord.Dims {
	if len(t.ChunkSize) != 3 {
		return coord.Dims{}
	}
	return coord.Dims{X: t.ChunkSize[0], Y: t.ChunkSize[1], Z: t.ChunkSize[2]}
}

func (t Tuning) Validate() error {
	if len(t.ChunkSize) != 3 {
		return fmt.Errorf("chunk_size must have 3 entries, got %d", len(t.ChunkSize))
	}
	if err := t.Dims().Validate(); err != nil {
		return err
	}
	if t.InboxSize < 0 || t.SubscriberBuffer < 0 {
		return fmt.Errorf("queue sizes must be >= 0")
	}
	return nil
}
