package chunk

type LiquidType uint8

const (
	LiquidNone LiquidType = iota
	LiquidWater
	LiquidLava
)

func (t LiquidType) String() string {
	switch t {
	case LiquidNone:
		return "NONE"
	case LiquidWater:
		return "WATER"
	case LiquidLava:
		return "LAVA"
	}
	return "UNKNOWN"
}

// WaterCell is the liquid state of one voxel.
type WaterCell struct {
	Type  LiquidType
	Level byte
}

func (w WaterCell) HasLiquid() bool { return w.Type != LiquidNone }

// RampType flags which top corners of a voxel are lowered.
type RampType uint8

const (
	RampNone          RampType = 0
	RampTopFrontLeft  RampType = 1 << 0
	RampTopFrontRight RampType = 1 << 1
	RampTopBackLeft   RampType = 1 << 2
	RampTopBackRight  RampType = 1 << 3
)

func (r RampType) Has(o RampType) bool { return r&o != 0 }
