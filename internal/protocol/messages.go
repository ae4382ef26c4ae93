package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// Subscribe to INVALIDATE pushes.
	Invalidations bool `json:"invalidations,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	ChunkSize       [3]int `json:"chunk_size"`
	MaxViewingLevel int    `json:"max_viewing_level"`
	FogOfWar        bool   `json:"fog_of_war"`
}

type CatalogDigests struct {
	VoxelPalette DigestRef `json:"voxel_palette"`
	VoxelTypes   string    `json:"voxel_types_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// SET_TYPE. Exactly one of TypeID or TypeName is set.
type SetTypeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id"`
	Pos             [3]int  `json:"pos"`
	TypeID          *int    `json:"type_id,omitempty"`
	TypeName        *string `json:"type_name,omitempty"`
}

type SetHealthMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Pos             [3]int `json:"pos"`
	Health          int    `json:"health"`
}

type SetWaterMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Pos             [3]int `json:"pos"`
	Liquid          string `json:"liquid"` // NONE | WATER | LAVA
	Level           int    `json:"level"`
}

type GetVoxelMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Pos             [3]int `json:"pos"`
}

type GetSliceMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Chunk           [3]int `json:"chunk"`
	Y               int    `json:"y"`
}

// SET_VIEW. Omitted fields keep their current value.
type SetViewMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	MaxViewingLevel *int   `json:"max_viewing_level,omitempty"`
	FogOfWar        *bool  `json:"fog_of_war,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	// SET_TYPE / SET_WATER results.
	OccupiedDelta int      `json:"occupied_delta,omitempty"`
	LiquidDelta   int      `json:"liquid_delta,omitempty"`
	Invalidated   [][4]int `json:"invalidated,omitempty"`
}

type VoxelMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	Voxel           VoxelObs `json:"voxel"`
}

type VoxelObs struct {
	Pos      [3]int `json:"pos"`
	TypeID   int    `json:"type_id"`
	TypeName string `json:"type_name"`
	Health   int    `json:"health"`
	Ramp     int    `json:"ramp"`
	SunColor int    `json:"sun_color"`
	Explored bool   `json:"explored"`
	Liquid   string `json:"liquid"`
	Level    int    `json:"level"`
	Visible  bool   `json:"visible"`
}

type SliceMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	Chunk           [3]int `json:"chunk"`
	Y               int    `json:"y"`
	Valid           bool   `json:"valid"`
	Occupied        int    `json:"occupied"`
	Liquid          int    `json:"liquid"`
	Encoding        string `json:"encoding"` // "RLE"
	Data            string `json:"data"`
}

// INVALIDATE (server -> client). Slices are [chunk x, chunk y, chunk z, slice y].
// Missed is the number of pushes dropped for this session since the previous
// one; a client that sees it non-zero must treat all its slice caches as stale.
type InvalidateMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Seq             uint64   `json:"seq"`
	Reason          string   `json:"reason"`
	Pos             [3]int   `json:"pos"`
	Slices          [][4]int `json:"slices"`
	Missed          uint64   `json:"missed,omitempty"`
}
