package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"

	// Requests (client -> server).
	TypeSetType   = "SET_TYPE"
	TypeSetHealth = "SET_HEALTH"
	TypeSetWater  = "SET_WATER"
	TypeGetVoxel  = "GET_VOXEL"
	TypeGetSlice  = "GET_SLICE"
	TypeSetView   = "SET_VIEW"

	// Responses and pushes (server -> client).
	TypeAck        = "ACK"
	TypeVoxel      = "VOXEL"
	TypeSlice      = "SLICE"
	TypeInvalidate = "INVALIDATE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
