package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Storage layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrInvalidHandle  = "E_INVALID_HANDLE"
	ErrUnknownType    = "E_UNKNOWN_TYPE"
	ErrChunkNotLoaded = "E_CHUNK_NOT_LOADED"
	ErrUnavailable    = "E_UNAVAILABLE"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrInvalidHandle:   {},
	ErrUnknownType:     {},
	ErrChunkNotLoaded:  {},
	ErrUnavailable:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
