package protocol_test

import (
	"testing"

	"voxelcore.ai/internal/protocol"
)

func TestValidateInbound_AcceptsSamples(t *testing.T) {
	samples := []string{
		`{"type":"HELLO","protocol_version":"1.0","client_name":"renderer","invalidations":true}`,
		`{"type":"SET_TYPE","protocol_version":"1.0","req_id":"r1","pos":[15,5,7],"type_id":2}`,
		`{"type":"SET_TYPE","protocol_version":"1.0","req_id":"r2","pos":[-1,0,-20],"type_name":"DIRT"}`,
		`{"type":"SET_HEALTH","protocol_version":"1.0","req_id":"r3","pos":[0,0,0],"health":-5}`,
		`{"type":"SET_WATER","protocol_version":"1.0","req_id":"r4","pos":[0,1,0],"liquid":"WATER","level":8}`,
		`{"type":"GET_VOXEL","protocol_version":"1.0","req_id":"r5","pos":[1,2,3]}`,
		`{"type":"GET_SLICE","protocol_version":"1.0","req_id":"r6","chunk":[0,0,-1],"y":12}`,
		`{"type":"SET_VIEW","protocol_version":"1.0","req_id":"r7","fog_of_war":false}`,
	}
	for _, s := range samples {
		if _, err := protocol.ValidateInbound([]byte(s)); err != nil {
			t.Fatalf("validate %s: %v", s, err)
		}
	}
}

func TestValidateInbound_RejectsBadMessages(t *testing.T) {
	bad := map[string]string{
		"unknown type":     `{"type":"FLY","protocol_version":"1.0"}`,
		"both type fields": `{"type":"SET_TYPE","protocol_version":"1.0","req_id":"r","pos":[0,0,0],"type_id":1,"type_name":"DIRT"}`,
		"no type field":    `{"type":"SET_TYPE","protocol_version":"1.0","req_id":"r","pos":[0,0,0]}`,
		"type id range":    `{"type":"SET_TYPE","protocol_version":"1.0","req_id":"r","pos":[0,0,0],"type_id":256}`,
		"short pos":        `{"type":"GET_VOXEL","protocol_version":"1.0","req_id":"r","pos":[0,0]}`,
		"float pos":        `{"type":"GET_VOXEL","protocol_version":"1.0","req_id":"r","pos":[0.5,0,0]}`,
		"bad liquid":       `{"type":"SET_WATER","protocol_version":"1.0","req_id":"r","pos":[0,0,0],"liquid":"OIL"}`,
		"negative slice":   `{"type":"GET_SLICE","protocol_version":"1.0","req_id":"r","chunk":[0,0,0],"y":-1}`,
		"empty view":       `{"type":"SET_VIEW","protocol_version":"1.0","req_id":"r"}`,
		"extra field":      `{"type":"GET_VOXEL","protocol_version":"1.0","req_id":"r","pos":[0,0,0],"x":1}`,
		"missing req id":   `{"type":"GET_VOXEL","protocol_version":"1.0","pos":[0,0,0]}`,
		"not json":         `{"type":`,
	}
	for name, s := range bad {
		if _, err := protocol.ValidateInbound([]byte(s)); err == nil {
			t.Fatalf("%s: expected rejection of %s", name, s)
		}
	}
}
