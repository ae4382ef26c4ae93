package ws

import (
	"context"
	"encoding/json"
	"errors"

	"voxelcore.ai/internal/protocol"
	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/encoding"
	"voxelcore.ai/internal/sim/voxel"
	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
	"voxelcore.ai/internal/sim/world"
)

var liquidByName = map[string]chunk.LiquidType{
	"NONE":  chunk.LiquidNone,
	"WATER": chunk.LiquidWater,
	"LAVA":  chunk.LiquidLava,
}

// dispatch handles one inbound frame and returns the reply, or nil when the
// frame has no req_id to answer.
func (s *Server) dispatch(parent context.Context, msg []byte) any {
	base, err := protocol.ValidateInbound(msg)
	if err != nil {
		if base.ReqID == "" {
			return nil
		}
		return reject(base.ReqID, protocol.ErrBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(parent, requestTimeout)
	defer cancel()

	switch base.Type {
	case protocol.TypeSetType:
		var m protocol.SetTypeMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return reject(base.ReqID, protocol.ErrBadRequest, err.Error())
		}
		return s.handleSetType(ctx, m)
	case protocol.TypeSetHealth:
		var m protocol.SetHealthMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return reject(base.ReqID, protocol.ErrBadRequest, err.Error())
		}
		if err := s.world.SetHealth(ctx, toGlobal(m.Pos), m.Health); err != nil {
			return rejectErr(m.ReqID, err)
		}
		return accept(m.ReqID)
	case protocol.TypeSetWater:
		var m protocol.SetWaterMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return reject(base.ReqID, protocol.ErrBadRequest, err.Error())
		}
		cell := chunk.WaterCell{Type: liquidByName[m.Liquid], Level: byte(m.Level)}
		delta, err := s.world.SetWater(ctx, toGlobal(m.Pos), cell)
		if err != nil {
			return rejectErr(m.ReqID, err)
		}
		ack := accept(m.ReqID)
		ack.LiquidDelta = delta
		return ack
	case protocol.TypeGetVoxel:
		var m protocol.GetVoxelMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return reject(base.ReqID, protocol.ErrBadRequest, err.Error())
		}
		st, err := s.world.Voxel(ctx, toGlobal(m.Pos))
		if err != nil {
			return rejectErr(m.ReqID, err)
		}
		return protocol.VoxelMsg{
			Type:            protocol.TypeVoxel,
			ProtocolVersion: protocol.Version,
			ReqID:           m.ReqID,
			Voxel:           voxelObs(st),
		}
	case protocol.TypeGetSlice:
		var m protocol.GetSliceMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return reject(base.ReqID, protocol.ErrBadRequest, err.Error())
		}
		cc := coord.ChunkCoordinate{X: m.Chunk[0], Y: m.Chunk[1], Z: m.Chunk[2]}
		snap, err := s.world.Slice(ctx, cc, m.Y)
		if err != nil {
			return rejectErr(m.ReqID, err)
		}
		return protocol.SliceMsg{
			Type:            protocol.TypeSlice,
			ProtocolVersion: protocol.Version,
			ReqID:           m.ReqID,
			Chunk:           m.Chunk,
			Y:               m.Y,
			Valid:           snap.Valid,
			Occupied:        snap.Occupied,
			Liquid:          snap.Liquid,
			Encoding:        "RLE",
			Data:            encoding.EncodeRLE(snap.Types),
		}
	case protocol.TypeSetView:
		var m protocol.SetViewMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return reject(base.ReqID, protocol.ErrBadRequest, err.Error())
		}
		if m.MaxViewingLevel != nil {
			if err := s.world.SetMaxViewingLevel(ctx, *m.MaxViewingLevel); err != nil {
				return rejectErr(m.ReqID, err)
			}
		}
		if m.FogOfWar != nil {
			if err := s.world.SetFogOfWar(ctx, *m.FogOfWar); err != nil {
				return rejectErr(m.ReqID, err)
			}
		}
		return accept(m.ReqID)
	}
	// HELLO after the handshake.
	return reject(base.ReqID, protocol.ErrProtoBadRequest, "unexpected "+base.Type)
}

func (s *Server) handleSetType(ctx context.Context, m protocol.SetTypeMsg) any {
	var (
		inv voxel.Invalidation
		err error
	)
	g := toGlobal(m.Pos)
	if m.TypeName != nil {
		inv, err = s.world.SetTypeName(ctx, g, *m.TypeName)
	} else {
		inv, err = s.world.SetType(ctx, g, byte(*m.TypeID))
	}
	if err != nil {
		return rejectErr(m.ReqID, err)
	}
	ack := accept(m.ReqID)
	ack.OccupiedDelta = inv.OccupiedDelta
	ack.Invalidated = sliceRefs(inv.Slices)
	return ack
}

func accept(reqID string) protocol.AckMsg {
	return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: reqID, Accepted: true}
}

func reject(reqID, code, message string) protocol.AckMsg {
	return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: reqID, Code: code, Message: message}
}

func rejectErr(reqID string, err error) protocol.AckMsg {
	return reject(reqID, errorCode(err), err.Error())
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, voxel.ErrInvalidHandle):
		return protocol.ErrInvalidHandle
	case errors.Is(err, catalogs.ErrUnknownType):
		return protocol.ErrUnknownType
	case errors.Is(err, world.ErrChunkNotLoaded):
		return protocol.ErrChunkNotLoaded
	case errors.Is(err, world.ErrSliceOutOfRange):
		return protocol.ErrBadRequest
	case errors.Is(err, world.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return protocol.ErrUnavailable
	}
	return protocol.ErrInternal
}

func toGlobal(p [3]int) coord.GlobalVoxelCoordinate {
	return coord.GlobalVoxelCoordinate{X: p[0], Y: p[1], Z: p[2]}
}

func sliceRefs(in []voxel.SliceRef) [][4]int {
	out := make([][4]int, 0, len(in))
	for _, s := range in {
		out = append(out, [4]int{s.Chunk.X, s.Chunk.Y, s.Chunk.Z, s.Y})
	}
	return out
}

func voxelObs(st world.VoxelState) protocol.VoxelObs {
	return protocol.VoxelObs{
		Pos:      [3]int{st.Coord.X, st.Coord.Y, st.Coord.Z},
		TypeID:   int(st.Type),
		TypeName: st.TypeName,
		Health:   int(st.Health),
		Ramp:     int(st.Ramp),
		SunColor: int(st.SunColor),
		Explored: st.Explored,
		Liquid:   st.Water.Type.String(),
		Level:    int(st.Water.Level),
		Visible:  st.Visible,
	}
}

func invalidateMsg(ev world.InvalidationEvent) protocol.InvalidateMsg {
	return protocol.InvalidateMsg{
		Type:            protocol.TypeInvalidate,
		ProtocolVersion: protocol.Version,
		Seq:             ev.Seq,
		Reason:          ev.Reason,
		Pos:             [3]int{ev.Coord.X, ev.Coord.Y, ev.Coord.Z},
		Slices:          sliceRefs(ev.Slices),
	}
}
