package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"voxelcore.ai/internal/protocol"
)

// BootstrapResponse lets a renderer size its caches before opening the
// websocket.
type BootstrapResponse struct {
	ProtocolVersion string               `json:"protocol_version"`
	WorldID         string               `json:"world_id"`
	WorldParams     protocol.WorldParams `json:"world_params"`
	VoxelPalette    []string             `json:"voxel_palette"`
	LoadedChunks    [][3]int             `json:"loaded_chunks"`
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		view, err := s.world.View(ctx)
		if err != nil {
			http.Error(rw, "world unavailable", http.StatusServiceUnavailable)
			return
		}
		keys, err := s.world.LoadedChunks(ctx)
		if err != nil {
			http.Error(rw, "world unavailable", http.StatusServiceUnavailable)
			return
		}

		d := s.world.Dims()
		resp := BootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldID:         s.world.ID(),
			WorldParams: protocol.WorldParams{
				ChunkSize:       [3]int{d.X, d.Y, d.Z},
				MaxViewingLevel: view.MaxViewingLevel,
				FogOfWar:        view.FogOfWar,
			},
			VoxelPalette: s.world.Types().Palette,
			LoadedChunks: make([][3]int, 0, len(keys)),
		}
		for _, k := range keys {
			resp.LoadedChunks = append(resp.LoadedChunks, [3]int{k.X, k.Y, k.Z})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
