package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelcore.ai/internal/protocol"
	"voxelcore.ai/internal/sim/world"
)

const (
	requestTimeout = 5 * time.Second
	outQueue       = 256
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader

	droppedPushes atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

type session struct {
	id  string
	out chan []byte

	// Pushes dropped since the last delivered INVALIDATE. Owned by the
	// forwarding goroutine.
	missed uint64
}

// send queues v for the writer goroutine. It gives up when ctx is done.
func (ss *session) send(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case ss.out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ss, hello := s.handshake(conn)
		if ss == nil {
			return
		}
		s.logf("session %s: %s connected", ss.id, hello.ClientName)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if hello.Invalidations {
			subID, events := s.world.Subscribe()
			defer s.world.Unsubscribe(subID)
			go s.forwardInvalidations(ctx, ss, events)
		}

		// Writer goroutine.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-ss.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.dispatch(ctx, msg)
			if resp == nil {
				continue
			}
			if err := ss.send(ctx, resp); err != nil {
				break
			}
		}

		cancel()
		<-writeDone
		s.logf("session %s: closed", ss.id)
	}
}

// forwardInvalidations turns world events into INVALIDATE pushes. A client
// that cannot keep up misses pushes rather than stall the others; the next
// push it does receive reports how many it missed.
func (s *Server) forwardInvalidations(ctx context.Context, ss *session, events <-chan world.InvalidationEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.push(ss, ev)
		}
	}
}

// push queues one INVALIDATE without blocking and reports whether it was
// queued.
func (s *Server) push(ss *session, ev world.InvalidationEvent) bool {
	msg := invalidateMsg(ev)
	msg.Missed = ss.missed
	b, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case ss.out <- b:
		ss.missed = 0
		return true
	default:
		ss.missed++
		total := s.droppedPushes.Add(1)
		if ss.missed == 1 {
			s.logf("session %s: invalidation queue full, dropping pushes (dropped_total=%d)", ss.id, total)
		}
		return false
	}
}

// DroppedPushes counts INVALIDATE pushes dropped on full session queues.
func (s *Server) DroppedPushes() uint64 { return s.droppedPushes.Load() }

func (s *Server) handshake(conn *websocket.Conn) (*session, protocol.HelloMsg) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, hello
	}

	base, err := protocol.ValidateInbound(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, hello
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, hello
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, hello
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	view, err := s.world.View(ctx)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "world unavailable"), time.Now().Add(time.Second))
		return nil, hello
	}

	ss := &session{id: uuid.NewString(), out: make(chan []byte, outQueue)}
	d := s.world.Dims()
	types := s.world.Types()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       ss.id,
		WorldID:         s.world.ID(),
		WorldParams: protocol.WorldParams{
			ChunkSize:       [3]int{d.X, d.Y, d.Z},
			MaxViewingLevel: view.MaxViewingLevel,
			FogOfWar:        view.FogOfWar,
		},
		Catalogs: protocol.CatalogDigests{
			VoxelPalette: protocol.DigestRef{Digest: types.PaletteDigest, Count: len(types.Palette)},
			VoxelTypes:   types.DefsDigest,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil, hello
	}
	return ss, hello
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
