package world

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/voxel"
	"voxelcore.ai/internal/sim/voxel/coord"
	"voxelcore.ai/internal/sim/voxel/registry"
)

var (
	ErrClosed          = errors.New("world closed")
	ErrChunkNotLoaded  = errors.New("chunk not loaded")
	ErrSliceOutOfRange = errors.New("slice out of range")
)

type Config struct {
	ID   string
	Dims coord.Dims
	View voxel.View

	InboxSize        int
	SubscriberBuffer int

	Logger     *log.Logger
	AuditSinks []AuditSink
}

// World owns the chunk registry. All registry and chunk state is touched only
// from the goroutine running Run; other goroutines go through the request
// methods, which queue a closure and wait for the loop to execute it. A type
// change and its whole invalidation cascade therefore run as one request, and
// no reader can observe a half-applied cascade.
type World struct {
	cfg   Config
	types *catalogs.VoxelCatalog

	// Loop-owned.
	reg  *registry.Registry
	view voxel.View

	inbox    chan *request
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	runOnce  atomic.Bool

	seq          atomic.Uint64
	mutations    atomic.Uint64
	typeChanges  atomic.Uint64
	loadedChunks atomic.Int64

	subsMu  sync.Mutex
	subs    map[uint64]*subscriber
	nextSub uint64
	dropped atomic.Uint64

	log *log.Logger
}

const (
	reqQueued int32 = iota
	reqStarted
	reqCancelled
)

// request is claimed exactly once: by the loop (reqStarted) or by a caller
// whose context ended first (reqCancelled). A cancelled request never runs.
type request struct {
	fn    func()
	done  chan struct{}
	state atomic.Int32
}

// start claims req for the loop and reports whether it should run.
func (req *request) start() bool {
	return req.state.CompareAndSwap(reqQueued, reqStarted)
}

func (req *request) cancel() bool {
	return req.state.CompareAndSwap(reqQueued, reqCancelled)
}

func New(cfg Config, types *catalogs.VoxelCatalog) (*World, error) {
	if err := cfg.Dims.Validate(); err != nil {
		return nil, err
	}
	if types == nil || types.Len() == 0 {
		return nil, errors.New("voxel catalog is empty")
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &World{
		cfg:   cfg,
		types: types,
		reg:   registry.New(cfg.Dims),
		view:  cfg.View,
		inbox: make(chan *request, cfg.InboxSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		subs:  map[uint64]*subscriber{},
		log:   logger,
	}, nil
}

func (w *World) ID() string                    { return w.cfg.ID }
func (w *World) Dims() coord.Dims              { return w.cfg.Dims }
func (w *World) Types() *catalogs.VoxelCatalog { return w.types }
func (w *World) MutationCount() uint64         { return w.mutations.Load() }
func (w *World) DroppedEvents() uint64         { return w.dropped.Load() }

// Close stops the loop. Pending requests fail with ErrClosed.
func (w *World) Close() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Do runs fn on the loop goroutine with exclusive access to the registry.
// fn must not retain the registry or any chunk after returning, and must keep
// the per-slice counters consistent if it writes raw chunk data.
func (w *World) Do(ctx context.Context, fn func(*registry.Registry) error) error {
	var err error
	if qerr := w.exec(ctx, func() { err = fn(w.reg) }); qerr != nil {
		return qerr
	}
	return err
}

// exec runs fn on the loop and waits for it. When ctx ends first, fn either
// never runs (ctx.Err() is returned) or has already started and is waited
// for (nil is returned), so a caller always knows whether its write applied.
func (w *World) exec(ctx context.Context, fn func()) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := &request{fn: fn, done: make(chan struct{})}
	select {
	case w.inbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrClosed
	case <-w.stop:
		return ErrClosed
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		if req.cancel() {
			return ctx.Err()
		}
		return w.await(req)
	case <-w.done:
		if req.cancel() {
			return ErrClosed
		}
		return w.await(req)
	}
}

// await waits for a request the loop has already started. Run finishes a
// started request before it can exit.
func (w *World) await(req *request) error {
	<-req.done
	return nil
}

func (w *World) nextSeq() uint64 { return w.seq.Add(1) }

func (w *World) loaded(cc coord.ChunkCoordinate) error {
	if _, ok := w.reg.Get(cc); !ok {
		return fmt.Errorf("%w: %s", ErrChunkNotLoaded, cc)
	}
	return nil
}
