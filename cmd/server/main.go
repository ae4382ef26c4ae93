package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelcore.ai/internal/persistence/indexdb"
	persistlog "voxelcore.ai/internal/persistence/log"
	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/tuning"
	"voxelcore.ai/internal/sim/voxel"
	"voxelcore.ai/internal/sim/world"
	"voxelcore.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (audit + catalogs)")
		preload    = flag.Int("preload_radius", 2, "load flat ground chunks within this chunk radius of the origin (-1 to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional read-model index; the world never reads it back.
	idx, err := openRuntimeIndex(worldDir, *worldID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	invLog := persistlog.NewInvalidationLogger(worldDir)
	defer invLog.Close()

	sinks := []world.AuditSink{auditLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	w, err := world.New(world.Config{
		ID:   *worldID,
		Dims: tune.Dims(),
		View: voxel.View{
			MaxViewingLevel: tune.MaxViewingLevel,
			FogOfWar:        tune.FogOfWar,
		},
		InboxSize:        tune.InboxSize,
		SubscriberBuffer: tune.SubscriberBuffer,
		Logger:           logger,
		AuditSinks:       sinks,
	}, &cats.Voxels)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Subscribe before the loop starts so the log sees every event.
	drained := drainInvalidations(w, invLog.Drain, logger)

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	if n, err := preloadChunks(ctx, w, *preload); err != nil {
		logger.Fatalf("preload chunks: %v", err)
	} else if n > 0 {
		logger.Printf("preloaded %d chunks", n)
	}

	wsSrv := ws.NewServer(w, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w.Metrics(), wsSrv.DroppedPushes(), idx)
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/v1/bootstrap", wsSrv.BootstrapHandler())

	if envBool("VC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			view, err := w.View(ctx2)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(struct {
				WorldID string             `json:"world_id"`
				View    voxel.View         `json:"view"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{WorldID: *worldID, View: view, Metrics: w.Metrics()})
		})
	} else {
		logger.Printf("admin endpoints disabled (VC_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
	cancel()
	w.Close()
	<-drained
}

// drainInvalidations feeds a world subscription to drain until Run exits and
// closes the channel, so events buffered at shutdown are still written.
func drainInvalidations(w *world.World, drain func(context.Context, <-chan world.InvalidationEvent) error, logger *log.Logger) <-chan struct{} {
	_, events := w.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := drain(context.Background(), events); err != nil {
			logger.Printf("invalidation log: %v", err)
		}
	}()
	return done
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(out io.Writer, worldID string, m world.WorldMetrics, wsDropped uint64, idx runtimeIndex) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s gauge\n", name)
		fmt.Fprintf(out, "%s{world=%q} %v\n", name, worldID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s counter\n", name)
		fmt.Fprintf(out, "%s{world=%q} %d\n", name, worldID, v)
	}

	gauge("voxelcore_world_loaded_chunks", "Loaded chunk count.", m.LoadedChunks)
	gauge("voxelcore_world_subscribers", "Invalidation subscribers.", m.Subscribers)
	counter("voxelcore_world_mutations_total", "Applied voxel writes (type, health, water, sun color, explored, ramp).", m.Mutations)
	counter("voxelcore_world_type_changes_total", "Applied voxel type changes.", m.TypeChanges)
	counter("voxelcore_world_dropped_events_total", "Invalidation events dropped on full subscriber queues.", m.DroppedEvents)
	counter("voxelcore_ws_dropped_invalidations_total", "INVALIDATE pushes dropped on full session queues.", wsDropped)

	fmt.Fprintf(out, "# HELP voxelcore_world_queue_depth Request queue backlog.\n")
	fmt.Fprintf(out, "# TYPE voxelcore_world_queue_depth gauge\n")
	fmt.Fprintf(out, "voxelcore_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)

	switch ix := idx.(type) {
	case *indexdb.SQLiteIndex:
		s := ix.Stats()
		gauge("voxelcore_index_queue_depth", "Index writer queue depth.", s.QueueDepth)
		counter("voxelcore_index_written_total", "Rows committed by the index writer.", s.Written)
		counter("voxelcore_index_dropped_mutation_total", "Mutation rows dropped on a full queue.", s.DropMutationTotal)
		counter("voxelcore_index_dropped_chunk_event_total", "Chunk event rows dropped on a full queue.", s.DropChunkEventTotal)
	case *indexdb.D1Index:
		s := ix.Stats()
		gauge("voxelcore_index_queue_depth", "Index writer queue depth.", s.QueueDepth)
		counter("voxelcore_index_sent_total", "Events delivered to the ingest endpoint.", s.SentTotal)
		counter("voxelcore_index_dropped_total", "Events dropped on a full queue.", s.QueueDroppedTotal)
		counter("voxelcore_index_flush_fail_total", "Failed ingest batch sends.", s.FlushFailTotal)
	}
}
