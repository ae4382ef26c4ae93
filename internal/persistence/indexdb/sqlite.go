package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/tuning"
	"voxelcore.ai/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropMutation atomic.Uint64
	dropChunk    atomic.Uint64
	written      atomic.Uint64

	// Synchronous flush requests; see Flush.
	flushCh chan chan struct{}
	stopped chan struct{}
}

type Stats struct {
	QueueDepth          int
	QueueCapacity       int
	Written             uint64
	DropMutationTotal   uint64
	DropChunkEventTotal uint64
}

type reqKind int

const (
	reqMutation reqKind = iota + 1
	reqChunkEvent
)

type req struct {
	kind  reqKind
	audit world.AuditEntry
}

// ChunkEvent is one LOAD_CHUNK or UNLOAD_CHUNK row.
type ChunkEvent struct {
	Seq         uint64
	Action      string
	Chunk       [3]int
	Invalidated int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Bursty type changes (e.g. a collapse cascade) must not stall the world loop.
		ch:      make(chan req, 65536),
		flushCh: make(chan chan struct{}),
		stopped: make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.stopped)
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mutations (
			world_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			from_type INTEGER NOT NULL,
			to_type INTEGER NOT NULL,
			delta INTEGER NOT NULL,
			invalidated INTEGER NOT NULL,
			time TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (world_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_pos_seq ON mutations(x, z, y, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_mutations_chunk_seq ON mutations(cx, cz, cy, seq);`,
		`CREATE TABLE IF NOT EXISTS chunk_events (
			world_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			invalidated INTEGER NOT NULL,
			time TEXT NOT NULL,
			PRIMARY KEY (world_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_events_chunk ON chunk_events(cx, cz, cy, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteAudit queues entry. It never blocks: if the writer falls behind the
// entry is dropped and counted, and the JSONL audit log stays authoritative.
func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	kind := reqMutation
	if entry.Action == world.AuditLoadChunk || entry.Action == world.AuditUnloadChunk {
		kind = reqChunkEvent
	}
	select {
	case s.ch <- req{kind: kind, audit: entry}:
	default:
		if kind == reqChunkEvent {
			s.dropChunk.Add(1)
		} else {
			s.dropMutation.Add(1)
		}
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		Written:             s.written.Load(),
		DropMutationTotal:   s.dropMutation.Load(),
		DropChunkEventTotal: s.dropChunk.Load(),
	}
}

// Flush blocks until every entry queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalogs stores the voxel palette and the tuning actually applied.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	rows, err := catalogRows(configDir, cats, tune)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.data), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type catalogRow struct {
	name   string
	digest string
	data   []byte
}

func catalogRows(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) ([]catalogRow, error) {
	var rows []catalogRow
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "voxel_types.json")); err == nil && len(b) > 0 {
			rows = append(rows, catalogRow{name: "voxel_types", digest: cats.Voxels.DefsDigest, data: b})
		}
	}
	b, err := json.Marshal(cats.Voxels.Palette)
	if err != nil {
		return nil, err
	}
	rows = append(rows, catalogRow{name: "voxel_palette", digest: cats.Voxels.PaletteDigest, data: b})

	b, err = json.Marshal(tune)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	rows = append(rows, catalogRow{name: "tuning", digest: hex.EncodeToString(sum[:]), data: b})
	return rows, nil
}

func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	return d, err
}

// MutationCount returns the number of indexed mutations of action; an empty
// action counts all of them.
func (s *SQLiteIndex) MutationCount(ctx context.Context, action string) (int, error) {
	var n int
	var err error
	if action == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutations`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutations WHERE action = ?`, action).Scan(&n)
	}
	return n, err
}

// MutationsAt returns the mutations of one voxel in seq order.
func (s *SQLiteIndex) MutationsAt(ctx context.Context, pos [3]int) ([]world.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_json FROM mutations WHERE x = ? AND y = ? AND z = ? ORDER BY seq`,
		pos[0], pos[1], pos[2])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []world.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e world.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ChunkEvents returns the load/unload history of one chunk in seq order.
func (s *SQLiteIndex) ChunkEvents(ctx context.Context, chunk [3]int) ([]ChunkEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, action, invalidated FROM chunk_events WHERE cx = ? AND cy = ? AND cz = ? ORDER BY seq`,
		chunk[0], chunk[1], chunk[2])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkEvent
	for rows.Next() {
		ev := ChunkEvent{Chunk: chunk}
		var seq int64
		if err := rows.Scan(&seq, &ev.Action, &ev.Invalidated); err != nil {
			return nil, err
		}
		ev.Seq = uint64(seq)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMutation, _ := s.db.Prepare(`INSERT OR REPLACE INTO mutations(world_id,seq,action,x,y,z,cx,cy,cz,from_type,to_type,delta,invalidated,time,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunk_events(world_id,seq,action,cx,cy,cz,invalidated,time) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertMutation != nil {
			_ = insertMutation.Close()
		}
		if insertChunk != nil {
			_ = insertChunk.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		pending       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err == nil {
			s.written.Add(uint64(pending))
		}
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		pending = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	apply := func(r req) {
		begin()
		if tx == nil {
			return
		}
		a := r.audit
		switch r.kind {
		case reqMutation:
			if insertMutation == nil {
				return
			}
			raw, _ := json.Marshal(a)
			if _, err := tx.Stmt(insertMutation).Exec(
				a.WorldID,
				int64(a.Seq),
				a.Action,
				a.Pos[0], a.Pos[1], a.Pos[2],
				a.Chunk[0], a.Chunk[1], a.Chunk[2],
				a.From,
				a.To,
				a.Delta,
				a.Invalidated,
				a.Time,
				string(raw),
			); err != nil {
				rollback()
				return
			}
		case reqChunkEvent:
			if insertChunk == nil {
				return
			}
			if _, err := tx.Stmt(insertChunk).Exec(
				a.WorldID,
				int64(a.Seq),
				a.Action,
				a.Chunk[0], a.Chunk[1], a.Chunk[2],
				a.Invalidated,
				a.Time,
			); err != nil {
				rollback()
				return
			}
		}
		opCount++
		pending++
		flushIfNeeded()
	}

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			apply(r)
		case done := <-s.flushCh:
			// Drain what was queued before the flush request.
			for n := len(s.ch); n > 0; n-- {
				r, ok := <-s.ch
				if !ok {
					break
				}
				apply(r)
			}
			commit()
			close(done)
		}
	}
}
