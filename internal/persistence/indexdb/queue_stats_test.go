package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"voxelcore.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqMutation, audit: world.AuditEntry{Seq: 1}}

	_ = s.WriteAudit(world.AuditEntry{Seq: 2, Action: world.AuditSetType})
	_ = s.WriteAudit(world.AuditEntry{Seq: 3, Action: world.AuditLoadChunk})
	_ = s.WriteAudit(world.AuditEntry{Seq: 4, Action: world.AuditSetWater})

	st := s.Stats()
	if st.DropMutationTotal != 2 {
		t.Fatalf("DropMutationTotal=%d want=2", st.DropMutationTotal)
	}
	if st.DropChunkEventTotal != 1 {
		t.Fatalf("DropChunkEventTotal=%d want=1", st.DropChunkEventTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestD1Index_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	var kinds []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}

		var body struct {
			Events []d1Event `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		for _, ev := range body.Events {
			kinds = append(kinds, ev.Kind)
		}
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	idx, err := OpenD1(D1Config{
		Endpoint:      srv.URL,
		WorldID:       "world_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenD1: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.WriteAudit(world.AuditEntry{Seq: 1, Action: world.AuditSetType, Pos: [3]int{1, 2, 3}}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := idx.WriteAudit(world.AuditEntry{Seq: 2, Action: world.AuditUnloadChunk}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(kinds) >= 2
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	got := append([]string(nil), kinds...)
	mu.Unlock()
	if len(got) != 2 || got[0] != "mutation" || got[1] != "chunk_event" {
		t.Fatalf("delivered kinds = %v", got)
	}

	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded, got 0")
	}
	if st.QueueDroppedTotal != 0 {
		t.Fatalf("unexpected queue drops: %d", st.QueueDroppedTotal)
	}
}

func TestOpenD1_RequiresEndpointAndWorld(t *testing.T) {
	if _, err := OpenD1(D1Config{WorldID: "w"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := OpenD1(D1Config{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for empty world id")
	}
}
