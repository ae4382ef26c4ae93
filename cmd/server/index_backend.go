package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelcore.ai/internal/persistence/indexdb"
	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/tuning"
	"voxelcore.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditSink
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
}

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("VC_INDEX_D1_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("VC_INDEX_BACKEND=d1 but VC_INDEX_D1_INGEST_URL is empty")
		}
		return indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("VC_INDEX_D1_TOKEN")),
			WorldID:       worldID,
			BatchSize:     envInt("VC_INDEX_D1_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("VC_INDEX_D1_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported VC_INDEX_BACKEND: %s", backend)
	}
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
