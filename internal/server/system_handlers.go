package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/lmoraes/backfinance/internal/database"
)

// SystemHandlers provides system monitoring endpoints
type SystemHandlers struct {
	log        zerolog.Logger
	dataDir    string
	accountsDB *database.DB
	cacheDB    *database.DB
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, accountsDB, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		dataDir:    dataDir,
		accountsDB: accountsDB,
		cacheDB:    cacheDB,
	}
}

type databaseHealth struct {
	Healthy   bool  `json:"healthy"`
	SizeBytes int64 `json:"size_bytes"`
	WALBytes  int64 `json:"wal_bytes"`
}

type systemHealthResponse struct {
	Status     string                    `json:"status"`
	CPUPercent float64                   `json:"cpu_percent"`
	MemPercent float64                   `json:"mem_percent"`
	DiskFree   uint64                    `json:"disk_free_bytes"`
	Databases  map[string]databaseHealth `json:"databases"`
}

// HandleSystemHealth handles GET /api/system/health.
// Reports database health plus host CPU, memory, and data-dir disk usage.
func (h *SystemHandlers) HandleSystemHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := systemHealthResponse{
		Status:    "ok",
		Databases: make(map[string]databaseHealth),
	}

	for _, db := range []*database.DB{h.accountsDB, h.cacheDB} {
		health := databaseHealth{Healthy: true}
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			health.Healthy = false
			resp.Status = "degraded"
		}
		if stats, err := db.GetStats(); err == nil {
			health.SizeBytes = stats.SizeBytes
			health.WALBytes = stats.WALSizeBytes
		}
		resp.Databases[db.Name()] = health
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		resp.CPUPercent = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		resp.MemPercent = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage(h.dataDir); err == nil {
		resp.DiskFree = diskStat.Free
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system health response")
	}
}
