package httpapi

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

type healthResp struct {
	Version       string  `json:"version"`
	VersionFull   string  `json:"version_full"`
	TimeZone      string  `json:"time_zone"`
	Threads       int     `json:"threads"`
	MemoryUsageMB float64 `json:"memory_usage_mb"`
}

func writeHealth(w http.ResponseWriter, info BuildInfo) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	zone, _ := time.Now().Zone()
	resp := healthResp{
		Version:       info.Version,
		VersionFull:   info.VersionFull,
		TimeZone:      zone,
		Threads:       runtime.NumGoroutine(),
		MemoryUsageMB: float64(mem.Alloc) / (1024 * 1024),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
