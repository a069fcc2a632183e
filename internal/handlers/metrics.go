package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

const topPostsLimit = 20

// HandleMetrics returns JSON statistics about memory usage, the post index and reads
func (h *BlogHandler) HandleMetrics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		stats := struct {
			Alloc        string      `json:"allocated_heap_mb"`
			TotalAlloc   string      `json:"total_alloc_mb"`
			Sys          string      `json:"system_obtained_mb"`
			NumGC        uint32      `json:"gc_cycles"`
			CurrentTime  time.Time   `json:"server_time"`
			Goroutines   int         `json:"goroutines"`
			Cores        int         `json:"cpu_cores"`
			PostsIndexed int         `json:"posts_indexed"`
			CacheEntries int         `json:"render_cache_entries"`
			TopPosts     []*PostRead `json:"top_posts"`
		}{
			Alloc:       bToMb(m.Alloc),
			TotalAlloc:  bToMb(m.TotalAlloc),
			Sys:         bToMb(m.Sys),
			NumGC:       m.NumGC,
			CurrentTime: time.Now().Local().Truncate(time.Millisecond),
			Goroutines:  runtime.NumGoroutine(),
			Cores:       runtime.NumCPU(),
			TopPosts:    []*PostRead{},
		}
		if h.Index != nil {
			stats.PostsIndexed = h.Index.Len()
		}
		if h.Cache != nil {
			stats.CacheEntries = h.Cache.Len()
		}
		if h.Stats != nil {
			stats.TopPosts = h.Stats.TopPosts(topPostsLimit)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			h.logger(r).Warn("encoding metrics", "err", err)
		}
	})
}

// Helper to format bytes to MB string
func bToMb(b uint64) string {
	mb := float64(b) / 1024 / 1024
	return fmt.Sprintf("%.2f MB", mb)
}
