package handlers

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

const (
	readerValidity   = 24 * time.Hour
	cleanupFrequency = 15 * time.Minute
)

type readerKey struct {
	ip   string
	slug string
}

// ReadStats counts unique readers per post, a reader counts once per post every 24h
type ReadStats struct {
	mu      sync.RWMutex
	readers map[readerKey]time.Time
	reads   map[string]int
}

func NewReadStats(ctx context.Context) *ReadStats {
	s := &ReadStats{
		readers: make(map[readerKey]time.Time),
		reads:   make(map[string]int),
	}

	go s.backgroundCleanup(ctx)
	return s
}

func (s *ReadStats) backgroundCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *ReadStats) cleanup() {
	cutOff := time.Now().Add(-readerValidity)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, lastSeen := range s.readers {
		if lastSeen.Before(cutOff) {
			delete(s.readers, key)
		}
	}
}

// Record notes that ip read slug. Requests without a client address are ignored.
func (s *ReadStats) Record(ip, slug string) {
	if ip == "" || slug == "" {
		return
	}
	key := readerKey{ip: ip, slug: slug}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	lastSeen, ok := s.readers[key]
	if !ok || now.Sub(lastSeen) > readerValidity {
		s.reads[slug]++
	}
	s.readers[key] = now
}

type PostRead struct {
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// TopPosts returns the n most read posts, most read first
func (s *ReadStats) TopPosts(n int) []*PostRead {
	if n < 1 {
		return []*PostRead{}
	}

	s.mu.RLock()
	top := make([]*PostRead, 0, len(s.reads))
	for slug, count := range s.reads {
		top = append(top, &PostRead{Slug: slug, Count: count})
	}
	s.mu.RUnlock()

	slices.SortFunc(top, func(a, b *PostRead) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Slug, b.Slug)
	})

	return top[:min(n, len(top))]
}
