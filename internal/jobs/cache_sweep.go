package jobs

import (
	"context"
	"log"
)

// Sweeper reaps expired cache entries
type Sweeper interface {
	Sweep()
	Len() int
}

// CacheSweepJob bounds cache growth by removing expired entries
type CacheSweepJob struct {
	cache Sweeper
}

// NewCacheSweepJob creates the sweep job
func NewCacheSweepJob(cache Sweeper) *CacheSweepJob {
	return &CacheSweepJob{cache: cache}
}

func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

func (j *CacheSweepJob) Run(ctx context.Context) error {
	before := j.cache.Len()
	j.cache.Sweep()
	if removed := before - j.cache.Len(); removed > 0 {
		log.Printf("🧹 [CACHE] Swept %d expired entries", removed)
	}
	return nil
}
