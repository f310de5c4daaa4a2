package extract

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// complexityThreshold is the cumulative fetch+extract time after which a
// host is considered complex and deserves longer timeouts.
const complexityThreshold = 40 * time.Second

// SiteComplexity tracks cumulative extraction time per host. Hosts that blow
// past the threshold are flagged so later runs can start with a longer
// timeout instead of rediscovering the slowness retry by retry.
type SiteComplexity struct {
	mu        sync.Mutex
	threshold time.Duration
	totals    map[string]time.Duration
	complex   map[string]bool
}

// NewSiteComplexity creates a tracker. A zero threshold takes the default.
func NewSiteComplexity(threshold time.Duration) *SiteComplexity {
	if threshold <= 0 {
		threshold = complexityThreshold
	}
	return &SiteComplexity{
		threshold: threshold,
		totals:    make(map[string]time.Duration),
		complex:   make(map[string]bool),
	}
}

// Record adds one page's processing time to the host's total.
func (c *SiteComplexity) Record(host string, d time.Duration) {
	host = strings.ToLower(host)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[host] += d
	if !c.complex[host] && c.totals[host] > c.threshold {
		c.complex[host] = true
		zap.L().Info("host marked complex",
			zap.String("host", host),
			zap.Duration("total", c.totals[host]),
		)
	}
}

// IsComplex reports whether the host has been flagged.
func (c *SiteComplexity) IsComplex(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complex[strings.ToLower(host)]
}
